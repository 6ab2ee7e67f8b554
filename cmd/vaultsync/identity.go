// SPDX-License-Identifier: MIT
package vaultsync

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skaphos/vaultsync/internal/cliio"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Show or set the commit identity and credential helper",
	Long:  "Without flags, prints user.name, user.email, and credential.helper for the vault repository. With flags, sets the given values.",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		helper, _ := cmd.Flags().GetString("credential-helper")

		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if !app.adapter.IsRepository(ctx, app.vault) {
			return fmt.Errorf("%s is not a git repository", app.vault)
		}

		changed := false
		if name != "" {
			if err := app.adapter.SetUserName(ctx, app.vault, name); err != nil {
				return fmt.Errorf("set user.name: %w", err)
			}
			changed = true
		}
		if email != "" {
			if err := app.adapter.SetUserEmail(ctx, app.vault, email); err != nil {
				return fmt.Errorf("set user.email: %w", err)
			}
			changed = true
		}
		if helper != "" {
			if err := app.adapter.SetCredentialHelper(ctx, app.vault, helper); err != nil {
				return fmt.Errorf("set credential.helper: %w", err)
			}
			changed = true
		}
		if changed {
			infof(cmd, "identity updated")
		}

		// Unset keys read back empty; display them as "-".
		currentName, _ := app.adapter.UserName(ctx, app.vault)
		currentEmail, _ := app.adapter.UserEmail(ctx, app.vault)
		currentHelper, _ := app.adapter.CredentialHelper(ctx, app.vault)
		noHeaders, _ := cmd.Flags().GetBool("no-headers")
		return cliio.WriteTable(
			cmd.OutOrStdout(),
			false,
			noHeaders,
			[]string{"NAME", "EMAIL", "CREDENTIAL_HELPER"},
			[][]string{{orDash(currentName), orDash(currentEmail), orDash(currentHelper)}},
		)
	},
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func init() {
	identityCmd.Flags().String("name", "", "set user.name for the vault repository")
	identityCmd.Flags().String("email", "", "set user.email for the vault repository")
	identityCmd.Flags().String("credential-helper", "", "set credential.helper for the vault repository")
	addNoHeadersFlag(identityCmd)
	rootCmd.AddCommand(identityCmd)
}
