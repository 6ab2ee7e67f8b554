// SPDX-License-Identifier: MIT
package vaultsync

import (
	"fmt"

	"github.com/spf13/cobra"
)

var abortCmd = &cobra.Command{
	Use:   "abort",
	Short: "Back out of an in-progress merge or rebase",
	Long:  "Runs the explicit recovery step after a conflicted pull. Conflicts are never resolved automatically; this command discards the in-progress integration so the vault returns to its pre-pull state.",
	RunE: func(cmd *cobra.Command, args []string) error {
		mergeFlag, _ := cmd.Flags().GetBool("merge")
		rebaseFlag, _ := cmd.Flags().GetBool("rebase")
		if mergeFlag == rebaseFlag {
			return fmt.Errorf("specify exactly one of --merge or --rebase")
		}

		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if !app.adapter.IsRepository(ctx, app.vault) {
			return fmt.Errorf("%s is not a git repository", app.vault)
		}

		if mergeFlag {
			if err := app.adapter.AbortMerge(ctx, app.vault); err != nil {
				raiseExitCode(1)
				return fmt.Errorf("abort merge: %w", err)
			}
			infof(cmd, "merge aborted")
			return nil
		}
		if err := app.adapter.AbortRebase(ctx, app.vault); err != nil {
			raiseExitCode(1)
			return fmt.Errorf("abort rebase: %w", err)
		}
		infof(cmd, "rebase aborted")
		return nil
	},
}

func init() {
	abortCmd.Flags().Bool("merge", false, "abort an in-progress merge")
	abortCmd.Flags().Bool("rebase", false, "abort an in-progress rebase")
	rootCmd.AddCommand(abortCmd)
}
