// SPDX-License-Identifier: MIT
package vaultsync

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skaphos/vaultsync/internal/cliio"
	"github.com/skaphos/vaultsync/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap a VaultSync configuration",
	Long:  "Creates a VaultSync config file next to the vault (a .vaultsync.yaml dotfile in the current directory by default).",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		remoteURL, _ := cmd.Flags().GetString("remote")
		interval, _ := cmd.Flags().GetInt("interval")

		cwd := flagDir
		if cwd == "" {
			var err error
			cwd, err = os.Getwd()
			if err != nil {
				return err
			}
		}

		cfgPath, err := config.InitConfigPath(flagConfig, cwd)
		if err != nil {
			return err
		}
		if _, err := os.Stat(cfgPath); err == nil && !force {
			confirmed, err := cliio.PromptOverwrite(cmd.ErrOrStderr(), cmd.InOrStdin(), cfgPath)
			if err != nil {
				return err
			}
			if !confirmed {
				infof(cmd, "init cancelled")
				return nil
			}
		}

		cfg := config.DefaultConfig()
		cfg.RemoteURL = remoteURL
		if interval > 0 {
			cfg.AutoSync.IntervalMinutes = interval
		}
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote config to %s\n", cfgPath); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	initCmd.Flags().Bool("force", false, "overwrite existing config without prompting")
	initCmd.Flags().String("remote", "", "declare the expected remote URL for drift checks")
	initCmd.Flags().Int("interval", 0, "auto-sync interval in minutes (default from config)")

	rootCmd.AddCommand(initCmd)
}
