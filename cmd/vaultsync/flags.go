package vaultsync

import "github.com/spf13/cobra"

const noHeadersUsage = "when using table format, do not print headers"

func addFormatFlag(cmd *cobra.Command, usage string) {
	cmd.Flags().StringP("format", "o", "table", usage)
}

func addNoHeadersFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("no-headers", false, noHeadersUsage)
}

func addSyncOpFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("message", "m", "", "override the commit message template for this run")
	cmd.Flags().String("exclude", "", "comma-separated extra exclude globs for this run")
}
