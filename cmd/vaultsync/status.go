// SPDX-License-Identifier: MIT
package vaultsync

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/skaphos/vaultsync/internal/config"
	"github.com/skaphos/vaultsync/internal/remotecheck"
	"github.com/skaphos/vaultsync/internal/tableutil"
	"github.com/skaphos/vaultsync/internal/termstyle"
)

// statusOutput is the stable shape for json/yaml status output.
type statusOutput struct {
	Vault     string   `json:"vault" yaml:"vault"`
	Branch    string   `json:"branch" yaml:"branch"`
	Upstream  string   `json:"upstream,omitempty" yaml:"upstream,omitempty"`
	Ahead     int      `json:"ahead" yaml:"ahead"`
	Behind    int      `json:"behind" yaml:"behind"`
	Staged    int      `json:"staged" yaml:"staged"`
	Modified  int      `json:"modified" yaml:"modified"`
	Untracked int      `json:"untracked" yaml:"untracked"`
	Conflicts []string `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
	Clean     bool     `json:"clean" yaml:"clean"`
	LastSync  string   `json:"last_sync" yaml:"last_sync"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the vault's repository state",
	RunE: func(cmd *cobra.Command, args []string) error {
		debugf(cmd, "starting status")
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		noHeaders, _ := cmd.Flags().GetBool("no-headers")
		reconcileRaw, _ := cmd.Flags().GetString("reconcile")
		reconcileMode, err := remotecheck.ParseReconcileMode(reconcileRaw)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if !app.adapter.IsAvailable(ctx) {
			return fmt.Errorf("version-control backend not found; install git or set git_bin")
		}
		if !app.adapter.IsRepository(ctx, app.vault) {
			return fmt.Errorf("%s is not a git repository; run `git init` or clone your vault first", app.vault)
		}
		status, err := app.adapter.Status(ctx, app.vault)
		if err != nil {
			return err
		}

		output := statusOutput{
			Vault:     app.vault,
			Branch:    status.Branch,
			Upstream:  status.Upstream,
			Ahead:     status.Ahead,
			Behind:    status.Behind,
			Staged:    len(status.Staged),
			Modified:  len(status.Modified),
			Untracked: len(status.Untracked),
			Conflicts: status.Conflicts,
			Clean:     status.Clean(),
			LastSync:  lastSyncedLabel(app.vault),
		}

		switch strings.ToLower(strings.TrimSpace(format)) {
		case "json":
			setColorOutputMode(cmd, format)
			data, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			logOutputWriteFailure(cmd, "status json", err)
		case "yaml":
			setColorOutputMode(cmd, format)
			data, err := yaml.Marshal(output)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
			logOutputWriteFailure(cmd, "status yaml", err)
		case "table":
			setColorOutputMode(cmd, format)
			logOutputWriteFailure(cmd, "status table", writeStatusTable(cmd, output, noHeaders))
		default:
			return fmt.Errorf("unsupported format %q", format)
		}

		reportRemoteDrift(cmd, app, reconcileMode)

		if len(status.Conflicts) > 0 {
			raiseExitCode(2)
		}
		debugf(cmd, "status completed")
		return nil
	},
}

func init() {
	addFormatFlag(statusCmd, "output format: table, json, or yaml")
	addNoHeadersFlag(statusCmd)
	statusCmd.Flags().String("reconcile", "none", "repair declared/live remote drift: none, config (adopt the live URL), or git (rewrite the git remote)")
	rootCmd.AddCommand(statusCmd)
}

func writeStatusTable(cmd *cobra.Command, output statusOutput, noHeaders bool) error {
	w := tableutil.New(cmd.OutOrStdout(), true)
	if err := tableutil.PrintHeaders(w, noHeaders, "BRANCH\tUPSTREAM\tAHEAD\tBEHIND\tDIRTY\tCONFLICTS\tLAST_SYNC"); err != nil {
		return err
	}

	branch := formatCell(output.Branch, adaptiveCellLimit(cmd, 0, 24, 16))
	upstream := output.Upstream
	if upstream == "" {
		upstream = "-"
	}

	dirtyCount := output.Staged + output.Modified + output.Untracked
	dirty := termstyle.Colorize(colorOutputEnabled, "no", termstyle.Healthy)
	if dirtyCount > 0 {
		dirty = termstyle.Colorize(colorOutputEnabled, fmt.Sprintf("yes (%d)", dirtyCount), termstyle.Warn)
	}
	conflicts := termstyle.Colorize(colorOutputEnabled, "none", termstyle.Healthy)
	if n := len(output.Conflicts); n > 0 {
		conflicts = termstyle.Colorize(colorOutputEnabled, fmt.Sprintf("%d", n), termstyle.Error)
	}

	if _, err := fmt.Fprintf(
		w,
		"%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
		branch,
		upstream,
		output.Ahead,
		output.Behind,
		dirty,
		conflicts,
		output.LastSync,
	); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, path := range output.Conflicts {
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "  conflict: %s\n", path); err != nil {
			return err
		}
	}
	return nil
}

// reportRemoteDrift compares the configured remote URL against the live
// remotes, warns on drift, and optionally repairs it in the requested
// direction. Unrepaired drift escalates the exit code; repaired drift
// does not.
func reportRemoteDrift(cmd *cobra.Command, app *appContext, mode remotecheck.ReconcileMode) {
	if app.cfg.RemoteURL == "" {
		return
	}
	remotes, err := app.adapter.Remotes(cmd.Context(), app.vault)
	if err != nil {
		debugf(cmd, "skip remote drift check: %v", err)
		return
	}
	finding := remotecheck.Check(app.cfg.RemoteURL, remotes)
	warning := remotecheck.Describe(finding)
	if warning == "" {
		return
	}
	infof(cmd, "warning: %s", warning)
	if mode == remotecheck.ReconcileNone || !finding.Mismatch() {
		raiseExitCode(1)
		return
	}

	declared, err := remotecheck.Reconcile(cmd.Context(), finding, mode, app.adapter, app.vault)
	if err != nil {
		infof(cmd, "reconcile failed: %v", err)
		raiseExitCode(1)
		return
	}
	switch mode {
	case remotecheck.ReconcileConfig:
		app.cfg.RemoteURL = declared
		if err := config.Save(&app.cfg, app.cfgPath); err != nil {
			infof(cmd, "reconcile failed: %v", err)
			raiseExitCode(1)
			return
		}
		infof(cmd, "updated %s: remote_url is now %s", app.cfgPath, declared)
	case remotecheck.ReconcileGit:
		name := finding.Remote
		if name == "" {
			name = "origin"
		}
		infof(cmd, "updated git remote %q to %s", name, declared)
	}
}

func formatCell(value string, max int) string {
	if max <= 0 || len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
