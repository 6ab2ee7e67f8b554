// SPDX-License-Identifier: MIT
package vaultsync

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/skaphos/vaultsync/internal/history"
	"github.com/skaphos/vaultsync/internal/model"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull remote changes, then commit and push local edits",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEngineOp(cmd, "sync")
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Integrate remote changes without pushing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEngineOp(cmd, "pull")
	},
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Commit local edits and push without pulling first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEngineOp(cmd, "push")
	},
}

func init() {
	for _, cmd := range []*cobra.Command{syncCmd, pullCmd, pushCmd} {
		addSyncOpFlags(cmd)
		rootCmd.AddCommand(cmd)
	}
}

// runEngineOp runs one top-level engine operation, streams its phase
// transitions, prints the verdict, and appends the outcome to history.
func runEngineOp(cmd *cobra.Command, op string) error {
	debugf(cmd, "starting %s", op)
	app, err := newApp(cmd)
	if err != nil {
		return err
	}

	app.eng.OnPhase(func(phase model.SyncPhase, message string) {
		infof(cmd, "%s: %s", phase, message)
	})

	var verdict model.SyncVerdict
	switch op {
	case "sync":
		verdict = app.eng.Sync(cmd.Context())
	case "pull":
		verdict = app.eng.Pull(cmd.Context())
	case "push":
		verdict = app.eng.Push(cmd.Context())
	default:
		return fmt.Errorf("unknown operation %q", op)
	}

	writeVerdict(cmd, verdict)
	switch {
	case verdict.Busy:
		raiseExitCode(1)
		return nil
	case verdict.Conflicted():
		raiseExitCode(2)
	case !verdict.OK:
		raiseExitCode(1)
	}
	app.appendHistory(cmd, op, history.FromVerdict(app.vault, op, time.Now(), verdict))
	return nil
}

func writeVerdict(cmd *cobra.Command, v model.SyncVerdict) {
	out := cmd.OutOrStdout()
	switch {
	case v.Conflicted():
		_, err := fmt.Fprintln(out, v.Message)
		logOutputWriteFailure(cmd, "verdict", err)
		for _, path := range v.Conflicts {
			_, err := fmt.Fprintf(out, "  conflict: %s\n", path)
			logOutputWriteFailure(cmd, "verdict conflict path", err)
		}
		infof(cmd, "resolve the files above, or run `vaultsync abort` to back out")
	case !v.OK:
		_, err := fmt.Fprintln(out, v.Message)
		logOutputWriteFailure(cmd, "verdict", err)
		if v.ErrorClass != "" {
			debugf(cmd, "error class: %s", v.ErrorClass)
		}
	default:
		_, err := fmt.Fprintln(out, v.Message)
		logOutputWriteFailure(cmd, "verdict", err)
	}
}
