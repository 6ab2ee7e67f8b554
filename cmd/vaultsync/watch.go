// SPDX-License-Identifier: MIT
package vaultsync

import (
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/skaphos/vaultsync/internal/model"
	"github.com/skaphos/vaultsync/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the sync automation in the foreground until interrupted",
	Long:  "Arms the periodic sync timer (plus the startup pull and, when sync_on_change is set, the filesystem watcher) and keeps syncing until SIGINT or SIGTERM.",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		logFile, _ := cmd.Flags().GetString("log-file")
		interval, _ := cmd.Flags().GetInt("interval")

		// Watch mode is automation: the timer runs even when the config
		// leaves auto-sync off for one-shot use.
		cfg := app.cfg
		cfg.AutoSync.Enabled = true
		if interval > 0 {
			cfg.AutoSync.IntervalMinutes = interval
		}

		logf := func(format string, args ...any) {
			infof(cmd, format, args...)
		}
		if logFile != "" {
			rotated := &lumberjack.Logger{
				Filename:   logFile,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
			}
			defer func() { _ = rotated.Close() }()
			fileLog := log.New(rotated, "", log.LstdFlags)
			logf = func(format string, args ...any) {
				fileLog.Printf(format, args...)
				debugf(cmd, format, args...)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		eng := app.eng
		eng.Logf = logf
		eng.OnPhase(func(phase model.SyncPhase, message string) {
			logf("%s: %s", phase, message)
		})
		eng.UpdateSettings(ctx, cfg)
		logf("watching %s (interval %dm)", app.vault, cfg.AutoSync.IntervalMinutes)

		var fsw *watcher.Watcher
		if cfg.AutoSync.SyncOnChange {
			debounce := time.Duration(cfg.AutoSync.ChangeDebounceSeconds) * time.Second
			fsw, err = watcher.New(app.vault, debounce, cfg.Exclude, func(paths []string) {
				logf("change detected: %d path(s)", len(paths))
				verdict := eng.Sync(ctx)
				if verdict.Busy {
					// The next quiet period retries; nothing was lost.
					return
				}
				if !verdict.OK {
					logf("change-triggered sync failed: %s", verdict.Message)
				}
			})
			if err != nil {
				eng.Stop()
				return err
			}
			fsw.Logf = logf
			if err := fsw.Start(); err != nil {
				eng.Stop()
				return fmt.Errorf("start filesystem watcher: %w", err)
			}
			logf("filesystem watcher armed (debounce %ds)", cfg.AutoSync.ChangeDebounceSeconds)
		}

		<-ctx.Done()
		if fsw != nil {
			fsw.Stop()
		}
		eng.Stop()
		infof(cmd, "watch stopped")
		return nil
	},
}

func init() {
	watchCmd.Flags().String("log-file", "", "append automation logs to this file (size-rotated)")
	watchCmd.Flags().Int("interval", 0, "override the sync interval in minutes for this run")
	addSyncOpFlags(watchCmd)
	rootCmd.AddCommand(watchCmd)
}
