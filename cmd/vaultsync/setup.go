// SPDX-License-Identifier: MIT
package vaultsync

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/skaphos/vaultsync/internal/config"
	"github.com/skaphos/vaultsync/internal/engine"
	"github.com/skaphos/vaultsync/internal/gitx"
	"github.com/skaphos/vaultsync/internal/history"
	"github.com/skaphos/vaultsync/internal/strutil"
	"github.com/skaphos/vaultsync/internal/vcs"
)

// appContext bundles the resolved vault, its configuration, and the
// adapter/engine wired from them. One is built per command invocation.
type appContext struct {
	vault   string
	cfgPath string
	cfg     config.Config
	adapter *vcs.GitAdapter
	eng     *engine.Engine
}

// resolveVaultDir picks the vault directory: -C/--dir, then the config's
// vault field, then the current directory.
func resolveVaultDir(cfg config.Config) (string, error) {
	if flagDir != "" {
		return filepath.Abs(flagDir)
	}
	if cfg.Vault != "" {
		return filepath.Abs(cfg.Vault)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return cwd, nil
}

// loadConfigForRun loads the resolved config, or defaults when no config
// file exists yet. Commands work out of the box on a plain git checkout.
func loadConfigForRun(cmd *cobra.Command) (config.Config, string, error) {
	cwd := flagDir
	if cwd == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			return config.Config{}, "", err
		}
	}
	cfgPath, err := config.ResolveConfigPath(flagConfig, cwd)
	if err != nil {
		return config.Config{}, "", err
	}
	if _, statErr := os.Stat(cfgPath); statErr != nil {
		if !os.IsNotExist(statErr) {
			return config.Config{}, "", statErr
		}
		debugf(cmd, "no config at %s, using defaults", cfgPath)
		return config.DefaultConfig(), cfgPath, nil
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	debugf(cmd, "using config %s", cfgPath)
	return *cfg, cfgPath, nil
}

// newApp builds the command's runtime context. Per-run flag overrides
// (--message, --exclude) are applied to the config snapshot before the
// engine sees it.
func newApp(cmd *cobra.Command) (*appContext, error) {
	cfg, cfgPath, err := loadConfigForRun(cmd)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Lookup("message") != nil {
		if message, _ := cmd.Flags().GetString("message"); message != "" {
			cfg.CommitMessage = message
		}
	}
	if cmd.Flags().Lookup("exclude") != nil {
		if raw, _ := cmd.Flags().GetString("exclude"); raw != "" {
			cfg.Exclude = append(cfg.Exclude, strutil.SplitCSV(raw)...)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	vault, err := resolveVaultDir(cfg)
	if err != nil {
		return nil, err
	}

	runner := &gitx.GitRunner{
		GitBin:  cfg.GitBin,
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
	adapter := vcs.NewGitAdapter(runner)
	adapter.Exclude = cfg.Exclude

	eng := engine.New(vault, cfg, adapter)
	eng.Logf = func(format string, args ...any) { debugf(cmd, format, args...) }

	return &appContext{
		vault:   vault,
		cfgPath: cfgPath,
		cfg:     cfg,
		adapter: adapter,
		eng:     eng,
	}, nil
}

// appendHistory persists one completed operation. History failures are
// logged, never fatal: the sync itself already happened.
func (a *appContext) appendHistory(cmd *cobra.Command, op string, record history.Record) {
	path, err := history.DefaultPath()
	if err != nil {
		debugf(cmd, "skip history append for %s: %v", op, err)
		return
	}
	log, err := history.Load(path)
	if err != nil {
		debugf(cmd, "skip history append for %s: %v", op, err)
		return
	}
	log.Append(record)
	if err := history.Save(log, path); err != nil {
		debugf(cmd, "skip history append for %s: %v", op, err)
	}
}

// lastSyncedLabel renders the newest history record for the vault.
func lastSyncedLabel(vault string) string {
	path, err := history.DefaultPath()
	if err != nil {
		return "-"
	}
	log, err := history.Load(path)
	if err != nil {
		return "-"
	}
	last := log.Last(vault)
	if last == nil {
		return "never"
	}
	outcome := "ok"
	if !last.OK {
		outcome = "failed"
	}
	return fmt.Sprintf("%s (%s)", last.At.Local().Format("2006-01-02 15:04"), outcome)
}
