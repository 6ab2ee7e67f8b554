// Package config handles loading, saving, and resolving the VaultSync
// configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.yaml.in/yaml/v3"

	"github.com/skaphos/vaultsync/internal/commitmsg"
)

const (
	// LocalConfigFilename is the per-vault VaultSync config file.
	LocalConfigFilename = ".vaultsync.yaml"
	// ConfigAPIVersion is the current config schema apiVersion.
	ConfigAPIVersion = "skaphos.io/vaultsync/v1beta1"
	// ConfigKind is the current config schema kind.
	ConfigKind = "VaultSyncConfig"
)

// AutoSync holds the unattended-sync settings.
type AutoSync struct {
	// Enabled arms the periodic full-sync timer.
	Enabled bool `yaml:"enabled"`
	// IntervalMinutes is the timer period. Values below 1 are clamped to 1.
	IntervalMinutes int `yaml:"interval_minutes"`
	// PullOnStartup issues one pull-only before the timer is armed.
	PullOnStartup bool `yaml:"pull_on_startup"`
	// SyncOnChange triggers a sync after the working tree quiets down.
	SyncOnChange bool `yaml:"sync_on_change"`
	// ChangeDebounceSeconds is the quiet period for change-triggered sync.
	ChangeDebounceSeconds int `yaml:"change_debounce_seconds"`
}

// Display holds settings consumed by status-display collaborators. The
// sync engine itself never reads them.
type Display struct {
	StatusBar     bool `yaml:"status_bar"`
	Notifications bool `yaml:"notifications"`
}

// Config is the per-vault VaultSync configuration.
type Config struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	// Vault is the synced directory. Empty means the directory the CLI
	// runs in (or the one named with -C).
	Vault string `yaml:"vault,omitempty"`
	// GitBin overrides the backend binary path. Empty resolves "git" via
	// the OS search path.
	GitBin string `yaml:"git_bin,omitempty"`
	// RemoteURL is the declared primary remote, used for drift checks
	// against the repository's actual remotes.
	RemoteURL string `yaml:"remote_url,omitempty"`
	// CommitMessage is the commit-message template. See commitmsg for the
	// supported tokens.
	CommitMessage string `yaml:"commit_message"`
	// Exclude lists glob patterns (*, **, ?) never staged by sync.
	Exclude  []string `yaml:"exclude"`
	AutoSync AutoSync `yaml:"auto_sync"`
	Display  Display  `yaml:"display"`
	// TimeoutSeconds bounds each backend invocation.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// DefaultConfig returns a Config with sensible defaults applied.
func DefaultConfig() Config {
	return Config{
		APIVersion:    ConfigAPIVersion,
		Kind:          ConfigKind,
		CommitMessage: commitmsg.DefaultTemplate,
		Exclude:       []string{".obsidian/workspace*", ".trash/**", "**/*.tmp"},
		AutoSync: AutoSync{
			Enabled:               true,
			IntervalMinutes:       10,
			PullOnStartup:         true,
			SyncOnChange:          false,
			ChangeDebounceSeconds: 30,
		},
		Display: Display{
			StatusBar:     true,
			Notifications: true,
		},
		TimeoutSeconds: 120,
	}
}

// Validate checks field values beyond GVK: interval floor, debounce sign,
// and exclusion glob syntax.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.AutoSync.IntervalMinutes < 1 {
		return fmt.Errorf("auto_sync.interval_minutes must be at least 1, got %d", c.AutoSync.IntervalMinutes)
	}
	if c.AutoSync.ChangeDebounceSeconds < 0 {
		return fmt.Errorf("auto_sync.change_debounce_seconds must not be negative, got %d", c.AutoSync.ChangeDebounceSeconds)
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative, got %d", c.TimeoutSeconds)
	}
	for _, pattern := range c.Exclude {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
			return fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	return nil
}

// ConfigDir returns the platform-appropriate config directory path.
// It checks, in order: the override parameter, VAULTSYNC_CONFIG env var,
// and finally os.UserConfigDir()/vaultsync.
func ConfigDir(override string) (string, error) {
	if override != "" {
		if isConfigFilePath(override) {
			return filepath.Dir(override), nil
		}
		return override, nil
	}

	if env := os.Getenv("VAULTSYNC_CONFIG"); env != "" {
		if isConfigFilePath(env) {
			return filepath.Dir(env), nil
		}
		return env, nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "vaultsync"), nil
}

// ConfigPath resolves the config file path from override/env/defaults.
func ConfigPath(override string) (string, error) {
	if override != "" {
		if isConfigFilePath(override) {
			return override, nil
		}
		return filepath.Join(override, "config.yaml"), nil
	}

	if env := os.Getenv("VAULTSYNC_CONFIG"); env != "" {
		if isConfigFilePath(env) {
			return env, nil
		}
		return filepath.Join(env, "config.yaml"), nil
	}

	dir, err := ConfigDir("")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// InitConfigPath resolves where "vaultsync init" should write config.
// Order: explicit override, VAULTSYNC_CONFIG, then local dotfile in cwd.
func InitConfigPath(override, cwd string) (string, error) {
	if override != "" || os.Getenv("VAULTSYNC_CONFIG") != "" {
		return ConfigPath(override)
	}

	if strings.TrimSpace(cwd) == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(cwd, LocalConfigFilename), nil
}

// ResolveConfigPath resolves config for runtime commands.
// Order: explicit override, VAULTSYNC_CONFIG, nearest local dotfile in
// cwd/parents, then global platform config path.
func ResolveConfigPath(override, cwd string) (string, error) {
	if override != "" || os.Getenv("VAULTSYNC_CONFIG") != "" {
		return ConfigPath(override)
	}

	if strings.TrimSpace(cwd) == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}

	localPath, err := FindNearestConfigPath(cwd)
	if err != nil {
		return "", err
	}
	if localPath != "" {
		return localPath, nil
	}

	return ConfigPath("")
}

// FindNearestConfigPath searches cwd and each parent directory for
// .vaultsync.yaml. It returns an empty string when no local config file
// is found.
func FindNearestConfigPath(cwd string) (string, error) {
	dir := cwd
	for {
		candidate := filepath.Join(dir, LocalConfigFilename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if err != nil && !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// ConfigRoot returns the effective default vault root for a config file
// path: the directory holding the file.
func ConfigRoot(configPath string) string {
	if strings.TrimSpace(configPath) == "" {
		return ""
	}
	return filepath.Clean(filepath.Dir(configPath))
}

// Load reads the config file from the given path, applies defaults for
// absent fields, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigGVK(&cfg)
	if err := validateConfigGVK(&cfg); err != nil {
		return nil, err
	}

	if cfg.AutoSync.IntervalMinutes == 0 {
		cfg.AutoSync.IntervalMinutes = DefaultConfig().AutoSync.IntervalMinutes
	}
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = DefaultConfig().TimeoutSeconds
	}
	if strings.TrimSpace(cfg.CommitMessage) == "" {
		cfg.CommitMessage = commitmsg.DefaultTemplate
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the config to the given path.
func Save(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	applyConfigGVK(cfg)
	if err := validateConfigGVK(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func isConfigFilePath(path string) bool {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, "config.yaml") || strings.HasSuffix(lower, "config.yml") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func applyConfigGVK(cfg *Config) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = ConfigAPIVersion
	}
	if strings.TrimSpace(cfg.Kind) == "" {
		cfg.Kind = ConfigKind
	}
}

func validateConfigGVK(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.APIVersion != ConfigAPIVersion {
		return fmt.Errorf("unsupported config apiVersion %q (expected %q)", cfg.APIVersion, ConfigAPIVersion)
	}
	if cfg.Kind != ConfigKind {
		return fmt.Errorf("unsupported config kind %q (expected %q)", cfg.Kind, ConfigKind)
	}
	return nil
}
