// SPDX-License-Identifier: MIT
// Package history handles persistence of per-vault sync outcomes: an
// append-capped log of what each operation transferred and how it ended.
package history

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/skaphos/vaultsync/internal/model"
)

// maxRecords caps the log; Append drops the oldest records past it.
const maxRecords = 200

// Record is one completed top-level operation.
type Record struct {
	ID         string    `yaml:"id"`
	At         time.Time `yaml:"at"`
	Vault      string    `yaml:"vault"`
	Op         string    `yaml:"op"` // sync | pull | push
	OK         bool      `yaml:"ok"`
	Message    string    `yaml:"message,omitempty"`
	Pulled     int       `yaml:"pulled,omitempty"`
	Pushed     int       `yaml:"pushed,omitempty"`
	Conflicts  []string  `yaml:"conflicts,omitempty"`
	ErrorClass string    `yaml:"error_class,omitempty"`
}

// History is the persisted log, newest record last.
type History struct {
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
	Records   []Record  `yaml:"records"`
}

// FromVerdict builds a record from an operation's verdict. Busy
// rejections are not recordable and should never reach this.
func FromVerdict(vault, op string, at time.Time, v model.SyncVerdict) Record {
	return Record{
		ID:         uuid.NewString(),
		At:         at,
		Vault:      vault,
		Op:         op,
		OK:         v.OK,
		Message:    v.Message,
		Pulled:     v.Pulled,
		Pushed:     v.Pushed,
		Conflicts:  v.Conflicts,
		ErrorClass: v.ErrorClass,
	}
}

// DefaultPath returns the per-user history file location.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "vaultsync", "history.yaml"), nil
}

// Load reads a history file from the given path. A missing file is an
// empty history, not an error.
func Load(path string) (*History, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &History{}, nil
	}
	if err != nil {
		return nil, err
	}
	var h History
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Save writes the history to the given path.
func Save(h *History, path string) error {
	if h == nil {
		return errors.New("history is nil")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(h)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Append adds a record, filling a missing ID, and trims the log to the
// record cap, dropping the oldest first.
func (h *History) Append(record Record) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	h.Records = append(h.Records, record)
	if len(h.Records) > maxRecords {
		h.Records = h.Records[len(h.Records)-maxRecords:]
	}
	h.UpdatedAt = record.At
}

// Prune removes records older than the given threshold and reports how
// many were dropped.
func (h *History) Prune(olderThan time.Duration) int {
	if olderThan <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-olderThan)
	var kept []Record
	pruned := 0
	for _, record := range h.Records {
		if record.At.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, record)
	}
	h.Records = kept
	return pruned
}

// Last returns the newest record for the vault, or nil. An empty vault
// matches any record.
func (h *History) Last(vault string) *Record {
	for i := len(h.Records) - 1; i >= 0; i-- {
		if vault == "" || h.Records[i].Vault == vault {
			return &h.Records[i]
		}
	}
	return nil
}

// ForVault returns the records for one vault, oldest first.
func (h *History) ForVault(vault string) []Record {
	var out []Record
	for _, record := range h.Records {
		if record.Vault == vault {
			out = append(out, record)
		}
	}
	return out
}
