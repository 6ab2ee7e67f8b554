// Package model defines the core data types used throughout VaultSync.
package model

import "time"

// DetachedBranch is the sentinel branch name reported while HEAD is not on
// a named branch.
const DetachedBranch = "(detached)"

// Remote represents a single git remote.
type Remote struct {
	// Name is the configured remote name (for example, "origin").
	Name string `json:"name" yaml:"name"`
	// URL is the remote fetch/push URL.
	URL string `json:"url" yaml:"url"`
}

// RepositoryStatus is a snapshot of the working tree at one instant. It is
// recomputed on every query and never cached across calls.
type RepositoryStatus struct {
	// Branch is the current branch name, or DetachedBranch when HEAD is
	// not on a named branch.
	Branch string `json:"branch" yaml:"branch"`
	// Ahead is the count of local commits not on the upstream. Zero when
	// no upstream is configured.
	Ahead int `json:"ahead" yaml:"ahead"`
	// Behind is the count of upstream commits not present locally. Zero
	// when no upstream is configured.
	Behind int `json:"behind" yaml:"behind"`
	// Staged lists repo-relative paths with index changes.
	Staged []string `json:"staged" yaml:"staged"`
	// Modified lists repo-relative paths with work-tree changes.
	Modified []string `json:"modified" yaml:"modified"`
	// Untracked lists repo-relative paths not known to the index.
	Untracked []string `json:"untracked" yaml:"untracked"`
	// Conflicts lists repo-relative paths in an unmerged state. A
	// conflicted path never appears in the other three lists.
	Conflicts []string `json:"conflicts" yaml:"conflicts"`
	// Upstream is the tracked upstream ref (for example, "origin/main"),
	// empty when the branch tracks nothing.
	Upstream string `json:"upstream,omitempty" yaml:"upstream,omitempty"`
}

// Clean reports whether the working tree has no staged, modified,
// untracked, or conflicted entries.
func (s RepositoryStatus) Clean() bool {
	return len(s.Staged) == 0 && len(s.Modified) == 0 &&
		len(s.Untracked) == 0 && len(s.Conflicts) == 0
}

// HasUpstream reports whether the current branch tracks an upstream.
func (s RepositoryStatus) HasUpstream() bool { return s.Upstream != "" }

// SyncPhase enumerates the engine's externally visible states. Phases are
// emitted as a push stream, never polled.
type SyncPhase string

const (
	PhaseIdle       SyncPhase = "idle"
	PhasePulling    SyncPhase = "pulling"
	PhasePushing    SyncPhase = "pushing"
	PhaseCommitting SyncPhase = "committing"
	PhaseConflict   SyncPhase = "conflict"
	PhaseError      SyncPhase = "error"
	PhaseSuccess    SyncPhase = "success"
)

// SyncVerdict is the outcome of one top-level orchestrated operation
// (full sync, pull-only, or commit-and-push). It is retained as the
// engine's last result until superseded.
type SyncVerdict struct {
	// OK is true when the operation completed without failure. A trivial
	// no-op (nothing to pull, nothing to push) is still OK.
	OK bool `json:"ok" yaml:"ok"`
	// Busy is true when the operation was rejected because another one
	// held the single-flight lock. Busy verdicts never alter engine state.
	Busy bool `json:"busy,omitempty" yaml:"busy,omitempty"`
	// Message is a short human-readable summary.
	Message string `json:"message" yaml:"message"`
	// Pulled is the number of files changed by the pull step.
	Pulled int `json:"pulled" yaml:"pulled"`
	// Pushed is the number of commits sent by the push step.
	Pushed int `json:"pushed" yaml:"pushed"`
	// Conflicts lists the unmerged paths when the outcome is
	// conflict-blocked.
	Conflicts []string `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
	// ErrorClass is a coarse category for failures (for example,
	// auth_https/auth_ssh/network), empty on success.
	ErrorClass string `json:"error_class,omitempty" yaml:"error_class,omitempty"`
}

// Conflicted reports whether the verdict is conflict-blocked.
func (v SyncVerdict) Conflicted() bool { return len(v.Conflicts) > 0 }

// LastSync records when the engine last completed a top-level operation
// and with what verdict.
type LastSync struct {
	// At is the completion timestamp.
	At time.Time `json:"at" yaml:"at"`
	// Verdict is the recorded outcome.
	Verdict SyncVerdict `json:"verdict" yaml:"verdict"`
}
