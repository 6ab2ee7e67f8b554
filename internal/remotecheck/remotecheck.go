// SPDX-License-Identifier: MIT
// Package remotecheck compares the remote URL declared in the vault
// configuration against the repository's live remotes, and can reconcile
// a drift in either direction.
package remotecheck

import (
	"context"
	"fmt"
	"strings"

	"github.com/skaphos/vaultsync/internal/gitx"
	"github.com/skaphos/vaultsync/internal/model"
	"github.com/skaphos/vaultsync/internal/vcs"
)

// Outcome classifies the declared-vs-live comparison.
type Outcome string

const (
	// OutcomeUnchecked means no URL is declared; there is nothing to
	// compare against.
	OutcomeUnchecked Outcome = "unchecked"
	// OutcomeMatch means the declared URL and the primary remote agree.
	OutcomeMatch Outcome = "match"
	// OutcomeMismatch means they disagree.
	OutcomeMismatch Outcome = "mismatch"
	// OutcomeNoRemote means a URL is declared but the repository has no
	// remotes at all.
	OutcomeNoRemote Outcome = "no-remote"
)

// ReconcileMode controls which side of a mismatch gets rewritten.
type ReconcileMode string

const (
	ReconcileNone ReconcileMode = "none"
	// ReconcileConfig rewrites the declared URL to the live remote.
	ReconcileConfig ReconcileMode = "config"
	// ReconcileGit rewrites the git remote to the declared URL.
	ReconcileGit ReconcileMode = "git"
)

// ParseReconcileMode validates and parses a reconcile mode flag value.
func ParseReconcileMode(raw string) (ReconcileMode, error) {
	mode := ReconcileMode(strings.ToLower(strings.TrimSpace(raw)))
	switch mode {
	case "", ReconcileNone:
		return ReconcileNone, nil
	case ReconcileConfig, ReconcileGit:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported --reconcile value %q (expected none, config, or git)", raw)
	}
}

// Finding is the result of one comparison.
type Finding struct {
	Outcome Outcome
	// Remote is the primary remote's name, "" when none exists.
	Remote string
	// LiveURL is the primary remote's URL, "" when none exists.
	LiveURL string
	// DeclaredURL is the configured URL, "" when undeclared.
	DeclaredURL string
	// Extras lists further remotes beyond the primary one.
	Extras []string
}

// Mismatch reports whether the finding needs attention.
func (f Finding) Mismatch() bool {
	return f.Outcome == OutcomeMismatch || f.Outcome == OutcomeNoRemote
}

// Check compares the declared URL against the repository's remotes.
// Comparison happens on normalized identities, so two spellings of the
// same remote never report drift.
func Check(declaredURL string, remotes []model.Remote) Finding {
	names := make([]string, 0, len(remotes))
	for _, remote := range remotes {
		names = append(names, remote.Name)
	}
	primary := gitx.PrimaryRemote(names)

	finding := Finding{
		Remote:      primary,
		DeclaredURL: strings.TrimSpace(declaredURL),
	}
	for _, remote := range remotes {
		if remote.Name == primary {
			finding.LiveURL = strings.TrimSpace(remote.URL)
		} else {
			finding.Extras = append(finding.Extras, remote.Name)
		}
	}

	switch {
	case finding.DeclaredURL == "":
		finding.Outcome = OutcomeUnchecked
	case primary == "":
		finding.Outcome = OutcomeNoRemote
	case gitx.NormalizeURL(finding.DeclaredURL) == gitx.NormalizeURL(finding.LiveURL):
		finding.Outcome = OutcomeMatch
	default:
		finding.Outcome = OutcomeMismatch
	}
	return finding
}

// Reconcile applies the chosen direction to a mismatched finding. Config
// mode returns the URL the configuration should declare; git mode
// rewrites (or creates) the repository remote. Non-mismatch findings are
// no-ops.
func Reconcile(ctx context.Context, finding Finding, mode ReconcileMode, adapter vcs.Adapter, dir string) (string, error) {
	if !finding.Mismatch() || mode == ReconcileNone {
		return finding.DeclaredURL, nil
	}
	switch mode {
	case ReconcileConfig:
		if finding.LiveURL == "" {
			return finding.DeclaredURL, fmt.Errorf("no live remote URL to adopt")
		}
		return finding.LiveURL, nil
	case ReconcileGit:
		if adapter == nil {
			return finding.DeclaredURL, fmt.Errorf("adapter is required for git remote reconciliation")
		}
		if finding.Remote == "" {
			if err := adapter.AddRemote(ctx, dir, "origin", finding.DeclaredURL); err != nil {
				return finding.DeclaredURL, fmt.Errorf("git remote add origin %q: %w", finding.DeclaredURL, err)
			}
			return finding.DeclaredURL, nil
		}
		if err := adapter.SetRemoteURL(ctx, dir, finding.Remote, finding.DeclaredURL); err != nil {
			return finding.DeclaredURL, fmt.Errorf("git remote set-url %q %q: %w", finding.Remote, finding.DeclaredURL, err)
		}
		return finding.DeclaredURL, nil
	}
	return finding.DeclaredURL, nil
}

// Describe renders a one-line warning for a finding that needs attention,
// or "" when nothing does.
func Describe(f Finding) string {
	switch f.Outcome {
	case OutcomeMismatch:
		return fmt.Sprintf("remote %q points at %s, but the configuration declares %s", f.Remote, f.LiveURL, f.DeclaredURL)
	case OutcomeNoRemote:
		return fmt.Sprintf("configuration declares %s, but the repository has no remotes", f.DeclaredURL)
	}
	return ""
}
