// Package gitx provides helpers for executing git commands and parsing
// their output. It shells out to the installed git binary.
package gitx

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/skaphos/vaultsync/internal/model"
)

const (
	// DefaultTimeout bounds one git invocation's wall-clock time when the
	// caller's context carries no earlier deadline.
	DefaultTimeout = 120 * time.Second
	// DefaultMaxOutput caps the bytes captured per stream for one
	// invocation.
	DefaultMaxOutput int64 = 50 * 1024 * 1024
)

// Runner executes git commands in a given working directory.
// This interface allows mocking in tests.
type Runner interface {
	// Run executes a git command in the given directory and returns
	// trimmed stdout. Failures are reported as *CommandError.
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// GitRunner is the default Runner implementation that shells out to git.
// Exactly one subprocess is spawned per call and nothing is retried at
// this layer; retry policy belongs to callers.
type GitRunner struct {
	// GitBin is the path to the git binary. Defaults to "git".
	GitBin string
	// Timeout bounds each invocation. Defaults to DefaultTimeout. Not
	// applied when the caller's context already has an earlier deadline.
	Timeout time.Duration
	// MaxOutput caps captured bytes per stream. Defaults to
	// DefaultMaxOutput.
	MaxOutput int64
}

// Run executes a git command with stdout and stderr captured separately.
func (g *GitRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	bin := g.GitBin
	if bin == "" {
		bin = "git"
	}
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	limit := g.MaxOutput
	if limit <= 0 {
		limit = DefaultMaxOutput
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	if strings.TrimSpace(dir) != "" {
		cmd.Dir = dir
	}
	stdout := &boundedBuffer{limit: limit}
	stderr := &boundedBuffer{limit: limit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	runErr := cmd.Run()
	out := strings.TrimSpace(stdout.String())
	if runErr == nil && !stdout.truncated && !stderr.truncated {
		return out, nil
	}

	cmdErr := &CommandError{
		Bin:      bin,
		Args:     args,
		ExitCode: -1,
		Stdout:   out,
		Stderr:   strings.TrimSpace(stderr.String()),
		cause:    runErr,
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		cmdErr.ExitCode = exitErr.ExitCode()
	}
	// The kill signal from an expired context is less useful to callers
	// than the deadline itself.
	if ctxErr := ctx.Err(); ctxErr != nil {
		cmdErr.cause = ctxErr
	}
	if stdout.truncated || stderr.truncated {
		cmdErr.Truncated = true
		if cmdErr.cause == nil {
			cmdErr.cause = ErrOutputOverflow
		}
	}
	return out, cmdErr
}

// boundedBuffer stores writes up to limit bytes and silently discards the
// rest, so a chatty subprocess is drained instead of deadlocked on a full
// pipe.
type boundedBuffer struct {
	buf       strings.Builder
	limit     int64
	truncated bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	remaining := b.limit - int64(b.buf.Len())
	if remaining <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if int64(len(p)) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *boundedBuffer) String() string { return b.buf.String() }

// IsAvailable probes for a working git binary, independent of any
// repository. Unavailability is a boolean, never an error.
func IsAvailable(ctx context.Context, r Runner) bool {
	_, err := r.Run(ctx, "", "version")
	return err == nil
}

// IsRepo checks whether the given path is inside a git working tree.
func IsRepo(ctx context.Context, r Runner, dir string) (bool, error) {
	out, err := r.Run(ctx, dir, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return false, nil
	}
	return strings.TrimSpace(out) == "true", nil
}

// Head returns the current branch name and detached state.
func Head(ctx context.Context, r Runner, dir string) (string, bool, error) {
	out, err := r.Run(ctx, dir, "symbolic-ref", "--quiet", "--short", "HEAD")
	if err != nil {
		// Detached HEAD — fall back to the commit hash for display.
		hash, hashErr := r.Run(ctx, dir, "rev-parse", "--short", "HEAD")
		if hashErr != nil {
			return model.DetachedBranch, true, nil
		}
		return strings.TrimSpace(hash), true, nil
	}
	return strings.TrimSpace(out), false, nil
}

// Status runs the combined status+branch query and parses it into the
// typed snapshot.
func Status(ctx context.Context, r Runner, dir string) (model.RepositoryStatus, error) {
	out, err := r.Run(ctx, dir, "status", "--porcelain", "-b")
	if err != nil {
		return model.RepositoryStatus{}, fmt.Errorf("git status: %w", err)
	}
	return ParseStatus(out), nil
}

// UnmergedPaths lists conflicted paths via the unmerged diff filter. It is
// cheaper than a full status parse.
func UnmergedPaths(ctx context.Context, r Runner, dir string) ([]string, error) {
	out, err := r.Run(ctx, dir, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, fmt.Errorf("git diff --diff-filter=U: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return nil, nil
	}
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

// Remotes returns all configured remotes, in configuration order.
func Remotes(ctx context.Context, r Runner, dir string) ([]model.Remote, error) {
	out, err := r.Run(ctx, dir, "remote")
	if err != nil {
		return nil, fmt.Errorf("git remote: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return nil, nil
	}
	var remotes []model.Remote
	for _, name := range strings.Split(strings.TrimSpace(out), "\n") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		url, err := r.Run(ctx, dir, "remote", "get-url", name)
		if err != nil {
			continue
		}
		remotes = append(remotes, model.Remote{
			Name: name,
			URL:  strings.TrimSpace(url),
		})
	}
	return remotes, nil
}

// RemoteURL returns the fetch URL of one named remote.
func RemoteURL(ctx context.Context, r Runner, dir, remote string) (string, error) {
	out, err := r.Run(ctx, dir, "remote", "get-url", remote)
	if err != nil {
		return "", fmt.Errorf("git remote get-url %s: %w", remote, err)
	}
	return strings.TrimSpace(out), nil
}

// Upstream returns the upstream ref of the current branch, or
// ErrNoUpstream when the branch tracks nothing.
func Upstream(ctx context.Context, r Runner, dir string) (string, error) {
	out, err := r.Run(ctx, dir, "rev-parse", "--abbrev-ref", "@{upstream}")
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) {
			msg := strings.ToLower(cmdErr.Stderr)
			// The third form covers a configured upstream whose remote
			// branch has been deleted.
			if strings.Contains(msg, "no upstream configured") ||
				strings.Contains(msg, "does not point to a branch") ||
				(strings.Contains(msg, "upstream") && strings.Contains(msg, "does not exist")) {
				return "", ErrNoUpstream
			}
		}
		return "", fmt.Errorf("git rev-parse @{upstream}: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Fetch updates tracking refs from the named remote, with submodule
// recursion disabled.
func Fetch(ctx context.Context, r Runner, dir, remote string) error {
	_, err := r.Run(ctx, dir, "-c", "fetch.recurseSubmodules=false", "fetch", "--prune", "--no-recurse-submodules", remote)
	return err
}

// PullRebase integrates remote changes with rebase-style integration and
// returns the backend's change summary for file-list parsing.
func PullRebase(ctx context.Context, r Runner, dir, remote string) (string, error) {
	out, err := r.Run(ctx, dir, "pull", "--rebase", remote)
	return out, err
}

// Push sends committed work to the named remote.
func Push(ctx context.Context, r Runner, dir, remote string) error {
	_, err := r.Run(ctx, dir, "push", remote)
	return err
}

// PushSetUpstream pushes and records the upstream for branches that track
// nothing yet.
func PushSetUpstream(ctx context.Context, r Runner, dir, remote, branch string) error {
	_, err := r.Run(ctx, dir, "push", "--set-upstream", remote, branch)
	return err
}

// StageAll stages every change in the working tree. Paths matching an
// exclusion pattern are left alone via pathspec magic.
func StageAll(ctx context.Context, r Runner, dir string, excludes []string) error {
	args := []string{"add", "--all"}
	if len(excludes) > 0 {
		args = append(args, "--", ".")
		for _, pattern := range excludes {
			args = append(args, ":(exclude,glob)"+pattern)
		}
	}
	_, err := r.Run(ctx, dir, args...)
	return err
}

// Commit records staged changes. The backend's "nothing to commit"
// condition is reported as ErrNothingToCommit so callers can treat it as a
// successful no-op.
func Commit(ctx context.Context, r Runner, dir, message string) error {
	_, err := r.Run(ctx, dir, "commit", "-m", message)
	if err == nil {
		return nil
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		msg := strings.ToLower(cmdErr.Stdout + "\n" + cmdErr.Stderr)
		if strings.Contains(msg, "nothing to commit") ||
			strings.Contains(msg, "nothing added to commit") ||
			strings.Contains(msg, "no changes added to commit") {
			return ErrNothingToCommit
		}
	}
	return err
}

// StashPush sets uncommitted tracked changes aside. Returns false when
// there was nothing to stash.
func StashPush(ctx context.Context, r Runner, dir, message string) (bool, error) {
	out, err := r.Run(ctx, dir, "stash", "push", "-m", message)
	if err != nil {
		return false, err
	}
	if strings.Contains(strings.ToLower(out), "no local changes to save") {
		return false, nil
	}
	return true, nil
}

// StashPop restores the most recent stash. A conflicted restore is
// reported as ErrStashPopConflict, never swallowed.
func StashPop(ctx context.Context, r Runner, dir string) error {
	_, err := r.Run(ctx, dir, "stash", "pop")
	if err == nil {
		return nil
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		msg := strings.ToUpper(cmdErr.Stdout + "\n" + cmdErr.Stderr)
		if strings.Contains(msg, "CONFLICT") {
			return ErrStashPopConflict
		}
	}
	return err
}

// AbortMerge abandons an in-progress merge.
func AbortMerge(ctx context.Context, r Runner, dir string) error {
	_, err := r.Run(ctx, dir, "merge", "--abort")
	return err
}

// AbortRebase abandons an in-progress rebase.
func AbortRebase(ctx context.Context, r Runner, dir string) error {
	_, err := r.Run(ctx, dir, "rebase", "--abort")
	return err
}

// ConfigGet reads one configuration value. An unset key yields an empty
// string, not an error.
func ConfigGet(ctx context.Context, r Runner, dir, key string) (string, error) {
	out, err := r.Run(ctx, dir, "config", "--get", key)
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && cmdErr.ExitCode == 1 && cmdErr.Stderr == "" {
			return "", nil
		}
		return "", fmt.Errorf("git config --get %s: %w", key, err)
	}
	return strings.TrimSpace(out), nil
}

// ConfigSet writes one configuration value.
func ConfigSet(ctx context.Context, r Runner, dir, key, value string) error {
	_, err := r.Run(ctx, dir, "config", key, value)
	return err
}

// SetRemoteURL rewrites the URL of an existing remote.
func SetRemoteURL(ctx context.Context, r Runner, dir, remote, url string) error {
	_, err := r.Run(ctx, dir, "remote", "set-url", remote, url)
	return err
}

// AddRemote configures a new remote.
func AddRemote(ctx context.Context, r Runner, dir, remote, url string) error {
	_, err := r.Run(ctx, dir, "remote", "add", remote, url)
	return err
}
