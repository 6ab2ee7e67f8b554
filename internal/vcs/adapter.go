package vcs

import (
	"context"
	"errors"
	"fmt"

	"github.com/skaphos/vaultsync/internal/gitx"
	"github.com/skaphos/vaultsync/internal/model"
)

// Adapter defines the repository operations the sync engine relies on.
// Git is the default backend; the interface exists so another backend
// could be swapped in without touching the engine.
type Adapter interface {
	Name() string
	// IsAvailable probes the backend binary. Never returns an error.
	IsAvailable(ctx context.Context) bool
	// IsRepository reports whether dir is inside a working tree. Absence
	// is a plain false, not an error.
	IsRepository(ctx context.Context, dir string) bool
	Status(ctx context.Context, dir string) (model.RepositoryStatus, error)
	// HasConflicts is a cheap probe against unmerged paths, usable
	// without a full status parse.
	HasConflicts(ctx context.Context, dir string) (bool, error)
	UnmergedPaths(ctx context.Context, dir string) ([]string, error)
	// RemoteName resolves the remote used for sync: "origin" when
	// configured, otherwise the first configured remote, otherwise "".
	RemoteName(ctx context.Context, dir string) (string, error)
	RemoteURL(ctx context.Context, dir, remote string) (string, error)
	Remotes(ctx context.Context, dir string) ([]model.Remote, error)
	HasUpstream(ctx context.Context, dir string) (bool, error)
	Fetch(ctx context.Context, dir string) error
	// Pull integrates remote changes rebase-style, stashing uncommitted
	// work around the integration. No remote is a trivial outcome.
	Pull(ctx context.Context, dir string) (PullResult, error)
	// Push sends committed work, classifying rejections into *PushError.
	Push(ctx context.Context, dir string) (PushResult, error)
	// PushSetUpstream pushes while recording the upstream, for branches
	// that track nothing yet.
	PushSetUpstream(ctx context.Context, dir string) (PushResult, error)
	StageAll(ctx context.Context, dir string) error
	// Commit records staged work. Nothing to commit is a successful
	// no-op, reported as CommitNoop.
	Commit(ctx context.Context, dir, message string) (CommitOutcome, error)
	AbortMerge(ctx context.Context, dir string) error
	AbortRebase(ctx context.Context, dir string) error
	UserName(ctx context.Context, dir string) (string, error)
	SetUserName(ctx context.Context, dir, name string) error
	UserEmail(ctx context.Context, dir string) (string, error)
	SetUserEmail(ctx context.Context, dir, email string) error
	CredentialHelper(ctx context.Context, dir string) (string, error)
	SetCredentialHelper(ctx context.Context, dir, helper string) error
	SetRemoteURL(ctx context.Context, dir, remote, url string) error
	AddRemote(ctx context.Context, dir, remote, url string) error
}

// PullResult is the outcome of one pull.
type PullResult struct {
	// Files lists the paths changed by the integration.
	Files []string
	// Stashed is true when uncommitted work was set aside and restored
	// around the integration.
	Stashed bool
	// NoRemote is true when no remote is configured; the pull is then a
	// trivial success.
	NoRemote bool
}

// PushResult is the outcome of one push.
type PushResult struct {
	// NoRemote is true when no remote is configured; the push is then a
	// trivial success.
	NoRemote bool
}

// CommitOutcome distinguishes a created commit from the benign
// nothing-to-commit case.
type CommitOutcome string

const (
	CommitCreated CommitOutcome = "created"
	CommitNoop    CommitOutcome = "noop"
)

// PushError is a classified push rejection. Error() renders the
// user-actionable message for the class.
type PushError struct {
	Class  gitx.PushErrorClass
	Stderr string
	cause  error
}

func (e *PushError) Error() string {
	return gitx.PushErrorMessage(e.Class, e.Stderr)
}

func (e *PushError) Unwrap() error { return e.cause }

const stashMessage = "vaultsync: auto-stash before pull"

// GitAdapter implements Adapter using the git CLI via gitx.
type GitAdapter struct {
	Runner gitx.Runner
	// Exclude holds glob patterns never staged by StageAll.
	Exclude []string
}

func NewGitAdapter(runner gitx.Runner) *GitAdapter {
	if runner == nil {
		runner = &gitx.GitRunner{}
	}
	return &GitAdapter{Runner: runner}
}

func (g *GitAdapter) Name() string { return "git" }

func (g *GitAdapter) IsAvailable(ctx context.Context) bool {
	return gitx.IsAvailable(ctx, g.Runner)
}

func (g *GitAdapter) IsRepository(ctx context.Context, dir string) bool {
	ok, err := gitx.IsRepo(ctx, g.Runner, dir)
	return err == nil && ok
}

func (g *GitAdapter) Status(ctx context.Context, dir string) (model.RepositoryStatus, error) {
	return gitx.Status(ctx, g.Runner, dir)
}

func (g *GitAdapter) HasConflicts(ctx context.Context, dir string) (bool, error) {
	paths, err := gitx.UnmergedPaths(ctx, g.Runner, dir)
	if err != nil {
		return false, err
	}
	return len(paths) > 0, nil
}

func (g *GitAdapter) UnmergedPaths(ctx context.Context, dir string) ([]string, error) {
	return gitx.UnmergedPaths(ctx, g.Runner, dir)
}

func (g *GitAdapter) RemoteName(ctx context.Context, dir string) (string, error) {
	remotes, err := gitx.Remotes(ctx, g.Runner, dir)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(remotes))
	for _, remote := range remotes {
		names = append(names, remote.Name)
	}
	return gitx.PrimaryRemote(names), nil
}

func (g *GitAdapter) RemoteURL(ctx context.Context, dir, remote string) (string, error) {
	return gitx.RemoteURL(ctx, g.Runner, dir, remote)
}

func (g *GitAdapter) Remotes(ctx context.Context, dir string) ([]model.Remote, error) {
	return gitx.Remotes(ctx, g.Runner, dir)
}

func (g *GitAdapter) HasUpstream(ctx context.Context, dir string) (bool, error) {
	_, err := gitx.Upstream(ctx, g.Runner, dir)
	if errors.Is(err, gitx.ErrNoUpstream) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (g *GitAdapter) Fetch(ctx context.Context, dir string) error {
	remote, err := g.RemoteName(ctx, dir)
	if err != nil {
		return err
	}
	if remote == "" {
		return gitx.ErrNoRemote
	}
	return gitx.Fetch(ctx, g.Runner, dir, remote)
}

func (g *GitAdapter) Pull(ctx context.Context, dir string) (PullResult, error) {
	remote, err := g.RemoteName(ctx, dir)
	if err != nil {
		return PullResult{}, err
	}
	if remote == "" {
		return PullResult{NoRemote: true}, nil
	}

	status, err := gitx.Status(ctx, g.Runner, dir)
	if err != nil {
		return PullResult{}, err
	}
	stashed := false
	if len(status.Staged) > 0 || len(status.Modified) > 0 {
		stashed, err = gitx.StashPush(ctx, g.Runner, dir, stashMessage)
		if err != nil {
			return PullResult{}, fmt.Errorf("stash before pull: %w", err)
		}
	}

	out, pullErr := gitx.PullRebase(ctx, g.Runner, dir, remote)
	result := PullResult{Stashed: stashed}
	if pullErr == nil {
		result.Files = gitx.ParseChangedFiles(out)
	}

	// The stash is restored even when the pull failed; a failed pull's
	// error stays the primary outcome.
	if stashed {
		popErr := gitx.StashPop(ctx, g.Runner, dir)
		if pullErr == nil && popErr != nil {
			return result, popErr
		}
	}
	if pullErr != nil {
		return result, pullErr
	}
	return result, nil
}

func (g *GitAdapter) Push(ctx context.Context, dir string) (PushResult, error) {
	remote, err := g.RemoteName(ctx, dir)
	if err != nil {
		return PushResult{}, err
	}
	if remote == "" {
		return PushResult{NoRemote: true}, nil
	}
	if err := gitx.Push(ctx, g.Runner, dir, remote); err != nil {
		return PushResult{}, classifyPush(err)
	}
	return PushResult{}, nil
}

func (g *GitAdapter) PushSetUpstream(ctx context.Context, dir string) (PushResult, error) {
	remote, err := g.RemoteName(ctx, dir)
	if err != nil {
		return PushResult{}, err
	}
	if remote == "" {
		return PushResult{NoRemote: true}, nil
	}
	branch, detached, err := gitx.Head(ctx, g.Runner, dir)
	if err != nil {
		return PushResult{}, err
	}
	if detached {
		return PushResult{}, fmt.Errorf("cannot push from a detached HEAD")
	}
	if err := gitx.PushSetUpstream(ctx, g.Runner, dir, remote, branch); err != nil {
		return PushResult{}, classifyPush(err)
	}
	return PushResult{}, nil
}

func (g *GitAdapter) StageAll(ctx context.Context, dir string) error {
	return gitx.StageAll(ctx, g.Runner, dir, g.Exclude)
}

func (g *GitAdapter) Commit(ctx context.Context, dir, message string) (CommitOutcome, error) {
	err := gitx.Commit(ctx, g.Runner, dir, message)
	if errors.Is(err, gitx.ErrNothingToCommit) {
		return CommitNoop, nil
	}
	if err != nil {
		return "", err
	}
	return CommitCreated, nil
}

func (g *GitAdapter) AbortMerge(ctx context.Context, dir string) error {
	return gitx.AbortMerge(ctx, g.Runner, dir)
}

func (g *GitAdapter) AbortRebase(ctx context.Context, dir string) error {
	return gitx.AbortRebase(ctx, g.Runner, dir)
}

func (g *GitAdapter) UserName(ctx context.Context, dir string) (string, error) {
	return gitx.ConfigGet(ctx, g.Runner, dir, "user.name")
}

func (g *GitAdapter) SetUserName(ctx context.Context, dir, name string) error {
	return gitx.ConfigSet(ctx, g.Runner, dir, "user.name", name)
}

func (g *GitAdapter) UserEmail(ctx context.Context, dir string) (string, error) {
	return gitx.ConfigGet(ctx, g.Runner, dir, "user.email")
}

func (g *GitAdapter) SetUserEmail(ctx context.Context, dir, email string) error {
	return gitx.ConfigSet(ctx, g.Runner, dir, "user.email", email)
}

func (g *GitAdapter) CredentialHelper(ctx context.Context, dir string) (string, error) {
	return gitx.ConfigGet(ctx, g.Runner, dir, "credential.helper")
}

func (g *GitAdapter) SetCredentialHelper(ctx context.Context, dir, helper string) error {
	return gitx.ConfigSet(ctx, g.Runner, dir, "credential.helper", helper)
}

func (g *GitAdapter) SetRemoteURL(ctx context.Context, dir, remote, url string) error {
	return gitx.SetRemoteURL(ctx, g.Runner, dir, remote, url)
}

func (g *GitAdapter) AddRemote(ctx context.Context, dir, remote, url string) error {
	return gitx.AddRemote(ctx, g.Runner, dir, remote, url)
}

// classifyPush wraps a failed push in a PushError carrying the class
// derived from the backend's stderr.
func classifyPush(err error) error {
	var cmdErr *gitx.CommandError
	stderr := ""
	if errors.As(err, &cmdErr) {
		stderr = cmdErr.Stderr
	} else {
		stderr = err.Error()
	}
	return &PushError{
		Class:  gitx.ClassifyPushError(stderr),
		Stderr: stderr,
		cause:  err,
	}
}
