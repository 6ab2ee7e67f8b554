// Package engine orchestrates vault synchronization: it sequences
// pull, commit, and push against the repository adapter, owns the
// single-flight lock and the periodic trigger, and emits phase
// transitions for status-display collaborators.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/skaphos/vaultsync/internal/commitmsg"
	"github.com/skaphos/vaultsync/internal/config"
	"github.com/skaphos/vaultsync/internal/gitx"
	"github.com/skaphos/vaultsync/internal/model"
	"github.com/skaphos/vaultsync/internal/vcs"
)

// PhaseFunc receives phase transitions in the order the state machine
// passes through them. Callbacks run on the operation's goroutine.
type PhaseFunc func(phase model.SyncPhase, message string)

// Engine is the sync orchestrator for one vault. All exported operations
// share a single-flight lock: a second top-level call while one is in
// flight is rejected immediately with a busy verdict, never queued.
type Engine struct {
	dir     string
	adapter vcs.Adapter

	// slot is the single-flight lock: acquire is a non-blocking send,
	// release a receive. Capacity one makes check-and-set atomic.
	slot chan struct{}

	mu      sync.Mutex
	cfg     config.Config
	last    *model.LastSync
	cancel  context.CancelFunc
	done    chan struct{}
	onPhase PhaseFunc

	// now is the clock used for commit-message rendering and last-sync
	// records. Overridable in tests.
	now func() time.Time
	// Logf receives automation diagnostics (swallowed periodic-sync
	// failures, startup-pull failures). Nil discards them.
	Logf func(format string, args ...any)
}

// New creates an Engine for the vault directory. A nil adapter gets the
// default git adapter.
func New(dir string, cfg config.Config, adapter vcs.Adapter) *Engine {
	if adapter == nil {
		adapter = vcs.NewGitAdapter(nil)
	}
	return &Engine{
		dir:     dir,
		cfg:     cfg,
		adapter: adapter,
		slot:    make(chan struct{}, 1),
		now:     time.Now,
	}
}

// Dir returns the vault directory the engine operates on.
func (e *Engine) Dir() string { return e.dir }

// Adapter returns the repository adapter.
func (e *Engine) Adapter() vcs.Adapter { return e.adapter }

// OnPhase registers the phase-transition observer. Only one observer is
// held; registering replaces the previous one.
func (e *Engine) OnPhase(fn PhaseFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onPhase = fn
}

// LastSync returns the record of the last completed top-level operation,
// or nil when none has completed yet. Busy rejections and precondition
// aborts never alter it.
func (e *Engine) LastSync() *model.LastSync {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return nil
	}
	copied := *e.last
	return &copied
}

func (e *Engine) emit(phase model.SyncPhase, message string) {
	e.mu.Lock()
	fn := e.onPhase
	e.mu.Unlock()
	if fn != nil {
		fn(phase, message)
	}
}

func (e *Engine) logf(format string, args ...any) {
	if e.Logf != nil {
		e.Logf(format, args...)
	}
}

// acquire attempts to take the single-flight slot without blocking.
func (e *Engine) acquire() bool {
	select {
	case e.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

func (e *Engine) release() { <-e.slot }

func busyVerdict() model.SyncVerdict {
	return model.SyncVerdict{
		Busy:    true,
		Message: "another sync operation is already running",
	}
}

func errorVerdict(err error) model.SyncVerdict {
	return model.SyncVerdict{
		Message:    err.Error(),
		ErrorClass: gitx.ClassifyError(err),
	}
}

// conflictVerdict builds the blocked verdict. Conflict detection can
// outrun path enumeration, so an empty list still reports one placeholder
// entry and the verdict stays classified as conflicted.
func conflictVerdict(paths []string) model.SyncVerdict {
	if len(paths) == 0 {
		paths = []string{"(unknown)"}
	}
	return model.SyncVerdict{
		Message:   fmt.Sprintf("sync blocked: %d conflicted file(s) need manual resolution", len(paths)),
		Conflicts: paths,
	}
}

// finish emits exactly one terminal phase for the verdict and returns it
// unchanged. Busy rejections are silent: the in-flight operation owns the
// phase stream.
func (e *Engine) finish(v model.SyncVerdict) model.SyncVerdict {
	switch {
	case v.Busy:
	case v.Conflicted():
		e.emit(model.PhaseConflict, v.Message)
	case v.OK:
		e.emit(model.PhaseSuccess, v.Message)
	default:
		e.emit(model.PhaseError, v.Message)
	}
	return v
}

// record stores the completion timestamp and verdict as the engine's
// last-sync state.
func (e *Engine) record(v model.SyncVerdict) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.last = &model.LastSync{At: e.now(), Verdict: v}
}

// Sync runs the full pull-commit-push protocol. Preconditions (backend
// availability, repository presence, no pre-existing conflicts) abort
// before any remote interaction and are not recorded as a completed sync;
// once the protocol reaches its commit-and-push resolution the verdict is
// recorded whatever it says.
func (e *Engine) Sync(ctx context.Context) model.SyncVerdict {
	if !e.acquire() {
		return busyVerdict()
	}
	defer e.release()

	verdict, resolved := e.runSync(ctx)
	if resolved {
		e.record(verdict)
	}
	return e.finish(verdict)
}

// Pull runs pull-only behind the same single-flight lock.
func (e *Engine) Pull(ctx context.Context) model.SyncVerdict {
	if !e.acquire() {
		return busyVerdict()
	}
	defer e.release()

	verdict, resolved := e.runGuarded(ctx, e.pullOnly)
	if resolved {
		e.record(verdict)
	}
	return e.finish(verdict)
}

// Push runs commit-and-push behind the same single-flight lock.
func (e *Engine) Push(ctx context.Context) model.SyncVerdict {
	if !e.acquire() {
		return busyVerdict()
	}
	defer e.release()

	verdict, resolved := e.runGuarded(ctx, e.commitAndPush)
	if resolved {
		e.record(verdict)
	}
	return e.finish(verdict)
}

// runGuarded applies the shared preconditions, then runs op. The boolean
// reports whether op itself ran.
func (e *Engine) runGuarded(ctx context.Context, op func(context.Context) model.SyncVerdict) (model.SyncVerdict, bool) {
	if verdict, ok := e.checkPreconditions(ctx); !ok {
		return verdict, false
	}
	return op(ctx), true
}

func (e *Engine) runSync(ctx context.Context) (model.SyncVerdict, bool) {
	if verdict, ok := e.checkPreconditions(ctx); !ok {
		return verdict, false
	}

	pullVerdict := e.pullOnly(ctx)
	if pullVerdict.Conflicted() || !pullVerdict.OK {
		// Pushing on top of a failed or conflicted pull is never safe.
		return pullVerdict, false
	}

	verdict := e.commitAndPush(ctx)
	verdict.Pulled = pullVerdict.Pulled
	if verdict.OK {
		verdict.Message = syncSummary(verdict.Pulled, verdict.Pushed)
	}
	return verdict, true
}

// checkPreconditions verifies backend availability, repository presence,
// and the absence of unresolved conflicts. The returned bool is false
// when the operation must abort with the given verdict.
func (e *Engine) checkPreconditions(ctx context.Context) (model.SyncVerdict, bool) {
	if !e.adapter.IsAvailable(ctx) {
		return errorVerdict(errors.New("version-control backend not found; install git or set git_bin")), false
	}
	if !e.adapter.IsRepository(ctx, e.dir) {
		return errorVerdict(fmt.Errorf("%s is not a git repository; run vaultsync init first", e.dir)), false
	}
	conflicted, err := e.adapter.HasConflicts(ctx, e.dir)
	if err != nil {
		return errorVerdict(err), false
	}
	if conflicted {
		paths, _ := e.adapter.UnmergedPaths(ctx, e.dir)
		return conflictVerdict(paths), false
	}
	return model.SyncVerdict{}, true
}

// pullOnly integrates remote changes. No remote is a trivial success; an
// up-to-date branch after fetch is a trivial success; conflicts surfaced
// by the integration become a conflict verdict, not a raw error.
func (e *Engine) pullOnly(ctx context.Context) model.SyncVerdict {
	remote, err := e.adapter.RemoteName(ctx, e.dir)
	if err != nil {
		return errorVerdict(err)
	}
	if remote == "" {
		return model.SyncVerdict{OK: true, Message: "no remote configured; nothing to pull"}
	}

	e.emit(model.PhasePulling, "pulling from "+remote)
	if err := e.adapter.Fetch(ctx, e.dir); err != nil {
		return errorVerdict(fmt.Errorf("fetch from %s: %w", remote, err))
	}
	status, err := e.adapter.Status(ctx, e.dir)
	if err != nil {
		return errorVerdict(err)
	}
	if status.Behind == 0 {
		return model.SyncVerdict{OK: true, Message: "already up to date"}
	}

	result, pullErr := e.adapter.Pull(ctx, e.dir)
	if pullErr != nil {
		// A failed integration may have left unmerged paths behind;
		// report those instead of the raw backend error.
		if conflicted, checkErr := e.adapter.HasConflicts(ctx, e.dir); checkErr == nil && conflicted {
			paths, _ := e.adapter.UnmergedPaths(ctx, e.dir)
			return conflictVerdict(paths)
		}
		if errors.Is(pullErr, gitx.ErrStashPopConflict) {
			paths, _ := e.adapter.UnmergedPaths(ctx, e.dir)
			return conflictVerdict(paths)
		}
		return errorVerdict(fmt.Errorf("pull from %s: %w", remote, pullErr))
	}
	return model.SyncVerdict{
		OK:      true,
		Message: fmt.Sprintf("pulled %d file(s)", len(result.Files)),
		Pulled:  len(result.Files),
	}
}

// commitAndPush stages, commits, and pushes local work. A clean tree with
// nothing ahead is a trivial success; a clean tree that is ahead pushes
// directly; a concurrent commit racing ours ("nothing to commit") is
// non-fatal and the push still runs.
func (e *Engine) commitAndPush(ctx context.Context) model.SyncVerdict {
	status, err := e.adapter.Status(ctx, e.dir)
	if err != nil {
		return errorVerdict(err)
	}
	if status.Clean() && status.Ahead == 0 {
		return model.SyncVerdict{OK: true, Message: "nothing to push"}
	}

	pushed := status.Ahead
	if !status.Clean() {
		e.emit(model.PhaseCommitting, "committing local changes")
		if err := e.adapter.StageAll(ctx, e.dir); err != nil {
			return errorVerdict(fmt.Errorf("stage changes: %w", err))
		}
		message := commitmsg.Render(e.commitTemplate(), e.now())
		outcome, err := e.adapter.Commit(ctx, e.dir, message)
		if err != nil {
			return errorVerdict(fmt.Errorf("commit: %w", err))
		}
		if outcome == vcs.CommitCreated {
			pushed++
		}
	}

	e.emit(model.PhasePushing, "pushing to remote")
	hasUpstream, err := e.adapter.HasUpstream(ctx, e.dir)
	if err != nil {
		return errorVerdict(err)
	}
	var result vcs.PushResult
	if hasUpstream {
		result, err = e.adapter.Push(ctx, e.dir)
	} else {
		result, err = e.adapter.PushSetUpstream(ctx, e.dir)
	}
	if err != nil {
		verdict := errorVerdict(err)
		var pushErr *vcs.PushError
		if errors.As(err, &pushErr) {
			verdict.ErrorClass = string(pushErr.Class)
		}
		return verdict
	}
	if result.NoRemote {
		return model.SyncVerdict{OK: true, Message: "no remote configured; committed locally"}
	}
	return model.SyncVerdict{
		OK:      true,
		Message: fmt.Sprintf("pushed %d commit(s)", pushed),
		Pushed:  pushed,
	}
}

func (e *Engine) commitTemplate() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg.CommitMessage != "" {
		return e.cfg.CommitMessage
	}
	return commitmsg.DefaultTemplate
}

func syncSummary(pulled, pushed int) string {
	switch {
	case pulled == 0 && pushed == 0:
		return "in sync; nothing to transfer"
	case pushed == 0:
		return fmt.Sprintf("synced: pulled %d file(s)", pulled)
	case pulled == 0:
		return fmt.Sprintf("synced: pushed %d commit(s)", pushed)
	default:
		return fmt.Sprintf("synced: pulled %d file(s), pushed %d commit(s)", pulled, pushed)
	}
}

// Start arms the automation goroutine: an optional one-shot startup pull
// followed by the periodic full-sync ticker. Any running automation is
// stopped first, so there are never two timers. Failures inside the
// goroutine are logged and swallowed; automation must outlive them.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()

	cfg := e.cfg
	if !cfg.AutoSync.Enabled && !cfg.AutoSync.PullOnStartup {
		return
	}
	interval := time.Duration(cfg.AutoSync.IntervalMinutes) * time.Minute
	if interval < time.Minute {
		interval = time.Minute
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done

	go func() {
		defer close(done)
		if cfg.AutoSync.PullOnStartup {
			if v := e.Pull(runCtx); !v.OK && !v.Busy {
				e.logf("startup pull failed: %s", v.Message)
			}
		}
		if !cfg.AutoSync.Enabled {
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if v := e.Sync(runCtx); !v.OK && !v.Busy {
					e.logf("periodic sync failed: %s", v.Message)
				}
			}
		}
	}()
}

// Stop cancels the automation goroutine. It does not wait for an
// in-flight sync; one in progress is abandoned best-effort.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
		e.done = nil
	}
}

// Running reports whether the automation goroutine is armed.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done == nil {
		return false
	}
	select {
	case <-e.done:
		return false
	default:
		return true
	}
}

// UpdateSettings swaps the engine configuration and re-arms automation
// under the new settings, stop-before-start.
func (e *Engine) UpdateSettings(ctx context.Context, cfg config.Config) {
	e.mu.Lock()
	restart := e.cancel != nil
	e.stopLocked()
	e.cfg = cfg
	e.mu.Unlock()
	if restart || cfg.AutoSync.Enabled {
		e.Start(ctx)
	}
}
