package gitx_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/vaultsync/internal/gitx"
	"github.com/skaphos/vaultsync/internal/model"
)

var _ = Describe("GitRunner.Run", func() {
	var runner *gitx.GitRunner

	BeforeEach(func() {
		runner = &gitx.GitRunner{}
	})

	It("runs git version successfully", func() {
		out, err := runner.Run(context.Background(), "", "version")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("git version"))
	})

	It("errors for nonexistent directory", func() {
		_, err := runner.Run(context.Background(), "/nonexistent/path/xyz", "status")
		Expect(err).To(HaveOccurred())
	})

	It("respects context cancellation", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := runner.Run(ctx, "", "version")
		Expect(err).To(HaveOccurred())
	})

	It("reports failures as CommandError with streams", func() {
		_, err := runner.Run(context.Background(), "", "--no-such-global-flag", "version")
		Expect(err).To(HaveOccurred())

		var cmdErr *gitx.CommandError
		Expect(errors.As(err, &cmdErr)).To(BeTrue())
		Expect(cmdErr.ExitCode).NotTo(Equal(0))
		Expect(cmdErr.Args).To(ContainElement("--no-such-global-flag"))
		Expect(cmdErr.Stderr).NotTo(BeEmpty())
	})

	It("surfaces a missing binary as CommandError", func() {
		missing := &gitx.GitRunner{GitBin: "/nonexistent/bin/git"}
		_, err := missing.Run(context.Background(), "", "version")
		Expect(err).To(HaveOccurred())

		var cmdErr *gitx.CommandError
		Expect(errors.As(err, &cmdErr)).To(BeTrue())
		Expect(cmdErr.ExitCode).To(Equal(-1))
	})
})

var _ = Describe("IsAvailable", func() {
	It("returns true when the backend answers", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			":version": {Output: "git version 2.43.0"},
		}}
		Expect(gitx.IsAvailable(context.Background(), mock)).To(BeTrue())
	})

	It("returns false on any failure", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			":version": {Err: errors.New("exec: not found")},
		}}
		Expect(gitx.IsAvailable(context.Background(), mock)).To(BeFalse())
	})
})

var _ = Describe("IsRepo", func() {
	It("returns true for a valid repo", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:rev-parse --is-inside-work-tree": {Output: "true"},
		}}
		ok, err := gitx.IsRepo(context.Background(), mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("returns false on error", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:rev-parse --is-inside-work-tree": {Err: errors.New("not a repo")},
		}}
		ok, err := gitx.IsRepo(context.Background(), mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("returns false when output is not 'true'", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:rev-parse --is-inside-work-tree": {Output: "false"},
		}}
		ok, err := gitx.IsRepo(context.Background(), mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Head", func() {
	It("returns the current branch", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:symbolic-ref --quiet --short HEAD": {Output: "main"},
		}}
		branch, detached, err := gitx.Head(context.Background(), mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(branch).To(Equal("main"))
		Expect(detached).To(BeFalse())
	})

	It("falls back to the commit hash when detached", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:symbolic-ref --quiet --short HEAD": {Err: errors.New("not a symbolic ref")},
			"/repo:rev-parse --short HEAD":            {Output: "1ab2c3d"},
		}}
		branch, detached, err := gitx.Head(context.Background(), mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(branch).To(Equal("1ab2c3d"))
		Expect(detached).To(BeTrue())
	})

	It("uses the placeholder when no commit exists", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:symbolic-ref --quiet --short HEAD": {Err: errors.New("not a symbolic ref")},
			"/repo:rev-parse --short HEAD":            {Err: errors.New("unknown revision")},
		}}
		branch, detached, err := gitx.Head(context.Background(), mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(branch).To(Equal(model.DetachedBranch))
		Expect(detached).To(BeTrue())
	})
})

var _ = Describe("Status", func() {
	It("parses the porcelain snapshot", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:status --porcelain -b": {Output: "## main...origin/main [ahead 2]\n M notes.md\n?? new.md"},
		}}
		st, err := gitx.Status(context.Background(), mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Branch).To(Equal("main"))
		Expect(st.Ahead).To(Equal(2))
		Expect(st.Modified).To(Equal([]string{"notes.md"}))
		Expect(st.Untracked).To(Equal([]string{"new.md"}))
	})

	It("propagates backend failures", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:status --porcelain -b": {Err: errors.New("boom")},
		}}
		_, err := gitx.Status(context.Background(), mock, "/repo")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("UnmergedPaths", func() {
	It("returns nothing for a conflict-free tree", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:diff --name-only --diff-filter=U": {Output: ""},
		}}
		paths, err := gitx.UnmergedPaths(context.Background(), mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(paths).To(BeEmpty())
	})

	It("lists conflicted paths", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:diff --name-only --diff-filter=U": {Output: "notes/a.md\nnotes/b.md"},
		}}
		paths, err := gitx.UnmergedPaths(context.Background(), mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(paths).To(Equal([]string{"notes/a.md", "notes/b.md"}))
	})
})

var _ = Describe("Remotes", func() {
	It("returns remotes in configuration order", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:remote":                  {Output: "upstream\norigin"},
			"/repo:remote get-url upstream": {Output: "git@github.com:other/repo.git"},
			"/repo:remote get-url origin":   {Output: "git@github.com:org/repo.git"},
		}}
		remotes, err := gitx.Remotes(context.Background(), mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(remotes).To(Equal([]model.Remote{
			{Name: "upstream", URL: "git@github.com:other/repo.git"},
			{Name: "origin", URL: "git@github.com:org/repo.git"},
		}))
	})

	It("returns nothing when no remotes exist", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:remote": {Output: ""},
		}}
		remotes, err := gitx.Remotes(context.Background(), mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(remotes).To(BeEmpty())
	})

	It("skips remotes whose URL cannot be read", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:remote":                {Output: "broken\norigin"},
			"/repo:remote get-url broken": {Err: errors.New("no such remote")},
			"/repo:remote get-url origin": {Output: "https://github.com/org/repo.git"},
		}}
		remotes, err := gitx.Remotes(context.Background(), mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(remotes).To(HaveLen(1))
		Expect(remotes[0].Name).To(Equal("origin"))
	})
})

var _ = Describe("Upstream", func() {
	It("returns the upstream ref", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:rev-parse --abbrev-ref @{upstream}": {Output: "origin/main"},
		}}
		ref, err := gitx.Upstream(context.Background(), mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(ref).To(Equal("origin/main"))
	})

	It("reports a branch without upstream as ErrNoUpstream", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:rev-parse --abbrev-ref @{upstream}": {Err: &gitx.CommandError{
				Bin:      "git",
				Args:     []string{"rev-parse", "--abbrev-ref", "@{upstream}"},
				ExitCode: 128,
				Stderr:   "fatal: no upstream configured for branch 'main'",
			}},
		}}
		_, err := gitx.Upstream(context.Background(), mock, "/repo")
		Expect(errors.Is(err, gitx.ErrNoUpstream)).To(BeTrue())
	})

	It("propagates unexpected failures", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:rev-parse --abbrev-ref @{upstream}": {Err: &gitx.CommandError{
				Bin:      "git",
				Args:     []string{"rev-parse", "--abbrev-ref", "@{upstream}"},
				ExitCode: 128,
				Stderr:   "fatal: bad revision",
			}},
		}}
		_, err := gitx.Upstream(context.Background(), mock, "/repo")
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, gitx.ErrNoUpstream)).To(BeFalse())
	})
})

var _ = Describe("Fetch", func() {
	It("prunes and skips submodules", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:-c fetch.recurseSubmodules=false fetch --prune --no-recurse-submodules origin": {Output: ""},
		}}
		Expect(gitx.Fetch(context.Background(), mock, "/repo", "origin")).To(Succeed())
		Expect(mock.Calls).To(HaveLen(1))
	})

	It("returns error on fetch failure", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:-c fetch.recurseSubmodules=false fetch --prune --no-recurse-submodules origin": {Err: errors.New("fetch failed")},
		}}
		Expect(gitx.Fetch(context.Background(), mock, "/repo", "origin")).NotTo(Succeed())
	})
})

var _ = Describe("PullRebase", func() {
	It("returns the change summary for parsing", func() {
		summary := "Updating 1ab..2cd\nFast-forward\n notes.md | 2 +-\n 1 file changed"
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:pull --rebase origin": {Output: summary},
		}}
		out, err := gitx.PullRebase(context.Background(), mock, "/repo", "origin")
		Expect(err).NotTo(HaveOccurred())
		Expect(gitx.ParseChangedFiles(out)).To(Equal([]string{"notes.md"}))
	})
})

var _ = Describe("GitRunner with real git", func() {
	var (
		tmpDir string
		runner *gitx.GitRunner
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "gitx-test")
		Expect(err).NotTo(HaveOccurred())
		runner = &gitx.GitRunner{}
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(os.RemoveAll(tmpDir)).To(Succeed())
	})

	initRepo := func() {
		_, err := runner.Run(ctx, tmpDir, "init")
		Expect(err).NotTo(HaveOccurred())
		Expect(gitx.ConfigSet(ctx, runner, tmpDir, "user.name", "Vaultsync Test")).To(Succeed())
		Expect(gitx.ConfigSet(ctx, runner, tmpDir, "user.email", "test@example.com")).To(Succeed())
	}

	It("detects a real git repo", func() {
		initRepo()

		ok, err := gitx.IsRepo(ctx, runner, tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		ok, err = gitx.IsRepo(ctx, runner, filepath.Dir(tmpDir))
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("stages, commits, and reports the no-op commit", func() {
		initRepo()

		Expect(os.WriteFile(filepath.Join(tmpDir, "note.md"), []byte("hello\n"), 0o644)).To(Succeed())
		Expect(gitx.StageAll(ctx, runner, tmpDir, nil)).To(Succeed())
		Expect(gitx.Commit(ctx, runner, tmpDir, "vault backup")).To(Succeed())

		st, err := gitx.Status(ctx, runner, tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Clean()).To(BeTrue())

		err = gitx.Commit(ctx, runner, tmpDir, "vault backup")
		Expect(errors.Is(err, gitx.ErrNothingToCommit)).To(BeTrue())
	})

	It("reports a clean tree as nothing to stash", func() {
		initRepo()

		Expect(os.WriteFile(filepath.Join(tmpDir, "note.md"), []byte("hello\n"), 0o644)).To(Succeed())
		Expect(gitx.StageAll(ctx, runner, tmpDir, nil)).To(Succeed())
		Expect(gitx.Commit(ctx, runner, tmpDir, "seed")).To(Succeed())

		stashed, err := gitx.StashPush(ctx, runner, tmpDir, "autostash")
		Expect(err).NotTo(HaveOccurred())
		Expect(stashed).To(BeFalse())
	})

	It("honors staging exclusions", func() {
		initRepo()

		Expect(os.WriteFile(filepath.Join(tmpDir, "keep.md"), []byte("keep\n"), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(tmpDir, "skip.tmp"), []byte("skip\n"), 0o644)).To(Succeed())
		Expect(gitx.StageAll(ctx, runner, tmpDir, []string{"*.tmp"})).To(Succeed())

		st, err := gitx.Status(ctx, runner, tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Staged).To(Equal([]string{"keep.md"}))
		Expect(st.Untracked).To(Equal([]string{"skip.tmp"}))
	})

	It("reads unset config keys as empty", func() {
		initRepo()

		val, err := gitx.ConfigGet(ctx, runner, tmpDir, "vaultsync.nonexistent")
		Expect(err).NotTo(HaveOccurred())
		Expect(val).To(BeEmpty())

		Expect(gitx.ConfigSet(ctx, runner, tmpDir, "vaultsync.nonexistent", "on")).To(Succeed())
		val, err = gitx.ConfigGet(ctx, runner, tmpDir, "vaultsync.nonexistent")
		Expect(err).NotTo(HaveOccurred())
		Expect(val).To(Equal("on"))
	})
})
