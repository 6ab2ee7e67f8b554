package vcs_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/vaultsync/internal/gitx"
	"github.com/skaphos/vaultsync/internal/vcs"
)

var _ = Describe("GitAdapter.Pull", func() {
	var (
		stub *runnerStub
		a    *vcs.GitAdapter
		ctx  context.Context
	)

	response := func(out string, err error) stubResponse {
		return stubResponse{out: out, err: err}
	}

	BeforeEach(func() {
		stub = &runnerStub{responses: map[string]stubResponse{}}
		a = vcs.NewGitAdapter(stub)
		ctx = context.Background()
	})

	It("is a trivial success without a remote", func() {
		stub.responses["/repo:remote"] = response("", nil)

		result, err := a.Pull(ctx, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.NoRemote).To(BeTrue())
		Expect(result.Files).To(BeEmpty())
		Expect(stub.calls).To(HaveLen(1))
	})

	It("pulls without stashing when the tree is clean", func() {
		stub.responses["/repo:remote"] = response("origin", nil)
		stub.responses["/repo:remote get-url origin"] = response("git@github.com:org/repo.git", nil)
		stub.responses["/repo:status --porcelain -b"] = response("## main...origin/main [behind 1]", nil)
		stub.responses["/repo:pull --rebase origin"] = response(
			"Updating 1ab..2cd\nFast-forward\n notes/daily.md | 4 ++--\n 1 file changed, 2 insertions(+), 2 deletions(-)", nil)

		result, err := a.Pull(ctx, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Stashed).To(BeFalse())
		Expect(result.Files).To(Equal([]string{"notes/daily.md"}))
		for _, call := range stub.calls {
			Expect(call).NotTo(ContainSubstring("stash"))
		}
	})

	It("stashes dirty work around the integration", func() {
		stub.responses["/repo:remote"] = response("origin", nil)
		stub.responses["/repo:remote get-url origin"] = response("git@github.com:org/repo.git", nil)
		stub.responses["/repo:status --porcelain -b"] = response("## main...origin/main [behind 1]\n M notes.md", nil)
		stub.responses["/repo:stash push -m vaultsync: auto-stash before pull"] = response("Saved working directory and index state", nil)
		stub.responses["/repo:pull --rebase origin"] = response("Fast-forward\n notes.md | 1 +\n 1 file changed", nil)
		stub.responses["/repo:stash pop"] = response("Dropped refs/stash@{0}", nil)

		result, err := a.Pull(ctx, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Stashed).To(BeTrue())
		Expect(result.Files).To(Equal([]string{"notes.md"}))

		var order []string
		for _, call := range stub.calls {
			switch {
			case strings.Contains(call, "stash push"):
				order = append(order, "stash-push")
			case strings.Contains(call, "pull --rebase"):
				order = append(order, "pull")
			case strings.Contains(call, "stash pop"):
				order = append(order, "stash-pop")
			}
		}
		Expect(order).To(Equal([]string{"stash-push", "pull", "stash-pop"}))
	})

	It("skips the restore when nothing was actually stashed", func() {
		stub.responses["/repo:remote"] = response("origin", nil)
		stub.responses["/repo:remote get-url origin"] = response("git@github.com:org/repo.git", nil)
		stub.responses["/repo:status --porcelain -b"] = response("## main\n M notes.md", nil)
		stub.responses["/repo:stash push -m vaultsync: auto-stash before pull"] = response("No local changes to save", nil)
		stub.responses["/repo:pull --rebase origin"] = response("Already up to date.", nil)

		result, err := a.Pull(ctx, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Stashed).To(BeFalse())
		for _, call := range stub.calls {
			Expect(call).NotTo(ContainSubstring("stash pop"))
		}
	})

	It("surfaces a conflicted stash restore", func() {
		stub.responses["/repo:remote"] = response("origin", nil)
		stub.responses["/repo:remote get-url origin"] = response("git@github.com:org/repo.git", nil)
		stub.responses["/repo:status --porcelain -b"] = response("## main\nM  notes.md", nil)
		stub.responses["/repo:stash push -m vaultsync: auto-stash before pull"] = response("Saved working directory and index state", nil)
		stub.responses["/repo:pull --rebase origin"] = response("Fast-forward\n notes.md | 1 +\n 1 file changed", nil)
		stub.responses["/repo:stash pop"] = response("", &gitx.CommandError{
			Bin:      "git",
			Args:     []string{"stash", "pop"},
			ExitCode: 1,
			Stdout:   "Auto-merging notes.md\nCONFLICT (content): Merge conflict in notes.md",
		})

		_, err := a.Pull(ctx, "/repo")
		Expect(errors.Is(err, gitx.ErrStashPopConflict)).To(BeTrue())
	})

	It("keeps the pull failure primary and still restores the stash", func() {
		pullFailure := &gitx.CommandError{
			Bin:      "git",
			Args:     []string{"pull", "--rebase", "origin"},
			ExitCode: 1,
			Stderr:   "error: could not apply 1ab2c3d",
		}
		stub.responses["/repo:remote"] = response("origin", nil)
		stub.responses["/repo:remote get-url origin"] = response("git@github.com:org/repo.git", nil)
		stub.responses["/repo:status --porcelain -b"] = response("## main\n M notes.md", nil)
		stub.responses["/repo:stash push -m vaultsync: auto-stash before pull"] = response("Saved working directory and index state", nil)
		stub.responses["/repo:pull --rebase origin"] = response("", pullFailure)
		stub.responses["/repo:stash pop"] = response("", errors.New("cannot pop over rebase"))

		_, err := a.Pull(ctx, "/repo")
		var cmdErr *gitx.CommandError
		Expect(errors.As(err, &cmdErr)).To(BeTrue())
		Expect(cmdErr.Stderr).To(ContainSubstring("could not apply"))

		popped := false
		for _, call := range stub.calls {
			if strings.Contains(call, "stash pop") {
				popped = true
			}
		}
		Expect(popped).To(BeTrue())
	})
})
