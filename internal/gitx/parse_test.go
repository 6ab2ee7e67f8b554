// SPDX-License-Identifier: MIT
package gitx_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/vaultsync/internal/gitx"
	"github.com/skaphos/vaultsync/internal/model"
)

var _ = Describe("ParseStatus", func() {
	It("returns a clean status for empty output", func() {
		st := gitx.ParseStatus("")
		Expect(st.Clean()).To(BeTrue())
		Expect(st.Branch).To(BeEmpty())
	})

	It("parses the branch header without upstream", func() {
		st := gitx.ParseStatus("## main")
		Expect(st.Branch).To(Equal("main"))
		Expect(st.Upstream).To(BeEmpty())
		Expect(st.HasUpstream()).To(BeFalse())
		Expect(st.Clean()).To(BeTrue())
	})

	It("parses the branch header with upstream", func() {
		st := gitx.ParseStatus("## main...origin/main")
		Expect(st.Branch).To(Equal("main"))
		Expect(st.Upstream).To(Equal("origin/main"))
		Expect(st.Ahead).To(Equal(0))
		Expect(st.Behind).To(Equal(0))
	})

	It("parses ahead and behind counts", func() {
		st := gitx.ParseStatus("## main...origin/main [ahead 3, behind 2]")
		Expect(st.Ahead).To(Equal(3))
		Expect(st.Behind).To(Equal(2))
	})

	It("parses ahead alone", func() {
		st := gitx.ParseStatus("## feature/x...origin/feature/x [ahead 1]")
		Expect(st.Branch).To(Equal("feature/x"))
		Expect(st.Ahead).To(Equal(1))
		Expect(st.Behind).To(Equal(0))
	})

	It("keeps the upstream for a gone branch", func() {
		st := gitx.ParseStatus("## feature...origin/feature [gone]")
		Expect(st.Upstream).To(Equal("origin/feature"))
		Expect(st.Ahead).To(Equal(0))
	})

	It("marks a detached HEAD", func() {
		st := gitx.ParseStatus("## HEAD (no branch)")
		Expect(st.Branch).To(Equal(model.DetachedBranch))
	})

	It("handles an unborn branch", func() {
		st := gitx.ParseStatus("## No commits yet on main")
		Expect(st.Branch).To(Equal("main"))
		Expect(st.Upstream).To(BeEmpty())
	})

	It("classifies staged files", func() {
		output := "## main\nA  added.md\nM  changed.md\nD  removed.md"
		st := gitx.ParseStatus(output)
		Expect(st.Staged).To(Equal([]string{"added.md", "changed.md", "removed.md"}))
		Expect(st.Modified).To(BeEmpty())
		Expect(st.Clean()).To(BeFalse())
	})

	It("classifies work-tree changes", func() {
		output := "## main\n M edited.md\n D deleted.md"
		st := gitx.ParseStatus(output)
		Expect(st.Modified).To(Equal([]string{"edited.md", "deleted.md"}))
		Expect(st.Staged).To(BeEmpty())
	})

	It("classifies untracked files", func() {
		output := "## main\n?? notes/new.md\n?? scratch.txt"
		st := gitx.ParseStatus(output)
		Expect(st.Untracked).To(Equal([]string{"notes/new.md", "scratch.txt"}))
	})

	It("lists a doubly-changed file as both staged and modified", func() {
		st := gitx.ParseStatus("## main\nMM both.md")
		Expect(st.Staged).To(Equal([]string{"both.md"}))
		Expect(st.Modified).To(Equal([]string{"both.md"}))
	})

	It("classifies unmerged entries as conflicts", func() {
		output := "## main\nUU merge-me.md\nAA both-added.md\nDD both-deleted.md\nAU added-by-us.md\nUD deleted-by-them.md"
		st := gitx.ParseStatus(output)
		Expect(st.Conflicts).To(Equal([]string{
			"merge-me.md",
			"both-added.md",
			"both-deleted.md",
			"added-by-us.md",
			"deleted-by-them.md",
		}))
		Expect(st.Staged).To(BeEmpty())
		Expect(st.Modified).To(BeEmpty())
	})

	It("skips ignored entries", func() {
		st := gitx.ParseStatus("## main\n!! build/")
		Expect(st.Clean()).To(BeTrue())
	})

	It("resolves renames to the new path", func() {
		st := gitx.ParseStatus("## main\nR  old.md -> new.md")
		Expect(st.Staged).To(Equal([]string{"new.md"}))
	})

	It("unquotes paths with special characters", func() {
		st := gitx.ParseStatus("## main\n?? \"weird name.md\"")
		Expect(st.Untracked).To(Equal([]string{"weird name.md"}))
	})

	It("handles a mixed worktree", func() {
		output := "## main...origin/main [ahead 1]\n" +
			"M  staged.md\n" +
			" M edited.md\n" +
			"?? fresh.md\n" +
			"UU clash.md"
		st := gitx.ParseStatus(output)
		Expect(st.Staged).To(Equal([]string{"staged.md"}))
		Expect(st.Modified).To(Equal([]string{"edited.md"}))
		Expect(st.Untracked).To(Equal([]string{"fresh.md"}))
		Expect(st.Conflicts).To(Equal([]string{"clash.md"}))
		Expect(st.Ahead).To(Equal(1))
	})
})

var _ = Describe("ParseChangedFiles", func() {
	It("extracts file paths from a pull summary", func() {
		output := "Updating 1ab2c3d..4de5f6a\n" +
			"Fast-forward\n" +
			" notes/daily.md    | 12 ++++++++----\n" +
			" notes/todo.md     |  2 +-\n" +
			" 2 files changed, 10 insertions(+), 4 deletions(-)"
		Expect(gitx.ParseChangedFiles(output)).To(Equal([]string{
			"notes/daily.md",
			"notes/todo.md",
		}))
	})

	It("handles binary change markers", func() {
		output := " assets/img.png | Bin 0 -> 4096 bytes\n 1 file changed"
		Expect(gitx.ParseChangedFiles(output)).To(Equal([]string{"assets/img.png"}))
	})

	It("ignores output without a diffstat", func() {
		Expect(gitx.ParseChangedFiles("Already up to date.")).To(BeEmpty())
	})

	It("returns nothing for empty output", func() {
		Expect(gitx.ParseChangedFiles("")).To(BeEmpty())
	})
})
