package gitx

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/skaphos/vaultsync/internal/model"
)

// ParseStatus parses the output of `git status --porcelain -b` into a
// RepositoryStatus. The branch header contributes branch name, upstream,
// and ahead/behind; every following line is classified by its
// two-character index/work-tree code pair.
//
// Classification rules, exhaustive over the codes git emits for
// non-ignored entries:
//   - either column U, or both A, or both D  → conflict
//   - ??                                     → untracked
//   - !!                                     → ignored, skipped
//   - otherwise: non-space index column      → staged
//     non-space work-tree column             → modified
//
// A path with changes in both columns (for example "MM") appears in both
// staged and modified. Conflict takes precedence over everything else.
func ParseStatus(output string) model.RepositoryStatus {
	var status model.RepositoryStatus
	for i, line := range strings.Split(output, "\n") {
		if i == 0 && strings.HasPrefix(line, "## ") {
			branch, upstream, ahead, behind := parseBranchHeader(strings.TrimPrefix(line, "## "))
			status.Branch = branch
			status.Upstream = upstream
			status.Ahead = ahead
			status.Behind = behind
			continue
		}
		if len(line) < 4 || line[2] != ' ' {
			continue
		}
		x, y := line[0], line[1]
		path := unquotePath(line[3:])
		if path == "" {
			continue
		}

		switch {
		case x == 'U' || y == 'U' || (x == 'A' && y == 'A') || (x == 'D' && y == 'D'):
			status.Conflicts = append(status.Conflicts, path)
		case x == '?' && y == '?':
			status.Untracked = append(status.Untracked, path)
		case x == '!' && y == '!':
			// ignored entry
		default:
			if x != ' ' {
				status.Staged = append(status.Staged, path)
			}
			if y != ' ' {
				status.Modified = append(status.Modified, path)
			}
		}
	}
	return status
}

// parseBranchHeader parses the porcelain branch summary, already stripped
// of its "## " prefix. Shapes handled:
//
//	main
//	main...origin/main
//	main...origin/main [ahead 1]
//	main...origin/main [ahead 1, behind 2]
//	main...origin/main [gone]
//	HEAD (no branch)
//	No commits yet on main
func parseBranchHeader(header string) (branch, upstream string, ahead, behind int) {
	header = strings.TrimSpace(header)
	if header == "HEAD (no branch)" {
		return model.DetachedBranch, "", 0, 0
	}
	if rest, ok := strings.CutPrefix(header, "No commits yet on "); ok {
		return strings.TrimSpace(rest), "", 0, 0
	}
	if rest, ok := strings.CutPrefix(header, "Initial commit on "); ok {
		return strings.TrimSpace(rest), "", 0, 0
	}

	counts := ""
	if i := strings.Index(header, " ["); i >= 0 && strings.HasSuffix(header, "]") {
		counts = header[i+2 : len(header)-1]
		header = header[:i]
	}
	branch = header
	if i := strings.Index(header, "..."); i >= 0 {
		branch = header[:i]
		upstream = header[i+3:]
	}
	for _, part := range strings.Split(counts, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "ahead "):
			ahead, _ = strconv.Atoi(strings.TrimPrefix(part, "ahead "))
		case strings.HasPrefix(part, "behind "):
			behind, _ = strconv.Atoi(strings.TrimPrefix(part, "behind "))
		}
	}
	return branch, upstream, ahead, behind
}

// unquotePath undoes git's C-style quoting of paths with special
// characters, and resolves rename arrows to the new name.
func unquotePath(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, " -> "); i >= 0 {
		raw = raw[i+4:]
	}
	if strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) && len(raw) >= 2 {
		if unquoted, err := strconv.Unquote(raw); err == nil {
			return unquoted
		}
	}
	return raw
}

// changedFileLine matches one file entry of a pull/rebase change summary:
// whitespace, the path, whitespace, then a pipe and the change markers.
var changedFileLine = regexp.MustCompile(`^\s+(.+?)\s+\|`)

// ParseChangedFiles extracts the changed-file paths from a pull/rebase
// summary. Lines not matching the summary shape are ignored.
func ParseChangedFiles(output string) []string {
	var files []string
	for _, line := range strings.Split(output, "\n") {
		m := changedFileLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		path := strings.TrimSpace(m[1])
		if path != "" {
			files = append(files, path)
		}
	}
	return files
}
