package gitx

import (
	"net/url"
	"strings"
)

// NormalizeURL converts a git remote URL into a canonical identity so two
// spellings of the same remote compare equal.
//
// Rules:
//   - Strip protocol (https://, git://, ssh://) and user (git@)
//   - Convert git@host:path to host/path
//   - Lowercase the host portion
//   - Strip trailing ".git"
//   - Strip trailing slashes
//
// Examples:
//
//	git@github.com:Org/Repo.git  → github.com/Org/Repo
//	https://github.com/Org/Repo.git → github.com/Org/Repo
func NormalizeURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	var host, path string

	// Handle SSH shorthand: git@host:path
	if i := strings.Index(rawURL, "@"); i >= 0 && !strings.Contains(rawURL[:i], "://") {
		rest := rawURL[i+1:]
		if colonIdx := strings.Index(rest, ":"); colonIdx >= 0 {
			host = rest[:colonIdx]
			path = rest[colonIdx+1:]
		}
	} else {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return rawURL
		}
		host = parsed.Hostname()
		path = strings.TrimPrefix(parsed.Path, "/")
	}

	host = strings.ToLower(host)
	path = strings.TrimSuffix(path, ".git")
	path = strings.TrimRight(path, "/")

	if host == "" {
		return path
	}
	return host + "/" + path
}

// PrimaryRemote selects the remote used for sync. Prefers a remote
// literally named "origin"; otherwise falls back to the first configured
// remote. Returns "" when no remotes exist — a deliberate outcome, not an
// error.
func PrimaryRemote(remoteNames []string) string {
	for _, name := range remoteNames {
		if name == "origin" {
			return "origin"
		}
	}
	if len(remoteNames) > 0 {
		return remoteNames[0]
	}
	return ""
}
