// SPDX-License-Identifier: MIT
package gitx

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNothingToCommit marks the backend's "nothing to commit"
	// condition; callers treat it as a successful no-op.
	ErrNothingToCommit = errors.New("nothing to commit")
	// ErrNoUpstream marks a branch that tracks no upstream.
	ErrNoUpstream = errors.New("no upstream configured")
	// ErrNoRemote marks a repository with no configured remote.
	ErrNoRemote = errors.New("no remote configured")
	// ErrStashPopConflict marks a stash restore that produced conflicts.
	ErrStashPopConflict = errors.New("stash restore conflicted")
	// ErrOutputOverflow marks captured output exceeding the per-stream cap.
	ErrOutputOverflow = errors.New("command output exceeded capture limit")
)

// CommandError is a failed backend invocation. It carries the exit code
// and both captured streams so callers can classify the failure without
// re-running anything.
type CommandError struct {
	// Bin is the backend binary that was invoked.
	Bin string
	// Args are the subcommand arguments.
	Args []string
	// ExitCode is the subprocess exit code, -1 when the process did not
	// exit normally.
	ExitCode int
	// Stdout and Stderr hold the trimmed captured streams, possibly
	// partial when Truncated is set.
	Stdout string
	Stderr string
	// Truncated reports that at least one stream hit the capture cap.
	Truncated bool

	cause error
}

func (e *CommandError) Error() string {
	head := e.Bin + " " + strings.Join(e.Args, " ")
	detail := e.Stderr
	if detail == "" {
		detail = e.Stdout
	}
	switch {
	case detail != "" && e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", head, detail, e.cause)
	case detail != "":
		return fmt.Sprintf("%s: %s", head, detail)
	case e.cause != nil:
		return fmt.Sprintf("%s: %v", head, e.cause)
	}
	return head + ": failed"
}

func (e *CommandError) Unwrap() error { return e.cause }

// ClassifyError maps git/process errors into broad actionable categories:
// timeout, auth, network, conflict, corrupt, or unknown.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}
	if errors.Is(err, ErrOutputOverflow) {
		return "overflow"
	}
	if errors.Is(err, ErrStashPopConflict) {
		return "conflict"
	}

	msg := strings.ToLower(err.Error())
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		msg = strings.ToLower(cmdErr.Stdout + "\n" + cmdErr.Stderr)
	}
	// Heuristics are intentionally broad to keep categories actionable for users.
	switch {
	case containsAny(msg, "authentication failed", "permission denied", "access denied", "publickey", "could not read username", "credential"):
		return "auth"
	case containsAny(msg, "could not resolve host", "network is unreachable", "connection timed out", "connection refused", "failed to connect", "temporary failure in name resolution", "tls handshake timeout"):
		return "network"
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return "timeout"
	case containsAny(msg, "conflict", "unmerged", "needs merge"):
		return "conflict"
	case containsAny(msg, "not a git repository", "bad object", "corrupt", "object file"):
		return "corrupt"
	default:
		return "unknown"
	}
}

// PushErrorClass is the closed set of push-rejection causes.
type PushErrorClass string

const (
	// PushAuthSSH covers key-based authentication rejections.
	PushAuthSSH PushErrorClass = "auth_ssh"
	// PushAuthHTTPS covers password/token authentication rejections.
	PushAuthHTTPS PushErrorClass = "auth_https"
	// PushPermission covers write-permission denials on the remote.
	PushPermission PushErrorClass = "permission"
	// PushNetwork covers host-resolution and transport failures.
	PushNetwork PushErrorClass = "network"
	// PushFatal covers everything else, surfaced with the backend's own
	// diagnostic line.
	PushFatal PushErrorClass = "fatal"
)

// ClassifyPushError categorizes push failure text. The match order makes
// the classes disjoint: key-based markers win over the generic
// authentication markers, and permission denials win over the transport
// markers their diagnostics often also contain.
func ClassifyPushError(stderr string) PushErrorClass {
	msg := strings.ToLower(stderr)
	switch {
	case containsAny(msg, "publickey", "host key verification failed", "no supported authentication methods"):
		return PushAuthSSH
	case containsAny(msg, "authentication failed", "could not read username", "could not read password", "invalid username or password", "http basic: access denied", "401"):
		return PushAuthHTTPS
	case containsAny(msg, "permission to", "permission denied", "write access to repository not granted", "403", "protected branch"):
		return PushPermission
	case containsAny(msg, "could not resolve host", "unable to access", "connection refused", "network is unreachable", "connection timed out", "operation timed out", "failed to connect"):
		return PushNetwork
	default:
		return PushFatal
	}
}

// PushErrorMessage renders the distinct, user-actionable message for a
// push failure class. For PushFatal the backend's own "fatal:" line is
// extracted when present.
func PushErrorMessage(class PushErrorClass, stderr string) string {
	switch class {
	case PushAuthSSH:
		return "push rejected: the remote refused your SSH key; check your key and its registration with the host"
	case PushAuthHTTPS:
		return "push rejected: authentication failed; check your username and password or access token"
	case PushPermission:
		return "push rejected: you do not have write permission for this repository"
	case PushNetwork:
		return "push failed: cannot reach the remote host; check your network connection and the remote URL"
	}
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "fatal:") {
			return "push failed: " + strings.TrimSpace(strings.TrimPrefix(line, "fatal:"))
		}
	}
	if first := firstLine(stderr); first != "" {
		return "push failed: " + first
	}
	return "push failed"
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}

func containsAny(msg string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
