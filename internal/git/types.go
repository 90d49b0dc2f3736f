// pattern: Functional Core
package git

import (
	"fmt"
	"strings"
)

// Worktree describes one entry from `git worktree list --porcelain`.
type Worktree struct {
	Path   string
	Branch string // empty for detached HEAD
	Head   string // commit hash
	Bare   bool
}

// Result holds the captured output of one git invocation. Stdout and
// stderr are captured independently because git emits conflict summaries
// on either channel depending on the operation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Diagnostic returns the human-readable message for a failed invocation:
// stderr when non-empty, stdout otherwise. This is the single fallback
// rule shared by every operation that can surface conflicts.
func (r Result) Diagnostic() string {
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(r.Stdout)
}

// CommandError is a git invocation that exited non-zero.
type CommandError struct {
	Args     []string
	ExitCode int
	Message  string
}

func (e *CommandError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("git %s: exit status %d", strings.Join(e.Args, " "), e.ExitCode)
	}
	return fmt.Sprintf("git %s: %s", e.Args[0], e.Message)
}

// ConflictError reports a merge or rebase that stopped on conflicts.
// It is not a command failure: the repository is left mid-operation and
// the caller decides whether to suspend or abort.
type ConflictError struct {
	Op    string   // "merge" or "rebase"
	Paths []string // unresolved paths, may be empty if detection ran early
}

func (e *ConflictError) Error() string {
	if len(e.Paths) == 0 {
		return fmt.Sprintf("%s stopped on conflicts", e.Op)
	}
	return fmt.Sprintf("%s stopped on conflicts in %d file(s): %s",
		e.Op, len(e.Paths), strings.Join(e.Paths, ", "))
}
