// pattern: Functional Core
package git

import (
	"bufio"
	"os"
	"strings"
)

// ParseWorktreeList parses `git worktree list --porcelain` output.
// Entries are separated by blank lines; each starts with a "worktree "
// line followed by attribute lines.
func ParseWorktreeList(output string) []Worktree {
	var worktrees []Worktree
	var current *Worktree

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "worktree "):
			if current != nil {
				worktrees = append(worktrees, *current)
			}
			current = &Worktree{Path: strings.TrimPrefix(line, "worktree ")}
		case current == nil:
			// attribute line before any worktree header; ignore
		case strings.HasPrefix(line, "branch refs/heads/"):
			current.Branch = strings.TrimPrefix(line, "branch refs/heads/")
		case strings.HasPrefix(line, "HEAD "):
			current.Head = strings.TrimPrefix(line, "HEAD ")
		case line == "bare":
			current.Bare = true
		}
	}

	if current != nil {
		worktrees = append(worktrees, *current)
	}
	return worktrees
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
