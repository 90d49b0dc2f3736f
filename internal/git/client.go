// pattern: Imperative Shell
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNotRepo indicates the working directory is not inside a git repository.
var ErrNotRepo = errors.New("not in a git repository")

// Runner executes one git invocation in the given directory and returns
// its captured output. Injected in tests so nothing shells out.
type Runner func(ctx context.Context, dir string, args ...string) (Result, error)

// Client wraps the git CLI for a single working directory.
type Client struct {
	dir string
	run Runner
}

// New creates a Client that runs git in dir.
func New(dir string) *Client {
	return &Client{dir: dir, run: execRunner}
}

// NewWithRunner creates a Client with the given runner (for testing).
func NewWithRunner(dir string, run Runner) *Client {
	return &Client{dir: dir, run: run}
}

// In returns a Client sharing this one's runner but executing in dir.
// Used to address an individual worktree's checkout.
func (c *Client) In(dir string) *Client {
	return &Client{dir: dir, run: c.run}
}

// Dir returns the directory git commands execute in.
func (c *Client) Dir() string { return c.dir }

func execRunner(ctx context.Context, dir string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("running git %s: %w", strings.Join(args, " "), err)
	}
	return res, nil
}

// git runs a command and converts a non-zero exit into a CommandError
// carrying the extracted diagnostic.
func (c *Client) git(ctx context.Context, args ...string) (Result, error) {
	res, err := c.run(ctx, c.dir, args...)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, &CommandError{Args: args, ExitCode: res.ExitCode, Message: res.Diagnostic()}
	}
	return res, nil
}

// RepoRoot returns the top-level directory of the repository containing dir.
func (c *Client) RepoRoot(ctx context.Context) (string, error) {
	res, err := c.git(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", ErrNotRepo
	}
	return strings.TrimSpace(res.Stdout), nil
}

// GitDir returns the repository's git directory for this checkout.
// For a linked worktree this is the private worktree git dir.
func (c *Client) GitDir(ctx context.Context) (string, error) {
	return c.revParsePath(ctx, "--git-dir")
}

// GitCommonDir returns the shared git directory of the main repository.
func (c *Client) GitCommonDir(ctx context.Context) (string, error) {
	return c.revParsePath(ctx, "--git-common-dir")
}

func (c *Client) revParsePath(ctx context.Context, flag string) (string, error) {
	res, err := c.git(ctx, "rev-parse", flag)
	if err != nil {
		return "", ErrNotRepo
	}
	p := strings.TrimSpace(res.Stdout)
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.dir, p)
	}
	return p, nil
}

// CurrentBranch returns the checked-out branch name.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	res, err := c.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", ErrNotRepo
	}
	return strings.TrimSpace(res.Stdout), nil
}

// ResolveCommit resolves a ref to a full commit hash.
func (c *Client) ResolveCommit(ctx context.Context, ref string) (string, error) {
	res, err := c.git(ctx, "rev-parse", "--verify", ref+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", ref, err)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// BranchExists reports whether a local branch exists.
func (c *Client) BranchExists(ctx context.Context, name string) bool {
	res, err := c.run(ctx, c.dir, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	return err == nil && res.ExitCode == 0
}

// DefaultBranchHint returns the remote's default branch, or "" if the
// repository has no usable origin/HEAD ref.
func (c *Client) DefaultBranchHint(ctx context.Context) string {
	res, err := c.run(ctx, c.dir, "symbolic-ref", "refs/remotes/origin/HEAD")
	if err != nil || res.ExitCode != 0 {
		return ""
	}
	full := strings.TrimSpace(res.Stdout)
	return strings.TrimPrefix(full, "refs/remotes/origin/")
}

// trunkCandidates is the conventional-name fallback order for trunk detection.
var trunkCandidates = []string{"main", "master", "trunk", "develop"}

// DetectTrunk finds the repository's trunk branch: the remote default
// branch when one is advertised, otherwise the first conventional name
// that exists as a local branch.
func (c *Client) DetectTrunk(ctx context.Context) (string, error) {
	if hint := c.DefaultBranchHint(ctx); hint != "" && c.BranchExists(ctx, hint) {
		return hint, nil
	}
	for _, name := range trunkCandidates {
		if c.BranchExists(ctx, name) {
			return name, nil
		}
	}
	return "", errors.New("cannot detect trunk branch: no origin/HEAD and no conventional branch found")
}

// HasUncommitted reports whether the checkout has uncommitted changes,
// staged or not.
func (c *Client) HasUncommitted(ctx context.Context) (bool, error) {
	res, err := c.git(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(res.Stdout) != "", nil
}

// HasStagedChanges reports whether the index differs from HEAD.
func (c *Client) HasStagedChanges(ctx context.Context) (bool, error) {
	res, err := c.run(ctx, c.dir, "diff", "--cached", "--quiet")
	if err != nil {
		return false, err
	}
	return res.ExitCode != 0, nil
}

// CommitsAhead counts commits on HEAD that are not on ref.
func (c *Client) CommitsAhead(ctx context.Context, ref string) (int, error) {
	res, err := c.git(ctx, "rev-list", "--count", ref+"..HEAD")
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(res.Stdout))
	if convErr != nil {
		return 0, fmt.Errorf("parsing rev-list count %q: %w", res.Stdout, convErr)
	}
	return n, nil
}

// HasDiff reports whether two refs differ.
func (c *Client) HasDiff(ctx context.Context, refA, refB string) (bool, error) {
	res, err := c.run(ctx, c.dir, "diff", "--quiet", refA, refB)
	if err != nil {
		return false, err
	}
	return res.ExitCode != 0, nil
}

// CreateWorktree creates a new worktree at path on a new branch from base.
func (c *Client) CreateWorktree(ctx context.Context, path, branch, base string) error {
	if _, err := c.git(ctx, "worktree", "add", "-b", branch, path, base); err != nil {
		return fmt.Errorf("creating worktree %q from %q: %w", branch, base, err)
	}
	return nil
}

// RemoveWorktree removes a worktree checkout. With force, uncommitted
// changes in the tree are discarded.
func (c *Client) RemoveWorktree(ctx context.Context, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	if _, err := c.git(ctx, args...); err != nil {
		return fmt.Errorf("removing worktree at %s: %w", path, err)
	}
	return nil
}

// MoveWorktree relocates a worktree checkout on disk, keeping git's
// linkage intact.
func (c *Client) MoveWorktree(ctx context.Context, oldPath, newPath string) error {
	if _, err := c.git(ctx, "worktree", "move", oldPath, newPath); err != nil {
		return fmt.Errorf("moving worktree to %s: %w", newPath, err)
	}
	return nil
}

// ListWorktrees returns every worktree known to the repository.
func (c *Client) ListWorktrees(ctx context.Context) ([]Worktree, error) {
	res, err := c.git(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return ParseWorktreeList(res.Stdout), nil
}

// RenameBranch renames a local branch.
func (c *Client) RenameBranch(ctx context.Context, old, new string) error {
	if _, err := c.git(ctx, "branch", "-m", old, new); err != nil {
		return fmt.Errorf("renaming branch %q to %q: %w", old, new, err)
	}
	return nil
}

// DeleteBranch deletes a local branch. With force, unmerged branches are
// deleted too.
func (c *Client) DeleteBranch(ctx context.Context, name string, force bool) error {
	mode := "-d"
	if force {
		mode = "-D"
	}
	if _, err := c.git(ctx, "branch", mode, name); err != nil {
		return fmt.Errorf("deleting branch %q: %w", name, err)
	}
	return nil
}

// Checkout switches the checkout to branch.
func (c *Client) Checkout(ctx context.Context, branch string) error {
	if _, err := c.git(ctx, "checkout", branch); err != nil {
		return fmt.Errorf("checking out %q: %w", branch, err)
	}
	return nil
}

// StageAll stages every change in the checkout.
func (c *Client) StageAll(ctx context.Context) error {
	_, err := c.git(ctx, "add", "--all")
	return err
}

// Commit records the staged changes with the given message.
func (c *Client) Commit(ctx context.Context, message string) error {
	if _, err := c.git(ctx, "commit", "-m", message); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// UnmergedPaths lists paths still carrying conflict markers in the index.
func (c *Client) UnmergedPaths(ctx context.Context) ([]string, error) {
	res, err := c.git(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

// Merge merges branch into the current branch. squash collapses the
// branch into staged changes; noFF forces a merge commit. A conflicted
// merge returns *ConflictError with the unresolved paths.
func (c *Client) Merge(ctx context.Context, branch string, squash, noFF bool) error {
	args := []string{"merge"}
	if squash {
		args = append(args, "--squash")
	}
	if noFF {
		args = append(args, "--no-ff")
	}
	args = append(args, branch)

	res, err := c.run(ctx, c.dir, args...)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return c.classifyConflict(ctx, "merge", args, res)
	}
	return nil
}

// Rebase replays the current branch onto the given ref.
func (c *Client) Rebase(ctx context.Context, onto string) error {
	res, err := c.run(ctx, c.dir, "rebase", onto)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return c.classifyConflict(ctx, "rebase", []string{"rebase", onto}, res)
	}
	return nil
}

// classifyConflict distinguishes a conflicted stop from an outright
// failure. The index is consulted rather than the output text because
// conflict summaries move between channels across git versions.
func (c *Client) classifyConflict(ctx context.Context, op string, args []string, res Result) error {
	paths, pathErr := c.UnmergedPaths(ctx)
	if pathErr == nil && len(paths) > 0 {
		return &ConflictError{Op: op, Paths: paths}
	}
	if strings.Contains(res.Stdout, "CONFLICT") || strings.Contains(res.Stderr, "CONFLICT") {
		return &ConflictError{Op: op}
	}
	return &CommandError{Args: args, ExitCode: res.ExitCode, Message: res.Diagnostic()}
}

// MergeAbort restores the pre-merge state of a conflicted merge.
func (c *Client) MergeAbort(ctx context.Context) error {
	_, err := c.git(ctx, "merge", "--abort")
	return err
}

// MergeContinue concludes a conflicted merge after resolution by
// committing with the prepared message.
func (c *Client) MergeContinue(ctx context.Context) error {
	_, err := c.git(ctx, "commit", "--no-edit")
	return err
}

// RebaseAbort abandons an in-progress rebase.
func (c *Client) RebaseAbort(ctx context.Context) error {
	_, err := c.git(ctx, "rebase", "--abort")
	return err
}

// RebaseContinue resumes an in-progress rebase after resolution.
func (c *Client) RebaseContinue(ctx context.Context) error {
	res, err := c.run(ctx, c.dir, "-c", "core.editor=true", "rebase", "--continue")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return c.classifyConflict(ctx, "rebase", []string{"rebase", "--continue"}, res)
	}
	return nil
}

// ResetMerge discards a half-applied squash merge, restoring the index
// and working tree while keeping untracked files.
func (c *Client) ResetMerge(ctx context.Context) error {
	_, err := c.git(ctx, "reset", "--merge")
	return err
}

// OperationInProgress reports whether the repository is mid-merge or
// mid-rebase (git's own in-progress markers).
func (c *Client) OperationInProgress(ctx context.Context) (bool, error) {
	gitDir, err := c.GitDir(ctx)
	if err != nil {
		return false, err
	}
	for _, marker := range []string{"MERGE_HEAD", "rebase-merge", "rebase-apply"} {
		if pathExists(filepath.Join(gitDir, marker)) {
			return true, nil
		}
	}
	return false, nil
}
