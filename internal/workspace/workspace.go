// pattern: Imperative Shell

package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"arbor/internal/config"
	"arbor/internal/git"
	"arbor/internal/hook"
	"arbor/internal/logging"
	"arbor/internal/meta"
	"arbor/internal/namegen"
)

// validNameRe matches valid worktree names: alphanumeric start, then
// alphanumeric, hyphens, underscores, dots.
var validNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// ValidateName checks whether name is usable as a managed branch name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("worktree name cannot be empty")
	}
	if len(name) > 100 {
		return fmt.Errorf("worktree name too long (max 100 characters)")
	}
	if !validNameRe.MatchString(name) {
		return fmt.Errorf("invalid worktree name %q: must start with alphanumeric, may contain a-z A-Z 0-9 . _ -", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("worktree name cannot contain '..'")
	}
	return nil
}

// NotFoundError reports a ref that matched no managed worktree.
type NotFoundError struct {
	Ref string
}

func (e *NotFoundError) Error() string {
	if e.Ref == "." {
		return "current directory is not inside a managed worktree"
	}
	return fmt.Sprintf("worktree %q not found", e.Ref)
}

// CollisionError reports a name that already names a worktree or branch.
type CollisionError struct {
	Name string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("worktree %q already exists", e.Name)
}

// UncommittedError reports a removal refused because the tree is dirty.
type UncommittedError struct {
	Branch string
}

func (e *UncommittedError) Error() string {
	return fmt.Sprintf("worktree %q has uncommitted changes (use --force to discard)", e.Branch)
}

// Tree identifies one managed worktree.
type Tree struct {
	Branch string
	Path   string
	Meta   *meta.Record
}

// Entry is one row of a listing: a worktree annotated with its metadata
// and live status.
type Entry struct {
	Branch         string
	Path           string
	Meta           *meta.Record // nil for foreign trees
	MetaErr        error        // per-entry corrupt-record warning
	Foreign        bool         // known to git but not created by arbor
	HasUncommitted bool
	CommitsAhead   int
	Current        bool // contains the invocation's working directory
}

// CreateOptions configures Create. A zero Name draws from the name
// generator; a zero Base uses the resolved trunk's tip.
type CreateOptions struct {
	Name        string
	Base        string
	SnapCommand string
}

// Manager owns the lifecycle of all managed worktrees for one repository.
type Manager struct {
	cfg      config.Config
	git      *git.Client
	store    *meta.Store
	hooks    *hook.Runner
	logger   *logging.ScopedLogger
	repoRoot string
	project  string
	generate func(exists func(string) bool) string
}

// NewManager creates a Manager for the repository containing the git
// client's directory.
func NewManager(ctx context.Context, cfg config.Config, gitClient *git.Client, hooks *hook.Runner, logger *logging.ScopedLogger) (*Manager, error) {
	repoRoot, err := gitClient.RepoRoot(ctx)
	if err != nil {
		return nil, err
	}
	project := filepath.Base(repoRoot)

	return &Manager{
		cfg:      cfg,
		git:      gitClient.In(repoRoot),
		store:    meta.NewStore(cfg.ProjectDir(project)),
		hooks:    hooks,
		logger:   logger,
		repoRoot: repoRoot,
		project:  project,
		generate: namegen.Unique,
	}, nil
}

// SetNameGenerator replaces the branch-name generator (for testing).
func (m *Manager) SetNameGenerator(gen func(exists func(string) bool) string) {
	m.generate = gen
}

// RepoRoot returns the main repository checkout path.
func (m *Manager) RepoRoot() string { return m.repoRoot }

// Project returns the project name (the repository directory name).
func (m *Manager) Project() string { return m.project }

// ProjectDir returns the workspace directory holding this project's trees.
func (m *Manager) ProjectDir() string { return m.cfg.ProjectDir(m.project) }

// TreePath returns where the worktree for a branch lives.
func (m *Manager) TreePath(branch string) string {
	return filepath.Join(m.ProjectDir(), branch)
}

// Store exposes the metadata store for this project.
func (m *Manager) Store() *meta.Store { return m.store }

// Git returns the git client rooted at the main repository.
func (m *Manager) Git() *git.Client { return m.git }

// Trunk resolves the trunk branch: project config override first, then
// the repository's own default-branch detection.
func (m *Manager) Trunk(ctx context.Context) (string, error) {
	if m.cfg.Trunk != "" {
		return m.cfg.Trunk, nil
	}
	return m.git.DetectTrunk(ctx)
}

// Create builds a new managed worktree: the git worktree itself, the
// configured file copies, the metadata record, and the post_create
// hooks, in that order. Failure of the worktree creation aborts before
// anything else runs; later failures surface with the step named so the
// partial state is visible.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Tree, error) {
	trunk, err := m.Trunk(ctx)
	if err != nil {
		return nil, err
	}

	base := opts.Base
	if base == "" {
		base = trunk
	}

	name := opts.Name
	if name == "" {
		name = m.generate(func(candidate string) bool {
			return m.git.BranchExists(ctx, candidate) || pathExists(m.TreePath(candidate))
		})
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	path := m.TreePath(name)
	if m.git.BranchExists(ctx, name) || pathExists(path) {
		return nil, &CollisionError{Name: name}
	}

	baseCommit, err := m.git.ResolveCommit(ctx, base)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(m.ProjectDir(), 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace directory %s: %w", m.ProjectDir(), err)
	}

	if err := m.git.CreateWorktree(ctx, path, name, base); err != nil {
		return nil, err
	}
	m.logger.Info("worktree created", "branch", name, "base", base, "path", path)

	if err := m.copyFiles(path); err != nil {
		return nil, fmt.Errorf("worktree %q created, but copying files failed: %w", name, err)
	}

	rec := meta.NewRecord(baseCommit, trunk)
	rec.SnapCommand = opts.SnapCommand
	if err := m.store.Write(name, rec); err != nil {
		return nil, fmt.Errorf("worktree %q created, but writing metadata failed: %w", name, err)
	}

	if err := m.hooks.Run(ctx, m.cfg.Hooks.PostCreate, path); err != nil {
		return nil, fmt.Errorf("worktree %q created, but post_create hooks failed: %w", name, err)
	}

	return &Tree{Branch: name, Path: path, Meta: rec}, nil
}

// copyFiles copies files matching the effective copy patterns from the
// main checkout into the new tree. Patterns matching nothing are
// skipped, not failed.
func (m *Manager) copyFiles(dest string) error {
	for _, pattern := range m.cfg.CopyFiles {
		matches, err := filepath.Glob(filepath.Join(m.repoRoot, pattern))
		if err != nil {
			return fmt.Errorf("bad copy pattern %q: %w", pattern, err)
		}
		for _, src := range matches {
			info, err := os.Stat(src)
			if err != nil || info.IsDir() {
				continue
			}
			rel, err := filepath.Rel(m.repoRoot, src)
			if err != nil {
				continue
			}
			target := filepath.Join(dest, rel)
			if err := copyFile(src, target, info.Mode()); err != nil {
				return fmt.Errorf("copying %s: %w", rel, err)
			}
		}
	}
	return nil
}

func copyFile(src, dest string, mode os.FileMode) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, mode.Perm())
}

// List returns every worktree of this project known to git, annotated
// with metadata and live status. Managed entries come first, oldest
// first; foreign entries follow. A corrupt metadata record is attached
// to its entry as a warning and never fails the listing.
func (m *Manager) List(ctx context.Context) ([]Entry, error) {
	worktrees, err := m.git.ListWorktrees(ctx)
	if err != nil {
		return nil, err
	}

	cwd, _ := os.Getwd()
	projectDir := m.ProjectDir()

	var entries []Entry
	for _, wt := range worktrees {
		if wt.Bare || !isUnder(projectDir, wt.Path) {
			continue
		}
		branch := wt.Branch
		if branch == "" {
			branch = "(detached)"
		}

		e := Entry{
			Branch:  branch,
			Path:    wt.Path,
			Current: cwd != "" && isUnder(wt.Path, cwd),
		}

		if wt.Branch != "" {
			rec, metaErr := m.store.Read(wt.Branch)
			e.Meta = rec
			e.MetaErr = metaErr
			e.Foreign = rec == nil && metaErr == nil
		} else {
			e.Foreign = true
		}

		treeGit := m.git.In(wt.Path)
		if dirty, err := treeGit.HasUncommitted(ctx); err == nil {
			e.HasUncommitted = dirty
		}
		trunk := ""
		if e.Meta != nil {
			trunk = e.Meta.Trunk
		} else if t, err := m.Trunk(ctx); err == nil {
			trunk = t
		}
		if trunk != "" {
			if ahead, err := treeGit.CommitsAhead(ctx, trunk); err == nil {
				e.CommitsAhead = ahead
			}
		}

		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.Meta != nil && b.Meta != nil:
			return a.Meta.CreatedAt.Before(b.Meta.CreatedAt)
		case a.Meta != nil:
			return true // managed before corrupt/foreign
		case b.Meta != nil:
			return false
		case a.Foreign != b.Foreign:
			return !a.Foreign // corrupt (still managed) before foreign
		default:
			return a.Branch < b.Branch
		}
	})

	return entries, nil
}

// Resolve maps a ref to a managed worktree. "." means the worktree
// containing the current directory.
func (m *Manager) Resolve(ctx context.Context, ref string) (*Tree, error) {
	entries, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	if ref == "." {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determining current directory: %w", err)
		}
		for _, e := range entries {
			if isUnder(e.Path, cwd) {
				return &Tree{Branch: e.Branch, Path: e.Path, Meta: e.Meta}, nil
			}
		}
		return nil, &NotFoundError{Ref: "."}
	}

	for _, e := range entries {
		if e.Branch == ref && !e.Foreign {
			return &Tree{Branch: e.Branch, Path: e.Path, Meta: e.Meta}, nil
		}
	}
	return nil, &NotFoundError{Ref: ref}
}

// Rename renames a managed worktree: the branch, the on-disk directory,
// and the metadata record, as one logical operation. If the directory
// move fails after the branch rename succeeded, the error says so, so
// the user is not left guessing which half applied.
func (m *Manager) Rename(ctx context.Context, oldRef, newName string) (*Tree, error) {
	if err := ValidateName(newName); err != nil {
		return nil, err
	}

	tree, err := m.Resolve(ctx, oldRef)
	if err != nil {
		return nil, err
	}

	newPath := m.TreePath(newName)
	if m.git.BranchExists(ctx, newName) || pathExists(newPath) {
		return nil, &CollisionError{Name: newName}
	}

	if err := m.git.RenameBranch(ctx, tree.Branch, newName); err != nil {
		return nil, err
	}
	if err := m.git.MoveWorktree(ctx, tree.Path, newPath); err != nil {
		return nil, fmt.Errorf("branch already renamed to %q, but moving the directory failed (run 'arbor mv %s %s' again or move it manually): %w",
			newName, newName, newName, err)
	}
	if err := m.store.Rename(tree.Branch, newName); err != nil {
		return nil, err
	}

	m.logger.Info("worktree renamed", "from", tree.Branch, "to", newName)
	return &Tree{Branch: newName, Path: newPath, Meta: tree.Meta}, nil
}

// Remove deletes a managed worktree: the checkout, the branch, and the
// metadata record. Without force it refuses when the tree has
// uncommitted changes.
func (m *Manager) Remove(ctx context.Context, ref string, force bool) error {
	tree, err := m.Resolve(ctx, ref)
	if err != nil {
		return err
	}
	return m.remove(ctx, tree, force)
}

// RemoveTree is Remove for an already-resolved tree.
func (m *Manager) RemoveTree(ctx context.Context, tree *Tree, force bool) error {
	return m.remove(ctx, tree, force)
}

func (m *Manager) remove(ctx context.Context, tree *Tree, force bool) error {
	if !force {
		dirty, err := m.git.In(tree.Path).HasUncommitted(ctx)
		if err != nil {
			return err
		}
		if dirty {
			return &UncommittedError{Branch: tree.Branch}
		}
	}

	if err := m.git.RemoveWorktree(ctx, tree.Path, force); err != nil {
		return err
	}
	// The uncommitted check above is the safety gate; the branch itself
	// goes unconditionally once the checkout is gone.
	if err := m.git.DeleteBranch(ctx, tree.Branch, true); err != nil {
		m.logger.Warn("branch deletion failed after worktree removal", "branch", tree.Branch, "error", err)
	}
	if err := m.store.Remove(tree.Branch); err != nil {
		return err
	}

	m.logger.Info("worktree removed", "branch", tree.Branch, "forced", force)
	return nil
}

// Clean removes every managed worktree with no diff from trunk: no
// uncommitted changes and zero commits ahead. Returns the removed
// branch names. Idempotent.
func (m *Manager) Clean(ctx context.Context) ([]string, error) {
	entries, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, e := range entries {
		if e.Foreign || e.MetaErr != nil {
			continue
		}
		if e.HasUncommitted || e.CommitsAhead != 0 {
			continue
		}
		tree := &Tree{Branch: e.Branch, Path: e.Path, Meta: e.Meta}
		if err := m.remove(ctx, tree, false); err != nil {
			return removed, fmt.Errorf("cleaning %q: %w", e.Branch, err)
		}
		removed = append(removed, e.Branch)
	}
	return removed, nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// isUnder reports whether path is dir or inside dir.
func isUnder(dir, path string) bool {
	dirAbs, err1 := filepath.Abs(dir)
	pathAbs, err2 := filepath.Abs(path)
	if err1 != nil || err2 != nil {
		return false
	}
	if resolved, err := filepath.EvalSymlinks(dirAbs); err == nil {
		dirAbs = resolved
	}
	if resolved, err := filepath.EvalSymlinks(pathAbs); err == nil {
		pathAbs = resolved
	}
	if dirAbs == pathAbs {
		return true
	}
	return strings.HasPrefix(pathAbs, dirAbs+string(filepath.Separator))
}
