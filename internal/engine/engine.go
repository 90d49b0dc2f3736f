// pattern: Imperative Shell

// Package engine drives the conflict-aware merge and sync state
// machines. Both the merge verb and the snap orchestrator enter through
// the same Merge call, so the two paths cannot diverge in behavior.
// In-progress state is persisted exclusively through the markers in
// marker.go; a crash or interrupt leaves the marker behind as the
// recovery point.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"arbor/internal/config"
	"arbor/internal/git"
	"arbor/internal/hook"
	"arbor/internal/logging"
	"arbor/internal/workspace"
)

// ErrNothingToContinue reports --continue with no in-progress marker.
var ErrNothingToContinue = errors.New("no operation in progress to continue")

// ErrNothingToAbort reports --abort with no in-progress marker.
var ErrNothingToAbort = errors.New("no operation in progress to abort")

// InProgressError refuses to start a new operation while a marker from
// a previous one still exists.
type InProgressError struct {
	Op     string // "merge" or "sync"
	Branch string // branch named in the existing marker
}

func (e *InProgressError) Error() string {
	return fmt.Sprintf("a %s of %q is already in progress (finish it with --continue or --abort)", e.Op, e.Branch)
}

// SuspendedError reports an operation suspended on conflicts. It is a
// valid persisted state, not a failure: the marker is on disk and
// --continue or --abort resolve it. Callers map it to its own exit code.
type SuspendedError struct {
	Op    string
	Paths []string
}

func (e *SuspendedError) Error() string {
	return fmt.Sprintf("%s suspended on %d conflicted file(s), resolve and run --continue, or --abort", e.Op, len(e.Paths))
}

// UnresolvedError reports --continue while conflicted paths remain.
type UnresolvedError struct {
	Paths []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("%d file(s) still have conflicts", len(e.Paths))
}

// MergeRequest is the intent of one merge invocation. Zero Strategy and
// Into fall back to the configured strategy and the recorded trunk.
type MergeRequest struct {
	Branch    string
	Strategy  config.Strategy
	Into      string
	Keep      bool
	SkipHooks bool
}

// SyncRequest is the intent of one sync invocation.
type SyncRequest struct {
	Branch   string
	Strategy config.Strategy
}

// Engine executes merges and syncs for one repository's worktrees.
type Engine struct {
	cfg    config.Config
	ws     *workspace.Manager
	hooks  *hook.Runner
	logger *logging.ScopedLogger
}

// New creates an Engine over the given worktree manager.
func New(cfg config.Config, ws *workspace.Manager, hooks *hook.Runner, logger *logging.ScopedLogger) *Engine {
	return &Engine{cfg: cfg, ws: ws, hooks: hooks, logger: logger}
}

func (e *Engine) mergeMarkerPath(ctx context.Context) (string, error) {
	commonDir, err := e.ws.Git().GitCommonDir(ctx)
	if err != nil {
		return "", err
	}
	return filepath.Join(commonDir, MergeMarkerName), nil
}

func syncMarkerPath(ctx context.Context, treeGit *git.Client) (string, error) {
	gitDir, err := treeGit.GitDir(ctx)
	if err != nil {
		return "", err
	}
	return filepath.Join(gitDir, SyncMarkerName), nil
}

// Merge integrates a worktree's branch into its trunk (or an explicit
// target). On conflicts it writes the merge marker and returns
// *SuspendedError; the worktree is never removed in that case. On a
// clean run it runs post_merge hooks and, unless Keep, removes the
// worktree.
func (e *Engine) Merge(ctx context.Context, req MergeRequest) error {
	tree, err := e.ws.Resolve(ctx, req.Branch)
	if err != nil {
		return err
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = e.cfg.MergeStrategy
	}
	into := req.Into
	if into == "" {
		if tree.Meta != nil && tree.Meta.Trunk != "" {
			into = tree.Meta.Trunk
		} else if into, err = e.ws.Trunk(ctx); err != nil {
			return err
		}
	}

	mainGit := e.ws.Git()
	markerPath, err := e.mergeMarkerPath(ctx)
	if err != nil {
		return err
	}

	// Precheck. The marker presence check is the sole mutual exclusion
	// between invocations sharing this main repository; it is advisory,
	// not a held lock.
	if markerExists(markerPath) {
		var prev MergeState
		if _, err := readMarker(markerPath, &prev); err != nil {
			return err
		}
		return &InProgressError{Op: "merge", Branch: prev.Branch}
	}
	if dirty, err := mainGit.HasUncommitted(ctx); err != nil {
		return err
	} else if dirty {
		return fmt.Errorf("main repository at %s has uncommitted changes", e.ws.RepoRoot())
	}
	if busy, err := mainGit.OperationInProgress(ctx); err != nil {
		return err
	} else if busy {
		return fmt.Errorf("main repository at %s has another git operation in progress", e.ws.RepoRoot())
	}

	if !req.SkipHooks {
		if err := e.hooks.Run(ctx, e.cfg.Hooks.PreMerge, tree.Path); err != nil {
			return fmt.Errorf("pre_merge hooks: %w", err)
		}
	}

	startedFrom, err := mainGit.CurrentBranch(ctx)
	if err != nil {
		return err
	}

	state := MergeState{
		Branch:      tree.Branch,
		Strategy:    strategy,
		Into:        into,
		Keep:        req.Keep,
		SkipHooks:   req.SkipHooks,
		StartedFrom: startedFrom,
	}

	e.logger.Info("merge started", "branch", tree.Branch, "strategy", string(strategy), "into", into)

	if err := e.performMerge(ctx, tree, strategy, into); err != nil {
		var conflict *git.ConflictError
		if errors.As(err, &conflict) {
			if werr := writeMarker(markerPath, &state); werr != nil {
				return fmt.Errorf("merge conflicted and the marker could not be written: %w", werr)
			}
			e.logger.Warn("merge suspended on conflicts", "branch", tree.Branch, "paths", conflict.Paths)
			return &SuspendedError{Op: "merge", Paths: conflict.Paths}
		}
		return fmt.Errorf("merging %q into %q: %w", tree.Branch, into, err)
	}

	return e.finishMerge(ctx, tree, &state)
}

// performMerge runs the strategy's VCS steps. A rebase strategy replays
// the branch inside its own worktree first, then fast-forwards the
// target in the main checkout.
func (e *Engine) performMerge(ctx context.Context, tree *workspace.Tree, strategy config.Strategy, into string) error {
	mainGit := e.ws.Git()
	switch strategy {
	case config.StrategySquash:
		if err := mainGit.Checkout(ctx, into); err != nil {
			return err
		}
		if err := mainGit.Merge(ctx, tree.Branch, true, false); err != nil {
			return err
		}
		return mainGit.Commit(ctx, fmt.Sprintf("Squash branch '%s'", tree.Branch))
	case config.StrategyMerge:
		if err := mainGit.Checkout(ctx, into); err != nil {
			return err
		}
		return mainGit.Merge(ctx, tree.Branch, false, true)
	case config.StrategyRebase:
		if err := mainGit.In(tree.Path).Rebase(ctx, into); err != nil {
			return err
		}
		if err := mainGit.Checkout(ctx, into); err != nil {
			return err
		}
		return mainGit.Merge(ctx, tree.Branch, false, false)
	default:
		return fmt.Errorf("unknown merge strategy %q", strategy)
	}
}

// finishMerge is the shared tail of a clean merge and a successful
// --continue: post_merge hooks (unless the request skipped hooks), then
// worktree removal unless keep.
func (e *Engine) finishMerge(ctx context.Context, tree *workspace.Tree, state *MergeState) error {
	if !state.SkipHooks {
		if err := e.hooks.Run(ctx, e.cfg.Hooks.PostMerge, e.ws.RepoRoot()); err != nil {
			return fmt.Errorf("merged, but post_merge hooks failed: %w", err)
		}
	}
	if !state.Keep {
		if err := e.ws.RemoveTree(ctx, tree, false); err != nil {
			return fmt.Errorf("merged, but removing the worktree failed: %w", err)
		}
	}
	e.logger.Info("merge completed", "branch", state.Branch, "into", state.Into, "kept", state.Keep)
	return nil
}

// MergeContinue finishes a conflict-suspended merge once every path is
// resolved. The outcome is identical to an uncontested run.
func (e *Engine) MergeContinue(ctx context.Context) error {
	markerPath, err := e.mergeMarkerPath(ctx)
	if err != nil {
		return err
	}
	var state MergeState
	found, err := readMarker(markerPath, &state)
	if err != nil {
		return err
	}
	if !found {
		return ErrNothingToContinue
	}

	tree, err := e.ws.Resolve(ctx, state.Branch)
	if err != nil {
		return err
	}

	conflictGit := e.conflictSite(tree, state.Strategy)
	unresolved, err := conflictGit.UnmergedPaths(ctx)
	if err != nil {
		return err
	}
	if len(unresolved) > 0 {
		return &UnresolvedError{Paths: unresolved}
	}

	mainGit := e.ws.Git()
	switch state.Strategy {
	case config.StrategyRebase:
		if err := conflictGit.RebaseContinue(ctx); err != nil {
			return fmt.Errorf("continuing rebase of %q: %w", state.Branch, err)
		}
		if err := mainGit.Checkout(ctx, state.Into); err != nil {
			return err
		}
		if err := mainGit.Merge(ctx, state.Branch, false, false); err != nil {
			return fmt.Errorf("fast-forwarding %q after rebase: %w", state.Into, err)
		}
	default:
		if err := mainGit.MergeContinue(ctx); err != nil {
			return fmt.Errorf("finalizing merge of %q: %w", state.Branch, err)
		}
	}

	if err := e.finishMerge(ctx, tree, &state); err != nil {
		return err
	}
	return removeMarker(markerPath)
}

// MergeAbort restores the main repository to its pre-merge state and
// deletes the marker. The worktree is left as-is for a later retry.
func (e *Engine) MergeAbort(ctx context.Context) error {
	markerPath, err := e.mergeMarkerPath(ctx)
	if err != nil {
		return err
	}
	var state MergeState
	found, err := readMarker(markerPath, &state)
	if err != nil {
		return err
	}
	if !found {
		return ErrNothingToAbort
	}

	mainGit := e.ws.Git()
	switch state.Strategy {
	case config.StrategySquash:
		// A conflicted squash has no MERGE_HEAD, so merge --abort
		// refuses; reset --merge restores the checkout instead.
		if err := mainGit.ResetMerge(ctx); err != nil {
			return fmt.Errorf("aborting squash of %q: %w", state.Branch, err)
		}
	case config.StrategyMerge:
		if err := mainGit.MergeAbort(ctx); err != nil {
			return fmt.Errorf("aborting merge of %q: %w", state.Branch, err)
		}
	case config.StrategyRebase:
		tree, err := e.ws.Resolve(ctx, state.Branch)
		if err != nil {
			return err
		}
		if err := mainGit.In(tree.Path).RebaseAbort(ctx); err != nil {
			return fmt.Errorf("aborting rebase of %q: %w", state.Branch, err)
		}
	}

	if state.StartedFrom != "" && state.StartedFrom != "HEAD" {
		if current, err := mainGit.CurrentBranch(ctx); err == nil && current != state.StartedFrom {
			if err := mainGit.Checkout(ctx, state.StartedFrom); err != nil {
				return fmt.Errorf("merge aborted, but returning to branch %q failed: %w", state.StartedFrom, err)
			}
		}
	}

	e.logger.Info("merge aborted", "branch", state.Branch)
	return removeMarker(markerPath)
}

// conflictSite returns the git client for wherever a strategy's
// conflicts materialize: the worktree for rebase, the main checkout
// otherwise.
func (e *Engine) conflictSite(tree *workspace.Tree, strategy config.Strategy) *git.Client {
	if strategy == config.StrategyRebase {
		return e.ws.Git().In(tree.Path)
	}
	return e.ws.Git()
}

// Sync refreshes a worktree from its trunk, rebasing the tree onto
// trunk or merging trunk into it. It runs entirely inside the worktree;
// its marker lives in the worktree's own git dir, so other worktrees
// can sync concurrently.
func (e *Engine) Sync(ctx context.Context, req SyncRequest) error {
	tree, err := e.ws.Resolve(ctx, req.Branch)
	if err != nil {
		return err
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = config.StrategyRebase
	}
	trunk := ""
	if tree.Meta != nil && tree.Meta.Trunk != "" {
		trunk = tree.Meta.Trunk
	} else if trunk, err = e.ws.Trunk(ctx); err != nil {
		return err
	}

	treeGit := e.ws.Git().In(tree.Path)
	markerPath, err := syncMarkerPath(ctx, treeGit)
	if err != nil {
		return err
	}

	if markerExists(markerPath) {
		var prev SyncState
		if _, err := readMarker(markerPath, &prev); err != nil {
			return err
		}
		return &InProgressError{Op: "sync", Branch: prev.Branch}
	}
	if dirty, err := treeGit.HasUncommitted(ctx); err != nil {
		return err
	} else if dirty {
		return fmt.Errorf("worktree %q has uncommitted changes, commit or stash them before syncing", tree.Branch)
	}
	if busy, err := treeGit.OperationInProgress(ctx); err != nil {
		return err
	} else if busy {
		return fmt.Errorf("worktree %q has another git operation in progress", tree.Branch)
	}

	e.logger.Info("sync started", "branch", tree.Branch, "strategy", string(strategy), "trunk", trunk)

	var syncErr error
	switch strategy {
	case config.StrategyRebase:
		syncErr = treeGit.Rebase(ctx, trunk)
	case config.StrategyMerge:
		syncErr = treeGit.Merge(ctx, trunk, false, false)
	default:
		return fmt.Errorf("unknown sync strategy %q", strategy)
	}

	if syncErr != nil {
		var conflict *git.ConflictError
		if errors.As(syncErr, &conflict) {
			state := SyncState{Branch: tree.Branch, Strategy: strategy, Trunk: trunk}
			if werr := writeMarker(markerPath, &state); werr != nil {
				return fmt.Errorf("sync conflicted and the marker could not be written: %w", werr)
			}
			e.logger.Warn("sync suspended on conflicts", "branch", tree.Branch, "paths", conflict.Paths)
			return &SuspendedError{Op: "sync", Paths: conflict.Paths}
		}
		return fmt.Errorf("syncing %q from %q: %w", tree.Branch, trunk, syncErr)
	}

	e.logger.Info("sync completed", "branch", tree.Branch, "trunk", trunk)
	return nil
}

// SyncContinue finishes a conflict-suspended sync in the given worktree.
func (e *Engine) SyncContinue(ctx context.Context, branch string) error {
	tree, err := e.ws.Resolve(ctx, branch)
	if err != nil {
		return err
	}
	treeGit := e.ws.Git().In(tree.Path)
	markerPath, err := syncMarkerPath(ctx, treeGit)
	if err != nil {
		return err
	}
	var state SyncState
	found, err := readMarker(markerPath, &state)
	if err != nil {
		return err
	}
	if !found {
		return ErrNothingToContinue
	}

	unresolved, err := treeGit.UnmergedPaths(ctx)
	if err != nil {
		return err
	}
	if len(unresolved) > 0 {
		return &UnresolvedError{Paths: unresolved}
	}

	switch state.Strategy {
	case config.StrategyMerge:
		err = treeGit.MergeContinue(ctx)
	default:
		err = treeGit.RebaseContinue(ctx)
	}
	if err != nil {
		return fmt.Errorf("continuing sync of %q: %w", state.Branch, err)
	}

	e.logger.Info("sync completed", "branch", state.Branch, "trunk", state.Trunk)
	return removeMarker(markerPath)
}

// SyncAbort restores the worktree to its pre-sync state.
func (e *Engine) SyncAbort(ctx context.Context, branch string) error {
	tree, err := e.ws.Resolve(ctx, branch)
	if err != nil {
		return err
	}
	treeGit := e.ws.Git().In(tree.Path)
	markerPath, err := syncMarkerPath(ctx, treeGit)
	if err != nil {
		return err
	}
	var state SyncState
	found, err := readMarker(markerPath, &state)
	if err != nil {
		return err
	}
	if !found {
		return ErrNothingToAbort
	}

	switch state.Strategy {
	case config.StrategyMerge:
		err = treeGit.MergeAbort(ctx)
	default:
		err = treeGit.RebaseAbort(ctx)
	}
	if err != nil {
		return fmt.Errorf("aborting sync of %q: %w", state.Branch, err)
	}

	e.logger.Info("sync aborted", "branch", state.Branch)
	return removeMarker(markerPath)
}
