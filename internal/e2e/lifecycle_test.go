//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"arbor/internal/engine"
	"arbor/internal/workspace"
)

func TestCreateListMergeCycle(t *testing.T) {
	SkipIfGitMissing(t)
	repo := TestRepo(t)
	ws, eng := TestStack(t, repo)
	ctx := context.Background()

	tree, err := ws.Create(ctx, workspace.CreateOptions{Name: "fix-bug"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	entries, err := ws.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	managed := 0
	for _, e := range entries {
		if e.Branch == "fix-bug" {
			managed++
			if e.Meta == nil || e.Meta.BaseCommit == "" {
				t.Errorf("entry missing metadata: %+v", e)
			}
		}
	}
	if managed != 1 {
		t.Fatalf("fix-bug entries = %d, want 1", managed)
	}

	WriteAndCommit(t, tree.Path, "fix.txt", "patched\n", "apply the fix")

	if err := eng.Merge(ctx, engine.MergeRequest{Branch: "fix-bug"}); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if _, err := os.Stat(tree.Path); !os.IsNotExist(err) {
		t.Error("worktree directory survived the merge")
	}
	if _, err := os.Stat(filepath.Join(repo, "fix.txt")); err != nil {
		t.Errorf("merged file not on trunk: %v", err)
	}
}

func TestConflictSuspendAndAbort(t *testing.T) {
	SkipIfGitMissing(t)
	repo := TestRepo(t)
	ws, eng := TestStack(t, repo)
	ctx := context.Background()

	tree, err := ws.Create(ctx, workspace.CreateOptions{Name: "clash"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	WriteAndCommit(t, tree.Path, "README.md", "worktree version\n", "edit readme in worktree")
	WriteAndCommit(t, repo, "README.md", "trunk version\n", "edit readme on trunk")

	err = eng.Merge(ctx, engine.MergeRequest{Branch: "clash"})
	var suspended *engine.SuspendedError
	if !errors.As(err, &suspended) {
		t.Fatalf("Merge error = %v, want *SuspendedError", err)
	}
	if len(suspended.Paths) == 0 {
		t.Error("suspension reported no conflicted paths")
	}

	// A second merge must refuse while the marker is present.
	err = eng.Merge(ctx, engine.MergeRequest{Branch: "clash"})
	var inProgress *engine.InProgressError
	if !errors.As(err, &inProgress) {
		t.Fatalf("second Merge error = %v, want *InProgressError", err)
	}

	if err := eng.MergeAbort(ctx); err != nil {
		t.Fatalf("MergeAbort: %v", err)
	}
	if _, err := os.Stat(tree.Path); err != nil {
		t.Error("abort removed the worktree")
	}

	data, err := os.ReadFile(filepath.Join(repo, "README.md"))
	if err != nil || string(data) != "trunk version\n" {
		t.Errorf("trunk README after abort = %q, %v", data, err)
	}
}

func TestConflictSuspendAndContinue(t *testing.T) {
	SkipIfGitMissing(t)
	repo := TestRepo(t)
	ws, eng := TestStack(t, repo)
	ctx := context.Background()

	tree, err := ws.Create(ctx, workspace.CreateOptions{Name: "clash"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	WriteAndCommit(t, tree.Path, "README.md", "worktree version\n", "edit readme in worktree")
	WriteAndCommit(t, repo, "README.md", "trunk version\n", "edit readme on trunk")

	err = eng.Merge(ctx, engine.MergeRequest{Branch: "clash"})
	var suspended *engine.SuspendedError
	if !errors.As(err, &suspended) {
		t.Fatalf("Merge error = %v, want *SuspendedError", err)
	}

	// Resolve in favor of the worktree and continue.
	if err := os.WriteFile(filepath.Join(repo, "README.md"), []byte("worktree version\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mustGit(t, repo, "add", "README.md")

	if err := eng.MergeContinue(ctx); err != nil {
		t.Fatalf("MergeContinue: %v", err)
	}
	if _, err := os.Stat(tree.Path); !os.IsNotExist(err) {
		t.Error("worktree survived a non-keep continue")
	}
}

func TestSyncRebaseOntoMovedTrunk(t *testing.T) {
	SkipIfGitMissing(t)
	repo := TestRepo(t)
	ws, eng := TestStack(t, repo)
	ctx := context.Background()

	tree, err := ws.Create(ctx, workspace.CreateOptions{Name: "behind"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	WriteAndCommit(t, repo, "trunk.txt", "moved on\n", "advance trunk")
	WriteAndCommit(t, tree.Path, "feature.txt", "work\n", "feature work")

	if err := eng.Sync(ctx, engine.SyncRequest{Branch: "behind"}); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tree.Path, "trunk.txt")); err != nil {
		t.Errorf("trunk commit not present after sync: %v", err)
	}
}
