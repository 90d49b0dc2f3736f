//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"arbor/internal/config"
	"arbor/internal/engine"
	"arbor/internal/git"
	"arbor/internal/hook"
	"arbor/internal/logging"
	"arbor/internal/workspace"
)

// SkipIfGitMissing skips the test when git is not installed.
func SkipIfGitMissing(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("Skipping test: git not found in PATH")
	}
}

// TestRepo creates a real repository with one commit on main and
// returns its path.
func TestRepo(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "repo")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	mustGit(t, dir, "init", "-b", "main")
	mustGit(t, dir, "config", "user.email", "e2e@example.com")
	mustGit(t, dir, "config", "user.name", "e2e")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mustGit(t, dir, "add", ".")
	mustGit(t, dir, "commit", "-m", "initial commit")
	return dir
}

func mustGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

// WriteAndCommit writes a file in dir and commits it.
func WriteAndCommit(t *testing.T, dir, name, content, message string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	mustGit(t, dir, "add", ".")
	mustGit(t, dir, "commit", "-m", message)
}

// TestStack wires a Manager and Engine over a real repository, with the
// workspace root inside the test's temp space.
func TestStack(t *testing.T, repoDir string) (*workspace.Manager, *engine.Engine) {
	t.Helper()
	base := t.TempDir()
	cfg := config.Config{
		BaseDir:       base,
		WorkspacesDir: filepath.Join(base, "workspaces"),
		MergeStrategy: config.StrategySquash,
		Trunk:         "main",
	}
	logger := logging.Nop()
	hooks := hook.NewRunner(logger)
	ws, err := workspace.NewManager(context.Background(), cfg, git.New(repoDir), hooks, logger)
	if err != nil {
		t.Fatal(err)
	}
	return ws, engine.New(cfg, ws, hooks, logger)
}
