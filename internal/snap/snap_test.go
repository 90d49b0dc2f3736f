package snap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"arbor/internal/config"
	"arbor/internal/engine"
	"arbor/internal/git"
	"arbor/internal/hook"
	"arbor/internal/logging"
	"arbor/internal/prompt"
	"arbor/internal/workspace"
)

type stubDecider struct {
	selections []string // consumed in order
	message    string
	asked      []string
}

func (d *stubDecider) Select(title string, choices []prompt.Choice) (string, error) {
	d.asked = append(d.asked, title)
	if len(d.selections) == 0 {
		return "", prompt.ErrCancelled
	}
	choice := d.selections[0]
	d.selections = d.selections[1:]
	return choice, nil
}

func (d *stubDecider) CommitMessage() (string, error) {
	if d.message == "" {
		return "", prompt.ErrCancelled
	}
	return d.message, nil
}

type fixture struct {
	orch      *Orchestrator
	ws        *workspace.Manager
	tree      *workspace.Tree
	responses map[string]git.Result
	calls     *[]string
	treePath  string
	runFn     git.Runner // swappable mid-test
}

func newFixture(t *testing.T, decider Decider) *fixture {
	t.Helper()
	base := t.TempDir()
	repoRoot := filepath.Join(base, "repo")
	gitDir := filepath.Join(repoRoot, ".git")
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		t.Fatal(err)
	}

	var calls []string
	responses := map[string]git.Result{
		"rev-parse --show-toplevel":                 {Stdout: repoRoot + "\n"},
		"rev-parse --abbrev-ref HEAD":               {Stdout: "main\n"},
		"rev-parse --git-common-dir":                {Stdout: gitDir + "\n"},
		"symbolic-ref refs/remotes/origin/HEAD":     {ExitCode: 1},
		"show-ref --verify --quiet refs/heads/main": {},
		// Untouched tree baseline; tests override per worktree dir.
		"rev-list --count abc123..HEAD": {Stdout: "0\n"},
	}
	f := &fixture{responses: responses, calls: &calls}
	f.runFn = func(_ context.Context, dir string, args ...string) (git.Result, error) {
		argv := strings.Join(args, " ")
		calls = append(calls, dir+" "+argv)
		if res, ok := responses[dir+" "+argv]; ok {
			return res, nil
		}
		if res, ok := responses[argv]; ok {
			return res, nil
		}
		return git.Result{}, nil
	}
	run := func(ctx context.Context, dir string, args ...string) (git.Result, error) {
		return f.runFn(ctx, dir, args...)
	}

	cfg := config.Config{
		BaseDir:       filepath.Join(base, "arbor"),
		WorkspacesDir: filepath.Join(base, "arbor", "workspaces"),
		MergeStrategy: config.StrategySquash,
	}
	logger := logging.Nop()
	client := git.NewWithRunner(repoRoot, run)
	ws, err := workspace.NewManager(context.Background(), cfg, client, hook.NewRunner(logger), logger)
	if err != nil {
		t.Fatal(err)
	}

	treePath := ws.TreePath("feature")
	if err := os.MkdirAll(treePath, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(ws.ProjectDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	doc := "created_at: 2026-01-01T00:00:00Z\nbase_commit: abc123\ntrunk: main\n"
	if err := os.WriteFile(ws.Store().Path("feature"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	responses["worktree list --porcelain"] = git.Result{
		Stdout: fmt.Sprintf("worktree %s\nHEAD abc\nbranch refs/heads/main\n\nworktree %s\nHEAD def\nbranch refs/heads/feature\n\n", repoRoot, treePath),
	}

	eng := engine.New(cfg, ws, hook.NewRunner(logger), logger)
	orch := New(ws, eng, decider, logger)

	tree, err := ws.Resolve(context.Background(), "feature")
	if err != nil {
		t.Fatal(err)
	}
	f.orch = orch
	f.ws = ws
	f.tree = tree
	f.treePath = treePath
	return f
}

func (f *fixture) stubAgent(result agentResult) {
	f.orch.runAgentFn = func(_ context.Context, _, _ string, _ *transcriptWriter) (agentResult, error) {
		return result, nil
	}
}

func (f *fixture) called(suffix string) bool {
	for _, c := range *f.calls {
		if strings.HasSuffix(c, suffix) {
			return true
		}
	}
	return false
}

func TestRunCleansUpUntouchedTree(t *testing.T) {
	d := &stubDecider{}
	f := newFixture(t, d)
	f.stubAgent(agentResult{ExitCode: 0})

	code, err := f.orch.Run(context.Background(), f.tree, "true")
	if err != nil || code != 0 {
		t.Fatalf("Run = %d, %v", code, err)
	}
	if len(d.asked) != 0 {
		t.Errorf("clean tree prompted: %v", d.asked)
	}
	if !f.called("worktree remove " + f.treePath) {
		t.Errorf("untouched tree not removed, calls: %v", *f.calls)
	}
}

func TestRunAbnormalExitLeavesTreeAlone(t *testing.T) {
	d := &stubDecider{}
	f := newFixture(t, d)
	f.stubAgent(agentResult{ExitCode: 130, Signalled: true})

	code, err := f.orch.Run(context.Background(), f.tree, "true")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 130 {
		t.Errorf("code = %d, want 130", code)
	}
	if len(d.asked) != 0 {
		t.Errorf("abnormal exit prompted: %v", d.asked)
	}
	if f.called("worktree remove " + f.treePath) {
		t.Error("worktree removed after abnormal exit")
	}
}

func TestRunMergeChoiceGoesThroughEngine(t *testing.T) {
	d := &stubDecider{selections: []string{ChoiceMerge}}
	f := newFixture(t, d)
	f.stubAgent(agentResult{ExitCode: 0})
	f.responses[f.treePath+" rev-list --count abc123..HEAD"] = git.Result{Stdout: "2\n"}

	code, err := f.orch.Run(context.Background(), f.tree, "true")
	if err != nil || code != 0 {
		t.Fatalf("Run = %d, %v", code, err)
	}
	if !f.called("merge --squash feature") {
		t.Errorf("merge did not run, calls: %v", *f.calls)
	}
	if len(d.asked) != 1 || !strings.Contains(d.asked[0], "Committed work") {
		t.Errorf("asked = %v", d.asked)
	}
}

func TestRunDirtyCommitThenMerge(t *testing.T) {
	d := &stubDecider{selections: []string{ChoiceCommit, ChoiceMerge}, message: "wip: agent output"}
	f := newFixture(t, d)
	f.stubAgent(agentResult{ExitCode: 0})
	// Dirty before the commit, then the next classification sees a
	// clean tree with commits.
	dirtyKey := f.treePath + " status --porcelain"
	f.responses[dirtyKey] = git.Result{Stdout: " M agent.out\n"}
	f.orch.runAgentFn = func(_ context.Context, _, _ string, _ *transcriptWriter) (agentResult, error) {
		return agentResult{ExitCode: 0}, nil
	}
	// Flip the status answer once the commit lands.
	commitSeen := false
	inner := f.runFn
	f.runFn = func(ctx context.Context, dir string, args ...string) (git.Result, error) {
		if strings.HasPrefix(strings.Join(args, " "), "commit -m") {
			commitSeen = true
			delete(f.responses, dirtyKey)
			f.responses[f.treePath+" rev-list --count abc123..HEAD"] = git.Result{Stdout: "1\n"}
		}
		return inner(ctx, dir, args...)
	}

	code, err := f.orch.Run(context.Background(), f.tree, "true")
	if err != nil || code != 0 {
		t.Fatalf("Run = %d, %v", code, err)
	}
	if !commitSeen {
		t.Error("no commit ran")
	}
	if !f.called("add --all") {
		t.Error("changes were not staged")
	}
	if !f.called("merge --squash feature") {
		t.Errorf("merge did not follow the commit, calls: %v", *f.calls)
	}
}

func TestRunReopenRespawnsAgent(t *testing.T) {
	d := &stubDecider{selections: []string{ChoiceReopen, ChoiceLeave}}
	f := newFixture(t, d)
	f.responses[f.treePath+" status --porcelain"] = git.Result{Stdout: "?? out.txt\n"}

	spawns := 0
	f.orch.runAgentFn = func(_ context.Context, _, _ string, _ *transcriptWriter) (agentResult, error) {
		spawns++
		return agentResult{ExitCode: 0}, nil
	}

	code, err := f.orch.Run(context.Background(), f.tree, "true")
	if err != nil || code != 0 {
		t.Fatalf("Run = %d, %v", code, err)
	}
	if spawns != 2 {
		t.Errorf("agent spawned %d times, want 2", spawns)
	}
	if f.called("worktree remove " + f.treePath) {
		t.Error("leave choice removed the worktree")
	}
}

func TestRunCancelledPromptLeavesTree(t *testing.T) {
	d := &stubDecider{} // every Select cancels
	f := newFixture(t, d)
	f.stubAgent(agentResult{ExitCode: 0})
	f.responses[f.treePath+" status --porcelain"] = git.Result{Stdout: "?? out.txt\n"}

	code, err := f.orch.Run(context.Background(), f.tree, "true")
	if err != nil || code != 0 {
		t.Fatalf("Run = %d, %v", code, err)
	}
	if f.called("worktree remove " + f.treePath) {
		t.Error("cancel removed the worktree")
	}
}
