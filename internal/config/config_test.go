package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMergeScalarOverrideAndListConcat(t *testing.T) {
	global := Global{
		MergeStrategy: "rebase",
		CopyFiles:     []string{".env"},
		Hooks: Hooks{
			PostCreate: []string{"npm install"},
			PreMerge:   []string{"npm test"},
		},
	}
	project := Project{
		Trunk:     "develop",
		CopyFiles: []string{".env.local"},
		Hooks: Hooks{
			PreMerge: []string{"make lint"},
		},
	}

	cfg, err := Merge("/base", global, project)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if cfg.MergeStrategy != StrategyRebase {
		t.Errorf("MergeStrategy = %q", cfg.MergeStrategy)
	}
	if cfg.Trunk != "develop" {
		t.Errorf("Trunk = %q", cfg.Trunk)
	}
	wantCopy := []string{".env", ".env.local"}
	if len(cfg.CopyFiles) != 2 || cfg.CopyFiles[0] != wantCopy[0] || cfg.CopyFiles[1] != wantCopy[1] {
		t.Errorf("CopyFiles = %v, want %v", cfg.CopyFiles, wantCopy)
	}
	// Global hooks run before project hooks.
	if len(cfg.Hooks.PreMerge) != 2 || cfg.Hooks.PreMerge[0] != "npm test" || cfg.Hooks.PreMerge[1] != "make lint" {
		t.Errorf("PreMerge = %v", cfg.Hooks.PreMerge)
	}
	if len(cfg.Hooks.PostCreate) != 1 || cfg.Hooks.PostCreate[0] != "npm install" {
		t.Errorf("PostCreate = %v", cfg.Hooks.PostCreate)
	}
}

func TestMergeDefaults(t *testing.T) {
	cfg, err := Merge("/base", Global{}, Project{})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if cfg.MergeStrategy != StrategySquash {
		t.Errorf("MergeStrategy = %q, want squash", cfg.MergeStrategy)
	}
	if cfg.Trunk != "" {
		t.Errorf("Trunk = %q, want empty (autodetect)", cfg.Trunk)
	}
	if cfg.Theme != "mocha" || cfg.LogLevel != "info" {
		t.Errorf("Theme=%q LogLevel=%q", cfg.Theme, cfg.LogLevel)
	}
	if cfg.WorkspacesDir != filepath.Join("/base", "workspaces") {
		t.Errorf("WorkspacesDir = %q", cfg.WorkspacesDir)
	}
}

func TestMergeRejectsUnknownStrategy(t *testing.T) {
	if _, err := Merge("/base", Global{MergeStrategy: "cherry-pick"}, Project{}); err == nil {
		t.Error("Merge accepted unknown strategy")
	}
}

func TestResolveFromSeedsDefaultGlobal(t *testing.T) {
	base := t.TempDir()
	start := t.TempDir()

	cfg, err := ResolveFrom(base, start, start)
	if err != nil {
		t.Fatalf("ResolveFrom: %v", err)
	}
	if cfg.MergeStrategy != StrategySquash {
		t.Errorf("MergeStrategy = %q", cfg.MergeStrategy)
	}

	seeded := filepath.Join(base, "config.yaml")
	if _, err := os.Stat(seeded); err != nil {
		t.Errorf("default config not seeded at %s: %v", seeded, err)
	}

	// The seeded file parses back to the same defaults.
	again, err := ResolveFrom(base, start, start)
	if err != nil {
		t.Fatalf("second ResolveFrom: %v", err)
	}
	if again.MergeStrategy != cfg.MergeStrategy || again.Theme != cfg.Theme {
		t.Errorf("seeded config = %+v, want %+v", again, cfg)
	}
}

func TestProjectFileFoundByUpwardWalk(t *testing.T) {
	base := t.TempDir()
	repo := t.TempDir()
	nested := filepath.Join(repo, "src", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	projectDoc := "trunk: develop\nhooks:\n  pre_merge:\n    - make check\n"
	if err := os.WriteFile(filepath.Join(repo, ProjectFileName), []byte(projectDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := ResolveFrom(base, nested, repo)
	if err != nil {
		t.Fatalf("ResolveFrom: %v", err)
	}
	if cfg.Trunk != "develop" {
		t.Errorf("Trunk = %q, want develop", cfg.Trunk)
	}
	if len(cfg.Hooks.PreMerge) != 1 || cfg.Hooks.PreMerge[0] != "make check" {
		t.Errorf("PreMerge = %v", cfg.Hooks.PreMerge)
	}
}

func TestUpwardWalkStopsAtRepoRoot(t *testing.T) {
	base := t.TempDir()
	outer := t.TempDir()
	repo := filepath.Join(outer, "repo")
	if err := os.MkdirAll(repo, 0o755); err != nil {
		t.Fatal(err)
	}
	// Marker above the repo root must not be picked up.
	if err := os.WriteFile(filepath.Join(outer, ProjectFileName), []byte("trunk: wrong\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := ResolveFrom(base, repo, repo)
	if err != nil {
		t.Fatalf("ResolveFrom: %v", err)
	}
	if cfg.Trunk != "" {
		t.Errorf("Trunk = %q, want empty", cfg.Trunk)
	}
}

func TestSeedProjectWritesTrunkAndRefusesOverwrite(t *testing.T) {
	base := t.TempDir()
	repo := t.TempDir()

	path, err := SeedProject(repo, "develop")
	if err != nil {
		t.Fatalf("SeedProject: %v", err)
	}
	if path != filepath.Join(repo, ProjectFileName) {
		t.Errorf("path = %q", path)
	}

	cfg, err := ResolveFrom(base, repo, repo)
	if err != nil {
		t.Fatalf("ResolveFrom: %v", err)
	}
	if cfg.Trunk != "develop" {
		t.Errorf("seeded trunk = %q, want develop", cfg.Trunk)
	}

	if _, err := SeedProject(repo, "main"); err == nil {
		t.Error("SeedProject overwrote an existing project config")
	}
}

func TestParseStrategies(t *testing.T) {
	tests := []struct {
		in      string
		sync    bool
		wantErr bool
	}{
		{"squash", false, false},
		{"merge", false, false},
		{"rebase", false, false},
		{"octopus", false, true},
		{"rebase", true, false},
		{"merge", true, false},
		{"squash", true, true},
	}
	for _, tt := range tests {
		var err error
		if tt.sync {
			_, err = ParseSyncStrategy(tt.in)
		} else {
			_, err = ParseMergeStrategy(tt.in)
		}
		if (err != nil) != tt.wantErr {
			t.Errorf("parse(%q, sync=%v) error = %v, wantErr %v", tt.in, tt.sync, err, tt.wantErr)
		}
	}
}
