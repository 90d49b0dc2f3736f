// pattern: Functional Core
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Strategy selects how a worktree's commits are integrated into the
// target branch.
type Strategy string

const (
	StrategySquash Strategy = "squash"
	StrategyMerge  Strategy = "merge"
	StrategyRebase Strategy = "rebase"
)

// ParseMergeStrategy validates a merge strategy name.
func ParseMergeStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategySquash, StrategyMerge, StrategyRebase:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown merge strategy %q (want squash, merge, or rebase)", s)
}

// ParseSyncStrategy validates a sync strategy name. Sync refreshes a
// worktree from trunk, so squash makes no sense there.
func ParseSyncStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyMerge, StrategyRebase:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown sync strategy %q (want rebase or merge)", s)
}

// Hooks holds the three ordered hook-command lists. Commands run
// sequentially and the pipeline stops at the first failure.
type Hooks struct {
	PostCreate []string `yaml:"post_create"`
	PreMerge   []string `yaml:"pre_merge"`
	PostMerge  []string `yaml:"post_merge"`
}

// Global is the document at <workspace-root>/config.yaml.
type Global struct {
	MergeStrategy string   `yaml:"merge_strategy"`
	CopyFiles     []string `yaml:"copy_files"`
	Hooks         Hooks    `yaml:"hooks"`
	Theme         string   `yaml:"theme"`
	LogLevel      string   `yaml:"log_level"`
}

// Project is the optional .arbor.yaml document found by walking upward
// from the invocation directory.
type Project struct {
	Trunk     string   `yaml:"trunk"`
	CopyFiles []string `yaml:"copy_files"`
	Hooks     Hooks    `yaml:"hooks"`
}

// Config is the effective configuration: global and project documents
// merged once per invocation and passed explicitly to every component.
type Config struct {
	BaseDir       string // workspace root, e.g. ~/.arbor
	WorkspacesDir string // <base>/workspaces

	MergeStrategy Strategy
	CopyFiles     []string // global entries first, project appended
	Hooks         Hooks    // same ordering rule per list
	Trunk         string   // project override; "" means autodetect
	Theme         string
	LogLevel      string
}

// ProjectFileName is the upward-search marker for project config.
const ProjectFileName = ".arbor.yaml"

const defaultTemplate = `# arbor global configuration
#
# merge_strategy: how worktrees integrate into trunk (squash, merge, rebase)
merge_strategy: squash

# copy_files: glob patterns copied from the main checkout into new worktrees
copy_files: []
#  - .env
#  - .env.local

# hooks: commands run at lifecycle points, in order, stop on first failure
hooks:
  post_create: []
  pre_merge: []
  post_merge: []

# theme: prompt color flavor (latte, frappe, macchiato, mocha)
theme: mocha

# log_level: debug, info, warn, error
log_level: info
`

const projectTemplate = `# arbor project configuration
#
# trunk: the branch worktrees are based on and merged into
trunk: %s

# copy_files: glob patterns copied into new worktrees, after the global list
copy_files: []
#  - .env.local

# hooks: appended after the global lists
hooks:
  post_create: []
  pre_merge: []
  post_merge: []
`

// SeedProject writes a commented project config into dir with the given
// trunk filled in. An existing file is never overwritten.
func SeedProject(dir, trunk string) (string, error) {
	path := filepath.Join(dir, ProjectFileName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("project config %s already exists", path)
	}
	if err := os.WriteFile(path, []byte(fmt.Sprintf(projectTemplate, trunk)), 0o644); err != nil {
		return "", fmt.Errorf("writing project config %s: %w", path, err)
	}
	return path, nil
}

// DefaultGlobal returns the documented defaults.
func DefaultGlobal() Global {
	return Global{
		MergeStrategy: string(StrategySquash),
		Theme:         "mocha",
		LogLevel:      "info",
	}
}

// BaseDir returns the workspace root: $ARBOR_HOME if set, else ~/.arbor.
func BaseDir() (string, error) {
	if home := os.Getenv("ARBOR_HOME"); home != "" {
		return home, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, ".arbor"), nil
}

// Resolve loads and merges global and project config. startDir is the
// invocation directory; stopDir bounds the upward project-file search
// (usually the repository root; "" walks to the filesystem root).
func Resolve(startDir, stopDir string) (Config, error) {
	base, err := BaseDir()
	if err != nil {
		return Config{}, err
	}
	return ResolveFrom(base, startDir, stopDir)
}

// ResolveFrom is Resolve with an explicit workspace root (for testing).
func ResolveFrom(baseDir, startDir, stopDir string) (Config, error) {
	global, err := loadGlobal(baseDir)
	if err != nil {
		return Config{}, err
	}

	project, err := loadProject(startDir, stopDir)
	if err != nil {
		return Config{}, err
	}

	return Merge(baseDir, global, project)
}

// Merge combines global and project documents into the effective config.
// Scalars: project overrides global. Lists: concatenated, global entries
// first; the ordering determines hook execution order.
func Merge(baseDir string, global Global, project Project) (Config, error) {
	strategyName := global.MergeStrategy
	if strategyName == "" {
		strategyName = string(StrategySquash)
	}
	strategy, err := ParseMergeStrategy(strategyName)
	if err != nil {
		return Config{}, fmt.Errorf("global config: %w", err)
	}

	theme := global.Theme
	if theme == "" {
		theme = "mocha"
	}
	logLevel := global.LogLevel
	if logLevel == "" {
		logLevel = "info"
	}

	return Config{
		BaseDir:       baseDir,
		WorkspacesDir: filepath.Join(baseDir, "workspaces"),
		MergeStrategy: strategy,
		CopyFiles:     concat(global.CopyFiles, project.CopyFiles),
		Hooks: Hooks{
			PostCreate: concat(global.Hooks.PostCreate, project.Hooks.PostCreate),
			PreMerge:   concat(global.Hooks.PreMerge, project.Hooks.PreMerge),
			PostMerge:  concat(global.Hooks.PostMerge, project.Hooks.PostMerge),
		},
		Trunk:    project.Trunk,
		Theme:    theme,
		LogLevel: logLevel,
	}, nil
}

// ProjectDir returns the per-project workspace directory.
func (c Config) ProjectDir(project string) string {
	return filepath.Join(c.WorkspacesDir, project)
}

func concat(global, project []string) []string {
	if len(global) == 0 && len(project) == 0 {
		return nil
	}
	out := make([]string, 0, len(global)+len(project))
	out = append(out, global...)
	out = append(out, project...)
	return out
}

// loadGlobal reads <base>/config.yaml, seeding it with the documented
// defaults on first run.
func loadGlobal(baseDir string) (Global, error) {
	path := filepath.Join(baseDir, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Global{}, fmt.Errorf("reading global config %s: %w", path, err)
		}
		if seedErr := seedGlobal(baseDir, path); seedErr != nil {
			return Global{}, seedErr
		}
		return DefaultGlobal(), nil
	}

	cfg := DefaultGlobal()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Global{}, fmt.Errorf("parsing global config %s: %w", path, err)
	}
	return cfg, nil
}

func seedGlobal(baseDir, path string) error {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return fmt.Errorf("creating workspace root %s: %w", baseDir, err)
	}
	if err := os.WriteFile(path, []byte(defaultTemplate), 0o644); err != nil {
		return fmt.Errorf("writing default global config %s: %w", path, err)
	}
	return nil
}

// loadProject walks upward from startDir looking for the project marker
// file. Absence is not an error; the project config is simply empty.
func loadProject(startDir, stopDir string) (Project, error) {
	dir := startDir
	for dir != "" {
		path := filepath.Join(dir, ProjectFileName)
		data, err := os.ReadFile(path)
		if err == nil {
			var proj Project
			if err := yaml.Unmarshal(data, &proj); err != nil {
				return Project{}, fmt.Errorf("parsing project config %s: %w", path, err)
			}
			return proj, nil
		}
		if !os.IsNotExist(err) {
			return Project{}, fmt.Errorf("reading project config %s: %w", path, err)
		}

		if dir == stopDir {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return Project{}, nil
}
