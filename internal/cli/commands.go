// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"arbor/internal/config"
	"arbor/internal/engine"
	"arbor/internal/git"
	"arbor/internal/hook"
	"arbor/internal/logging"
	"arbor/internal/workspace"
)

// env is everything a verb handler needs, wired once per invocation.
type env struct {
	cfg    config.Config
	ws     *workspace.Manager
	engine *engine.Engine
	logs   *logging.Manager
}

// buildEnv resolves configuration, sets up logging, and wires the
// worktree manager and engine for the repository containing the current
// directory. The caller must Close.
func buildEnv(ctx context.Context) (*env, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining current directory: %w", err)
	}

	gitClient := git.New(cwd)
	repoRoot, err := gitClient.RepoRoot(ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Resolve(cwd, repoRoot)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.WorkspacesDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace directory: %w", err)
	}
	logs, err := logging.NewManager(logging.Config{
		FilePath:   filepath.Join(cfg.WorkspacesDir, "arbor.log"),
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 30,
		Level:      cfg.LogLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}

	hooks := hook.NewRunner(logs.For("hook"))
	ws, err := workspace.NewManager(ctx, cfg, gitClient, hooks, logs.For("workspace"))
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	eng := engine.New(cfg, ws, hooks, logs.For("engine"))

	return &env{cfg: cfg, ws: ws, engine: eng, logs: logs}, nil
}

func (e *env) Close() {
	_ = e.logs.Close()
}

// BuildApp creates the CLI application with every verb registered.
func BuildApp(version string) *App {
	app := NewApp(version)

	app.AddCommand(initCommand())
	app.AddCommand(newCommand())
	app.AddCommand(lsCommand())
	app.AddCommand(cdCommand())
	app.AddCommand(mainCommand())
	app.AddCommand(mvCommand())
	app.AddCommand(rmCommand())
	app.AddCommand(cleanCommand())
	app.AddCommand(mergeCommand())
	app.AddCommand(syncCommand())

	app.AddCommand(&Command{
		Name:    "version",
		Summary: "Print version and exit",
		Usage:   "Usage: arbor version",
		Run: func(_ context.Context, _ []string) error {
			fmt.Println(version)
			return nil
		},
	})

	return app
}
