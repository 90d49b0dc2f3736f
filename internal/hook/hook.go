// pattern: Imperative Shell

package hook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"arbor/internal/logging"
)

// Error reports the first hook command that exited non-zero. Commands
// after the failure never run.
type Error struct {
	Command  string
	ExitCode int
}

func (e *Error) Error() string {
	return fmt.Sprintf("hook %q failed with exit code %d", e.Command, e.ExitCode)
}

// Runner executes ordered hook-command lists in a working directory.
// Commands inherit the caller's stdio so long-running hooks (test
// suites, installs) stay visible and interactive. There is no timeout:
// the only way to stop a hook is an external interrupt, which the
// context relays to the child.
type Runner struct {
	logger *logging.ScopedLogger
}

// NewRunner creates a hook Runner.
func NewRunner(logger *logging.ScopedLogger) *Runner {
	return &Runner{logger: logger}
}

// Run executes hooks sequentially in dir, stopping at the first failure.
func (r *Runner) Run(ctx context.Context, hooks []string, dir string) error {
	for _, command := range hooks {
		fmt.Fprintf(os.Stderr, "Running hook: %s\n", command)
		r.logger.Info("running hook", "command", command, "dir", dir)

		if err := r.runOne(ctx, command, dir); err != nil {
			r.logger.Warn("hook failed", "command", command, "error", err)
			return err
		}
	}
	return nil
}

func (r *Runner) runOne(ctx context.Context, command, dir string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &Error{Command: command, ExitCode: exitErr.ExitCode()}
	}
	return fmt.Errorf("spawning hook %q: %w", command, err)
}
