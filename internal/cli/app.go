// pattern: Functional Core
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"arbor/internal/engine"
)

// Command represents a single CLI verb with its metadata and handler.
type Command struct {
	Name    string
	Summary string
	Usage   string
	Run     func(ctx context.Context, args []string) error
}

// App is the top-level CLI application.
type App struct {
	commands map[string]*Command
	order    []string
	version  string
}

// NewApp creates a new CLI application with the given version.
func NewApp(version string) *App {
	return &App{
		commands: make(map[string]*Command),
		version:  version,
	}
}

// AddCommand registers a command. Registration order is help order.
func (a *App) AddCommand(cmd *Command) {
	a.commands[cmd.Name] = cmd
	a.order = append(a.order, cmd.Name)
}

// Execute dispatches the CLI arguments and returns the process exit
// code: 0 on success, 1 on error, 2 when a merge or sync suspended on
// conflicts (a valid state scripts need to distinguish).
func (a *App) Execute(ctx context.Context, args []string) int {
	if len(args) == 0 {
		a.PrintHelp(os.Stderr)
		return 1
	}

	cmd, ok := a.commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		a.PrintHelp(os.Stderr)
		return 1
	}

	for _, arg := range args[1:] {
		if arg == "--help" || arg == "-h" {
			fmt.Fprintf(os.Stderr, "%s\n", cmd.Usage)
			return 0
		}
	}

	return ExitCode(cmd.Run(ctx, args[1:]))
}

// ExitCode maps a command error to the process exit code, reporting the
// error on stderr.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "arbor: %v\n", err)
	var suspended *engine.SuspendedError
	if errors.As(err, &suspended) {
		return 2
	}
	return 1
}

// PrintHelp prints the top-level help text.
func (a *App) PrintHelp(w io.Writer) {
	fmt.Fprintf(w, "Usage: arbor <command> [flags]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, name := range a.order {
		cmd := a.commands[name]
		fmt.Fprintf(w, "  %-9s %s\n", cmd.Name, cmd.Summary)
	}
	fmt.Fprintf(w, "\nUse \"arbor <command> --help\" for command details.\n")
}
