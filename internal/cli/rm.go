// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

func rmCommand() *Command {
	usage := "Usage: arbor rm <branch|.> [--force]"
	return &Command{
		Name:    "rm",
		Summary: "Remove a worktree, its branch, and its metadata",
		Usage:   usage,
		Run: func(ctx context.Context, args []string) error {
			fs := flag.NewFlagSet("rm", flag.ContinueOnError)
			force := fs.BoolP("force", "f", false, "discard uncommitted changes")
			if err := fs.Parse(args); err != nil {
				return fmt.Errorf("%w\n%s", err, usage)
			}
			if fs.NArg() != 1 {
				return fmt.Errorf("expected exactly one argument\n%s", usage)
			}

			e, err := buildEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.ws.Remove(ctx, fs.Arg(0), *force); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Removed %s\n", fs.Arg(0))
			return nil
		},
	}
}

func cleanCommand() *Command {
	return &Command{
		Name:    "clean",
		Summary: "Remove every worktree with no diff from trunk",
		Usage:   "Usage: arbor clean",
		Run: func(ctx context.Context, args []string) error {
			e, err := buildEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			removed, err := e.ws.Clean(ctx)
			for _, branch := range removed {
				fmt.Fprintf(os.Stderr, "Removed %s\n", branch)
			}
			if err != nil {
				return err
			}
			if len(removed) == 0 {
				fmt.Fprintln(os.Stderr, "Nothing to clean")
			}
			return nil
		},
	}
}
