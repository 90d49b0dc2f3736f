// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
)

// cd and main print a path on stdout; shell wrappers consume it to
// actually change directory.

func cdCommand() *Command {
	return &Command{
		Name:    "cd",
		Summary: "Print the path of a worktree",
		Usage:   "Usage: arbor cd <branch|.>",
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one argument\nUsage: arbor cd <branch|.>")
			}
			e, err := buildEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			tree, err := e.ws.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(tree.Path)
			return nil
		},
	}
}

func mainCommand() *Command {
	return &Command{
		Name:    "main",
		Summary: "Print the path of the main repository checkout",
		Usage:   "Usage: arbor main",
		Run: func(ctx context.Context, args []string) error {
			e, err := buildEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			fmt.Println(e.ws.RepoRoot())
			return nil
		},
	}
}
