// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
	"os"
)

func mvCommand() *Command {
	return &Command{
		Name:    "mv",
		Summary: "Rename a worktree and its branch",
		Usage:   "Usage: arbor mv <old|.> <new>",
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected two arguments\nUsage: arbor mv <old|.> <new>")
			}
			e, err := buildEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			tree, err := e.ws.Rename(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Renamed to %s\n", tree.Branch)
			fmt.Println(tree.Path)
			return nil
		},
	}
}
