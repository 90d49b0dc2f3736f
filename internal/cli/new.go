// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"arbor/internal/prompt"
	"arbor/internal/snap"
	"arbor/internal/workspace"
)

func newCommand() *Command {
	usage := "Usage: arbor new [name] [--base REF] [--snap CMD]"
	return &Command{
		Name:    "new",
		Summary: "Create a new managed worktree",
		Usage:   usage,
		Run: func(ctx context.Context, args []string) error {
			fs := flag.NewFlagSet("new", flag.ContinueOnError)
			base := fs.String("base", "", "ref to branch from (default: trunk tip)")
			snapCmd := fs.String("snap", "", "run this agent command in the new worktree and supervise it")
			if err := fs.Parse(args); err != nil {
				return fmt.Errorf("%w\n%s", err, usage)
			}
			name := ""
			if fs.NArg() > 0 {
				name = fs.Arg(0)
			}

			e, err := buildEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			tree, err := e.ws.Create(ctx, workspace.CreateOptions{
				Name:        name,
				Base:        *base,
				SnapCommand: *snapCmd,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Created worktree %s\n", tree.Branch)
			fmt.Println(tree.Path)

			if *snapCmd == "" {
				return nil
			}

			orch := snap.New(e.ws, e.engine, prompt.New(e.cfg.Theme), e.logs.For("snap"))
			code, err := orch.Run(ctx, tree, *snapCmd)
			if err != nil {
				return err
			}
			if code != 0 {
				e.Close()
				os.Exit(code)
			}
			return nil
		},
	}
}
