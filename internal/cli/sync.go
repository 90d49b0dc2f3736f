// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"arbor/internal/config"
	"arbor/internal/engine"
)

func syncCommand() *Command {
	usage := "Usage: arbor sync [branch|.] [--strategy rebase|merge] [--continue] [--abort]"
	return &Command{
		Name:    "sync",
		Summary: "Refresh a worktree from its trunk",
		Usage:   usage,
		Run: func(ctx context.Context, args []string) error {
			fs := flag.NewFlagSet("sync", flag.ContinueOnError)
			strategy := fs.String("strategy", "", "rebase or merge (default: rebase)")
			cont := fs.Bool("continue", false, "finish a conflict-suspended sync")
			abort := fs.Bool("abort", false, "abandon a conflict-suspended sync")
			if err := fs.Parse(args); err != nil {
				return fmt.Errorf("%w\n%s", err, usage)
			}
			if *cont && *abort {
				return fmt.Errorf("--continue and --abort are mutually exclusive")
			}

			e, err := buildEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			branch := "."
			if fs.NArg() > 0 {
				branch = fs.Arg(0)
			}

			switch {
			case *cont:
				if err := e.engine.SyncContinue(ctx, branch); err != nil {
					return err
				}
				fmt.Fprintln(os.Stderr, "Sync completed")
				return nil
			case *abort:
				if err := e.engine.SyncAbort(ctx, branch); err != nil {
					return err
				}
				fmt.Fprintln(os.Stderr, "Sync aborted")
				return nil
			}

			var parsed config.Strategy
			if *strategy != "" {
				if parsed, err = config.ParseSyncStrategy(*strategy); err != nil {
					return err
				}
			}

			if err := e.engine.Sync(ctx, engine.SyncRequest{Branch: branch, Strategy: parsed}); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "Sync completed")
			return nil
		},
	}
}
