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

func mergeCommand() *Command {
	usage := "Usage: arbor merge [branch|.] [--strategy squash|merge|rebase] [--into BRANCH] [--keep] [--skip-hooks] [--continue] [--abort]"
	return &Command{
		Name:    "merge",
		Summary: "Integrate a worktree's branch into trunk",
		Usage:   usage,
		Run: func(ctx context.Context, args []string) error {
			fs := flag.NewFlagSet("merge", flag.ContinueOnError)
			strategy := fs.String("strategy", "", "squash, merge, or rebase (default: configured strategy)")
			into := fs.String("into", "", "target branch (default: the worktree's recorded trunk)")
			keep := fs.Bool("keep", false, "keep the worktree after a successful merge")
			skipHooks := fs.Bool("skip-hooks", false, "skip pre_merge and post_merge hooks")
			cont := fs.Bool("continue", false, "finish a conflict-suspended merge")
			abort := fs.Bool("abort", false, "abandon a conflict-suspended merge")
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

			switch {
			case *cont:
				if err := e.engine.MergeContinue(ctx); err != nil {
					return err
				}
				fmt.Fprintln(os.Stderr, "Merge completed")
				return nil
			case *abort:
				if err := e.engine.MergeAbort(ctx); err != nil {
					return err
				}
				fmt.Fprintln(os.Stderr, "Merge aborted")
				return nil
			}

			var parsed config.Strategy
			if *strategy != "" {
				if parsed, err = config.ParseMergeStrategy(*strategy); err != nil {
					return err
				}
			}

			branch := "."
			if fs.NArg() > 0 {
				branch = fs.Arg(0)
			}

			if err := e.engine.Merge(ctx, engine.MergeRequest{
				Branch:    branch,
				Strategy:  parsed,
				Into:      *into,
				Keep:      *keep,
				SkipHooks: *skipHooks,
			}); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "Merge completed")
			return nil
		},
	}
}
