// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"arbor/internal/config"
)

func initCommand() *Command {
	usage := "Usage: arbor init [--trunk BRANCH]"
	return &Command{
		Name:    "init",
		Summary: "Write a project config file at the repository root",
		Usage:   usage,
		Run: func(ctx context.Context, args []string) error {
			fs := flag.NewFlagSet("init", flag.ContinueOnError)
			trunk := fs.String("trunk", "", "trunk branch (default: autodetect)")
			if err := fs.Parse(args); err != nil {
				return fmt.Errorf("%w\n%s", err, usage)
			}

			e, err := buildEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			branch := *trunk
			if branch == "" {
				if branch, err = e.ws.Trunk(ctx); err != nil {
					return err
				}
			}

			path, err := config.SeedProject(e.ws.RepoRoot(), branch)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Created %s\n", path)
			fmt.Fprintf(os.Stderr, "Trunk branch: %s\n", branch)
			return nil
		},
	}
}
