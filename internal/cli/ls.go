// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	flag "github.com/spf13/pflag"

	"arbor/internal/workspace"
)

func lsCommand() *Command {
	usage := "Usage: arbor ls [--watch]"
	return &Command{
		Name:    "ls",
		Summary: "List this project's worktrees",
		Usage:   usage,
		Run: func(ctx context.Context, args []string) error {
			fs := flag.NewFlagSet("ls", flag.ContinueOnError)
			watch := fs.Bool("watch", false, "re-render when worktrees or metadata change")
			if err := fs.Parse(args); err != nil {
				return fmt.Errorf("%w\n%s", err, usage)
			}

			e, err := buildEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if !*watch {
				entries, err := e.ws.List(ctx)
				if err != nil {
					return err
				}
				renderEntries(os.Stdout, entries)
				return nil
			}
			return watchEntries(ctx, e.ws)
		},
	}
}

// renderEntries prints the listing in columns: branch, status flags,
// age, path. Corrupt metadata shows as a warning line under its entry.
func renderEntries(w io.Writer, entries []workspace.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no worktrees")
		return
	}
	for _, e := range entries {
		var flags []string
		if e.Current {
			flags = append(flags, "*")
		}
		if e.HasUncommitted {
			flags = append(flags, "dirty")
		}
		if e.CommitsAhead > 0 {
			flags = append(flags, fmt.Sprintf("+%d", e.CommitsAhead))
		}
		if e.Foreign {
			flags = append(flags, "foreign")
		}
		age := ""
		if e.Meta != nil {
			age = shortAge(time.Since(e.Meta.CreatedAt))
		}
		fmt.Fprintf(w, "%-24s %-12s %-6s %s\n", e.Branch, strings.Join(flags, ","), age, e.Path)
		if e.MetaErr != nil {
			fmt.Fprintf(w, "  warning: %v\n", e.MetaErr)
		}
	}
}

func shortAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// watchEntries renders the listing, then re-renders whenever the
// project's workspace directory changes. Events are debounced because
// git touches many files per operation.
func watchEntries(ctx context.Context, ws *workspace.Manager) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := os.MkdirAll(ws.ProjectDir(), 0o755); err != nil {
		return err
	}
	if err := watcher.Add(ws.ProjectDir()); err != nil {
		return fmt.Errorf("watching %s: %w", ws.ProjectDir(), err)
	}

	render := func() {
		entries, err := ws.List(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "arbor: %v\n", err)
			return
		}
		fmt.Print("\033[H\033[2J") // clear before redraw
		renderEntries(os.Stdout, entries)
	}
	render()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			pending = time.After(250 * time.Millisecond)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "arbor: watch error: %v\n", err)
		case <-pending:
			pending = nil
			render()
		}
	}
}
