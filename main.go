// pattern: Imperative Shell
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"arbor/internal/cli"
)

var version = "dev"

func main() {
	// Stop parsing flags after the first non-flag arg (the verb), so
	// that flags after a verb are handled by the verb itself.
	flag.CommandLine.SetInterspersed(false)

	workspaceRoot := flag.String("workspace-root", "", "workspace root directory (default: $ARBOR_HOME or ~/.arbor)")

	app := cli.BuildApp(version)
	flag.Usage = func() {
		app.PrintHelp(os.Stderr)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *workspaceRoot != "" {
		os.Setenv("ARBOR_HOME", *workspaceRoot)
	}

	// Interrupts cancel the context; running children are signalled
	// through their process group and any in-progress marker survives
	// as the recovery point.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := app.Execute(ctx, flag.Args())
	stop()
	os.Exit(code)
}
