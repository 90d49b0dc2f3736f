// pattern: Imperative Shell

package snap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// agentResult describes how the supervised agent process ended.
type agentResult struct {
	ExitCode  int
	Signalled bool
}

// runAgent spawns the configured command with sh -c inside the worktree
// and blocks until it exits. With a terminal on stdin the agent runs
// under a PTY so its output can be mirrored into the transcript;
// otherwise it inherits the process streams directly. Interrupt signals
// are relayed to the child, and window resizes follow the terminal.
func runAgent(ctx context.Context, command, dir string, transcript io.Writer) (agentResult, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return waitAgent(cmd.Run())
	}

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return agentResult{}, fmt.Errorf("starting agent under pty: %w", err)
	}
	defer func() { _ = ptmx.Close() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGWINCH, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGWINCH {
				_ = pty.InheritSize(os.Stdin, ptmx)
				continue
			}
			if cmd.Process != nil {
				_ = cmd.Process.Signal(sig)
			}
		}
	}()
	sigCh <- syscall.SIGWINCH // initial size

	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return agentResult{}, fmt.Errorf("entering raw mode: %w", err)
	}
	defer func() { _ = term.Restore(int(os.Stdin.Fd()), oldState) }()

	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		forwardInput(os.Stdin, ptmx)
	}()

	out := io.MultiWriter(os.Stdout, transcript)
	_, _ = io.Copy(out, ptmx)

	res, waitErr := waitAgent(cmd.Wait())

	// Unblock the stdin forwarder before returning. A deadline in the
	// past fails its pending read without consuming any input, so a
	// keystroke typed now still reaches whoever reads stdin next.
	if err := os.Stdin.SetReadDeadline(time.Now()); err == nil {
		<-inputDone
		_ = os.Stdin.SetReadDeadline(time.Time{})
	}

	return res, waitErr
}

// forwardInput copies src to dst until a read or write fails. A read
// deadline set on src from another goroutine stops it between
// keystrokes.
func forwardInput(src *os.File, dst io.Writer) {
	buf := make([]byte, 4096)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func waitAgent(err error) (agentResult, error) {
	if err == nil {
		return agentResult{ExitCode: 0}, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		status, ok := exitErr.Sys().(syscall.WaitStatus)
		if ok && status.Signaled() {
			return agentResult{ExitCode: 128 + int(status.Signal()), Signalled: true}, nil
		}
		return agentResult{ExitCode: exitErr.ExitCode()}, nil
	}
	return agentResult{}, fmt.Errorf("running agent: %w", err)
}
