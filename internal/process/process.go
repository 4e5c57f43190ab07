// SPDX-License-Identifier: MPL-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

// DefaultGrace is how long an interrupted child gets to exit before it is killed.
const DefaultGrace = 10 * time.Second

// Options control how a child is stopped when its context ends.
type Options struct {
	// Foreground keeps the child in the caller's process group so keyboard
	// signals from the terminal reach it directly.
	Foreground bool
	// Grace overrides DefaultGrace when positive.
	Grace time.Duration
}

// Prepare configures cmd, which must come from exec.CommandContext, for
// interruptible execution. Cancellation sends SIGINT first and escalates to
// a kill after the grace period.
func Prepare(cmd *exec.Cmd, opts Options) {
	if !opts.Foreground {
		setProcessGroup(cmd)
	}
	group := !opts.Foreground
	cmd.Cancel = func() error {
		return interrupt(cmd.Process, group)
	}
	cmd.WaitDelay = opts.Grace
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultGrace
	}
}

// Run starts cmd and relays its stdout and stderr to the given writers until
// both streams close, then waits for the process to exit. A nil writer
// discards the stream. An *os.File writer is handed to the child directly so a
// terminal stays a terminal. The returned error is the one from exec.Cmd.Wait,
// so an *exec.ExitError carries the child's exit status.
func Run(cmd *exec.Cmd, stdout, stderr io.Writer) error {
	var g errgroup.Group
	outPipe, err := attach(stdout, cmd.StdoutPipe, &cmd.Stdout)
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	errPipe, err := attach(stderr, cmd.StderrPipe, &cmd.Stderr)
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	if outPipe != nil {
		g.Go(func() error { return relay(writerOrDiscard(stdout), outPipe) })
	}
	if errPipe != nil {
		g.Go(func() error { return relay(writerOrDiscard(stderr), errPipe) })
	}
	relayErr := g.Wait()

	if err := cmd.Wait(); err != nil {
		return err
	}
	if relayErr != nil {
		return fmt.Errorf("relay output: %w", relayErr)
	}
	return nil
}

// attach connects one output stream of cmd. It returns the pipe to relay,
// or nil when the child writes to w itself.
func attach(w io.Writer, pipe func() (io.ReadCloser, error), field *io.Writer) (io.ReadCloser, error) {
	if f, ok := w.(*os.File); ok && f != nil {
		*field = f
		return nil, nil
	}
	return pipe()
}

// ExitCode extracts the exit status carried by err. ok is false when err did
// not come from a process that ran to completion.
func ExitCode(err error) (code int, ok bool) {
	if err == nil {
		return 0, true
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 0, false
	}
	code = exitErr.ExitCode()
	if code < 0 {
		// Terminated by a signal.
		return 0, false
	}
	return code, true
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Interactive reports whether both stdin and stdout are terminals.
func Interactive() bool {
	return IsTerminal(os.Stdin) && IsTerminal(os.Stdout)
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

func relay(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
