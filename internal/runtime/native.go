// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/crossrun/crossrun/internal/issue"
	"github.com/crossrun/crossrun/internal/process"
)

type (
	// ExecCommandFunc creates the command for a host process. Tests replace it.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// NativeRuntime runs the build tool directly on the host.
	NativeRuntime struct {
		// Environ supplies the child's environment, os.Environ when nil.
		Environ func() []string

		execCommand ExecCommandFunc
	}
)

// NewNativeRuntime creates a new native runtime
func NewNativeRuntime() *NativeRuntime {
	return &NativeRuntime{Environ: os.Environ, execCommand: exec.CommandContext}
}

// Name returns the runtime name
func (r *NativeRuntime) Name() string {
	return "native"
}

// Run executes argv on the host with the caller's environment and streams and
// returns its exit code. A process that could not be started or was killed by
// a signal is an error.
func (r *NativeRuntime) Run(ctx context.Context, argv []string, streams Streams) (int, error) {
	if len(argv) == 0 {
		return 0, errors.New("native runtime: empty command")
	}

	cmd := r.command(ctx, argv)
	if r.Environ != nil {
		cmd.Env = r.Environ()
	}
	cmd.Stdin = streams.Stdin
	process.Prepare(cmd, process.Options{Foreground: streams.Interactive})

	err := process.Run(cmd, streams.Stdout, streams.Stderr)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, fmt.Errorf("%s interrupted: %w", argv[0], ctxErr)
	}
	if code, exited := process.ExitCode(err); exited {
		return code, nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return 0, issue.NewErrorContext().
			WithKind(issue.KindExecutionBackend).
			WithOperation("run the build tool on the host").
			WithResource(argv[0]).
			WithSuggestion("install a Rust toolchain with rustup (https://rustup.rs) or put " + argv[0] + " on PATH").
			Wrap(err).
			BuildError()
	}
	return 0, issue.WrapWithContext(err, issue.KindExecutionBackend, "run the build tool on the host", argv[0])
}

func (r *NativeRuntime) command(ctx context.Context, argv []string) *exec.Cmd {
	execCommand := r.execCommand
	if execCommand == nil {
		execCommand = exec.CommandContext
	}
	return execCommand(ctx, argv[0], argv[1:]...)
}
