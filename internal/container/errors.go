// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/crossrun/crossrun/internal/issue"
	"github.com/crossrun/crossrun/internal/process"
)

const (
	// engineFailureExitCode is returned by docker, podman and nerdctl when the
	// engine itself failed before the contained command ran.
	engineFailureExitCode = 125

	stderrTailSize = 4096
)

// ErrExecutionBackend is the sentinel error wrapped by ExecutionBackendError.
var ErrExecutionBackend = errors.New("container engine failure")

type (
	// ExecutionBackendError reports a failure of the engine rather than of the
	// contained command: an unreachable daemon, an unpullable image, or a
	// container that could not be created.
	ExecutionBackendError struct {
		Engine string
		Op     string
		// ExitCode is the exit status of the engine CLI, 0 when not applicable.
		ExitCode int
		// Stderr is the end of the engine's error output.
		Stderr string
		Cause  error
	}

	// tailBuffer keeps the last max bytes written to it.
	tailBuffer struct {
		mu  sync.Mutex
		max int
		buf []byte
	}
)

// Error implements the error interface.
func (e *ExecutionBackendError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s failed", e.Engine, e.Op)
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit status %d)", e.ExitCode)
	}
	if e.Cause != nil && e.ExitCode == 0 {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if msg := strings.TrimSpace(e.Stderr); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	return b.String()
}

// Unwrap returns the sentinel and the cause.
func (e *ExecutionBackendError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrExecutionBackend}
	}
	return []error{ErrExecutionBackend, e.Cause}
}

// ErrorKind classifies the error as an execution backend failure.
func (e *ExecutionBackendError) ErrorKind() issue.Kind { return issue.KindExecutionBackend }

// IsEngineFailure reports whether err came from the engine failing before the
// contained command ran, as opposed to the command itself exiting nonzero.
// Context cancellation is never an engine failure.
func IsEngineFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrExecutionBackend) {
		return true
	}
	code, ok := process.ExitCode(err)
	return ok && code == engineFailureExitCode
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

// Write implements io.Writer. It never fails.
func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(p)
	if n >= b.max {
		b.buf = append(b.buf[:0], p[n-b.max:]...)
		return n, nil
	}
	if over := len(b.buf) + n - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	b.buf = append(b.buf, p...)
	return n, nil
}

// String returns the retained bytes without surrounding whitespace.
func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
