// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strconv"
)

// Reserved exit codes. An inner build that exits with one of these values is
// still passed through unchanged; the orchestrator only emits them when it
// could not reach the point of running the build tool.
const (
	// ExitCodeConfig reports a malformed invocation or configuration.
	ExitCodeConfig ExitCode = 120
	// ExitCodeUnsupportedTarget reports a triple missing from the registry.
	ExitCodeUnsupportedTarget ExitCode = 121
	// ExitCodeEmulationUnavailable reports a missing binfmt handler.
	ExitCodeEmulationUnavailable ExitCode = 122
	// ExitCodeExecutionBackend reports an unreachable engine or an unpullable image.
	ExitCodeExecutionBackend ExitCode = 123
	// ExitCodeInternal reports an orchestration failure outside the taxonomy.
	ExitCodeInternal ExitCode = 124
	// ExitCodeInterrupted follows the shell convention of 128+SIGINT.
	ExitCodeInterrupted ExitCode = 130

	reservedLow  ExitCode = ExitCodeConfig
	reservedHigh ExitCode = ExitCodeInternal
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode represents a process exit status code.
	// Exit codes are in the range 0-255 on POSIX systems.
	// The zero value (0) means success.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode is outside the
	// valid range (0-255).
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode so callers can use errors.Is for programmatic detection.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate returns an error if the ExitCode is outside the valid range (0-255).
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == 0 }

// IsReserved reports whether c falls in the orchestration-failure range.
func (c ExitCode) IsReserved() bool { return c >= reservedLow && c <= reservedHigh }

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }
