// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"errors"
	"fmt"

	"github.com/crossrun/crossrun/internal/issue"
)

// ErrEmulationUnavailable is the sentinel error wrapped by EmulationUnavailableError.
var ErrEmulationUnavailable = errors.New("emulation unavailable")

// EmulationUnavailableError is returned when target binaries must run under
// an emulator and the host has no handler registered for the architecture.
type EmulationUnavailableError struct {
	Triple string
	Arch   string
	// Cause is set when the probe itself failed.
	Cause error
}

// Error implements the error interface.
func (e *EmulationUnavailableError) Error() string {
	msg := fmt.Sprintf("cannot run %s binaries: no binfmt_misc handler for qemu-%s", e.Triple, e.Arch)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns ErrEmulationUnavailable for errors.Is() compatibility.
func (e *EmulationUnavailableError) Unwrap() error { return ErrEmulationUnavailable }

// ErrorKind classifies the error for exit-code mapping.
func (e *EmulationUnavailableError) ErrorKind() issue.Kind { return issue.KindEmulationUnavailable }
