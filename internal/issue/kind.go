// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"context"
	"errors"

	"github.com/crossrun/crossrun/pkg/types"
)

// Failure classes. A nonzero exit from the build tool itself is not a Kind:
// it is a successful orchestration that carries the inner exit code.
const (
	KindUnknown Kind = iota
	KindConfig
	KindUnsupportedTarget
	KindEmulationUnavailable
	KindExecutionBackend
	KindInterrupted
	KindInternal
)

// ErrInterrupted marks a run stopped by SIGINT or SIGTERM.
var ErrInterrupted = errors.New("interrupted")

type (
	// Kind classifies an orchestration failure.
	Kind int

	// Classified is implemented by errors that know their own Kind.
	Classified interface {
		ErrorKind() Kind
	}
)

// String returns the taxonomy name of k.
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindUnsupportedTarget:
		return "UnsupportedTargetError"
	case KindEmulationUnavailable:
		return "EmulationUnavailableError"
	case KindExecutionBackend:
		return "ExecutionBackendError"
	case KindInterrupted:
		return "Interrupted"
	case KindInternal:
		return "InternalError"
	default:
		return "UnknownError"
	}
}

// ExitCode maps k into the reserved exit-code range.
func (k Kind) ExitCode() types.ExitCode {
	switch k {
	case KindConfig:
		return types.ExitCodeConfig
	case KindUnsupportedTarget:
		return types.ExitCodeUnsupportedTarget
	case KindEmulationUnavailable:
		return types.ExitCodeEmulationUnavailable
	case KindExecutionBackend:
		return types.ExitCodeExecutionBackend
	case KindInterrupted:
		return types.ExitCodeInterrupted
	default:
		return types.ExitCodeInternal
	}
}

// KindOf returns the first Kind found in err's chain. Context cancellation
// counts as an interrupt.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var c Classified
	if errors.As(err, &c) {
		if k := c.ErrorKind(); k != KindUnknown {
			return k
		}
	}
	if errors.Is(err, ErrInterrupted) || errors.Is(err, context.Canceled) {
		return KindInterrupted
	}
	return KindUnknown
}

// ExitCodeFor returns the reserved exit code for an orchestration error.
// Unclassified errors map to the internal-error code.
func ExitCodeFor(err error) types.ExitCode {
	return KindOf(err).ExitCode()
}
