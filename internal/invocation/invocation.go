// SPDX-License-Identifier: MPL-2.0

package invocation

import (
	"errors"
	"fmt"
	"slices"

	"github.com/crossrun/crossrun/internal/issue"
)

const (
	SubcommandOther Subcommand = iota
	SubcommandBuild
	SubcommandCheck
	SubcommandTest
	SubcommandRun
	SubcommandCompile
	SubcommandDoc
)

// ErrConfig is the sentinel error wrapped by ConfigError.
var ErrConfig = errors.New("invalid invocation")

type (
	// Subcommand is the recognised build-tool subcommand.
	Subcommand int

	// Invocation is the parsed command line. It is not modified after Parse.
	Invocation struct {
		// Subcommand is the recognised subcommand, SubcommandOther if unknown or absent.
		Subcommand Subcommand
		// SubcommandToken is the subcommand exactly as typed ("b", "build", "rustc").
		SubcommandToken string
		// SubcommandIndex is the position of SubcommandToken in Args, -1 if absent.
		SubcommandIndex int
		// Target is the requested triple, or the host triple when none was given.
		Target string
		// TargetExplicit reports whether Target came from the command line or config
		// rather than host detection.
		TargetExplicit bool
		// Channel is the toolchain selected with a leading "+channel" token.
		Channel string
		// Args are all forwarded tokens in original order, without the
		// target flag and the channel token.
		Args []string
	}

	// ConfigError reports a malformed invocation.
	ConfigError struct {
		Arg    string
		Reason string
	}
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Arg == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Arg, e.Reason)
}

// Unwrap returns ErrConfig for errors.Is() compatibility.
func (e *ConfigError) Unwrap() error { return ErrConfig }

// ErrorKind classifies the error for exit-code mapping.
func (e *ConfigError) ErrorKind() issue.Kind { return issue.KindConfig }

// String returns the canonical subcommand name.
func (s Subcommand) String() string {
	switch s {
	case SubcommandBuild:
		return "build"
	case SubcommandCheck:
		return "check"
	case SubcommandTest:
		return "test"
	case SubcommandRun:
		return "run"
	case SubcommandCompile:
		return "compile"
	case SubcommandDoc:
		return "doc"
	default:
		return "other"
	}
}

// RunsTargetCode reports whether the subcommand executes compiled target binaries.
func (s Subcommand) RunsTargetCode() bool {
	return s == SubcommandTest || s == SubcommandRun
}

// IsNative reports whether the invocation targets the host.
func (inv *Invocation) IsNative(host string) bool {
	return inv.Target == host
}

// HasArg reports whether a forwarded argument equals arg, ignoring anything
// after a bare "--".
func (inv *Invocation) HasArg(arg string) bool {
	args := inv.Args
	if i := slices.Index(args, "--"); i >= 0 {
		args = args[:i]
	}
	return slices.Contains(args, arg)
}
