// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"github.com/crossrun/crossrun/internal/issue"
	"github.com/crossrun/crossrun/pkg/types"
)

const (
	// StateIdle is the state before anything happened.
	StateIdle State = iota
	// StateResolving looks up the target and computes mounts and environment.
	StateResolving
	// StateBuilding assembles the command line or execution spec.
	StateBuilding
	// StateLaunching checks the engine, fetches the image and takes the lock.
	StateLaunching
	// StateRunning waits for the build tool to exit.
	StateRunning
	// StateSucceeded means the build tool exited 0.
	StateSucceeded
	// StateFailed means the build tool exited nonzero.
	StateFailed
	// StateErrored means orchestration failed before or around the build tool.
	StateErrored
)

type (
	// State is a step of one orchestration flow.
	State int

	// Result is the outcome of Orchestrator.Execute.
	Result struct {
		// State is StateSucceeded, StateFailed or StateErrored.
		State State
		// ExitCode is the inner exit code for StateSucceeded and StateFailed,
		// and the reserved code of Err's kind for StateErrored.
		ExitCode types.ExitCode
		// Err is the orchestration failure, nil unless StateErrored.
		Err error
	}
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateBuilding:
		return "building"
	case StateLaunching:
		return "launching"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a flow.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateErrored
}

// NewErrorResult creates an Errored result whose exit code comes from err's kind.
func NewErrorResult(err error) *Result {
	return &Result{State: StateErrored, ExitCode: issue.ExitCodeFor(err), Err: err}
}

// NewExitCodeResult creates a Succeeded or Failed result carrying the
// build tool's exit code unchanged.
func NewExitCodeResult(code int) *Result {
	state := StateSucceeded
	if code != 0 {
		state = StateFailed
	}
	return &Result{State: state, ExitCode: types.ExitCode(code)}
}

// Success returns true if the build tool ran and exited 0.
func (r *Result) Success() bool {
	return r.State == StateSucceeded
}
