// SPDX-License-Identifier: MPL-2.0

// Package issue defines the failure taxonomy of the orchestrator and the
// actionable, suggestion-carrying error type shown to users.
//
// Every orchestration error maps to a Kind, and every Kind maps to a reserved
// exit code, so callers can tell "the build failed" apart from "crossrun
// could not run the build".
package issue
