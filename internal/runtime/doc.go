// SPDX-License-Identifier: MPL-2.0

// Package runtime executes one parsed invocation.
//
// Orchestrator.Execute walks Idle, Resolving, Building, Launching and Running
// to one of Succeeded, Failed or Errored, logging each transition at debug
// level. An invocation for the host triple skips the container and runs the
// build tool through NativeRuntime. Every other target is looked up in the
// registry, resolved into mounts and environment, built into an
// execspec.ExecutionSpec, and run in a named container on the configured
// engine. The container is force-removed on every exit path.
//
// Runs sharing an output directory are serialised with an advisory flock in
// the per-user runtime directory (Linux only).
//
// A nonzero exit from the build tool is not an error: Result carries it
// unchanged in StateFailed. Orchestration failures end in StateErrored with
// the reserved exit code of the error's issue.Kind.
package runtime
