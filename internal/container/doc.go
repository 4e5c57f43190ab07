// SPDX-License-Identifier: MPL-2.0

// Package container runs one build container per invocation on a container engine.
//
// The Engine interface covers what an invocation needs: an availability and
// version check, image presence and pull, run-to-completion, and forced
// removal by name. DockerEngine, PodmanEngine and NerdctlEngine embed
// BaseCLIEngine, which builds the shared `run`/`pull`/`rm` command lines and
// relays output through the process package. APIEngine talks to the Docker
// Engine API directly for hosts without a CLI.
//
// Failures of the engine itself (exit status 125, an unreachable daemon, an
// unpullable image) are reported as *ExecutionBackendError. A nonzero exit of
// the contained command is not an error: it is returned in RunResult.
//
// Engine selection uses NewEngine(EngineType) with fallback between the CLI
// engines, or AutoDetectEngine() which tries docker, podman, then nerdctl.
package container
