// SPDX-License-Identifier: MPL-2.0

// Package execspec holds the fully resolved description of one isolated
// build execution and the pure builder that assembles it.
//
// An ExecutionSpec is produced once by Build from a parsed invocation, a
// target spec and a resolver result. It performs no I/O and is consumed once
// by a container engine.
package execspec
