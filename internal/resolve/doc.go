// SPDX-License-Identifier: MPL-2.0

// Package resolve turns a parsed invocation and a target spec into the host
// side of an execution: which directories are mounted where, which variables
// reach the container, and the starting directory. It also checks that target
// binaries can run at all before anything is launched.
package resolve
