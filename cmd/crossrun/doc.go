// SPDX-License-Identifier: MPL-2.0

// Package cmd is the crossrun command line.
//
// The root command forwards every argument to the build orchestrator without
// interpreting flags, so `crossrun --help` reaches cargo. Tool commands live
// under the `self` namespace, which cargo does not use.
package cmd
