// SPDX-License-Identifier: MPL-2.0

// Package process starts child processes that can be interrupted as a group
// and relays their output streams concurrently.
//
// Prepare arranges for context cancellation to deliver SIGINT to the child's
// process group (or to the child alone when it shares the terminal's
// foreground group), then kill it once a grace period has passed. Run starts
// the command and copies stdout and stderr on separate goroutines so a full
// pipe on one stream never stalls the other.
package process
