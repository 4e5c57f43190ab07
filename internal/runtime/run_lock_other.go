// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package runtime

import (
	"context"
	"errors"
)

// errFlockUnavailable is returned on platforms where the engine runs inside a
// VM: a host-side flock does not reach the VM's view of the output directory.
// The caller proceeds without serialisation.
var errFlockUnavailable = errors.New("flock not available on this platform")

// acquireRunLock is a no-op on non-Linux platforms.
func acquireRunLock(context.Context, string) (*runLock, error) {
	return nil, errFlockUnavailable
}

// runLock is the non-Linux stub. Release is a no-op.
type runLock struct{}

// Release is a no-op on non-Linux platforms.
func (l *runLock) Release() {}
