// SPDX-License-Identifier: MPL-2.0

//go:build linux

package resolve

import "github.com/crossrun/crossrun/internal/target"

// NewProbe returns the emulation probe for this host.
func NewProbe() Probe {
	return BinfmtProbe{Dir: DefaultBinfmtDir, HostArch: target.HostQemuArch()}
}
