// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultBinfmtDir is where the kernel exposes registered binfmt_misc handlers.
const DefaultBinfmtDir = "/proc/sys/fs/binfmt_misc"

type (
	// Probe reports whether binaries of a CPU architecture can execute.
	Probe interface {
		Available(arch string) (bool, error)
	}

	// BinfmtProbe checks binfmt_misc for an enabled qemu-<arch> handler.
	BinfmtProbe struct {
		// Dir defaults to DefaultBinfmtDir.
		Dir string
		// HostArch runs natively and needs no handler.
		HostArch string
	}

	// alwaysAvailable is used where the container engine runs inside a VM
	// that ships its own emulators.
	alwaysAvailable struct{}
)

// Available reports whether qemu-<arch> is registered and enabled.
func (p BinfmtProbe) Available(arch string) (bool, error) {
	if arch == "" || arch == p.HostArch {
		return true, nil
	}
	dir := p.Dir
	if dir == "" {
		dir = DefaultBinfmtDir
	}

	data, err := os.ReadFile(filepath.Join(dir, "qemu-"+arch))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read binfmt_misc handler: %w", err)
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	if sc.Scan() {
		return bytes.Equal(bytes.TrimSpace(sc.Bytes()), []byte("enabled")), nil
	}
	return false, nil
}

func (alwaysAvailable) Available(string) (bool, error) { return true, nil }
