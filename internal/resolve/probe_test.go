// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"path/filepath"
	"testing"

	"github.com/crossrun/crossrun/internal/testutil"
)

func TestBinfmtProbe(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(dir, "qemu-aarch64"), "enabled\ninterpreter /usr/bin/qemu-aarch64-static\nflags: F\n")
	testutil.MustWriteFile(t, filepath.Join(dir, "qemu-arm"), "disabled\ninterpreter /usr/bin/qemu-arm-static\n")
	testutil.MustWriteFile(t, filepath.Join(dir, "qemu-mips"), "")

	probe := BinfmtProbe{Dir: dir, HostArch: "x86_64"}

	tests := []struct {
		arch string
		want bool
	}{
		{"aarch64", true},
		{"arm", false},
		{"mips", false},
		{"riscv64", false},
		{"x86_64", true},
		{"", true},
	}
	for _, tt := range tests {
		got, err := probe.Available(tt.arch)
		if err != nil {
			t.Errorf("Available(%q) error: %v", tt.arch, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Available(%q) = %v, want %v", tt.arch, got, tt.want)
		}
	}
}

func TestBinfmtProbe_ReadError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// A directory where a handler file is expected cannot be read as one.
	testutil.MustMkdirAll(t, filepath.Join(dir, "qemu-s390x"))

	if _, err := (BinfmtProbe{Dir: dir}).Available("s390x"); err == nil {
		t.Error("Available() should report unreadable handler entries")
	}
}
