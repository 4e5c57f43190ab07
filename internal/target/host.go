// SPDX-License-Identifier: MPL-2.0

package target

import (
	"runtime"
)

// hostTriples maps GOOS/GOARCH to the Rust host triple of the default toolchain.
var hostTriples = map[string]string{
	"linux/amd64":   "x86_64-unknown-linux-gnu",
	"linux/arm64":   "aarch64-unknown-linux-gnu",
	"linux/386":     "i686-unknown-linux-gnu",
	"linux/arm":     "armv7-unknown-linux-gnueabihf",
	"linux/riscv64": "riscv64gc-unknown-linux-gnu",
	"linux/ppc64le": "powerpc64le-unknown-linux-gnu",
	"linux/s390x":   "s390x-unknown-linux-gnu",
	"darwin/amd64":  "x86_64-apple-darwin",
	"darwin/arm64":  "aarch64-apple-darwin",
	"windows/amd64": "x86_64-pc-windows-msvc",
	"windows/arm64": "aarch64-pc-windows-msvc",
	"windows/386":   "i686-pc-windows-msvc",
	"freebsd/amd64": "x86_64-unknown-freebsd",
	"netbsd/amd64":  "x86_64-unknown-netbsd",
	"illumos/amd64": "x86_64-unknown-illumos",
	"solaris/amd64": "x86_64-pc-solaris",
	"openbsd/amd64": "x86_64-unknown-openbsd",
	"android/arm64": "aarch64-linux-android",
}

// goarchToQemu maps GOARCH to the binfmt handler suffix of the same ISA.
var goarchToQemu = map[string]string{
	"amd64":    "x86_64",
	"arm64":    "aarch64",
	"386":      "i386",
	"arm":      "arm",
	"riscv64":  "riscv64",
	"ppc64le":  "ppc64le",
	"ppc64":    "ppc64",
	"s390x":    "s390x",
	"mips":     "mips",
	"mipsle":   "mipsel",
	"mips64":   "mips64",
	"mips64le": "mips64el",
}

// HostTriple returns the Rust triple of the running host. override wins when non-empty.
func HostTriple(override string) string {
	if override != "" {
		return override
	}
	return hostTripleFor(runtime.GOOS, runtime.GOARCH)
}

func hostTripleFor(goos, goarch string) string {
	if t, ok := hostTriples[goos+"/"+goarch]; ok {
		return t
	}
	return goarch + "-unknown-" + goos
}

// HostQemuArch returns the binfmt architecture name of the host CPU.
func HostQemuArch() string {
	if a, ok := goarchToQemu[runtime.GOARCH]; ok {
		return a
	}
	return runtime.GOARCH
}
