// SPDX-License-Identifier: MPL-2.0

package target

// row is the compact form of a table entry.
type row struct {
	triple   string
	qemu     string // empty: runs natively on x86_64
	test     bool
	openssl  bool
	noStd    bool
	noRunner bool // binaries cannot be executed in the image at all
}

var builtinRows = []row{
	// Linux, glibc
	{triple: "aarch64-unknown-linux-gnu", qemu: "aarch64", test: true, openssl: true},
	{triple: "arm-unknown-linux-gnueabi", qemu: "arm", test: true, openssl: true},
	{triple: "arm-unknown-linux-gnueabihf", qemu: "arm", test: true, openssl: true},
	{triple: "armv5te-unknown-linux-gnueabi", qemu: "arm", test: true},
	{triple: "armv7-unknown-linux-gnueabi", qemu: "arm", test: true},
	{triple: "armv7-unknown-linux-gnueabihf", qemu: "arm", test: true, openssl: true},
	{triple: "i586-unknown-linux-gnu", test: true, openssl: true},
	{triple: "i686-unknown-linux-gnu", test: true, openssl: true},
	{triple: "mips-unknown-linux-gnu", qemu: "mips", test: true, openssl: true},
	{triple: "mipsel-unknown-linux-gnu", qemu: "mipsel", test: true, openssl: true},
	{triple: "mips64-unknown-linux-gnuabi64", qemu: "mips64", test: true, openssl: true},
	{triple: "mips64el-unknown-linux-gnuabi64", qemu: "mips64el", test: true, openssl: true},
	{triple: "powerpc-unknown-linux-gnu", qemu: "ppc", test: true, openssl: true},
	{triple: "powerpc64-unknown-linux-gnu", qemu: "ppc64", test: true, openssl: true},
	{triple: "powerpc64le-unknown-linux-gnu", qemu: "ppc64le", test: true, openssl: true},
	{triple: "riscv64gc-unknown-linux-gnu", qemu: "riscv64", test: true},
	{triple: "s390x-unknown-linux-gnu", qemu: "s390x", test: true, openssl: true},
	{triple: "sparc64-unknown-linux-gnu", qemu: "sparc64", test: true},
	{triple: "x86_64-unknown-linux-gnu", test: true, openssl: true},

	// Linux, musl
	{triple: "aarch64-unknown-linux-musl", qemu: "aarch64", test: true},
	{triple: "arm-unknown-linux-musleabi", qemu: "arm", test: true},
	{triple: "arm-unknown-linux-musleabihf", qemu: "arm", test: true},
	{triple: "armv7-unknown-linux-musleabihf", qemu: "arm", test: true},
	{triple: "i586-unknown-linux-musl", test: true},
	{triple: "i686-unknown-linux-musl", test: true},
	{triple: "x86_64-unknown-linux-musl", test: true},

	// Android
	{triple: "aarch64-linux-android", qemu: "aarch64", test: true},
	{triple: "arm-linux-androideabi", qemu: "arm", test: true},
	{triple: "armv7-linux-androideabi", qemu: "arm", test: true},
	{triple: "i686-linux-android", test: true},
	{triple: "x86_64-linux-android", test: true},

	// Windows (tests run under wine inside the image)
	{triple: "x86_64-pc-windows-gnu", test: true},

	// BSDs, Solaris and illumos: build only
	{triple: "x86_64-unknown-freebsd", noRunner: true},
	{triple: "x86_64-unknown-netbsd", noRunner: true},
	{triple: "x86_64-unknown-illumos", noRunner: true},
	{triple: "sparcv9-sun-solaris", noRunner: true},

	// WebAssembly (tests run under node inside the image)
	{triple: "wasm32-unknown-emscripten", test: true},

	// Bare metal
	{triple: "thumbv6m-none-eabi", noStd: true, noRunner: true},
	{triple: "thumbv7em-none-eabi", noStd: true, noRunner: true},
	{triple: "thumbv7em-none-eabihf", noStd: true, noRunner: true},
	{triple: "thumbv7m-none-eabi", noStd: true, noRunner: true},
	{triple: "thumbv8m.main-none-eabihf", noStd: true, noRunner: true},
}

func builtinSpecs() []Spec {
	specs := make([]Spec, 0, len(builtinRows))
	for _, r := range builtinRows {
		specs = append(specs, Spec{
			Triple:            r.triple,
			Image:             imageFor(r.triple),
			NativeTest:        r.test && !r.noRunner,
			RequiresEmulation: r.qemu != "",
			OpenSSL:           r.openssl,
			QemuArch:          r.qemu,
			Std:               !r.noStd,
		})
	}
	return specs
}
