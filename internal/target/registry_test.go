// SPDX-License-Identifier: MPL-2.0

package target

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/crossrun/crossrun/internal/issue"
)

func TestDefaultRegistry_EveryTripleResolves(t *testing.T) {
	t.Parallel()

	reg := Default()
	triples := reg.Triples()
	if len(triples) == 0 {
		t.Fatal("default registry is empty")
	}
	if !slices.IsSorted(triples) {
		t.Error("Triples() should be sorted")
	}

	for _, triple := range triples {
		spec, err := reg.Lookup(triple)
		if err != nil {
			t.Errorf("Lookup(%q) error: %v", triple, err)
			continue
		}
		if spec.Triple != triple {
			t.Errorf("Lookup(%q).Triple = %q", triple, spec.Triple)
		}
		if spec.Image == "" {
			t.Errorf("Lookup(%q) returned empty image", triple)
		}
		if !strings.HasSuffix(spec.Image, ":"+ImageVersion) {
			t.Errorf("Lookup(%q).Image = %q, want tag %s", triple, spec.Image, ImageVersion)
		}
		if spec.RequiresEmulation && spec.QemuArch == "" {
			t.Errorf("%s requires emulation but names no binfmt architecture", triple)
		}
	}
}

func TestRegistry_LookupUnknown(t *testing.T) {
	t.Parallel()

	reg := Default()
	for _, triple := range []string{"", "aarch64", "AARCH64-UNKNOWN-LINUX-GNU", "aarch64-unknown-linux-gnu ", "foo-bar-baz"} {
		_, err := reg.Lookup(triple)
		if err == nil {
			t.Errorf("Lookup(%q) succeeded, want error", triple)
			continue
		}
		if !errors.Is(err, ErrUnsupportedTarget) {
			t.Errorf("Lookup(%q) error %v does not wrap ErrUnsupportedTarget", triple, err)
		}
		if issue.KindOf(err) != issue.KindUnsupportedTarget {
			t.Errorf("Lookup(%q) kind = %v", triple, issue.KindOf(err))
		}
	}
}

func TestRegistry_KnownTargetFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		triple    string
		emulation bool
		openssl   bool
		runnable  bool
	}{
		{"aarch64-unknown-linux-gnu", true, true, true},
		{"x86_64-unknown-linux-musl", false, false, true},
		{"i686-unknown-linux-gnu", false, true, true},
		{"x86_64-unknown-freebsd", false, false, false},
		{"thumbv7em-none-eabihf", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.triple, func(t *testing.T) {
			t.Parallel()
			spec, err := Default().Lookup(tt.triple)
			if err != nil {
				t.Fatalf("Lookup() error: %v", err)
			}
			if spec.RequiresEmulation != tt.emulation {
				t.Errorf("RequiresEmulation = %v, want %v", spec.RequiresEmulation, tt.emulation)
			}
			if spec.OpenSSL != tt.openssl {
				t.Errorf("OpenSSL = %v, want %v", spec.OpenSSL, tt.openssl)
			}
			if spec.CanRunBinaries() != tt.runnable {
				t.Errorf("CanRunBinaries() = %v, want %v", spec.CanRunBinaries(), tt.runnable)
			}
		})
	}
}

func TestSpec_WithImageDoesNotMutateRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(Spec{Triple: "a-b-c", Image: "orig"})
	spec, _ := reg.Lookup("a-b-c")
	_ = spec.WithImage("override")

	again, _ := reg.Lookup("a-b-c")
	if again.Image != "orig" {
		t.Errorf("registry image changed to %q", again.Image)
	}
}

func TestHostTriple(t *testing.T) {
	t.Parallel()

	if got := HostTriple("custom-host-triple"); got != "custom-host-triple" {
		t.Errorf("HostTriple(override) = %q", got)
	}
	if HostTriple("") == "" {
		t.Error("HostTriple(\"\") returned empty")
	}

	tests := []struct {
		goos, goarch, want string
	}{
		{"linux", "amd64", "x86_64-unknown-linux-gnu"},
		{"darwin", "arm64", "aarch64-apple-darwin"},
		{"windows", "amd64", "x86_64-pc-windows-msvc"},
		{"plan9", "amd64", "amd64-unknown-plan9"},
	}
	for _, tt := range tests {
		if got := hostTripleFor(tt.goos, tt.goarch); got != tt.want {
			t.Errorf("hostTripleFor(%s, %s) = %q, want %q", tt.goos, tt.goarch, got, tt.want)
		}
	}
}
