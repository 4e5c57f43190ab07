// SPDX-License-Identifier: MPL-2.0

package target

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/crossrun/crossrun/internal/issue"
)

const (
	// ImageRepository is the registry namespace of the per-target images.
	ImageRepository = "ghcr.io/cross-rs"
	// ImageVersion is the image tag the registry pins.
	ImageVersion = "0.2.5"
)

// ErrUnsupportedTarget is the sentinel error wrapped by UnsupportedTargetError.
var ErrUnsupportedTarget = errors.New("unsupported target")

type (
	// Spec describes how to build for one target triple.
	Spec struct {
		// Triple is the Rust target triple, e.g. "aarch64-unknown-linux-gnu".
		Triple string
		// Image is the fully qualified execution image reference.
		Image string
		// NativeTest reports whether test and run can execute target binaries.
		NativeTest bool
		// RequiresEmulation reports whether target binaries need a binfmt
		// handler on an x86_64 host.
		RequiresEmulation bool
		// OpenSSL reports whether the image ships a cross-built OpenSSL under /openssl.
		OpenSSL bool
		// QemuArch is the binfmt_misc handler suffix ("aarch64" for qemu-aarch64).
		QemuArch string
		// Std reports whether the target has a standard library.
		Std bool
	}

	// Registry is an immutable triple -> Spec table.
	Registry struct {
		specs map[string]Spec
	}

	// UnsupportedTargetError is returned by Lookup for unknown triples.
	UnsupportedTargetError struct {
		Triple string
		Reason string
	}
)

// Error implements the error interface.
func (e *UnsupportedTargetError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("target %q is not supported: %s", e.Triple, e.Reason)
	}
	return fmt.Sprintf("target %q is not supported", e.Triple)
}

// Unwrap returns ErrUnsupportedTarget for errors.Is() compatibility.
func (e *UnsupportedTargetError) Unwrap() error { return ErrUnsupportedTarget }

// ErrorKind classifies the error for exit-code mapping.
func (e *UnsupportedTargetError) ErrorKind() issue.Kind { return issue.KindUnsupportedTarget }

// NewRegistry builds a registry from specs. Later duplicates replace earlier ones.
func NewRegistry(specs ...Spec) *Registry {
	r := &Registry{specs: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		r.specs[s.Triple] = s
	}
	return r
}

// Default returns the compiled-in registry. It is built once per process.
var Default = sync.OnceValue(func() *Registry {
	return NewRegistry(builtinSpecs()...)
})

// Lookup returns the Spec for an exact triple match.
func (r *Registry) Lookup(triple string) (Spec, error) {
	if s, ok := r.specs[triple]; ok {
		return s, nil
	}
	return Spec{}, &UnsupportedTargetError{Triple: triple}
}

// Triples returns every registered triple in sorted order.
func (r *Registry) Triples() []string {
	out := make([]string, 0, len(r.specs))
	for triple := range r.specs {
		out = append(out, triple)
	}
	slices.Sort(out)
	return out
}

// Specs returns every registered Spec ordered by triple.
func (r *Registry) Specs() []Spec {
	triples := r.Triples()
	out := make([]Spec, 0, len(triples))
	for _, triple := range triples {
		out = append(out, r.specs[triple])
	}
	return out
}

// CanRunBinaries reports whether test/run can execute target binaries.
func (s Spec) CanRunBinaries() bool {
	return s.Std && s.NativeTest
}

// WithImage returns a copy of s using image.
func (s Spec) WithImage(image string) Spec {
	s.Image = image
	return s
}

func imageFor(triple string) string {
	return ImageRepository + "/" + triple + ":" + ImageVersion
}
