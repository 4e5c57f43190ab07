// SPDX-License-Identifier: MPL-2.0

package execspec

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/crossrun/crossrun/internal/issue"
)

const (
	// AccessReadOnly mounts the host path without write permission.
	AccessReadOnly Access = "ro"
	// AccessReadWrite mounts the host path writable.
	AccessReadWrite Access = "rw"

	// ProjectPath is where the project root is mounted.
	ProjectPath = "/project"
	// CargoHomePath is where the dependency cache is mounted.
	CargoHomePath = "/cargo"
	// TargetDirPath is where the build output directory is mounted.
	TargetDirPath = "/target"
	// ToolchainPath is where the host toolchain is mounted when present.
	ToolchainPath = "/rust"
)

var (
	// ErrInvalidAccess is the sentinel error wrapped by InvalidAccessError.
	ErrInvalidAccess = errors.New("invalid mount access")

	// ErrInvalidMount is the sentinel error wrapped by InvalidMountError.
	ErrInvalidMount = errors.New("invalid mount")
)

type (
	// Access is the permission a mount grants to the container.
	Access string

	// InvalidAccessError is returned when an Access is not a recognized value.
	InvalidAccessError struct {
		Value Access
	}

	// MountSpec binds one host directory into the container.
	MountSpec struct {
		HostPath      string `yaml:"host"`
		ContainerPath string `yaml:"container"`
		Access        Access `yaml:"access"`
	}

	// InvalidMountError reports a mount set that breaks a mount invariant.
	InvalidMountError struct {
		ContainerPath string
		Reason        string
	}
)

// Error implements the error interface.
func (e *InvalidAccessError) Error() string {
	return fmt.Sprintf("invalid mount access %q (valid: ro, rw)", e.Value)
}

// Unwrap returns ErrInvalidAccess for errors.Is() compatibility.
func (e *InvalidAccessError) Unwrap() error { return ErrInvalidAccess }

// Validate returns an error if the Access is not ro or rw.
func (a Access) Validate() error {
	switch a {
	case AccessReadOnly, AccessReadWrite:
		return nil
	default:
		return &InvalidAccessError{Value: a}
	}
}

// ReadOnly reports whether a is AccessReadOnly.
func (a Access) ReadOnly() bool { return a == AccessReadOnly }

// String returns the string representation of the Access.
func (a Access) String() string { return string(a) }

// Error implements the error interface.
func (e *InvalidMountError) Error() string {
	return fmt.Sprintf("invalid mount %s: %s", e.ContainerPath, e.Reason)
}

// Unwrap returns ErrInvalidMount for errors.Is() compatibility.
func (e *InvalidMountError) Unwrap() error { return ErrInvalidMount }

// ErrorKind classifies the error for exit-code mapping.
func (e *InvalidMountError) ErrorKind() issue.Kind { return issue.KindConfig }

// Validate checks a single mount: both paths absolute and a known access mode.
func (m MountSpec) Validate() error {
	var errs []error
	if strings.TrimSpace(m.HostPath) == "" {
		errs = append(errs, &InvalidMountError{ContainerPath: m.ContainerPath, Reason: "host path is empty"})
	}
	if !path.IsAbs(m.ContainerPath) {
		errs = append(errs, &InvalidMountError{ContainerPath: m.ContainerPath, Reason: "container path must be absolute"})
	}
	if err := m.Access.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// String returns the mount in "host:container[:ro]" form.
func (m MountSpec) String() string {
	s := m.HostPath + ":" + m.ContainerPath
	if m.Access.ReadOnly() {
		s += ":ro"
	}
	return s
}

// ValidateMounts checks the invariants of a complete mount set: every mount is
// valid, the project root is read-only, and no two mounts share a container path.
func ValidateMounts(mounts []MountSpec) error {
	seen := make(map[string]string, len(mounts))
	for _, m := range mounts {
		if err := m.Validate(); err != nil {
			return err
		}
		cp := path.Clean(m.ContainerPath)
		if cp == ProjectPath && !m.Access.ReadOnly() {
			return &InvalidMountError{ContainerPath: cp, Reason: "project root must be mounted read-only"}
		}
		if prev, dup := seen[cp]; dup {
			return &InvalidMountError{
				ContainerPath: cp,
				Reason:        fmt.Sprintf("mounted twice (from %s and %s)", prev, m.HostPath),
			}
		}
		seen[cp] = m.HostPath
	}
	return nil
}
