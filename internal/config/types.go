// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ContainerEngineAuto probes for docker, then podman.
	ContainerEngineAuto ContainerEngine = ""
	// ContainerEngineDocker drives the docker CLI.
	ContainerEngineDocker ContainerEngine = "docker"
	// ContainerEnginePodman drives the podman CLI.
	ContainerEnginePodman ContainerEngine = "podman"
	// ContainerEngineNerdctl drives the nerdctl CLI.
	ContainerEngineNerdctl ContainerEngine = "nerdctl"
	// ContainerEngineDockerAPI talks to the Docker daemon API directly.
	ContainerEngineDockerAPI ContainerEngine = "docker-api"
)

var (
	// ErrInvalidContainerEngine is returned when a ContainerEngine value is not recognized.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
	// ErrInvalidEnvEntry is the sentinel error wrapped by InvalidEnvEntryError.
	ErrInvalidEnvEntry = errors.New("invalid environment entry")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ContainerEngine selects the execution backend.
	ContainerEngine string

	// InvalidContainerEngineError is returned when a ContainerEngine value is not recognized.
	// It wraps ErrInvalidContainerEngine for errors.Is() compatibility.
	InvalidContainerEngineError struct {
		Value ContainerEngine
	}

	// InvalidEnvEntryError is returned for a passthrough or volume entry that
	// does not name a variable.
	InvalidEnvEntryError struct {
		Field string
		Value string
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// EnvConfig lists host variables forwarded into the container.
	EnvConfig struct {
		// Passthrough names variables to forward; "NAME=VALUE" sets a literal.
		Passthrough []string `mapstructure:"passthrough" yaml:"passthrough,omitempty"`
		// Volumes names variables holding host paths to mount at the same location.
		Volumes []string `mapstructure:"volumes" yaml:"volumes,omitempty"`
	}

	// BuildConfig is the [build] table.
	BuildConfig struct {
		Env EnvConfig `mapstructure:"env" yaml:"env"`
		// DefaultTarget is used when no --target is given.
		DefaultTarget string `mapstructure:"default-target" yaml:"default-target,omitempty"`
		// Lock serialises runs that share an output directory.
		Lock bool `mapstructure:"lock" yaml:"lock"`
		// BuildStd builds the standard library from source with -Zbuild-std.
		BuildStd *bool `mapstructure:"build-std" yaml:"build-std,omitempty"`
	}

	// TargetConfig is one [target.<triple>] table.
	TargetConfig struct {
		// Image replaces the registry image for the triple.
		Image string    `mapstructure:"image" yaml:"image,omitempty"`
		Env   EnvConfig `mapstructure:"env" yaml:"env"`
		// BuildStd overrides BuildConfig.BuildStd for the triple.
		BuildStd *bool `mapstructure:"build-std" yaml:"build-std,omitempty"`
	}

	// ContainerConfig selects and tunes the execution backend.
	ContainerConfig struct {
		Engine ContainerEngine `mapstructure:"engine" yaml:"engine"`
		// Opts are extra engine run flags, split with shell quoting rules.
		Opts string `mapstructure:"opts" yaml:"opts,omitempty"`
	}

	// Config holds the effective configuration.
	Config struct {
		Build      BuildConfig             `mapstructure:"build" yaml:"build"`
		Targets    map[string]TargetConfig `mapstructure:"target" yaml:"target,omitempty"`
		Container  ContainerConfig         `mapstructure:"container" yaml:"container"`
		Debug      bool                    `mapstructure:"debug" yaml:"debug"`
		HostTriple string                  `mapstructure:"host-triple" yaml:"host-triple,omitempty"`

		// Project is the detected cargo project, nil outside one.
		Project *Project `mapstructure:"-" yaml:"project,omitempty"`
		// Sources lists the files that contributed, lowest precedence first.
		Sources []string `mapstructure:"-" yaml:"sources,omitempty"`
		// Unused lists keys that were present but not understood.
		Unused []string `mapstructure:"-" yaml:"unused,omitempty"`

		getenv func(string) string
	}
)

// Error implements the error interface for InvalidContainerEngineError.
func (e *InvalidContainerEngineError) Error() string {
	return fmt.Sprintf("invalid container engine %q (valid: docker, podman, nerdctl, docker-api)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidContainerEngineError) Unwrap() error { return ErrInvalidContainerEngine }

// String returns the string representation of the ContainerEngine.
func (ce ContainerEngine) String() string { return string(ce) }

// IsValid returns whether the ContainerEngine is one of the defined engine types,
// and a list of validation errors if it is not.
func (ce ContainerEngine) IsValid() (bool, []error) {
	switch ce {
	case ContainerEngineAuto, ContainerEngineDocker, ContainerEnginePodman, ContainerEngineNerdctl, ContainerEngineDockerAPI:
		return true, nil
	default:
		return false, []error{&InvalidContainerEngineError{Value: ce}}
	}
}

// Error implements the error interface for InvalidEnvEntryError.
func (e *InvalidEnvEntryError) Error() string {
	return fmt.Sprintf("%s: invalid entry %q: must start with a variable name", e.Field, e.Value)
}

// Unwrap returns ErrInvalidEnvEntry for errors.Is() compatibility.
func (e *InvalidEnvEntryError) Unwrap() error { return ErrInvalidEnvEntry }

// IsValid reports whether every entry names a variable.
func (c EnvConfig) IsValid(field string) (bool, []error) {
	var errs []error
	for _, entry := range c.Passthrough {
		name, _, _ := strings.Cut(entry, "=")
		if strings.TrimSpace(name) == "" {
			errs = append(errs, &InvalidEnvEntryError{Field: field + ".passthrough", Value: entry})
		}
	}
	for _, entry := range c.Volumes {
		if strings.TrimSpace(entry) == "" || strings.Contains(entry, "=") {
			errs = append(errs, &InvalidEnvEntryError{Field: field + ".volumes", Value: entry})
		}
	}
	return len(errs) == 0, errs
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// IsValid returns whether the Config has valid fields.
func (c *Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Container.Engine.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Build.Env.IsValid("build.env"); !valid {
		errs = append(errs, fieldErrs...)
	}
	for triple, tc := range c.Targets {
		if valid, fieldErrs := tc.Env.IsValid("target." + triple + ".env"); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	return len(errs) == 0, errs
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Build: BuildConfig{
			Lock: true,
		},
		Targets: map[string]TargetConfig{},
		Container: ContainerConfig{
			Engine: ContainerEngineAuto,
		},
	}
}
