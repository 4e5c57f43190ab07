// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/crossrun/crossrun/internal/execspec"
	"github.com/crossrun/crossrun/internal/issue"
)

const (
	// EngineTypeDocker drives the docker CLI.
	EngineTypeDocker EngineType = "docker"
	// EngineTypePodman drives the podman CLI.
	EngineTypePodman EngineType = "podman"
	// EngineTypeNerdctl drives the nerdctl CLI (containerd).
	EngineTypeNerdctl EngineType = "nerdctl"
	// EngineTypeDockerAPI talks to the Docker Engine API directly.
	EngineTypeDockerAPI EngineType = "docker-api"
)

var (
	// ErrEngineNotAvailable is the sentinel error wrapped by EngineNotAvailableError.
	ErrEngineNotAvailable = errors.New("container engine not available")

	// ErrInvalidEngineType is returned for an unknown engine name.
	ErrInvalidEngineType = errors.New("invalid container engine type")

	// ErrInvalidRunOptions is the sentinel error wrapped by InvalidRunOptionsError.
	ErrInvalidRunOptions = errors.New("invalid run options")

	// autoDetectOrder is tried in order when no engine is configured.
	autoDetectOrder = []EngineType{EngineTypeDocker, EngineTypePodman, EngineTypeNerdctl}
)

type (
	// Engine runs one container per call. Implementations must remove nothing
	// implicitly except what RunOptions.Remove asks for.
	Engine interface {
		// Name returns the engine name (docker, podman, nerdctl, docker-api).
		Name() string
		// Available reports whether the engine binary or daemon can be reached.
		Available() bool
		// Version returns the server version, failing when the daemon is unreachable.
		Version(ctx context.Context) (string, error)
		// ImageExists reports whether image is present locally.
		ImageExists(ctx context.Context, image string) (bool, error)
		// Pull fetches image for platform, writing progress to progress.
		Pull(ctx context.Context, image, platform string, progress io.Writer) error
		// Run runs a container to completion. A nonzero exit of the contained
		// command is reported in RunResult, not as an error.
		Run(ctx context.Context, opts RunOptions) (*RunResult, error)
		// Remove removes a container by name or ID. A missing container is not an error.
		Remove(ctx context.Context, name string, force bool) error
	}

	// EngineType identifies the container engine type.
	EngineType string

	// RunOptions contains options for running a container.
	RunOptions struct {
		// Name is the container name, used to force-remove it on interrupt.
		Name string
		// Image is the image to run.
		Image string
		// Command is the command to run.
		Command []string
		// WorkDir is the working directory inside the container.
		WorkDir string
		// Env holds NAME=VALUE entries in the order they are passed.
		Env []string
		// Mounts are bind mounts of host directories.
		Mounts []execspec.MountSpec
		// User is the uid:gid the command runs as.
		User string
		// Platform selects the image platform, e.g. linux/amd64.
		Platform string
		// ExtraArgs are passed to the CLI before the image name.
		ExtraArgs []string
		// Remove automatically removes the container after exit.
		Remove bool
		// Interactive keeps stdin open.
		Interactive bool
		// TTY allocates a pseudo-TTY.
		TTY bool
		// Stdin is the standard input.
		Stdin io.Reader
		// Stdout is where to write standard output.
		Stdout io.Writer
		// Stderr is where to write standard error.
		Stderr io.Writer
	}

	// RunResult contains the result of running a container.
	RunResult struct {
		// ContainerID is the container ID when the engine reports one.
		ContainerID string
		// ExitCode is the exit status of the contained command.
		ExitCode int
	}

	// EngineNotAvailableError is returned when no usable engine was found.
	EngineNotAvailableError struct {
		Engine string
		Reason string
	}

	// InvalidRunOptionsError is returned when RunOptions cannot describe a container.
	InvalidRunOptionsError struct {
		Reason string
	}
)

// RunOptionsFor translates an execution spec into container run options.
func RunOptionsFor(spec *execspec.ExecutionSpec, name string) RunOptions {
	return RunOptions{
		Name:     name,
		Image:    spec.Image,
		Command:  append([]string(nil), spec.Entrypoint...),
		WorkDir:  spec.WorkDir,
		Env:      spec.Env.Environ(),
		Mounts:   append([]execspec.MountSpec(nil), spec.Mounts...),
		User:     spec.User,
		Platform: spec.Platform,
		Remove:   true,
	}
}

// Validate checks the fields every engine relies on.
func (o RunOptions) Validate() error {
	if strings.TrimSpace(o.Image) == "" {
		return &InvalidRunOptionsError{Reason: "image is empty"}
	}
	if len(o.Command) == 0 {
		return &InvalidRunOptionsError{Reason: "command is empty"}
	}
	for _, kv := range o.Env {
		if name, _, ok := strings.Cut(kv, "="); !ok || name == "" {
			return &InvalidRunOptionsError{Reason: fmt.Sprintf("environment entry %q is not NAME=VALUE", kv)}
		}
	}
	if err := execspec.ValidateMounts(o.Mounts); err != nil {
		return err
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidRunOptionsError) Error() string {
	return "invalid run options: " + e.Reason
}

// Unwrap returns ErrInvalidRunOptions so callers can use errors.Is for programmatic detection.
func (e *InvalidRunOptionsError) Unwrap() error { return ErrInvalidRunOptions }

// ErrorKind classifies malformed run options as an internal failure.
func (e *InvalidRunOptionsError) ErrorKind() issue.Kind { return issue.KindInternal }

// Error implements the error interface.
func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// Unwrap returns ErrEngineNotAvailable so callers can use errors.Is for programmatic detection.
func (e *EngineNotAvailableError) Unwrap() error { return ErrEngineNotAvailable }

// ErrorKind classifies a missing engine as an execution backend failure.
func (e *EngineNotAvailableError) ErrorKind() issue.Kind { return issue.KindExecutionBackend }

// String returns the engine type name.
func (t EngineType) String() string { return string(t) }

// Validate returns an error if t is not a known engine. The empty string means auto-detect.
func (t EngineType) Validate() error {
	switch t {
	case "", EngineTypeDocker, EngineTypePodman, EngineTypeNerdctl, EngineTypeDockerAPI:
		return nil
	default:
		return fmt.Errorf("%w: %q (valid: docker, podman, nerdctl, docker-api)", ErrInvalidEngineType, string(t))
	}
}

// NewEngine creates the preferred engine. A CLI engine that is not available
// falls back to the other CLI engines in auto-detect order. The docker-api
// engine never falls back: choosing it means the CLI is not wanted.
func NewEngine(preferred EngineType) (Engine, error) {
	if err := preferred.Validate(); err != nil {
		return nil, issue.WrapWithContext(err, issue.KindConfig, "select container engine", string(preferred))
	}
	switch preferred {
	case "":
		return AutoDetectEngine()
	case EngineTypeDockerAPI:
		engine, err := NewAPIEngine()
		if err != nil {
			return nil, &EngineNotAvailableError{Engine: preferred.String(), Reason: err.Error()}
		}
		if !engine.Available() {
			_ = engine.Close()
			return nil, &EngineNotAvailableError{Engine: preferred.String(), Reason: "the Docker daemon did not answer a ping"}
		}
		return engine, nil
	}

	if engine := newCLIEngine(preferred); engine.Available() {
		return engine, nil
	}
	for _, fallback := range autoDetectOrder {
		if fallback == preferred {
			continue
		}
		if engine := newCLIEngine(fallback); engine.Available() {
			slog.Warn("preferred container engine is not available, falling back",
				"preferred", preferred, "engine", fallback)
			return engine, nil
		}
	}
	return nil, &EngineNotAvailableError{
		Engine: preferred.String(),
		Reason: preferred.String() + " is not installed or not accessible, and no fallback engine is available",
	}
}

// AutoDetectEngine returns the first available CLI engine.
func AutoDetectEngine() (Engine, error) {
	for _, t := range autoDetectOrder {
		if engine := newCLIEngine(t); engine.Available() {
			slog.Debug("detected container engine", "engine", t)
			return engine, nil
		}
	}
	return nil, &EngineNotAvailableError{
		Engine: "any",
		Reason: "no container engine (docker, podman or nerdctl) is available on this system",
	}
}

func newCLIEngine(t EngineType) Engine {
	switch t {
	case EngineTypePodman:
		return NewPodmanEngine()
	case EngineTypeNerdctl:
		return NewNerdctlEngine()
	default:
		return NewDockerEngine()
	}
}
