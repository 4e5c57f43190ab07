// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/crossrun/crossrun/internal/config"
	"github.com/crossrun/crossrun/internal/container"
	"github.com/crossrun/crossrun/internal/execspec"
	"github.com/crossrun/crossrun/internal/invocation"
	"github.com/crossrun/crossrun/internal/process"
	"github.com/crossrun/crossrun/internal/resolve"
	"github.com/crossrun/crossrun/internal/target"
)

type (
	// Streams are the standard streams of one execution.
	Streams struct {
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		// Interactive allocates a terminal in the container and keeps the
		// child in the caller's process group.
		Interactive bool
	}

	// Resolver computes the host-derived part of a containerized execution.
	Resolver interface {
		Resolve(ctx context.Context, inv *invocation.Invocation, spec target.Spec) (*execspec.Resolution, error)
	}

	// EngineFactory selects the container engine. It is only called for
	// invocations that need a container.
	EngineFactory func() (container.Engine, error)

	// Orchestrator drives one invocation from parsed arguments to exit code.
	Orchestrator struct {
		Config   *config.Config
		Registry *target.Registry
		// Host is the host triple; invocations targeting it run natively.
		Host     string
		Resolver Resolver
		Native   *NativeRuntime
		Engine   EngineFactory
		Streams  Streams

		// lock serialises runs sharing an output directory; nil disables it.
		lock func(ctx context.Context, dir string) (release func(), err error)
		// newName returns the name of the next container.
		newName func() string
	}
)

// StdStreams returns the process's standard streams, interactive when both
// stdin and stdout are terminals.
func StdStreams() Streams {
	return Streams{
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Interactive: process.Interactive(),
	}
}

// New returns an Orchestrator wired to the real host.
func New(cfg *config.Config, registry *target.Registry, streams Streams) *Orchestrator {
	host := target.HostTriple(cfg.HostTriple)
	o := &Orchestrator{
		Config:   cfg,
		Registry: registry,
		Host:     host,
		Resolver: resolve.New(cfg, host),
		Native:   NewNativeRuntime(),
		Engine: func() (container.Engine, error) {
			return container.NewEngine(container.EngineType(cfg.Container.Engine))
		},
		Streams: streams,
		newName: newContainerName,
	}
	if cfg.Build.Lock {
		o.lock = lockOutputDir
	}
	return o
}

// lockOutputDir takes the cross-process lock of an output directory. On
// platforms without flock it logs and returns a no-op release.
func lockOutputDir(ctx context.Context, dir string) (func(), error) {
	l, err := acquireRunLock(ctx, dir)
	if err == errFlockUnavailable {
		slog.Debug("output directory lock unavailable on this platform", "dir", dir)
		return func() {}, nil
	}
	if err != nil {
		return nil, err
	}
	return l.Release, nil
}
