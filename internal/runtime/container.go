// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/containerd/platforms"
	"github.com/google/uuid"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/crossrun/crossrun/internal/container"
	"github.com/crossrun/crossrun/internal/execspec"
	"github.com/crossrun/crossrun/internal/issue"
)

const (
	containerNamePrefix = "crossrun-"
	// removeTimeout bounds the forced removal that follows every run.
	removeTimeout = 30 * time.Second
)

// imagePlatform is the only platform the execution images are published for.
var imagePlatform = ocispec.Platform{OS: "linux", Architecture: "amd64"}

// launchedRun is a container run whose engine, image and lock are ready.
type launchedRun struct {
	engine  container.Engine
	spec    *execspec.ExecutionSpec
	name    string
	extra   []string
	release func()
}

// launch selects the engine, checks that it answers, makes sure the image is
// present, and takes the output directory lock.
func (o *Orchestrator) launch(ctx context.Context, spec *execspec.ExecutionSpec) (*launchedRun, error) {
	extra, err := o.Config.ContainerOpts()
	if err != nil {
		return nil, err
	}

	engine, err := o.Engine()
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("select container engine").
			WithResource(string(o.Config.Container.Engine)).
			WithSuggestions(
				"install and start docker or podman",
				"set CROSS_CONTAINER_ENGINE to an engine that is installed",
			).
			Wrap(err).
			BuildError()
	}

	version, err := engine.Version(ctx)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("contact container engine").
			WithResource(engine.Name()).
			WithSuggestion("make sure the " + engine.Name() + " daemon is running and reachable by the current user").
			Wrap(err).
			BuildError()
	}
	slog.Debug("container engine ready", "engine", engine.Name(), "version", version)

	if err := ensureImage(ctx, engine, spec, o.Streams.Stderr); err != nil {
		return nil, err
	}

	release := func() {}
	if o.lock != nil {
		dir := outputDir(spec)
		unlock, err := o.lock(ctx, dir)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			return nil, issue.WrapWithContext(err, issue.KindInternal, "lock output directory", dir)
		}
		release = unlock
	}

	newName := o.newName
	if newName == nil {
		newName = newContainerName
	}
	return &launchedRun{engine: engine, spec: spec, name: newName(), extra: extra, release: release}, nil
}

// ensureImage pulls the image when the engine does not have it.
func ensureImage(ctx context.Context, engine container.Engine, spec *execspec.ExecutionSpec, progress io.Writer) error {
	exists, err := engine.ImageExists(ctx, spec.Image)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	slog.Info("pulling image", "image", spec.Image, "platform", spec.Platform)
	if err := engine.Pull(ctx, spec.Image, spec.Platform, progress); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return issue.NewErrorContext().
			WithOperation("pull image").
			WithResource(spec.Image).
			WithSuggestions(
				"check the network connection and registry credentials",
				"override the image with target.<triple>.image in Cross.toml",
			).
			Wrap(err).
			BuildError()
	}
	return nil
}

// run starts the container and waits for it. The container is force-removed
// by name on every path, including interrupts.
func (l *launchedRun) run(ctx context.Context, streams Streams) (int, error) {
	opts := container.RunOptionsFor(l.spec, l.name)
	opts.ExtraArgs = l.extra
	opts.Stdin = streams.Stdin
	opts.Stdout = streams.Stdout
	opts.Stderr = streams.Stderr
	opts.Interactive = streams.Interactive
	opts.TTY = streams.Interactive
	defer l.remove(ctx)

	result, err := l.engine.Run(ctx, opts)
	if err != nil {
		return 0, err
	}
	return result.ExitCode, nil
}

func (l *launchedRun) remove(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), removeTimeout)
	defer cancel()
	if err := l.engine.Remove(ctx, l.name, true); err != nil {
		slog.Warn("failed to remove container", "container", l.name, "error", err)
	}
}

// outputDir returns the host directory mounted as the build output.
func outputDir(spec *execspec.ExecutionSpec) string {
	for _, m := range spec.Mounts {
		if m.ContainerPath == execspec.TargetDirPath {
			return m.HostPath
		}
	}
	return spec.WorkDir
}

func newContainerName() string {
	return containerNamePrefix + uuid.NewString()
}

// currentUser returns "uid:gid" of the invoking user, empty where the
// platform has no numeric ids.
func currentUser() string {
	uid, gid := os.Getuid(), os.Getgid()
	if uid < 0 || gid < 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", uid, gid)
}

// containerPlatform requests the image platform explicitly on hosts that
// would otherwise ask for their own.
func containerPlatform() string {
	return platformFor(platforms.DefaultSpec())
}

func platformFor(host ocispec.Platform) string {
	if host.OS == imagePlatform.OS && host.Architecture == imagePlatform.Architecture {
		return ""
	}
	return platforms.Format(imagePlatform)
}
