// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/sync/errgroup"

	"github.com/crossrun/crossrun/internal/process"
)

const (
	apiPingTimeout   = 5 * time.Second
	apiRemoveTimeout = 30 * time.Second
)

type (
	// apiClient is the subset of the Docker Engine API client used by APIEngine.
	apiClient interface {
		Ping(ctx context.Context) (types.Ping, error)
		ServerVersion(ctx context.Context) (types.Version, error)
		ImageInspect(ctx context.Context, imageID string, inspectOpts ...client.ImageInspectOption) (image.InspectResponse, error)
		ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
		ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
			networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
		ContainerAttach(ctx context.Context, containerID string, options container.AttachOptions) (types.HijackedResponse, error)
		ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
		ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
		ContainerKill(ctx context.Context, containerID, signal string) error
		ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
		Close() error
	}

	// APIEngine implements the Engine interface on the Docker Engine API,
	// without a CLI binary. It honours DOCKER_HOST and the other client
	// environment variables.
	APIEngine struct {
		client apiClient
		grace  time.Duration
	}
)

// NewAPIEngine connects to the daemon described by the environment.
func NewAPIEngine() (*APIEngine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker api client: %w", err)
	}
	return newAPIEngine(cli), nil
}

func newAPIEngine(c apiClient) *APIEngine {
	return &APIEngine{client: c, grace: process.DefaultGrace}
}

// Name returns the engine name.
func (e *APIEngine) Name() string {
	return string(EngineTypeDockerAPI)
}

// Available pings the daemon.
func (e *APIEngine) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), apiPingTimeout)
	defer cancel()
	_, err := e.client.Ping(ctx)
	return err == nil
}

// Version returns the daemon version.
func (e *APIEngine) Version(ctx context.Context) (string, error) {
	v, err := e.client.ServerVersion(ctx)
	if err != nil {
		return "", &ExecutionBackendError{Engine: e.Name(), Op: "version", Cause: err}
	}
	return v.Version, nil
}

// ImageExists checks if an image exists locally.
func (e *APIEngine) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, err := e.client.ImageInspect(ctx, ref)
	switch {
	case err == nil:
		return true, nil
	case cerrdefs.IsNotFound(err):
		return false, nil
	default:
		return false, &ExecutionBackendError{Engine: e.Name(), Op: "inspect image", Cause: err}
	}
}

// Pull pulls an image, rendering the daemon's progress stream to progress.
func (e *APIEngine) Pull(ctx context.Context, ref, platform string, progress io.Writer) error {
	rc, err := e.client.ImagePull(ctx, ref, image.PullOptions{Platform: platform})
	if err != nil {
		return &ExecutionBackendError{Engine: e.Name(), Op: "pull " + ref, Cause: err}
	}
	defer rc.Close()

	if progress == nil {
		progress = io.Discard
	}
	if err := jsonmessage.DisplayJSONMessagesStream(rc, progress, 0, false, nil); err != nil {
		return &ExecutionBackendError{Engine: e.Name(), Op: "pull " + ref, Cause: err}
	}
	return nil
}

// Run creates, attaches to, and starts a container, then waits for it to
// exit. Cancellation sends SIGINT to the container, then SIGKILL after the
// grace period. The container is removed on every path when opts.Remove is set.
func (e *APIEngine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(opts.ExtraArgs) > 0 {
		slog.Warn("extra container options are ignored by the docker-api engine", "options", opts.ExtraArgs)
	}

	config, hostConfig := e.containerConfig(opts)
	var platform *ocispec.Platform
	if opts.Platform != "" {
		p, err := platforms.Parse(opts.Platform)
		if err != nil {
			return nil, &InvalidRunOptionsError{Reason: fmt.Sprintf("platform %q: %v", opts.Platform, err)}
		}
		platform = &p
	}

	// Daemon calls that must outlive an interrupt use a detached context.
	bg := context.WithoutCancel(ctx)

	created, err := e.client.ContainerCreate(ctx, config, hostConfig, nil, platform, opts.Name)
	if err != nil {
		return nil, &ExecutionBackendError{Engine: e.Name(), Op: "create container", Cause: err}
	}
	id := created.ID
	for _, w := range created.Warnings {
		slog.Warn("container engine warning", "warning", w)
	}
	if opts.Remove {
		defer e.remove(bg, id)
	}

	attach, err := e.client.ContainerAttach(ctx, id, container.AttachOptions{
		Stream: true,
		Stdin:  opts.Interactive,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return nil, &ExecutionBackendError{Engine: e.Name(), Op: "attach container", Cause: err}
	}
	var closeOnce sync.Once
	closeAttach := func() { closeOnce.Do(attach.Close) }
	defer closeAttach()

	waitC, waitErrC := e.client.ContainerWait(bg, id, container.WaitConditionNextExit)

	if err := e.client.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return nil, &ExecutionBackendError{Engine: e.Name(), Op: "start container", Cause: err}
	}

	if opts.Interactive && opts.Stdin != nil {
		go func() {
			_, _ = io.Copy(attach.Conn, opts.Stdin)
			_ = attach.CloseWrite()
		}()
	}

	var relay errgroup.Group
	relay.Go(func() error {
		stdout, stderr := writerOrDiscard(opts.Stdout), writerOrDiscard(opts.Stderr)
		var err error
		if opts.TTY {
			_, err = io.Copy(stdout, attach.Reader)
		} else {
			_, err = stdcopy.StdCopy(stdout, stderr, attach.Reader)
		}
		return err
	})

	code, waitErr := e.wait(ctx, id, waitC, waitErrC)
	if waitErr != nil {
		closeAttach()
	}
	relayErr := relay.Wait()
	closeAttach()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%s run interrupted: %w", e.Name(), ctxErr)
	}
	if waitErr != nil {
		return nil, &ExecutionBackendError{Engine: e.Name(), Op: "wait container", Cause: waitErr}
	}
	if relayErr != nil && !errors.Is(relayErr, io.EOF) {
		slog.Debug("output relay ended with error", "error", relayErr)
	}
	return &RunResult{ContainerID: id, ExitCode: code}, nil
}

// Remove force-removes a container. A missing container is not an error.
func (e *APIEngine) Remove(ctx context.Context, name string, force bool) error {
	err := e.client.ContainerRemove(ctx, name, container.RemoveOptions{Force: force})
	if err == nil || cerrdefs.IsNotFound(err) {
		return nil
	}
	return &ExecutionBackendError{Engine: e.Name(), Op: "remove " + name, Cause: err}
}

// Close releases the client connection.
func (e *APIEngine) Close() error {
	return e.client.Close()
}

func (e *APIEngine) containerConfig(opts RunOptions) (*container.Config, *container.HostConfig) {
	config := &container.Config{
		Image:        opts.Image,
		Cmd:          opts.Command,
		Env:          opts.Env,
		WorkingDir:   opts.WorkDir,
		User:         opts.User,
		Tty:          opts.TTY,
		AttachStdout: true,
		AttachStderr: true,
	}
	if opts.Interactive {
		config.AttachStdin = true
		config.OpenStdin = true
		config.StdinOnce = true
	}

	hostConfig := &container.HostConfig{}
	for _, m := range opts.Mounts {
		hostConfig.Mounts = append(hostConfig.Mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.HostPath,
			Target:   m.ContainerPath,
			ReadOnly: m.Access.ReadOnly(),
		})
	}
	return config, hostConfig
}

// wait blocks until the container exits. On cancellation it interrupts the
// container and escalates to SIGKILL if it outlives the grace period.
func (e *APIEngine) wait(ctx context.Context, id string, waitC <-chan container.WaitResponse, errC <-chan error) (int, error) {
	select {
	case resp := <-waitC:
		return waitResult(resp)
	case err := <-errC:
		return 0, err
	case <-ctx.Done():
	}

	bg := context.WithoutCancel(ctx)
	if err := e.client.ContainerKill(bg, id, "SIGINT"); err != nil && !cerrdefs.IsNotFound(err) {
		slog.Debug("interrupt container failed", "id", id, "error", err)
	}
	timer := time.NewTimer(e.grace)
	defer timer.Stop()
	select {
	case resp := <-waitC:
		return waitResult(resp)
	case err := <-errC:
		return 0, err
	case <-timer.C:
	}

	if err := e.client.ContainerKill(bg, id, "SIGKILL"); err != nil && !cerrdefs.IsNotFound(err) {
		slog.Debug("kill container failed", "id", id, "error", err)
	}
	select {
	case resp := <-waitC:
		return waitResult(resp)
	case err := <-errC:
		return 0, err
	}
}

func (e *APIEngine) remove(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(ctx, apiRemoveTimeout)
	defer cancel()
	if err := e.Remove(ctx, id, true); err != nil {
		slog.Warn("failed to remove container", "id", id, "error", err)
	}
}

func waitResult(resp container.WaitResponse) (int, error) {
	if resp.Error != nil && resp.Error.Message != "" {
		return 0, errors.New(resp.Error.Message)
	}
	return int(resp.StatusCode), nil
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
