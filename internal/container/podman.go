// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/crossrun/crossrun/internal/execspec"
)

const usernsKeepID = "--userns=keep-id"

// podmanBinaryNames lists the binaries tried in order.
var podmanBinaryNames = []string{"podman", "podman-remote"}

// PodmanEngine implements the Engine interface using Podman CLI.
// It embeds BaseCLIEngine for common CLI operations.
type PodmanEngine struct {
	*BaseCLIEngine
}

// NewPodmanEngine creates a new Podman engine. Mounts get the shared :z
// SELinux label when SELinux is present, and rootless runs keep the invoking
// user's id inside the container.
func NewPodmanEngine(opts ...BaseCLIEngineOption) *PodmanEngine {
	return newPodmanEngine(isSELinuxPresent, os.Geteuid() > 0, opts...)
}

func newPodmanEngine(selinux func() bool, rootless bool, opts ...BaseCLIEngineOption) *PodmanEngine {
	base := []BaseCLIEngineOption{
		WithName(string(EngineTypePodman)),
		WithVolumeFormatter(makeSELinuxVolumeFormatter(selinux)),
	}
	if rootless {
		base = append(base, WithRunArgsTransformer(makeUsernsKeepIDAdder()))
	}
	return &PodmanEngine{
		BaseCLIEngine: NewBaseCLIEngine(findPodmanBinary(), append(base, opts...)...),
	}
}

// Available checks if Podman is available.
func (e *PodmanEngine) Available() bool {
	if e.BinaryPath() == "" {
		return false
	}
	cmd := e.CreateCommand(context.Background(), "version", "--format", "{{.Version}}")
	return cmd.Run() == nil
}

// Version returns the Podman version.
func (e *PodmanEngine) Version(ctx context.Context) (string, error) {
	if e.BinaryPath() == "" {
		return "", &EngineNotAvailableError{Engine: e.Name(), Reason: "podman was not found in PATH"}
	}
	out, err := e.RunCommandWithOutput(ctx, "version", "--format", "{{.Version}}")
	if err != nil {
		return "", &ExecutionBackendError{Engine: e.Name(), Op: "version", Cause: fmt.Errorf("failed to get podman version: %w", err)}
	}
	return strings.TrimSpace(out), nil
}

// ImageExists checks if an image exists. "podman image exists" exits 1 for a
// missing image and 125 for an engine failure.
func (e *PodmanEngine) ImageExists(ctx context.Context, image string) (bool, error) {
	out, err := e.RunCommandCombined(ctx, "image", "exists", image)
	if err == nil {
		return true, nil
	}
	if IsEngineFailure(err) {
		return false, &ExecutionBackendError{
			Engine: e.Name(), Op: "inspect image", ExitCode: engineFailureExitCode,
			Stderr: strings.TrimSpace(string(out)), Cause: err,
		}
	}
	return false, nil
}

// findPodmanBinary returns the first podman binary found in PATH.
func findPodmanBinary() string {
	for _, name := range podmanBinaryNames {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// isSELinuxPresent reports whether the SELinux filesystem is mounted. Labels
// are needed even in permissive mode, so presence rather than enforcement
// decides.
func isSELinuxPresent() bool {
	_, err := os.Stat("/sys/fs/selinux")
	return err == nil
}

func makeSELinuxVolumeFormatter(present func() bool) VolumeFormatFunc {
	return func(m execspec.MountSpec) string {
		if present() {
			return FormatVolumeMount(m, SELinuxLabelShared)
		}
		return FormatVolumeMount(m, SELinuxLabelNone)
	}
}

// makeUsernsKeepIDAdder returns a transformer that adds --userns=keep-id
// right after "run" so files written to the mounts stay owned by the caller.
func makeUsernsKeepIDAdder() RunArgsTransformer {
	return func(args []string) []string {
		if len(args) == 0 || args[0] != "run" {
			return args
		}
		out := make([]string, 0, len(args)+1)
		out = append(out, args[0], usernsKeepID)
		return append(out, args[1:]...)
	}
}
