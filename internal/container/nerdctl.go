// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// NerdctlEngine implements the Engine interface using the nerdctl CLI, which
// accepts docker's run, pull and rm syntax on top of containerd.
type NerdctlEngine struct {
	*BaseCLIEngine
}

// NewNerdctlEngine creates a new nerdctl engine.
func NewNerdctlEngine(opts ...BaseCLIEngineOption) *NerdctlEngine {
	path, _ := exec.LookPath("nerdctl")
	allOpts := append([]BaseCLIEngineOption{WithName(string(EngineTypeNerdctl))}, opts...)
	return &NerdctlEngine{
		BaseCLIEngine: NewBaseCLIEngine(path, allOpts...),
	}
}

// Available checks if nerdctl can reach containerd.
func (e *NerdctlEngine) Available() bool {
	if e.BinaryPath() == "" {
		return false
	}
	cmd := e.CreateCommand(context.Background(), "version", "--format", "{{.Server.Components}}")
	return cmd.Run() == nil
}

// Version returns the nerdctl client version after checking the server answers.
func (e *NerdctlEngine) Version(ctx context.Context) (string, error) {
	if e.BinaryPath() == "" {
		return "", &EngineNotAvailableError{Engine: e.Name(), Reason: "nerdctl was not found in PATH"}
	}
	out, err := e.RunCommandWithOutput(ctx, "version", "--format", "{{.Client.Version}}")
	if err != nil {
		return "", &ExecutionBackendError{Engine: e.Name(), Op: "version", Cause: fmt.Errorf("failed to get nerdctl version: %w", err)}
	}
	return strings.TrimSpace(out), nil
}

// ImageExists checks if an image exists locally.
func (e *NerdctlEngine) ImageExists(ctx context.Context, image string) (bool, error) {
	return e.inspectImage(ctx, "image", "inspect", image)
}
