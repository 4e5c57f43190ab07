// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/crossrun/crossrun/internal/execspec"
	"github.com/crossrun/crossrun/internal/process"
)

const (
	// SELinuxLabelNone means no SELinux label is applied to volume mounts.
	SELinuxLabelNone SELinuxLabel = ""
	// SELinuxLabelShared allows sharing the volume between containers.
	SELinuxLabelShared SELinuxLabel = "z"
	// SELinuxLabelPrivate restricts the volume to a single container.
	SELinuxLabelPrivate SELinuxLabel = "Z"
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// VolumeFormatFunc formats a mount as the value of a -v flag.
	// Podman uses this to add SELinux labels.
	VolumeFormatFunc func(mount execspec.MountSpec) string

	// RunArgsTransformer modifies run arguments after they're built.
	// Used by Podman to inject --userns=keep-id for rootless compatibility.
	RunArgsTransformer func(args []string) []string

	// BaseCLIEngineOption configures a BaseCLIEngine.
	BaseCLIEngineOption func(*BaseCLIEngine)

	// BaseCLIEngine provides the implementation shared by CLI-based engines.
	// Docker, Podman and nerdctl accept the same run, pull and rm syntax, so
	// only Available, Version and ImageExists differ between them.
	BaseCLIEngine struct {
		name               string
		binaryPath         string
		execCommand        ExecCommandFunc
		volumeFormatter    VolumeFormatFunc
		runArgsTransformer RunArgsTransformer
		grace              time.Duration
		foreground         bool
	}

	// SELinuxLabel represents an SELinux volume labeling option.
	// The zero value ("") means no SELinux label is applied.
	SELinuxLabel string
)

// --- Option Functions ---

// WithName sets the engine name used in error messages.
func WithName(name string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.name = name
	}
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.execCommand = fn
	}
}

// WithVolumeFormatter sets a custom volume formatter function.
func WithVolumeFormatter(fn VolumeFormatFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.volumeFormatter = fn
	}
}

// WithRunArgsTransformer sets a custom run args transformer.
func WithRunArgsTransformer(fn RunArgsTransformer) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.runArgsTransformer = fn
	}
}

// WithGracePeriod sets how long an interrupted CLI client gets to stop the
// container before it is killed.
func WithGracePeriod(d time.Duration) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.grace = d
	}
}

// WithForeground keeps the CLI client in the caller's process group. Use it
// for interactive runs so terminal signals reach the client directly.
func WithForeground(foreground bool) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.foreground = foreground
	}
}

// --- Constructor ---

// NewBaseCLIEngine creates a new base engine with the given binary path.
func NewBaseCLIEngine(binaryPath string, opts ...BaseCLIEngineOption) *BaseCLIEngine {
	e := &BaseCLIEngine{
		binaryPath:         binaryPath,
		execCommand:        exec.CommandContext,
		volumeFormatter:    func(m execspec.MountSpec) string { return FormatVolumeMount(m, SELinuxLabelNone) },
		runArgsTransformer: func(args []string) []string { return args },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// --- Accessor Methods ---

// Name returns the engine name used in error messages.
func (e *BaseCLIEngine) Name() string {
	return e.name
}

// BinaryPath returns the path to the container engine binary.
func (e *BaseCLIEngine) BinaryPath() string {
	return e.binaryPath
}

// --- Argument Builders ---

// RunArgs constructs arguments for a container run command.
//
// Generated command: <binary> run [options] [extra...] <image> [command...]
func (e *BaseCLIEngine) RunArgs(opts RunOptions) []string {
	args := []string{"run"}

	if opts.Remove {
		args = append(args, "--rm")
	}

	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}

	if opts.Platform != "" {
		args = append(args, "--platform", opts.Platform)
	}

	if opts.User != "" {
		args = append(args, "--user", opts.User)
	}

	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}

	if opts.Interactive {
		args = append(args, "-i")
	}

	if opts.TTY {
		args = append(args, "-t")
	}

	for _, kv := range opts.Env {
		args = append(args, "-e", kv)
	}

	for _, m := range opts.Mounts {
		args = append(args, "-v", e.volumeFormatter(m))
	}

	args = append(args, opts.ExtraArgs...)
	args = append(args, opts.Image)
	args = append(args, opts.Command...)

	return e.runArgsTransformer(args)
}

// PullArgs constructs arguments for an image pull command.
func (e *BaseCLIEngine) PullArgs(image, platform string) []string {
	args := []string{"pull"}
	if platform != "" {
		args = append(args, "--platform", platform)
	}
	return append(args, image)
}

// RemoveArgs constructs arguments for a container remove command.
func (e *BaseCLIEngine) RemoveArgs(name string, force bool) []string {
	args := []string{"rm"}
	if force {
		args = append(args, "-f")
	}
	return append(args, name)
}

// --- Command Execution ---

// RunCommandCombined executes a command and returns combined stdout/stderr.
func (e *BaseCLIEngine) RunCommandCombined(ctx context.Context, args ...string) ([]byte, error) {
	cmd := e.CreateCommand(ctx, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}
	return out, nil
}

// RunCommandWithOutput executes a command with stdout captured to a buffer.
// Stderr is folded into the returned error.
func (e *BaseCLIEngine) RunCommandWithOutput(ctx context.Context, args ...string) (string, error) {
	cmd := e.CreateCommand(ctx, args...)
	var out bytes.Buffer
	stderr := newTailBuffer(stderrTailSize)
	cmd.Stdout = &out
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		if msg := stderr.String(); msg != "" {
			return "", fmt.Errorf("command %s %v failed: %w: %s", e.binaryPath, args, err, msg)
		}
		return "", fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}

	return out.String(), nil
}

// CreateCommand creates an exec.Cmd for the given arguments.
func (e *BaseCLIEngine) CreateCommand(ctx context.Context, args ...string) *exec.Cmd {
	return e.execCommand(ctx, e.binaryPath, args...)
}

// --- Shared Engine Methods ---

// Run runs a container and returns the exit status of its command.
// Cancellation interrupts the CLI client's process group; the caller remains
// responsible for removing the named container. An engine exit status of 125
// means the daemon failed before the command started and is returned as an
// ExecutionBackendError carrying the end of the engine's stderr.
func (e *BaseCLIEngine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	cmd := e.CreateCommand(ctx, e.RunArgs(opts)...)
	cmd.Stdin = opts.Stdin
	process.Prepare(cmd, process.Options{Foreground: e.foreground, Grace: e.grace})

	tail := newTailBuffer(stderrTailSize)
	var stderr io.Writer = tail
	if opts.Stderr != nil {
		stderr = io.MultiWriter(opts.Stderr, tail)
	}

	err := process.Run(cmd, opts.Stdout, stderr)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%s run interrupted: %w", e.name, ctxErr)
	}

	code, exited := process.ExitCode(err)
	// 125 is the one inner exit code not passed through: the CLI uses it for
	// its own failures and an inner 125 cannot be told apart. DockerAPIEngine
	// reads the container status directly and returns an inner 125 unchanged.
	switch {
	case !exited:
		return nil, &ExecutionBackendError{Engine: e.name, Op: "run", Stderr: tail.String(), Cause: err}
	case code == engineFailureExitCode:
		return nil, &ExecutionBackendError{Engine: e.name, Op: "run", ExitCode: code, Stderr: tail.String(), Cause: err}
	}
	return &RunResult{ExitCode: code}, nil
}

// Pull pulls an image, streaming progress to progress.
func (e *BaseCLIEngine) Pull(ctx context.Context, image, platform string, progress io.Writer) error {
	cmd := e.CreateCommand(ctx, e.PullArgs(image, platform)...)
	tail := newTailBuffer(stderrTailSize)
	out := progress
	if out == nil {
		out = io.Discard
	}
	cmd.Stdout = out
	cmd.Stderr = io.MultiWriter(out, tail)

	if err := cmd.Run(); err != nil {
		code, _ := process.ExitCode(err)
		return &ExecutionBackendError{Engine: e.name, Op: "pull " + image, ExitCode: code, Stderr: tail.String(), Cause: err}
	}
	return nil
}

// Remove removes a container. A container that no longer exists is not an error.
func (e *BaseCLIEngine) Remove(ctx context.Context, name string, force bool) error {
	out, err := e.RunCommandCombined(ctx, e.RemoveArgs(name, force)...)
	if err == nil || isNoSuchObject(string(out)) {
		return nil
	}
	return &ExecutionBackendError{Engine: e.name, Op: "remove " + name, Stderr: strings.TrimSpace(string(out)), Cause: err}
}

// inspectImage runs an image inspection subcommand and maps "not found"
// output to false.
func (e *BaseCLIEngine) inspectImage(ctx context.Context, args ...string) (bool, error) {
	out, err := e.RunCommandCombined(ctx, args...)
	if err == nil {
		return true, nil
	}
	if isNoSuchObject(string(out)) {
		return false, nil
	}
	code, _ := process.ExitCode(err)
	return false, &ExecutionBackendError{
		Engine: e.name, Op: "inspect image", ExitCode: code, Stderr: strings.TrimSpace(string(out)), Cause: err,
	}
}

// --- Volume Mount Formatting ---

// FormatVolumeMount formats a mount as the value of a -v flag:
// "host:container[:ro][,label]".
func FormatVolumeMount(mount execspec.MountSpec, label SELinuxLabel) string {
	var result strings.Builder
	result.WriteString(mount.HostPath)
	result.WriteString(":")
	result.WriteString(mount.ContainerPath)

	var options []string
	if mount.Access.ReadOnly() {
		options = append(options, "ro")
	}
	if label != SELinuxLabelNone {
		options = append(options, string(label))
	}

	if len(options) > 0 {
		result.WriteString(":")
		result.WriteString(strings.Join(options, ","))
	}

	return result.String()
}

func isNoSuchObject(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "no such") ||
		strings.Contains(lower, "not found") ||
		strings.Contains(lower, "does not exist")
}
