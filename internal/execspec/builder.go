// SPDX-License-Identifier: MPL-2.0

package execspec

import (
	"errors"
	"slices"

	"github.com/crossrun/crossrun/internal/invocation"
	"github.com/crossrun/crossrun/internal/target"
)

const (
	// DefaultTool is the build tool invoked when BuildOptions.Tool is empty.
	DefaultTool = "cargo"
	// BuildStdFlag asks the build tool to compile the standard library.
	BuildStdFlag = "-Zbuild-std"
)

// ErrMissingResolution is returned when Build is called without a resolution.
var ErrMissingResolution = errors.New("execution spec requires a resolution")

// Build assembles the ExecutionSpec for inv on spec. It performs no I/O.
func Build(inv *invocation.Invocation, spec target.Spec, res *Resolution, opts BuildOptions) (*ExecutionSpec, error) {
	if res == nil {
		return nil, ErrMissingResolution
	}
	if err := ValidateMounts(res.Mounts); err != nil {
		return nil, err
	}

	image := res.Image
	if image == "" {
		image = spec.Image
	}

	tool := opts.Tool
	if tool == "" {
		tool = DefaultTool
	}

	env := res.Env
	if env == nil {
		env = NewEnvMap()
	}

	var extra []string
	if opts.BuildStd {
		extra = append(extra, BuildStdFlag)
	}

	return &ExecutionSpec{
		Image:      image,
		Mounts:     slices.Clone(res.Mounts),
		Env:        env.Clone(),
		WorkDir:    res.WorkDir,
		Entrypoint: append([]string{tool}, withTarget(inv, spec.Triple, extra...)...),
		User:       opts.User,
		Platform:   opts.Platform,
	}, nil
}

// NativeCommand rebuilds the host command line for inv: the tool, the
// +channel token when one was given, and the forwarded arguments with the
// target flag restored when the user supplied one.
func NativeCommand(inv *invocation.Invocation, tool string) []string {
	if tool == "" {
		tool = DefaultTool
	}
	cmd := []string{tool}
	if inv.Channel != "" {
		cmd = append(cmd, "+"+inv.Channel)
	}
	if inv.TargetExplicit {
		return append(cmd, withTarget(inv, inv.Target)...)
	}
	return append(cmd, forwardedArgs(inv)...)
}

// forwardedArgs returns a copy of inv.Args with the subcommand token in its
// canonical spelling. "compile" is accepted on the command line but cargo
// only knows it as "rustc".
func forwardedArgs(inv *invocation.Invocation) []string {
	args := slices.Clone(inv.Args)
	if inv.Subcommand == invocation.SubcommandCompile && inv.SubcommandIndex >= 0 && inv.SubcommandIndex < len(args) {
		args[inv.SubcommandIndex] = invocation.CompileToken
	}
	return args
}

// withTarget returns inv.Args with "--target triple" and extra placed right
// after the subcommand token, or at the end before any "--" when there is no
// subcommand.
func withTarget(inv *invocation.Invocation, triple string, extra ...string) []string {
	args := forwardedArgs(inv)
	flags := append([]string{"--target", triple}, extra...)
	out := make([]string, 0, len(args)+len(flags))
	if inv.SubcommandIndex >= 0 && inv.SubcommandIndex < len(args) {
		out = append(out, args[:inv.SubcommandIndex+1]...)
		out = append(out, flags...)
		return append(out, args[inv.SubcommandIndex+1:]...)
	}
	at := slices.Index(args, "--")
	if at < 0 {
		at = len(args)
	}
	out = append(out, args[:at]...)
	out = append(out, flags...)
	return append(out, args[at:]...)
}
