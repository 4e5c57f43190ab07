// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/crossrun/crossrun/internal/execspec"
	"github.com/crossrun/crossrun/internal/invocation"
	"github.com/crossrun/crossrun/internal/issue"
)

// flow tracks the state of one Execute call and logs every transition.
type flow struct {
	state  State
	target string
}

func (f *flow) to(next State, attrs ...any) {
	if f.state.Terminal() {
		// A flow has exactly one outcome.
		return
	}
	slog.Debug("orchestration state", append([]any{"from", f.state, "to", next, "target", f.target}, attrs...)...)
	f.state = next
}

func (f *flow) fail(err error) *Result {
	// An interrupt outranks whatever the interrupted step reported.
	if errors.Is(err, context.Canceled) || errors.Is(err, issue.ErrInterrupted) {
		if !errors.Is(err, issue.ErrInterrupted) {
			err = fmt.Errorf("%w: %w", issue.ErrInterrupted, err)
		}
		err = issue.WrapWithContext(err, issue.KindInterrupted, "build for target", f.target)
	}
	f.to(StateErrored, "error", err)
	return NewErrorResult(err)
}

func (f *flow) exit(code int) *Result {
	r := NewExitCodeResult(code)
	if r.ExitCode.IsReserved() {
		slog.Warn("build tool exit code overlaps crossrun's own failure codes; it is passed through unchanged", "exit_code", code)
	}
	f.to(r.State, "exit_code", code)
	return r
}

// Execute runs inv to completion. The host target runs natively; every other
// target runs in its container image. The build tool's exit code is returned
// unchanged; orchestration failures end Errored with a reserved exit code.
func (o *Orchestrator) Execute(ctx context.Context, inv *invocation.Invocation) *Result {
	f := &flow{state: StateIdle, target: inv.Target}

	if inv.IsNative(o.Host) {
		return o.executeNative(ctx, f, inv)
	}

	f.to(StateResolving)
	spec, err := o.plan(ctx, f, inv)
	if err != nil {
		return f.fail(err)
	}

	f.to(StateLaunching, "image", spec.Image)
	launched, err := o.launch(ctx, spec)
	if err != nil {
		return f.fail(err)
	}
	defer launched.release()

	f.to(StateRunning, "engine", launched.engine.Name(), "container", launched.name)
	code, err := launched.run(ctx, o.Streams)
	if err != nil {
		return f.fail(err)
	}
	return f.exit(code)
}

// Plan resolves and builds the execution spec of inv without running it.
// Host invocations have no spec and return nil.
func (o *Orchestrator) Plan(ctx context.Context, inv *invocation.Invocation) (*execspec.ExecutionSpec, error) {
	if inv.IsNative(o.Host) {
		return nil, nil
	}
	return o.plan(ctx, &flow{state: StateResolving, target: inv.Target}, inv)
}

func (o *Orchestrator) plan(ctx context.Context, f *flow, inv *invocation.Invocation) (*execspec.ExecutionSpec, error) {
	spec, err := o.Registry.Lookup(inv.Target)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("look up target").
			WithResource(inv.Target).
			WithSuggestion("run 'crossrun self targets' to list the supported targets").
			Wrap(err).
			BuildError()
	}

	res, err := o.Resolver.Resolve(ctx, inv, spec)
	if err != nil {
		return nil, err
	}

	f.to(StateBuilding)
	built, err := execspec.Build(inv, spec, res, execspec.BuildOptions{
		User:     currentUser(),
		Platform: containerPlatform(),
		BuildStd: o.Config.BuildStd(spec.Triple),
	})
	if err != nil {
		if issue.KindOf(err) == issue.KindUnknown {
			return nil, issue.WrapWithContext(err, issue.KindInternal, "build execution spec", inv.Target)
		}
		return nil, err
	}
	return built, nil
}

func (o *Orchestrator) executeNative(ctx context.Context, f *flow, inv *invocation.Invocation) *Result {
	f.to(StateResolving, "native", true)
	f.to(StateBuilding)
	argv := execspec.NativeCommand(inv, execspec.DefaultTool)

	f.to(StateRunning, "command", argv)
	native := o.Native
	if native == nil {
		native = NewNativeRuntime()
	}
	code, err := native.Run(ctx, argv, o.Streams)
	if err != nil {
		return f.fail(err)
	}
	return f.exit(code)
}
