// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"

	"github.com/crossrun/crossrun/internal/config"
	"github.com/crossrun/crossrun/internal/invocation"
	"github.com/crossrun/crossrun/internal/issue"
	"github.com/crossrun/crossrun/internal/runtime"
	"github.com/crossrun/crossrun/internal/target"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

// selfCommandName is the namespace of crossrun's own commands.
const selfCommandName = "self"

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// App carries the process-level dependencies of every command.
type App struct {
	Streams  runtime.Streams
	Registry *target.Registry
	Getenv   func(string) string
	// Dir is where project discovery starts; empty means the working directory.
	Dir string

	verbose bool
}

// newApp returns an App wired to the real process.
func newApp() *App {
	return &App{
		Streams:  runtime.StdStreams(),
		Registry: target.Default(),
		Getenv:   os.Getenv,
	}
}

func newRootCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "crossrun [+channel] <subcommand> [--target <triple>] [args...]",
		Short: "Cross-compile cargo projects in per-target containers",
		Long: TitleStyle.Render("crossrun") + SubtitleStyle.Render(" - zero-setup cross compilation for cargo") + `

crossrun takes the same arguments as cargo. When --target names a triple
other than the host's, the build runs inside that target's image with the
project mounted read-only; otherwise cargo runs directly on the host.

` + SubtitleStyle.Render("Examples:") + `
  crossrun build --target aarch64-unknown-linux-gnu
  crossrun +nightly test --target armv7-unknown-linux-gnueabihf
  crossrun self targets     List the supported targets
  crossrun self plan build --target mips-unknown-linux-gnu`,
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && args[0] == selfCommandName {
				return app.runSelf(cmd.Context(), args[1:])
			}
			return app.run(cmd.Context(), args)
		},
	}
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the command line and exits with its code.
// This is called by main.main().
func Execute() {
	if code := Main(); code != 0 {
		os.Exit(code)
	}
}

// Main runs the command line against os.Args and returns the exit code.
func Main() int {
	app := newApp()
	err := fang.Execute(
		context.Background(),
		newRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithoutManpage(),
		fang.WithoutCompletions(),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
		fang.WithErrorHandler(app.handleError),
	)
	return exitCode(err)
}

// run orchestrates one build-tool invocation. The command line is checked
// before any configuration file is read.
func (app *App) run(ctx context.Context, args []string) error {
	inv, cfg, err := app.prepare(ctx, args)
	if err != nil {
		return newExitError(err)
	}

	result := runtime.New(cfg, app.Registry, app.Streams).Execute(ctx, inv)
	slog.Debug("invocation finished", "state", result.State, "exit_code", result.ExitCode)
	if result.Success() {
		return nil
	}
	return &ExitError{Code: result.ExitCode, Err: result.Err}
}

// loadConfig loads the effective configuration. Logging is configured from
// CROSS_DEBUG first so that loader warnings are visible, then from the
// loaded debug setting.
func (app *App) loadConfig(ctx context.Context) (*config.Config, error) {
	debug := debugFromEnv(app.Getenv)
	configureLogging(app.Streams.Stderr, debug)

	cfg, err := config.Load(ctx, config.LoadOptions{Dir: app.Dir, Getenv: app.Getenv})
	if err != nil {
		return nil, err
	}
	if cfg.Debug && !debug {
		configureLogging(app.Streams.Stderr, true)
	}
	app.verbose = cfg.Debug || debug
	slog.Debug("configuration loaded", "sources", cfg.Sources, "engine", cfg.Container.Engine)
	return cfg, nil
}

// prepare parses argv, then loads the configuration and applies its target
// defaults to the invocation.
func (app *App) prepare(ctx context.Context, args []string) (*invocation.Invocation, *config.Config, error) {
	inv, err := invocation.Parse(args, invocation.Options{})
	if err != nil {
		return nil, nil, err
	}
	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	inv.ApplyDefaults(invocation.Options{
		Host:          target.HostTriple(cfg.HostTriple),
		DefaultTarget: cfg.Build.DefaultTarget,
	})
	return inv, cfg, nil
}

// handleError prints orchestration errors. A failed build tool already
// reported its own error, so a bare exit code prints nothing.
func (app *App) handleError(w io.Writer, _ fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}
	fmt.Fprintln(w, ErrorStyle.Render("error:")+" "+formatErrorForDisplay(err, app.verbose))

	kind := issue.KindOf(err)
	if kind != issue.KindInterrupted && issue.Get(kind) != nil {
		fmt.Fprintln(w, SubtitleStyle.Render(fmt.Sprintf("\nrun 'crossrun self explain %d' for troubleshooting steps", kind.ExitCode())))
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

func newExitError(err error) *ExitError {
	return &ExitError{Code: issue.ExitCodeFor(err), Err: err}
}

// exitCode maps the result of the root command to the process exit code.
// Errors that never reached the orchestrator are internal errors.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return int(exitErr.Code)
	}
	return int(issue.ExitCodeFor(err))
}
