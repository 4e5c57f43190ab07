// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/crossrun/crossrun/internal/execspec"
	"github.com/crossrun/crossrun/internal/issue"
	"github.com/crossrun/crossrun/internal/process"
	"github.com/crossrun/crossrun/internal/runtime"
	"github.com/crossrun/crossrun/internal/target"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// nativePlan is printed by `self plan` when the invocation runs on the host.
type nativePlan struct {
	Native []string `yaml:"native"`
}

// runSelf executes a command of the self namespace. It is a separate
// command tree so that the root never interprets cargo's arguments.
func (app *App) runSelf(ctx context.Context, args []string) error {
	cmd := newSelfCommand(app)
	cmd.SetArgs(args)
	cmd.SetIn(app.Streams.Stdin)
	cmd.SetOut(app.Streams.Stdout)
	cmd.SetErr(app.Streams.Stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil && issue.KindOf(err) == issue.KindUnknown {
		// Usage errors from cobra itself.
		err = issue.WrapWithContext(err, issue.KindConfig, "run", "crossrun self "+strings.Join(args, " "))
	}
	if err != nil {
		return newExitError(err)
	}
	return nil
}

func newSelfCommand(app *App) *cobra.Command {
	selfCmd := &cobra.Command{
		Use:           "crossrun self",
		Short:         "Inspect crossrun itself",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	selfCmd.CompletionOptions.DisableDefaultCmd = true

	selfCmd.AddCommand(
		newTargetsCommand(app),
		newPlanCommand(app),
		newConfigCommand(app),
		newExplainCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the crossrun version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "crossrun "+getVersionString())
				fmt.Fprintf(out, "images: %s/<triple>:%s\n", target.ImageRepository, target.ImageVersion)
				return nil
			},
		},
	)
	return selfCmd
}

func newTargetsCommand(app *App) *cobra.Command {
	var markdown bool
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List the supported target triples",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			specs := app.Registry.Specs()
			if !markdown {
				return listTargets(cmd.OutOrStdout(), specs)
			}
			md := targetsMarkdown(specs)
			if !process.Interactive() {
				_, err := io.WriteString(cmd.OutOrStdout(), md)
				return err
			}
			rendered, err := renderMarkdown(md)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), rendered)
			return err
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "print a markdown table, rendered when stdout is a terminal")
	return cmd
}

// listTargets prints one triple per line followed by its capabilities.
func listTargets(w io.Writer, specs []target.Spec) error {
	width := 0
	for _, s := range specs {
		width = max(width, lipgloss.Width(s.Triple))
	}
	tripleStyle := CmdStyle.Width(width + 2)

	fmt.Fprintln(w, TitleStyle.Render("Supported targets")+SubtitleStyle.Render(fmt.Sprintf(" (%d)", len(specs))))
	for _, s := range specs {
		if _, err := fmt.Fprintln(w, tripleStyle.Render(s.Triple)+SubtitleStyle.Render(strings.Join(capabilities(s), ", "))); err != nil {
			return err
		}
	}
	return nil
}

func capabilities(s target.Spec) []string {
	var caps []string
	switch {
	case !s.NativeTest:
		caps = append(caps, "build only")
	case s.RequiresEmulation:
		caps = append(caps, "test/run via qemu-"+s.QemuArch)
	default:
		caps = append(caps, "test/run")
	}
	if s.OpenSSL {
		caps = append(caps, "openssl")
	}
	if !s.Std {
		caps = append(caps, "no_std")
	}
	return caps
}

func targetsMarkdown(specs []target.Spec) string {
	var b strings.Builder
	b.WriteString("| Target | test/run | Emulator | OpenSSL | std |\n")
	b.WriteString("|---|:-:|---|:-:|:-:|\n")
	for _, s := range specs {
		emulator := ""
		if s.RequiresEmulation {
			emulator = "qemu-" + s.QemuArch
		}
		fmt.Fprintf(&b, "| `%s` | %s | %s | %s | %s |\n",
			s.Triple, checkMark(s.NativeTest), emulator, checkMark(s.OpenSSL), checkMark(s.Std))
	}
	return b.String()
}

func checkMark(ok bool) string {
	if ok {
		return "✓"
	}
	return ""
}

func renderMarkdown(md string) (string, error) {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err != nil {
		return "", err
	}
	return renderer.Render(md)
}

func newPlanCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [+channel] <subcommand> [--target <triple>] [args...]",
		Short: "Print the execution spec of an invocation without running it",
		Long: `Resolve an invocation the way crossrun would run it and print the
result as YAML: the image, mounts, environment, working directory and
entrypoint of the container, or the host command for native builds.`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, cfg, err := app.prepare(cmd.Context(), args)
			if err != nil {
				return err
			}
			spec, err := runtime.New(cfg, app.Registry, app.Streams).Plan(cmd.Context(), inv)
			if err != nil {
				return err
			}
			if spec == nil {
				return writeYAML(cmd.OutOrStdout(), nativePlan{Native: execspec.NativeCommand(inv, execspec.DefaultTool)})
			}
			return writeYAML(cmd.OutOrStdout(), spec)
		},
	}
}

func newConfigCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after merging Cargo.toml metadata, Cross.toml
and CROSS_* environment variables, with the files that contributed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), cfg)
		},
	}
}

func newExplainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <exit-code>",
		Short: "Explain a crossrun exit code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := strconv.Atoi(args[0])
			if err != nil {
				return issue.WrapWithContext(err, issue.KindConfig, "parse exit code", args[0])
			}
			guide := issue.ForExitCode(code)
			if guide == nil {
				return issue.NewErrorContext().
					WithKind(issue.KindConfig).
					WithOperation("explain exit code").
					WithResource(args[0]).
					WithSuggestion("Other exit codes come from cargo or the program it ran").
					Wrap(fmt.Errorf("%d is not a crossrun exit code", code)).
					BuildError()
			}
			style := "auto"
			if !process.Interactive() {
				style = "notty"
			}
			rendered, err := guide.Render(style)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), rendered)
			return err
		},
	}
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
