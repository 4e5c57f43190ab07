// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/crossrun/crossrun/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"mvdan.cc/sh/v3/shell"
)

const (
	// AppName is the application name.
	AppName = "crossrun"
	// EnvPrefix prefixes every configuration environment variable.
	EnvPrefix = "CROSS"
	// ConfigPathEnv names an explicit Cross.toml.
	ConfigPathEnv = "CROSS_CONFIG"

	// keyDelimiter separates nested viper keys. Target triples may contain
	// dots, so the default "." cannot be used.
	keyDelimiter = "::"
)

//go:embed config_schema.cue
var configSchema string

// envKeys are the viper keys bound to CROSS_* variables.
var envKeys = []string{
	"build::build-std",
	"build::default-target",
	"build::lock",
	"container::engine",
	"container::opts",
	"debug",
	"host-triple",
}

var (
	knownTop       = []string{"build", "target", "container", "debug", "host-triple"}
	knownBuild     = []string{"env", "default-target", "lock", "build-std"}
	knownTarget    = []string{"image", "env", "build-std"}
	knownEnv       = []string{"passthrough", "volumes"}
	knownContainer = []string{"engine", "opts"}
	// unsupportedKeys are recognised keys crossrun ignores. xargo is
	// superseded by build-std; the others build images or wrap runners.
	unsupportedKeys = []string{"xargo", "pre-build", "dockerfile", "runner"}
)

// layer is one configuration source before merging.
type layer struct {
	name string
	data map[string]any
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}

	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_", "-", "_"))

	defaults := DefaultConfig()
	v.SetDefault("build::lock", defaults.Build.Lock)
	v.SetDefault("build::default-target", defaults.Build.DefaultTarget)
	v.SetDefault("container::engine", string(defaults.Container.Engine))
	v.SetDefault("container::opts", defaults.Container.Opts)
	v.SetDefault("debug", defaults.Debug)
	v.SetDefault("host-triple", defaults.HostTriple)
	for _, key := range envKeys {
		_ = v.BindEnv(key) // only fails when no key is given
	}

	project, err := FindProject(dir)
	switch {
	case errors.Is(err, ErrNoProject):
		project = nil
	case err != nil:
		return nil, issue.NewErrorContext().
			WithKind(issue.KindConfig).
			WithOperation("read project manifest").
			WithResource(dir).
			WithSuggestion("Check that " + ManifestFileName + " is valid TOML").
			Wrap(err).
			BuildError()
	}

	layers, err := collectLayers(project, opts.ConfigFilePath, getenv)
	if err != nil {
		return nil, err
	}

	merged := map[string]any{}
	var sources []string
	for _, l := range layers {
		if err := validateLayer(l); err != nil {
			return nil, issue.NewErrorContext().
				WithKind(issue.KindConfig).
				WithOperation("validate configuration").
				WithResource(l.name).
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'crossrun self config' to see the effective configuration").
				Wrap(err).
				BuildError()
		}
		merged = mergeLayers(merged, l.data)
		sources = append(sources, l.name)
	}

	unused := unusedKeys(merged)
	for _, key := range unused {
		leaf := key[strings.LastIndex(key, ".")+1:]
		if slices.Contains(unsupportedKeys, leaf) {
			slog.Warn("configuration key is not supported by crossrun, ignoring", "key", key)
			continue
		}
		slog.Warn("found unused key in Cross configuration", "key", key)
	}

	if err := v.MergeConfigMap(merged); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, issue.NewErrorContext().
			WithKind(issue.KindConfig).
			WithOperation("parse configuration").
			Wrap(err).
			BuildError()
	}
	if cfg.Targets == nil {
		cfg.Targets = map[string]TargetConfig{}
	}
	if valid, errs := cfg.IsValid(); !valid {
		return nil, issue.NewErrorContext().
			WithKind(issue.KindConfig).
			WithOperation("validate configuration").
			WithSuggestion("Passthrough entries are NAME or NAME=VALUE; volume entries are variable names").
			Wrap(&InvalidConfigError{FieldErrors: errs}).
			BuildError()
	}

	cfg.Project = project
	cfg.Sources = sources
	cfg.Unused = unused
	cfg.getenv = getenv
	return cfg, nil
}

// collectLayers returns the configuration sources in merge order: workspace
// metadata, package metadata, then Cross.toml.
func collectLayers(project *Project, explicitPath string, getenv func(string) string) ([]layer, error) {
	var layers []layer
	if project != nil {
		if project.workspaceMeta != nil {
			layers = append(layers, layer{
				name: filepath.Join(project.Root, ManifestFileName) + " [workspace.metadata.cross]",
				data: project.workspaceMeta,
			})
		}
		if project.packageMeta != nil {
			layers = append(layers, layer{
				name: project.Manifest + " [package.metadata.cross]",
				data: project.packageMeta,
			})
		}
	}

	path := explicitPath
	if path == "" {
		path = getenv(ConfigPathEnv)
	}
	required := path != ""
	if path == "" && project != nil {
		path = filepath.Join(project.Root, CrossFileName)
	}
	if path == "" {
		return layers, nil
	}

	if !fileExists(path) {
		if !required {
			return layers, nil
		}
		return nil, issue.NewErrorContext().
			WithKind(issue.KindConfig).
			WithOperation("load configuration").
			WithResource(path).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Unset " + ConfigPathEnv + " to use the project's " + CrossFileName).
			Wrap(fmt.Errorf("config file not found: %s", path)).
			BuildError()
	}

	data, err := readCrossFile(path)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithKind(issue.KindConfig).
			WithOperation("load configuration").
			WithResource(path).
			WithSuggestion("Check that the file contains valid TOML").
			Wrap(err).
			BuildError()
	}
	return append(layers, layer{name: path, data: data}), nil
}

func readCrossFile(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	data := map[string]any{}
	if err := toml.Unmarshal(raw, &data); err != nil {
		return nil, tomlError(path, err)
	}
	return data, nil
}

// validateLayer checks one source against the #CrossToml schema.
func validateLayer(l layer) error {
	cctx := cuecontext.New()

	schemaValue := cctx.CompileString(configSchema, cue.Filename("config_schema.cue"))
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := cctx.Encode(l.data)
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), l.name)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#CrossToml"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, l.name)
	}
	return nil
}

// formatCUEError flattens a CUE error list into one line per offending key.
func formatCUEError(err error, source string) error {
	var lines []string
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if p := e.Path(); len(p) > 0 {
			msg = strings.Join(p, ".") + ": " + msg
		}
		lines = append(lines, msg)
	}
	if len(lines) == 0 {
		return fmt.Errorf("%s: %w", source, err)
	}
	slices.Sort(lines)
	lines = slices.Compact(lines)
	return fmt.Errorf("%s: %s", source, strings.Join(lines, "; "))
}

// mergeLayers applies over on top of base. Target tables replace per triple;
// build keys replace individually.
func mergeLayers(base, over map[string]any) map[string]any {
	out := maps.Clone(base)
	for key, value := range over {
		switch key {
		case "target", "build":
			merged := map[string]any{}
			if prev, ok := out[key].(map[string]any); ok {
				maps.Copy(merged, prev)
			}
			if next, ok := value.(map[string]any); ok {
				for k, v := range next {
					if v != nil {
						merged[k] = v
					}
				}
				out[key] = merged
				continue
			}
			out[key] = value
		default:
			out[key] = value
		}
	}
	return out
}

// unusedKeys lists dotted paths of keys the loader does not understand.
func unusedKeys(m map[string]any) []string {
	var unused []string
	for key, value := range m {
		if !slices.Contains(knownTop, key) {
			unused = append(unused, key)
			continue
		}
		switch key {
		case "build":
			unused = append(unused, unusedIn("build", value, knownBuild)...)
		case "container":
			unused = append(unused, unusedIn("container", value, knownContainer)...)
		case "target":
			targets, _ := value.(map[string]any)
			for triple, tc := range targets {
				unused = append(unused, unusedIn("target."+triple, tc, knownTarget)...)
			}
		}
	}
	slices.Sort(unused)
	return unused
}

func unusedIn(prefix string, value any, known []string) []string {
	table, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	var unused []string
	for key, sub := range table {
		if !slices.Contains(known, key) {
			unused = append(unused, prefix+"."+key)
			continue
		}
		if key == "env" {
			unused = append(unused, unusedIn(prefix+".env", sub, knownEnv)...)
		}
	}
	return unused
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// TargetEnvName returns the CROSS_TARGET_<TRIPLE>_<suffix> variable name.
func TargetEnvName(triple, suffix string) string {
	t := strings.NewReplacer("-", "_", ".", "_").Replace(strings.ToUpper(triple))
	return EnvPrefix + "_TARGET_" + t + "_" + suffix
}

// SetGetenv replaces the variable lookup used for per-target settings.
func (c *Config) SetGetenv(getenv func(string) string) {
	c.getenv = getenv
}

func (c *Config) lookup(name string) string {
	if c.getenv == nil {
		return os.Getenv(name)
	}
	return c.getenv(name)
}

// Image returns the image override for triple, empty when none is configured.
// CROSS_TARGET_<TRIPLE>_IMAGE wins over the configuration file.
func (c *Config) Image(triple string) string {
	if image := c.lookup(TargetEnvName(triple, "IMAGE")); image != "" {
		return image
	}
	return c.Targets[triple].Image
}

// BuildStd reports whether the standard library is built from source for
// triple. CROSS_TARGET_<TRIPLE>_BUILD_STD wins over target.<triple>.build-std,
// which wins over build.build-std.
func (c *Config) BuildStd(triple string) bool {
	if on, err := strconv.ParseBool(c.lookup(TargetEnvName(triple, "BUILD_STD"))); err == nil {
		return on
	}
	if on := c.Targets[triple].BuildStd; on != nil {
		return *on
	}
	return c.Build.BuildStd != nil && *c.Build.BuildStd
}

// Passthrough returns the variables to forward for triple, build level first.
func (c *Config) Passthrough(triple string) ([]string, error) {
	return c.envList(triple, "PASSTHROUGH", c.Build.Env.Passthrough, c.Targets[triple].Env.Passthrough)
}

// Volumes returns the variables naming host paths to mount for triple.
func (c *Config) Volumes(triple string) ([]string, error) {
	return c.envList(triple, "VOLUMES", c.Build.Env.Volumes, c.Targets[triple].Env.Volumes)
}

func (c *Config) envList(triple, suffix string, build, target []string) ([]string, error) {
	out := slices.Clone(build)
	fromEnv, err := c.splitEnv(EnvPrefix + "_BUILD_ENV_" + suffix)
	if err != nil {
		return nil, err
	}
	out = append(out, fromEnv...)
	out = append(out, target...)
	fromEnv, err = c.splitEnv(TargetEnvName(triple, "ENV_"+suffix))
	if err != nil {
		return nil, err
	}
	return append(out, fromEnv...), nil
}

func (c *Config) splitEnv(name string) ([]string, error) {
	raw := c.lookup(name)
	if raw == "" {
		return nil, nil
	}
	fields, err := shell.Fields(raw, c.lookup)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithKind(issue.KindConfig).
			WithOperation("read environment").
			WithResource(name).
			WithSuggestion("Separate entries with spaces and balance any quotes").
			Wrap(err).
			BuildError()
	}
	return fields, nil
}

// ContainerOpts splits container.opts (CROSS_CONTAINER_OPTS) into arguments.
func (c *Config) ContainerOpts() ([]string, error) {
	if strings.TrimSpace(c.Container.Opts) == "" {
		return nil, nil
	}
	fields, err := shell.Fields(c.Container.Opts, c.lookup)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithKind(issue.KindConfig).
			WithOperation("parse container options").
			WithResource(EnvPrefix + "_CONTAINER_OPTS").
			WithSuggestion("Balance any quotes in the option string").
			Wrap(err).
			BuildError()
	}
	return fields, nil
}
