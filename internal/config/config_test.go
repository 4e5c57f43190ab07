// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/crossrun/crossrun/internal/issue"
	"github.com/crossrun/crossrun/internal/testutil"
)

const aarch64 = "aarch64-unknown-linux-gnu"

func noEnv(string) string { return "" }

func loadIn(t *testing.T, dir string, getenv func(string) string) (*Config, error) {
	t.Helper()
	if getenv == nil {
		getenv = noEnv
	}
	return Load(context.Background(), LoadOptions{Dir: dir, Getenv: getenv})
}

func TestLoad_DefaultsOutsideProject(t *testing.T) {
	t.Parallel()

	cfg, err := loadIn(t, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Project != nil {
		t.Errorf("Project = %+v, want nil outside a cargo project", cfg.Project)
	}
	if !cfg.Build.Lock {
		t.Error("build.lock should default to true")
	}
	if len(cfg.Sources) != 0 {
		t.Errorf("Sources = %v, want none", cfg.Sources)
	}
}

func TestLoad_MergePrecedence(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(root, "Cargo.toml"), `
[workspace]
members = ["app"]

[workspace.metadata.cross.build]
default-target = "armv7-unknown-linux-gnueabihf"
lock = true
`)
	app := testutil.NewCargoPackage(t, root, "app", `
[package.metadata.cross.target.aarch64-unknown-linux-gnu]
image = "example.com/from-cargo:1"
`)
	testutil.MustWriteFile(t, filepath.Join(root, "Cross.toml"), `
[build]
lock = false

[target.aarch64-unknown-linux-gnu.env]
passthrough = ["FOO"]
`)

	cfg, err := loadIn(t, app, nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Project == nil || cfg.Project.Root != root {
		t.Fatalf("Project = %+v, want root %s", cfg.Project, root)
	}
	if len(cfg.Sources) != 3 {
		t.Errorf("Sources = %v, want workspace, package and Cross.toml", cfg.Sources)
	}
	if cfg.Build.DefaultTarget != "armv7-unknown-linux-gnueabihf" {
		t.Errorf("DefaultTarget = %q, want value kept from workspace metadata", cfg.Build.DefaultTarget)
	}
	if cfg.Build.Lock {
		t.Error("Cross.toml build.lock should override Cargo.toml metadata")
	}
	if got := cfg.Image(aarch64); got != "" {
		t.Errorf("Image() = %q, want target table replaced by Cross.toml", got)
	}
	if got := cfg.Targets[aarch64].Env.Passthrough; !slices.Equal(got, []string{"FOO"}) {
		t.Errorf("Passthrough = %q", got)
	}
}

func TestLoad_EnvironmentOverridesFiles(t *testing.T) {
	root := t.TempDir()
	testutil.NewCargoPackage(t, root, "app", "")
	testutil.MustWriteFile(t, filepath.Join(root, "app", "Cross.toml"), `
[build]
lock = false
default-target = "i686-unknown-linux-gnu"

[container]
engine = "docker"
`)
	t.Setenv("CROSS_BUILD_LOCK", "true")
	t.Setenv("CROSS_CONTAINER_ENGINE", "podman")
	t.Setenv("CROSS_BUILD_DEFAULT_TARGET", "")
	t.Setenv("CROSS_DEBUG", "1")

	cfg, err := loadIn(t, filepath.Join(root, "app"), nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Build.Lock {
		t.Error("CROSS_BUILD_LOCK should override Cross.toml")
	}
	if cfg.Container.Engine != ContainerEnginePodman {
		t.Errorf("Engine = %q, want podman", cfg.Container.Engine)
	}
	if cfg.Build.DefaultTarget != "i686-unknown-linux-gnu" {
		t.Errorf("empty variable should not override the file, got %q", cfg.Build.DefaultTarget)
	}
	if !cfg.Debug {
		t.Error("CROSS_DEBUG=1 should enable debug")
	}
}

func TestLoad_InvalidFiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cross    string
		wantText string
	}{
		{name: "schema type mismatch", cross: "[build]\nlock = \"yes\"\n", wantText: "build.lock"},
		{name: "unknown engine", cross: "[container]\nengine = \"lxc\"\n", wantText: "container.engine"},
		{name: "toml syntax", cross: "[build\n", wantText: "Cross.toml:1"},
		{name: "empty passthrough name", cross: "[build.env]\npassthrough = [\"=x\"]\n", wantText: "build.env.passthrough"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			testutil.NewCargoPackage(t, root, "app", "")
			testutil.MustWriteFile(t, filepath.Join(root, "app", "Cross.toml"), tt.cross)

			_, err := loadIn(t, filepath.Join(root, "app"), nil)
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if issue.KindOf(err) != issue.KindConfig {
				t.Errorf("KindOf() = %v, want ConfigError", issue.KindOf(err))
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("error %T is not actionable", err)
			}
			if !strings.Contains(ae.Format(true), tt.wantText) {
				t.Errorf("error %q does not mention %q", ae.Format(true), tt.wantText)
			}
		})
	}
}

func TestLoad_UnusedKeys(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.NewCargoPackage(t, root, "app", "")
	testutil.MustWriteFile(t, filepath.Join(root, "app", "Cross.toml"), `
frobnicate = 1

[build]
xargo = true
build-std = true

[target.x86_64-unknown-linux-gnu]
runner = "qemu-user"
build-std = false

[target.x86_64-unknown-linux-gnu.env]
extra = ["A"]
`)

	cfg, err := loadIn(t, filepath.Join(root, "app"), nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := []string{
		"build.xargo",
		"frobnicate",
		"target.x86_64-unknown-linux-gnu.env.extra",
		"target.x86_64-unknown-linux-gnu.runner",
	}
	if !slices.Equal(cfg.Unused, want) {
		t.Errorf("Unused = %q, want %q", cfg.Unused, want)
	}
}

func TestConfig_BuildStd(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.NewCargoPackage(t, root, "fw", "")
	testutil.MustWriteFile(t, filepath.Join(root, "fw", "Cross.toml"), `
[build]
build-std = true

[target.x86_64-unknown-linux-gnu]
build-std = false

[target."thumbv8m.main-none-eabihf"]
image = "example.com/thumb:latest"
`)

	tests := []struct {
		name   string
		triple string
		env    map[string]string
		want   bool
	}{
		{"build level applies", "thumbv8m.main-none-eabihf", nil, true},
		{"target level wins", "x86_64-unknown-linux-gnu", nil, false},
		{
			name:   "target variable wins",
			triple: "x86_64-unknown-linux-gnu",
			env:    map[string]string{"CROSS_TARGET_X86_64_UNKNOWN_LINUX_GNU_BUILD_STD": "true"},
			want:   true,
		},
		{
			name:   "unparsable variable is ignored",
			triple: aarch64,
			env:    map[string]string{"CROSS_TARGET_AARCH64_UNKNOWN_LINUX_GNU_BUILD_STD": "maybe"},
			want:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := loadIn(t, filepath.Join(root, "fw"), testutil.MapEnv(tt.env))
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if got := cfg.BuildStd(tt.triple); got != tt.want {
				t.Errorf("BuildStd(%q) = %v, want %v", tt.triple, got, tt.want)
			}
		})
	}

	if DefaultConfig().BuildStd(aarch64) {
		t.Error("build-std must be off by default")
	}
}

func TestLoad_DottedTriple(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.NewCargoPackage(t, root, "fw", "")
	testutil.MustWriteFile(t, filepath.Join(root, "fw", "Cross.toml"), `
[target."thumbv8m.main-none-eabihf"]
image = "example.com/thumb:latest"
`)

	cfg, err := loadIn(t, filepath.Join(root, "fw"), nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := cfg.Image("thumbv8m.main-none-eabihf"); got != "example.com/thumb:latest" {
		t.Errorf("Image() = %q", got)
	}
}

func TestLoad_ExplicitConfigPath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	custom := filepath.Join(root, "ci", "cross-ci.toml")
	testutil.MustWriteFile(t, custom, "[build]\ndefault-target = \"s390x-unknown-linux-gnu\"\n")

	getenv := testutil.MapEnv(map[string]string{ConfigPathEnv: custom})
	cfg, err := loadIn(t, root, getenv)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Build.DefaultTarget != "s390x-unknown-linux-gnu" {
		t.Errorf("DefaultTarget = %q", cfg.Build.DefaultTarget)
	}

	missing := testutil.MapEnv(map[string]string{ConfigPathEnv: filepath.Join(root, "nope.toml")})
	if _, err := loadIn(t, root, missing); issue.KindOf(err) != issue.KindConfig {
		t.Errorf("missing explicit config: error %v, want ConfigError", err)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Load(ctx, LoadOptions{Dir: t.TempDir(), Getenv: noEnv}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestConfig_EnvLists(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Build.Env.Passthrough = []string{"BUILD_A"}
	cfg.Build.Env.Volumes = []string{"DATA_DIR"}
	cfg.Targets[aarch64] = TargetConfig{Env: EnvConfig{Passthrough: []string{"TARGET_B"}}}
	cfg.getenv = testutil.MapEnv(map[string]string{
		"CROSS_BUILD_ENV_PASSTHROUGH":                        `ENV_C GREETING="hello world"`,
		"CROSS_TARGET_AARCH64_UNKNOWN_LINUX_GNU_ENV_VOLUMES": "SDK_DIR",
		"CROSS_TARGET_AARCH64_UNKNOWN_LINUX_GNU_IMAGE":       "example.com/env:2",
	})

	pass, err := cfg.Passthrough(aarch64)
	if err != nil {
		t.Fatalf("Passthrough() error: %v", err)
	}
	if want := []string{"BUILD_A", "ENV_C", "GREETING=hello world", "TARGET_B"}; !slices.Equal(pass, want) {
		t.Errorf("Passthrough() = %q, want %q", pass, want)
	}

	vols, err := cfg.Volumes(aarch64)
	if err != nil {
		t.Fatalf("Volumes() error: %v", err)
	}
	if want := []string{"DATA_DIR", "SDK_DIR"}; !slices.Equal(vols, want) {
		t.Errorf("Volumes() = %q, want %q", vols, want)
	}

	if got := cfg.Image(aarch64); got != "example.com/env:2" {
		t.Errorf("Image() = %q, want environment override", got)
	}
}

func TestConfig_ContainerOpts(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.getenv = noEnv
	cfg.Container.Opts = `--network host -e "A=b c"`

	got, err := cfg.ContainerOpts()
	if err != nil {
		t.Fatalf("ContainerOpts() error: %v", err)
	}
	if want := []string{"--network", "host", "-e", "A=b c"}; !slices.Equal(got, want) {
		t.Errorf("ContainerOpts() = %q, want %q", got, want)
	}

	cfg.Container.Opts = `--label "unterminated`
	if _, err := cfg.ContainerOpts(); issue.KindOf(err) != issue.KindConfig {
		t.Errorf("unbalanced quotes: error %v, want ConfigError", err)
	}
}

func TestTargetEnvName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		triple, suffix, want string
	}{
		{"aarch64-unknown-linux-gnu", "IMAGE", "CROSS_TARGET_AARCH64_UNKNOWN_LINUX_GNU_IMAGE"},
		{"thumbv8m.main-none-eabihf", "ENV_VOLUMES", "CROSS_TARGET_THUMBV8M_MAIN_NONE_EABIHF_ENV_VOLUMES"},
	}
	for _, tt := range tests {
		if got := TargetEnvName(tt.triple, tt.suffix); got != tt.want {
			t.Errorf("TargetEnvName(%q, %q) = %q, want %q", tt.triple, tt.suffix, got, tt.want)
		}
	}
}

func TestMergeLayers(t *testing.T) {
	t.Parallel()

	base := map[string]any{
		"build": map[string]any{"lock": true, "default-target": "a"},
		"target": map[string]any{
			"x": map[string]any{"image": "one"},
			"y": map[string]any{"image": "two"},
		},
	}
	over := map[string]any{
		"build":  map[string]any{"lock": false},
		"target": map[string]any{"x": map[string]any{"env": map[string]any{}}},
		"debug":  true,
	}

	got := mergeLayers(base, over)
	build := got["build"].(map[string]any)
	if build["lock"] != false || build["default-target"] != "a" {
		t.Errorf("build = %v", build)
	}
	targets := got["target"].(map[string]any)
	if _, ok := targets["x"].(map[string]any)["image"]; ok {
		t.Error("target x should be replaced wholesale")
	}
	if targets["y"].(map[string]any)["image"] != "two" {
		t.Error("target y should be kept")
	}
	if base["build"].(map[string]any)["lock"] != true {
		t.Error("mergeLayers mutated its input")
	}
}
