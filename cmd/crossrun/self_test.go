// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/crossrun/crossrun/internal/target"
	"github.com/crossrun/crossrun/internal/testutil"
	"github.com/crossrun/crossrun/pkg/types"

	"gopkg.in/yaml.v3"
)

func TestCapabilities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec target.Spec
		want []string
	}{
		{"native", target.Spec{NativeTest: true, Std: true}, []string{"test/run"}},
		{"emulated", target.Spec{NativeTest: true, RequiresEmulation: true, QemuArch: "aarch64", OpenSSL: true, Std: true}, []string{"test/run via qemu-aarch64", "openssl"}},
		{"no std", target.Spec{}, []string{"build only", "no_std"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := capabilities(tt.spec); !slices.Equal(got, tt.want) {
				t.Errorf("capabilities() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTargetsMarkdown(t *testing.T) {
	t.Parallel()

	md := targetsMarkdown([]target.Spec{
		{Triple: "aarch64-unknown-linux-gnu", NativeTest: true, RequiresEmulation: true, QemuArch: "aarch64", OpenSSL: true, Std: true},
		{Triple: "thumbv7em-none-eabi"},
	})
	lines := strings.Split(strings.TrimSpace(md), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), md)
	}
	if lines[2] != "| `aarch64-unknown-linux-gnu` | ✓ | qemu-aarch64 | ✓ | ✓ |" {
		t.Errorf("row = %q", lines[2])
	}
	if lines[3] != "| `thumbv7em-none-eabi` |  |  |  |  |" {
		t.Errorf("row = %q", lines[3])
	}
}

func TestSelf_Targets(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	app := testApp(t, t.TempDir(), &stdout, &bytes.Buffer{})
	if err := app.runSelf(t.Context(), []string{"targets"}); err != nil {
		t.Fatalf("self targets: %v", err)
	}
	for _, triple := range target.Default().Triples() {
		if !strings.Contains(stdout.String(), triple) {
			t.Errorf("output missing %s", triple)
		}
	}
}

func TestSelf_Version(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	app := testApp(t, t.TempDir(), &stdout, &bytes.Buffer{})
	if err := app.runSelf(t.Context(), []string{"version"}); err != nil {
		t.Fatalf("self version: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "crossrun ") || !strings.Contains(stdout.String(), ":"+target.ImageVersion) {
		t.Errorf("output = %q", stdout.String())
	}
}

func TestSelf_Config(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	testutil.NewCargoPackage(t, root, "app", "")
	testutil.MustWriteFile(t, filepath.Join(root, "app", "Cross.toml"), `
[build]
default-target = "aarch64-unknown-linux-gnu"

[container]
engine = "podman"
`)

	var stdout bytes.Buffer
	app := testApp(t, filepath.Join(root, "app"), &stdout, &bytes.Buffer{})
	if err := app.runSelf(t.Context(), []string{"config"}); err != nil {
		t.Fatalf("self config: %v", err)
	}

	var got struct {
		Build struct {
			DefaultTarget string `yaml:"default-target"`
		} `yaml:"build"`
		Container struct {
			Engine string `yaml:"engine"`
		} `yaml:"container"`
		Sources []string `yaml:"sources"`
	}
	if err := yaml.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, stdout.String())
	}
	if got.Build.DefaultTarget != "aarch64-unknown-linux-gnu" || got.Container.Engine != "podman" {
		t.Errorf("config = %+v", got)
	}
	if len(got.Sources) == 0 || !strings.HasSuffix(got.Sources[len(got.Sources)-1], "Cross.toml") {
		t.Errorf("sources = %q", got.Sources)
	}
}

func TestSelf_Explain(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	app := testApp(t, t.TempDir(), &stdout, &bytes.Buffer{})
	if err := app.runSelf(t.Context(), []string{"explain", "121"}); err != nil {
		t.Fatalf("self explain: %v", err)
	}
	if !strings.Contains(stdout.String(), "Unsupported target") {
		t.Errorf("output = %q", stdout.String())
	}
}

func TestSelf_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{"unknown subcommand", []string{"frobnicate"}},
		{"unknown flag", []string{"targets", "--json"}},
		{"explain non-number", []string{"explain", "abc"}},
		{"explain foreign code", []string{"explain", "101"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			app := testApp(t, t.TempDir(), &bytes.Buffer{}, &bytes.Buffer{})
			err := app.runSelf(t.Context(), tt.args)
			if got := exitCode(err); got != int(types.ExitCodeConfig) {
				t.Errorf("exitCode = %d (%v), want %d", got, err, types.ExitCodeConfig)
			}
		})
	}
}
