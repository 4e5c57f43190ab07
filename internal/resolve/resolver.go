// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/crossrun/crossrun/internal/config"
	"github.com/crossrun/crossrun/internal/execspec"
	"github.com/crossrun/crossrun/internal/invocation"
	"github.com/crossrun/crossrun/internal/issue"
	"github.com/crossrun/crossrun/internal/target"
)

const (
	// DefaultChannel is the toolchain used when no +channel is given.
	DefaultChannel = "stable"

	// sequentialTestVar makes the test harness run tests one at a time.
	sequentialTestVar = "RUST_TEST_THREADS"

	// containerPath is the search path of the execution images.
	containerPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

	openSSLPrefix = "/openssl"
)

var (
	// ambientNames are forwarded from the host when set.
	ambientNames = []string{
		"TERM", "COLORTERM", "NO_COLOR",
		"http_proxy", "https_proxy", "no_proxy", "HTTP_PROXY", "HTTPS_PROXY", "NO_PROXY",
		"SOURCE_DATE_EPOCH",
	}

	// ambientPrefixes are forwarded from the host when set.
	ambientPrefixes = []string{"CARGO_", "RUST"}

	// hostOnlyNames hold host paths or host binaries and are not forwarded
	// with the ambient prefixes. env.passthrough can still name them.
	hostOnlyNames = []string{
		"CARGO_HOME", "CARGO_TARGET_DIR", "CARGO_BUILD_TARGET_DIR", "CARGO_INSTALL_ROOT",
		"CARGO_BUILD_RUSTC", "CARGO_BUILD_RUSTC_WRAPPER", "CARGO_BUILD_RUSTC_WORKSPACE_WRAPPER", "CARGO_BUILD_RUSTDOC",
		"RUSTC", "RUSTDOC", "RUSTC_WRAPPER", "RUSTC_WORKSPACE_WRAPPER",
	}
)

// Resolver computes the mounts and environment of a containerized build.
// Host access goes through the function fields so tests can substitute them.
type Resolver struct {
	Config *config.Config
	// Host is the host triple, used to find the matching rustup toolchain.
	Host     string
	Environ  func() []string
	Getwd    func() (string, error)
	HomeDir  func() (string, error)
	MkdirAll func(string, os.FileMode) error
	Probe    Probe
}

// New returns a Resolver wired to the real host.
func New(cfg *config.Config, host string) *Resolver {
	return &Resolver{
		Config:   cfg,
		Host:     host,
		Environ:  os.Environ,
		Getwd:    os.Getwd,
		HomeDir:  os.UserHomeDir,
		MkdirAll: os.MkdirAll,
		Probe:    NewProbe(),
	}
}

// Resolve returns the mounts, environment, working directory and image for
// running inv on spec. It fails before any I/O when the target cannot execute
// what the subcommand needs.
func (r *Resolver) Resolve(ctx context.Context, inv *invocation.Invocation, spec target.Spec) (*execspec.Resolution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.checkRunnable(inv, spec); err != nil {
		return nil, err
	}

	cfg := r.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	project := cfg.Project
	if project == nil {
		return nil, issue.NewErrorContext().
			WithKind(issue.KindConfig).
			WithOperation("locate project").
			WithSuggestion("Run crossrun from inside a cargo package or workspace").
			Wrap(config.ErrNoProject).
			BuildError()
	}
	if !project.HasLock {
		slog.Warn("no Cargo.lock found; the project is mounted read-only, so one will not be written",
			"root", project.Root)
	}

	hostEnv := environMap(r.Environ())

	cwd, err := r.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	home, err := r.HomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	cargoHome := absFrom(cwd, hostEnv["CARGO_HOME"], filepath.Join(home, ".cargo"))
	targetDir := absFrom(cwd, hostEnv["CARGO_TARGET_DIR"], filepath.Join(project.Root, "target"))
	for _, dir := range []string{cargoHome, targetDir} {
		if err := r.MkdirAll(dir, 0o755); err != nil {
			return nil, issue.WrapWithContext(err, issue.KindConfig, "create directory", dir)
		}
	}

	mounts := []execspec.MountSpec{
		{HostPath: project.Root, ContainerPath: execspec.ProjectPath, Access: execspec.AccessReadOnly},
		{HostPath: cargoHome, ContainerPath: execspec.CargoHomePath, Access: execspec.AccessReadWrite},
		{HostPath: targetDir, ContainerPath: execspec.TargetDirPath, Access: execspec.AccessReadWrite},
	}

	toolchain := r.toolchainDir(hostEnv, home, inv.Channel)
	if toolchain != "" {
		mounts = append(mounts, execspec.MountSpec{
			HostPath: toolchain, ContainerPath: execspec.ToolchainPath, Access: execspec.AccessReadOnly,
		})
	}

	env := execspec.NewEnvMap()
	forwardAmbient(env, hostEnv)

	passthrough, err := cfg.Passthrough(spec.Triple)
	if err != nil {
		return nil, err
	}
	for _, entry := range passthrough {
		name, value, literal := strings.Cut(entry, "=")
		if literal {
			env.Set(name, value)
			continue
		}
		if value, ok := hostEnv[name]; ok {
			env.Set(name, value)
		}
	}

	volumes, err := cfg.Volumes(spec.Triple)
	if err != nil {
		return nil, err
	}
	for _, name := range volumes {
		hostPath, ok := hostEnv[name]
		if !ok || hostPath == "" {
			slog.Warn("volume variable is not set, skipping", "name", name)
			continue
		}
		if !filepath.IsAbs(hostPath) {
			return nil, issue.NewErrorContext().
				WithKind(issue.KindConfig).
				WithOperation("mount volume").
				WithResource(name).
				WithSuggestion("Set " + name + " to an absolute path").
				Wrap(fmt.Errorf("%s=%q is not an absolute path", name, hostPath)).
				BuildError()
		}
		mounts = append(mounts, execspec.MountSpec{
			HostPath: hostPath, ContainerPath: filepath.ToSlash(hostPath), Access: execspec.AccessReadWrite,
		})
		env.Set(name, filepath.ToSlash(hostPath))
	}

	setTarget(env, "CARGO_HOME", execspec.CargoHomePath)
	setTarget(env, "CARGO_TARGET_DIR", execspec.TargetDirPath)
	if user := hostEnv["USER"]; user != "" {
		setTarget(env, "USER", user)
	}
	if toolchain != "" {
		setTarget(env, "PATH", path.Join(execspec.ToolchainPath, "bin")+":"+containerPath)
	}
	if spec.OpenSSL {
		setTarget(env, "OPENSSL_DIR", openSSLPrefix)
		setTarget(env, "OPENSSL_INCLUDE_DIR", openSSLPrefix+"/include")
		setTarget(env, "OPENSSL_LIB_DIR", openSSLPrefix+"/lib")
		setTarget(env, "PKG_CONFIG_ALLOW_CROSS", "1")
	}
	if inv.Subcommand.RunsTargetCode() && spec.RequiresEmulation {
		setTarget(env, sequentialTestVar, "1")
	}

	if err := execspec.ValidateMounts(mounts); err != nil {
		return nil, err
	}

	if override := cfg.Image(spec.Triple); override != "" {
		slog.Debug("using configured image", "target", spec.Triple, "image", override)
		spec = spec.WithImage(override)
	}
	slog.Debug("resolved container environment", "target", spec.Triple, "names", env.Names())

	return &execspec.Resolution{
		Mounts:  mounts,
		Env:     env,
		WorkDir: workDir(project.Root, cwd),
		Image:   spec.Image,
		Project: project.Root,
	}, nil
}

// checkRunnable rejects test and run on targets whose binaries cannot execute.
// Forwarding --no-run only compiles the test binaries.
func (r *Resolver) checkRunnable(inv *invocation.Invocation, spec target.Spec) error {
	if !inv.Subcommand.RunsTargetCode() || inv.HasArg("--no-run") {
		return nil
	}
	if !spec.CanRunBinaries() {
		reason := "binaries for this target cannot be executed by the build image"
		if !spec.Std {
			reason = "the target has no standard library"
		}
		return issue.NewErrorContext().
			WithOperation(inv.Subcommand.String()).
			WithResource(spec.Triple).
			WithSuggestion("Use 'build' or 'check' for this target").
			WithSuggestion("Pass --no-run to compile tests without running them").
			Wrap(&target.UnsupportedTargetError{Triple: spec.Triple, Reason: reason}).
			BuildError()
	}
	if !spec.RequiresEmulation || r.Probe == nil {
		return nil
	}

	ok, err := r.Probe.Available(spec.QemuArch)
	if err != nil || !ok {
		return issue.NewErrorContext().
			WithOperation(inv.Subcommand.String()).
			WithResource(spec.Triple).
			WithSuggestion("Register qemu user-mode handlers, e.g. 'docker run --privileged --rm tonistiigi/binfmt --install all'").
			WithSuggestion("Use 'build' to cross-compile without running").
			Wrap(&EmulationUnavailableError{Triple: spec.Triple, Arch: spec.QemuArch, Cause: err}).
			BuildError()
	}
	return nil
}

// toolchainDir returns the host rustup toolchain for channel when the host can
// share binaries with the Linux execution images.
func (r *Resolver) toolchainDir(hostEnv map[string]string, home, channel string) string {
	if !strings.Contains(r.Host, "-linux-") {
		return ""
	}
	if channel == "" {
		channel = DefaultChannel
	}
	rustupHome := hostEnv["RUSTUP_HOME"]
	if rustupHome == "" {
		rustupHome = filepath.Join(home, ".rustup")
	}
	dir := filepath.Join(rustupHome, "toolchains", channel+"-"+r.Host)
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir
	}
	slog.Debug("no host toolchain to mount", "dir", dir)
	return ""
}

// forwardAmbient copies the allow-listed host variables in sorted order.
func forwardAmbient(env *execspec.EnvMap, hostEnv map[string]string) {
	names := make([]string, 0, len(hostEnv))
	for name := range hostEnv {
		switch {
		case isAmbient(name):
			names = append(names, name)
		case slices.Contains(hostOnlyNames, name):
			slog.Debug("not forwarding host path variable", "name", name, "value", hostEnv[name])
		}
	}
	slices.Sort(names)
	for _, name := range names {
		env.Set(name, hostEnv[name])
	}
}

func isAmbient(name string) bool {
	if slices.Contains(hostOnlyNames, name) || strings.HasPrefix(name, "RUSTUP_") {
		return false
	}
	if slices.Contains(ambientNames, name) {
		return true
	}
	for _, prefix := range ambientPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// setTarget sets a container-owned value, logging when it replaces a
// forwarded host value.
func setTarget(env *execspec.EnvMap, name, value string) {
	prev, replaced := env.Set(name, value)
	switch {
	case replaced && prev != value:
		slog.Warn("container value overrides host variable", "name", name, "host", prev, "container", value)
	case replaced:
		slog.Debug("host variable matches container value", "name", name)
	}
}

func environMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		if name, value, ok := strings.Cut(kv, "="); ok && name != "" {
			m[name] = value
		}
	}
	return m
}

// absFrom returns value made absolute against base, or fallback when value is empty.
func absFrom(base, value, fallback string) string {
	if value == "" {
		return fallback
	}
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}
	return filepath.Join(base, value)
}

// workDir maps cwd into the project mount, falling back to the project root
// when cwd is outside it.
func workDir(root, cwd string) string {
	rel, err := filepath.Rel(root, cwd)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return execspec.ProjectPath
	}
	return path.Join(execspec.ProjectPath, filepath.ToSlash(rel))
}
