// SPDX-License-Identifier: MPL-2.0

package execspec

type (
	// Resolution is the host-derived part of an execution: what to mount,
	// which variables to set and where to start.
	Resolution struct {
		Mounts  []MountSpec
		Env     *EnvMap
		WorkDir string
		// Image is the target image after configuration overrides.
		Image string
		// Project is the host path of the project root.
		Project string
	}

	// ExecutionSpec fully describes one isolated build execution.
	ExecutionSpec struct {
		Image      string      `yaml:"image"`
		Mounts     []MountSpec `yaml:"mounts"`
		Env        *EnvMap     `yaml:"env"`
		WorkDir    string      `yaml:"workdir"`
		Entrypoint []string    `yaml:"entrypoint"`
		// User is "uid:gid" of the invoking user, empty to keep the image default.
		User string `yaml:"user,omitempty"`
		// Platform is the OCI platform of the image, empty for the engine default.
		Platform string `yaml:"platform,omitempty"`
	}

	// BuildOptions carries host facts that Build may not look up itself.
	BuildOptions struct {
		User     string
		Platform string
		// Tool is the build tool binary, "cargo" when empty.
		Tool string
		// BuildStd adds -Zbuild-std so the standard library is compiled for
		// the target instead of taken from a prebuilt sysroot.
		BuildStd bool
	}
)
