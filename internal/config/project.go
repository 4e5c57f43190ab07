// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const (
	// ManifestFileName is the cargo package and workspace manifest.
	ManifestFileName = "Cargo.toml"
	// LockFileName is the cargo lock file kept beside the workspace manifest.
	LockFileName = "Cargo.lock"
	// CrossFileName is the project configuration file.
	CrossFileName = "Cross.toml"
)

// ErrNoProject is returned by FindProject when no manifest encloses the directory.
var ErrNoProject = errors.New("could not find " + ManifestFileName + " in the current directory or any parent")

type (
	// Project is a cargo package, widened to its workspace when it has one.
	Project struct {
		// Root is the directory of the workspace manifest, or of the package
		// manifest when there is no enclosing workspace.
		Root string `yaml:"root"`
		// Manifest is the nearest Cargo.toml to the starting directory.
		Manifest string `yaml:"manifest"`
		// HasLock reports whether Root holds a Cargo.lock.
		HasLock bool `yaml:"lock"`

		packageMeta   map[string]any
		workspaceMeta map[string]any
	}

	// manifest is the part of Cargo.toml the loader reads.
	manifest struct {
		Package *struct {
			Metadata map[string]any `toml:"metadata"`
		} `toml:"package"`
		Workspace *struct {
			Metadata map[string]any `toml:"metadata"`
		} `toml:"workspace"`
	}
)

// FindProject walks up from dir to the nearest Cargo.toml, then keeps walking
// to find an enclosing workspace manifest.
func FindProject(dir string) (*Project, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve project directory: %w", err)
	}

	manifestPath, ok := findUp(dir, ManifestFileName)
	if !ok {
		return nil, ErrNoProject
	}
	m, err := readManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	p := &Project{
		Root:     filepath.Dir(manifestPath),
		Manifest: manifestPath,
	}
	if m.Package != nil {
		p.packageMeta = crossTable(m.Package.Metadata)
	}

	if m.Workspace != nil {
		p.workspaceMeta = crossTable(m.Workspace.Metadata)
	} else if ws, meta, err := enclosingWorkspace(p.Root); err != nil {
		return nil, err
	} else if ws != "" {
		p.Root = ws
		p.workspaceMeta = meta
	}

	if _, err := os.Stat(filepath.Join(p.Root, LockFileName)); err == nil {
		p.HasLock = true
	}
	return p, nil
}

// enclosingWorkspace returns the directory and cross metadata of the nearest
// workspace manifest strictly above root, or "" when there is none.
func enclosingWorkspace(root string) (string, map[string]any, error) {
	dir := filepath.Dir(root)
	if dir == root {
		return "", nil, nil
	}
	for {
		candidate, found := findUp(dir, ManifestFileName)
		if !found {
			return "", nil, nil
		}
		m, err := readManifest(candidate)
		if err != nil {
			return "", nil, err
		}
		if m.Workspace != nil {
			return filepath.Dir(candidate), crossTable(m.Workspace.Metadata), nil
		}
		here := filepath.Dir(candidate)
		parent := filepath.Dir(here)
		if parent == here {
			return "", nil, nil
		}
		dir = parent
	}
}

// findUp returns the first dir/name found walking from dir to the filesystem root.
func findUp(dir, name string) (string, bool) {
	for {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func readManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, tomlError(path, err)
	}
	return &m, nil
}

// crossTable returns metadata["cross"] when it is a table.
func crossTable(metadata map[string]any) map[string]any {
	if t, ok := metadata["cross"].(map[string]any); ok {
		return t
	}
	return nil
}

// tomlError adds the file position of a go-toml decode error.
func tomlError(path string, err error) error {
	var derr *toml.DecodeError
	if errors.As(err, &derr) {
		row, col := derr.Position()
		return fmt.Errorf("%s:%d:%d: %s", path, row, col, derr.Error())
	}
	return fmt.Errorf("%s: %w", path, err)
}
