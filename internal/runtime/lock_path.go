// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// lockFilePath returns the lock file for an output directory, under the
// per-user runtime directory when one is usable.
func lockFilePath(dir string) string {
	return lockFilePathWith(xdg.RuntimeFile, dir)
}

// lockFilePathWith resolves the lock file with the given runtime-file lookup,
// falling back to the temporary directory.
func lockFilePathWith(runtimeFile func(string) (string, error), dir string) string {
	name := lockFileName(dir)
	path, err := runtimeFile(filepath.Join("crossrun", name))
	if err == nil {
		return path
	}
	slog.Debug("runtime directory unavailable, locking in the temporary directory", "error", err)
	return filepath.Join(os.TempDir(), "crossrun-"+name)
}

// lockFileName derives a stable file name from the cleaned absolute path of dir.
func lockFileName(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	sum := sha256.Sum256([]byte(filepath.Clean(dir)))
	return hex.EncodeToString(sum[:8]) + ".lock"
}
