// SPDX-License-Identifier: MPL-2.0

//go:build linux

package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// lockPollInterval is how often a blocked invocation retries the lock.
const lockPollInterval = 200 * time.Millisecond

// errFlockUnavailable is defined for cross-platform compatibility with
// run_lock_other.go. On Linux, acquireRunLock never returns it.
var errFlockUnavailable = errors.New("flock not available on this platform")

// runLock holds an exclusive flock on the lock file of one output directory.
// The zero-byte lock file is harmless if orphaned: the kernel releases the
// flock when the fd is closed, including on a crash.
type runLock struct {
	file *os.File
}

// acquireRunLock locks the output directory dir, waiting while another
// invocation holds it.
func acquireRunLock(ctx context.Context, dir string) (*runLock, error) {
	return acquireRunLockAt(ctx, lockFilePath(dir))
}

// acquireRunLockAt opens (or creates) the lock file and takes an exclusive
// flock, retrying until it succeeds or ctx ends. Waiting is logged once.
func acquireRunLockAt(ctx context.Context, lockPath string) (*runLock, error) {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", lockPath, err)
	}

	var ticker *time.Ticker
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &runLock{file: f}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			f.Close()
			return nil, fmt.Errorf("flock %s: %w", lockPath, err)
		}

		if ticker == nil {
			slog.Warn("waiting for another crossrun invocation using the same output directory", "lock", lockPath)
			ticker = time.NewTicker(lockPollInterval)
			defer ticker.Stop()
		}
		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Release unlocks the flock and closes the file descriptor. It is safe to call
// multiple times; subsequent calls are no-ops.
func (l *runLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		slog.Debug("flock unlock failed", "error", err)
	}
	if err := l.file.Close(); err != nil {
		slog.Debug("lock file close failed", "error", err)
	}
	l.file = nil
}
