// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"
	"log/slog"
	"strconv"

	"github.com/crossrun/crossrun/internal/config"

	"github.com/charmbracelet/log"
)

// debugEnv enables debug logging before configuration is loaded.
const debugEnv = config.EnvPrefix + "_DEBUG"

// newLogger returns the stderr logger behind slog's default handler.
// Only warnings and errors are shown unless debug is set.
func newLogger(w io.Writer, debug bool) *log.Logger {
	level := log.WarnLevel
	if debug {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix:          "crossrun",
		Level:           level,
		ReportTimestamp: debug,
	})
}

// configureLogging installs the process-wide slog handler.
func configureLogging(w io.Writer, debug bool) {
	slog.SetDefault(slog.New(newLogger(w, debug)))
}

// debugFromEnv reports whether CROSS_DEBUG holds a true value.
func debugFromEnv(getenv func(string) string) bool {
	on, err := strconv.ParseBool(getenv(debugEnv))
	return err == nil && on
}
