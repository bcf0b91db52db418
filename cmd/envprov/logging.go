// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"

	"github.com/invowk/envprov/internal/config"
)

// setupLogger installs a charm logger as the slog default. Library packages
// log through slog only.
func setupLogger(w io.Writer, verbose bool, format config.LogFormat) *log.Logger {
	opts := log.Options{
		Level:  log.InfoLevel,
		Prefix: "envprov",
	}
	if verbose {
		opts.Level = log.DebugLevel
	}
	if format == config.LogFormatJSON {
		opts.Formatter = log.JSONFormatter
		opts.ReportTimestamp = true
	}

	logger := log.NewWithOptions(w, opts)
	slog.SetDefault(slog.New(logger))
	return logger
}
