// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"strings"
	"testing"

	"github.com/invowk/envprov/internal/config"
	"github.com/invowk/envprov/pkg/types"
)

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v1.2.3"
		Commit = "abc1234"
		BuildDate = "2026-06-15T10:00:00Z"

		got := getVersionString()
		want := "v1.2.3 (commit: abc1234, built: 2026-06-15T10:00:00Z)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		if got := getVersionString(); got != "dev (built from source)" {
			t.Errorf("getVersionString() = %q", got)
		}
	})
}

func TestExitCodeOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want types.ExitCode
	}{
		{"plain error", errors.New("boom"), types.ExitFailure},
		{"usage", &ExitError{Code: types.ExitUsage, Err: errors.New("bad flag")}, types.ExitUsage},
		{"wrapped", errors.Join(errors.New("ctx"), &ExitError{Code: types.ExitUsage}), types.ExitUsage},
		{"usageError", usageError(errors.New("bad recipe")), types.ExitUsage},
		{"failureError", failureError(errors.New("step failed")), types.ExitFailure},
		{"outermost wins", usageError(failureError(errors.New("x"))), types.ExitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCodeOf(tt.err); got != tt.want {
				t.Errorf("exitCodeOf() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitError_Message(t *testing.T) {
	t.Parallel()

	if got := (&ExitError{Code: types.ExitUsage}).Error(); got != "exit status 2" {
		t.Errorf("Error() without cause = %q", got)
	}
	cause := errors.New("clone failed")
	err := failureError(cause)
	if err.Error() != "clone failed" || !errors.Is(err, cause) {
		t.Errorf("failureError() = %v, does not carry its cause", err)
	}
}

func TestVersionCommand(t *testing.T) {
	h := newHarness(t)
	if err := h.run(t, "version"); err != nil {
		t.Fatalf("version = %v", err)
	}
	if !strings.HasPrefix(h.stdout.String(), "envprov ") {
		t.Errorf("version output = %q", h.stdout.String())
	}
}

func TestRoot_BrokenConfigIsUsageError(t *testing.T) {
	h := newHarness(t)
	h.app.Config = stubConfig{err: &config.InvalidConfigError{FieldErrors: []error{&config.InvalidPackageManagerError{Value: "pip"}}}}

	err := h.run(t, "plan")
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("plan = %v, want ErrInvalidConfig", err)
	}
	if code := exitCodeOf(err); code != types.ExitUsage {
		t.Errorf("exit code = %d, want %d", code, types.ExitUsage)
	}
}

func TestRoot_ConfigOptionalCommandsFallBackToDefaults(t *testing.T) {
	h := newHarness(t)
	h.app.Config = stubConfig{err: &config.InvalidConfigError{FieldErrors: []error{&config.InvalidPackageManagerError{Value: "pip"}}}}

	if err := h.run(t, "config", "dump"); err != nil {
		t.Fatalf("config dump = %v", err)
	}
	if !strings.Contains(h.stderr.String(), "invalid package manager") {
		t.Errorf("no warning on stderr: %q", h.stderr.String())
	}
	if !strings.Contains(h.stdout.String(), `package_manager: "conda"`) {
		t.Errorf("defaults not dumped:\n%s", h.stdout.String())
	}
}

func TestRoot_FlagsOverrideConfig(t *testing.T) {
	h := newHarness(t)
	h.cfg.UI.Verbose = true
	h.cfg.UI.LogFormat = config.LogFormatJSON

	if err := h.run(t, "version", "--log-format", "text"); err != nil {
		t.Fatalf("version = %v", err)
	}
	if !h.app.opts.verbose {
		t.Error("ui.verbose from config was not applied")
	}
	if h.app.opts.logFormat != "text" {
		t.Errorf("log format = %q, want the flag value", h.app.opts.logFormat)
	}
}

func TestRoot_InvalidLogFormatFlag(t *testing.T) {
	h := newHarness(t)

	err := h.run(t, "version", "--log-format", "xml")
	if !errors.Is(err, config.ErrInvalidLogFormat) {
		t.Fatalf("version = %v, want ErrInvalidLogFormat", err)
	}
	if code := exitCodeOf(err); code != types.ExitUsage {
		t.Errorf("exit code = %d, want %d", code, types.ExitUsage)
	}
}
