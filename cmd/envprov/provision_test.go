// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/invowk/envprov/internal/issue"
	"github.com/invowk/envprov/internal/preflight"
	"github.com/invowk/envprov/internal/provision"
	"github.com/invowk/envprov/pkg/types"
)

// Not parallel: the root command installs the process-wide slog default.

func TestProvisionCommand_DryRun(t *testing.T) {
	h := newHarness(t)

	if err := h.run(t, "provision", "--dry-run", "--weather-rev", "v0.2.0", "--env-name", "era5"); err != nil {
		t.Fatalf("provision --dry-run = %v", err)
	}

	h.rec.AssertCommands(t)
	out := h.stdout.String()
	for _, want := range []string{
		"conda install -n base -y conda-libmamba-solver",
		"git clone --branch v0.2.0 -- https://github.com/google/weather-tools.git /weather",
		"conda env create -n era5 -f /weather/environment.yml",
		"pip install -e /arco-era5",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dry run output missing %q:\n%s", want, out)
		}
	}
}

func TestProvisionCommand_Run(t *testing.T) {
	h := newHarness(t)

	if err := h.run(t, "provision"); err != nil {
		t.Fatalf("provision = %v\nstderr: %s", err, h.stderr.String())
	}

	h.rec.AssertCommands(t,
		"conda install -n base -y conda-libmamba-solver",
		"conda config --set solver libmamba",
		"git clone --branch main -- https://github.com/google/weather-tools.git /weather",
		"git -C /weather checkout main",
		"git -C /weather rev-parse --verify HEAD^{commit}",
		"conda env create -n weather-tools -f /weather/environment.yml",
		"conda env list --json",
		"pip install -e /weather",
		"git clone --branch main -- https://github.com/google-research/arco-era5.git /arco-era5",
		"git -C /arco-era5 checkout main",
		"git -C /arco-era5 rev-parse --verify HEAD^{commit}",
		"pip install -e /arco-era5",
	)

	receipt, err := provision.ReadReceipt(h.fs, receiptPath)
	if err != nil {
		t.Fatalf("ReadReceipt() = %v", err)
	}
	if !receipt.CreatedAt.Equal(h.clock.Now()) {
		t.Errorf("receipt created at %v, want %v", receipt.CreatedAt, h.clock.Now())
	}
	if receipt.Environment.LoginScript != loginScript || !receipt.Environment.HookAdded {
		t.Errorf("receipt environment = %+v", receipt.Environment)
	}

	script, err := afero.ReadFile(h.fs, loginScript)
	if err != nil || !strings.Contains(string(script), "source activate weather-tools") {
		t.Errorf("login script = %q, %v", script, err)
	}

	out := h.stdout.String()
	for _, want := range []string{"[1/13]", "provisioned at /opt/conda/envs/weather-tools", "receipt written to " + receiptPath} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestProvisionCommand_ReceiptFlagOverridesConfig(t *testing.T) {
	h := newHarness(t)

	if err := h.run(t, "provision", "--skip-preflight", "--receipt", ""); err != nil {
		t.Fatalf("provision = %v", err)
	}
	if ok, _ := afero.Exists(h.fs, receiptPath); ok {
		t.Error("receipt written although --receipt was empty")
	}
}

func TestProvisionCommand_UnknownRevisionAbortsBeforeFirstStep(t *testing.T) {
	h := newHarness(t)
	h.app.Resolver = stubResolver{err: &preflight.RevisionError{
		Project:    "weather-tools",
		Repository: "https://github.com/google/weather-tools.git",
		Revision:   "no-such-branch",
		Err:        errors.New("no matching ref"),
	}}

	err := h.run(t, "provision", "--weather-rev", "no-such-branch")
	if !errors.Is(err, preflight.ErrUnknownRevision) {
		t.Fatalf("provision = %v, want ErrUnknownRevision", err)
	}
	if code := exitCodeOf(err); code != types.ExitFailure {
		t.Errorf("exit code = %d, want %d", code, types.ExitFailure)
	}
	h.rec.AssertCommands(t)
}

func TestProvisionCommand_StepFailure(t *testing.T) {
	h := newHarness(t)
	h.rec.On("conda", "env", "create").Fail(1, "ResolvePackageNotFound: apache-beam")

	err := h.run(t, "provision", "--skip-preflight")
	var se *provision.StepError
	if !errors.As(err, &se) {
		t.Fatalf("provision = %v, want *provision.StepError", err)
	}
	if se.Step != provision.StepCreateEnv || se.Category != provision.CategorySpecFile {
		t.Errorf("step error = %+v", se)
	}
	if code := exitCodeOf(err); code != types.ExitFailure {
		t.Errorf("exit code = %d, want %d", code, types.ExitFailure)
	}
	for _, cmd := range h.rec.Commands() {
		if strings.HasPrefix(cmd, "pip ") {
			t.Errorf("%q ran after the environment step failed", cmd)
		}
	}
	if ok, _ := afero.Exists(h.fs, receiptPath); ok {
		t.Error("receipt written for a failed run")
	}
}

func TestProvisionCommand_InvalidRevisionIsUsageError(t *testing.T) {
	h := newHarness(t)

	err := h.run(t, "provision", "--arco-rev=--upload-pack=evil")
	if err == nil {
		t.Fatal("expected an error")
	}
	if code := exitCodeOf(err); code != types.ExitUsage {
		t.Errorf("exit code = %d, want %d", code, types.ExitUsage)
	}
	h.rec.AssertCommands(t)
}

func TestProvisionCommand_MissingPackageManager(t *testing.T) {
	h := newHarness(t)
	h.app.Environ = func() []string { return []string{"PATH=" + t.TempDir()} }

	err := h.run(t, "provision", "--skip-preflight")
	if id, ok := issueFor(err); !ok || id != issue.PackageManagerFailedId {
		t.Fatalf("issueFor(%v) = %v, %v", err, id, ok)
	}
	h.rec.AssertCommands(t)
}
