// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"errors"
	"os/exec"
	"testing"
)

func TestHelperProcess(t *testing.T) { RunHelperProcess() }

func TestCommandRecorder(t *testing.T) {
	t.Parallel()

	rec := NewCommandRecorder()
	rec.On("git", "ls-remote", "main").Print("abc123\trefs/heads/main\n")
	rec.On("git", "ls-remote").Fail(2, "fatal: nope\n")

	out, err := rec.ExecCommand(context.Background(), "/usr/bin/git", "ls-remote", "https://x/y.git", "main").Output()
	if err != nil {
		t.Fatalf("matched command failed: %v", err)
	}
	if string(out) != "abc123\trefs/heads/main\n" {
		t.Errorf("stdout = %q", out)
	}

	err = rec.ExecCommand(context.Background(), "git", "ls-remote", "https://x/y.git", "dev").Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 2 {
		t.Errorf("fallthrough match error = %v, want exit 2", err)
	}

	if err := rec.ExecCommand(context.Background(), "conda", "info").Run(); err != nil {
		t.Errorf("unmatched command should succeed: %v", err)
	}

	rec.AssertCommands(t,
		"git ls-remote https://x/y.git main",
		"git ls-remote https://x/y.git dev",
		"conda info",
	)
}
