// SPDX-License-Identifier: MPL-2.0

//go:build windows

package tooling

import (
	"io"
	"os/exec"
)

// runWithPTY falls back to merged pipes; ConPTY is not wired.
func runWithPTY(cmd *exec.Cmd, out io.Writer) error {
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}
