// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package tooling

import (
	"errors"
	"io"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

// runWithPTY starts cmd on a pseudo-terminal and copies everything it prints
// to out until it exits.
func runWithPTY(cmd *exec.Cmd, out io.Writer) error {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return err
	}
	defer ptmx.Close()

	// Linux reports EIO on the master once the child closes its side.
	if _, err := io.Copy(out, ptmx); err != nil && !errors.Is(err, syscall.EIO) {
		_ = cmd.Wait()
		return err
	}
	return cmd.Wait()
}
