// SPDX-License-Identifier: MPL-2.0

// Package tooling wraps the external command-line tools the provisioner
// drives: git, the conda-family package manager and pip. Each client embeds
// BaseCLITool, which resolves the binary through the caller's search path,
// applies per-command environment overrides, streams output (optionally
// through a pseudo-terminal) and turns non-zero exits into *CommandError.
package tooling
