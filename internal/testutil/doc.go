// SPDX-License-Identifier: MPL-2.0

// Package testutil provides test helpers: environment and working-directory
// management with cleanup (MustSetenv, MustChdir, SetHomeDir), fixture file
// creation, and CommandRecorder, a scripted fake for the external tools
// (git, conda, pip, docker) that the provisioner drives.
package testutil
