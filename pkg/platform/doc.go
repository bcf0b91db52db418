// SPDX-License-Identifier: MPL-2.0

// Package platform names operating systems and detects application
// sandboxes. Inside Flatpak the package manager, git and pip live on the
// host, so tool clients spawn them through flatpak-spawn.
package platform
