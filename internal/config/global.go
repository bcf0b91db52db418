// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride replaces the XDG lookup in ConfigDir when non-empty.
var configDirOverride string

// SetConfigDirOverride makes ConfigDir return dir, so "config path" and
// "config init" can be exercised against a temporary directory.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

// Reset drops the override set by SetConfigDirOverride.
func Reset() {
	configDirOverride = ""
}
