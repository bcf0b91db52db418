// SPDX-License-Identifier: MPL-2.0

package testutil

import "testing"

// SetHomeDir points HOME at dir and returns a cleanup that restores it.
// XDG_CONFIG_HOME is unset for the duration so config lookups derive from
// the new home.
//
//	t.Cleanup(testutil.SetHomeDir(t, t.TempDir()))
func SetHomeDir(t testing.TB, dir string) func() {
	t.Helper()

	restoreHome := MustSetenv(t, "HOME", dir)
	restoreXDG := MustUnsetenv(t, "XDG_CONFIG_HOME")
	return func() {
		restoreXDG()
		restoreHome()
	}
}
