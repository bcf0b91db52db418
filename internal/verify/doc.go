// SPDX-License-Identifier: MPL-2.0

// Package verify checks a provisioned host against its recipe and receipt:
// checkouts at the resolved commits, fixtures pruned, the environment first
// on the search path and activated at login, and both projects installed in
// editable mode.
package verify
