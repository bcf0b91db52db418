// SPDX-License-Identifier: MPL-2.0

package platform

// runtime.GOOS values that change where envprov keeps its configuration.
// Provisioning itself targets Linux hosts and images.
const (
	Windows = "windows"
	Darwin  = "darwin"
)
