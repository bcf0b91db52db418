// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"slices"
)

// ContentHash hashes the rendered Dockerfile together with the build
// arguments, in key order, so that any parameter change yields a new tag.
func ContentHash(dockerfile string, buildArgs map[string]string) string {
	h := sha256.New()
	h.Write([]byte("dockerfile:" + dockerfile))
	for _, k := range slices.Sorted(maps.Keys(buildArgs)) {
		h.Write([]byte("\narg:" + k + "=" + buildArgs[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}
