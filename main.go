// SPDX-License-Identifier: MPL-2.0

// envprov provisions the weather-tools conda environment.
package main

import cmd "github.com/invowk/envprov/cmd/envprov"

func main() {
	cmd.Execute()
}
