// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for envprov.
//
// This package implements the Cobra command hierarchy for the envprov CLI:
// in-place provisioning, plan and Dockerfile rendering, image builds,
// verification of a provisioned host, and configuration management.
package cmd
