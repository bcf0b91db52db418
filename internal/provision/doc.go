// SPDX-License-Identifier: MPL-2.0

// Package provision turns a recipe into an environment.
//
// NewPlan expands a recipe into the fixed, linear step sequence: install the
// solver into the base installation, make it the default, then for each
// project clone, check out, prune test fixtures and (for the environment
// owner) create the environment, hook its activation into the login script
// and put its bin directory first on the search path, and finally install
// the project editable. Provisioner.Run executes the steps in order against
// the host and stops at the first failure; nothing is rolled back.
//
// The same plan renders as a Dockerfile (RenderDockerfile) and ImageBuilder
// builds it with a container engine, caching images by content hash:
//
//	plan, err := provision.NewPlan(r, tools)
//	result, err := provision.NewImageBuilder(engine, cfg).Build(ctx, plan)
//	// result.ImageTag is e.g. "envprov-weather-tools:3f2a9c01b7de"
package provision
