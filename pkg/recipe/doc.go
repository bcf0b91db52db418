// SPDX-License-Identifier: MPL-2.0

// Package recipe defines the provisioning recipe: which solver to install into
// the base package manager, which named environment to create, and which
// projects to clone, prune and install editable into it.
//
// A Recipe is usually obtained from Default() (the built-in weather-tools /
// arco-era5 recipe) or Load() (a recipe.cue file validated against the
// embedded #Recipe schema, with omitted fields falling back to the defaults).
// The three build parameters are applied on top with Overrides.
//
// The first project owns the environment specification file; every later
// project is installed into the environment the first one created.
package recipe
