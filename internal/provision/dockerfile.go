// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"fmt"
	"strings"
)

// DefaultCondaRoot is the installation root of the miniconda base images.
const DefaultCondaRoot = "/opt/conda"

type (
	// RenderConfig controls how a plan is rendered as a Dockerfile.
	RenderConfig struct {
		// CondaRoot is where the base image installs conda; named
		// environments live under <CondaRoot>/envs.
		CondaRoot string
	}

	renderContext struct {
		config RenderConfig
		plan   *Plan
	}
)

// DefaultRenderConfig returns the configuration for the default base image.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{CondaRoot: DefaultCondaRoot}
}

func (rc *renderContext) envRef() string {
	return "${" + rc.plan.Recipe.Environment.NameArg + "}"
}

// RenderDockerfile renders plan as a Dockerfile: one ARG per build parameter
// defaulting to the plan's value, then the instructions of every step in
// order.
func RenderDockerfile(plan *Plan, cfg RenderConfig) (string, error) {
	if cfg.CondaRoot == "" {
		cfg.CondaRoot = DefaultCondaRoot
	}
	rc := &renderContext{config: cfg, plan: plan}
	r := plan.Recipe

	var sb strings.Builder
	fmt.Fprintf(&sb, "FROM %s\n\n", r.BaseImage)

	for _, arg := range buildArgOrder(plan) {
		fmt.Fprintf(&sb, "ARG %s=%s\n", arg.name, arg.value)
	}

	for _, step := range plan.Steps {
		lines, err := step.instructions(rc)
		if err != nil {
			return "", fmt.Errorf("failed to render step %s: %w", step.ID(), err)
		}
		if len(lines) == 0 {
			continue
		}
		sb.WriteString("\n# " + step.ID().String())
		if p := step.Project(); p != "" {
			sb.WriteString(" (" + p.String() + ")")
		}
		sb.WriteByte('\n')
		for _, l := range lines {
			sb.WriteString(l)
			sb.WriteByte('\n')
		}
	}

	return sb.String(), nil
}

type buildArg struct {
	name  string
	value string
}

// buildArgOrder lists the environment owner's revision first, then the
// environment name, then the remaining revisions.
func buildArgOrder(plan *Plan) []buildArg {
	r := plan.Recipe
	var args []buildArg
	for i, p := range r.Projects {
		args = append(args, buildArg{name: p.RevisionArg, value: p.Revision.OrDefault().String()})
		if i == 0 {
			args = append(args, buildArg{name: r.Environment.NameArg, value: r.Environment.Name.String()})
		}
	}
	return args
}

// BuildArgs returns the build arguments that reproduce the plan's parameters.
func BuildArgs(plan *Plan) map[string]string {
	args := make(map[string]string)
	for _, a := range buildArgOrder(plan) {
		args[a.name] = a.value
	}
	return args
}
