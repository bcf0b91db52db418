// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"io"
	"os"
)

// TagSuffixEnv names the environment variable that appends a suffix to
// image tags, so that concurrent test runs do not share cached images.
const TagSuffixEnv = "ENVPROV_IMAGE_TAG_SUFFIX"

type (
	// ImageConfig holds configuration for image mode builds.
	ImageConfig struct {
		// ForceRebuild bypasses cached images and forces a rebuild
		ForceRebuild bool

		// NoCache also disables the engine's layer cache.
		NoCache bool

		// Tag overrides the content-hash tag.
		Tag string

		// TagSuffix is an optional suffix appended to content-hash tags.
		// Can be set via the ENVPROV_IMAGE_TAG_SUFFIX environment variable.
		TagSuffix string

		// Render controls Dockerfile rendering.
		Render RenderConfig

		// BuildContextParent is where temporary build contexts are created.
		// Default: ~/envprov-build
		BuildContextParent string

		// Stdout and Stderr receive the engine's build output.
		Stdout io.Writer
		Stderr io.Writer
	}

	// ImageOption is a functional option for configuring an ImageConfig.
	ImageOption func(*ImageConfig)
)

// DefaultImageConfig returns an ImageConfig with default values.
func DefaultImageConfig() *ImageConfig {
	return &ImageConfig{
		TagSuffix: os.Getenv(TagSuffixEnv),
		Render:    DefaultRenderConfig(),
		Stdout:    os.Stderr, // Build progress goes to stderr
		Stderr:    os.Stderr,
	}
}

// NewImageConfig returns the default configuration with opts applied.
func NewImageConfig(opts ...ImageOption) *ImageConfig {
	cfg := DefaultImageConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithForceRebuild returns an ImageOption that sets ForceRebuild.
func WithForceRebuild(force bool) ImageOption {
	return func(c *ImageConfig) {
		c.ForceRebuild = force
	}
}

// WithNoCache returns an ImageOption that sets NoCache.
func WithNoCache(noCache bool) ImageOption {
	return func(c *ImageConfig) {
		c.NoCache = noCache
	}
}

// WithTag returns an ImageOption that sets an explicit image tag.
func WithTag(tag string) ImageOption {
	return func(c *ImageConfig) {
		c.Tag = tag
	}
}

// WithTagSuffix returns an ImageOption that sets TagSuffix.
func WithTagSuffix(suffix string) ImageOption {
	return func(c *ImageConfig) {
		c.TagSuffix = suffix
	}
}

// WithRenderConfig returns an ImageOption that sets Render.
func WithRenderConfig(rc RenderConfig) ImageOption {
	return func(c *ImageConfig) {
		c.Render = rc
	}
}

// WithBuildContextParent returns an ImageOption that sets BuildContextParent.
func WithBuildContextParent(dir string) ImageOption {
	return func(c *ImageConfig) {
		c.BuildContextParent = dir
	}
}

// WithBuildOutput returns an ImageOption that redirects build output.
func WithBuildOutput(stdout, stderr io.Writer) ImageOption {
	return func(c *ImageConfig) {
		c.Stdout = stdout
		c.Stderr = stderr
	}
}
