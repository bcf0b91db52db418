// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/invowk/envprov/internal/container"
)

type (
	// ImageBuilder builds a plan into a container image. Images are cached
	// by the hash of the rendered Dockerfile and build arguments.
	ImageBuilder struct {
		engine container.Engine
		config *ImageConfig
	}

	// ImageResult describes a built or reused image.
	ImageResult struct {
		ImageTag   container.ImageTag
		Dockerfile string
		BuildArgs  map[string]string
		// Cached is true when an existing image was reused.
		Cached bool
	}
)

// NewImageBuilder creates a new ImageBuilder.
func NewImageBuilder(engine container.Engine, cfg *ImageConfig) *ImageBuilder {
	if cfg == nil {
		cfg = DefaultImageConfig()
	}
	return &ImageBuilder{
		engine: engine,
		config: cfg,
	}
}

// Config returns the builder's configuration.
func (b *ImageBuilder) Config() *ImageConfig {
	return b.config
}

// Build renders plan and builds it, unless an image with the same content
// hash already exists and ForceRebuild is not set.
func (b *ImageBuilder) Build(ctx context.Context, plan *Plan) (*ImageResult, error) {
	result, err := b.Prepare(plan)
	if err != nil {
		return nil, err
	}

	exists, _ := b.engine.ImageExists(ctx, result.ImageTag) //nolint:errcheck // Error treated as "not found"
	switch {
	case exists && !b.config.ForceRebuild:
		slog.Info("reusing cached image", "tag", result.ImageTag)
		result.Cached = true
		return result, nil
	case exists:
		// The rebuilt image takes over the tag; drop the old one so it does
		// not linger as a dangling image. A failure here does not block the build.
		if err := b.engine.RemoveImage(ctx, result.ImageTag, false); err != nil {
			slog.Warn("failed to remove image before rebuild", "tag", result.ImageTag, "error", err)
		}
	}

	if err := b.buildImage(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to build image: %w", err)
	}
	return result, nil
}

// Prepare renders plan and computes its tag without touching the engine.
func (b *ImageBuilder) Prepare(plan *Plan) (*ImageResult, error) {
	dockerfile, err := RenderDockerfile(plan, b.config.Render)
	if err != nil {
		return nil, err
	}
	args := BuildArgs(plan)
	tag := container.ImageTag(b.config.Tag)
	if tag == "" {
		tag = b.imageTag(plan, ContentHash(dockerfile, args)[:12])
	}
	if err := tag.Validate(); err != nil {
		return nil, err
	}
	return &ImageResult{ImageTag: tag, Dockerfile: dockerfile, BuildArgs: args}, nil
}

// imageTag constructs "envprov-<env>:<hash>[-<suffix>]".
func (b *ImageBuilder) imageTag(plan *Plan, hash string) container.ImageTag {
	repo := "envprov-" + strings.ToLower(plan.Recipe.Environment.Name.String())
	if b.config.TagSuffix != "" {
		return container.ImageTag(fmt.Sprintf("%s:%s-%s", repo, hash, b.config.TagSuffix))
	}
	return container.ImageTag(fmt.Sprintf("%s:%s", repo, hash))
}

func (b *ImageBuilder) buildImage(ctx context.Context, result *ImageResult) error {
	buildCtx, cleanup, err := b.prepareBuildContext(result.Dockerfile)
	if err != nil {
		return err
	}
	defer cleanup()

	slog.Info("building image", "engine", b.engine.Name(), "tag", result.ImageTag)
	return b.engine.Build(ctx, container.BuildOptions{
		ContextDir: buildCtx,
		Dockerfile: "Dockerfile",
		Tag:        result.ImageTag,
		BuildArgs:  result.BuildArgs,
		NoCache:    b.config.NoCache,
		Stdout:     b.config.Stdout,
		Stderr:     b.config.Stderr,
	})
}

// prepareBuildContext creates a temporary directory holding only the
// Dockerfile. The image fetches its sources itself.
//
// Docker installed via Snap cannot access /tmp or hidden directories in
// $HOME, so the context lives in a visible directory like ~/envprov-build.
func (b *ImageBuilder) prepareBuildContext(dockerfile string) (buildContextDir string, cleanup func(), err error) {
	parent := b.config.BuildContextParent
	if parent == "" {
		parent = defaultBuildContextParent()
	}

	if mkdirErr := os.MkdirAll(parent, 0o755); mkdirErr != nil {
		return "", nil, fmt.Errorf("failed to create build context parent directory: %w", mkdirErr)
	}

	tmpDir, err := os.MkdirTemp(parent, "ctx-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	cleanup = func() {
		_ = os.RemoveAll(tmpDir) // Cleanup temp dir; error non-critical
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "Dockerfile"), []byte(dockerfile), 0o644); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write Dockerfile: %w", err)
	}

	return tmpDir, cleanup, nil
}

func defaultBuildContextParent() string {
	// HOME may be set but missing (e.g. HOME=/no-home in test harnesses).
	if home, err := os.UserHomeDir(); err == nil {
		if _, statErr := os.Stat(home); statErr == nil {
			return filepath.Join(home, "envprov-build")
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, ".envprov-build")
	}
	return filepath.Join(os.TempDir(), "envprov-build")
}
