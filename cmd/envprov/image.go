// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invowk/envprov/internal/container"
	"github.com/invowk/envprov/internal/issue"
	"github.com/invowk/envprov/internal/provision"
)

type imageOptions struct {
	recipe       recipeFlags
	tag          string
	engine       string
	forceRebuild bool
	noCache      bool
}

func newImageCommand(app *App) *cobra.Command {
	imageCmd := &cobra.Command{
		Use:   "image",
		Short: "Build the environment into a container image",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	imageCmd.AddCommand(newImageBuildCommand(app), newImageTagCommand(app))
	return imageCmd
}

func newImageBuildCommand(app *App) *cobra.Command {
	var opts imageOptions
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the image with podman or docker",
		Long: `Render the recipe as a Dockerfile and build it.

Images are tagged envprov-<environment>:<hash>, where the hash covers the
rendered Dockerfile and its build arguments. An existing image with the same
tag is reused unless --force-rebuild is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := app.loadRecipe(&opts.recipe)
			if err != nil {
				return err
			}
			s, err := app.newSession(r, false)
			if err != nil {
				return err
			}

			engineType := container.EngineType(app.loadedConfig().ContainerEngine)
			if cmd.Flags().Changed("engine") {
				engineType = container.EngineType(opts.engine)
			}
			if err := engineType.Validate(); err != nil {
				return usageError(err)
			}
			engine, err := app.NewEngine(engineType)
			if err != nil {
				return failureError(engineError(err))
			}

			imageOpts := []provision.ImageOption{
				provision.WithTag(opts.tag),
				provision.WithForceRebuild(opts.forceRebuild),
				provision.WithNoCache(opts.noCache),
				provision.WithBuildOutput(app.stderr, app.stderr),
			}
			if app.buildContextParent != "" {
				imageOpts = append(imageOpts, provision.WithBuildContextParent(app.buildContextParent))
			}
			builder := provision.NewImageBuilder(engine, provision.NewImageConfig(imageOpts...))
			result, err := builder.Build(cmd.Context(), s.plan)
			if err != nil {
				return failureError(buildError(engine.Name(), err))
			}

			status := "built"
			if result.Cached {
				status = "reused cached image"
			}
			fmt.Fprintf(app.stdout, "%s %s %s\n", SuccessStyle.Render("✓"), TitleStyle.Render(result.ImageTag.String()), SubtitleStyle.Render("("+status+")"))
			return nil
		},
	}
	opts.recipe.register(cmd)
	cmd.Flags().StringVar(&opts.tag, "tag", "", "image tag (default envprov-<environment>:<content hash>)")
	cmd.Flags().StringVar(&opts.engine, "engine", "", "container engine: podman, docker or auto (default from container_engine)")
	cmd.Flags().BoolVar(&opts.forceRebuild, "force-rebuild", false, "rebuild even if an image with the same tag exists")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the engine's layer cache")
	return cmd
}

func newImageTagCommand(app *App) *cobra.Command {
	var flags recipeFlags
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Print the content-hash tag a build would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := app.loadRecipe(&flags)
			if err != nil {
				return err
			}
			s, err := app.newSession(r, false)
			if err != nil {
				return err
			}
			result, err := provision.NewImageBuilder(nil, provision.NewImageConfig()).Prepare(s.plan)
			if err != nil {
				return recipeError(app.opts.recipeFile, err)
			}
			fmt.Fprintln(app.stdout, result.ImageTag)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func engineError(err error) error {
	return issue.NewErrorContext().
		WithOperation("select container engine").
		WithSuggestions(
			"Install podman or docker and make sure it is on PATH",
			"Choose an engine explicitly with --engine or ENVPROV_CONTAINER_ENGINE",
		).
		Wrap(err).
		BuildError()
}

func buildError(engine string, err error) error {
	return issue.NewErrorContext().
		WithOperation("build image").
		WithResource(engine).
		WithSuggestions(
			"Check the build output above for the failing instruction",
			"Retry with --no-cache if a cached layer is stale",
		).
		Wrap(err).
		BuildError()
}
