// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/invowk/envprov/internal/provision"
	"github.com/invowk/envprov/pkg/types"
)

func newDockerfileCommand(app *App) *cobra.Command {
	var (
		flags  recipeFlags
		output string
	)
	cmd := &cobra.Command{
		Use:   "dockerfile",
		Short: "Render the recipe as a Dockerfile",
		Long: `Render the recipe as a Dockerfile.

The three build parameters become ARG instructions whose defaults are the
values given on the command line, so the file can also be built directly
with docker build --build-arg.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := app.loadRecipe(&flags)
			if err != nil {
				return err
			}
			s, err := app.newSession(r, false)
			if err != nil {
				return err
			}
			dockerfile, err := provision.RenderDockerfile(s.plan, provision.DefaultRenderConfig())
			if err != nil {
				return recipeError(app.opts.recipeFile, err)
			}

			if output == "" {
				fmt.Fprint(app.stdout, dockerfile)
				return nil
			}
			if err := types.FilesystemPath(output).Validate(); err != nil {
				return usageError(err)
			}
			if err := afero.WriteFile(app.FS, output, []byte(dockerfile), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(app.stdout, "%s Wrote %s\n", SuccessStyle.Render("✓"), output)
			for _, arg := range buildArgFlags(provision.BuildArgs(s.plan)) {
				fmt.Fprintf(app.stdout, "  %s\n", VerboseStyle.Render(arg))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the Dockerfile to FILE instead of stdout")
	return cmd
}

// buildArgFlags returns sorted "--build-arg KEY=VALUE" strings.
func buildArgFlags(args map[string]string) []string {
	out := make([]string, 0, len(args))
	for _, k := range slices.Sorted(maps.Keys(args)) {
		out = append(out, fmt.Sprintf("--build-arg %s=%s", k, args[k]))
	}
	return out
}
