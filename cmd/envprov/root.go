// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/invowk/envprov/internal/config"
)

// annotationConfigOptional marks commands that still run when the config
// file is broken, so it can be inspected and replaced.
const annotationConfigOptional = "envprov/config-optional"

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the envprov command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "envprov",
		Short: "Provision the weather-tools development environment",
		Long: TitleStyle.Render("envprov") + SubtitleStyle.Render(" - reproducible conda environment provisioning") + `

envprov installs the libmamba solver, clones weather-tools and arco-era5 at
the requested revisions, removes their bundled test fixtures, creates the
environment from weather-tools' environment.yml, activates it for login
shells and installs both projects in editable mode.

` + SubtitleStyle.Render("Examples:") + `
  envprov plan                                 Show the steps that would run
  envprov provision --weather-rev v0.2.0       Provision this host
  envprov dockerfile -o Dockerfile             Render the recipe as a Dockerfile
  envprov image build --env-name my-env        Build a container image
  envprov verify                               Check a provisioned host`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.initRootConfig(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&app.opts.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/envprov/config.cue)")
	flags.StringVar(&app.opts.recipeFile, "recipe", "", "CUE recipe file merged over the built-in recipe")
	flags.BoolVarP(&app.opts.verbose, "verbose", "v", false, "enable verbose output")
	flags.StringVar(&app.opts.logFormat, "log-format", "", "log format: text or json")

	rootCmd.AddCommand(
		newProvisionCommand(app),
		newPlanCommand(app),
		newDockerfileCommand(app),
		newImageCommand(app),
		newVerifyCommand(app),
		newConfigCommand(app),
		newVersionCommand(app),
	)

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the code carried by the returned error.
// This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	rootCmd := NewRootCommand(app)

	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, _ fang.Styles, err error) {
			app.renderError(w, err)
		}),
	); err != nil {
		os.Exit(int(exitCodeOf(err)))
	}
}

// initRootConfig loads the configuration and applies it to logging and styles.
// Flags override config values when set.
func (a *App) initRootConfig(cmd *cobra.Command) error {
	cfg, err := a.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: a.opts.configFile})
	if err != nil {
		if _, optional := cmd.Annotations[annotationConfigOptional]; !optional {
			return usageError(err)
		}
		fmt.Fprintln(a.stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, a.opts.verbose))
		cfg = config.DefaultConfig()
	}

	flags := cmd.Flags()
	if !flags.Changed("verbose") {
		a.opts.verbose = cfg.UI.Verbose
	}
	if !flags.Changed("log-format") {
		a.opts.logFormat = cfg.UI.LogFormat.String()
	}
	if !flags.Changed("recipe") {
		a.opts.recipeFile = cfg.RecipeFile
	}

	format := config.LogFormat(a.opts.logFormat)
	if err := format.Validate(); err != nil {
		return usageError(err)
	}
	setupLogger(a.stderr, a.opts.verbose, format)

	switch cfg.UI.ColorScheme {
	case config.ColorSchemeDark:
		lipgloss.SetHasDarkBackground(true)
	case config.ColorSchemeLight:
		lipgloss.SetHasDarkBackground(false)
	}

	a.cfg = cfg
	return nil
}
