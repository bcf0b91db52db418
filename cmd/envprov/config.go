// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/invowk/envprov/internal/config"
)

// newConfigCommand creates the `envprov config` command tree. Every
// subcommand runs even when the config file fails to load.
func newConfigCommand(app *App) *cobra.Command {
	optional := map[string]string{annotationConfigOptional: "true"}

	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage envprov configuration",
		Long: `Manage envprov configuration.

Configuration is stored in:
  - Linux: ~/.config/envprov/config.cue
  - macOS: ~/Library/Application Support/envprov/config.cue
  - Windows: %APPDATA%\envprov\config.cue

A config.cue in the working directory is used when the user file is absent.
Every key can be overridden with an ENVPROV_ environment variable.`,
		Annotations: optional,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:         "show",
		Short:       "Show the effective configuration",
		Args:        cobra.NoArgs,
		Annotations: optional,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.showConfig()
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Show configuration file path",
		Args:        cobra.NoArgs,
		Annotations: optional,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.showConfigPath()
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:         "init",
		Short:       "Create default configuration file",
		Args:        cobra.NoArgs,
		Annotations: optional,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, created, err := config.CreateDefaultConfig()
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(app.stdout, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), path)
				return nil
			}
			fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	})

	var env bool
	dumpCmd := &cobra.Command{
		Use:         "dump",
		Short:       "Output the effective configuration as CUE",
		Args:        cobra.NoArgs,
		Annotations: optional,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.loadedConfig()
			if !env {
				fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
				return nil
			}
			settings := config.Settings(cfg)
			for _, key := range slices.Sorted(maps.Keys(settings)) {
				fmt.Fprintf(app.stdout, "%s=%s\n", config.EnvVar(key), settings[key])
			}
			return nil
		},
	}
	dumpCmd.Flags().BoolVar(&env, "env", false, "print ENVPROV_ environment assignments instead of CUE")
	cfgCmd.AddCommand(dumpCmd)

	return cfgCmd
}

func (a *App) showConfig() error {
	keyStyle := CmdStyle
	valueStyle := SuccessStyle

	fmt.Fprintln(a.stdout, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(a.stdout)

	path, err := config.ResolveConfigPath(config.LoadOptions{ConfigFilePath: a.opts.configFile})
	switch {
	case err != nil:
		fmt.Fprintf(a.stdout, "%s: %s\n", keyStyle.Render("Config file"), WarningStyle.Render(err.Error()))
	case path == "":
		fmt.Fprintf(a.stdout, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	default:
		fmt.Fprintf(a.stdout, "%s: %s\n", keyStyle.Render("Config file"), path)
	}
	fmt.Fprintln(a.stdout)

	settings := config.Settings(a.loadedConfig())
	for _, key := range slices.Sorted(maps.Keys(settings)) {
		value := settings[key]
		if value == "" {
			value = SubtitleStyle.Render("(unset)")
		} else {
			value = valueStyle.Render(value)
		}
		fmt.Fprintf(a.stdout, "%s: %s %s\n", keyStyle.Render(key), value, VerboseStyle.Render(config.EnvVar(key)))
	}
	return nil
}

func (a *App) showConfigPath() error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Config directory: %s\n", cfgDir)

	path, err := config.ResolveConfigPath(config.LoadOptions{ConfigFilePath: a.opts.configFile})
	if err != nil {
		return err
	}
	if path == "" {
		path = "(none, using defaults)"
	}
	fmt.Fprintf(a.stdout, "Config file: %s\n", path)
	return nil
}
