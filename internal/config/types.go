// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// PackageManagerConda drives the reference conda client.
	// Defined locally to avoid coupling config to internal/tooling.
	PackageManagerConda PackageManager = "conda"
	// PackageManagerMamba drives mamba.
	PackageManagerMamba PackageManager = "mamba"
	// PackageManagerMicromamba drives the standalone micromamba binary.
	PackageManagerMicromamba PackageManager = "micromamba"

	// ContainerEnginePodman uses Podman for image builds.
	ContainerEnginePodman ContainerEngine = "podman"
	// ContainerEngineDocker uses Docker for image builds.
	ContainerEngineDocker ContainerEngine = "docker"
	// ContainerEngineAuto picks whichever engine is installed, podman first.
	ContainerEngineAuto ContainerEngine = "auto"

	// LogFormatText renders human-readable log lines.
	LogFormatText LogFormat = "text"
	// LogFormatJSON renders one JSON object per log line.
	LogFormatJSON LogFormat = "json"

	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// DefaultReceiptPath is where a successful run records what it did.
	DefaultReceiptPath ReceiptPath = "/var/lib/envprov/receipt.toml"
)

var (
	// ErrInvalidPackageManager is returned when a PackageManager value is not recognized.
	ErrInvalidPackageManager = errors.New("invalid package manager")
	// ErrInvalidContainerEngine is returned when a ContainerEngine value is not recognized.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
	// ErrInvalidLogFormat is returned when a LogFormat value is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidReceiptPath is returned when a ReceiptPath is whitespace-only or relative.
	ErrInvalidReceiptPath = errors.New("invalid receipt path")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// PackageManager selects the conda-family client.
	PackageManager string

	// InvalidPackageManagerError is returned when a PackageManager value is not recognized.
	// It wraps ErrInvalidPackageManager for errors.Is() compatibility.
	InvalidPackageManagerError struct {
		Value PackageManager
	}

	// ContainerEngine specifies which container engine builds images.
	ContainerEngine string

	// InvalidContainerEngineError is returned when a ContainerEngine value is not recognized.
	// It wraps ErrInvalidContainerEngine for errors.Is() compatibility.
	InvalidContainerEngineError struct {
		Value ContainerEngine
	}

	// LogFormat selects the log handler output.
	LogFormat string

	// InvalidLogFormatError is returned when a LogFormat value is not recognized.
	InvalidLogFormatError struct {
		Value LogFormat
	}

	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// ReceiptPath is where the provisioning receipt is written.
	// The zero value disables the receipt.
	ReceiptPath string

	// InvalidReceiptPathError is returned when a ReceiptPath is whitespace-only
	// or not absolute.
	InvalidReceiptPathError struct {
		Value ReceiptPath
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// PackageManager selects conda, mamba or micromamba
		PackageManager PackageManager `json:"package_manager" mapstructure:"package_manager"`
		// ContainerEngine specifies whether to use "podman", "docker" or "auto"
		ContainerEngine ContainerEngine `json:"container_engine" mapstructure:"container_engine"`
		// RecipeFile optionally points at a CUE recipe merged over the built-in one
		RecipeFile string `json:"recipe_file" mapstructure:"recipe_file"`
		// Provision configures in-place provisioning
		Provision ProvisionConfig `json:"provision" mapstructure:"provision"`
		// GitHub configures the revision preflight against the GitHub API
		GitHub GitHubConfig `json:"github" mapstructure:"github"`
		// UI configures the user interface
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// ProvisionConfig configures in-place provisioning.
	ProvisionConfig struct {
		// Preflight resolves every revision selector before any step runs
		Preflight bool `json:"preflight" mapstructure:"preflight"`
		// ReceiptPath is where the receipt is written; empty disables it
		ReceiptPath ReceiptPath `json:"receipt_path" mapstructure:"receipt_path"`
		// StreamTTY attaches long-running tools to a pseudo-terminal
		StreamTTY bool `json:"stream_tty" mapstructure:"stream_tty"`
	}

	// GitHubConfig configures GitHub API access.
	GitHubConfig struct {
		// Token authenticates API calls; falls back to GITHUB_TOKEN and gh
		Token string `json:"token" mapstructure:"token"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables debug logging
		Verbose bool `json:"verbose" mapstructure:"verbose"`
		// LogFormat selects text or json log lines
		LogFormat LogFormat `json:"log_format" mapstructure:"log_format"`
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
	}
)

// String returns the string representation of the PackageManager.
func (pm PackageManager) String() string { return string(pm) }

// Validate returns an error if the PackageManager is not a known client.
func (pm PackageManager) Validate() error {
	switch pm {
	case PackageManagerConda, PackageManagerMamba, PackageManagerMicromamba:
		return nil
	default:
		return &InvalidPackageManagerError{Value: pm}
	}
}

// Error implements the error interface for InvalidPackageManagerError.
func (e *InvalidPackageManagerError) Error() string {
	return fmt.Sprintf("invalid package manager %q (valid: conda, mamba, micromamba)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidPackageManagerError) Unwrap() error { return ErrInvalidPackageManager }

// String returns the string representation of the ContainerEngine.
func (ce ContainerEngine) String() string { return string(ce) }

// Validate returns an error if the ContainerEngine is not a known engine.
func (ce ContainerEngine) Validate() error {
	switch ce {
	case ContainerEnginePodman, ContainerEngineDocker, ContainerEngineAuto:
		return nil
	default:
		return &InvalidContainerEngineError{Value: ce}
	}
}

// Error implements the error interface for InvalidContainerEngineError.
func (e *InvalidContainerEngineError) Error() string {
	return fmt.Sprintf("invalid container engine %q (valid: podman, docker, auto)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidContainerEngineError) Unwrap() error { return ErrInvalidContainerEngine }

// String returns the string representation of the LogFormat.
func (f LogFormat) String() string { return string(f) }

// Validate returns an error if the LogFormat is neither text nor json.
func (f LogFormat) Validate() error {
	switch f {
	case LogFormatText, LogFormatJSON:
		return nil
	default:
		return &InvalidLogFormatError{Value: f}
	}
}

// Error implements the error interface for InvalidLogFormatError.
func (e *InvalidLogFormatError) Error() string {
	return fmt.Sprintf("invalid log format %q (valid: text, json)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidLogFormatError) Unwrap() error { return ErrInvalidLogFormat }

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// Validate returns an error if the ColorScheme is not a defined scheme.
func (cs ColorScheme) Validate() error {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return nil
	default:
		return &InvalidColorSchemeError{Value: cs}
	}
}

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// String returns the string representation of the ReceiptPath.
func (p ReceiptPath) String() string { return string(p) }

// Validate accepts the empty path (receipt disabled) and absolute paths.
func (p ReceiptPath) Validate() error {
	if p == "" {
		return nil
	}
	if strings.TrimSpace(string(p)) == "" || !filepath.IsAbs(string(p)) {
		return &InvalidReceiptPathError{Value: p}
	}
	return nil
}

// Error implements the error interface for InvalidReceiptPathError.
func (e *InvalidReceiptPathError) Error() string {
	return fmt.Sprintf("invalid receipt path %q: must be empty or absolute", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidReceiptPathError) Unwrap() error { return ErrInvalidReceiptPath }

// Validate collects every field error of the Config.
func (c Config) Validate() error {
	var errs []error
	if err := c.PackageManager.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.ContainerEngine.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Provision.ReceiptPath.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.UI.LogFormat.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.UI.ColorScheme.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig and every field error.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		PackageManager:  PackageManagerConda,
		ContainerEngine: ContainerEngineAuto,
		Provision: ProvisionConfig{
			Preflight:   true,
			ReceiptPath: DefaultReceiptPath,
			StreamTTY:   false,
		},
		UI: UIConfig{
			Verbose:     false,
			LogFormat:   LogFormatText,
			ColorScheme: ColorSchemeAuto,
		},
	}
}
