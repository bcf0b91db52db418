// SPDX-License-Identifier: MPL-2.0

package config

import "context"

// LoadOptions selects where the configuration comes from. The zero value
// searches the config directory and then the working directory.
type LoadOptions struct {
	// ConfigFilePath is the --config flag; a missing file is an error.
	ConfigFilePath string
	// ConfigDirPath replaces ConfigDir() in the search.
	ConfigDirPath string
}

// Provider loads a validated Config. The CLI depends on this interface so
// tests can hand it a fixed configuration.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (*Config, error)
}

type cueFileProvider struct{}

// NewProvider returns the Provider backed by config.cue files and ENVPROV_*
// environment variables.
func NewProvider() Provider {
	return cueFileProvider{}
}

func (cueFileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg, _, err := loadWithOptions(ctx, opts)
	return cfg, err
}
