// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/invowk/envprov/pkg/recipe"
	"github.com/invowk/envprov/pkg/types"
)

// ReceiptVersion is the schema version written into new receipts.
const ReceiptVersion = 1

// ErrReceiptNotFound is returned by ReadReceipt when no receipt exists.
var ErrReceiptNotFound = errors.New("receipt not found")

type (
	// Receipt records what a successful run produced. Verification reads it
	// back to compare the host against the resolved commits.
	Receipt struct {
		Version      int                `toml:"version"`
		CreatedAt    time.Time          `toml:"created_at"`
		RecipeDigest string             `toml:"recipe_digest"`
		Environment  ReceiptEnvironment `toml:"environment"`
		Projects     []ReceiptProject   `toml:"projects"`
	}

	// ReceiptEnvironment describes the created environment.
	ReceiptEnvironment struct {
		Name        recipe.EnvironmentName `toml:"name"`
		Prefix      types.FilesystemPath   `toml:"prefix"`
		LoginScript types.FilesystemPath   `toml:"login_script"`
		HookAdded   bool                   `toml:"hook_added"`
	}

	// ReceiptProject describes one installed project.
	ReceiptProject struct {
		Name           recipe.ProjectName   `toml:"name"`
		Repository     recipe.RepositoryURL `toml:"repository"`
		Revision       recipe.Revision      `toml:"revision"`
		Commit         string               `toml:"commit"`
		CheckoutDir    recipe.CheckoutDir   `toml:"checkout_dir"`
		PrunedFixtures []string             `toml:"pruned_fixtures,omitempty"`
	}
)

// NewReceipt builds the receipt for a finished run of plan.
func NewReceipt(plan *Plan, state *State, now time.Time) (*Receipt, error) {
	digest, err := RecipeDigest(plan.Recipe)
	if err != nil {
		return nil, err
	}
	r := &Receipt{
		Version:      ReceiptVersion,
		CreatedAt:    now.UTC().Truncate(time.Second),
		RecipeDigest: digest,
		Environment: ReceiptEnvironment{
			Name:        plan.Recipe.Environment.Name,
			Prefix:      state.EnvPrefix,
			LoginScript: state.LoginScript,
			HookAdded:   state.HookAdded,
		},
	}
	for _, p := range plan.Recipe.Projects {
		r.Projects = append(r.Projects, ReceiptProject{
			Name:           p.Name,
			Repository:     p.Repository,
			Revision:       p.Revision,
			Commit:         state.Heads[p.Name],
			CheckoutDir:    p.CheckoutDir,
			PrunedFixtures: state.Pruned[p.Name],
		})
	}
	return r, nil
}

// Project returns the entry for name.
func (r *Receipt) Project(name recipe.ProjectName) (ReceiptProject, bool) {
	for _, p := range r.Projects {
		if p.Name == name {
			return p, true
		}
	}
	return ReceiptProject{}, false
}

// WriteReceipt encodes r as TOML at path, creating parent directories.
func WriteReceipt(fs afero.Fs, path types.FilesystemPath, r *Receipt) error {
	data, err := toml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(string(path)), 0o755); err != nil {
		return fmt.Errorf("failed to create receipt directory: %w", err)
	}
	if err := afero.WriteFile(fs, string(path), data, 0o644); err != nil {
		return fmt.Errorf("failed to write receipt: %w", err)
	}
	return nil
}

// ReadReceipt decodes the receipt at path.
func ReadReceipt(fs afero.Fs, path types.FilesystemPath) (*Receipt, error) {
	data, err := afero.ReadFile(fs, string(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrReceiptNotFound, path)
		}
		return nil, fmt.Errorf("failed to read receipt: %w", err)
	}
	var r Receipt
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse receipt %s: %w", path, err)
	}
	if r.Version != ReceiptVersion {
		return nil, fmt.Errorf("unsupported receipt version %d in %s", r.Version, path)
	}
	return &r, nil
}

// RecipeDigest returns the hex sha256 of the recipe's JSON encoding.
func RecipeDigest(r *recipe.Recipe) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to encode recipe: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
