// SPDX-License-Identifier: MPL-2.0

package tooling

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/invowk/envprov/pkg/recipe"
)

type (
	// Pip drives the pip installer of the active environment. The binary is
	// resolved through the caller's search path on every invocation.
	Pip struct {
		*BaseCLITool
	}

	// EditablePackage is one entry of "pip list --editable".
	EditablePackage struct {
		Name     string `json:"name"`
		Version  string `json:"version"`
		Location string `json:"editable_project_location"`
	}
)

// NewPip creates a pip client.
func NewPip(opts ...Option) *Pip {
	return &Pip{BaseCLITool: NewBaseCLITool("pip", opts...)}
}

// InstallEditableArgs returns the arguments that install dir in editable mode.
func InstallEditableArgs(dir string) []string {
	return []string{"install", "-e", dir}
}

// InstallEditable installs the project at dir in editable mode, with its
// dependencies.
func (p *Pip) InstallEditable(ctx context.Context, dir recipe.CheckoutDir) error {
	return p.Run(ctx, InstallEditableArgs(string(dir))...)
}

// ListEditable returns the editable installs of the active environment.
func (p *Pip) ListEditable(ctx context.Context) ([]EditablePackage, error) {
	out, err := p.RunWithOutput(ctx, "list", "--editable", "--format=json", "--disable-pip-version-check")
	if err != nil {
		return nil, err
	}
	return ParseEditable([]byte(out))
}

// ParseEditable decodes the output of "pip list --editable --format=json".
func ParseEditable(data []byte) ([]EditablePackage, error) {
	var pkgs []EditablePackage
	if err := json.Unmarshal(data, &pkgs); err != nil {
		return nil, fmt.Errorf("failed to parse pip list output: %w", err)
	}
	return pkgs, nil
}

// EditableAt returns the editable package installed from dir, if any.
func EditableAt(pkgs []EditablePackage, dir recipe.CheckoutDir) (EditablePackage, bool) {
	want := filepath.Clean(string(dir))
	for _, pkg := range pkgs {
		if filepath.Clean(pkg.Location) == want {
			return pkg, true
		}
	}
	return EditablePackage{}, false
}
