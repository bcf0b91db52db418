// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	_ "embed"
	"fmt"

	"github.com/invowk/envprov/pkg/cueutil"
)

//go:embed recipe_schema.cue
var recipeSchema []byte

// Schema returns the embedded CUE schema for recipe files.
func Schema() []byte { return recipeSchema }

// Load reads a recipe file, validates it against the #Recipe schema, merges it
// onto Default(), normalizes omitted fields and validates the result.
func Load(path string) (*Recipe, error) {
	result, err := cueutil.ParseFile[Recipe](recipeSchema, path, "#Recipe")
	if err != nil {
		return nil, err
	}
	r := Merge(Default(), result.Value)
	r.Normalize()
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Parse is Load for in-memory data; filename is used in error messages.
func Parse(data []byte, filename string) (*Recipe, error) {
	result, err := cueutil.ParseAndDecode[Recipe](recipeSchema, data, "#Recipe", cueutil.WithFilename(filename))
	if err != nil {
		return nil, err
	}
	r := Merge(Default(), result.Value)
	r.Normalize()
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return r, nil
}

// Merge returns base with every non-zero field of file applied. A non-empty
// project list in file replaces the base projects.
func Merge(base, file *Recipe) *Recipe {
	out := base.Clone()
	if file == nil {
		return out
	}
	if file.BaseImage != "" {
		out.BaseImage = file.BaseImage
	}
	if file.Solver.Package != "" {
		out.Solver.Package = file.Solver.Package
	}
	if file.Solver.Name != "" {
		out.Solver.Name = file.Solver.Name
	}
	if file.Environment.Name != "" {
		out.Environment.Name = file.Environment.Name
	}
	if file.Environment.NameArg != "" {
		out.Environment.NameArg = file.Environment.NameArg
	}
	if file.Environment.LoginScript != "" {
		out.Environment.LoginScript = file.Environment.LoginScript
	}
	if len(file.Projects) > 0 {
		out.Projects = append([]Project(nil), file.Projects...)
	}
	return out
}
