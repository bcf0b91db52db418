// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides the shared CUE parsing flow used by the recipe and
// config packages:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify with schema
//  3. Validate and decode to Go struct
//
// # Usage
//
//	//go:embed recipe_schema.cue
//	var schemaBytes []byte
//
//	result, err := cueutil.ParseAndDecode[recipe.File](
//	    schemaBytes,
//	    userFileBytes,
//	    "#Recipe",
//	    cueutil.WithFilename("recipe.cue"),
//	)
//	if err != nil {
//	    return nil, err  // Error includes the CUE path, e.g. projects[1].revision
//	}
//	return result.Value, nil
package cueutil
