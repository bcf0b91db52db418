// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"mvdan.cc/sh/v3/syntax"

	"github.com/invowk/envprov/pkg/recipe"
	"github.com/invowk/envprov/pkg/types"
)

// ActivationLine is the line appended to the login script.
func ActivationLine(env recipe.EnvironmentName) string {
	return "source activate " + string(env)
}

// EnsureActivationHook appends the activation line for env to the login
// script at script unless the script already activates env. It creates the
// script when missing and reports whether it wrote anything.
func EnsureActivationHook(fs afero.Fs, script types.FilesystemPath, env recipe.EnvironmentName) (bool, error) {
	name := string(script)
	data, err := afero.ReadFile(fs, name)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to read login script %s: %w", name, err)
	}
	if HasActivation(data, env) {
		return false, nil
	}

	if err := fs.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return false, fmt.Errorf("failed to create login script directory: %w", err)
	}
	f, err := fs.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("failed to open login script %s: %w", name, err)
	}
	defer func() { _ = f.Close() }() // Write errors are reported below

	var line strings.Builder
	if len(data) > 0 && !bytes.HasSuffix(data, []byte("\n")) {
		line.WriteByte('\n')
	}
	line.WriteString(ActivationLine(env))
	line.WriteByte('\n')
	if _, err := f.WriteString(line.String()); err != nil {
		return false, fmt.Errorf("failed to append to login script %s: %w", name, err)
	}
	return true, f.Close()
}

// HasActivation reports whether script activates env through
// "source activate", ". activate", an absolute activate script, or
// "conda activate". Scripts that do not parse are searched line by line.
func HasActivation(script []byte, env recipe.EnvironmentName) bool {
	if len(script) == 0 {
		return false
	}
	file, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(bytes.NewReader(script), "")
	if err != nil {
		return hasActivationLine(script, env)
	}

	found := false
	syntax.Walk(file, func(node syntax.Node) bool {
		if found {
			return false
		}
		call, ok := node.(*syntax.CallExpr)
		if !ok || len(call.Args) < 3 {
			return true
		}
		words := make([]string, 0, 3)
		for _, w := range call.Args[:3] {
			s, ok := literalWord(w)
			if !ok {
				return true
			}
			words = append(words, s)
		}
		found = isActivation(words, env)
		return true
	})
	return found
}

func isActivation(words []string, env recipe.EnvironmentName) bool {
	if words[2] != string(env) {
		return false
	}
	switch words[0] {
	case "source", ".":
		return path.Base(words[1]) == "activate"
	case "conda", "mamba", "micromamba":
		return words[1] == "activate"
	default:
		return false
	}
}

// literalWord returns the value of a word made of literals and quotes only.
func literalWord(w *syntax.Word) (string, bool) {
	var b strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			b.WriteString(p.Value)
		case *syntax.SglQuoted:
			b.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				lit, ok := inner.(*syntax.Lit)
				if !ok {
					return "", false
				}
				b.WriteString(lit.Value)
			}
		default:
			return "", false
		}
	}
	return b.String(), true
}

func hasActivationLine(script []byte, env recipe.EnvironmentName) bool {
	want := ActivationLine(env)
	sc := bufio.NewScanner(bytes.NewReader(script))
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == want {
			return true
		}
	}
	return false
}
