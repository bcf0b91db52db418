// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/invowk/envprov/internal/provision"
	"github.com/invowk/envprov/internal/verify"
	"github.com/invowk/envprov/pkg/types"
)

func newVerifyCommand(app *App) *cobra.Command {
	var (
		flags   recipeFlags
		receipt string
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that this host matches the recipe",
		Long: `Check a provisioned host: checkout revisions, pruned fixtures, the
environment's precedence on the search path, the login activation and the
editable installs. Commits are compared against the receipt when one exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := app.loadRecipe(&flags)
			if err != nil {
				return err
			}

			path := types.FilesystemPath(app.loadedConfig().Provision.ReceiptPath)
			if cmd.Flags().Changed("receipt") {
				path = types.FilesystemPath(receipt)
			}
			rec, err := app.readReceipt(path)
			if err != nil {
				return err
			}

			// Without a receipt the environment is located through the package manager.
			s, err := app.newSession(r, rec == nil)
			if err != nil {
				return err
			}
			checks, err := verify.New(s.tools, s.state).Run(cmd.Context(), r, rec)
			if err != nil {
				return failureError(err)
			}

			for _, c := range checks {
				mark := SuccessStyle.Render("✓")
				if !c.Passed {
					mark = ErrorStyle.Render("✗")
				}
				fmt.Fprintf(app.stdout, "%s %s %s\n", mark, c.Label(), VerboseStyle.Render(c.Detail))
			}
			if err := verify.Err(checks); err != nil {
				return failureError(err)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&receipt, "receipt", "", "receipt to compare against (default from provision.receipt_path)")
	return cmd
}

// readReceipt returns the receipt at path, or nil when path is empty or no
// receipt was written.
func (a *App) readReceipt(path types.FilesystemPath) (*provision.Receipt, error) {
	if path == "" {
		return nil, nil
	}
	rec, err := provision.ReadReceipt(a.FS, path)
	if errors.Is(err, provision.ErrReceiptNotFound) {
		slog.Debug("no receipt, comparing against requested revisions", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, failureError(err)
	}
	return rec, nil
}
