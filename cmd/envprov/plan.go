// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"
)

func newPlanCommand(app *App) *cobra.Command {
	var flags recipeFlags
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the steps provisioning would run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := app.loadRecipe(&flags)
			if err != nil {
				return err
			}
			s, err := app.newSession(r, false)
			if err != nil {
				return err
			}
			printPlan(app.stdout, s.plan)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
