// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/invowk/envprov/internal/issue"
	"github.com/invowk/envprov/internal/preflight"
	"github.com/invowk/envprov/internal/provision"
	"github.com/invowk/envprov/pkg/recipe"
	"github.com/invowk/envprov/pkg/types"
)

type provisionOptions struct {
	recipe        recipeFlags
	dryRun        bool
	skipPreflight bool
	receipt       string
}

func newProvisionCommand(app *App) *cobra.Command {
	var opts provisionOptions
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision the environment on this host",
		Long: `Run every step of the recipe against this host.

Revisions are resolved before the first step runs, so a misspelled branch or
tag aborts before anything is installed. The first failing step stops the
run; completed steps are not undone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runProvision(cmd, &opts)
		},
	}

	opts.recipe.register(cmd)
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the steps without running them")
	cmd.Flags().BoolVar(&opts.skipPreflight, "skip-preflight", false, "do not resolve revisions before the first step")
	cmd.Flags().StringVar(&opts.receipt, "receipt", "", "where to write the receipt (default from provision.receipt_path; empty disables)")

	return cmd
}

func (a *App) runProvision(cmd *cobra.Command, opts *provisionOptions) error {
	ctx := cmd.Context()
	r, err := a.loadRecipe(&opts.recipe)
	if err != nil {
		return err
	}

	if opts.dryRun {
		s, err := a.newSession(r, false)
		if err != nil {
			return err
		}
		printPlan(a.stdout, s.plan)
		return nil
	}

	s, err := a.newSession(r, true)
	if err != nil {
		return err
	}

	cfg := a.loadedConfig()
	if cfg.Provision.Preflight && !opts.skipPreflight {
		if err := a.runPreflight(ctx, s); err != nil {
			return err
		}
	} else {
		slog.Debug("preflight skipped")
	}

	receiptPath := types.FilesystemPath(cfg.Provision.ReceiptPath)
	if cmd.Flags().Changed("receipt") {
		receiptPath = types.FilesystemPath(opts.receipt)
	}

	p := provision.New(
		provision.WithReceipt(receiptPath),
		provision.WithFS(a.FS),
		provision.WithClock(a.Now),
		provision.WithObserver(stepPrinter(a.stdout)),
	)
	receipt, err := p.Run(ctx, s.plan, s.state)
	if err != nil {
		if receipt == nil {
			return failureError(err)
		}
		fmt.Fprintln(a.stderr, WarningStyle.Render("Warning: ")+err.Error())
	}

	fmt.Fprintln(a.stdout)
	fmt.Fprintf(a.stdout, "%s Environment %s provisioned at %s\n",
		SuccessStyle.Render("✓"), TitleStyle.Render(r.Environment.Name.String()), s.state.EnvPrefix)
	for _, proj := range receipt.Projects {
		fmt.Fprintf(a.stdout, "  %s %s\n", proj.Name, VerboseStyle.Render(shortCommit(proj.Commit)))
	}
	if receipt.Environment.HookAdded {
		fmt.Fprintf(a.stdout, "  activation added to %s\n", receipt.Environment.LoginScript)
	}
	if receiptPath != "" && err == nil {
		fmt.Fprintf(a.stdout, "  receipt written to %s\n", receiptPath)
	}
	return nil
}

// runPreflight resolves every selector and records the commits so the
// checkout step can confirm it landed on them.
func (a *App) runPreflight(ctx context.Context, s *session) error {
	resolver := a.newResolver(ctx, s.tools.Git, s.state.Environ)
	results, err := preflight.Check(ctx, s.plan.Recipe, resolver)
	if err != nil {
		return failureError(preflightError(err))
	}
	s.state.Expected = preflight.Commits(results)
	for _, res := range results {
		fmt.Fprintf(a.stdout, "%s %s %s %s\n", SuccessStyle.Render("✓"), res.Project,
			CmdStyle.Render(res.Revision.OrDefault().String()), VerboseStyle.Render(shortCommit(res.Commit)))
	}
	return nil
}

func preflightError(err error) error {
	ec := issue.NewErrorContext().WithOperation("resolve revisions")
	var re *preflight.RevisionError
	if errors.As(err, &re) {
		ec = ec.WithResource(fmt.Sprintf("%s@%s", re.Project, re.Revision.OrDefault())).
			WithSuggestion(fmt.Sprintf("List the available branches and tags: git ls-remote %s", re.Repository)).
			WithSuggestion("Pass a different revision with --weather-rev, --arco-rev or --rev <project>=<revision>")
	} else {
		ec = ec.WithSuggestion("Check network access to the repositories, or pass --skip-preflight")
	}
	return ec.Wrap(err).BuildError()
}

// stepPrinter renders provisioning events as one status line per step.
func stepPrinter(w io.Writer) func(provision.Event) {
	return func(ev provision.Event) {
		label := ev.Step.String()
		if ev.Project != "" {
			label += " " + ev.Project.String()
		}
		counter := fmt.Sprintf("[%d/%d]", ev.Index, ev.Total)

		switch ev.Phase {
		case provision.PhaseStarted:
			fmt.Fprintf(w, "%s %s\n", stepLabelStyle.Render(counter+" "+label), CmdStyle.Render(ev.Command))
		case provision.PhaseFinished:
			fmt.Fprintf(w, "%s %s %s\n", SuccessStyle.Render("✓"), label, VerboseStyle.Render(ev.Duration.String()))
		case provision.PhaseFailed:
			fmt.Fprintf(w, "%s %s %s\n", ErrorStyle.Render("✗"), label, VerboseStyle.Render(ev.Duration.String()))
		}
	}
}

func printPlan(w io.Writer, plan *provision.Plan) {
	fmt.Fprintf(w, "%s %s\n\n", TitleStyle.Render("Plan for environment"), plan.Recipe.Environment.Name)
	fmt.Fprint(w, plan.Describe())
	for _, p := range plan.Recipe.Projects {
		fmt.Fprintf(w, "\n%s %s\n", SubtitleStyle.Render(p.Name.String()+":"), revisionLine(p))
	}
}

func revisionLine(p recipe.Project) string {
	return fmt.Sprintf("%s @ %s -> %s", p.Repository, p.Revision.OrDefault(), p.CheckoutDir)
}

func shortCommit(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
