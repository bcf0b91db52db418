// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/invowk/envprov/pkg/recipe"
	"github.com/invowk/envprov/pkg/types"
)

const (
	PhaseStarted  Phase = "started"
	PhaseFinished Phase = "finished"
	PhaseFailed   Phase = "failed"
)

type (
	// Phase is the lifecycle point an Event reports.
	Phase string

	// Event is emitted to the observer around every step.
	Event struct {
		Phase   Phase
		Index   int
		Total   int
		Step    StepID
		Project recipe.ProjectName
		Command string
		// Duration is set for finished and failed events.
		Duration time.Duration
		Err      error
	}

	// Provisioner runs plans against the host.
	Provisioner struct {
		fs          afero.Fs
		receiptPath types.FilesystemPath
		observer    func(Event)
		now         func() time.Time
	}

	// Option configures a Provisioner.
	Option func(*Provisioner)
)

// WithReceipt writes the receipt to path after a successful run.
func WithReceipt(path types.FilesystemPath) Option {
	return func(p *Provisioner) {
		p.receiptPath = path
	}
}

// WithFS sets the filesystem the receipt is written to.
func WithFS(fs afero.Fs) Option {
	return func(p *Provisioner) {
		p.fs = fs
	}
}

// WithObserver registers fn to receive step events.
func WithObserver(fn func(Event)) Option {
	return func(p *Provisioner) {
		p.observer = fn
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Provisioner) {
		p.now = now
	}
}

// New creates a Provisioner.
func New(opts ...Option) *Provisioner {
	p := &Provisioner{
		fs:       afero.NewOsFs(),
		observer: func(Event) {},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the steps of plan in order. The first failing step aborts the
// run with a *StepError; steps already completed are not undone. On success
// the receipt is returned and, if configured, written.
func (p *Provisioner) Run(ctx context.Context, plan *Plan, state *State) (*Receipt, error) {
	total := len(plan.Steps)
	runStart := p.now()

	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return nil, &StepError{Step: step.ID(), Project: step.Project(), Category: step.Category(), Err: err}
		}

		ev := Event{Index: i + 1, Total: total, Step: step.ID(), Project: step.Project(), Command: step.Describe()}
		p.emit(ev, PhaseStarted, 0, nil)
		slog.Info("running step", "step", step.ID(), "project", step.Project(), "index", i+1, "total", total)
		slog.Debug("step command", "command", ev.Command)

		start := p.now()
		err := step.Run(ctx, state)
		elapsed := p.now().Sub(start)

		if err != nil {
			p.emit(ev, PhaseFailed, elapsed, err)
			slog.Error("step failed", "step", step.ID(), "project", step.Project(),
				"category", step.Category(), "duration", elapsed, "error", err)
			return nil, &StepError{Step: step.ID(), Project: step.Project(), Category: step.Category(), Err: err}
		}

		p.emit(ev, PhaseFinished, elapsed, nil)
		slog.Info("step finished", "step", step.ID(), "project", step.Project(), "duration", elapsed)
	}

	receipt, err := NewReceipt(plan, state, p.now())
	if err != nil {
		return nil, err
	}
	if p.receiptPath != "" {
		if err := WriteReceipt(p.fs, p.receiptPath, receipt); err != nil {
			return receipt, fmt.Errorf("provisioning succeeded but the receipt was not written: %w", err)
		}
		slog.Info("receipt written", "path", p.receiptPath)
	}
	slog.Info("provisioning complete", "steps", total, "duration", p.now().Sub(runStart))
	return receipt, nil
}

func (p *Provisioner) emit(ev Event, phase Phase, d time.Duration, err error) {
	ev.Phase = phase
	ev.Duration = d
	ev.Err = err
	p.observer(ev)
}
