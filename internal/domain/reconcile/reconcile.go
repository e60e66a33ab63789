// Package reconcile applies an optimizer's proposal to the live schedule as a
// single all-or-nothing batch.
package reconcile

import (
	"context"
	"fmt"

	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/schedule"
	"github.com/patti-j/planettogetheraiv2-sub024/pkg/logger"
)

// LiveModel is the mutation surface of the schedule the renderer reads.
// FindEvent returns a pointer into the model; writes through it are visible
// once refresh resumes. The Replace methods return the set they displaced.
type LiveModel interface {
	SuspendRefresh()
	ResumeRefresh()
	FindEvent(id schedule.ID) (*schedule.Operation, bool)
	ReplaceAssignments([]schedule.Assignment) ([]schedule.Assignment, error)
	ReplaceDependencies([]schedule.Dependency) ([]schedule.Dependency, error)
}

// Report describes what a successful apply changed.
type Report struct {
	EventsUpdated        int  `json:"eventsUpdated"`
	EventsSkipped        int  `json:"eventsSkipped"`
	AssignmentsReplaced  bool `json:"assignmentsReplaced"`
	Assignments          int  `json:"assignments"`
	DependenciesReplaced bool `json:"dependenciesReplaced"`
	Dependencies         int  `json:"dependencies"`
}

// Option applies a configuration option to the Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger used for apply diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// Reconciler is the only writer of optimizer output into a LiveModel.
// Callers serialize Apply calls per model.
type Reconciler struct {
	logger logger.Logger
}

// New creates a Reconciler.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{logger: logger.Default().Named("reconciler")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply reports whether the proposal was applied in full. On false the model
// is left as it was.
func (r *Reconciler) Apply(ctx context.Context, model LiveModel, p *schedule.Proposal) bool {
	_, err := r.ApplyWithReport(ctx, model, p)
	return err == nil
}

// plan is a fully decoded proposal, ready to write.
type plan struct {
	events       []schedule.ProposedEvent
	assignments  []schedule.Assignment
	dependencies []schedule.Dependency
}

func prepare(p *schedule.Proposal) (plan, error) {
	var pl plan
	for _, e := range p.Events {
		if err := e.Validate(); err != nil {
			return plan{}, err
		}
		pl.events = append(pl.events, e)
	}
	for _, pa := range p.Assignments {
		a, err := pa.Assignment()
		if err != nil {
			return plan{}, err
		}
		pl.assignments = append(pl.assignments, a)
	}
	for _, pd := range p.Dependencies {
		d, err := pd.Dependency()
		if err != nil {
			return plan{}, err
		}
		pl.dependencies = append(pl.dependencies, d)
	}
	return pl, nil
}

// journal records what a batch changed so it can be undone.
type journal struct {
	events       []savedEvent
	assignments  []schedule.Assignment
	replacedA    bool
	dependencies []schedule.Dependency
	replacedD    bool
}

type savedEvent struct {
	ptr  *schedule.Operation
	prev schedule.Operation
}

func (j *journal) rollback(model LiveModel) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: rollback: %v", ErrApplyPanic, r)
		}
	}()
	if j.replacedD {
		if _, derr := model.ReplaceDependencies(j.dependencies); derr != nil {
			err = derr
		}
	}
	if j.replacedA {
		if _, aerr := model.ReplaceAssignments(j.assignments); aerr != nil && err == nil {
			err = aerr
		}
	}
	for i := len(j.events) - 1; i >= 0; i-- {
		*j.events[i].ptr = j.events[i].prev
	}
	return err
}

func resume(model LiveModel) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: resume refresh: %v", ErrApplyPanic, r)
		}
	}()
	model.ResumeRefresh()
	return nil
}

// ApplyWithReport applies p to model and describes what changed. Any error
// leaves the model unchanged. Refresh is resumed exactly once whenever it was
// suspended.
func (r *Reconciler) ApplyWithReport(ctx context.Context, model LiveModel, p *schedule.Proposal) (rep Report, err error) {
	if model == nil {
		return rep, ErrNoModel
	}
	if p == nil {
		return rep, ErrNothingToApply
	}
	if cerr := ctx.Err(); cerr != nil {
		return rep, cerr
	}
	pl, err := prepare(p)
	if err != nil {
		r.logger.Warn(ctx, "proposal rejected", logger.Error(err))
		return rep, err
	}

	var (
		j         journal
		suspended bool
	)
	defer func() {
		rec := recover()
		if rec != nil {
			err = fmt.Errorf("%w: %v", ErrApplyPanic, rec)
		}
		if err != nil && suspended {
			if rerr := j.rollback(model); rerr != nil {
				r.logger.Error(ctx, "rollback incomplete", logger.Error(rerr))
			}
		}
		if suspended {
			if rerr := resume(model); rerr != nil {
				r.logger.Error(ctx, "resume refresh failed", logger.Error(rerr))
			}
		}
		if err != nil {
			r.logger.Error(ctx, "apply failed", logger.Error(err))
			rep = Report{}
		}
	}()

	model.SuspendRefresh()
	suspended = true

	for _, e := range pl.events {
		op, ok := model.FindEvent(e.ID)
		if !ok || op == nil {
			rep.EventsSkipped++
			continue
		}
		j.events = append(j.events, savedEvent{ptr: op, prev: *op})
		op.StartDate = e.StartDate
		op.EndDate = e.EndDate
		if e.ResourceID != "" {
			op.ResourceID = e.ResourceID
		}
		rep.EventsUpdated++
	}

	if len(pl.assignments) > 0 {
		prev, aerr := model.ReplaceAssignments(pl.assignments)
		if aerr != nil {
			return rep, fmt.Errorf("replace assignments: %w", aerr)
		}
		j.assignments, j.replacedA = prev, true
		rep.AssignmentsReplaced, rep.Assignments = true, len(pl.assignments)
	}

	if len(pl.dependencies) > 0 {
		prev, derr := model.ReplaceDependencies(pl.dependencies)
		if derr != nil {
			return rep, fmt.Errorf("replace dependencies: %w", derr)
		}
		j.dependencies, j.replacedD = prev, true
		rep.DependenciesReplaced, rep.Dependencies = true, len(pl.dependencies)
	}

	if rep.EventsSkipped > 0 {
		r.logger.Debug(ctx, "proposed events not in live model", logger.Int("skipped", rep.EventsSkipped))
	}
	return rep, nil
}
