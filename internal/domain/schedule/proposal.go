package schedule

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedProposal marks a proposed item that cannot be applied.
var ErrMalformedProposal = errors.New("malformed proposal")

// ProposedEvent is the new timing an optimizer suggests for an existing operation.
type ProposedEvent struct {
	ID         ID        `json:"id" yaml:"id"`
	StartDate  time.Time `json:"startDate" yaml:"startDate"`
	EndDate    time.Time `json:"endDate" yaml:"endDate"`
	ResourceID ID        `json:"resourceId,omitempty" yaml:"resourceId,omitempty"`
}

// Validate checks the event can be applied.
func (e ProposedEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: event without id", ErrMalformedProposal)
	}
	if !e.EndDate.After(e.StartDate) {
		return fmt.Errorf("%w: event %s ends at or before its start", ErrMalformedProposal, e.ID)
	}
	return nil
}

// ProposedAssignment is an assignment as returned by an optimizer. Units may be omitted.
type ProposedAssignment struct {
	EventID    ID       `json:"eventId" yaml:"eventId"`
	ResourceID ID       `json:"resourceId" yaml:"resourceId"`
	Units      *float64 `json:"units,omitempty" yaml:"units,omitempty"`
}

// Assignment resolves defaults and validates the proposal.
func (a ProposedAssignment) Assignment() (Assignment, error) {
	if a.EventID == "" || a.ResourceID == "" {
		return Assignment{}, fmt.Errorf("%w: assignment needs eventId and resourceId", ErrMalformedProposal)
	}
	units := DefaultUnits
	if a.Units != nil {
		units = *a.Units
	}
	if units < 0 || units > 100 {
		return Assignment{}, fmt.Errorf("%w: assignment %s/%s units %v out of range", ErrMalformedProposal, a.EventID, a.ResourceID, units)
	}
	return Assignment{EventID: a.EventID, ResourceID: a.ResourceID, Units: units}, nil
}

// ProposedDependency is a dependency as returned by an optimizer. Type and lag may be omitted.
type ProposedDependency struct {
	From    ID              `json:"from" yaml:"from"`
	To      ID              `json:"to" yaml:"to"`
	Type    *DependencyType `json:"type,omitempty" yaml:"type,omitempty"`
	Lag     *float64        `json:"lag,omitempty" yaml:"lag,omitempty"`
	LagUnit string          `json:"lagUnit,omitempty" yaml:"lagUnit,omitempty"`
}

// Dependency resolves defaults and validates the proposal.
func (d ProposedDependency) Dependency() (Dependency, error) {
	if d.From == "" || d.To == "" {
		return Dependency{}, fmt.Errorf("%w: dependency needs from and to", ErrMalformedProposal)
	}
	dep := Dependency{From: d.From, To: d.To, Type: DefaultDependencyType, LagUnit: d.LagUnit}
	if d.Type != nil {
		if !d.Type.Valid() {
			return Dependency{}, fmt.Errorf("%w: dependency %s->%s has type %s", ErrMalformedProposal, d.From, d.To, *d.Type)
		}
		dep.Type = *d.Type
	}
	if d.Lag != nil {
		dep.Lag = *d.Lag
	}
	return dep, nil
}

// Proposal is the schedule an optimizer wants applied to the live model.
type Proposal struct {
	Events       []ProposedEvent      `json:"events,omitempty" yaml:"events,omitempty"`
	Assignments  []ProposedAssignment `json:"assignments,omitempty" yaml:"assignments,omitempty"`
	Dependencies []ProposedDependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// ProposalFrom builds a proposal that would reproduce snap exactly.
func ProposalFrom(snap Snapshot) *Proposal {
	p := &Proposal{}
	for _, op := range snap.Events {
		p.Events = append(p.Events, ProposedEvent{ID: op.ID, StartDate: op.StartDate, EndDate: op.EndDate, ResourceID: op.ResourceID})
	}
	for _, a := range snap.Assignments {
		units := a.Units
		p.Assignments = append(p.Assignments, ProposedAssignment{EventID: a.EventID, ResourceID: a.ResourceID, Units: &units})
	}
	for _, d := range snap.Dependencies {
		typ, lag := d.Type, d.Lag
		p.Dependencies = append(p.Dependencies, ProposedDependency{From: d.From, To: d.To, Type: &typ, Lag: &lag, LagUnit: d.LagUnit})
	}
	return p
}
