// Package schedule contains the in-memory scheduling model shared by the
// validator, the KPI calculator and the reconciler.
package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Day is the calendar unit used for lateness, makespan and default lag.
const Day = 24 * time.Hour

// DefaultUnits is the share of a resource an assignment takes when none is given.
const DefaultUnits = 100.0

// ID identifies operations and resources. Upstream systems hand out both
// integer and string ids, so ID accepts either on input and always renders
// as a JSON string.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// UnmarshalYAML accepts scalar ids of any YAML type.
func (id *ID) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*id = ""
	case string:
		*id = ID(v)
	case int:
		*id = ID(strconv.Itoa(v))
	case float64:
		*id = ID(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		return fmt.Errorf("id must be a scalar, got %T", raw)
	}
	return nil
}

// String implements fmt.Stringer.
func (id ID) String() string { return string(id) }

// Operation is a schedulable unit of work (an "event" on the scheduler).
type Operation struct {
	ID         ID         `json:"id" yaml:"id"`
	Name       string     `json:"name,omitempty" yaml:"name,omitempty"`
	StartDate  time.Time  `json:"startDate" yaml:"startDate"`
	EndDate    time.Time  `json:"endDate" yaml:"endDate"`
	NeedDate   *time.Time `json:"needDate,omitempty" yaml:"needDate,omitempty"`
	ResourceID ID         `json:"resourceId,omitempty" yaml:"resourceId,omitempty"`
}

// Duration returns the scheduled length of the operation.
func (o Operation) Duration() time.Duration { return o.EndDate.Sub(o.StartDate) }

// Valid reports whether the operation has an id and a positive interval.
func (o Operation) Valid() bool {
	return o.ID != "" && o.EndDate.After(o.StartDate)
}

// Label is the display name, falling back to the id.
func (o Operation) Label() string {
	if o.Name != "" {
		return o.Name
	}
	return string(o.ID)
}

// Intersects reports whether the operation overlaps the half-open window [from, to).
func (o Operation) Intersects(from, to time.Time) bool {
	return o.StartDate.Before(to) && o.EndDate.After(from)
}

// Resource is a capacity-bearing entity such as a machine or work center.
type Resource struct {
	ID   ID     `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// HoursPerDay overrides the nominal workday used for utilization. Zero means unset.
	HoursPerDay float64 `json:"hoursPerDay,omitempty" yaml:"hoursPerDay,omitempty"`
}

// Label is the display name, falling back to the id.
func (r Resource) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return string(r.ID)
}

// Assignment links an operation to a resource with a share of its capacity.
type Assignment struct {
	EventID    ID      `json:"eventId" yaml:"eventId"`
	ResourceID ID      `json:"resourceId" yaml:"resourceId"`
	Units      float64 `json:"units" yaml:"units"`
}

// UnmarshalJSON defaults Units to DefaultUnits when the field is absent.
func (a *Assignment) UnmarshalJSON(data []byte) error {
	type alias Assignment
	aux := struct {
		*alias
		Units *float64 `json:"units"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.Units = DefaultUnits
	if aux.Units != nil {
		a.Units = *aux.Units
	}
	return nil
}

// UnmarshalYAML defaults Units to DefaultUnits when the field is absent.
func (a *Assignment) UnmarshalYAML(unmarshal func(any) error) error {
	var aux struct {
		EventID    ID       `yaml:"eventId"`
		ResourceID ID       `yaml:"resourceId"`
		Units      *float64 `yaml:"units"`
	}
	if err := unmarshal(&aux); err != nil {
		return err
	}
	a.EventID = aux.EventID
	a.ResourceID = aux.ResourceID
	a.Units = DefaultUnits
	if aux.Units != nil {
		a.Units = *aux.Units
	}
	return nil
}

// DependencyType discriminates precedence constraints. Values follow the
// scheduler widget numbering.
type DependencyType int

const (
	StartToStart DependencyType = 0
	StartToEnd   DependencyType = 1
	EndToStart   DependencyType = 2 // Finish-to-Start
	EndToEnd     DependencyType = 3
)

// DefaultDependencyType is used when a proposal omits the type.
const DefaultDependencyType = EndToStart

// Valid reports whether t is one of the known dependency types.
func (t DependencyType) Valid() bool { return t >= StartToStart && t <= EndToEnd }

func (t DependencyType) String() string {
	switch t {
	case StartToStart:
		return "start-to-start"
	case StartToEnd:
		return "start-to-end"
	case EndToStart:
		return "finish-to-start"
	case EndToEnd:
		return "finish-to-finish"
	default:
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

// Lag units accepted on dependencies.
const (
	LagUnitMinute = "minute"
	LagUnitHour   = "hour"
	LagUnitDay    = "day"
)

// Dependency is a directed precedence edge between two operations.
type Dependency struct {
	From ID             `json:"from" yaml:"from"`
	To   ID             `json:"to" yaml:"to"`
	Type DependencyType `json:"type" yaml:"type"`
	// Lag is a signed offset in LagUnit applied after the constraint.
	Lag     float64 `json:"lag" yaml:"lag"`
	LagUnit string  `json:"lagUnit,omitempty" yaml:"lagUnit,omitempty"`
}

// LagDuration converts Lag into a duration. Unknown or empty units count as days.
func (d Dependency) LagDuration() time.Duration {
	unit := Day
	switch d.LagUnit {
	case LagUnitMinute:
		unit = time.Minute
	case LagUnitHour:
		unit = time.Hour
	}
	return time.Duration(d.Lag * float64(unit))
}

// Snapshot is an immutable view of the whole model. A nil slice means the
// collection is missing, which every consumer tolerates.
type Snapshot struct {
	Events       []Operation  `json:"events" yaml:"events"`
	Resources    []Resource   `json:"resources" yaml:"resources"`
	Assignments  []Assignment `json:"assignments" yaml:"assignments"`
	Dependencies []Dependency `json:"dependencies" yaml:"dependencies"`
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Resources:    cloneSlice(s.Resources),
		Assignments:  cloneSlice(s.Assignments),
		Dependencies: cloneSlice(s.Dependencies),
	}
	if s.Events != nil {
		out.Events = make([]Operation, len(s.Events))
		for i, op := range s.Events {
			if op.NeedDate != nil {
				nd := *op.NeedDate
				op.NeedDate = &nd
			}
			out.Events[i] = op
		}
	}
	return out
}

// EventIndex maps operation ids to their position in Events. Later
// duplicates win, matching how the live model resolves ids.
func (s Snapshot) EventIndex() map[ID]int {
	idx := make(map[ID]int, len(s.Events))
	for i, op := range s.Events {
		idx[op.ID] = i
	}
	return idx
}

// ResourceIndex maps resource ids to their position in Resources.
func (s Snapshot) ResourceIndex() map[ID]int {
	idx := make(map[ID]int, len(s.Resources))
	for i, r := range s.Resources {
		idx[r.ID] = i
	}
	return idx
}

// Span returns the earliest start and latest end across all operations.
// ok is false when there are no operations.
func (s Snapshot) Span() (start, end time.Time, ok bool) {
	for i, op := range s.Events {
		if i == 0 || op.StartDate.Before(start) {
			start = op.StartDate
		}
		if i == 0 || op.EndDate.After(end) {
			end = op.EndDate
		}
	}
	return start, end, len(s.Events) > 0
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
