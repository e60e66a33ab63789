// Package kpi summarizes schedule quality as a small set of comparable numbers.
package kpi

import (
	"math"

	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/schedule"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/validation"
)

// DefaultWorkdayHours is the nominal capacity of a resource per day.
const DefaultWorkdayHours = 8.0

// Metrics holds the computed KPIs. A nil field means the metric does not
// apply to the snapshot and is omitted from JSON.
type Metrics struct {
	Makespan            *int `json:"makespan,omitempty" yaml:"makespan,omitempty"`
	ResourceUtilization *int `json:"resourceUtilization,omitempty" yaml:"resourceUtilization,omitempty"`
	OnTimeDelivery      *int `json:"onTimeDelivery,omitempty" yaml:"onTimeDelivery,omitempty"`
	TotalLatenessDays   *int `json:"totalLatenessDays,omitempty" yaml:"totalLatenessDays,omitempty"`
	LateOperations      *int `json:"lateOperations,omitempty" yaml:"lateOperations,omitempty"`
}

// IsEmpty reports whether no metric applies.
func (m Metrics) IsEmpty() bool {
	return m.Makespan == nil && m.ResourceUtilization == nil && m.OnTimeDelivery == nil &&
		m.TotalLatenessDays == nil && m.LateOperations == nil
}

// Map flattens the present metrics into a name/value map.
func (m Metrics) Map() map[string]int {
	out := make(map[string]int, 5)
	put := func(k string, v *int) {
		if v != nil {
			out[k] = *v
		}
	}
	put("makespan", m.Makespan)
	put("resourceUtilization", m.ResourceUtilization)
	put("onTimeDelivery", m.OnTimeDelivery)
	put("totalLatenessDays", m.TotalLatenessDays)
	put("lateOperations", m.LateOperations)
	return out
}

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithWorkdayHours sets the capacity used for resources without their own
// HoursPerDay. Non-positive values are ignored.
func WithWorkdayHours(h float64) Option {
	return func(c *Calculator) {
		if h > 0 {
			c.workday = h
		}
	}
}

// Calculator computes Metrics. It is stateless after construction.
type Calculator struct {
	workday float64
}

// New creates a Calculator.
func New(opts ...Option) *Calculator {
	c := &Calculator{workday: DefaultWorkdayHours}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WorkdayHours returns the default per-resource daily capacity.
func (c *Calculator) WorkdayHours() float64 { return c.workday }

// Calculate returns the KPIs for snap. An empty snapshot yields empty Metrics.
func (c *Calculator) Calculate(snap schedule.Snapshot) Metrics {
	var m Metrics
	start, end, ok := snap.Span()
	if !ok {
		return m
	}

	days := int(math.Ceil(float64(end.Sub(start)) / float64(schedule.Day)))
	m.Makespan = &days

	if snap.Resources != nil && snap.Assignments != nil {
		var used float64
		for _, op := range snap.Events {
			used += op.Duration().Hours()
		}
		var perDay float64
		for _, r := range snap.Resources {
			if r.HoursPerDay > 0 {
				perDay += r.HoursPerDay
			} else {
				perDay += c.workday
			}
		}
		if capacity := perDay * float64(days); capacity > 0 {
			m.ResourceUtilization = intPtr(round(used / capacity * 100))
		}
	}

	var withNeed, onTime, lateDays, late int
	for _, op := range snap.Events {
		if op.NeedDate == nil {
			continue
		}
		withNeed++
		if d := validation.DaysLate(op); d > 0 {
			late++
			lateDays += d
		} else {
			onTime++
		}
	}
	if withNeed > 0 {
		m.OnTimeDelivery = intPtr(round(float64(onTime) / float64(withNeed) * 100))
		m.TotalLatenessDays = &lateDays
		m.LateOperations = &late
	}
	return m
}

// round rounds half away from zero, the way percentages are displayed.
func round(f float64) int { return int(math.Round(f)) }

func intPtr(v int) *int { return &v }
