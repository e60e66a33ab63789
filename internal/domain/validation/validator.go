package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/schedule"
	"github.com/patti-j/planettogetheraiv2-sub024/pkg/logger"
)

// DefaultSlot is the over-allocation bucket size.
const DefaultSlot = schedule.Day

// Option applies a configuration option to the Validator.
type Option func(*Validator)

// WithSlotDuration sets the over-allocation bucket size. Non-positive values are ignored.
func WithSlotDuration(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.slot = d
		}
	}
}

// WithLogger sets the logger used to report recovered check failures.
func WithLogger(l logger.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// Validator runs the enabled checks over a snapshot. It holds no mutable
// state and is safe for concurrent use.
type Validator struct {
	slot   time.Duration
	logger logger.Logger
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{
		slot:   DefaultSlot,
		logger: logger.Default().Named("validator"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SlotDuration returns the configured over-allocation bucket size.
func (v *Validator) SlotDuration() time.Duration { return v.slot }

// check pairs a rule with the function that evaluates it.
type check struct {
	rule   RuleID
	policy bool
	run    func(schedule.Snapshot) []Violation
}

func (v *Validator) checks() []check {
	return []check{
		{rule: RuleNoOverlap, run: CheckOverlaps},
		{rule: RuleDependencyOrder, run: CheckDependencyOrder},
		{rule: RuleNoDependencyCycles, run: CheckDependencyCycles},
		{rule: RuleNoOverallocation, run: func(s schedule.Snapshot) []Violation { return CheckOverallocation(s, v.slot) }},
		{rule: RuleNeedDates, policy: true, run: CheckNeedDates},
	}
}

// Validate returns every violation of the enabled rules, in check order.
// Disabled or absent rules are not evaluated.
func (v *Validator) Validate(snap schedule.Snapshot, rules RuleSet) []Violation {
	strictness := rules.Strictness()
	out := []Violation{}
	for _, c := range v.checks() {
		if !rules.Enabled(c.rule) {
			continue
		}
		found := v.guard(c, snap)
		if c.policy {
			for i := range found {
				found[i].Severity = grade(found[i].Severity, strictness)
			}
		}
		out = append(out, found...)
	}
	return out
}

// guard runs one check so that a fault in it cannot hide the others.
func (v *Validator) guard(c check, snap schedule.Snapshot) (found []Violation) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error(context.Background(), "validation check failed",
				logger.String("rule", string(c.rule)),
				logger.String("panic", fmt.Sprint(r)),
			)
			found = nil
		}
	}()
	return c.run(snap)
}

// grade adjusts a policy severity for the configured strictness.
func grade(s Severity, strictness Strictness) Severity {
	if s != SeverityWarning {
		return s
	}
	switch strictness {
	case StrictnessStrict:
		return SeverityError
	case StrictnessRelaxed:
		return SeverityInfo
	}
	return s
}
