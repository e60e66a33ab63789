// Package validation checks a schedule snapshot against physical and policy
// rules and reports violations as data.
package validation

import (
	"fmt"
	"strings"
)

// RuleID identifies a validation rule.
type RuleID string

// Known rules.
const (
	RuleNoOverlap          RuleID = "no_overlap"
	RuleNoOverallocation   RuleID = "no_overallocation"
	RuleNeedDates          RuleID = "need_dates"
	RuleDependencyOrder    RuleID = "dependency_order"
	RuleNoDependencyCycles RuleID = "no_dependency_cycles"
)

// Severity grades a violation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Strictness controls how policy violations are graded.
type Strictness string

const (
	StrictnessRelaxed  Strictness = "relaxed"
	StrictnessModerate Strictness = "moderate"
	StrictnessStrict   Strictness = "strict"
)

// Valid reports whether s is a known strictness. Empty counts as moderate.
func (s Strictness) Valid() bool {
	switch s {
	case "", StrictnessRelaxed, StrictnessModerate, StrictnessStrict:
		return true
	}
	return false
}

// ParseStrictness parses a case-insensitive strictness name.
func ParseStrictness(s string) (Strictness, error) {
	st := Strictness(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStrictness, s)
	}
	if st == "" {
		st = StrictnessModerate
	}
	return st, nil
}

// Rule is one configured rule with its enabled flag.
type Rule struct {
	ID      RuleID `json:"id" yaml:"id"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// RuleGroup is an ordered list of rules in one category.
type RuleGroup []Rule

// Enabled reports whether id is present and enabled in the group.
func (g RuleGroup) Enabled(id RuleID) bool {
	for _, r := range g {
		if r.ID == id && r.Enabled {
			return true
		}
	}
	return false
}

// PhysicalRules are constraints the real world cannot break.
type PhysicalRules struct {
	General  RuleGroup `json:"general,omitempty" yaml:"general,omitempty"`
	Resource RuleGroup `json:"resource,omitempty" yaml:"resource,omitempty"`
}

// PolicyRules are business preferences.
type PolicyRules struct {
	BusinessRules RuleGroup  `json:"businessRules,omitempty" yaml:"businessRules,omitempty"`
	Strictness    Strictness `json:"strictness,omitempty" yaml:"strictness,omitempty"`
}

// RuleSet is the full validation configuration. A nil category disables
// every rule in it.
type RuleSet struct {
	Physical *PhysicalRules `json:"physical,omitempty" yaml:"physical,omitempty"`
	Policy   *PolicyRules   `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// Enabled reports whether id is enabled in the group it belongs to.
func (rs RuleSet) Enabled(id RuleID) bool {
	switch id {
	case RuleNoOverlap, RuleDependencyOrder, RuleNoDependencyCycles:
		return rs.Physical != nil && rs.Physical.General.Enabled(id)
	case RuleNoOverallocation:
		return rs.Physical != nil && rs.Physical.Resource.Enabled(id)
	case RuleNeedDates:
		return rs.Policy != nil && rs.Policy.BusinessRules.Enabled(id)
	}
	return false
}

// Strictness returns the configured policy strictness, moderate by default.
func (rs RuleSet) Strictness() Strictness {
	if rs.Policy == nil || rs.Policy.Strictness == "" {
		return StrictnessModerate
	}
	return rs.Policy.Strictness
}

// Rules builds a RuleSet with the given rules enabled, each placed in its
// canonical group.
func Rules(strictness Strictness, ids ...RuleID) RuleSet {
	rs := RuleSet{
		Physical: &PhysicalRules{},
		Policy:   &PolicyRules{Strictness: strictness},
	}
	for _, id := range ids {
		r := Rule{ID: id, Enabled: true}
		switch id {
		case RuleNoOverallocation:
			rs.Physical.Resource = append(rs.Physical.Resource, r)
		case RuleNeedDates:
			rs.Policy.BusinessRules = append(rs.Policy.BusinessRules, r)
		default:
			rs.Physical.General = append(rs.Physical.General, r)
		}
	}
	return rs
}

// AllRules enables every known rule.
func AllRules(strictness Strictness) RuleSet {
	return Rules(strictness, RuleNoOverlap, RuleDependencyOrder, RuleNoDependencyCycles, RuleNoOverallocation, RuleNeedDates)
}

// Violation is one broken rule instance.
type Violation struct {
	Type             RuleID   `json:"type" yaml:"type"`
	Severity         Severity `json:"severity" yaml:"severity"`
	Message          string   `json:"message" yaml:"message"`
	AffectedEntities []string `json:"affectedEntities,omitempty" yaml:"affectedEntities,omitempty"`
}

// CountBySeverity tallies violations per severity.
func CountBySeverity(vs []Violation) map[Severity]int {
	out := make(map[Severity]int, 3)
	for _, v := range vs {
		out[v.Severity]++
	}
	return out
}

// Filter returns the violations of the given type.
func Filter(vs []Violation, id RuleID) []Violation {
	var out []Violation
	for _, v := range vs {
		if v.Type == id {
			out = append(out, v)
		}
	}
	return out
}
