package validation

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/schedule"
)

// CheckOverlaps reports operations that share a resource and overlap in time.
// Operations on a resource are sorted by start (ties by id) and each adjacent
// pair is compared: previous end after next start is an overlap.
func CheckOverlaps(snap schedule.Snapshot) []Violation {
	if snap.Events == nil || snap.Assignments == nil {
		return nil
	}
	events := snap.EventIndex()
	resources := snap.ResourceIndex()

	var order []schedule.ID
	byResource := make(map[schedule.ID][]schedule.Operation)
	seen := make(map[[2]schedule.ID]bool)
	for _, a := range snap.Assignments {
		i, ok := events[a.EventID]
		if !ok {
			continue
		}
		key := [2]schedule.ID{a.ResourceID, a.EventID}
		if seen[key] {
			continue
		}
		seen[key] = true
		if _, ok := byResource[a.ResourceID]; !ok {
			order = append(order, a.ResourceID)
		}
		byResource[a.ResourceID] = append(byResource[a.ResourceID], snap.Events[i])
	}

	var out []Violation
	for _, rid := range order {
		ops := byResource[rid]
		sort.SliceStable(ops, func(i, j int) bool {
			if !ops[i].StartDate.Equal(ops[j].StartDate) {
				return ops[i].StartDate.Before(ops[j].StartDate)
			}
			return ops[i].ID < ops[j].ID
		})

		label := resourceLabel(snap, resources, rid)
		for i := 1; i < len(ops); i++ {
			prev, next := ops[i-1], ops[i]
			if !prev.EndDate.After(next.StartDate) {
				continue
			}
			out = append(out, Violation{
				Type:             RuleNoOverlap,
				Severity:         SeverityError,
				Message:          fmt.Sprintf("%s and %s overlap on resource %s", prev.Label(), next.Label(), label),
				AffectedEntities: []string{string(prev.ID), string(next.ID), string(rid)},
			})
		}
	}
	return out
}

// CheckOverallocation buckets the schedule span into slots anchored at the
// earliest start and reports each resource/slot whose summed units exceed 100.
func CheckOverallocation(snap schedule.Snapshot, slot time.Duration) []Violation {
	if snap.Events == nil || snap.Assignments == nil || snap.Resources == nil {
		return nil
	}
	if slot <= 0 {
		slot = DefaultSlot
	}
	origin, _, ok := snap.Span()
	if !ok {
		return nil
	}
	events := snap.EventIndex()
	resources := snap.ResourceIndex()

	type cell struct {
		slot     int64
		resource schedule.ID
	}
	loads := make(map[cell]float64)
	rank := make(map[schedule.ID]int)
	for _, a := range snap.Assignments {
		i, ok := events[a.EventID]
		if !ok {
			continue
		}
		op := snap.Events[i]
		if !op.EndDate.After(op.StartDate) {
			continue
		}
		if _, ok := rank[a.ResourceID]; !ok {
			rank[a.ResourceID] = len(rank)
		}
		first := int64(op.StartDate.Sub(origin) / slot)
		last := int64(math.Ceil(float64(op.EndDate.Sub(origin))/float64(slot))) - 1
		for s := first; s <= last; s++ {
			loads[cell{slot: s, resource: a.ResourceID}] += a.Units
		}
	}

	cells := make([]cell, 0, len(loads))
	for c, load := range loads {
		if load > 100 {
			cells = append(cells, c)
		}
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].slot != cells[j].slot {
			return cells[i].slot < cells[j].slot
		}
		return rank[cells[i].resource] < rank[cells[j].resource]
	})

	var out []Violation
	messages := make(map[string]bool, len(cells))
	for _, c := range cells {
		start := origin.Add(time.Duration(c.slot) * slot)
		load := loads[c]
		msg := fmt.Sprintf("%s at %s (%s%% allocated)",
			resourceLabel(snap, resources, c.resource),
			start.UTC().Format(time.RFC3339),
			strconv.FormatFloat(load, 'f', -1, 64),
		)
		if messages[msg] {
			continue
		}
		messages[msg] = true
		out = append(out, Violation{
			Type:             RuleNoOverallocation,
			Severity:         SeverityError,
			Message:          msg,
			AffectedEntities: []string{string(c.resource)},
		})
	}
	return out
}

// CheckNeedDates reports operations that end after their need date, with the
// lateness rounded up to whole days.
func CheckNeedDates(snap schedule.Snapshot) []Violation {
	var out []Violation
	for _, op := range snap.Events {
		if op.NeedDate == nil || !op.EndDate.After(*op.NeedDate) {
			continue
		}
		days := DaysLate(op)
		unit := "days"
		if days == 1 {
			unit = "day"
		}
		out = append(out, Violation{
			Type:             RuleNeedDates,
			Severity:         SeverityWarning,
			Message:          fmt.Sprintf("%s (%d %s late)", op.Label(), days, unit),
			AffectedEntities: []string{string(op.ID)},
		})
	}
	return out
}

// DaysLate returns ceil((end - need) / 1 day), or 0 when on time or without a need date.
func DaysLate(op schedule.Operation) int {
	if op.NeedDate == nil || !op.EndDate.After(*op.NeedDate) {
		return 0
	}
	return int(math.Ceil(float64(op.EndDate.Sub(*op.NeedDate)) / float64(schedule.Day)))
}

// CheckDependencyOrder reports dependencies whose successor does not respect
// the edge type and lag. Edges with unknown endpoints are skipped.
func CheckDependencyOrder(snap schedule.Snapshot) []Violation {
	if snap.Events == nil || snap.Dependencies == nil {
		return nil
	}
	events := snap.EventIndex()

	var out []Violation
	for _, d := range snap.Dependencies {
		fi, okFrom := events[d.From]
		ti, okTo := events[d.To]
		if !okFrom || !okTo || !d.Type.Valid() {
			continue
		}
		from, to := snap.Events[fi], snap.Events[ti]

		var anchor, subject time.Time
		switch d.Type {
		case schedule.StartToStart:
			anchor, subject = from.StartDate, to.StartDate
		case schedule.StartToEnd:
			anchor, subject = from.StartDate, to.EndDate
		case schedule.EndToStart:
			anchor, subject = from.EndDate, to.StartDate
		case schedule.EndToEnd:
			anchor, subject = from.EndDate, to.EndDate
		}
		earliest := anchor.Add(d.LagDuration())
		if !subject.Before(earliest) {
			continue
		}
		out = append(out, Violation{
			Type:     RuleDependencyOrder,
			Severity: SeverityError,
			Message: fmt.Sprintf("%s violates %s dependency on %s by %s",
				to.Label(), d.Type, from.Label(), earliest.Sub(subject)),
			AffectedEntities: []string{string(d.From), string(d.To)},
		})
	}
	return out
}

// CheckDependencyCycles reports the operations that cannot be ordered
// because they sit on, or behind, a dependency cycle.
func CheckDependencyCycles(snap schedule.Snapshot) []Violation {
	if len(snap.Dependencies) == 0 {
		return nil
	}
	indegree := make(map[schedule.ID]int)
	successors := make(map[schedule.ID][]schedule.ID)
	for _, d := range snap.Dependencies {
		if _, ok := indegree[d.From]; !ok {
			indegree[d.From] = 0
		}
		indegree[d.To]++
		successors[d.From] = append(successors[d.From], d.To)
	}

	var ready []schedule.ID
	for id, n := range indegree {
		if n == 0 {
			ready = append(ready, id)
		}
	}
	for len(ready) > 0 {
		id := ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		for _, next := range successors[id] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
		delete(indegree, id)
	}
	if len(indegree) == 0 {
		return nil
	}

	stuck := make([]string, 0, len(indegree))
	for id := range indegree {
		stuck = append(stuck, string(id))
	}
	sort.Strings(stuck)
	return []Violation{{
		Type:             RuleNoDependencyCycles,
		Severity:         SeverityError,
		Message:          "dependency cycle among: " + strings.Join(stuck, ", "),
		AffectedEntities: stuck,
	}}
}

func resourceLabel(snap schedule.Snapshot, idx map[schedule.ID]int, id schedule.ID) string {
	if i, ok := idx[id]; ok {
		return snap.Resources[i].Label()
	}
	return string(id)
}
