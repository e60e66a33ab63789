package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/reconcile"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/schedule"
	. "github.com/smartystreets/goconvey/convey"
)

var errReplace = errors.New("replace refused")

type fakeModel struct {
	snap        schedule.Snapshot
	suspended   int
	resumed     int
	failDeps    bool
	panicOnFind schedule.ID
}

func (m *fakeModel) SuspendRefresh() { m.suspended++ }
func (m *fakeModel) ResumeRefresh()  { m.resumed++ }

func (m *fakeModel) FindEvent(id schedule.ID) (*schedule.Operation, bool) {
	if id == m.panicOnFind {
		panic("index corrupted")
	}
	for i := range m.snap.Events {
		if m.snap.Events[i].ID == id {
			return &m.snap.Events[i], true
		}
	}
	return nil, false
}

func (m *fakeModel) ReplaceAssignments(in []schedule.Assignment) ([]schedule.Assignment, error) {
	prev := m.snap.Assignments
	m.snap.Assignments = in
	return prev, nil
}

func (m *fakeModel) ReplaceDependencies(in []schedule.Dependency) ([]schedule.Dependency, error) {
	if m.failDeps {
		return nil, errReplace
	}
	prev := m.snap.Dependencies
	m.snap.Dependencies = in
	return prev, nil
}

var t0 = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func hours(h int) time.Time { return t0.Add(time.Duration(h) * time.Hour) }

func newModel() *fakeModel {
	return &fakeModel{snap: schedule.Snapshot{
		Events: []schedule.Operation{
			{ID: "A", StartDate: hours(0), EndDate: hours(2), ResourceID: "R1"},
			{ID: "B", StartDate: hours(1), EndDate: hours(3), ResourceID: "R1"},
		},
		Resources:    []schedule.Resource{{ID: "R1"}, {ID: "R2"}},
		Assignments:  []schedule.Assignment{{EventID: "A", ResourceID: "R1", Units: 100}, {EventID: "B", ResourceID: "R1", Units: 100}},
		Dependencies: []schedule.Dependency{{From: "A", To: "B", Type: schedule.StartToStart}},
	}}
}

func units(v float64) *float64 { return &v }

func TestReconciler_Apply(t *testing.T) {
	Convey("Given a live model and a reconciler", t, func() {
		ctx := context.Background()
		r := reconcile.New()
		model := newModel()
		before := model.snap.Clone()

		Convey("When the proposal is absent", func() {
			ok := r.Apply(ctx, model, nil)

			Convey("Then nothing happens and apply fails", func() {
				So(ok, ShouldBeFalse)
				So(model.snap, ShouldResemble, before)
				So(model.suspended, ShouldEqual, 0)
			})
		})

		Convey("When the model is absent", func() {
			_, err := r.ApplyWithReport(ctx, nil, &schedule.Proposal{})
			So(err, ShouldEqual, reconcile.ErrNoModel)
		})

		Convey("When the proposal mirrors the live model", func() {
			rep, err := r.ApplyWithReport(ctx, model, schedule.ProposalFrom(before))

			Convey("Then nothing observable changes", func() {
				So(err, ShouldBeNil)
				So(model.snap, ShouldResemble, before)
				So(rep.EventsUpdated, ShouldEqual, 2)
			})

			Convey("Then refresh is suspended and resumed once", func() {
				So(model.suspended, ShouldEqual, 1)
				So(model.resumed, ShouldEqual, 1)
			})
		})

		Convey("When the proposal moves events and replaces collections", func() {
			p := &schedule.Proposal{
				Events: []schedule.ProposedEvent{
					{ID: "B", StartDate: hours(2), EndDate: hours(4), ResourceID: "R2"},
					{ID: "A", StartDate: hours(0), EndDate: hours(2)},
					{ID: "ghost", StartDate: hours(0), EndDate: hours(1)},
				},
				Assignments: []schedule.ProposedAssignment{
					{EventID: "A", ResourceID: "R1"},
					{EventID: "B", ResourceID: "R2", Units: units(40)},
				},
				Dependencies: []schedule.ProposedDependency{{From: "A", To: "B"}},
			}
			rep, err := r.ApplyWithReport(ctx, model, p)

			Convey("Then known events are updated and unknown ones skipped", func() {
				So(err, ShouldBeNil)
				So(rep.EventsUpdated, ShouldEqual, 2)
				So(rep.EventsSkipped, ShouldEqual, 1)
				So(model.snap.Events, ShouldHaveLength, 2)
				So(model.snap.Events[1].StartDate, ShouldEqual, hours(2))
				So(model.snap.Events[1].ResourceID, ShouldEqual, schedule.ID("R2"))
				So(model.snap.Events[0].ResourceID, ShouldEqual, schedule.ID("R1"))
			})

			Convey("Then collections are replaced with defaults filled in", func() {
				So(rep.AssignmentsReplaced, ShouldBeTrue)
				So(model.snap.Assignments, ShouldResemble, []schedule.Assignment{
					{EventID: "A", ResourceID: "R1", Units: 100},
					{EventID: "B", ResourceID: "R2", Units: 40},
				})
				So(model.snap.Dependencies, ShouldResemble, []schedule.Dependency{
					{From: "A", To: "B", Type: schedule.EndToStart, Lag: 0},
				})
			})
		})

		Convey("When the proposal has empty collections", func() {
			p := &schedule.Proposal{Events: []schedule.ProposedEvent{{ID: "A", StartDate: hours(5), EndDate: hours(6)}}}
			rep, err := r.ApplyWithReport(ctx, model, p)

			Convey("Then existing collections are kept", func() {
				So(err, ShouldBeNil)
				So(rep.AssignmentsReplaced, ShouldBeFalse)
				So(rep.DependenciesReplaced, ShouldBeFalse)
				So(model.snap.Assignments, ShouldResemble, before.Assignments)
				So(model.snap.Dependencies, ShouldResemble, before.Dependencies)
			})
		})

		Convey("When a proposed item is malformed", func() {
			p := &schedule.Proposal{
				Events:      []schedule.ProposedEvent{{ID: "A", StartDate: hours(5), EndDate: hours(6)}},
				Assignments: []schedule.ProposedAssignment{{EventID: "A", ResourceID: "R1", Units: units(140)}},
			}
			_, err := r.ApplyWithReport(ctx, model, p)

			Convey("Then it fails before touching the model", func() {
				So(err, ShouldWrap, schedule.ErrMalformedProposal)
				So(model.snap, ShouldResemble, before)
				So(model.suspended, ShouldEqual, 0)
			})
		})

		Convey("When replacing dependencies fails mid-batch", func() {
			model.failDeps = true
			p := &schedule.Proposal{
				Events:       []schedule.ProposedEvent{{ID: "A", StartDate: hours(5), EndDate: hours(6)}},
				Assignments:  []schedule.ProposedAssignment{{EventID: "A", ResourceID: "R2"}},
				Dependencies: []schedule.ProposedDependency{{From: "B", To: "A"}},
			}
			ok := r.Apply(ctx, model, p)

			Convey("Then earlier steps are rolled back", func() {
				So(ok, ShouldBeFalse)
				So(model.snap.Events, ShouldResemble, before.Events)
				So(model.snap.Assignments, ShouldResemble, before.Assignments)
			})

			Convey("Then refresh is not left suspended", func() {
				So(model.suspended, ShouldEqual, 1)
				So(model.resumed, ShouldEqual, 1)
			})
		})

		Convey("When the model panics during the batch", func() {
			model.panicOnFind = "B"
			p := &schedule.Proposal{Events: []schedule.ProposedEvent{
				{ID: "A", StartDate: hours(5), EndDate: hours(6)},
				{ID: "B", StartDate: hours(5), EndDate: hours(6)},
			}}

			var err error
			So(func() { _, err = r.ApplyWithReport(ctx, model, p) }, ShouldNotPanic)

			Convey("Then the panic becomes an error and the model is restored", func() {
				So(err, ShouldWrap, reconcile.ErrApplyPanic)
				So(model.snap.Events, ShouldResemble, before.Events)
				So(model.resumed, ShouldEqual, 1)
			})
		})

		Convey("When the model is a typed nil", func() {
			var broken *fakeModel
			var (
				ok  bool
				err error
			)
			So(func() { ok = r.Apply(ctx, broken, schedule.ProposalFrom(before)) }, ShouldNotPanic)
			So(func() { _, err = r.ApplyWithReport(ctx, broken, schedule.ProposalFrom(before)) }, ShouldNotPanic)

			Convey("Then the apply fails without touching refresh", func() {
				So(ok, ShouldBeFalse)
				So(err, ShouldWrap, reconcile.ErrApplyPanic)
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(r.Apply(cctx, model, schedule.ProposalFrom(before)), ShouldBeFalse)
			So(model.suspended, ShouldEqual, 0)
		})
	})
}
