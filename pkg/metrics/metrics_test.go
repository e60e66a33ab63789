package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then metrics use the engine namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.executions.WithLabelValues("ga", OutcomeSuccess).Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "sched_engine_executions_total")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("plant"),
				WithSubsystem("scheduler"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithExecutionBuckets([]float64{1000, 60000}),
				WithConstLabels(map[string]string{"site": "berlin"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then execution latency uses its own buckets", func() {
				So(manager.executionBuckets, ShouldResemble, []float64{1000, 60000})
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
			})

			Convey("Then names and labels follow the options", func() {
				manager.reconcileConflict.Inc()
				So(testutil.CollectAndCount(manager.reconcileConflict, "plant_scheduler_reconcile_conflicts_total"), ShouldEqual, 1)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(families, ShouldNotBeEmpty)
				So(families[0].GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "berlin")
			})
		})

		Convey("When empty options are given", func() {
			manager := NewManager(WithNamespace(""), WithSubsystem(""), WithHistogramBuckets(nil), WithExecutionBuckets(nil), WithPrometheusRegistry(prometheus.NewRegistry()))

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "sched")
				So(manager.subsystem, ShouldEqual, "engine")
				So(manager.histogramBuckets, ShouldNotBeEmpty)
				So(manager.executionBuckets, ShouldNotBeEmpty)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording executions", func() {
			before := testutil.ToFloat64(globalManager.executions.WithLabelValues("unknown", OutcomeFailure))
			RecordExecution("", OutcomeFailure, 12)

			Convey("Then an empty algorithm is labelled unknown", func() {
				So(testutil.ToFloat64(globalManager.executions.WithLabelValues("unknown", OutcomeFailure)), ShouldEqual, before+1)
			})
		})

		Convey("When recording reconciliations", func() {
			updated := testutil.ToFloat64(globalManager.eventsUpdated)
			skipped := testutil.ToFloat64(globalManager.eventsSkipped)
			RecordReconciliation(OutcomeSuccess, 3, 1)

			Convey("Then event counters advance", func() {
				So(testutil.ToFloat64(globalManager.eventsUpdated), ShouldEqual, updated+3)
				So(testutil.ToFloat64(globalManager.eventsSkipped), ShouldEqual, skipped+1)
			})
		})

		Convey("When updating gauges", func() {
			UpdateKPI("makespan", 4)
			UpdateLiveModel(12, 7)

			Convey("Then the last value wins", func() {
				So(testutil.ToFloat64(globalManager.kpi.WithLabelValues("makespan")), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.liveOperations), ShouldEqual, 12)
				So(testutil.ToFloat64(globalManager.liveVersion), ShouldEqual, 7)
			})
		})

		Convey("When recording the remaining series", func() {
			So(func() {
				RecordCatalogFailure("standard")
				RecordReconcileConflict()
				RecordViolation("no_overlap", "error")
				RecordScenarioBatch(3.5)
				RecordHistoryLatency("record", 1.2)
				RecordHTTPRequest("/api/optimize", "POST", "200")
				RecordHTTPRequestDuration("/api/optimize", "POST", "200", 15.0)
				RecordErrorByComponent("optimizer", "transport")
			}, ShouldNotPanic)
		})

		Convey("When registering runtime collectors twice", func() {
			So(RegisterRuntimeCollectors(), ShouldBeNil)
			So(RegisterRuntimeCollectors(), ShouldBeNil)
		})

		Convey("Then the registry is exposed", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})
	})
}
