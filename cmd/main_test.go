package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/patti-j/planettogetheraiv2-sub024/internal/config"
	"github.com/patti-j/planettogetheraiv2-sub024/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("SCHED_ADDR", ":8080")
			_ = os.Setenv("SCHED_SLOT_MINUTES", "120")
			_ = os.Setenv("SCHED_SCENARIO_WORKERS", "2")
			defer func() {
				_ = os.Unsetenv("SCHED_ADDR")
				_ = os.Unsetenv("SCHED_SLOT_MINUTES")
				_ = os.Unsetenv("SCHED_SCENARIO_WORKERS")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Slot(), convey.ShouldEqual, 2*time.Hour)
				convey.So(cfg.ScenarioWorkers, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When building the server from defaults", func() {
			cfg := config.New()
			cfg.OptimizerTimeoutMS = 1000
			svc, srv := build(context.Background(), cfg, logger.Nop())

			convey.Convey("Then the server carries the configured address and timeouts", func() {
				convey.So(svc, convey.ShouldNotBeNil)
				convey.So(srv.Addr, convey.ShouldEqual, ":9080")
				convey.So(srv.WriteTimeout, convey.ShouldEqual, time.Second+writeSlack)
				convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)
			})
		})
	})
}

func TestMainApplicationRoutes(t *testing.T) {
	convey.Convey("Given a started application", t, func() {
		cfg := config.New()
		cfg.HistoryDSN = filepath.Join(t.TempDir(), "history.db")
		svc, srv := build(context.Background(), cfg, logger.Nop())
		convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
		defer svc.Stop()

		ts := httptest.NewServer(srv.Handler)
		defer ts.Close()

		convey.Convey("Then the API docs are served", func() {
			resp, err := http.Get(ts.URL + "/api-docs")
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then the operator docs are served", func() {
			resp, err := http.Get(ts.URL + "/docs/")
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then the empty schedule is readable", func() {
			resp, err := http.Get(ts.URL + "/api/schedule")
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then a schedule can be replaced and validated", func() {
			body := `{"resources":[{"id":"R1","name":"Mixer"}],` +
				`"events":[{"id":"A","name":"Mix","resourceId":"R1",` +
				`"startDate":"2026-01-05T08:00:00Z","endDate":"2026-01-05T10:00:00Z"}]}`
			req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/schedule", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := http.DefaultClient.Do(req)
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)

			resp, err = http.Post(ts.URL+"/api/schedule/validate", "application/json", nil)
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)

			var report struct {
				Valid bool `json:"valid"`
			}
			convey.So(json.NewDecoder(resp.Body).Decode(&report), convey.ShouldBeNil)
			convey.So(report.Valid, convey.ShouldBeTrue)
		})

		convey.Convey("Then stats report the running engine", func() {
			resp, err := http.Get(ts.URL + "/stats")
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()

			var stats map[string]any
			convey.So(json.NewDecoder(resp.Body).Decode(&stats), convey.ShouldBeNil)
			convey.So(stats["started"], convey.ShouldEqual, true)
			convey.So(stats["runsRecorded"], convey.ShouldEqual, float64(0))
		})
	})
}
