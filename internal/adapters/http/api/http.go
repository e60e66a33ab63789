// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/patti-j/planettogetheraiv2-sub024/internal/adapters/history"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/adapters/optimizer"
	service "github.com/patti-j/planettogetheraiv2-sub024/internal/app"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/kpi"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/schedule"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/validation"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/scenario"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 16 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ScheduleDependencies
	AlgorithmDependencies
	OptimizeDependencies
	RunDependencies
	ScenarioDependencies
}

// ScheduleDependencies reads and edits the live schedule.
type ScheduleDependencies interface {
	Snapshot() (schedule.Snapshot, uint64)
	ReplaceSchedule(ctx context.Context, snap schedule.Snapshot) (uint64, error)
	UpdateOperation(ctx context.Context, op schedule.Operation) (uint64, error)
	Validate(ctx context.Context, snap *schedule.Snapshot, rules *validation.RuleSet) service.ValidationReport
	Metrics(ctx context.Context) kpi.Metrics
}

// AlgorithmDependencies lists algorithm catalogs.
type AlgorithmDependencies interface {
	Algorithms(ctx context.Context) []optimizer.AlgorithmDescriptor
	StandardAlgorithms(ctx context.Context) []optimizer.AlgorithmDescriptor
}

// OptimizeDependencies runs an optimization end to end.
type OptimizeDependencies interface {
	Optimize(ctx context.Context, exec optimizer.AlgorithmExecution) (service.OptimizeOutcome, error)
}

// RunDependencies reads the run history.
type RunDependencies interface {
	Runs(ctx context.Context, limit int) ([]history.Run, error)
	Run(ctx context.Context, id string) (history.Run, error)
}

// ScenarioDependencies evaluates what-if schedules.
type ScenarioDependencies interface {
	Scenarios(ctx context.Context, in []scenario.Scenario) []scenario.Outcome
}

// Server wires HTTP routes for the engine API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	scheduleHandler  *ScheduleHandler
	algorithmHandler *AlgorithmHandler
	optimizeHandler  *OptimizeHandler
	runsHandler      *RunsHandler
	scenarioHandler  *ScenarioHandler
}

// NewServer creates a new API server with all handlers. maxRuns caps the
// limit accepted by GET /api/runs and maxScenarios the batch size of
// POST /api/scenarios.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxRuns, maxScenarios int) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		scheduleHandler:  NewScheduleHandler(deps),
		algorithmHandler: NewAlgorithmHandler(deps),
		optimizeHandler:  NewOptimizeHandler(deps),
		runsHandler:      NewRunsHandler(deps, maxRuns),
		scenarioHandler:  NewScenarioHandler(deps, maxScenarios),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("/api/schedule", MetricsMiddleware(s.scheduleHandler.HandleSchedule, "schedule"))
	mux.HandleFunc("/api/schedule/validate", MetricsMiddleware(s.scheduleHandler.HandleValidate, "schedule_validate"))
	mux.HandleFunc("/api/schedule/metrics", MetricsMiddleware(s.scheduleHandler.HandleMetrics, "schedule_metrics"))
	mux.HandleFunc("/api/schedule/events/", MetricsMiddleware(s.scheduleHandler.HandleUpdateEvent, "schedule_event"))

	mux.HandleFunc("/api/algorithms", MetricsMiddleware(s.algorithmHandler.HandleCustom, "algorithms"))
	mux.HandleFunc("/api/algorithms/standard", MetricsMiddleware(s.algorithmHandler.HandleStandard, "algorithms_standard"))

	mux.HandleFunc("/api/optimize", MetricsMiddleware(s.optimizeHandler.HandleOptimize, "optimize"))

	mux.HandleFunc("/api/runs", MetricsMiddleware(s.runsHandler.HandleList, "runs"))
	mux.HandleFunc("/api/runs/", MetricsMiddleware(s.runsHandler.HandleGet, "run"))

	mux.HandleFunc("/api/scenarios", MetricsMiddleware(s.scenarioHandler.HandleEvaluate, "scenarios"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func methodNotAllowed(w http.ResponseWriter, allow ...string) {
	for _, m := range allow {
		w.Header().Add("Allow", m)
	}
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
}

// decodeJSON reads one JSON value from the body into v. An empty body leaves
// v untouched when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}
