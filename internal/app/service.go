// Package service wires the optimizer client, reconciler, validator and KPI
// calculator around one live schedule model. It implements the dependencies
// required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/patti-j/planettogetheraiv2-sub024/internal/adapters/history"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/adapters/livemodel"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/adapters/optimizer"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/kpi"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/reconcile"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/schedule"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/validation"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/scenario"
	"github.com/patti-j/planettogetheraiv2-sub024/pkg/logger"
	"github.com/patti-j/planettogetheraiv2-sub024/pkg/metrics"
)

// Optimizer is the external optimization service as the Service uses it.
type Optimizer interface {
	ListAlgorithms(ctx context.Context) []optimizer.AlgorithmDescriptor
	ListStandardAlgorithms(ctx context.Context) []optimizer.AlgorithmDescriptor
	Execute(ctx context.Context, exec optimizer.AlgorithmExecution) optimizer.Result
}

// ValidationReport is the result of validating a schedule.
type ValidationReport struct {
	Valid      bool                        `json:"valid"`
	Violations []validation.Violation      `json:"violations"`
	Counts     map[validation.Severity]int `json:"counts"`
	Version    uint64                      `json:"version,omitempty"`
}

// OptimizeOutcome is everything one optimize request produced.
type OptimizeOutcome struct {
	RunID          string            `json:"runId"`
	Result         optimizer.Result  `json:"result"`
	Applied        bool              `json:"applied"`
	Reconciliation *reconcile.Report `json:"reconciliation,omitempty"`
	ApplyError     string            `json:"applyError,omitempty"`
	Validation     ValidationReport  `json:"validation"`
	Metrics        kpi.Metrics       `json:"metrics"`
	Version        uint64            `json:"version"`
}

// Service implements the API dependencies for the scheduling engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	optimizer  Optimizer
	model      *livemodel.Store
	reconciler *reconcile.Reconciler
	validator  *validation.Validator
	calculator *kpi.Calculator
	evaluator  *scenario.Evaluator
	history    history.Store

	// Configuration
	historyDSN      string
	historyLimit    int
	slot            time.Duration
	workday         float64
	strictness      validation.Strictness
	scenarioWorkers int

	// State
	started     bool
	busy        atomic.Bool
	ownsHistory io.Closer

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithOptimizer sets the optimization service client.
func WithOptimizer(o Optimizer) Option {
	return func(s *Service) {
		if o != nil {
			s.optimizer = o
		}
	}
}

// WithModel sets the live model. A fresh empty model is used otherwise.
func WithModel(m *livemodel.Store) Option {
	return func(s *Service) {
		if m != nil {
			s.model = m
		}
	}
}

// WithHistory sets an already opened run history store. The Service does not
// close it.
func WithHistory(h history.Store) Option {
	return func(s *Service) {
		if h != nil {
			s.history = h
		}
	}
}

// WithHistoryDSN makes Start open and migrate a SQLite run history at dsn.
func WithHistoryDSN(dsn string) Option {
	return func(s *Service) {
		s.historyDSN = dsn
	}
}

// WithHistoryLimit sets the default number of runs returned by Runs.
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithSlotDuration sets the over-allocation bucket size.
func WithSlotDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.slot = d
		}
	}
}

// WithWorkdayHours sets the default daily resource capacity for utilization.
func WithWorkdayHours(h float64) Option {
	return func(s *Service) {
		if h > 0 {
			s.workday = h
		}
	}
}

// WithStrictness sets the strictness used when a request does not name one.
func WithStrictness(st validation.Strictness) Option {
	return func(s *Service) {
		if st != "" && st.Valid() {
			s.strictness = st
		}
	}
}

// WithScenarioWorkers bounds parallel scenario evaluation.
func WithScenarioWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.scenarioWorkers = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		historyLimit:    50,
		slot:            validation.DefaultSlot,
		workday:         kpi.DefaultWorkdayHours,
		strictness:      validation.StrictnessModerate,
		scenarioWorkers: 4,
		logger:          logger.Default().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.model == nil {
		s.model = livemodel.New(livemodel.WithLogger(s.logger.Named("livemodel")))
	}
	if s.optimizer == nil {
		s.optimizer = optimizer.New("http://localhost:5000", optimizer.WithLogger(s.logger.Named("optimizer")))
	}
	s.validator = validation.New(
		validation.WithSlotDuration(s.slot),
		validation.WithLogger(s.logger.Named("validator")),
	)
	s.calculator = kpi.New(kpi.WithWorkdayHours(s.workday))
	s.reconciler = reconcile.New(reconcile.WithLogger(s.logger.Named("reconciler")))
	s.evaluator = scenario.New(
		scenario.WithWorkers(s.scenarioWorkers),
		scenario.WithValidator(s.validator),
		scenario.WithCalculator(s.calculator),
		scenario.WithStrictness(s.strictness),
		scenario.WithLogger(s.logger.Named("scenario")),
	)
	s.model.OnRefresh(func(snap schedule.Snapshot) {
		publishKPI(s.calculator.Calculate(snap))
	})
	return s
}

// Start opens the run history when a DSN is configured.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting scheduling engine...")

	if s.history == nil && s.historyDSN != "" {
		store, err := history.Open(s.historyDSN, history.WithLogger(s.logger.Named("history")))
		if err != nil {
			return fmt.Errorf("open run history: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return fmt.Errorf("migrate run history: %w", err)
		}
		s.history = store
		s.ownsHistory = store
		s.logger.Info(ctx, "run history ready", logger.String("dsn", s.historyDSN))
	}

	s.started = true
	s.logger.Info(ctx, "scheduling engine started",
		logger.Duration("slot", s.slot),
		logger.Float64("workdayHours", s.workday),
		logger.String("strictness", string(s.strictness)),
		logger.Int("scenarioWorkers", s.scenarioWorkers),
	)
	return nil
}

// Stop releases resources opened by Start.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping scheduling engine...")
	if s.ownsHistory != nil {
		if err := s.ownsHistory.Close(); err != nil {
			s.logger.Warn(context.Background(), "closing run history", logger.Error(err))
		}
		s.history = nil
		s.ownsHistory = nil
	}

	s.started = false
	s.logger.Info(context.Background(), "scheduling engine stopped")
}

// Model returns the live schedule model.
func (s *Service) Model() *livemodel.Store { return s.model }

// Snapshot returns a copy of the live schedule and its version.
func (s *Service) Snapshot() (schedule.Snapshot, uint64) {
	return s.model.Snapshot(), s.model.Version()
}

// ReplaceSchedule loads snap as the new live schedule.
func (s *Service) ReplaceSchedule(ctx context.Context, snap schedule.Snapshot) (uint64, error) {
	if err := checkSnapshot(snap); err != nil {
		return 0, err
	}
	if !s.busy.CompareAndSwap(false, true) {
		metrics.RecordReconcileConflict()
		return 0, ErrReconcileInFlight
	}
	defer s.busy.Store(false)

	s.model.Load(snap)
	v := s.model.Version()
	s.logger.Info(ctx, "live schedule replaced",
		logger.Int("operations", len(snap.Events)),
		logger.Int("resources", len(snap.Resources)),
		logger.Int64("version", int64(v)),
	)
	return v, nil
}

// UpdateOperation applies a direct edit to one operation of the live schedule.
func (s *Service) UpdateOperation(ctx context.Context, op schedule.Operation) (uint64, error) {
	if err := s.model.UpdateOperation(op); err != nil {
		return 0, err
	}
	s.logger.Debug(ctx, "operation updated", logger.String("id", string(op.ID)))
	return s.model.Version(), nil
}

func checkSnapshot(snap schedule.Snapshot) error {
	seen := make(map[schedule.ID]struct{}, len(snap.Events))
	for _, op := range snap.Events {
		if !op.Valid() {
			return fmt.Errorf("%w: operation %q needs an id and endDate after startDate", ErrInvalidSnapshot, op.ID)
		}
		if _, dup := seen[op.ID]; dup {
			return fmt.Errorf("%w: duplicate operation id %q", ErrInvalidSnapshot, op.ID)
		}
		seen[op.ID] = struct{}{}
	}
	for _, a := range snap.Assignments {
		if a.Units < 0 || a.Units > schedule.DefaultUnits {
			return fmt.Errorf("%w: assignment %s/%s units %v out of range", ErrInvalidSnapshot, a.EventID, a.ResourceID, a.Units)
		}
	}
	return nil
}

// Rules returns rules, or every rule when rules is nil. A rule set without a
// policy strictness is graded at strictness, and an empty strictness falls
// back to the configured default.
func (s *Service) Rules(rules *validation.RuleSet, strictness validation.Strictness) validation.RuleSet {
	if strictness == "" || !strictness.Valid() {
		strictness = s.strictness
	}
	if rules == nil {
		return validation.AllRules(strictness)
	}
	out := *rules
	if out.Policy == nil {
		out.Policy = &validation.PolicyRules{Strictness: strictness}
	} else if out.Policy.Strictness == "" {
		policy := *out.Policy
		policy.Strictness = strictness
		out.Policy = &policy
	}
	return out
}

// Validate checks snap, or the live schedule when snap is nil.
func (s *Service) Validate(ctx context.Context, snap *schedule.Snapshot, rules *validation.RuleSet) ValidationReport {
	var rep ValidationReport
	target := snap
	if target == nil {
		live, v := s.Snapshot()
		target, rep.Version = &live, v
	}

	rep.Violations = s.validator.Validate(*target, s.Rules(rules, ""))
	rep.Counts = validation.CountBySeverity(rep.Violations)
	rep.Valid = rep.Counts[validation.SeverityError] == 0
	for _, v := range rep.Violations {
		metrics.RecordViolation(string(v.Type), string(v.Severity))
	}
	s.logger.Debug(ctx, "schedule validated",
		logger.Int("violations", len(rep.Violations)),
		logger.Bool("valid", rep.Valid),
	)
	return rep
}

// Metrics returns the KPIs of the live schedule.
func (s *Service) Metrics(_ context.Context) kpi.Metrics {
	m := s.calculator.Calculate(s.model.Snapshot())
	publishKPI(m)
	return m
}

// Algorithms returns the custom algorithm catalog.
func (s *Service) Algorithms(ctx context.Context) []optimizer.AlgorithmDescriptor {
	return s.optimizer.ListAlgorithms(ctx)
}

// StandardAlgorithms returns the built-in algorithm catalog.
func (s *Service) StandardAlgorithms(ctx context.Context) []optimizer.AlgorithmDescriptor {
	return s.optimizer.ListStandardAlgorithms(ctx)
}

// Optimize executes an algorithm, applies its schedule to the live model,
// validates the result and records the run. Only one Optimize or
// ReplaceSchedule runs at a time; a concurrent call gets ErrReconcileInFlight.
func (s *Service) Optimize(ctx context.Context, exec optimizer.AlgorithmExecution) (OptimizeOutcome, error) {
	if !s.busy.CompareAndSwap(false, true) {
		metrics.RecordReconcileConflict()
		return OptimizeOutcome{}, ErrReconcileInFlight
	}
	defer s.busy.Store(false)

	res := s.optimizer.Execute(ctx, exec)
	if res.RunID == "" {
		res.RunID = uuid.NewString()
	}
	out := OptimizeOutcome{RunID: res.RunID, Result: res}

	switch {
	case !res.Success:
		metrics.RecordReconciliation(metrics.OutcomeRejected, 0, 0)
	case res.OptimizedSchedule == nil:
		out.ApplyError = reconcile.ErrNothingToApply.Error()
		metrics.RecordReconciliation(metrics.OutcomeRejected, 0, 0)
	default:
		rep, err := s.reconciler.ApplyWithReport(ctx, s.model, res.OptimizedSchedule)
		if err != nil {
			out.ApplyError = err.Error()
			metrics.RecordReconciliation(metrics.OutcomeFailure, 0, 0)
			break
		}
		out.Applied = true
		out.Reconciliation = &rep
		metrics.RecordReconciliation(metrics.OutcomeSuccess, rep.EventsUpdated, rep.EventsSkipped)
	}

	var strictness validation.Strictness
	if exec.Constraints != nil {
		strictness = exec.Constraints.Strictness
	}
	rules := s.Rules(exec.ValidationRules, strictness)
	out.Validation = s.Validate(ctx, nil, &rules)
	out.Metrics = s.Metrics(ctx)
	out.Version = out.Validation.Version

	s.record(ctx, exec, out)

	s.logger.Info(ctx, "optimization finished",
		logger.String("run_id", out.RunID),
		logger.String("algorithm", res.Algorithm),
		logger.Bool("success", res.Success),
		logger.Bool("applied", out.Applied),
		logger.Int("violations", len(out.Validation.Violations)),
	)
	return out, nil
}

func (s *Service) record(ctx context.Context, exec optimizer.AlgorithmExecution, out OptimizeOutcome) {
	s.mu.RLock()
	store := s.history
	s.mu.RUnlock()
	if store == nil {
		return
	}

	msg := out.Result.Message
	if out.ApplyError != "" {
		msg = out.ApplyError
	}
	run := history.Run{
		ID:            out.RunID,
		AlgorithmID:   string(exec.AlgorithmID),
		Algorithm:     out.Result.Algorithm,
		Success:       out.Result.Success,
		Applied:       out.Applied,
		ExecutionTime: int64(math.Round(out.Result.ExecutionTime)),
		Message:       msg,
		Violations:    len(out.Validation.Violations),
		Metrics:       out.Metrics.Map(),
	}
	if err := store.Record(ctx, run); err != nil {
		s.logger.Error(ctx, "failed to record run", logger.String("run_id", run.ID), logger.Error(err))
	}
}

// Runs returns up to limit recorded runs, newest first. A non-positive limit
// uses the configured default.
func (s *Service) Runs(ctx context.Context, limit int) ([]history.Run, error) {
	s.mu.RLock()
	store := s.history
	s.mu.RUnlock()
	if store == nil {
		return nil, ErrHistoryDisabled
	}
	if limit <= 0 {
		limit = s.historyLimit
	}
	return store.List(ctx, limit)
}

// Run returns one recorded run.
func (s *Service) Run(ctx context.Context, id string) (history.Run, error) {
	s.mu.RLock()
	store := s.history
	s.mu.RUnlock()
	if store == nil {
		return history.Run{}, ErrHistoryDisabled
	}
	return store.Get(ctx, id)
}

// Scenarios evaluates what-if schedules in parallel.
func (s *Service) Scenarios(ctx context.Context, in []scenario.Scenario) []scenario.Outcome {
	return s.evaluator.Evaluate(ctx, in)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.model.Snapshot()
	stats := map[string]interface{}{
		"started":         s.started,
		"version":         s.model.Version(),
		"operations":      len(snap.Events),
		"resources":       len(snap.Resources),
		"assignments":     len(snap.Assignments),
		"dependencies":    len(snap.Dependencies),
		"reconciling":     s.busy.Load(),
		"slotMinutes":     int(s.slot / time.Minute),
		"workdayHours":    s.workday,
		"strictness":      string(s.strictness),
		"scenarioWorkers": s.scenarioWorkers,
	}

	if s.history != nil {
		if n, err := s.history.Count(context.Background()); err == nil {
			stats["runsRecorded"] = n
		}
	}
	return stats
}

func publishKPI(m kpi.Metrics) {
	for name, v := range m.Map() {
		metrics.UpdateKPI(name, float64(v))
	}
}
