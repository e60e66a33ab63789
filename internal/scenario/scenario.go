// Package scenario evaluates what-if schedules side by side.
package scenario

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/kpi"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/schedule"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/validation"
	"github.com/patti-j/planettogetheraiv2-sub024/pkg/logger"
	"github.com/patti-j/planettogetheraiv2-sub024/pkg/metrics"
)

// Scenario is one schedule to evaluate. Nil Rules means every rule at the
// evaluator's strictness.
type Scenario struct {
	Name     string              `json:"name" yaml:"name"`
	Rules    *validation.RuleSet `json:"rules,omitempty" yaml:"rules,omitempty"`
	Snapshot schedule.Snapshot   `json:"snapshot" yaml:"snapshot"`
}

// Outcome is the evaluation of one Scenario.
type Outcome struct {
	Name       string                      `json:"name"`
	Valid      bool                        `json:"valid"`
	Violations []validation.Violation      `json:"violations"`
	Counts     map[validation.Severity]int `json:"counts"`
	Metrics    kpi.Metrics                 `json:"metrics"`
	Error      string                      `json:"error,omitempty"`
}

// Option applies a configuration option to the Evaluator.
type Option func(*Evaluator)

// WithWorkers bounds how many scenarios are evaluated at once.
func WithWorkers(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithValidator sets the validator shared by all workers.
func WithValidator(v *validation.Validator) Option {
	return func(e *Evaluator) {
		if v != nil {
			e.validator = v
		}
	}
}

// WithCalculator sets the KPI calculator shared by all workers.
func WithCalculator(c *kpi.Calculator) Option {
	return func(e *Evaluator) {
		if c != nil {
			e.calculator = c
		}
	}
}

// WithStrictness sets the strictness used for scenarios without rules.
func WithStrictness(s validation.Strictness) Option {
	return func(e *Evaluator) {
		if s.Valid() {
			e.strictness = s
		}
	}
}

// WithLogger sets the evaluator logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// Evaluator runs validation and KPI calculation over many scenarios.
type Evaluator struct {
	workers    int
	validator  *validation.Validator
	calculator *kpi.Calculator
	strictness validation.Strictness
	logger     logger.Logger
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		workers:    4,
		validator:  validation.New(),
		calculator: kpi.New(),
		strictness: validation.StrictnessModerate,
		logger:     logger.Default().Named("scenario"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Workers returns the concurrency bound.
func (e *Evaluator) Workers() int { return e.workers }

// Evaluate returns one Outcome per scenario, in input order. Scenarios not
// started before ctx is done carry the context error in Outcome.Error.
func (e *Evaluator) Evaluate(ctx context.Context, scenarios []Scenario) []Outcome {
	start := time.Now()
	out := make([]Outcome, len(scenarios))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, sc := range scenarios {
		if sc.Name == "" {
			sc.Name = fmt.Sprintf("scenario-%d", i+1)
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i] = Outcome{Name: sc.Name, Error: err.Error()}
				return nil
			}
			out[i] = e.evaluate(ctx, sc)
			return nil
		})
	}
	_ = g.Wait()

	metrics.RecordScenarioBatch(float64(time.Since(start).Milliseconds()))
	e.logger.Debug(ctx, "scenarios evaluated",
		logger.Int("count", len(scenarios)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return out
}

func (e *Evaluator) evaluate(ctx context.Context, sc Scenario) (o Outcome) {
	o.Name = sc.Name
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(ctx, "scenario evaluation failed",
				logger.String("scenario", sc.Name),
				logger.String("panic", fmt.Sprint(r)),
			)
			o = Outcome{Name: sc.Name, Error: fmt.Sprintf("evaluation failed: %v", r)}
		}
	}()

	rules := validation.AllRules(e.strictness)
	if sc.Rules != nil {
		rules = *sc.Rules
	}
	o.Violations = e.validator.Validate(sc.Snapshot, rules)
	o.Counts = validation.CountBySeverity(o.Violations)
	o.Valid = o.Counts[validation.SeverityError] == 0
	o.Metrics = e.calculator.Calculate(sc.Snapshot)
	return o
}
