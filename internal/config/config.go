// Package config defines engine configuration structures and loading hooks.
//
// Conventions:
// - New returns a Config populated with defaults.
// - Load layers a YAML file and SCHED_* environment variables on top.
// - Errors returned from this package wrap ErrInvalidConfig or ErrLoadConfig.
package config

import (
	"fmt"
	"net/url"
	"runtime"
	"time"

	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/validation"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// OptimizerURL is the base URL of the external optimization service.
	OptimizerURL string `koanf:"optimizer_url"`

	// OptimizerTimeoutMS bounds a single call to the optimization service.
	OptimizerTimeoutMS int `koanf:"optimizer_timeout_ms"`

	// SlotMinutes is the over-allocation bucket size.
	SlotMinutes int `koanf:"slot_minutes"`

	// WorkdayHours is the nominal daily capacity of a resource without its own calendar.
	WorkdayHours float64 `koanf:"workday_hours"`

	// HistoryDSN locates the run history database.
	HistoryDSN string `koanf:"history_dsn"`

	// HistoryLimit is the default page size of GET /api/runs.
	HistoryLimit int `koanf:"history_limit"`

	// ScenarioWorkers bounds parallel what-if evaluation.
	ScenarioWorkers int `koanf:"scenario_workers"`

	// DefaultStrictness grades policy violations when a request does not say.
	DefaultStrictness string `koanf:"default_strictness"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		OptimizerURL:       "http://localhost:5000",
		OptimizerTimeoutMS: 300_000,
		SlotMinutes:        24 * 60,
		WorkdayHours:       8,
		HistoryDSN:         "sched-history.db",
		HistoryLimit:       50,
		ScenarioWorkers:    runtime.NumCPU(),
		DefaultStrictness:  string(validation.StrictnessModerate),
	}
}

// OptimizerTimeout returns OptimizerTimeoutMS as a duration.
func (c *Config) OptimizerTimeout() time.Duration {
	return time.Duration(c.OptimizerTimeoutMS) * time.Millisecond
}

// Slot returns SlotMinutes as a duration.
func (c *Config) Slot() time.Duration {
	return time.Duration(c.SlotMinutes) * time.Minute
}

// Strictness returns the parsed default strictness.
func (c *Config) Strictness() validation.Strictness {
	s, err := validation.ParseStrictness(c.DefaultStrictness)
	if err != nil {
		return validation.StrictnessModerate
	}
	return s
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	}
	if c.OptimizerURL == "" {
		return fmt.Errorf("%w: optimizer_url must not be empty", ErrInvalidConfig)
	}
	if u, err := url.Parse(c.OptimizerURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: optimizer_url %q is not an absolute URL", ErrInvalidConfig, c.OptimizerURL)
	}
	if c.OptimizerTimeoutMS <= 0 {
		return fmt.Errorf("%w: optimizer_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.SlotMinutes <= 0 {
		return fmt.Errorf("%w: slot_minutes must be positive", ErrInvalidConfig)
	}
	if c.WorkdayHours <= 0 || c.WorkdayHours > 24 {
		return fmt.Errorf("%w: workday_hours must be in (0, 24]", ErrInvalidConfig)
	}
	if c.HistoryDSN == "" {
		return fmt.Errorf("%w: history_dsn must not be empty", ErrInvalidConfig)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("%w: history_limit must be positive", ErrInvalidConfig)
	}
	if c.ScenarioWorkers <= 0 {
		return fmt.Errorf("%w: scenario_workers must be positive", ErrInvalidConfig)
	}
	if _, err := validation.ParseStrictness(c.DefaultStrictness); err != nil {
		return fmt.Errorf("%w: default_strictness: %w", ErrInvalidConfig, err)
	}
	return nil
}
