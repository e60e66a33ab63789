// Package optimizer talks to the external optimization service: it lists the
// algorithm catalogs and executes an algorithm against a scope. Failures are
// returned as data, never as errors or panics.
package optimizer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/validation"
	"github.com/patti-j/planettogetheraiv2-sub024/pkg/logger"
	"github.com/patti-j/planettogetheraiv2-sub024/pkg/metrics"
)

// Paths on the optimization service.
const (
	AlgorithmsPath         = "/api/optimization/algorithms"
	StandardAlgorithmsPath = "/api/optimization/standard-algorithms"
	ExecutePath            = "/api/optimization/execute"
)

// RunIDHeader carries the run id on execution requests.
const RunIDHeader = "X-Run-ID"

// DefaultTimeout bounds a single call when no timeout is configured.
const DefaultTimeout = 5 * time.Minute

// Catalog names used in logs and metrics.
const (
	catalogCustom   = "custom"
	catalogStandard = "standard"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = newHTTPClient(d)
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = &httpClient{client: hc, timeout: hc.Timeout}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client calls the optimization service. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *httpClient
	logger  logger.Logger

	mu    sync.RWMutex
	known map[AlgorithmID]AlgorithmDescriptor
}

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClient(DefaultTimeout),
		logger:  logger.Default().Named("optimizer"),
		known:   make(map[AlgorithmID]AlgorithmDescriptor),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service address.
func (c *Client) BaseURL() string { return c.baseURL }

// ListAlgorithms returns the custom algorithm catalog, or an empty list on any failure.
func (c *Client) ListAlgorithms(ctx context.Context) []AlgorithmDescriptor {
	return c.list(ctx, catalogCustom, AlgorithmsPath)
}

// ListStandardAlgorithms returns the built-in algorithm catalog, or an empty list on any failure.
func (c *Client) ListStandardAlgorithms(ctx context.Context) []AlgorithmDescriptor {
	return c.list(ctx, catalogStandard, StandardAlgorithmsPath)
}

// Descriptor returns a descriptor seen in an earlier catalog fetch.
func (c *Client) Descriptor(id AlgorithmID) (AlgorithmDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.known[id]
	return d, ok
}

func (c *Client) list(ctx context.Context, catalog, path string) (out []AlgorithmDescriptor) {
	out = []AlgorithmDescriptor{}
	defer func() {
		if r := recover(); r != nil {
			c.catalogFailed(ctx, catalog, fmt.Errorf("panic: %v", r))
			out = []AlgorithmDescriptor{}
		}
	}()

	status, body, err := c.http.get(ctx, c.baseURL+path)
	if err != nil {
		c.catalogFailed(ctx, catalog, err)
		return out
	}
	if status < 200 || status > 299 {
		c.catalogFailed(ctx, catalog, fmt.Errorf("%w: %s", ErrUnexpectedStatus, serverMessage(status, body)))
		return out
	}
	var list []AlgorithmDescriptor
	if err := json.Unmarshal(body, &list); err != nil {
		c.catalogFailed(ctx, catalog, fmt.Errorf("%w: %w", ErrDecode, err))
		return out
	}

	c.mu.Lock()
	for _, d := range list {
		if d.ID != "" {
			c.known[d.ID] = d
		}
	}
	c.mu.Unlock()
	return append(out, list...)
}

func (c *Client) catalogFailed(ctx context.Context, catalog string, err error) {
	metrics.RecordCatalogFailure(catalog)
	c.logger.Warn(ctx, "algorithm catalog unavailable",
		logger.String("catalog", catalog),
		logger.Error(err),
	)
}

// Prepare validates exec and resolves parameter defaults without calling the
// service.
func (c *Client) Prepare(exec AlgorithmExecution) (AlgorithmExecution, error) {
	if strings.TrimSpace(string(exec.AlgorithmID)) == "" {
		return exec, ErrMissingAlgorithm
	}
	if s := exec.Scope; s.StartDate != nil && s.EndDate != nil && s.EndDate.Before(*s.StartDate) {
		return exec, fmt.Errorf("%w: endDate before startDate", ErrInvalidScope)
	}
	if exec.Constraints != nil && !exec.Constraints.Strictness.Valid() {
		return exec, fmt.Errorf("%w: %q", validation.ErrUnknownStrictness, exec.Constraints.Strictness)
	}
	if exec.ValidationRules != nil && exec.ValidationRules.Policy != nil && !exec.ValidationRules.Policy.Strictness.Valid() {
		return exec, fmt.Errorf("%w: %q", validation.ErrUnknownStrictness, exec.ValidationRules.Policy.Strictness)
	}

	params := exec.Parameters
	if params == nil {
		params = map[string]any{}
	}
	if d, ok := c.Descriptor(exec.AlgorithmID); ok {
		if !d.IsActive {
			return exec, fmt.Errorf("%w: %s", ErrInactiveAlgorithm, d.Label())
		}
		resolved, err := d.ResolveParameters(params)
		if err != nil {
			return exec, err
		}
		params = resolved
	}
	exec.Parameters = params
	return exec, nil
}

// Execute runs an algorithm on the optimization service. It never returns an
// error: every failure is a Result with Success false, Algorithm "unknown"
// and a diagnostic Message.
func (c *Client) Execute(ctx context.Context, exec AlgorithmExecution) (res Result) {
	runID := uuid.NewString()
	start := time.Now()
	log := c.logger
	defer func() {
		if r := recover(); r != nil {
			res = failed(runID, fmt.Sprintf("optimization execution failed: %v", r))
		}
		outcome := metrics.OutcomeSuccess
		if !res.Success {
			outcome = metrics.OutcomeFailure
		}
		metrics.RecordExecution(string(exec.AlgorithmID), outcome, float64(time.Since(start).Milliseconds()))
	}()

	prepared, err := c.Prepare(exec)
	if err != nil {
		log.Warn(ctx, "execution rejected",
			logger.String("run_id", runID),
			logger.String("algorithm", string(exec.AlgorithmID)),
			logger.Error(err),
		)
		return failed(runID, err.Error())
	}

	header := http.Header{}
	header.Set(RunIDHeader, runID)
	status, body, err := c.http.post(ctx, c.baseURL+ExecutePath, prepared, header)
	if err != nil {
		log.Error(ctx, "execution request failed", logger.String("run_id", runID), logger.Error(err))
		return failed(runID, "failed to execute optimization algorithm: "+err.Error())
	}
	if status < 200 || status > 299 {
		msg := serverMessage(status, body)
		log.Error(ctx, "execution returned error status", logger.String("run_id", runID), logger.Int("status", status))
		return failed(runID, fmt.Sprintf("%s: %s", ErrUnexpectedStatus, msg))
	}

	if err := json.Unmarshal(body, &res); err != nil {
		log.Error(ctx, "execution response undecodable", logger.String("run_id", runID), logger.Error(err))
		return failed(runID, fmt.Sprintf("%s: %v", ErrDecode, err))
	}
	res.RunID = runID
	if res.Algorithm == "" {
		res.Algorithm = string(exec.AlgorithmID)
		if d, ok := c.Descriptor(exec.AlgorithmID); ok {
			res.Algorithm = d.Label()
		}
	}
	if !res.Success && res.Message == "" {
		res.Message = "optimization service reported failure"
	}
	log.Info(ctx, "execution finished",
		logger.String("run_id", runID),
		logger.String("algorithm", res.Algorithm),
		logger.Bool("success", res.Success),
		logger.Float64("execution_time_ms", res.ExecutionTime),
	)
	return res
}
