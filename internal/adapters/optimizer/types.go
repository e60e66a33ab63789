package optimizer

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/schedule"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/validation"
)

// AlgorithmID identifies an algorithm in the catalog. The optimization service
// numbers algorithms, so numeric ids are sent as JSON numbers.
type AlgorithmID string

// MarshalJSON emits numeric ids as numbers and everything else as strings.
func (id AlgorithmID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts a JSON string or number.
func (id *AlgorithmID) UnmarshalJSON(data []byte) error {
	var sid schedule.ID
	if err := sid.UnmarshalJSON(bytes.TrimSpace(data)); err != nil {
		return err
	}
	*id = AlgorithmID(sid)
	return nil
}

// Parameter types understood by ParameterSpec.
const (
	ParamNumber  = "number"
	ParamInteger = "integer"
	ParamBoolean = "boolean"
	ParamString  = "string"
	ParamSelect  = "select"
)

// ParameterSpec declares one tunable parameter of an algorithm.
type ParameterSpec struct {
	Type        string   `json:"type"`
	Default     any      `json:"default,omitempty"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Options     []string `json:"options,omitempty"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required,omitempty"`
}

// AlgorithmDescriptor is a catalog entry.
type AlgorithmDescriptor struct {
	ID            AlgorithmID              `json:"id"`
	Name          string                   `json:"name"`
	DisplayName   string                   `json:"displayName,omitempty"`
	Description   string                   `json:"description,omitempty"`
	Category      string                   `json:"category,omitempty"`
	AlgorithmType string                   `json:"algorithmType,omitempty"`
	Version       string                   `json:"version,omitempty"`
	IsActive      bool                     `json:"isActive"`
	Parameters    map[string]ParameterSpec `json:"parameters,omitempty"`
}

// Label is the display name, falling back to the name and then the id.
func (d AlgorithmDescriptor) Label() string {
	switch {
	case d.DisplayName != "":
		return d.DisplayName
	case d.Name != "":
		return d.Name
	}
	return string(d.ID)
}

// Scope narrows the problem handed to an algorithm.
type Scope struct {
	TimeHorizon string        `json:"timeHorizon,omitempty"`
	ResourceIDs []schedule.ID `json:"resourceIds,omitempty"`
	JobIDs      []schedule.ID `json:"jobIds,omitempty"`
	StartDate   *time.Time    `json:"startDate,omitempty"`
	EndDate     *time.Time    `json:"endDate,omitempty"`
}

// Constraints selects which constraints the algorithm must honour.
type Constraints struct {
	Enabled    []string              `json:"enabled"`
	Strictness validation.Strictness `json:"strictness"`
}

// AlgorithmExecution is the request body of an execution call.
type AlgorithmExecution struct {
	AlgorithmID     AlgorithmID         `json:"algorithmId"`
	Parameters      map[string]any      `json:"parameters"`
	Scope           Scope               `json:"scope"`
	ValidationRules *validation.RuleSet `json:"validationRules,omitempty"`
	Constraints     *Constraints        `json:"constraints,omitempty"`
}

// ResultMetrics are the quality figures an algorithm reports about its own output.
type ResultMetrics struct {
	Makespan             *float64 `json:"makespan,omitempty"`
	ResourceUtilization  *float64 `json:"resourceUtilization,omitempty"`
	OnTimeDelivery       *float64 `json:"onTimeDelivery,omitempty"`
	TotalCost            *float64 `json:"totalCost,omitempty"`
	ConstraintViolations *float64 `json:"constraintViolations,omitempty"`
}

// Result is the outcome of an execution. It is transient and never persisted.
type Result struct {
	Success           bool                   `json:"success"`
	Algorithm         string                 `json:"algorithm"`
	ExecutionTime     float64                `json:"executionTime"`
	OptimizedSchedule *schedule.Proposal     `json:"optimizedSchedule,omitempty"`
	Metrics           *ResultMetrics         `json:"metrics,omitempty"`
	Violations        []validation.Violation `json:"violations,omitempty"`
	Message           string                 `json:"message,omitempty"`
	RunID             string                 `json:"runId,omitempty"`
}

// failed builds the result every execution failure is reported as.
func failed(runID, msg string) Result {
	return Result{Success: false, Algorithm: "unknown", ExecutionTime: 0, Message: msg, RunID: runID}
}
