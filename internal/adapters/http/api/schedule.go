package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/patti-j/planettogetheraiv2-sub024/internal/adapters/livemodel"
	service "github.com/patti-j/planettogetheraiv2-sub024/internal/app"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/schedule"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/domain/validation"
)

// ScheduleHandler handles the live schedule routes.
type ScheduleHandler struct {
	deps ScheduleDependencies
}

// NewScheduleHandler creates a new schedule handler.
func NewScheduleHandler(deps ScheduleDependencies) *ScheduleHandler {
	return &ScheduleHandler{deps: deps}
}

type scheduleResponse struct {
	Version uint64 `json:"version"`
	schedule.Snapshot
}

type versionResponse struct {
	Version uint64 `json:"version"`
}

// validateRequest is the body of POST /api/schedule/validate. Both fields are
// optional: the live schedule and every rule are used when absent.
type validateRequest struct {
	Schedule *schedule.Snapshot  `json:"schedule,omitempty"`
	Rules    *validation.RuleSet `json:"rules,omitempty"`
}

// HandleSchedule handles GET and PUT /api/schedule.
func (h *ScheduleHandler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		snap, v := h.deps.Snapshot()
		writeJSON(w, http.StatusOK, scheduleResponse{Version: v, Snapshot: snap})
	case http.MethodPut:
		var snap schedule.Snapshot
		if err := decodeJSON(w, r, &snap, false); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		v, err := h.deps.ReplaceSchedule(r.Context(), snap)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, versionResponse{Version: v})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut)
	}
}

// HandleValidate handles POST /api/schedule/validate.
func (h *ScheduleHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req validateRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Rules != nil && req.Rules.Policy != nil && !req.Rules.Policy.Strictness.Valid() && req.Rules.Policy.Strictness != "" {
		writeError(w, http.StatusBadRequest, "bad_request", validation.ErrUnknownStrictness)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Validate(r.Context(), req.Schedule, req.Rules))
}

// HandleMetrics handles GET /api/schedule/metrics.
func (h *ScheduleHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Metrics(r.Context()))
}

// HandleUpdateEvent handles PUT /api/schedule/events/{id}.
func (h *ScheduleHandler) HandleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, http.MethodPut)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/schedule/events/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	var op schedule.Operation
	if err := decodeJSON(w, r, &op, false); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if op.ID != "" && op.ID != schedule.ID(id) {
		writeError(w, http.StatusBadRequest, "id_mismatch", ErrBadRequest)
		return
	}
	op.ID = schedule.ID(id)
	v, err := h.deps.UpdateOperation(r.Context(), op)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versionResponse{Version: v})
}

// writeServiceError maps engine errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrReconcileInFlight):
		writeError(w, http.StatusConflict, "reconcile_in_flight", err)
	case errors.Is(err, service.ErrInvalidSnapshot), errors.Is(err, livemodel.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, livemodel.ErrEventNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrHistoryDisabled):
		writeError(w, http.StatusServiceUnavailable, "history_disabled", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
