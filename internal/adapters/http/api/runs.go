package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/patti-j/planettogetheraiv2-sub024/internal/adapters/history"
)

// RunsHandler serves the run history.
type RunsHandler struct {
	deps     RunDependencies
	maxLimit int
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps RunDependencies, maxLimit int) *RunsHandler {
	return &RunsHandler{deps: deps, maxLimit: maxLimit}
}

// HandleList handles GET /api/runs?limit=N. Without limit the service default
// applies.
func (h *RunsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	n := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		var err error
		n, err = strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		if h.maxLimit > 0 && n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", ErrBadRequest)
			return
		}
	}
	runs, err := h.deps.Runs(r.Context(), n)
	if err != nil {
		if errors.Is(err, history.ErrInvalidLimit) {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		writeServiceError(w, err)
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// HandleGet handles GET /api/runs/{id}.
func (h *RunsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	run, err := h.deps.Run(r.Context(), id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
