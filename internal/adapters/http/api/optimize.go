package api

import (
	"net/http"

	"github.com/patti-j/planettogetheraiv2-sub024/internal/adapters/optimizer"
)

// OptimizeHandler runs optimizations.
type OptimizeHandler struct {
	deps OptimizeDependencies
}

// NewOptimizeHandler creates a new optimize handler.
func NewOptimizeHandler(deps OptimizeDependencies) *OptimizeHandler {
	return &OptimizeHandler{deps: deps}
}

// HandleOptimize handles POST /api/optimize. Execution failures are reported
// in the body with status 200; only malformed requests and conflicts are HTTP
// errors.
func (h *OptimizeHandler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var exec optimizer.AlgorithmExecution
	if err := decodeJSON(w, r, &exec, false); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	out, err := h.deps.Optimize(r.Context(), exec)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
