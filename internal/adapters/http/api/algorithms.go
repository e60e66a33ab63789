package api

import "net/http"

// AlgorithmHandler serves the algorithm catalogs.
type AlgorithmHandler struct {
	deps AlgorithmDependencies
}

// NewAlgorithmHandler creates a new algorithm handler.
func NewAlgorithmHandler(deps AlgorithmDependencies) *AlgorithmHandler {
	return &AlgorithmHandler{deps: deps}
}

// HandleCustom handles GET /api/algorithms. An unreachable catalog is an
// empty list, not an error.
func (h *AlgorithmHandler) HandleCustom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Algorithms(r.Context()))
}

// HandleStandard handles GET /api/algorithms/standard.
func (h *AlgorithmHandler) HandleStandard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.StandardAlgorithms(r.Context()))
}
