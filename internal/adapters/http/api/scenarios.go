package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/patti-j/planettogetheraiv2-sub024/internal/scenario"
)

// ScenarioHandler evaluates what-if schedules.
type ScenarioHandler struct {
	deps ScenarioDependencies
	max  int
}

// NewScenarioHandler creates a new scenario handler.
func NewScenarioHandler(deps ScenarioDependencies, maxScenarios int) *ScenarioHandler {
	return &ScenarioHandler{deps: deps, max: maxScenarios}
}

type scenariosRequest struct {
	Scenarios []scenario.Scenario `json:"scenarios"`
}

type scenariosResponse struct {
	Outcomes []scenario.Outcome `json:"outcomes"`
}

// HandleEvaluate handles POST /api/scenarios. The body is either JSON
// {"scenarios": [...]} or, with a YAML content type, a stream of scenario
// documents.
func (h *ScenarioHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var in []scenario.Scenario
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		var err error
		in, err = scenario.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), scenario.FormatYAML)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
	} else {
		var req scenariosRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		in = req.Scenarios
	}

	if len(in) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", scenario.ErrNoScenarios)
		return
	}
	if h.max > 0 && len(in) > h.max {
		writeError(w, http.StatusBadRequest, "limit_exceeded", fmt.Errorf("%w: %d > %d", ErrTooManyScenarios, len(in), h.max))
		return
	}
	writeJSON(w, http.StatusOK, scenariosResponse{Outcomes: h.deps.Scenarios(r.Context(), in)})
}
