package handlers

import (
	"net/http"

	"github.com/bigkaa/printhome/checkout-web/internal/flow"
)

// GetSteps — GET /api/v1/steps?path=/step2. Шаги визарда и переходы
// относительно текущей страницы.
func (h *APIHandler) GetSteps(w http.ResponseWriter, r *http.Request) {
	current := r.URL.Query().Get("path")
	next, _ := flow.NextStepPath(current)

	writeJSON(w, http.StatusOK, struct {
		Steps    []flow.Step `json:"steps"`
		Current  int         `json:"current"`
		Next     string      `json:"next,omitempty"`
		Previous string      `json:"previous"`
	}{flow.Steps, flow.StepIndexFromPath(current), next, flow.PreviousStepPath(current)})
}
