package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/omega-sfx/omega-billing/internal/httpx"
	"github.com/omega-sfx/omega-billing/internal/pdf"
)

type PlanningHandler struct{}

func NewPlanningHandler() *PlanningHandler { return &PlanningHandler{} }

// PDF: POST /planning/pdf – the admin UI posts the table it is displaying
// and gets back a landscape PDF.
func (h *PlanningHandler) PDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	var data pdf.PlanningData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	out, err := pdf.Planning(data)
	if err != nil {
		if errors.Is(err, pdf.ErrNoRows) {
			httpx.JSONError(w, http.StatusNotFound, "planning_export_empty", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "pdf_generation_failed", nil)
		return
	}
	name := data.Title
	if name == "" {
		name = "planning"
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}
