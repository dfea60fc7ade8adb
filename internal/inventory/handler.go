package inventory

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openvax/vaxclinic-platform/internal/apperr"
	"github.com/openvax/vaxclinic-platform/pkg/logging"
)

// Handler serves the admin inventory reads.
type Handler struct {
	repo   *Repository
	logger *logging.Logger
}

// NewHandler creates the inventory handler.
func NewHandler(repo *Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListByClinic returns the clinic's unexpired batches, soonest expiry first.
// GET /api/v1/admin/clinics/{clinicID}/inventory
func (h *Handler) ListByClinic(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	if _, err := uuid.Parse(clinicID); err != nil {
		apperr.WriteJSON(w, apperr.Validation("invalid clinic id"))
		return
	}

	batches, err := h.repo.ListByClinic(r.Context(), clinicID)
	if err != nil {
		h.logger.Error("failed to list inventory", "clinic_id", clinicID, "error", err)
		apperr.WriteJSON(w, err)
		return
	}
	if batches == nil {
		batches = []*Batch{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"clinic_id": clinicID, "batches": batches})
}
