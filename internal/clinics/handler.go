package clinics

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openvax/vaxclinic-platform/internal/apperr"
	"github.com/openvax/vaxclinic-platform/pkg/logging"
)

// Handler serves the clinic directory and the admin schedule override.
type Handler struct {
	repo      *Repository
	schedules *ScheduleStore
	logger    *logging.Logger
}

// NewHandler creates the clinics handler.
func NewHandler(repo *Repository, schedules *ScheduleStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, schedules: schedules, logger: logger}
}

// List returns all active clinics.
// GET /api/v1/clinics
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list clinics", "error", err)
		apperr.WriteJSON(w, err)
		return
	}
	if list == nil {
		list = []*Clinic{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"clinics": list})
}

// SetSchedule stores a clinic's slot-grid override.
// PUT /api/v1/admin/clinics/{clinicID}/schedule
func (h *Handler) SetSchedule(w http.ResponseWriter, r *http.Request) {
	clinicID := chi.URLParam(r, "clinicID")
	if _, err := uuid.Parse(clinicID); err != nil {
		apperr.WriteJSON(w, apperr.Validation("invalid clinic id"))
		return
	}

	if _, err := h.repo.GetActive(r.Context(), clinicID); err != nil {
		apperr.WriteJSON(w, err)
		return
	}

	var sched Schedule
	if err := json.NewDecoder(r.Body).Decode(&sched); err != nil {
		apperr.WriteJSON(w, apperr.Validation("invalid request body"))
		return
	}
	sched.ClinicID = clinicID

	if err := h.schedules.Set(r.Context(), &sched); err != nil {
		if apperr.KindOf(err) == "" {
			h.logger.Error("failed to store schedule", "clinic_id", clinicID, "error", err)
		}
		apperr.WriteJSON(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(&sched)
}
