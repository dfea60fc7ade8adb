package availability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openvax/vaxclinic-platform/internal/apperr"
	"github.com/openvax/vaxclinic-platform/internal/clinics"
	"github.com/openvax/vaxclinic-platform/pkg/logging"
)

// ClinicDirectory resolves clinics; missing or inactive ones fail NotFound.
type ClinicDirectory interface {
	GetActive(ctx context.Context, id string) (*clinics.Clinic, error)
}

// ScheduleSource yields the clinic's slot grid configuration.
type ScheduleSource interface {
	Get(ctx context.Context, clinicID string) (*clinics.Schedule, error)
}

// TakenSlotSource yields the occupied slots per day for a clinic between two
// days inclusive.
type TakenSlotSource interface {
	TakenSlots(ctx context.Context, clinicID uuid.UUID, from, to time.Time) (Taken, error)
}

// Handler serves the slot availability endpoint.
type Handler struct {
	clinics     ClinicDirectory
	schedules   ScheduleSource
	takenSlots  TakenSlotSource
	horizonDays int
	logger      *logging.Logger
	now         func() time.Time
}

// NewHandler creates the availability handler.
func NewHandler(clinicDir ClinicDirectory, schedules ScheduleSource, taken TakenSlotSource, horizonDays int, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if horizonDays <= 0 {
		horizonDays = 30
	}
	return &Handler{
		clinics:     clinicDir,
		schedules:   schedules,
		takenSlots:  taken,
		horizonDays: horizonDays,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the clock. Tests use this to pin the horizon.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

type slotsResponse struct {
	ClinicID  string `json:"clinic_id"`
	VaccineID string `json:"vaccine_id,omitempty"`
	DateRange struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"date_range"`
	SlotInfo struct {
		StartHour   int `json:"start_hour"`
		EndHour     int `json:"end_hour"`
		SlotMinutes int `json:"slot_minutes"`
	} `json:"slot_info"`
	Days []DaySlots `json:"days"`
}

// GetSlots returns the bookable calendar for a clinic.
// GET /api/v1/clinics/{clinicID}/slots?vaccine_id=
func (h *Handler) GetSlots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clinicID := chi.URLParam(r, "clinicID")
	if _, err := uuid.Parse(clinicID); err != nil {
		apperr.WriteJSON(w, apperr.Validation("invalid clinic id"))
		return
	}

	clinic, err := h.clinics.GetActive(ctx, clinicID)
	if err != nil {
		if apperr.KindOf(err) == "" {
			h.logger.Error("failed to load clinic", "clinic_id", clinicID, "error", err)
		}
		apperr.WriteJSON(w, err)
		return
	}

	sched, err := h.schedules.Get(ctx, clinicID)
	if err != nil {
		h.logger.Error("failed to load clinic schedule", "clinic_id", clinicID, "error", err)
		apperr.WriteJSON(w, err)
		return
	}

	today := h.now().UTC().Truncate(24 * time.Hour)
	to := today.AddDate(0, 0, h.horizonDays-1)

	taken, err := h.takenSlots.TakenSlots(ctx, clinic.ID, today, to)
	if err != nil {
		h.logger.Error("failed to load taken slots", "clinic_id", clinicID, "error", err)
		apperr.WriteJSON(w, err)
		return
	}

	grid := Grid{StartHour: sched.StartHour, EndHour: sched.EndHour, SlotMinutes: sched.SlotMinutes}

	var resp slotsResponse
	resp.ClinicID = clinicID
	resp.VaccineID = r.URL.Query().Get("vaccine_id")
	resp.DateRange.From = today.Format(DateLayout)
	resp.DateRange.To = to.Format(DateLayout)
	resp.SlotInfo.StartHour = grid.StartHour
	resp.SlotInfo.EndHour = grid.EndHour
	resp.SlotInfo.SlotMinutes = grid.SlotMinutes
	resp.Days = BuildCalendar(grid, today, h.horizonDays, taken)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode slots", "clinic_id", clinicID, "error", err)
	}
}
