package appointments

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openvax/vaxclinic-platform/internal/apperr"
	"github.com/openvax/vaxclinic-platform/internal/identity"
	"github.com/openvax/vaxclinic-platform/pkg/logging"
)

// AppointmentService is the surface the handler needs. *Service satisfies
// it; tests substitute a stub.
type AppointmentService interface {
	Book(ctx context.Context, actor identity.Actor, req BookRequest) (*Appointment, error)
	List(ctx context.Context, actor identity.Actor, q ListQuery) (*ListResult, error)
	Get(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, actor identity.Actor, id uuid.UUID, req StatusRequest) (*Appointment, error)
	Cancel(ctx context.Context, actor identity.Actor, id uuid.UUID, req CancelRequest) (*Appointment, error)
	Reschedule(ctx context.Context, actor identity.Actor, id uuid.UUID, req RescheduleRequest) (*Appointment, error)
	Acknowledge(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Appointment, error)
	Delete(ctx context.Context, actor identity.Actor, id uuid.UUID) error
}

// Handler serves the appointment endpoints.
type Handler struct {
	service AppointmentService
	logger  *logging.Logger
}

// NewHandler creates the appointments handler.
func NewHandler(service AppointmentService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (identity.Actor, bool) {
	actor, ok := identity.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
	}
	return actor, ok
}

func (h *Handler) appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		apperr.WriteJSON(w, apperr.Validation("invalid appointment id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, appt *Appointment, err error) {
	if err != nil {
		if apperr.KindOf(err) == "" {
			h.logger.Error("appointment request failed",
				"method", r.Method, "path", r.URL.Path, "error", err)
		}
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, status, appt)
}

// Create books an appointment.
// POST /api/v1/appointments
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.Validation("invalid request body"))
		return
	}
	appt, err := h.service.Book(r.Context(), actor, req)
	h.respond(w, r, http.StatusCreated, appt, err)
}

// List returns the actor's visible appointments with statistics.
// GET /api/v1/appointments?status=&clinic_id=&parent_id=&child_id=&date_from=&date_to=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	q := ListQuery{
		Status:   r.URL.Query().Get("status"),
		ClinicID: r.URL.Query().Get("clinic_id"),
		ParentID: r.URL.Query().Get("parent_id"),
		ChildID:  r.URL.Query().Get("child_id"),
		DateFrom: r.URL.Query().Get("date_from"),
		DateTo:   r.URL.Query().Get("date_to"),
	}
	result, err := h.service.List(r.Context(), actor, q)
	if err != nil {
		if apperr.KindOf(err) == "" {
			h.logger.Error("failed to list appointments", "error", err)
		}
		apperr.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Get returns one appointment.
// GET /api/v1/appointments/{appointmentID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.appointmentID(w, r)
	if !ok {
		return
	}
	appt, err := h.service.Get(r.Context(), actor, id)
	h.respond(w, r, http.StatusOK, appt, err)
}

// UpdateStatus applies a staff lifecycle action.
// POST /api/v1/appointments/{appointmentID}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.appointmentID(w, r)
	if !ok {
		return
	}
	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.Validation("invalid request body"))
		return
	}
	appt, err := h.service.UpdateStatus(r.Context(), actor, id, req)
	h.respond(w, r, http.StatusOK, appt, err)
}

// Cancel retires an appointment.
// POST /api/v1/appointments/{appointmentID}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.appointmentID(w, r)
	if !ok {
		return
	}
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.Validation("invalid request body"))
		return
	}
	appt, err := h.service.Cancel(r.Context(), actor, id, req)
	h.respond(w, r, http.StatusOK, appt, err)
}

// Reschedule moves an appointment to a new slot.
// POST /api/v1/appointments/{appointmentID}/reschedule
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.appointmentID(w, r)
	if !ok {
		return
	}
	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.Validation("invalid request body"))
		return
	}
	appt, err := h.service.Reschedule(r.Context(), actor, id, req)
	h.respond(w, r, http.StatusOK, appt, err)
}

// Acknowledge records the parent's confirmation of a completed visit.
// POST /api/v1/appointments/{appointmentID}/acknowledge
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.appointmentID(w, r)
	if !ok {
		return
	}
	appt, err := h.service.Acknowledge(r.Context(), actor, id)
	h.respond(w, r, http.StatusOK, appt, err)
}

// Delete removes an appointment outright.
// DELETE /api/v1/appointments/{appointmentID}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.appointmentID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		if apperr.KindOf(err) == "" {
			h.logger.Error("failed to delete appointment", "error", err)
		}
		apperr.WriteJSON(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
