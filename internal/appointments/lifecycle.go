package appointments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openvax/vaxclinic-platform/internal/apperr"
	"github.com/openvax/vaxclinic-platform/internal/events"
	"github.com/openvax/vaxclinic-platform/internal/identity"
	"github.com/openvax/vaxclinic-platform/internal/records"
)

// Lifecycle actions staff can apply at the clinic desk.
const (
	ActionStartVisit = "start_visit"
	ActionCheckIn    = "check_in" // legacy alias, no state change
	ActionCheckOut   = "check_out"
	ActionNoShow     = "no_show"
)

// Doses of the same series are spaced four weeks apart.
const doseInterval = 28 * 24 * time.Hour

// StatusRequest is a staff lifecycle action.
type StatusRequest struct {
	Action           string `json:"action"`
	VerificationCode string `json:"verification_code,omitempty"`
	Reactions        string `json:"reactions,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

// UpdateStatus applies a staff action to an appointment at the actor's own
// clinic. start_visit confirms the appointment and assigns the staff member;
// check_out verifies the parent's code, completes the appointment, writes
// the vaccination record, and draws a dose from inventory in one
// transaction.
func (s *Service) UpdateStatus(ctx context.Context, actor identity.Actor, id uuid.UUID, req StatusRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.UpdateStatus")
	defer span.End()
	span.SetAttributes(attribute.String("action", req.Action))

	appt, err := s.updateStatus(ctx, actor, id, req)
	if err != nil {
		s.metrics.RecordTransition(req.Action, bookingOutcome(err))
		return nil, err
	}
	s.metrics.RecordTransition(req.Action, "success")
	return appt, nil
}

func (s *Service) updateStatus(ctx context.Context, actor identity.Actor, id uuid.UUID, req StatusRequest) (*Appointment, error) {
	if !actor.IsStaff() {
		return nil, apperr.Forbidden("only medical staff can update appointment status")
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.ClinicID != actor.ClinicID {
		return nil, apperr.Forbidden("appointment belongs to another clinic")
	}
	if appt.Status.Terminal() {
		return nil, apperr.InvalidTransition("appointment is already %s", appt.Status)
	}

	switch req.Action {
	case ActionStartVisit:
		return s.startVisit(ctx, actor, appt)
	case ActionCheckIn:
		if err := s.repo.Touch(ctx, appt.ID); err != nil {
			return nil, err
		}
		return appt, nil
	case ActionCheckOut:
		return s.checkOut(ctx, actor, appt, req)
	case ActionNoShow:
		if err := s.repo.MarkNoShow(ctx, appt.ID, req.Notes); err != nil {
			return nil, err
		}
		appt.Status = StatusNoShow
		s.emit(ctx, events.TypeNoShow, appt)
		return appt, nil
	}
	return nil, apperr.Validation("unknown action %q", req.Action)
}

func (s *Service) startVisit(ctx context.Context, actor identity.Actor, appt *Appointment) (*Appointment, error) {
	if err := s.repo.StartVisit(ctx, appt.ID, actor.ID); err != nil {
		return nil, err
	}
	appt.Status = StatusConfirmed
	appt.StaffID = &actor.ID
	appt.VerificationCode = ""
	s.emit(ctx, events.TypeConfirmed, appt)
	return appt, nil
}

// checkOut completes the visit. The code the parent presents must match the
// one issued at booking, proving the patient is physically present before
// any dose is drawn. The appointment row is re-read under lock so the status
// checked is the status committed against, and the record insert plus the
// inventory draw either all land or none do.
func (s *Service) checkOut(ctx context.Context, actor identity.Actor, appt *Appointment, req StatusRequest) (*Appointment, error) {
	if req.VerificationCode == "" {
		return nil, apperr.Validation("verification_code is required")
	}
	if req.VerificationCode != appt.VerificationCode {
		return nil, apperr.Validation("verification code does not match")
	}

	vaccine, err := s.vaccines.GetActive(ctx, appt.VaccineID.String())
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	locked, err := s.repo.GetForUpdateTx(ctx, tx, appt.ID)
	if err != nil {
		return nil, err
	}
	if !locked.Status.Active() {
		return nil, apperr.InvalidTransition("appointment is already %s", locked.Status)
	}

	doseNumber, err := s.records.NextDoseNumberTx(ctx, tx, locked.ChildID, locked.VaccineID)
	if err != nil {
		return nil, err
	}

	batch, err := s.inventory.DecrementTx(ctx, tx, locked.ClinicID, locked.VaccineID, 1, locked.ScheduledDate)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := &records.Record{
		AppointmentID:  locked.ID,
		ChildID:        locked.ChildID,
		StaffID:        actor.ID,
		VaccineID:      locked.VaccineID,
		BatchNumber:    batch.BatchNumber,
		DoseNumber:     doseNumber,
		AdministeredAt: now,
		Reactions:      req.Reactions,
		Notes:          req.Notes,
	}
	if doseNumber < vaccine.DosageCount {
		next := now.Add(doseInterval)
		rec.NextDueDate = &next
	}
	if err := s.records.InsertTx(ctx, tx, rec); err != nil {
		return nil, err
	}

	if err := s.repo.MarkCompletedTx(ctx, tx, locked.ID, actor.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	appt.Status = StatusCompleted
	appt.StaffID = &actor.ID
	appt.VerificationCode = ""
	s.logger.Info("appointment completed",
		"appointment_id", appt.ID,
		"batch_number", batch.BatchNumber,
		"dose_number", doseNumber,
	)
	s.emit(ctx, events.TypeCompleted, appt)
	return appt, nil
}

// CancelRequest carries the mandatory reason.
type CancelRequest struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes,omitempty"`
}

// Cancel retires an appointment and frees its slot. Parents cancel their
// own, staff cancel at their clinic, admins cancel anything. Cancelling
// twice is a conflict; cancelling a finished visit is an invalid
// transition.
func (s *Service) Cancel(ctx context.Context, actor identity.Actor, id uuid.UUID, req CancelRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.Cancel")
	defer span.End()

	if req.Reason == "" {
		s.metrics.RecordTransition("cancel", string(apperr.KindValidation))
		return nil, apperr.Validation("cancellation reason is required")
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeMutation(actor, appt); err != nil {
		return nil, err
	}

	switch appt.Status {
	case StatusCancelled:
		return nil, apperr.Conflict("appointment is already cancelled")
	case StatusCompleted, StatusNoShow:
		return nil, apperr.InvalidTransition("cannot cancel a %s appointment", appt.Status)
	}

	if err := s.repo.Cancel(ctx, id, req.Reason, req.Notes); err != nil {
		s.metrics.RecordTransition("cancel", "error")
		return nil, err
	}

	appt.Status = StatusCancelled
	appt.CancellationReason = req.Reason
	if req.Notes != "" {
		appt.Notes = req.Notes
	}
	s.metrics.RecordTransition("cancel", "success")
	s.emit(ctx, events.TypeCancelled, appt)
	return appt, nil
}

// RescheduleRequest names the new slot.
type RescheduleRequest struct {
	Date string `json:"scheduled_date"`
	Time string `json:"scheduled_time"`
}

// Reschedule moves an active appointment to a new slot and resets it to
// SCHEDULED. The verification code is kept; the parent already holds it.
func (s *Service) Reschedule(ctx context.Context, actor identity.Actor, id uuid.UUID, req RescheduleRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.Reschedule")
	defer span.End()

	if actor.IsStaff() {
		return nil, apperr.Forbidden("staff cannot reschedule appointments")
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeMutation(actor, appt); err != nil {
		return nil, err
	}
	if !appt.Status.Active() {
		return nil, apperr.InvalidTransition("cannot reschedule a %s appointment", appt.Status)
	}

	date, err := ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	slotTime, err := ParseSlotTime(req.Time)
	if err != nil {
		return nil, err
	}
	today := s.today()
	if date.Before(today) {
		return nil, apperr.Validation("cannot reschedule into the past")
	}
	if date.After(today.AddDate(0, 0, s.horizonDays-1)) {
		return nil, apperr.Validation("bookings are open up to %d days ahead", s.horizonDays)
	}
	if err := s.validateSlotOnGrid(ctx, appt.ClinicID.String(), slotTime); err != nil {
		return nil, err
	}

	// The appointment's own slot is excluded so keeping the same slot
	// while changing nothing else is not a collision.
	taken, err := s.repo.SlotTaken(ctx, appt.ClinicID, date, slotTime, &appt.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errSlotConflict
	}

	if err := s.repo.Reschedule(ctx, id, date, slotTime); err != nil {
		s.metrics.RecordTransition("reschedule", "error")
		return nil, err
	}

	appt.ScheduledDate = date
	appt.ScheduledTime = slotTime
	appt.Status = StatusScheduled
	appt.fillDateString()
	s.metrics.RecordTransition("reschedule", "success")
	s.emit(ctx, events.TypeRescheduled, appt)
	return appt, nil
}

// Acknowledge records the parent's confirmation of a completed visit.
func (s *Service) Acknowledge(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Appointment, error) {
	if !actor.IsParent() {
		return nil, apperr.Forbidden("only the parent can acknowledge an appointment")
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.ParentID != actor.ID {
		return nil, apperr.Forbidden("appointment belongs to another parent")
	}
	if appt.Status != StatusCompleted {
		return nil, apperr.InvalidTransition("only completed appointments can be acknowledged")
	}
	if appt.IsParentAcknowledged {
		return nil, apperr.Conflict("appointment is already acknowledged")
	}

	ok, err := s.repo.Acknowledge(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Conflict("appointment is already acknowledged")
	}

	now := s.now().UTC()
	appt.IsParentAcknowledged = true
	appt.ParentAcknowledgedAt = &now
	return appt, nil
}

// Delete removes an appointment outright. Admin only, and refused once a
// vaccination record references it.
func (s *Service) Delete(ctx context.Context, actor identity.Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return apperr.Forbidden("only admins can delete appointments")
	}

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}

	exists, err := s.records.ExistsForAppointment(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return apperr.Conflict("appointment has a vaccination record and cannot be deleted")
	}
	return s.repo.Delete(ctx, id)
}

// authorizeMutation mirrors authorizeView for write paths.
func (s *Service) authorizeMutation(actor identity.Actor, appt *Appointment) error {
	return s.authorizeView(actor, appt)
}
