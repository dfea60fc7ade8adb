package appointments

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/openvax/vaxclinic-platform/internal/apperr"
	"github.com/openvax/vaxclinic-platform/internal/availability"
	"github.com/openvax/vaxclinic-platform/internal/children"
	"github.com/openvax/vaxclinic-platform/internal/clinics"
	"github.com/openvax/vaxclinic-platform/internal/events"
	"github.com/openvax/vaxclinic-platform/internal/identity"
	"github.com/openvax/vaxclinic-platform/internal/inventory"
	"github.com/openvax/vaxclinic-platform/internal/observability/metrics"
	"github.com/openvax/vaxclinic-platform/internal/records"
	"github.com/openvax/vaxclinic-platform/internal/vaccines"
	"github.com/openvax/vaxclinic-platform/pkg/logging"
)

var tracer = otel.Tracer("vaxclinic.appointments")

// ClinicDirectory resolves active clinics.
type ClinicDirectory interface {
	GetActive(ctx context.Context, id string) (*clinics.Clinic, error)
}

// ScheduleSource yields the clinic's slot grid.
type ScheduleSource interface {
	Get(ctx context.Context, clinicID string) (*clinics.Schedule, error)
}

// VaccineCatalog resolves active vaccines.
type VaccineCatalog interface {
	GetActive(ctx context.Context, id string) (*vaccines.Vaccine, error)
}

// ChildDirectory resolves child profiles.
type ChildDirectory interface {
	GetByID(ctx context.Context, id string) (*children.Child, error)
	GetOwnedActive(ctx context.Context, parentID uuid.UUID, id string) (*children.Child, error)
}

// InventorySource covers the booking-time stock check and the check-out
// draw.
type InventorySource interface {
	HasQualifyingBatch(ctx context.Context, clinicID, vaccineID uuid.UUID, doses int, onDate time.Time) (bool, error)
	DecrementTx(ctx context.Context, q inventory.Querier, clinicID, vaccineID uuid.UUID, doses int, onDate time.Time) (*inventory.Batch, error)
}

// RecordStore covers record creation inside the check-out transaction and
// the deletion guard.
type RecordStore interface {
	NextDoseNumberTx(ctx context.Context, q records.Querier, childID *uuid.UUID, vaccineID uuid.UUID) (int, error)
	InsertTx(ctx context.Context, q records.Querier, rec *records.Record) error
	ExistsForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error)
}

// EventSink appends domain events. Emission is best-effort; a sink failure
// is logged, never surfaced to the caller.
type EventSink interface {
	Emit(ctx context.Context, eventType string, clinicID uuid.UUID, payload any) error
}

// Service coordinates booking and the appointment lifecycle.
type Service struct {
	repo        *Repository
	clinics     ClinicDirectory
	schedules   ScheduleSource
	vaccines    VaccineCatalog
	children    ChildDirectory
	inventory   InventorySource
	records     RecordStore
	events      EventSink
	metrics     *metrics.BookingMetrics
	logger      *logging.Logger
	horizonDays int
	now         func() time.Time
}

// NewService wires the booking coordinator.
func NewService(
	repo *Repository,
	clinicDir ClinicDirectory,
	schedules ScheduleSource,
	catalog VaccineCatalog,
	childDir ChildDirectory,
	inv InventorySource,
	recs RecordStore,
	events EventSink,
	m *metrics.BookingMetrics,
	horizonDays int,
	logger *logging.Logger,
) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if horizonDays <= 0 {
		horizonDays = 30
	}
	return &Service{
		repo:        repo,
		clinics:     clinicDir,
		schedules:   schedules,
		vaccines:    catalog,
		children:    childDir,
		inventory:   inv,
		records:     recs,
		events:      events,
		metrics:     m,
		logger:      logger,
		horizonDays: horizonDays,
		now:         time.Now,
	}
}

// WithClock overrides the clock for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// BookRequest is the booking input after JSON decoding.
type BookRequest struct {
	ParentID  string `json:"parent_id,omitempty"`
	ChildID   string `json:"child_id,omitempty"`
	ClinicID  string `json:"clinic_id"`
	VaccineID string `json:"vaccine_id"`
	Date      string `json:"scheduled_date"`
	Time      string `json:"scheduled_time"`
	Notes     string `json:"notes,omitempty"`
}

func (s *Service) today() time.Time {
	return s.now().UTC().Truncate(24 * time.Hour)
}

// newVerificationCode draws a 4-digit code from crypto/rand.
func newVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("appointments: generate code: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

// resolveParent determines who the appointment is booked for. Parents book
// for themselves; admins must name the parent explicitly.
func resolveParent(actor identity.Actor, req BookRequest) (uuid.UUID, error) {
	switch {
	case actor.IsParent():
		return actor.ID, nil
	case actor.IsAdmin():
		if req.ParentID == "" {
			return uuid.Nil, apperr.Validation("parent_id is required when booking on behalf of a parent")
		}
		parentID, err := uuid.Parse(req.ParentID)
		if err != nil {
			return uuid.Nil, apperr.Validation("invalid parent_id")
		}
		return parentID, nil
	}
	return uuid.Nil, apperr.Forbidden("only parents and admins can book appointments")
}

// Book validates and creates an appointment. The slot-collision pre-check
// and the unique index together guarantee at most one active appointment
// per slot; the index decides races.
func (s *Service) Book(ctx context.Context, actor identity.Actor, req BookRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointments.Book")
	defer span.End()
	start := s.now()

	appt, err := s.book(ctx, actor, req)
	if err != nil {
		span.SetAttributes(attribute.String("outcome", string(apperr.KindOf(err))))
		s.metrics.RecordBooking(bookingOutcome(err), s.now().Sub(start))
		return nil, err
	}

	span.SetAttributes(attribute.String("appointment_id", appt.ID.String()))
	s.metrics.RecordBooking("success", s.now().Sub(start))
	s.emit(ctx, events.TypeBooked, appt)
	return appt, nil
}

func bookingOutcome(err error) string {
	if kind := apperr.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

func (s *Service) book(ctx context.Context, actor identity.Actor, req BookRequest) (*Appointment, error) {
	parentID, err := resolveParent(actor, req)
	if err != nil {
		return nil, err
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
		return nil, apperr.Validation("cannot book an appointment in the past")
	}
	if date.After(today.AddDate(0, 0, s.horizonDays-1)) {
		return nil, apperr.Validation("bookings are open up to %d days ahead", s.horizonDays)
	}

	clinicID, err := uuid.Parse(req.ClinicID)
	if err != nil {
		return nil, apperr.Validation("invalid clinic_id")
	}
	vaccineID, err := uuid.Parse(req.VaccineID)
	if err != nil {
		return nil, apperr.Validation("invalid vaccine_id")
	}

	var child *children.Child
	if req.ChildID != "" {
		child, err = s.resolveChild(ctx, actor, req.ChildID)
		if err != nil {
			return nil, err
		}
	}

	// Reference validations are independent; run them together.
	var clinic *clinics.Clinic
	var vaccine *vaccines.Vaccine
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		clinic, err = s.clinics.GetActive(gctx, req.ClinicID)
		return err
	})
	g.Go(func() error {
		var err error
		vaccine, err = s.vaccines.GetActive(gctx, req.VaccineID)
		return err
	})
	g.Go(func() error {
		taken, err := s.repo.SlotTaken(gctx, clinicID, date, slotTime, nil)
		if err != nil {
			return err
		}
		if taken {
			return errSlotConflict
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.validateSlotOnGrid(ctx, req.ClinicID, slotTime); err != nil {
		return nil, err
	}

	// A batch qualifies only when it can cover the vaccine's full series and
	// outlives the scheduled date.
	ok, err := s.inventory.HasQualifyingBatch(ctx, clinicID, vaccineID, vaccine.DosageCount, date)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.InsufficientInventory("insufficient vaccine stock at this center, please try another center")
	}

	code, err := newVerificationCode()
	if err != nil {
		return nil, err
	}

	appt := &Appointment{
		ParentID:         parentID,
		ClinicID:         clinicID,
		VaccineID:        vaccineID,
		ScheduledDate:    date,
		ScheduledTime:    slotTime,
		VerificationCode: code,
		Notes:            req.Notes,
		ClinicName:       clinic.Name,
		VaccineName:      vaccine.Name,
	}
	if child != nil {
		appt.ChildID = &child.ID
		appt.ChildName = child.Name
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, err
	}

	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"clinic_id", clinicID,
		"date", appt.DateString,
		"time", slotTime,
	)
	return appt, nil
}

// resolveChild enforces ownership for parents. Admin bookings only need the
// child to exist.
func (s *Service) resolveChild(ctx context.Context, actor identity.Actor, childID string) (*children.Child, error) {
	if actor.IsParent() {
		return s.children.GetOwnedActive(ctx, actor.ID, childID)
	}
	return s.children.GetByID(ctx, childID)
}

// validateSlotOnGrid rejects times the clinic's schedule never offers.
func (s *Service) validateSlotOnGrid(ctx context.Context, clinicID, slotTime string) error {
	sched, err := s.schedules.Get(ctx, clinicID)
	if err != nil {
		return err
	}
	grid := availability.Grid{StartHour: sched.StartHour, EndHour: sched.EndHour, SlotMinutes: sched.SlotMinutes}
	for _, label := range grid.Times() {
		if label == slotTime {
			return nil
		}
	}
	return apperr.Validation("time %s is outside the clinic's schedule", slotTime)
}

type eventPayload struct {
	AppointmentID string `json:"appointment_id"`
	ParentID      string `json:"parent_id"`
	ClinicID      string `json:"clinic_id"`
	Date          string `json:"scheduled_date"`
	Time          string `json:"scheduled_time"`
	Status        string `json:"status"`
}

func (s *Service) emit(ctx context.Context, eventType string, appt *Appointment) {
	if s.events == nil {
		return
	}
	payload := eventPayload{
		AppointmentID: appt.ID.String(),
		ParentID:      appt.ParentID.String(),
		ClinicID:      appt.ClinicID.String(),
		Date:          appt.DateString,
		Time:          appt.ScheduledTime,
		Status:        string(appt.Status),
	}
	if err := s.events.Emit(ctx, eventType, appt.ClinicID, payload); err != nil {
		s.logger.Error("failed to emit event", "event_type", eventType, "appointment_id", appt.ID, "error", err)
	}
}

// ListQuery narrows a listing from query parameters. ClinicID and ParentID
// are honored for admins only; other roles are scoped by their identity.
type ListQuery struct {
	Status   string
	ClinicID string
	ParentID string
	ChildID  string
	DateFrom string
	DateTo   string
}

// ListResult pairs the page with its status breakdown.
type ListResult struct {
	Appointments []*Appointment `json:"appointments"`
	Statistics   Statistics     `json:"statistics"`
}

// List returns appointments visible to the actor. Parents see their own,
// staff see their clinic's, admins see everything. Without an explicit
// range the window defaults to today through the booking horizon, except
// for completed-only listings which look backwards.
func (s *Service) List(ctx context.Context, actor identity.Actor, q ListQuery) (*ListResult, error) {
	ctx, span := tracer.Start(ctx, "appointments.List")
	defer span.End()

	filter, err := s.buildListFilter(actor, q)
	if err != nil {
		return nil, err
	}

	appts, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.CountByStatus(ctx, filter)
	if err != nil {
		return nil, err
	}

	if actor.IsStaff() {
		for _, a := range appts {
			a.VerificationCode = ""
		}
	}
	if appts == nil {
		appts = []*Appointment{}
	}
	span.SetAttributes(attribute.Int("count", len(appts)))
	return &ListResult{Appointments: appts, Statistics: stats}, nil
}

func (s *Service) buildListFilter(actor identity.Actor, q ListQuery) (ListFilter, error) {
	var f ListFilter

	statuses, err := ExpandStatusFilter(q.Status)
	if err != nil {
		return f, err
	}
	f.Statuses = statuses

	switch {
	case actor.IsParent():
		f.ParentID = actor.ID
	case actor.IsStaff():
		f.ClinicID = actor.ClinicID
	case actor.IsAdmin():
		if q.ClinicID != "" {
			clinicID, err := uuid.Parse(q.ClinicID)
			if err != nil {
				return f, apperr.Validation("invalid clinic_id")
			}
			f.ClinicID = clinicID
		}
		if q.ParentID != "" {
			parentID, err := uuid.Parse(q.ParentID)
			if err != nil {
				return f, apperr.Validation("invalid parent_id")
			}
			f.ParentID = parentID
		}
	}

	if q.ChildID != "" {
		childID, err := uuid.Parse(q.ChildID)
		if err != nil {
			return f, apperr.Validation("invalid child_id")
		}
		f.ChildID = childID
	}

	if q.DateFrom != "" {
		from, err := ParseDate(q.DateFrom)
		if err != nil {
			return f, err
		}
		f.DateFrom = from
	}
	if q.DateTo != "" {
		to, err := ParseDate(q.DateTo)
		if err != nil {
			return f, err
		}
		f.DateTo = to
	}
	if !f.DateFrom.IsZero() && !f.DateTo.IsZero() && f.DateTo.Before(f.DateFrom) {
		return f, apperr.Validation("date_to is before date_from")
	}

	completedOnly := len(f.Statuses) == 1 && f.Statuses[0] == StatusCompleted
	if f.DateFrom.IsZero() && f.DateTo.IsZero() && !completedOnly {
		today := s.today()
		f.DateFrom = today
		f.DateTo = today.AddDate(0, 0, s.horizonDays)
	}
	return f, nil
}

// Get loads one appointment and enforces visibility. Staff never see the
// verification code; they verify by comparing the parent's spoken code.
func (s *Service) Get(ctx context.Context, actor identity.Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(actor, appt); err != nil {
		return nil, err
	}
	if actor.IsStaff() {
		appt.VerificationCode = ""
	}
	return appt, nil
}

func (s *Service) authorizeView(actor identity.Actor, appt *Appointment) error {
	switch {
	case actor.IsAdmin():
		return nil
	case actor.IsParent():
		if appt.ParentID != actor.ID {
			return apperr.Forbidden("appointment belongs to another parent")
		}
	case actor.IsStaff():
		if appt.ClinicID != actor.ClinicID {
			return apperr.Forbidden("appointment belongs to another clinic")
		}
	default:
		return apperr.Forbidden("access denied")
	}
	return nil
}
