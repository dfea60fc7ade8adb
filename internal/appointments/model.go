// Package appointments implements the scheduling core: booking, the
// appointment lifecycle, and the cancellation/reschedule rules.
package appointments

import (
	"time"

	"github.com/google/uuid"

	"github.com/openvax/vaxclinic-platform/internal/apperr"
)

// Status is the persisted lifecycle state of an appointment.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusNoShow    Status = "NO_SHOW"
)

// ActiveStatuses are the states that occupy a slot. The storage layer
// enforces uniqueness of (clinic, date, time) over exactly this set.
var ActiveStatuses = []Status{StatusScheduled, StatusConfirmed}

// Terminal reports whether no further staff transition applies.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Active reports whether the appointment still occupies its slot.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return Status(raw), nil
	}
	return "", apperr.Validation("unknown status %q", raw)
}

// ExpandStatusFilter maps a user-facing filter value to the underlying
// status set. An empty filter selects everything.
func ExpandStatusFilter(filter string) ([]Status, error) {
	switch filter {
	case "":
		return nil, nil
	case "pending":
		return []Status{StatusScheduled}, nil
	case "upcoming":
		return []Status{StatusScheduled, StatusConfirmed}, nil
	case "completed":
		return []Status{StatusCompleted}, nil
	}
	status, err := ParseStatus(filter)
	if err != nil {
		return nil, apperr.Validation("unknown status filter %q", filter)
	}
	return []Status{status}, nil
}

// Appointment is the central scheduling entity.
type Appointment struct {
	ID                   uuid.UUID  `json:"id"`
	ParentID             uuid.UUID  `json:"parent_id"`
	ChildID              *uuid.UUID `json:"child_id,omitempty"`
	ClinicID             uuid.UUID  `json:"clinic_id"`
	VaccineID            uuid.UUID  `json:"vaccine_id"`
	StaffID              *uuid.UUID `json:"staff_id,omitempty"`
	ScheduledDate        time.Time  `json:"-"`
	ScheduledTime        string     `json:"scheduled_time"`
	Status               Status     `json:"status"`
	VerificationCode     string     `json:"verification_code,omitempty"`
	CancellationReason   string     `json:"cancellation_reason,omitempty"`
	Notes                string     `json:"notes,omitempty"`
	IsParentAcknowledged bool       `json:"is_parent_acknowledged"`
	ParentAcknowledgedAt *time.Time `json:"parent_acknowledged_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`

	// Display details joined in for responses.
	ChildName   string `json:"child_name,omitempty"`
	ClinicName  string `json:"clinic_name,omitempty"`
	VaccineName string `json:"vaccine_name,omitempty"`

	// DateString mirrors ScheduledDate for JSON output.
	DateString string `json:"scheduled_date"`
}

// fillDateString keeps the JSON date in sync with ScheduledDate.
func (a *Appointment) fillDateString() {
	a.DateString = a.ScheduledDate.Format(dateLayoutISO)
}

// Statistics summarizes a listing by status bucket.
type Statistics struct {
	Total     int64 `json:"total"`
	Scheduled int64 `json:"scheduled"`
	Confirmed int64 `json:"confirmed"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
	NoShow    int64 `json:"no_show"`
}

// ListFilter narrows a listing. Zero values mean "no constraint".
type ListFilter struct {
	ParentID uuid.UUID
	ClinicID uuid.UUID
	ChildID  uuid.UUID
	Statuses []Status
	DateFrom time.Time
	DateTo   time.Time
}
