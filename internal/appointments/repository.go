package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openvax/vaxclinic-platform/internal/apperr"
	"github.com/openvax/vaxclinic-platform/internal/availability"
)

// Querier is satisfied by pgxpool.Pool, pgx.Tx, and pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxPool is the pool surface the repository needs.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Querier
}

// Repository persists appointments. The slot-uniqueness invariant is carried
// by a partial unique index over active statuses; the repository translates
// that constraint into the same Conflict error the pre-check produces.
type Repository struct {
	pool PgxPool
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool PgxPool) *Repository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Repository{pool: pool}
}

// Begin opens a transaction for multi-row lifecycle operations.
func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

var errSlotConflict = apperr.Conflict("this slot is already booked, please choose another")

// Create inserts the appointment with status SCHEDULED. A concurrent booking
// that won the slot surfaces as Conflict via the unique index.
func (r *Repository) Create(ctx context.Context, appt *Appointment) error {
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	appt.Status = StatusScheduled
	query := `
		INSERT INTO appointments
			(id, parent_id, child_id, clinic_id, vaccine_id, scheduled_date,
			 scheduled_time, status, verification_code, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		appt.ID, appt.ParentID, appt.ChildID, appt.ClinicID, appt.VaccineID,
		appt.ScheduledDate, appt.ScheduledTime, appt.Status,
		appt.VerificationCode, appt.Notes,
	).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	if isUniqueViolation(err) {
		return errSlotConflict.Wrap(err)
	}
	// Clinic, vaccine, and child are resolved before insert; the parent is
	// not, so a foreign-key failure here means the named parent does not
	// exist.
	if isForeignKeyViolation(err) {
		return apperr.NotFound("parent not found").Wrap(err)
	}
	if err != nil {
		return fmt.Errorf("appointments: insert: %w", err)
	}
	appt.fillDateString()
	return nil
}

// SlotTaken reports whether an active appointment occupies the slot.
// excludeID drops the appointment's own row so a reschedule keeping its slot
// does not self-reject.
func (r *Repository) SlotTaken(ctx context.Context, clinicID uuid.UUID, date time.Time, slotTime string, excludeID *uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE clinic_id = $1 AND scheduled_date = $2 AND scheduled_time = $3
			  AND status IN ('SCHEDULED','CONFIRMED')
			  AND ($4::uuid IS NULL OR id <> $4)
		)
	`
	var taken bool
	if err := r.pool.QueryRow(ctx, query, clinicID, date, slotTime, excludeID).Scan(&taken); err != nil {
		return false, fmt.Errorf("appointments: slot check: %w", err)
	}
	return taken, nil
}

// TakenSlots returns the occupied slots per day for the availability
// calculator, between from and to inclusive.
func (r *Repository) TakenSlots(ctx context.Context, clinicID uuid.UUID, from, to time.Time) (availability.Taken, error) {
	query := `
		SELECT scheduled_date, scheduled_time FROM appointments
		WHERE clinic_id = $1 AND scheduled_date BETWEEN $2 AND $3
		  AND status IN ('SCHEDULED','CONFIRMED')
	`
	rows, err := r.pool.Query(ctx, query, clinicID, from, to)
	if err != nil {
		return nil, fmt.Errorf("appointments: taken slots: %w", err)
	}
	defer rows.Close()

	taken := availability.Taken{}
	for rows.Next() {
		var day time.Time
		var slot string
		if err := rows.Scan(&day, &slot); err != nil {
			return nil, fmt.Errorf("appointments: scan taken slot: %w", err)
		}
		date := day.Format(dateLayoutISO)
		if taken[date] == nil {
			taken[date] = map[string]bool{}
		}
		taken[date][slot] = true
	}
	return taken, rows.Err()
}

const appointmentColumns = `
	a.id, a.parent_id, a.child_id, a.clinic_id, a.vaccine_id, a.staff_id,
	a.scheduled_date, a.scheduled_time, a.status, a.verification_code,
	a.cancellation_reason, a.notes, a.is_parent_acknowledged,
	a.parent_acknowledged_at, a.created_at, a.updated_at,
	COALESCE(ch.name, ''), cl.name, v.name`

const appointmentJoins = `
	FROM appointments a
	LEFT JOIN children ch ON ch.id = a.child_id
	JOIN clinics cl ON cl.id = a.clinic_id
	JOIN vaccines v ON v.id = a.vaccine_id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.ParentID, &a.ChildID, &a.ClinicID, &a.VaccineID, &a.StaffID,
		&a.ScheduledDate, &a.ScheduledTime, &a.Status, &a.VerificationCode,
		&a.CancellationReason, &a.Notes, &a.IsParentAcknowledged,
		&a.ParentAcknowledgedAt, &a.CreatedAt, &a.UpdatedAt,
		&a.ChildName, &a.ClinicName, &a.VaccineName,
	)
	if err != nil {
		return nil, err
	}
	a.fillDateString()
	return &a, nil
}

// GetByID loads an appointment with display names attached.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `SELECT` + appointmentColumns + appointmentJoins + ` WHERE a.id = $1`
	appt, err := scanAppointment(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("appointment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: select: %w", err)
	}
	return appt, nil
}

// GetForUpdateTx re-reads the appointment row under lock inside the
// caller's transaction. Check-out uses this so the status it validates is
// the status it commits against.
func (r *Repository) GetForUpdateTx(ctx context.Context, q Querier, id uuid.UUID) (*Appointment, error) {
	query := `
		SELECT id, parent_id, child_id, clinic_id, vaccine_id, staff_id,
		       scheduled_date, scheduled_time, status, verification_code,
		       cancellation_reason, notes, is_parent_acknowledged,
		       parent_acknowledged_at, created_at, updated_at
		FROM appointments WHERE id = $1 FOR UPDATE
	`
	var a Appointment
	err := q.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.ParentID, &a.ChildID, &a.ClinicID, &a.VaccineID, &a.StaffID,
		&a.ScheduledDate, &a.ScheduledTime, &a.Status, &a.VerificationCode,
		&a.CancellationReason, &a.Notes, &a.IsParentAcknowledged,
		&a.ParentAcknowledgedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("appointment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: select for update: %w", err)
	}
	a.fillDateString()
	return &a, nil
}

// List returns appointments matching the filter, soonest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]*Appointment, error) {
	where, args := buildFilter(f)
	query := `SELECT` + appointmentColumns + appointmentJoins + where +
		` ORDER BY a.scheduled_date, a.scheduled_time`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, appt)
	}
	return out, rows.Err()
}

// CountByStatus aggregates the statistics block for a listing.
func (r *Repository) CountByStatus(ctx context.Context, f ListFilter) (Statistics, error) {
	where, args := buildFilter(f)
	query := `SELECT a.status, COUNT(*)` + appointmentJoins + where + ` GROUP BY a.status`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return Statistics{}, fmt.Errorf("appointments: count by status: %w", err)
	}
	defer rows.Close()

	var stats Statistics
	for rows.Next() {
		var status Status
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return Statistics{}, fmt.Errorf("appointments: scan count: %w", err)
		}
		stats.Total += count
		switch status {
		case StatusScheduled:
			stats.Scheduled = count
		case StatusConfirmed:
			stats.Confirmed = count
		case StatusCompleted:
			stats.Completed = count
		case StatusCancelled:
			stats.Cancelled = count
		case StatusNoShow:
			stats.NoShow = count
		}
	}
	return stats, rows.Err()
}

func buildFilter(f ListFilter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.ParentID != uuid.Nil {
		add("a.parent_id = $%d", f.ParentID)
	}
	if f.ClinicID != uuid.Nil {
		add("a.clinic_id = $%d", f.ClinicID)
	}
	if f.ChildID != uuid.Nil {
		add("a.child_id = $%d", f.ChildID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("a.status = ANY($%d)", statuses)
	}
	if !f.DateFrom.IsZero() {
		add("a.scheduled_date >= $%d", f.DateFrom)
	}
	if !f.DateTo.IsZero() {
		add("a.scheduled_date <= $%d", f.DateTo)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// StartVisit flips the appointment to CONFIRMED and assigns the acting
// staff member.
func (r *Repository) StartVisit(ctx context.Context, id, staffID uuid.UUID) error {
	query := `
		UPDATE appointments
		SET status = 'CONFIRMED', staff_id = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := r.pool.Exec(ctx, query, id, staffID); err != nil {
		return fmt.Errorf("appointments: start visit: %w", err)
	}
	return nil
}

// Touch refreshes updated_at without changing state. Backs the legacy
// check_in action.
func (r *Repository) Touch(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `UPDATE appointments SET updated_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("appointments: touch: %w", err)
	}
	return nil
}

// MarkCompletedTx flips the appointment to COMPLETED inside the caller's
// transaction.
func (r *Repository) MarkCompletedTx(ctx context.Context, q Querier, id, staffID uuid.UUID) error {
	query := `
		UPDATE appointments
		SET status = 'COMPLETED', staff_id = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := q.Exec(ctx, query, id, staffID); err != nil {
		return fmt.Errorf("appointments: mark completed: %w", err)
	}
	return nil
}

// Cancel retires the appointment with a reason, releasing its slot.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID, reason, notes string) error {
	query := `
		UPDATE appointments
		SET status = 'CANCELLED', cancellation_reason = $2,
		    notes = CASE WHEN $3 <> '' THEN $3 ELSE notes END,
		    updated_at = now()
		WHERE id = $1
	`
	if _, err := r.pool.Exec(ctx, query, id, reason, notes); err != nil {
		return fmt.Errorf("appointments: cancel: %w", err)
	}
	return nil
}

// MarkNoShow retires the appointment as a no-show, releasing its slot.
func (r *Repository) MarkNoShow(ctx context.Context, id uuid.UUID, notes string) error {
	query := `
		UPDATE appointments
		SET status = 'NO_SHOW',
		    notes = CASE WHEN $2 <> '' THEN $2 ELSE notes END,
		    updated_at = now()
		WHERE id = $1
	`
	if _, err := r.pool.Exec(ctx, query, id, notes); err != nil {
		return fmt.Errorf("appointments: mark no-show: %w", err)
	}
	return nil
}

// Reschedule moves the appointment to a new slot and resets it to
// SCHEDULED. The unique index backstops the collision pre-check.
func (r *Repository) Reschedule(ctx context.Context, id uuid.UUID, date time.Time, slotTime string) error {
	query := `
		UPDATE appointments
		SET scheduled_date = $2, scheduled_time = $3, status = 'SCHEDULED', updated_at = now()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, date, slotTime)
	if isUniqueViolation(err) {
		return errSlotConflict.Wrap(err)
	}
	if err != nil {
		return fmt.Errorf("appointments: reschedule: %w", err)
	}
	return nil
}

// Acknowledge records the parent's confirmation of a completed visit. The
// WHERE clause makes the write conditional so a duplicate acknowledgement
// affects zero rows.
func (r *Repository) Acknowledge(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE appointments
		SET is_parent_acknowledged = TRUE, parent_acknowledged_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'COMPLETED' AND NOT is_parent_acknowledged
	`
	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("appointments: acknowledge: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// Delete physically removes the appointment. The service layer refuses this
// once a vaccination record exists.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("appointments: delete: %w", err)
	}
	return nil
}
