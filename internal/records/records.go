// Package records persists vaccination records. A record is created exactly
// once, inside the same transaction that completes its appointment and draws
// the doses from inventory.
package records

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is the administered-visit outcome, linked 1:1 to its appointment.
type Record struct {
	ID             uuid.UUID  `json:"id"`
	AppointmentID  uuid.UUID  `json:"appointment_id"`
	ChildID        *uuid.UUID `json:"child_id,omitempty"`
	StaffID        uuid.UUID  `json:"staff_id"`
	VaccineID      uuid.UUID  `json:"vaccine_id"`
	BatchNumber    string     `json:"batch_number"`
	DoseNumber     int        `json:"dose_number"`
	AdministeredAt time.Time  `json:"administered_at"`
	Reactions      string     `json:"reactions,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	NextDueDate    *time.Time `json:"next_due_date,omitempty"`
}

// Querier is satisfied by pgxpool.Pool, pgx.Tx, and pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists vaccination records.
type Repository struct {
	db Querier
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("records: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting a mock database for testing.
func NewRepositoryWithDB(db Querier) *Repository {
	return &Repository{db: db}
}

// InsertTx writes the record inside the caller's transaction.
func (r *Repository) InsertTx(ctx context.Context, q Querier, rec *Record) error {
	if q == nil {
		q = r.db
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	query := `
		INSERT INTO vaccination_records
			(id, appointment_id, child_id, staff_id, vaccine_id, batch_number,
			 dose_number, administered_at, reactions, notes, next_due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := q.Exec(ctx, query,
		rec.ID, rec.AppointmentID, rec.ChildID, rec.StaffID, rec.VaccineID,
		rec.BatchNumber, rec.DoseNumber, rec.AdministeredAt, rec.Reactions,
		rec.Notes, rec.NextDueDate,
	)
	if err != nil {
		return fmt.Errorf("records: insert record: %w", err)
	}
	return nil
}

// NextDoseNumberTx returns 1 + the count of prior records for the child and
// vaccine, inside the caller's transaction. Appointments without a child
// always start at dose 1.
func (r *Repository) NextDoseNumberTx(ctx context.Context, q Querier, childID *uuid.UUID, vaccineID uuid.UUID) (int, error) {
	if q == nil {
		q = r.db
	}
	if childID == nil {
		return 1, nil
	}
	query := `SELECT COUNT(*) FROM vaccination_records WHERE child_id = $1 AND vaccine_id = $2`
	var prior int
	if err := q.QueryRow(ctx, query, *childID, vaccineID).Scan(&prior); err != nil {
		return 0, fmt.Errorf("records: count prior doses: %w", err)
	}
	return prior + 1, nil
}

// ExistsForAppointment reports whether the appointment already produced a
// record. Guards hard deletion.
func (r *Repository) ExistsForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM vaccination_records WHERE appointment_id = $1)`
	var ok bool
	if err := r.db.QueryRow(ctx, query, appointmentID).Scan(&ok); err != nil {
		return false, fmt.Errorf("records: existence check: %w", err)
	}
	return ok, nil
}
