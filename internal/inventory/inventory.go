// Package inventory tracks vaccine batches held at clinics. The booking path
// only reads it; doses are drawn inside the check-out transaction.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openvax/vaxclinic-platform/internal/apperr"
)

// Batch is a lot of a vaccine held at a clinic.
type Batch struct {
	ID             uuid.UUID `json:"id"`
	ClinicID       uuid.UUID `json:"clinic_id"`
	VaccineID      uuid.UUID `json:"vaccine_id"`
	BatchNumber    string    `json:"batch_number"`
	RemainingDoses int       `json:"remaining_doses"`
	ExpiryDate     time.Time `json:"expiry_date"`
	CreatedAt      time.Time `json:"created_at"`
}

// Querier is satisfied by pgxpool.Pool, pgx.Tx, and pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides batch reads and the transactional decrement.
type Repository struct {
	db Querier
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("inventory: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting a mock database for testing.
func NewRepositoryWithDB(db Querier) *Repository {
	return &Repository{db: db}
}

// HasQualifyingBatch reports whether the clinic holds a batch of the vaccine
// with at least doses remaining and an expiry strictly after onDate. This is
// the read-only reservation check run at booking time.
func (r *Repository) HasQualifyingBatch(ctx context.Context, clinicID, vaccineID uuid.UUID, doses int, onDate time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM vaccine_inventory
			WHERE clinic_id = $1 AND vaccine_id = $2
			  AND remaining_doses >= $3 AND expiry_date > $4
		)
	`
	var ok bool
	if err := r.db.QueryRow(ctx, query, clinicID, vaccineID, doses, onDate).Scan(&ok); err != nil {
		return false, fmt.Errorf("inventory: qualifying batch check: %w", err)
	}
	return ok, nil
}

// DecrementTx draws doses from the soonest-expiring qualifying batch inside
// the caller's transaction. Note the asymmetry with HasQualifyingBatch: the
// booking check demands stock for the vaccine's full series, while check-out
// calls this with doses=1 because each visit administers a single dose of
// that series. Returns the batch drawn from, or InsufficientInventory when
// no batch qualifies. The row is locked so two concurrent check-outs cannot
// both drain the last doses.
func (r *Repository) DecrementTx(ctx context.Context, q Querier, clinicID, vaccineID uuid.UUID, doses int, onDate time.Time) (*Batch, error) {
	query := `
		UPDATE vaccine_inventory
		SET remaining_doses = remaining_doses - $4
		WHERE id = (
			SELECT id FROM vaccine_inventory
			WHERE clinic_id = $1 AND vaccine_id = $2
			  AND remaining_doses >= $4 AND expiry_date > $3
			ORDER BY expiry_date
			LIMIT 1
			FOR UPDATE
		)
		RETURNING id, clinic_id, vaccine_id, batch_number, remaining_doses, expiry_date, created_at
	`
	var b Batch
	err := q.QueryRow(ctx, query, clinicID, vaccineID, onDate, doses).Scan(
		&b.ID, &b.ClinicID, &b.VaccineID, &b.BatchNumber, &b.RemainingDoses, &b.ExpiryDate, &b.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.InsufficientInventory("insufficient vaccine stock at this center, please try another center")
	}
	if err != nil {
		return nil, fmt.Errorf("inventory: decrement batch: %w", err)
	}
	return &b, nil
}

// ListByClinic returns all unexpired batches at a clinic, soonest expiry
// first. Backs the admin inventory endpoint.
func (r *Repository) ListByClinic(ctx context.Context, clinicID string) ([]*Batch, error) {
	query := `
		SELECT id, clinic_id, vaccine_id, batch_number, remaining_doses, expiry_date, created_at
		FROM vaccine_inventory
		WHERE clinic_id = $1 AND expiry_date > CURRENT_DATE
		ORDER BY expiry_date
	`
	rows, err := r.db.Query(ctx, query, clinicID)
	if err != nil {
		return nil, fmt.Errorf("inventory: list batches: %w", err)
	}
	defer rows.Close()

	var out []*Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.ClinicID, &b.VaccineID, &b.BatchNumber, &b.RemainingDoses, &b.ExpiryDate, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("inventory: scan batch: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}
