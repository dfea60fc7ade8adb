// Package vaccines provides read access to the vaccine catalog.
package vaccines

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openvax/vaxclinic-platform/internal/apperr"
)

// Vaccine is catalog reference data. DosageCount is the number of doses in
// the full series; each visit administers one.
type Vaccine struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	DosageCount  int       `json:"dosage_count"`
	MinAgeMonths int       `json:"min_age_months"`
	IsActive     bool      `json:"is_active"`
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads vaccines from the relational store.
type Repository struct {
	db rowQuerier
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("vaccines: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting a mock database for testing.
func NewRepositoryWithDB(db rowQuerier) *Repository {
	return &Repository{db: db}
}

// GetActive loads a vaccine and fails with NotFound when it is absent or
// deactivated.
func (r *Repository) GetActive(ctx context.Context, id string) (*Vaccine, error) {
	query := `
		SELECT id, name, description, dosage_count, min_age_months, is_active
		FROM vaccines
		WHERE id = $1
	`
	var v Vaccine
	err := r.db.QueryRow(ctx, query, id).Scan(
		&v.ID, &v.Name, &v.Description, &v.DosageCount, &v.MinAgeMonths, &v.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("vaccine not found")
	}
	if err != nil {
		return nil, fmt.Errorf("vaccines: select vaccine: %w", err)
	}
	if !v.IsActive {
		return nil, apperr.NotFound("vaccine is not active")
	}
	return &v, nil
}
