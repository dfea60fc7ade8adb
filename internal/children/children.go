// Package children provides read access to child profiles with parent
// ownership filtering.
package children

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openvax/vaxclinic-platform/internal/apperr"
)

// Child belongs to exactly one parent. Appointments may reference a child or
// none at all (a not-yet-profiled newborn).
type Child struct {
	ID          uuid.UUID `json:"id"`
	ParentID    uuid.UUID `json:"parent_id"`
	Name        string    `json:"name"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Gender      string    `json:"gender"`
	IsActive    bool      `json:"is_active"`
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads children from the relational store.
type Repository struct {
	db rowQuerier
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("children: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting a mock database for testing.
func NewRepositoryWithDB(db rowQuerier) *Repository {
	return &Repository{db: db}
}

// GetByID loads a child regardless of owner. Admin callers use this.
func (r *Repository) GetByID(ctx context.Context, id string) (*Child, error) {
	query := `
		SELECT id, parent_id, name, date_of_birth, gender, is_active
		FROM children
		WHERE id = $1
	`
	var c Child
	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.ParentID, &c.Name, &c.DateOfBirth, &c.Gender, &c.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("child not found")
	}
	if err != nil {
		return nil, fmt.Errorf("children: select child: %w", err)
	}
	return &c, nil
}

// GetOwnedActive loads a child and enforces that it belongs to parentID and
// is active. Ownership failures surface as Forbidden, not NotFound, so a
// parent probing another family's ids learns nothing beyond "not yours".
func (r *Repository) GetOwnedActive(ctx context.Context, parentID uuid.UUID, id string) (*Child, error) {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.ParentID != parentID {
		return nil, apperr.Forbidden("child does not belong to this parent")
	}
	if !c.IsActive {
		return nil, apperr.NotFound("child profile is not active")
	}
	return c, nil
}
