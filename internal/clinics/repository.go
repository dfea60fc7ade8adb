package clinics

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openvax/vaxclinic-platform/internal/apperr"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository reads clinics from the relational store.
type Repository struct {
	db querier
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("clinics: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting a mock database for testing.
func NewRepositoryWithDB(db querier) *Repository {
	return &Repository{db: db}
}

const clinicColumns = `id, name, district, address, phone, is_active, created_at`

// GetActive loads a clinic and fails with NotFound when it is absent or
// deactivated.
func (r *Repository) GetActive(ctx context.Context, id string) (*Clinic, error) {
	query := `SELECT ` + clinicColumns + ` FROM clinics WHERE id = $1`
	var c Clinic
	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.District, &c.Address, &c.Phone, &c.IsActive, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("clinic not found")
	}
	if err != nil {
		return nil, fmt.Errorf("clinics: select clinic: %w", err)
	}
	if !c.IsActive {
		return nil, apperr.NotFound("clinic is not active")
	}
	return &c, nil
}

// List returns all active clinics ordered by name.
func (r *Repository) List(ctx context.Context) ([]*Clinic, error) {
	query := `SELECT ` + clinicColumns + ` FROM clinics WHERE is_active ORDER BY name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("clinics: list: %w", err)
	}
	defer rows.Close()

	var out []*Clinic
	for rows.Next() {
		var c Clinic
		if err := rows.Scan(&c.ID, &c.Name, &c.District, &c.Address, &c.Phone, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("clinics: scan: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
