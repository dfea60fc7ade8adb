// Package events implements a transactional outbox for appointment domain
// events. Writers append rows; a Deliverer drains them on a ticker so a
// notification transport failure never rolls back a booking.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Appointment event types carried through the outbox.
const (
	TypeBooked      = "appointment.booked"
	TypeConfirmed   = "appointment.confirmed"
	TypeCompleted   = "appointment.completed"
	TypeCancelled   = "appointment.cancelled"
	TypeRescheduled = "appointment.rescheduled"
	TypeNoShow      = "appointment.no_show"
)

// Event is one undelivered outbox row.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	ClinicID    uuid.UUID       `json:"clinic_id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`
}

// Querier is satisfied by pgxpool.Pool, pgx.Tx, and pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Outbox appends and drains event rows.
type Outbox struct {
	db Querier
}

// NewOutbox creates an outbox over the given querier.
func NewOutbox(db Querier) *Outbox {
	if db == nil {
		panic("events: querier required")
	}
	return &Outbox{db: db}
}

// Emit appends one event. Payload is marshalled to JSON.
func (o *Outbox) Emit(ctx context.Context, eventType string, clinicID uuid.UUID, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: marshal payload: %w", err)
	}
	query := `
		INSERT INTO outbox_events (id, clinic_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := o.db.Exec(ctx, query, uuid.New(), clinicID, eventType, body); err != nil {
		return fmt.Errorf("events: insert event: %w", err)
	}
	return nil
}

// FetchUndelivered returns up to limit pending events, oldest first.
func (o *Outbox) FetchUndelivered(ctx context.Context, limit int) ([]*Event, error) {
	query := `
		SELECT id, clinic_id, event_type, payload, created_at
		FROM outbox_events
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := o.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("events: fetch undelivered: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.ClinicID, &e.Type, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan event: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// MarkDelivered stamps the event as delivered.
func (o *Outbox) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE outbox_events SET delivered_at = now() WHERE id = $1`
	if _, err := o.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("events: mark delivered: %w", err)
	}
	return nil
}
