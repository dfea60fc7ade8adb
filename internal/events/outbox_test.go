package events

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvax/vaxclinic-platform/pkg/logging"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestOutboxEmit(t *testing.T) {
	mock := newMock(t)
	outbox := NewOutbox(mock)

	clinicID := uuid.New()
	mock.ExpectExec(`INSERT INTO outbox_events`).
		WithArgs(pgxmock.AnyArg(), clinicID, TypeBooked, []byte(`{"appointment_id":"a1"}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := outbox.Emit(context.Background(), TypeBooked, clinicID, map[string]string{"appointment_id": "a1"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func pendingRows(ids ...uuid.UUID) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"id", "clinic_id", "event_type", "payload", "created_at"})
	for _, id := range ids {
		rows.AddRow(id, uuid.New(), TypeBooked, []byte(`{}`), time.Now())
	}
	return rows
}

func TestDelivererMarksDelivered(t *testing.T) {
	mock := newMock(t)
	outbox := NewOutbox(mock)

	first, second := uuid.New(), uuid.New()
	mock.ExpectQuery(`SELECT id, clinic_id, event_type, payload, created_at`).
		WithArgs(25).
		WillReturnRows(pendingRows(first, second))
	mock.ExpectExec(`UPDATE outbox_events SET delivered_at`).
		WithArgs(first).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE outbox_events SET delivered_at`).
		WithArgs(second).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	logger := logging.NewWithWriter("error", io.Discard)
	d := NewDeliverer(outbox, NewLogHandler(logger), 0, 0, logger)
	d.DeliverPending(context.Background())

	require.NoError(t, mock.ExpectationsWereMet())
}

type failingHandler struct{ calls int }

func (h *failingHandler) Handle(context.Context, *Event) error {
	h.calls++
	return errors.New("transport down")
}

func TestDelivererKeepsFailedEvents(t *testing.T) {
	mock := newMock(t)
	outbox := NewOutbox(mock)

	mock.ExpectQuery(`SELECT id, clinic_id, event_type, payload, created_at`).
		WithArgs(25).
		WillReturnRows(pendingRows(uuid.New()))

	handler := &failingHandler{}
	d := NewDeliverer(outbox, handler, 0, 0, logging.NewWithWriter("error", io.Discard))
	d.DeliverPending(context.Background())

	assert.Equal(t, 1, handler.calls)
	require.NoError(t, mock.ExpectationsWereMet(), "failed events are never marked delivered")
}
