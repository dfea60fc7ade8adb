package records

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestNextDoseNumber(t *testing.T) {
	mock := newMock(t)
	repo := NewRepositoryWithDB(mock)

	childID := uuid.New()
	vaccineID := uuid.New()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM vaccination_records`).
		WithArgs(childID, vaccineID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	dose, err := repo.NextDoseNumberTx(context.Background(), nil, &childID, vaccineID)
	require.NoError(t, err)
	assert.Equal(t, 3, dose)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNextDoseNumberWithoutChild(t *testing.T) {
	mock := newMock(t)
	repo := NewRepositoryWithDB(mock)

	dose, err := repo.NextDoseNumberTx(context.Background(), nil, nil, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, dose, "appointments without a child profile start at dose 1")
	require.NoError(t, mock.ExpectationsWereMet(), "no query runs without a child")
}

func TestInsert(t *testing.T) {
	mock := newMock(t)
	repo := NewRepositoryWithDB(mock)

	rec := &Record{
		AppointmentID:  uuid.New(),
		StaffID:        uuid.New(),
		VaccineID:      uuid.New(),
		BatchNumber:    "LOT-88",
		DoseNumber:     1,
		AdministeredAt: time.Now(),
	}
	mock.ExpectExec(`INSERT INTO vaccination_records`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.InsertTx(context.Background(), nil, rec))
	assert.NotEqual(t, uuid.Nil, rec.ID)
}

func TestExistsForAppointment(t *testing.T) {
	mock := newMock(t)
	repo := NewRepositoryWithDB(mock)

	appointmentID := uuid.New()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(appointmentID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.ExistsForAppointment(context.Background(), appointmentID)
	require.NoError(t, err)
	assert.True(t, ok)
}
