package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/openvax/vaxclinic-platform/internal/apperr"
)

func TestHasQualifyingBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewRepositoryWithDB(mock)
	clinicID := uuid.New()
	vaccineID := uuid.New()
	onDate := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(clinicID, vaccineID, 2, onDate).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.HasQualifyingBatch(context.Background(), clinicID, vaccineID, 2, onDate)
	if err != nil {
		t.Fatalf("HasQualifyingBatch: %v", err)
	}
	if !ok {
		t.Fatal("expected a qualifying batch")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDecrementTxDrawsSoonestExpiring(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewRepositoryWithDB(mock)
	clinicID := uuid.New()
	vaccineID := uuid.New()
	batchID := uuid.New()
	onDate := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	expiry := onDate.AddDate(0, 0, 90)
	created := time.Now().UTC()

	mock.ExpectQuery(`UPDATE vaccine_inventory`).
		WithArgs(clinicID, vaccineID, onDate, 1).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "clinic_id", "vaccine_id", "batch_number", "remaining_doses", "expiry_date", "created_at",
		}).AddRow(batchID, clinicID, vaccineID, "LOT-42", 0, expiry, created))

	batch, err := repo.DecrementTx(context.Background(), mock, clinicID, vaccineID, 1, onDate)
	if err != nil {
		t.Fatalf("DecrementTx: %v", err)
	}
	if batch.BatchNumber != "LOT-42" {
		t.Errorf("BatchNumber = %q", batch.BatchNumber)
	}
	if batch.RemainingDoses != 0 {
		t.Errorf("RemainingDoses = %d, want 0", batch.RemainingDoses)
	}
}

func TestDecrementTxNoQualifyingBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewRepositoryWithDB(mock)
	clinicID := uuid.New()
	vaccineID := uuid.New()
	onDate := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE vaccine_inventory`).
		WithArgs(clinicID, vaccineID, onDate, 1).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err = repo.DecrementTx(context.Background(), mock, clinicID, vaccineID, 1, onDate)
	if !apperr.IsKind(err, apperr.KindInsufficientInventory) {
		t.Fatalf("expected InsufficientInventory, got %v", err)
	}
}

func TestListByClinic(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	repo := NewRepositoryWithDB(mock)
	clinicID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, clinic_id, vaccine_id, batch_number`).
		WithArgs(clinicID.String()).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "clinic_id", "vaccine_id", "batch_number", "remaining_doses", "expiry_date", "created_at",
		}).
			AddRow(uuid.New(), clinicID, uuid.New(), "LOT-1", 10, now.AddDate(0, 1, 0), now).
			AddRow(uuid.New(), clinicID, uuid.New(), "LOT-2", 4, now.AddDate(0, 3, 0), now))

	batches, err := repo.ListByClinic(context.Background(), clinicID.String())
	if err != nil {
		t.Fatalf("ListByClinic: %v", err)
	}
	if len(batches) != 2 || batches[0].BatchNumber != "LOT-1" {
		t.Fatalf("unexpected batches: %#v", batches)
	}
}
