package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/medloop/clinic-ops/internal/doctorstatus"
)

func pgStatusRows(doctorID uuid.UUID, now time.Time) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"doctor_id", "state", "is_available", "current_patient_id", "current_entry_id",
		"last_status_change", "stats_date", "today_served", "today_no_shows",
		"total_served", "average_consultation_seconds",
	}).AddRow(doctorID, doctorstatus.StateAvailable, true, (*uuid.UUID)(nil), (*uuid.UUID)(nil),
		now, now, 0, 0, 0, 0)
}

func pgEntryColumns() []string {
	return []string{
		"id", "doctor_id", "patient_id", "appointment_id", "status", "priority",
		"position", "notes", "joined_at", "called_at", "started_at", "completed_at",
	}
}

func TestPostgresUpdateLocksStatusAndCommits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewPostgresStoreWithDB(mock)
	doctorID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(doctorID).
		WillReturnRows(pgStatusRows(doctorID, now))
	mock.ExpectQuery("status = 'WAITING'").WithArgs(doctorID).
		WillReturnRows(pgxmock.NewRows(pgEntryColumns()))
	mock.ExpectExec("INSERT INTO queue_entries").
		WithArgs(pgxmock.AnyArg(), doctorID, pgxmock.AnyArg(), pgxmock.AnyArg(),
			StatusWaiting, PriorityNormal, 1, "", pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE doctor_status").
		WithArgs(doctorID, doctorstatus.StateAvailable, true, (*uuid.UUID)(nil), (*uuid.UUID)(nil),
			pgxmock.AnyArg(), pgxmock.AnyArg(), 0, 0, 0, 0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = store.Update(context.Background(), doctorID, func(tx Tx) error {
		waiting, err := tx.Waiting()
		if err != nil {
			return err
		}
		return tx.Insert(&Entry{
			ID:        uuid.New(),
			DoctorID:  doctorID,
			PatientID: uuid.New(),
			Status:    StatusWaiting,
			Priority:  PriorityNormal,
			Position:  len(waiting) + 1,
			JoinedAt:  now,
		})
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresUpdateCreatesStatusRowOnFirstContact(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewPostgresStoreWithDB(mock)
	doctorID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(doctorID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO doctor_status").
		WithArgs(doctorID, doctorstatus.StateAvailable, true, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("FOR UPDATE").WithArgs(doctorID).
		WillReturnRows(pgStatusRows(doctorID, now))
	mock.ExpectExec("UPDATE doctor_status").
		WithArgs(doctorID, doctorstatus.StateAvailable, true, (*uuid.UUID)(nil), (*uuid.UUID)(nil),
			pgxmock.AnyArg(), pgxmock.AnyArg(), 0, 0, 0, 0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	if err := store.Update(context.Background(), doctorID, func(Tx) error { return nil }); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresFindEntryNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewPostgresStoreWithDB(mock)
	entryID := uuid.New()

	mock.ExpectQuery("FROM queue_entries").WithArgs(entryID).
		WillReturnError(pgx.ErrNoRows)

	if _, err := store.FindEntry(context.Background(), entryID); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestPostgresIsServing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewPostgresStoreWithDB(mock)
	doctorID := uuid.New()

	mock.ExpectQuery("SELECT EXISTS").WithArgs(doctorID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	serving, err := store.IsServing(context.Background(), doctorID)
	if err != nil {
		t.Fatalf("is serving: %v", err)
	}
	if !serving {
		t.Fatal("expected serving true")
	}
}
