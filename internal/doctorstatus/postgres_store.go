package doctorstatus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// statusDB is the subset of pgxpool.Pool the store uses. Satisfied by
// pgxmock in tests.
type statusDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore persists doctor statuses in the doctor_status table.
type PostgresStore struct {
	db  statusDB
	now func() time.Time
}

// NewPostgresStore creates a Postgres-backed status store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("doctorstatus: pool required")
	}
	return &PostgresStore{db: pool, now: time.Now}
}

// NewPostgresStoreWithDB creates a store over any statusDB. Used by tests.
func NewPostgresStoreWithDB(db statusDB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

const statusColumns = `doctor_id, state, is_available, current_patient_id, current_entry_id,
	last_status_change, stats_date, today_served, today_no_shows, total_served,
	average_consultation_seconds`

// Get returns the doctor's status, creating the default record on first
// access.
func (s *PostgresStore) Get(ctx context.Context, doctorID uuid.UUID) (*Status, error) {
	row := s.db.QueryRow(ctx, `SELECT `+statusColumns+` FROM doctor_status WHERE doctor_id = $1`, doctorID)
	st, err := scanStatus(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := s.ensureRow(ctx, s.db, doctorID); err != nil {
			return nil, err
		}
		row = s.db.QueryRow(ctx, `SELECT `+statusColumns+` FROM doctor_status WHERE doctor_id = $1`, doctorID)
		st, err = scanStatus(row)
	}
	if err != nil {
		return nil, fmt.Errorf("doctorstatus: get: %w", err)
	}
	return st, nil
}

// Mutate loads the row FOR UPDATE, applies fn, and writes it back in one
// transaction. The row lock serializes concurrent mutations per doctor.
func (s *PostgresStore) Mutate(ctx context.Context, doctorID uuid.UUID, fn func(*Status) error) (*Status, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("doctorstatus: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	st, err := lockStatus(ctx, tx, doctorID)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := s.ensureRow(ctx, tx, doctorID); err != nil {
			return nil, err
		}
		st, err = lockStatus(ctx, tx, doctorID)
	}
	if err != nil {
		return nil, fmt.Errorf("doctorstatus: lock: %w", err)
	}

	if err := fn(st); err != nil {
		return nil, err
	}

	if err := writeStatus(ctx, tx, st); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("doctorstatus: commit: %w", err)
	}
	return st, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *PostgresStore) ensureRow(ctx context.Context, db execer, doctorID uuid.UUID) error {
	def := NewStatus(doctorID, s.now())
	_, err := db.Exec(ctx, `
		INSERT INTO doctor_status (`+statusColumns+`)
		VALUES ($1, $2, $3, NULL, NULL, $4, $5, 0, 0, 0, 0)
		ON CONFLICT (doctor_id) DO NOTHING`,
		def.DoctorID, def.State, def.IsAvailable, def.LastStatusChange, def.StatsDate)
	if err != nil {
		return fmt.Errorf("doctorstatus: ensure row: %w", err)
	}
	return nil
}

func lockStatus(ctx context.Context, tx pgx.Tx, doctorID uuid.UUID) (*Status, error) {
	row := tx.QueryRow(ctx, `SELECT `+statusColumns+` FROM doctor_status WHERE doctor_id = $1 FOR UPDATE`, doctorID)
	return scanStatus(row)
}

func writeStatus(ctx context.Context, tx pgx.Tx, st *Status) error {
	_, err := tx.Exec(ctx, `
		UPDATE doctor_status
		SET state = $2, is_available = $3, current_patient_id = $4, current_entry_id = $5,
		    last_status_change = $6, stats_date = $7, today_served = $8, today_no_shows = $9,
		    total_served = $10, average_consultation_seconds = $11
		WHERE doctor_id = $1`,
		st.DoctorID, st.State, st.IsAvailable, st.CurrentPatientID, st.CurrentEntryID,
		st.LastStatusChange, st.StatsDate, st.TodayServed, st.TodayNoShows,
		st.TotalServed, st.AverageConsultationSeconds)
	if err != nil {
		return fmt.Errorf("doctorstatus: update: %w", err)
	}
	return nil
}

func scanStatus(row pgx.Row) (*Status, error) {
	var st Status
	err := row.Scan(&st.DoctorID, &st.State, &st.IsAvailable, &st.CurrentPatientID,
		&st.CurrentEntryID, &st.LastStatusChange, &st.StatsDate, &st.TodayServed,
		&st.TodayNoShows, &st.TotalServed, &st.AverageConsultationSeconds)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
