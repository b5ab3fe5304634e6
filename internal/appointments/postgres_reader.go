package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// readerDB is the subset of pgxpool.Pool the reader needs; pgxmock satisfies
// it in tests.
type readerDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresReader reads the appointments table.
type PostgresReader struct {
	db readerDB
}

// NewPostgresReader initializes a reader backed by pgxpool.
func NewPostgresReader(pool *pgxpool.Pool) *PostgresReader {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresReader{db: pool}
}

// NewPostgresReaderWithDB allows injecting a mock database for testing.
func NewPostgresReaderWithDB(db readerDB) *PostgresReader {
	return &PostgresReader{db: db}
}

// GetByID fetches one appointment row.
func (r *PostgresReader) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `
		SELECT id, doctor_id, patient_id, starts_at, duration_minutes, status, urgent
		FROM appointments
		WHERE id = $1
	`
	var a Appointment
	err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.StartsAt,
		&a.DurationMinutes,
		&a.Status,
		&a.Urgent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	return &a, nil
}

// ListBlocking returns blocking appointments intersecting [from, to). The
// interval test matches the slot generator's half-open overlap predicate.
func (r *PostgresReader) ListBlocking(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	query := `
		SELECT id, doctor_id, patient_id, starts_at, duration_minutes, status, urgent
		FROM appointments
		WHERE doctor_id = $1
		  AND status IN ('PENDING', 'ACCEPTED', 'CONFIRMED', 'SCHEDULED')
		  AND starts_at < $3
		  AND starts_at + make_interval(mins => duration_minutes) > $2
		ORDER BY starts_at
	`
	rows, err := r.db.Query(ctx, query, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("appointments: select blocking: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(
			&a.ID,
			&a.DoctorID,
			&a.PatientID,
			&a.StartsAt,
			&a.DurationMinutes,
			&a.Status,
			&a.Urgent,
		); err != nil {
			return nil, fmt.Errorf("appointments: scan failed: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
