package doctors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// directoryDB is the subset of pgxpool.Pool the directory needs; pgxmock
// satisfies it in tests.
type directoryDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresDirectory reads the doctors table.
type PostgresDirectory struct {
	db directoryDB
}

// NewPostgresDirectory initializes a directory backed by pgxpool.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	if pool == nil {
		panic("doctors: pgx pool required")
	}
	return &PostgresDirectory{db: pool}
}

// NewPostgresDirectoryWithDB allows injecting a mock database for testing.
func NewPostgresDirectoryWithDB(db directoryDB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// GetByID fetches a doctor row.
func (d *PostgresDirectory) GetByID(ctx context.Context, doctorID uuid.UUID) (*Doctor, error) {
	query := `
		SELECT id, name, specialty, average_consultation_minutes,
		       allow_walk_ins, allow_online_booking, auto_call_next, no_show_timeout_minutes
		FROM doctors
		WHERE id = $1
	`
	var doc Doctor
	var noShowMinutes int
	err := d.db.QueryRow(ctx, query, doctorID).Scan(
		&doc.ID,
		&doc.Name,
		&doc.Specialty,
		&doc.AverageConsultationMinutes,
		&doc.AllowWalkIns,
		&doc.AllowOnlineBooking,
		&doc.AutoCallNext,
		&noShowMinutes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("doctors: select failed: %w", err)
	}
	doc.NoShowTimeout = time.Duration(noShowMinutes) * time.Minute
	return &doc, nil
}
