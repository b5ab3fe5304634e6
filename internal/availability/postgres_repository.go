package availability

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores templates in the relational database.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("availability: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// ListByDoctor returns every template row for the doctor.
func (r *PostgresRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Template, error) {
	query := `
		SELECT id, doctor_id, weekday, start_minute, end_minute,
		       has_break, break_start_minute, break_end_minute
		FROM availability_templates
		WHERE doctor_id = $1
		ORDER BY weekday, start_minute
	`
	rows, err := r.pool.Query(ctx, query, doctorID)
	if err != nil {
		return nil, fmt.Errorf("availability: select failed: %w", err)
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		var t Template
		if err := rows.Scan(
			&t.ID,
			&t.DoctorID,
			&t.Weekday,
			&t.StartMinute,
			&t.EndMinute,
			&t.HasBreak,
			&t.BreakStartMinute,
			&t.BreakEndMinute,
		); err != nil {
			return nil, fmt.Errorf("availability: scan failed: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// ReplaceAll deletes the doctor's existing templates and inserts the new set
// in a single transaction. A caller-side abort rolls everything back.
func (r *PostgresRepository) ReplaceAll(ctx context.Context, doctorID uuid.UUID, templates []Template) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("availability: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM availability_templates WHERE doctor_id = $1`, doctorID); err != nil {
		return fmt.Errorf("availability: delete old set: %w", err)
	}

	insert := `
		INSERT INTO availability_templates
			(id, doctor_id, weekday, start_minute, end_minute,
			 has_break, break_start_minute, break_end_minute)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, t := range templates {
		id := t.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		if _, err := tx.Exec(ctx, insert,
			id,
			doctorID,
			t.Weekday,
			t.StartMinute,
			t.EndMinute,
			t.HasBreak,
			t.BreakStartMinute,
			t.BreakEndMinute,
		); err != nil {
			return fmt.Errorf("availability: insert template: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("availability: commit: %w", err)
	}
	return nil
}
