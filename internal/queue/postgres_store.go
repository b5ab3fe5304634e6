package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medloop/clinic-ops/internal/doctorstatus"
)

// queueDB is the subset of pgxpool.Pool the store uses. Satisfied by pgxmock
// in tests.
type queueDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore persists queue entries in queue_entries and serializes
// per-doctor units by locking the doctor's doctor_status row.
type PostgresStore struct {
	db  queueDB
	now func() time.Time
}

// NewPostgresStore creates a Postgres-backed queue store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("queue: pool required")
	}
	return &PostgresStore{db: pool, now: time.Now}
}

// NewPostgresStoreWithDB creates a store over any queueDB. Used by tests.
func NewPostgresStoreWithDB(db queueDB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

const entryColumns = `id, doctor_id, patient_id, appointment_id, status, priority, position,
	notes, joined_at, called_at, started_at, completed_at`

const statusColumns = `doctor_id, state, is_available, current_patient_id, current_entry_id,
	last_status_change, stats_date, today_served, today_no_shows, total_served,
	average_consultation_seconds`

// Update opens a transaction, locks the doctor's status row, runs fn, writes
// the status back, and commits. The row lock is the serialization point: two
// concurrent units for the same doctor run strictly one after the other.
func (s *PostgresStore) Update(ctx context.Context, doctorID uuid.UUID, fn func(Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("queue: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	st, err := s.lockStatus(ctx, tx, doctorID)
	if err != nil {
		return err
	}

	ptx := &pgTx{ctx: ctx, tx: tx, doctorID: doctorID, status: st}
	if err := fn(ptx); err != nil {
		return err
	}

	if err := writeStatus(ctx, tx, st); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("queue: commit: %w", err)
	}
	return nil
}

// View runs fn in a read-only transaction without the row lock.
func (s *PostgresStore) View(ctx context.Context, doctorID uuid.UUID, fn func(Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("queue: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+statusColumns+` FROM doctor_status WHERE doctor_id = $1`, doctorID)
	st, err := scanStatus(row)
	if errors.Is(err, pgx.ErrNoRows) {
		st = doctorstatus.NewStatus(doctorID, s.now())
	} else if err != nil {
		return fmt.Errorf("queue: load status: %w", err)
	}

	if err := fn(&pgTx{ctx: ctx, tx: tx, doctorID: doctorID, status: st}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// lockStatus selects the doctor's status row FOR UPDATE, inserting the
// default record on first contact.
func (s *PostgresStore) lockStatus(ctx context.Context, tx pgx.Tx, doctorID uuid.UUID) (*doctorstatus.Status, error) {
	row := tx.QueryRow(ctx, `SELECT `+statusColumns+` FROM doctor_status WHERE doctor_id = $1 FOR UPDATE`, doctorID)
	st, err := scanStatus(row)
	if errors.Is(err, pgx.ErrNoRows) {
		def := doctorstatus.NewStatus(doctorID, s.now())
		_, insErr := tx.Exec(ctx, `
			INSERT INTO doctor_status (`+statusColumns+`)
			VALUES ($1, $2, $3, NULL, NULL, $4, $5, 0, 0, 0, 0)
			ON CONFLICT (doctor_id) DO NOTHING`,
			def.DoctorID, def.State, def.IsAvailable, def.LastStatusChange, def.StatsDate)
		if insErr != nil {
			return nil, fmt.Errorf("queue: ensure status row: %w", insErr)
		}
		row = tx.QueryRow(ctx, `SELECT `+statusColumns+` FROM doctor_status WHERE doctor_id = $1 FOR UPDATE`, doctorID)
		st, err = scanStatus(row)
	}
	if err != nil {
		return nil, fmt.Errorf("queue: lock status: %w", err)
	}
	return st, nil
}

// FindEntry resolves an entry by id across doctors.
func (s *PostgresStore) FindEntry(ctx context.Context, entryID uuid.UUID) (*Entry, error) {
	row := s.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM queue_entries WHERE id = $1`, entryID)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("queue: find entry: %w", err)
	}
	return e, nil
}

// ActiveEntriesForPatient returns the patient's non-terminal entries across
// all doctors.
func (s *PostgresStore) ActiveEntriesForPatient(ctx context.Context, patientID uuid.UUID) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+entryColumns+` FROM queue_entries
		WHERE patient_id = $1 AND status IN ('WAITING', 'CALLED', 'IN_PROGRESS')
		ORDER BY joined_at`, patientID)
	if err != nil {
		return nil, fmt.Errorf("queue: patient entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// IsServing reports whether the doctor has a CALLED or IN_PROGRESS entry.
func (s *PostgresStore) IsServing(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	var serving bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM queue_entries
			WHERE doctor_id = $1 AND status IN ('CALLED', 'IN_PROGRESS')
		)`, doctorID).Scan(&serving)
	if err != nil {
		return false, fmt.Errorf("queue: serving check: %w", err)
	}
	return serving, nil
}

// pgTx implements Tx over a pgx transaction holding the doctor's row lock.
type pgTx struct {
	ctx      context.Context
	tx       pgx.Tx
	doctorID uuid.UUID
	status   *doctorstatus.Status
}

func (t *pgTx) Waiting() ([]*Entry, error) {
	rows, err := t.tx.Query(t.ctx, `
		SELECT `+entryColumns+` FROM queue_entries
		WHERE doctor_id = $1 AND status = 'WAITING'
		ORDER BY position`, t.doctorID)
	if err != nil {
		return nil, fmt.Errorf("queue: waiting: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("queue: scan waiting: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *pgTx) Active() (*Entry, error) {
	row := t.tx.QueryRow(t.ctx, `
		SELECT `+entryColumns+` FROM queue_entries
		WHERE doctor_id = $1 AND status IN ('CALLED', 'IN_PROGRESS')
		LIMIT 1`, t.doctorID)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: active: %w", err)
	}
	return e, nil
}

func (t *pgTx) Entry(id uuid.UUID) (*Entry, error) {
	row := t.tx.QueryRow(t.ctx, `
		SELECT `+entryColumns+` FROM queue_entries
		WHERE id = $1 AND doctor_id = $2`, id, t.doctorID)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("queue: entry: %w", err)
	}
	return e, nil
}

func (t *pgTx) ActiveForPatient(patientID uuid.UUID) (*Entry, error) {
	row := t.tx.QueryRow(t.ctx, `
		SELECT `+entryColumns+` FROM queue_entries
		WHERE doctor_id = $1 AND patient_id = $2 AND status IN ('WAITING', 'CALLED', 'IN_PROGRESS')
		LIMIT 1`, t.doctorID, patientID)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: active for patient: %w", err)
	}
	return e, nil
}

func (t *pgTx) Insert(e *Entry) error {
	_, err := t.tx.Exec(t.ctx, `
		INSERT INTO queue_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.DoctorID, e.PatientID, e.AppointmentID, e.Status, e.Priority,
		e.Position, e.Notes, e.JoinedAt, e.CalledAt, e.StartedAt, e.CompletedAt)
	if err != nil {
		return fmt.Errorf("queue: insert: %w", err)
	}
	return nil
}

func (t *pgTx) Save(e *Entry) error {
	tag, err := t.tx.Exec(t.ctx, `
		UPDATE queue_entries
		SET status = $2, priority = $3, position = $4, notes = $5,
		    called_at = $6, started_at = $7, completed_at = $8
		WHERE id = $1`,
		e.ID, e.Status, e.Priority, e.Position, e.Notes,
		e.CalledAt, e.StartedAt, e.CompletedAt)
	if err != nil {
		return fmt.Errorf("queue: save: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (t *pgTx) SetPositions(positions map[uuid.UUID]int) error {
	for id, pos := range positions {
		_, err := t.tx.Exec(t.ctx,
			`UPDATE queue_entries SET position = $2 WHERE id = $1`, id, pos)
		if err != nil {
			return fmt.Errorf("queue: set position: %w", err)
		}
	}
	return nil
}

func (t *pgTx) Status() *doctorstatus.Status {
	return t.status
}

func writeStatus(ctx context.Context, tx pgx.Tx, st *doctorstatus.Status) error {
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
		return fmt.Errorf("queue: write status: %w", err)
	}
	return nil
}

func scanStatus(row pgx.Row) (*doctorstatus.Status, error) {
	var st doctorstatus.Status
	err := row.Scan(&st.DoctorID, &st.State, &st.IsAvailable, &st.CurrentPatientID,
		&st.CurrentEntryID, &st.LastStatusChange, &st.StatsDate, &st.TodayServed,
		&st.TodayNoShows, &st.TotalServed, &st.AverageConsultationSeconds)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.DoctorID, &e.PatientID, &e.AppointmentID, &e.Status,
		&e.Priority, &e.Position, &e.Notes, &e.JoinedAt, &e.CalledAt, &e.StartedAt,
		&e.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("queue: scan entry: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
