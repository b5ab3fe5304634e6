package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// auditDB is the subset of pgxpool.Pool the recorder uses.
type auditDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresRecorder appends events to the audit_events table.
type PostgresRecorder struct {
	db auditDB
}

// NewPostgresRecorder creates a Postgres-backed recorder.
func NewPostgresRecorder(pool *pgxpool.Pool) *PostgresRecorder {
	if pool == nil {
		panic("audit: pool required")
	}
	return &PostgresRecorder{db: pool}
}

// NewPostgresRecorderWithDB creates a recorder over any auditDB. Used by tests.
func NewPostgresRecorderWithDB(db auditDB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

// Record inserts one event. Metadata is stored as jsonb.
func (r *PostgresRecorder) Record(ctx context.Context, e Event) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_events (id, action, actor_id, resource_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Action, e.ActorID, e.ResourceID, e.Metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit: record: %w", err)
	}
	return nil
}

// InMemoryRecorder collects events in memory. Used by tests.
type InMemoryRecorder struct {
	mu     sync.Mutex
	events []Event
}

// NewInMemoryRecorder creates an empty in-memory recorder.
func NewInMemoryRecorder() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Record appends the event.
func (r *InMemoryRecorder) Record(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *InMemoryRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
