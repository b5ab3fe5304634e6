package doctorstatus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists doctor status records. Mutate must apply fn atomically with
// respect to other mutations of the same doctor.
type Store interface {
	Get(ctx context.Context, doctorID uuid.UUID) (*Status, error)
	Mutate(ctx context.Context, doctorID uuid.UUID, fn func(*Status) error) (*Status, error)
}

// InMemoryStore keeps statuses in a map. Used by tests and single-node
// deployments without Postgres.
type InMemoryStore struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]*Status
	now      func() time.Time
}

// NewInMemoryStore creates an empty in-memory status store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		statuses: make(map[uuid.UUID]*Status),
		now:      time.Now,
	}
}

// WithClock overrides the time source. Used by tests.
func (s *InMemoryStore) WithClock(now func() time.Time) *InMemoryStore {
	s.now = now
	return s
}

// Get returns a copy of the doctor's status, creating the default record on
// first access.
func (s *InMemoryStore) Get(_ context.Context, doctorID uuid.UUID) (*Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.locked(doctorID)
	cp := *st
	return &cp, nil
}

// Mutate applies fn to the doctor's status under the store lock and returns
// the updated copy.
func (s *InMemoryStore) Mutate(_ context.Context, doctorID uuid.UUID, fn func(*Status) error) (*Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.locked(doctorID)
	if err := fn(st); err != nil {
		return nil, err
	}
	cp := *st
	return &cp, nil
}

// locked returns the live record, creating it if absent. Callers hold mu.
func (s *InMemoryStore) locked(doctorID uuid.UUID) *Status {
	st, ok := s.statuses[doctorID]
	if !ok {
		st = NewStatus(doctorID, s.now())
		s.statuses[doctorID] = st
	}
	return st
}
