package doctorstatus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/medloop/clinic-ops/pkg/logging"
)

var statusTracer = otel.Tracer("clinicops.internal.doctorstatus")

// ServingCheck answers whether the doctor currently has a called or
// in-progress queue entry. The live queue is the source of truth, not the
// stored pointer.
type ServingCheck interface {
	IsServing(ctx context.Context, doctorID uuid.UUID) (bool, error)
}

// Subscriber receives every committed status change.
type Subscriber func(Status)

// Manager owns the self-service status path and fans committed changes out
// to subscribers. The queue orchestrator mutates status through its own
// transaction and reports the result via Broadcast.
type Manager struct {
	store   Store
	serving ServingCheck
	logger  *logging.Logger
	now     func() time.Time

	mu   sync.RWMutex
	subs []Subscriber
}

// NewManager constructs a status manager.
func NewManager(store Store, serving ServingCheck, logger *logging.Logger) *Manager {
	if store == nil {
		panic("doctorstatus: store required")
	}
	if serving == nil {
		panic("doctorstatus: serving check required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{store: store, serving: serving, logger: logger, now: time.Now}
}

// WithClock overrides the time source. Used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Get returns the doctor's current status.
func (m *Manager) Get(ctx context.Context, doctorID uuid.UUID) (*Status, error) {
	return m.store.Get(ctx, doctorID)
}

// SetState applies a self-service state change. Setting the current state
// again is a no-op. Changes are rejected while the doctor is serving a
// patient, and BUSY can never be entered this way.
func (m *Manager) SetState(ctx context.Context, doctorID uuid.UUID, state State) (*Status, error) {
	ctx, span := statusTracer.Start(ctx, "doctorstatus.set_state")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinicops.doctor_id", doctorID.String()),
		attribute.String("clinicops.state", string(state)),
	)

	if !state.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, state)
	}

	serving, err := m.serving.IsServing(ctx, doctorID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("doctorstatus: serving check: %w", err)
	}
	if serving {
		return nil, ErrStatusChangeWhileServing
	}

	st, err := m.store.Mutate(ctx, doctorID, func(s *Status) error {
		if s.State == state {
			return nil
		}
		if !CanExplicitlyTransition(s.State, state) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStateChange, s.State, state)
		}
		s.SetState(state, m.now())
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	m.logger.Info("doctor status changed", "doctor_id", doctorID, "state", st.State)
	m.Broadcast(*st)
	return st, nil
}

// Subscribe registers a callback for committed status changes. Callbacks run
// synchronously on the mutating goroutine and must not block.
func (m *Manager) Subscribe(fn Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Broadcast delivers a committed status to every subscriber. The queue
// orchestrator calls this after its transaction commits.
func (m *Manager) Broadcast(st Status) {
	m.mu.RLock()
	subs := make([]Subscriber, len(m.subs))
	copy(subs, m.subs)
	m.mu.RUnlock()
	for _, fn := range subs {
		fn(st)
	}
}
