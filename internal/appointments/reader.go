package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medloop/clinic-ops/internal/timeutil"
)

// Reader defines the read-only interface for appointment lookup.
type Reader interface {
	// GetByID returns one appointment or ErrAppointmentNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListBlocking returns the doctor's blocking appointments whose interval
	// intersects [from, to), ordered by start time.
	ListBlocking(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error)
}

// InMemoryReader is a Reader backed by a slice, used in tests.
type InMemoryReader struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]*Appointment
}

// NewInMemoryReader creates an empty in-memory reader.
func NewInMemoryReader() *InMemoryReader {
	return &InMemoryReader{appointments: make(map[uuid.UUID]*Appointment)}
}

// Put inserts or replaces an appointment.
func (r *InMemoryReader) Put(a *Appointment) {
	r.mu.Lock()
	copied := *a
	r.appointments[a.ID] = &copied
	r.mu.Unlock()
}

// GetByID returns the appointment or ErrAppointmentNotFound.
func (r *InMemoryReader) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	copied := *a
	return &copied, nil
}

// ListBlocking filters to blocking appointments intersecting [from, to).
func (r *InMemoryReader) ListBlocking(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.appointments {
		if a.DoctorID != doctorID || !a.Status.Blocks() {
			continue
		}
		if !timeutil.OverlapsTime(a.StartsAt, a.EndsAt(), from, to) {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}
