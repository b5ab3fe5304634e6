package doctors

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Directory resolves doctors by id.
type Directory interface {
	GetByID(ctx context.Context, doctorID uuid.UUID) (*Doctor, error)
}

// InMemoryDirectory is a Directory backed by a map, used in tests and the
// memory-backed deployment mode.
type InMemoryDirectory struct {
	mu      sync.RWMutex
	doctors map[uuid.UUID]*Doctor
}

// NewInMemoryDirectory creates an empty in-memory directory.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{doctors: make(map[uuid.UUID]*Doctor)}
}

// Put inserts or replaces a doctor.
func (d *InMemoryDirectory) Put(doc *Doctor) {
	d.mu.Lock()
	copied := *doc
	d.doctors[doc.ID] = &copied
	d.mu.Unlock()
}

// GetByID returns the doctor or ErrDoctorNotFound.
func (d *InMemoryDirectory) GetByID(ctx context.Context, doctorID uuid.UUID) (*Doctor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	doc, ok := d.doctors[doctorID]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	copied := *doc
	return &copied, nil
}
