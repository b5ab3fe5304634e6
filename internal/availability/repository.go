package availability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for template storage.
type Repository interface {
	// ListByDoctor returns every template for the doctor, ordered by weekday
	// then start time.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Template, error)

	// ReplaceAll swaps the doctor's complete template set in one atomic unit.
	ReplaceAll(ctx context.Context, doctorID uuid.UUID, templates []Template) error
}

// InMemoryRepository is a Repository backed by a map, used in tests.
type InMemoryRepository struct {
	mu        sync.RWMutex
	templates map[uuid.UUID][]Template
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{templates: make(map[uuid.UUID][]Template)}
}

// ListByDoctor returns a sorted copy of the doctor's templates.
func (r *InMemoryRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.templates[doctorID]
	out := make([]Template, len(stored))
	copy(out, stored)
	sortTemplates(out)
	return out, nil
}

// ReplaceAll swaps the doctor's template set.
func (r *InMemoryRepository) ReplaceAll(ctx context.Context, doctorID uuid.UUID, templates []Template) error {
	stored := make([]Template, len(templates))
	copy(stored, templates)
	for i := range stored {
		if stored[i].ID == uuid.Nil {
			stored[i].ID = uuid.New()
		}
		stored[i].DoctorID = doctorID
	}

	r.mu.Lock()
	r.templates[doctorID] = stored
	r.mu.Unlock()
	return nil
}

func sortTemplates(ts []Template) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Weekday != ts[j].Weekday {
			return ts[i].Weekday < ts[j].Weekday
		}
		return ts[i].StartMinute < ts[j].StartMinute
	})
}

// templatesForWeekday filters a template list to one weekday.
func templatesForWeekday(ts []Template, day time.Weekday) []Template {
	var out []Template
	for _, t := range ts {
		if t.Weekday == day {
			out = append(out, t)
		}
	}
	return out
}
