package queue

import (
	"context"

	"github.com/google/uuid"

	"github.com/medloop/clinic-ops/internal/doctorstatus"
)

// Tx is one atomic unit of work over a single doctor's queue and status
// record. Implementations serialize concurrent units per doctor, so
// everything read inside the closure is stable until commit.
type Tx interface {
	// Waiting returns the WAITING entries ordered by position ascending.
	Waiting() ([]*Entry, error)
	// Active returns the CALLED or IN_PROGRESS entry, or nil.
	Active() (*Entry, error)
	// Entry returns the entry by id within this doctor's queue.
	Entry(id uuid.UUID) (*Entry, error)
	// ActiveForPatient returns the patient's non-terminal entry in this
	// doctor's queue, or nil.
	ActiveForPatient(patientID uuid.UUID) (*Entry, error)
	// Insert adds a new entry.
	Insert(e *Entry) error
	// Save persists changes to an existing entry.
	Save(e *Entry) error
	// SetPositions rewrites positions for the given entry ids in bulk.
	SetPositions(positions map[uuid.UUID]int) error
	// Status returns the doctor's status record. Mutations to it are
	// written back when the unit commits.
	Status() *doctorstatus.Status
}

// Store persists queue entries and provides the per-doctor serialization the
// orchestrator's invariants depend on.
type Store interface {
	// Update runs fn as an atomic read-modify-write unit for one doctor.
	// If fn returns an error nothing is persisted.
	Update(ctx context.Context, doctorID uuid.UUID, fn func(Tx) error) error
	// View runs fn against a read-only snapshot of one doctor's queue.
	View(ctx context.Context, doctorID uuid.UUID, fn func(Tx) error) error
	// FindEntry resolves an entry by id across doctors.
	FindEntry(ctx context.Context, entryID uuid.UUID) (*Entry, error)
	// ActiveEntriesForPatient returns the patient's non-terminal entries
	// across all doctors, ordered by join time.
	ActiveEntriesForPatient(ctx context.Context, patientID uuid.UUID) ([]Entry, error)
	// IsServing reports whether the doctor has a CALLED or IN_PROGRESS entry.
	IsServing(ctx context.Context, doctorID uuid.UUID) (bool, error)
}
