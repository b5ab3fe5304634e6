package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medloop/clinic-ops/internal/doctorstatus"
)

// MemoryStore keeps queues in memory with a mutex per doctor. It also
// implements doctorstatus.Store so single-node deployments and tests share
// one status record between the queue and the status manager.
type MemoryStore struct {
	mu      sync.Mutex
	doctors map[uuid.UUID]*memDoctor
	index   map[uuid.UUID]uuid.UUID // entry id -> doctor id
	now     func() time.Time
}

type memDoctor struct {
	mu      sync.Mutex
	entries []*Entry
	status  *doctorstatus.Status
}

// NewMemoryStore creates an empty in-memory queue store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		doctors: make(map[uuid.UUID]*memDoctor),
		index:   make(map[uuid.UUID]uuid.UUID),
		now:     time.Now,
	}
}

// WithClock overrides the time source. Used by tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) doctor(doctorID uuid.UUID) *memDoctor {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.doctors[doctorID]
	if !ok {
		d = &memDoctor{status: doctorstatus.NewStatus(doctorID, s.now())}
		s.doctors[doctorID] = d
	}
	return d
}

// Update runs fn over deep copies under the doctor's lock and swaps the
// copies in only when fn succeeds, so a failed unit leaves nothing behind.
func (s *MemoryStore) Update(_ context.Context, doctorID uuid.UUID, fn func(Tx) error) error {
	d := s.doctor(doctorID)
	d.mu.Lock()
	defer d.mu.Unlock()

	tx := newMemTx(doctorID, d)
	if err := fn(tx); err != nil {
		return err
	}

	d.entries = tx.entries
	*d.status = *tx.status

	s.mu.Lock()
	for _, id := range tx.inserted {
		s.index[id] = doctorID
	}
	s.mu.Unlock()
	return nil
}

// View runs fn over copies without writing anything back.
func (s *MemoryStore) View(_ context.Context, doctorID uuid.UUID, fn func(Tx) error) error {
	d := s.doctor(doctorID)
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(newMemTx(doctorID, d))
}

// FindEntry resolves an entry by id across doctors.
func (s *MemoryStore) FindEntry(_ context.Context, entryID uuid.UUID) (*Entry, error) {
	s.mu.Lock()
	doctorID, ok := s.index[entryID]
	var d *memDoctor
	if ok {
		d = s.doctors[doctorID]
	}
	s.mu.Unlock()
	if d == nil {
		return nil, ErrEntryNotFound
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range d.entries {
		if e.ID == entryID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrEntryNotFound
}

// ActiveEntriesForPatient scans every doctor's queue for the patient's
// non-terminal entries.
func (s *MemoryStore) ActiveEntriesForPatient(_ context.Context, patientID uuid.UUID) ([]Entry, error) {
	s.mu.Lock()
	all := make([]*memDoctor, 0, len(s.doctors))
	for _, d := range s.doctors {
		all = append(all, d)
	}
	s.mu.Unlock()

	var out []Entry
	for _, d := range all {
		d.mu.Lock()
		for _, e := range d.entries {
			if e.PatientID == patientID && e.Status.Active() {
				out = append(out, *e)
			}
		}
		d.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

// IsServing reports whether the doctor has a CALLED or IN_PROGRESS entry.
func (s *MemoryStore) IsServing(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	var serving bool
	err := s.View(ctx, doctorID, func(tx Tx) error {
		active, err := tx.Active()
		if err != nil {
			return err
		}
		serving = active != nil
		return nil
	})
	return serving, err
}

// Get implements doctorstatus.Store.
func (s *MemoryStore) Get(_ context.Context, doctorID uuid.UUID) (*doctorstatus.Status, error) {
	d := s.doctor(doctorID)
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *d.status
	return &cp, nil
}

// Mutate implements doctorstatus.Store under the same per-doctor lock queue
// units use.
func (s *MemoryStore) Mutate(_ context.Context, doctorID uuid.UUID, fn func(*doctorstatus.Status) error) (*doctorstatus.Status, error) {
	d := s.doctor(doctorID)
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *d.status
	if err := fn(&cp); err != nil {
		return nil, err
	}
	*d.status = cp
	out := cp
	return &out, nil
}

// memTx operates on copies; the store swaps them in on success.
type memTx struct {
	doctorID uuid.UUID
	entries  []*Entry
	status   *doctorstatus.Status
	inserted []uuid.UUID
}

func newMemTx(doctorID uuid.UUID, d *memDoctor) *memTx {
	entries := make([]*Entry, len(d.entries))
	for i, e := range d.entries {
		cp := *e
		entries[i] = &cp
	}
	st := *d.status
	return &memTx{doctorID: doctorID, entries: entries, status: &st}
}

func (t *memTx) Waiting() ([]*Entry, error) {
	var out []*Entry
	for _, e := range t.entries {
		if e.Status == StatusWaiting {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (t *memTx) Active() (*Entry, error) {
	for _, e := range t.entries {
		if e.Status == StatusCalled || e.Status == StatusInProgress {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *memTx) Entry(id uuid.UUID) (*Entry, error) {
	for _, e := range t.entries {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrEntryNotFound
}

func (t *memTx) ActiveForPatient(patientID uuid.UUID) (*Entry, error) {
	for _, e := range t.entries {
		if e.PatientID == patientID && e.Status.Active() {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *memTx) Insert(e *Entry) error {
	cp := *e
	t.entries = append(t.entries, &cp)
	t.inserted = append(t.inserted, e.ID)
	return nil
}

func (t *memTx) Save(e *Entry) error {
	for i, existing := range t.entries {
		if existing.ID == e.ID {
			cp := *e
			t.entries[i] = &cp
			return nil
		}
	}
	return ErrEntryNotFound
}

func (t *memTx) SetPositions(positions map[uuid.UUID]int) error {
	for _, e := range t.entries {
		if pos, ok := positions[e.ID]; ok {
			e.Position = pos
		}
	}
	return nil
}

func (t *memTx) Status() *doctorstatus.Status {
	return t.status
}
