package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medloop/clinic-ops/internal/appointments"
	"github.com/medloop/clinic-ops/internal/audit"
	"github.com/medloop/clinic-ops/internal/doctors"
	"github.com/medloop/clinic-ops/internal/doctorstatus"
	"github.com/medloop/clinic-ops/pkg/logging"
)

type notifierSpy struct {
	mu    sync.Mutex
	calls []uuid.UUID
}

func (n *notifierSpy) QueueChanged(doctorID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, doctorID)
}

func (n *notifierSpy) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type qfix struct {
	orch      *Orchestrator
	store     *MemoryStore
	statuses  *doctorstatus.Manager
	directory *doctors.InMemoryDirectory
	appts     *appointments.InMemoryReader
	recorder  *audit.InMemoryRecorder
	notifier  *notifierSpy
	doctorID  uuid.UUID
}

func newQueueFixture(t *testing.T, doctor *doctors.Doctor) *qfix {
	t.Helper()

	store := NewMemoryStore()
	directory := doctors.NewInMemoryDirectory()
	if doctor == nil {
		doctor = &doctors.Doctor{ID: uuid.New(), Name: "Dr. Okafor", AllowWalkIns: true}
	}
	directory.Put(doctor)

	appts := appointments.NewInMemoryReader()
	recorder := audit.NewInMemoryRecorder()
	notifier := &notifierSpy{}
	statuses := doctorstatus.NewManager(store, store, logging.Default())
	orch := NewOrchestrator(store, directory, appts, statuses, recorder, notifier, nil, logging.Default())

	return &qfix{
		orch:      orch,
		store:     store,
		statuses:  statuses,
		directory: directory,
		appts:     appts,
		recorder:  recorder,
		notifier:  notifier,
		doctorID:  doctor.ID,
	}
}

func (f *qfix) addWalkIns(t *testing.T, n int) []*Entry {
	t.Helper()
	out := make([]*Entry, 0, n)
	for i := 0; i < n; i++ {
		e, err := f.orch.AddWalkIn(context.Background(), f.doctorID, uuid.New(), PriorityNormal)
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func (f *qfix) waitingPositions(t *testing.T) map[uuid.UUID]int {
	t.Helper()
	state, err := f.orch.GetQueueState(context.Background(), f.doctorID)
	require.NoError(t, err)
	out := make(map[uuid.UUID]int, len(state.Waiting))
	for _, e := range state.Waiting {
		out[e.ID] = e.Position
	}
	return out
}

func requireDense(t *testing.T, f *qfix) {
	t.Helper()
	state, err := f.orch.GetQueueState(context.Background(), f.doctorID)
	require.NoError(t, err)
	for i, e := range state.Waiting {
		require.Equal(t, i+1, e.Position, "waiting positions must be a dense 1..N sequence")
	}
}

func TestAddWalkInAssignsDensePositions(t *testing.T) {
	f := newQueueFixture(t, nil)

	entries := f.addWalkIns(t, 3)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Position)
		assert.Equal(t, StatusWaiting, e.Status)
	}
	requireDense(t, f)
}

func TestAddWalkInRejectsDuplicatePatient(t *testing.T) {
	f := newQueueFixture(t, nil)
	patientID := uuid.New()

	_, err := f.orch.AddWalkIn(context.Background(), f.doctorID, patientID, PriorityNormal)
	require.NoError(t, err)

	_, err = f.orch.AddWalkIn(context.Background(), f.doctorID, patientID, PriorityNormal)
	assert.ErrorIs(t, err, ErrDuplicateEntry)
}

func TestAddWalkInRespectsDoctorPolicy(t *testing.T) {
	doctor := &doctors.Doctor{ID: uuid.New(), Name: "Dr. Chen", AllowWalkIns: false}
	f := newQueueFixture(t, doctor)

	_, err := f.orch.AddWalkIn(context.Background(), f.doctorID, uuid.New(), PriorityNormal)
	assert.ErrorIs(t, err, ErrWalkInsNotAllowed)
}

func TestAddWalkInUnknownDoctor(t *testing.T) {
	f := newQueueFixture(t, nil)

	_, err := f.orch.AddWalkIn(context.Background(), uuid.New(), uuid.New(), PriorityNormal)
	assert.ErrorIs(t, err, doctors.ErrDoctorNotFound)
}

func TestCheckInAppointment(t *testing.T) {
	f := newQueueFixture(t, nil)
	now := time.Now().UTC()

	appt := &appointments.Appointment{
		ID:              uuid.New(),
		DoctorID:        f.doctorID,
		PatientID:       uuid.New(),
		StartsAt:        now.Add(2 * time.Hour),
		DurationMinutes: 30,
		Status:          appointments.StatusConfirmed,
		Urgent:          true,
	}
	f.appts.Put(appt)

	entry, err := f.orch.CheckInAppointment(context.Background(), appt.ID)
	require.NoError(t, err)

	require.NotNil(t, entry.AppointmentID)
	assert.Equal(t, appt.ID, *entry.AppointmentID)
	assert.Equal(t, PriorityUrgent, entry.Priority)
	assert.Equal(t, 1, entry.Position)
}

func TestCheckInRejectsWrongDayAndStatus(t *testing.T) {
	f := newQueueFixture(t, nil)
	now := time.Now().UTC()

	tomorrow := &appointments.Appointment{
		ID: uuid.New(), DoctorID: f.doctorID, PatientID: uuid.New(),
		StartsAt: now.AddDate(0, 0, 1), DurationMinutes: 30,
		Status: appointments.StatusConfirmed,
	}
	f.appts.Put(tomorrow)
	_, err := f.orch.CheckInAppointment(context.Background(), tomorrow.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotToday)

	cancelled := &appointments.Appointment{
		ID: uuid.New(), DoctorID: f.doctorID, PatientID: uuid.New(),
		StartsAt: now.Add(time.Hour), DurationMinutes: 30,
		Status: appointments.StatusCancelled,
	}
	f.appts.Put(cancelled)
	_, err = f.orch.CheckInAppointment(context.Background(), cancelled.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotCheckable)

	_, err = f.orch.CheckInAppointment(context.Background(), uuid.New())
	assert.ErrorIs(t, err, appointments.ErrAppointmentNotFound)
}

func TestCallNextOnEmptyQueue(t *testing.T) {
	f := newQueueFixture(t, nil)

	_, err := f.orch.CallNext(context.Background(), f.doctorID)
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestCallNextSelectsByPriorityThenPosition(t *testing.T) {
	f := newQueueFixture(t, nil)

	f.addWalkIns(t, 2)
	urgent, err := f.orch.AddWalkIn(context.Background(), f.doctorID, uuid.New(), PriorityUrgent)
	require.NoError(t, err)
	require.Equal(t, 3, urgent.Position)

	called, err := f.orch.CallNext(context.Background(), f.doctorID)
	require.NoError(t, err)

	// The urgent patient jumps the two earlier normal entries.
	assert.Equal(t, urgent.ID, called.ID)
	assert.Equal(t, StatusCalled, called.Status)
	require.NotNil(t, called.CalledAt)
	requireDense(t, f)
}

func TestCallNextBindsDoctorStatus(t *testing.T) {
	f := newQueueFixture(t, nil)
	entries := f.addWalkIns(t, 1)

	called, err := f.orch.CallNext(context.Background(), f.doctorID)
	require.NoError(t, err)
	require.Equal(t, entries[0].ID, called.ID)

	st, err := f.statuses.Get(context.Background(), f.doctorID)
	require.NoError(t, err)
	assert.Equal(t, doctorstatus.StateBusy, st.State)
	require.NotNil(t, st.CurrentEntryID)
	assert.Equal(t, called.ID, *st.CurrentEntryID)
	require.NotNil(t, st.CurrentPatientID)
	assert.Equal(t, called.PatientID, *st.CurrentPatientID)
}

func TestCallNextWhileServing(t *testing.T) {
	f := newQueueFixture(t, nil)
	f.addWalkIns(t, 2)

	_, err := f.orch.CallNext(context.Background(), f.doctorID)
	require.NoError(t, err)

	before := f.waitingPositions(t)
	_, err = f.orch.CallNext(context.Background(), f.doctorID)
	assert.ErrorIs(t, err, ErrDoctorAlreadyServing)

	// The failed call must not have touched the queue.
	assert.Equal(t, before, f.waitingPositions(t))
}

func TestConcurrentCallNextClaimsOnePatient(t *testing.T) {
	f := newQueueFixture(t, nil)
	f.addWalkIns(t, 2)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.orch.CallNext(context.Background(), f.doctorID)
		}(i)
	}
	wg.Wait()

	var ok, alreadyServing int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDoctorAlreadyServing):
			alreadyServing++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok, "exactly one call-next may claim a patient")
	assert.Equal(t, 1, alreadyServing)
}

func TestUpdatePositionReorders(t *testing.T) {
	f := newQueueFixture(t, nil)
	entries := f.addWalkIns(t, 3)

	// Move the middle entry to the front: it takes position 1, the former
	// first entry shifts to 2, the third stays at 3.
	moved, err := f.orch.UpdatePosition(context.Background(), entries[1].ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, moved.Position)

	positions := f.waitingPositions(t)
	assert.Equal(t, 1, positions[entries[1].ID])
	assert.Equal(t, 2, positions[entries[0].ID])
	assert.Equal(t, 3, positions[entries[2].ID])
	requireDense(t, f)
}

func TestUpdatePositionClamps(t *testing.T) {
	f := newQueueFixture(t, nil)
	entries := f.addWalkIns(t, 3)

	moved, err := f.orch.UpdatePosition(context.Background(), entries[0].ID, 99)
	require.NoError(t, err)
	assert.Equal(t, 3, moved.Position)

	moved, err = f.orch.UpdatePosition(context.Background(), entries[0].ID, -5)
	require.NoError(t, err)
	assert.Equal(t, 1, moved.Position)
	requireDense(t, f)
}

func TestUpdatePositionRequiresWaiting(t *testing.T) {
	f := newQueueFixture(t, nil)
	f.addWalkIns(t, 2)

	called, err := f.orch.CallNext(context.Background(), f.doctorID)
	require.NoError(t, err)

	_, err = f.orch.UpdatePosition(context.Background(), called.ID, 1)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompleteConsultationFlow(t *testing.T) {
	f := newQueueFixture(t, nil)
	f.addWalkIns(t, 1)

	called, err := f.orch.CallNext(context.Background(), f.doctorID)
	require.NoError(t, err)

	started, err := f.orch.StartConsultation(context.Background(), called.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, started.Status)
	require.NotNil(t, started.StartedAt)

	done, err := f.orch.Complete(context.Background(), called.ID, "routine visit")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, "routine visit", done.Notes)
	require.NotNil(t, done.CompletedAt)

	st, err := f.statuses.Get(context.Background(), f.doctorID)
	require.NoError(t, err)
	assert.Equal(t, doctorstatus.StateAvailable, st.State)
	assert.Nil(t, st.CurrentEntryID)
	assert.Equal(t, 1, st.TodayServed)
	assert.Equal(t, 1, st.TotalServed)
}

func TestCompleteAutoPromotesFromCalled(t *testing.T) {
	f := newQueueFixture(t, nil)
	f.addWalkIns(t, 1)

	called, err := f.orch.CallNext(context.Background(), f.doctorID)
	require.NoError(t, err)

	// No explicit start: completing a CALLED entry promotes it implicitly.
	done, err := f.orch.Complete(context.Background(), called.ID, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	require.NotNil(t, done.StartedAt)
}

func TestCompleteRequiresActiveConsultation(t *testing.T) {
	f := newQueueFixture(t, nil)
	entries := f.addWalkIns(t, 1)

	_, err := f.orch.Complete(context.Background(), entries[0].ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAutoCallNextChainsAfterComplete(t *testing.T) {
	doctor := &doctors.Doctor{ID: uuid.New(), Name: "Dr. Varga", AllowWalkIns: true, AutoCallNext: true}
	f := newQueueFixture(t, doctor)
	f.addWalkIns(t, 2)

	called, err := f.orch.CallNext(context.Background(), f.doctorID)
	require.NoError(t, err)

	_, err = f.orch.Complete(context.Background(), called.ID, "")
	require.NoError(t, err)

	// Completion immediately claimed the next patient.
	st, err := f.statuses.Get(context.Background(), f.doctorID)
	require.NoError(t, err)
	assert.Equal(t, doctorstatus.StateBusy, st.State)
	require.NotNil(t, st.CurrentEntryID)
	assert.NotEqual(t, called.ID, *st.CurrentEntryID)
}

func TestCancelReDensifiesPositions(t *testing.T) {
	f := newQueueFixture(t, nil)
	entries := f.addWalkIns(t, 3)

	cancelled, err := f.orch.Cancel(context.Background(), entries[0].ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	positions := f.waitingPositions(t)
	assert.Equal(t, 1, positions[entries[1].ID])
	assert.Equal(t, 2, positions[entries[2].ID])
	requireDense(t, f)
}

func TestNoShowFromCalledFreesDoctorAndCounts(t *testing.T) {
	f := newQueueFixture(t, nil)
	f.addWalkIns(t, 2)

	called, err := f.orch.CallNext(context.Background(), f.doctorID)
	require.NoError(t, err)

	gone, err := f.orch.NoShow(context.Background(), called.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, gone.Status)

	st, err := f.statuses.Get(context.Background(), f.doctorID)
	require.NoError(t, err)
	assert.Equal(t, doctorstatus.StateAvailable, st.State)
	assert.Nil(t, st.CurrentEntryID)
	assert.Equal(t, 1, st.TodayNoShows)
	assert.Zero(t, st.TodayServed)
}

func TestNoShowFromWaitingDoesNotCount(t *testing.T) {
	f := newQueueFixture(t, nil)
	entries := f.addWalkIns(t, 1)

	_, err := f.orch.NoShow(context.Background(), entries[0].ID)
	require.NoError(t, err)

	st, err := f.statuses.Get(context.Background(), f.doctorID)
	require.NoError(t, err)
	assert.Zero(t, st.TodayNoShows)
}

func TestTerminalEntriesRejectFurtherTransitions(t *testing.T) {
	f := newQueueFixture(t, nil)
	entries := f.addWalkIns(t, 1)

	_, err := f.orch.Cancel(context.Background(), entries[0].ID)
	require.NoError(t, err)

	_, err = f.orch.Cancel(context.Background(), entries[0].ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.orch.NoShow(context.Background(), entries[0].ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.orch.Complete(context.Background(), entries[0].ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestExplicitStatusChangeRejectedWhileServing(t *testing.T) {
	f := newQueueFixture(t, nil)
	f.addWalkIns(t, 1)

	_, err := f.orch.CallNext(context.Background(), f.doctorID)
	require.NoError(t, err)

	_, err = f.statuses.SetState(context.Background(), f.doctorID, doctorstatus.StateBreak)
	assert.ErrorIs(t, err, doctorstatus.ErrStatusChangeWhileServing)
}

func TestGetPatientActiveQueuesAcrossDoctors(t *testing.T) {
	f := newQueueFixture(t, nil)
	second := &doctors.Doctor{ID: uuid.New(), Name: "Dr. Haddad", AllowWalkIns: true}
	f.directory.Put(second)

	patientID := uuid.New()
	_, err := f.orch.AddWalkIn(context.Background(), f.doctorID, patientID, PriorityNormal)
	require.NoError(t, err)
	_, err = f.orch.AddWalkIn(context.Background(), second.ID, patientID, PriorityNormal)
	require.NoError(t, err)

	entries, err := f.orch.GetPatientActiveQueues(context.Background(), patientID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestMutationsEmitAuditAndNotify(t *testing.T) {
	f := newQueueFixture(t, nil)
	entries := f.addWalkIns(t, 1)

	_, err := f.orch.CallNext(context.Background(), f.doctorID)
	require.NoError(t, err)
	_, err = f.orch.Complete(context.Background(), entries[0].ID, "")
	require.NoError(t, err)

	actions := make([]string, 0)
	for _, ev := range f.recorder.Events() {
		actions = append(actions, ev.Action)
	}
	assert.Equal(t, []string{
		"queue.walk_in_added",
		"queue.patient_called",
		"queue.consultation_completed",
	}, actions)
	assert.Equal(t, 3, f.notifier.count())
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, audit.Event) error {
	return errors.New("audit sink unavailable")
}

func TestAuditFailureDoesNotRollBack(t *testing.T) {
	f := newQueueFixture(t, nil)
	orch := NewOrchestrator(f.store, f.directory, f.appts, f.statuses,
		failingRecorder{}, f.notifier, nil, logging.Default())

	entry, err := orch.AddWalkIn(context.Background(), f.doctorID, uuid.New(), PriorityNormal)
	require.NoError(t, err)

	state, err := orch.GetQueueState(context.Background(), f.doctorID)
	require.NoError(t, err)
	require.Len(t, state.Waiting, 1)
	assert.Equal(t, entry.ID, state.Waiting[0].ID)
}

func TestTransitionTable(t *testing.T) {
	legal := []struct{ from, to Status }{
		{StatusWaiting, StatusCalled},
		{StatusWaiting, StatusCancelled},
		{StatusWaiting, StatusNoShow},
		{StatusCalled, StatusInProgress},
		{StatusCalled, StatusCancelled},
		{StatusCalled, StatusNoShow},
		{StatusInProgress, StatusCompleted},
	}
	for _, tr := range legal {
		assert.True(t, CanTransition(tr.from, tr.to), "%s -> %s must be legal", tr.from, tr.to)
	}

	illegal := []struct{ from, to Status }{
		{StatusWaiting, StatusCompleted},
		{StatusCalled, StatusWaiting},
		{StatusInProgress, StatusCancelled},
		{StatusInProgress, StatusNoShow},
		{StatusCompleted, StatusWaiting},
		{StatusCancelled, StatusCalled},
		{StatusNoShow, StatusWaiting},
	}
	for _, tr := range illegal {
		assert.False(t, CanTransition(tr.from, tr.to), "%s -> %s must be rejected", tr.from, tr.to)
	}
}
