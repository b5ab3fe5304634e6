package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/medloop/clinic-ops/internal/appointments"
	"github.com/medloop/clinic-ops/internal/audit"
	"github.com/medloop/clinic-ops/internal/doctors"
	"github.com/medloop/clinic-ops/internal/doctorstatus"
	"github.com/medloop/clinic-ops/internal/identity"
	"github.com/medloop/clinic-ops/internal/observability/metrics"
	"github.com/medloop/clinic-ops/internal/timeutil"
	"github.com/medloop/clinic-ops/pkg/logging"
)

var queueTracer = otel.Tracer("clinicops.internal.queue")

// Notifier pushes a "something changed" signal for a doctor's queue to
// realtime consumers. Implementations must not block.
type Notifier interface {
	QueueChanged(doctorID uuid.UUID)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) QueueChanged(uuid.UUID) {}

// Orchestrator coordinates every queue mutation. State changes happen inside
// a single per-doctor store unit; audit records, metrics, realtime pushes and
// auto-call-next chaining run only after the unit commits.
type Orchestrator struct {
	store     Store
	directory doctors.Directory
	appts     appointments.Reader
	statuses  *doctorstatus.Manager
	recorder  audit.Recorder
	notifier  Notifier
	metrics   *metrics.QueueMetrics
	logger    *logging.Logger
	now       func() time.Time
}

// NewOrchestrator constructs a queue orchestrator.
func NewOrchestrator(
	store Store,
	directory doctors.Directory,
	appts appointments.Reader,
	statuses *doctorstatus.Manager,
	recorder audit.Recorder,
	notifier Notifier,
	m *metrics.QueueMetrics,
	logger *logging.Logger,
) *Orchestrator {
	if store == nil {
		panic("queue: store required")
	}
	if directory == nil {
		panic("queue: doctor directory required")
	}
	if appts == nil {
		panic("queue: appointment reader required")
	}
	if statuses == nil {
		panic("queue: status manager required")
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		store:     store,
		directory: directory,
		appts:     appts,
		statuses:  statuses,
		recorder:  recorder,
		notifier:  notifier,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time source. Used by tests.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// AddWalkIn appends a walk-in patient to the doctor's waiting list.
func (o *Orchestrator) AddWalkIn(ctx context.Context, doctorID, patientID uuid.UUID, priority Priority) (*Entry, error) {
	ctx, span := queueTracer.Start(ctx, "queue.add_walk_in")
	defer span.End()
	span.SetAttributes(attribute.String("clinicops.doctor_id", doctorID.String()))

	if priority == 0 {
		priority = PriorityNormal
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPriority, priority)
	}

	doctor, err := o.directory.GetByID(ctx, doctorID)
	if err != nil {
		return nil, o.fail(span, "add_walk_in", err)
	}
	if !doctor.AllowWalkIns {
		return nil, o.fail(span, "add_walk_in", ErrWalkInsNotAllowed)
	}

	entry := &Entry{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		PatientID: patientID,
		Status:    StatusWaiting,
		Priority:  priority,
		JoinedAt:  o.now(),
	}

	err = o.store.Update(ctx, doctorID, func(tx Tx) error {
		dup, err := tx.ActiveForPatient(patientID)
		if err != nil {
			return err
		}
		if dup != nil {
			return ErrDuplicateEntry
		}
		waiting, err := tx.Waiting()
		if err != nil {
			return err
		}
		entry.Position = len(waiting) + 1
		return tx.Insert(entry)
	})
	if err != nil {
		return nil, o.fail(span, "add_walk_in", err)
	}

	o.metrics.ObserveOperation("add_walk_in", "ok")
	o.afterCommit(ctx, "queue.walk_in_added", entry, map[string]any{
		"priority": entry.Priority.String(),
		"position": entry.Position,
	})
	return entry, nil
}

// CheckInAppointment converts a booked appointment into a waiting queue
// entry. The appointment must be today's and still in a blocking status.
func (o *Orchestrator) CheckInAppointment(ctx context.Context, appointmentID uuid.UUID) (*Entry, error) {
	ctx, span := queueTracer.Start(ctx, "queue.check_in_appointment")
	defer span.End()
	span.SetAttributes(attribute.String("clinicops.appointment_id", appointmentID.String()))

	appt, err := o.appts.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, o.fail(span, "check_in", err)
	}
	now := o.now()
	if !timeutil.SameDayUTC(appt.StartsAt, now) {
		return nil, o.fail(span, "check_in", ErrAppointmentNotToday)
	}
	if !appt.Status.Blocks() {
		return nil, o.fail(span, "check_in", ErrAppointmentNotCheckable)
	}

	priority := PriorityNormal
	if appt.Urgent {
		priority = PriorityUrgent
	}

	apptID := appt.ID
	entry := &Entry{
		ID:            uuid.New(),
		DoctorID:      appt.DoctorID,
		PatientID:     appt.PatientID,
		AppointmentID: &apptID,
		Status:        StatusWaiting,
		Priority:      priority,
		JoinedAt:      now,
	}

	err = o.store.Update(ctx, appt.DoctorID, func(tx Tx) error {
		dup, err := tx.ActiveForPatient(appt.PatientID)
		if err != nil {
			return err
		}
		if dup != nil {
			return ErrDuplicateEntry
		}
		waiting, err := tx.Waiting()
		if err != nil {
			return err
		}
		entry.Position = len(waiting) + 1
		return tx.Insert(entry)
	})
	if err != nil {
		return nil, o.fail(span, "check_in", err)
	}

	o.metrics.ObserveOperation("check_in", "ok")
	o.afterCommit(ctx, "queue.appointment_checked_in", entry, map[string]any{
		"appointment_id": appointmentID.String(),
		"position":       entry.Position,
	})
	return entry, nil
}

// UpdatePosition moves a WAITING entry to newPosition, clamped to [1, N],
// and renumbers the rest so positions stay a dense 1..N permutation.
func (o *Orchestrator) UpdatePosition(ctx context.Context, entryID uuid.UUID, newPosition int) (*Entry, error) {
	ctx, span := queueTracer.Start(ctx, "queue.update_position")
	defer span.End()

	located, err := o.store.FindEntry(ctx, entryID)
	if err != nil {
		return nil, o.fail(span, "update_position", err)
	}

	var moved *Entry
	err = o.store.Update(ctx, located.DoctorID, func(tx Tx) error {
		entry, err := tx.Entry(entryID)
		if err != nil {
			return err
		}
		if entry.Status != StatusWaiting {
			return fmt.Errorf("%w: cannot reposition %s entry", ErrInvalidTransition, entry.Status)
		}

		waiting, err := tx.Waiting()
		if err != nil {
			return err
		}

		// Remove, clamp, insert, renumber.
		rest := make([]*Entry, 0, len(waiting))
		for _, w := range waiting {
			if w.ID != entryID {
				rest = append(rest, w)
			}
		}
		target := newPosition
		if target < 1 {
			target = 1
		}
		if target > len(waiting) {
			target = len(waiting)
		}

		reordered := make([]*Entry, 0, len(waiting))
		reordered = append(reordered, rest[:target-1]...)
		reordered = append(reordered, entry)
		reordered = append(reordered, rest[target-1:]...)

		positions := make(map[uuid.UUID]int, len(reordered))
		for i, w := range reordered {
			positions[w.ID] = i + 1
		}
		entry.Position = positions[entry.ID]
		moved = entry
		return tx.SetPositions(positions)
	})
	if err != nil {
		return nil, o.fail(span, "update_position", err)
	}

	o.metrics.ObserveOperation("update_position", "ok")
	o.afterCommit(ctx, "queue.position_updated", moved, map[string]any{
		"position": moved.Position,
	})
	return moved, nil
}

// CallNext claims the next waiting patient for the doctor: lowest priority
// value first, then lowest position. The doctor must not already be serving.
func (o *Orchestrator) CallNext(ctx context.Context, doctorID uuid.UUID) (*Entry, error) {
	ctx, span := queueTracer.Start(ctx, "queue.call_next")
	defer span.End()
	span.SetAttributes(attribute.String("clinicops.doctor_id", doctorID.String()))

	var called *Entry
	var statusAfter doctorstatus.Status
	err := o.store.Update(ctx, doctorID, func(tx Tx) error {
		active, err := tx.Active()
		if err != nil {
			return err
		}
		if active != nil {
			return ErrDoctorAlreadyServing
		}

		waiting, err := tx.Waiting()
		if err != nil {
			return err
		}
		if len(waiting) == 0 {
			return ErrQueueEmpty
		}

		next := waiting[0]
		for _, w := range waiting[1:] {
			if w.Priority < next.Priority ||
				(w.Priority == next.Priority && w.Position < next.Position) {
				next = w
			}
		}

		now := o.now()
		next.Status = StatusCalled
		next.CalledAt = &now
		if err := tx.Save(next); err != nil {
			return err
		}

		// Close the gap the called entry leaves in the waiting sequence.
		if err := densify(tx, waiting, next.ID); err != nil {
			return err
		}

		st := tx.Status()
		st.SetState(doctorstatus.StateBusy, now)
		st.BindCurrent(next.ID, next.PatientID)

		called = next
		statusAfter = *st
		return nil
	})
	if err != nil {
		return nil, o.fail(span, "call_next", err)
	}

	o.metrics.ObserveOperation("call_next", "ok")
	o.metrics.ObserveWait(called.Priority.String(), called.WaitDuration().Seconds())
	o.statuses.Broadcast(statusAfter)
	o.afterCommit(ctx, "queue.patient_called", called, map[string]any{
		"priority": called.Priority.String(),
		"waited_s": int(called.WaitDuration().Seconds()),
	})
	return called, nil
}

// StartConsultation marks a CALLED entry as IN_PROGRESS.
func (o *Orchestrator) StartConsultation(ctx context.Context, entryID uuid.UUID) (*Entry, error) {
	ctx, span := queueTracer.Start(ctx, "queue.start_consultation")
	defer span.End()

	located, err := o.store.FindEntry(ctx, entryID)
	if err != nil {
		return nil, o.fail(span, "start", err)
	}

	var started *Entry
	err = o.store.Update(ctx, located.DoctorID, func(tx Tx) error {
		entry, err := tx.Entry(entryID)
		if err != nil {
			return err
		}
		if !CanTransition(entry.Status, StatusInProgress) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, entry.Status, StatusInProgress)
		}
		now := o.now()
		entry.Status = StatusInProgress
		entry.StartedAt = &now
		started = entry
		return tx.Save(entry)
	})
	if err != nil {
		return nil, o.fail(span, "start", err)
	}

	o.metrics.ObserveOperation("start", "ok")
	o.afterCommit(ctx, "queue.consultation_started", started, nil)
	return started, nil
}

// Complete finishes a consultation. A CALLED entry is promoted through
// IN_PROGRESS implicitly. The doctor returns to AVAILABLE and, if their
// configuration asks for it, the next patient is called immediately.
func (o *Orchestrator) Complete(ctx context.Context, entryID uuid.UUID, notes string) (*Entry, error) {
	ctx, span := queueTracer.Start(ctx, "queue.complete")
	defer span.End()

	located, err := o.store.FindEntry(ctx, entryID)
	if err != nil {
		return nil, o.fail(span, "complete", err)
	}

	var completed *Entry
	var statusAfter doctorstatus.Status
	err = o.store.Update(ctx, located.DoctorID, func(tx Tx) error {
		entry, err := tx.Entry(entryID)
		if err != nil {
			return err
		}
		now := o.now()
		if entry.Status == StatusCalled {
			// Implicit promotion: the consultation started when the
			// patient walked in, nobody clicked "start".
			entry.Status = StatusInProgress
			entry.StartedAt = &now
		}
		if !CanTransition(entry.Status, StatusCompleted) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, entry.Status, StatusCompleted)
		}
		entry.Status = StatusCompleted
		entry.CompletedAt = &now
		if notes != "" {
			entry.Notes = notes
		}
		if err := tx.Save(entry); err != nil {
			return err
		}

		st := tx.Status()
		st.ClearCurrent()
		st.SetState(doctorstatus.StateAvailable, now)
		st.RecordServed(now, int(entry.ConsultationDuration().Seconds()))

		completed = entry
		statusAfter = *st
		return nil
	})
	if err != nil {
		return nil, o.fail(span, "complete", err)
	}

	o.metrics.ObserveOperation("complete", "ok")
	o.statuses.Broadcast(statusAfter)
	o.afterCommit(ctx, "queue.consultation_completed", completed, map[string]any{
		"consultation_s": int(completed.ConsultationDuration().Seconds()),
	})

	if doctor, err := o.directory.GetByID(ctx, completed.DoctorID); err == nil && doctor.AutoCallNext {
		if _, err := o.CallNext(ctx, completed.DoctorID); err != nil &&
			!errors.Is(err, ErrQueueEmpty) && !errors.Is(err, ErrDoctorAlreadyServing) {
			o.logger.Error("auto call-next failed", "error", err, "doctor_id", completed.DoctorID)
		}
	}
	return completed, nil
}

// Cancel removes a WAITING or CALLED entry from the queue.
func (o *Orchestrator) Cancel(ctx context.Context, entryID uuid.UUID) (*Entry, error) {
	return o.removeEntry(ctx, entryID, StatusCancelled, "queue.entry_cancelled", "cancel")
}

// NoShow marks a WAITING or CALLED entry as a no-show. From CALLED it also
// frees the doctor and counts against today's no-show tally.
func (o *Orchestrator) NoShow(ctx context.Context, entryID uuid.UUID) (*Entry, error) {
	return o.removeEntry(ctx, entryID, StatusNoShow, "queue.entry_no_show", "no_show")
}

func (o *Orchestrator) removeEntry(ctx context.Context, entryID uuid.UUID, target Status, action, op string) (*Entry, error) {
	ctx, span := queueTracer.Start(ctx, "queue."+op)
	defer span.End()

	located, err := o.store.FindEntry(ctx, entryID)
	if err != nil {
		return nil, o.fail(span, op, err)
	}

	var removed *Entry
	var statusAfter *doctorstatus.Status
	err = o.store.Update(ctx, located.DoctorID, func(tx Tx) error {
		entry, err := tx.Entry(entryID)
		if err != nil {
			return err
		}
		if !CanTransition(entry.Status, target) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, entry.Status, target)
		}
		wasCalled := entry.Status == StatusCalled

		now := o.now()
		entry.Status = target
		entry.CompletedAt = &now
		if err := tx.Save(entry); err != nil {
			return err
		}

		if wasCalled {
			st := tx.Status()
			st.ClearCurrent()
			st.SetState(doctorstatus.StateAvailable, now)
			if target == StatusNoShow {
				st.RecordNoShow(now)
			}
			cp := *st
			statusAfter = &cp
		}

		waiting, err := tx.Waiting()
		if err != nil {
			return err
		}
		if err := densify(tx, waiting, entry.ID); err != nil {
			return err
		}

		removed = entry
		return nil
	})
	if err != nil {
		return nil, o.fail(span, op, err)
	}

	o.metrics.ObserveOperation(op, "ok")
	if statusAfter != nil {
		o.statuses.Broadcast(*statusAfter)
	}
	o.afterCommit(ctx, action, removed, nil)
	return removed, nil
}

// QueueState is the read model for one doctor's queue.
type QueueState struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Waiting  []Entry   `json:"waiting"`
	Current  *Entry    `json:"current,omitempty"`
}

// GetQueueState returns the ordered waiting list plus the entry being served,
// if any. Read-only.
func (o *Orchestrator) GetQueueState(ctx context.Context, doctorID uuid.UUID) (*QueueState, error) {
	state := &QueueState{DoctorID: doctorID, Waiting: []Entry{}}
	err := o.store.View(ctx, doctorID, func(tx Tx) error {
		waiting, err := tx.Waiting()
		if err != nil {
			return err
		}
		for _, w := range waiting {
			state.Waiting = append(state.Waiting, *w)
		}
		active, err := tx.Active()
		if err != nil {
			return err
		}
		state.Current = active
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// GetPatientActiveQueues returns the patient's non-terminal entries across
// all doctors.
func (o *Orchestrator) GetPatientActiveQueues(ctx context.Context, patientID uuid.UUID) ([]Entry, error) {
	return o.store.ActiveEntriesForPatient(ctx, patientID)
}

// densify renumbers the WAITING entries so positions are 1..N again after
// excluded left the sequence. waiting must be the pre-removal ordered list.
func densify(tx Tx, waiting []*Entry, excluded uuid.UUID) error {
	positions := make(map[uuid.UUID]int)
	next := 1
	for _, w := range waiting {
		if w.ID == excluded {
			continue
		}
		if w.Position != next {
			positions[w.ID] = next
		}
		next++
	}
	if len(positions) == 0 {
		return nil
	}
	return tx.SetPositions(positions)
}

// afterCommit runs the post-commit side effects. Audit failures are logged
// and swallowed: they never undo the committed state change.
func (o *Orchestrator) afterCommit(ctx context.Context, action string, entry *Entry, metadata map[string]any) {
	if o.recorder != nil {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata["doctor_id"] = entry.DoctorID.String()
		metadata["patient_id"] = entry.PatientID.String()
		metadata["status"] = string(entry.Status)
		ev := audit.NewEvent(action, identity.ActorID(ctx), entry.ID.String(), metadata)
		if err := o.recorder.Record(ctx, ev); err != nil {
			o.logger.Error("audit record failed", "error", err, "action", action)
		}
	}
	o.notifier.QueueChanged(entry.DoctorID)
}

func (o *Orchestrator) fail(span trace.Span, op string, err error) error {
	o.metrics.ObserveOperation(op, "error")
	span.RecordError(err)
	return err
}
