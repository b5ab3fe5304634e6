// Package queue implements the live per-doctor walk-in queue: ordered
// entries with priority, dense positions among the waiting set, and atomic
// per-doctor state transitions.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a queue entry.
type Status string

const (
	StatusWaiting    Status = "WAITING"
	StatusCalled     Status = "CALLED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusNoShow     Status = "NO_SHOW"
)

// transitions is the exhaustive table of legal status changes. CANCELLED
// from CALLED covers the front desk cancelling a patient who was already
// called up but has not entered the room.
var transitions = map[Status][]Status{
	StatusWaiting:    {StatusCalled, StatusCancelled, StatusNoShow},
	StatusCalled:     {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Active reports whether the entry still occupies the queue.
func (s Status) Active() bool {
	switch s {
	case StatusWaiting, StatusCalled, StatusInProgress:
		return true
	}
	return false
}

// Terminal reports whether the entry has left the queue for good.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Priority orders call-next selection. Lower value wins.
type Priority int

const (
	PriorityUrgent Priority = 1
	PriorityNormal Priority = 2
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p == PriorityUrgent || p == PriorityNormal
}

func (p Priority) String() string {
	switch p {
	case PriorityUrgent:
		return "urgent"
	case PriorityNormal:
		return "normal"
	}
	return "unknown"
}

// Entry is one patient in a doctor's queue. Position is 1-based and dense
// among WAITING entries only; once called or removed, the entry keeps its
// last waiting position as historical metadata.
type Entry struct {
	ID            uuid.UUID  `json:"id"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	Status        Status     `json:"status"`
	Priority      Priority   `json:"priority"`
	Position      int        `json:"position"`
	Notes         string     `json:"notes,omitempty"`
	JoinedAt      time.Time  `json:"joined_at"`
	CalledAt      *time.Time `json:"called_at,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// WaitDuration is how long the entry sat in the queue before being called.
func (e *Entry) WaitDuration() time.Duration {
	if e.CalledAt == nil {
		return 0
	}
	return e.CalledAt.Sub(e.JoinedAt)
}

// ConsultationDuration is the time between the consultation starting and
// completing. Falls back to CalledAt when the start was implicit.
func (e *Entry) ConsultationDuration() time.Duration {
	if e.CompletedAt == nil {
		return 0
	}
	start := e.StartedAt
	if start == nil {
		start = e.CalledAt
	}
	if start == nil {
		return 0
	}
	return e.CompletedAt.Sub(*start)
}
