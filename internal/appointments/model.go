// Package appointments is the read model over bookings. Appointment creation
// and lifecycle transitions are owned by the booking flow; this core only
// reads rows for conflict checks and check-in validation.
package appointments

import (
	"time"

	"github.com/google/uuid"
)

// Status is the closed set of appointment lifecycle states.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusConfirmed Status = "CONFIRMED"
	StatusScheduled Status = "SCHEDULED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusRejected  Status = "REJECTED"
	StatusNoShow    Status = "NO_SHOW"
)

// blockingStatuses are the states that occupy a slot. Terminal states never
// block.
var blockingStatuses = map[Status]bool{
	StatusPending:   true,
	StatusAccepted:  true,
	StatusConfirmed: true,
	StatusScheduled: true,
}

// Blocks reports whether an appointment in this status occupies its slot.
func (s Status) Blocks() bool {
	return blockingStatuses[s]
}

// Appointment is one booking instance.
type Appointment struct {
	ID              uuid.UUID `json:"id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	PatientID       uuid.UUID `json:"patient_id"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          Status    `json:"status"`
	Urgent          bool      `json:"urgent"`
}

// EndsAt returns the exclusive end instant of the appointment interval.
func (a *Appointment) EndsAt() time.Time {
	return a.StartsAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}
