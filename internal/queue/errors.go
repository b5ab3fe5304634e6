package queue

import "errors"

var (
	// ErrEntryNotFound is returned when no queue entry matches the id.
	ErrEntryNotFound = errors.New("queue entry not found")

	// ErrInvalidTransition is returned for status changes outside the
	// transition table.
	ErrInvalidTransition = errors.New("invalid queue entry transition")

	// ErrDuplicateEntry is returned when the patient already has an active
	// entry in this doctor's queue.
	ErrDuplicateEntry = errors.New("patient already has an active queue entry")

	// ErrQueueEmpty is returned by call-next when no WAITING entry exists.
	ErrQueueEmpty = errors.New("queue is empty")

	// ErrDoctorAlreadyServing is returned by call-next when the doctor still
	// has a CALLED or IN_PROGRESS entry.
	ErrDoctorAlreadyServing = errors.New("doctor is already serving a patient")

	// ErrWalkInsNotAllowed is returned when the doctor's configuration does
	// not accept walk-ins.
	ErrWalkInsNotAllowed = errors.New("doctor does not accept walk-ins")

	// ErrAppointmentNotToday is returned by check-in for appointments outside
	// the current UTC day.
	ErrAppointmentNotToday = errors.New("appointment is not scheduled for today")

	// ErrAppointmentNotCheckable is returned by check-in when the appointment
	// is not in a blocking status.
	ErrAppointmentNotCheckable = errors.New("appointment status does not allow check-in")

	// ErrInvalidPriority is returned for priorities outside the known set.
	ErrInvalidPriority = errors.New("invalid priority")
)
