package appointments

import "errors"

var (
	// ErrAppointmentNotFound is returned when no appointment exists for the id.
	ErrAppointmentNotFound = errors.New("appointment not found")
)
