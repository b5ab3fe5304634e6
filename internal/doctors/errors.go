package doctors

import "errors"

var (
	// ErrDoctorNotFound is returned when no doctor exists for the given id.
	ErrDoctorNotFound = errors.New("doctor not found")
)
