package doctorstatus

import "errors"

var (
	// ErrStatusNotFound is returned when no status record exists for the
	// doctor.
	ErrStatusNotFound = errors.New("doctor status not found")

	// ErrInvalidState is returned for unknown state values.
	ErrInvalidState = errors.New("invalid availability state")

	// ErrInvalidStateChange is returned for self-service transitions outside
	// the explicit transition table.
	ErrInvalidStateChange = errors.New("state change not allowed")

	// ErrStatusChangeWhileServing is returned when a doctor tries to change
	// state while a patient is CALLED or IN_PROGRESS.
	ErrStatusChangeWhileServing = errors.New("cannot change status while serving a patient")
)
