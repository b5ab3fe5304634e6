package availability

import "errors"

var (
	// ErrInvalidTemplate is returned when a template violates its window or
	// break invariants.
	ErrInvalidTemplate = errors.New("invalid availability template")

	// ErrTemplateOverlap is returned when two templates for the same doctor
	// and weekday have intersecting windows.
	ErrTemplateOverlap = errors.New("availability templates overlap")
)
