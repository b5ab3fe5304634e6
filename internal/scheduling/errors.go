package scheduling

import "errors"

var (
	// ErrInvalidRange is returned when the start date is after the end date.
	ErrInvalidRange = errors.New("start date is after end date")

	// ErrRangeTooLarge is returned when the requested range exceeds
	// MaxRangeDays.
	ErrRangeTooLarge = errors.New("date range too large")
)
