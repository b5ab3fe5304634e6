// Package availability stores each doctor's recurring weekly slot templates.
// Templates are always replaced as a complete per-doctor set so the
// no-overlap invariant is validated against the full intended schedule.
package availability

import (
	"time"

	"github.com/google/uuid"

	"github.com/medloop/clinic-ops/internal/timeutil"
)

// Template defines a recurring availability window for one weekday.
// Times are minutes from midnight; the window is [StartMinute, EndMinute).
type Template struct {
	ID               uuid.UUID    `json:"id"`
	DoctorID         uuid.UUID    `json:"doctor_id"`
	Weekday          time.Weekday `json:"weekday"`
	StartMinute      int          `json:"start_minute"`
	EndMinute        int          `json:"end_minute"`
	HasBreak         bool         `json:"has_break"`
	BreakStartMinute int          `json:"break_start_minute,omitempty"`
	BreakEndMinute   int          `json:"break_end_minute,omitempty"`
}

// Validate checks the single-template invariants: a non-empty window within
// the day, and the break contained in the window when present.
func (t *Template) Validate() error {
	if t.Weekday < time.Sunday || t.Weekday > time.Saturday {
		return ErrInvalidTemplate
	}
	if t.StartMinute < 0 || t.EndMinute > timeutil.MinutesPerDay || t.StartMinute >= t.EndMinute {
		return ErrInvalidTemplate
	}
	if t.HasBreak {
		if t.BreakStartMinute < t.StartMinute || t.BreakEndMinute > t.EndMinute {
			return ErrInvalidTemplate
		}
		if t.BreakStartMinute >= t.BreakEndMinute {
			return ErrInvalidTemplate
		}
	}
	return nil
}

// overlapsSameDay reports whether two templates collide. Templates on
// different weekdays never overlap.
func overlapsSameDay(a, b *Template) bool {
	if a.Weekday != b.Weekday {
		return false
	}
	return timeutil.Overlaps(a.StartMinute, a.EndMinute, b.StartMinute, b.EndMinute)
}
