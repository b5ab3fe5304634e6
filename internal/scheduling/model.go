// Package scheduling computes bookable time slots from a doctor's weekly
// availability templates and their existing blocking appointments.
package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Slot is one candidate booking window. Slots are derived on every query and
// never persisted.
type Slot struct {
	DoctorID    uuid.UUID `json:"doctor_id"`
	Date        time.Time `json:"date"` // UTC midnight of the slot's day
	StartMinute int       `json:"start_minute"`
	EndMinute   int       `json:"end_minute"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	Available   bool      `json:"available"`
}

const (
	// MinSlotMinutes is the floor applied to any requested duration.
	MinSlotMinutes = 15

	// DefaultSlotMinutes is used when neither the request nor the doctor's
	// consultation average provides a duration.
	DefaultSlotMinutes = 30

	// MaxRangeDays bounds a single generation request. The surrounding
	// system caps ranges too; this is the library-level guard against
	// pathological inputs.
	MaxRangeDays = 90
)
