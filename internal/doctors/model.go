// Package doctors exposes the read-only doctor directory the scheduling and
// queue cores consume. Doctor accounts and their policy flags are owned by
// the surrounding administration service; this package never mutates them.
package doctors

import (
	"time"

	"github.com/google/uuid"
)

// Doctor carries the directory fields and policy flags the core reads.
type Doctor struct {
	ID                         uuid.UUID `json:"id"`
	Name                       string    `json:"name"`
	Specialty                  string    `json:"specialty,omitempty"`
	AverageConsultationMinutes int       `json:"average_consultation_minutes"`

	// Policy flags, owned by doctor configuration.
	AllowWalkIns       bool          `json:"allow_walk_ins"`
	AllowOnlineBooking bool          `json:"allow_online_booking"`
	AutoCallNext       bool          `json:"auto_call_next"`
	NoShowTimeout      time.Duration `json:"no_show_timeout"`
}
