// Package doctorstatus tracks each doctor's live availability state and
// serving pointers. The queue orchestrator mutates it on every transition;
// doctors change it directly through the manager's explicit path.
package doctorstatus

import (
	"time"

	"github.com/google/uuid"

	"github.com/medloop/clinic-ops/internal/timeutil"
)

// State is the closed set of doctor availability states.
type State string

const (
	StateAvailable State = "AVAILABLE"
	StateBusy      State = "BUSY"
	StateBreak     State = "BREAK"
	StateOffDuty   State = "OFF_DUTY"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateAvailable, StateBusy, StateBreak, StateOffDuty:
		return true
	}
	return false
}

// explicitTransitions are the self-service changes a doctor may make without
// a queue context. BUSY is entered and left only through the orchestrator.
var explicitTransitions = map[State][]State{
	StateAvailable: {StateBreak, StateOffDuty},
	StateBreak:     {StateAvailable, StateOffDuty},
	StateOffDuty:   {StateAvailable},
	StateBusy:      nil,
}

// CanExplicitlyTransition reports whether a doctor may move from -> to via
// the self-service path.
func CanExplicitlyTransition(from, to State) bool {
	for _, allowed := range explicitTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Status is the live record for one doctor.
type Status struct {
	DoctorID         uuid.UUID  `json:"doctor_id"`
	State            State      `json:"state"`
	IsAvailable      bool       `json:"is_available"`
	CurrentPatientID *uuid.UUID `json:"current_patient_id,omitempty"`
	CurrentEntryID   *uuid.UUID `json:"current_entry_id,omitempty"`
	LastStatusChange time.Time  `json:"last_status_change"`

	// StatsDate is the UTC day the Today* counters belong to. Counters are
	// reset inline when a mutation lands on a later day; there is no
	// scheduled reset job.
	StatsDate    time.Time `json:"stats_date"`
	TodayServed  int       `json:"today_served"`
	TodayNoShows int       `json:"today_no_shows"`
	TotalServed  int       `json:"total_served"`

	// AverageConsultationSeconds is a running mean over completed
	// consultations.
	AverageConsultationSeconds int `json:"average_consultation_seconds"`
}

// NewStatus returns the default record for a doctor with no history.
func NewStatus(doctorID uuid.UUID, now time.Time) *Status {
	return &Status{
		DoctorID:         doctorID,
		State:            StateAvailable,
		IsAvailable:      true,
		LastStatusChange: now,
		StatsDate:        timeutil.DayStartUTC(now),
	}
}

// SetState records a state change, keeping IsAvailable in sync.
func (s *Status) SetState(state State, now time.Time) {
	s.State = state
	s.IsAvailable = state == StateAvailable
	s.LastStatusChange = now
}

// Serving reports whether the doctor has a bound current patient.
func (s *Status) Serving() bool {
	return s.CurrentEntryID != nil
}

// BindCurrent points the doctor at the entry being served.
func (s *Status) BindCurrent(entryID, patientID uuid.UUID) {
	e, p := entryID, patientID
	s.CurrentEntryID = &e
	s.CurrentPatientID = &p
}

// ClearCurrent drops the serving pointers.
func (s *Status) ClearCurrent() {
	s.CurrentEntryID = nil
	s.CurrentPatientID = nil
}

// rollStats resets the daily counters when the UTC day has advanced past
// StatsDate.
func (s *Status) rollStats(now time.Time) {
	day := timeutil.DayStartUTC(now)
	if day.After(s.StatsDate) {
		s.StatsDate = day
		s.TodayServed = 0
		s.TodayNoShows = 0
	}
}

// RecordServed counts a completed consultation and folds its duration into
// the running average.
func (s *Status) RecordServed(now time.Time, consultationSeconds int) {
	s.rollStats(now)
	s.TodayServed++
	s.TotalServed++
	if consultationSeconds > 0 {
		if s.AverageConsultationSeconds == 0 {
			s.AverageConsultationSeconds = consultationSeconds
		} else {
			// Incremental mean over all completed consultations.
			total := s.AverageConsultationSeconds*(s.TotalServed-1) + consultationSeconds
			s.AverageConsultationSeconds = total / s.TotalServed
		}
	}
}

// RecordNoShow counts a no-show against today's tally.
func (s *Status) RecordNoShow(now time.Time) {
	s.rollStats(now)
	s.TodayNoShows++
}
