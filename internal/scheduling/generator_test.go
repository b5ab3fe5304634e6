package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medloop/clinic-ops/internal/appointments"
	"github.com/medloop/clinic-ops/internal/availability"
	"github.com/medloop/clinic-ops/internal/doctors"
	"github.com/medloop/clinic-ops/pkg/logging"
)

// fixedNow is a Sunday so that Monday slots in the test week are all in the
// future.
var fixedNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

// monday is the first Monday after fixedNow.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type fixture struct {
	generator *Generator
	templates *availability.InMemoryRepository
	appts     *appointments.InMemoryReader
	doctorID  uuid.UUID
}

func newFixture(t *testing.T, avgConsultation int) *fixture {
	t.Helper()

	directory := doctors.NewInMemoryDirectory()
	doctorID := uuid.New()
	directory.Put(&doctors.Doctor{
		ID:                         doctorID,
		Name:                       "Dr. Imani",
		AverageConsultationMinutes: avgConsultation,
	})

	templates := availability.NewInMemoryRepository()
	appts := appointments.NewInMemoryReader()

	gen := NewGenerator(templates, appts, directory, nil, logging.Default()).
		WithClock(func() time.Time { return fixedNow })

	return &fixture{generator: gen, templates: templates, appts: appts, doctorID: doctorID}
}

func (f *fixture) setMondayTemplate(t *testing.T) {
	t.Helper()
	// Monday 09:00-12:00 with a 10:00-10:15 break.
	err := f.templates.ReplaceAll(context.Background(), f.doctorID, []availability.Template{
		{
			Weekday:          time.Monday,
			StartMinute:      9 * 60,
			EndMinute:        12 * 60,
			HasBreak:         true,
			BreakStartMinute: 10 * 60,
			BreakEndMinute:   10*60 + 15,
		},
	})
	require.NoError(t, err)
}

func TestGenerateSkipsBreakOverlaps(t *testing.T) {
	f := newFixture(t, 0)
	f.setMondayTemplate(t)

	slots, err := f.generator.Generate(context.Background(), f.doctorID, monday, monday, 30)
	require.NoError(t, err)

	// The 10:00-10:30 candidate is dropped for overlapping the break; the
	// cursor resumes at 10:15.
	want := [][2]string{
		{"09:00", "09:30"},
		{"09:30", "10:00"},
		{"10:15", "10:45"},
		{"10:45", "11:15"},
		{"11:15", "11:45"},
	}
	require.Len(t, slots, len(want))
	for i, s := range slots {
		assert.Equal(t, want[i][0], clock(s.StartMinute), "slot %d start", i)
		assert.Equal(t, want[i][1], clock(s.EndMinute), "slot %d end", i)
		assert.True(t, s.Available, "slot %d should be available", i)
	}
}

func TestGenerateMarksBookedSlotUnavailable(t *testing.T) {
	f := newFixture(t, 0)
	f.setMondayTemplate(t)

	f.appts.Put(&appointments.Appointment{
		ID:              uuid.New(),
		DoctorID:        f.doctorID,
		PatientID:       uuid.New(),
		StartsAt:        monday.Add(9*time.Hour + 30*time.Minute),
		DurationMinutes: 30,
		Status:          appointments.StatusConfirmed,
	})

	slots, err := f.generator.Generate(context.Background(), f.doctorID, monday, monday, 30)
	require.NoError(t, err)
	require.Len(t, slots, 5)

	for _, s := range slots {
		if clock(s.StartMinute) == "09:30" {
			assert.False(t, s.Available, "booked slot must be unavailable")
		} else {
			assert.True(t, s.Available, "slot %s should remain available", clock(s.StartMinute))
		}
	}
}

func TestGenerateIgnoresTerminalAppointments(t *testing.T) {
	f := newFixture(t, 0)
	f.setMondayTemplate(t)

	for _, status := range []appointments.Status{
		appointments.StatusCancelled,
		appointments.StatusCompleted,
		appointments.StatusRejected,
		appointments.StatusNoShow,
	} {
		f.appts.Put(&appointments.Appointment{
			ID:              uuid.New(),
			DoctorID:        f.doctorID,
			PatientID:       uuid.New(),
			StartsAt:        monday.Add(9*time.Hour + 30*time.Minute),
			DurationMinutes: 30,
			Status:          status,
		})
	}

	slots, err := f.generator.Generate(context.Background(), f.doctorID, monday, monday, 30)
	require.NoError(t, err)
	for _, s := range slots {
		assert.True(t, s.Available, "terminal statuses never block")
	}
}

func TestGenerateNoPastSlots(t *testing.T) {
	f := newFixture(t, 0)
	f.setMondayTemplate(t)

	// Midday Monday: the morning slots are already gone.
	gen := f.generator.WithClock(func() time.Time {
		return monday.Add(10*time.Hour + 45*time.Minute)
	})

	slots, err := gen.Generate(context.Background(), f.doctorID, monday, monday, 30)
	require.NoError(t, err)

	require.Len(t, slots, 1)
	assert.Equal(t, "11:15", clock(slots[0].StartMinute))
}

func TestGenerateDurationFallbacks(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		average   int
		wantLen   int // within Monday 09:00-12:00, break 10:00-10:15
	}{
		{"explicit duration wins", 60, 30, 2},         // 09:00, 10:15
		{"doctor average when unspecified", 0, 45, 3}, // 09:00, 10:15, 11:00
		{"default when nothing configured", 0, 0, 5},  // 30-minute grid
		{"floor applied to tiny request", 5, 0, 11},   // 15-minute grid around the break
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.average)
			f.setMondayTemplate(t)

			slots, err := f.generator.Generate(context.Background(), f.doctorID, monday, monday, tt.requested)
			require.NoError(t, err)
			assert.Len(t, slots, tt.wantLen)
		})
	}
}

func TestGenerateMultiDayOrdering(t *testing.T) {
	f := newFixture(t, 0)
	err := f.templates.ReplaceAll(context.Background(), f.doctorID, []availability.Template{
		{Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 10 * 60},
		{Weekday: time.Tuesday, StartMinute: 14 * 60, EndMinute: 15 * 60},
	})
	require.NoError(t, err)

	slots, err := f.generator.Generate(context.Background(), f.doctorID, monday, monday.AddDate(0, 0, 1), 30)
	require.NoError(t, err)
	require.Len(t, slots, 4)

	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i].StartsAt.After(slots[i-1].StartsAt),
			"slots must ascend by date then start time")
	}
}

func TestGenerateInvalidRange(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.generator.Generate(context.Background(), f.doctorID, monday.AddDate(0, 0, 1), monday, 30)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestGenerateRangeTooLarge(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.generator.Generate(context.Background(), f.doctorID, monday, monday.AddDate(0, 0, 120), 30)
	assert.ErrorIs(t, err, ErrRangeTooLarge)
}

func TestGenerateUnknownDoctor(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.generator.Generate(context.Background(), uuid.New(), monday, monday, 30)
	assert.ErrorIs(t, err, doctors.ErrDoctorNotFound)
}

func TestGenerateNoTemplateDays(t *testing.T) {
	f := newFixture(t, 0)
	f.setMondayTemplate(t)

	// Sunday has no template, so no slots.
	sunday := monday.AddDate(0, 0, -1)
	slots, err := f.generator.Generate(context.Background(), f.doctorID, sunday, sunday, 30)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

// Property from the availability contract: no available slot ever overlaps a
// blocking appointment.
func TestAvailableSlotsNeverOverlapBlocking(t *testing.T) {
	f := newFixture(t, 0)
	f.setMondayTemplate(t)

	booked := []time.Time{
		monday.Add(9*time.Hour + 15*time.Minute),
		monday.Add(11 * time.Hour),
	}
	for _, at := range booked {
		f.appts.Put(&appointments.Appointment{
			ID:              uuid.New(),
			DoctorID:        f.doctorID,
			PatientID:       uuid.New(),
			StartsAt:        at,
			DurationMinutes: 20,
			Status:          appointments.StatusPending,
		})
	}

	slots, err := f.generator.Generate(context.Background(), f.doctorID, monday, monday, 30)
	require.NoError(t, err)

	blocking, err := f.appts.ListBlocking(context.Background(), f.doctorID, monday, monday.AddDate(0, 0, 1))
	require.NoError(t, err)

	for _, s := range slots {
		if !s.Available {
			continue
		}
		for _, b := range blocking {
			overlap := s.StartsAt.Before(b.EndsAt()) && b.StartsAt.Before(s.EndsAt)
			assert.False(t, overlap, "available slot %s overlaps appointment at %s", clock(s.StartMinute), b.StartsAt)
		}
	}
}

func clock(minute int) string {
	return time.Date(2000, 1, 1, minute/60, minute%60, 0, 0, time.UTC).Format("15:04")
}
