package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/medloop/clinic-ops/internal/appointments"
	"github.com/medloop/clinic-ops/internal/availability"
	"github.com/medloop/clinic-ops/internal/doctors"
	"github.com/medloop/clinic-ops/internal/observability/metrics"
	"github.com/medloop/clinic-ops/internal/timeutil"
	"github.com/medloop/clinic-ops/pkg/logging"
)

var schedulingTracer = otel.Tracer("clinicops.internal.scheduling")

// Generator derives bookable slots. It is read-only: results reflect a
// snapshot and the booking flow re-checks conflicts at commit time with the
// same overlap predicate.
type Generator struct {
	templates availability.Repository
	appts     appointments.Reader
	directory doctors.Directory
	metrics   *metrics.SlotMetrics
	logger    *logging.Logger
	now       func() time.Time
	maxRange  int
}

// NewGenerator constructs a slot generator.
func NewGenerator(templates availability.Repository, appts appointments.Reader, directory doctors.Directory, m *metrics.SlotMetrics, logger *logging.Logger) *Generator {
	if templates == nil {
		panic("scheduling: template repository required")
	}
	if appts == nil {
		panic("scheduling: appointment reader required")
	}
	if directory == nil {
		panic("scheduling: doctor directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Generator{
		templates: templates,
		appts:     appts,
		directory: directory,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
		maxRange:  MaxRangeDays,
	}
}

// WithMaxRange overrides the maximum queryable range in days.
func (g *Generator) WithMaxRange(days int) *Generator {
	if days > 0 {
		g.maxRange = days
	}
	return g
}

// WithClock overrides the time source. Used by tests.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate computes the doctor's candidate slots for every UTC day in
// [startDate, endDate] inclusive. requestedDuration <= 0 means "use the
// doctor's consultation average, or the default".
func (g *Generator) Generate(ctx context.Context, doctorID uuid.UUID, startDate, endDate time.Time, requestedDuration int) ([]Slot, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.generate")
	defer span.End()
	span.SetAttributes(attribute.String("clinicops.doctor_id", doctorID.String()))

	started := g.now()

	startDay := timeutil.DayStartUTC(startDate)
	endDay := timeutil.DayStartUTC(endDate)
	if startDay.After(endDay) {
		return nil, ErrInvalidRange
	}
	if endDay.Sub(startDay) > time.Duration(g.maxRange)*24*time.Hour {
		return nil, ErrRangeTooLarge
	}

	doctor, err := g.directory.GetByID(ctx, doctorID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	duration := slotDuration(requestedDuration, doctor.AverageConsultationMinutes)

	templates, err := g.templates.ListByDoctor(ctx, doctorID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// One blocking-appointment fetch for the whole range, not per candidate.
	blocking, err := g.appts.ListBlocking(ctx, doctorID, startDay, endDay.AddDate(0, 0, 1))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	now := g.now()
	var slots []Slot
	available, unavailable := 0, 0

	for _, day := range timeutil.DaysInRange(startDay, endDay) {
		for _, tpl := range templates {
			if tpl.Weekday != day.Weekday() {
				continue
			}
			for _, s := range g.slotsForTemplate(day, &tpl, duration, now, blocking) {
				if s.Available {
					available++
				} else {
					unavailable++
				}
				slots = append(slots, s)
			}
		}
	}

	g.metrics.ObserveGenerate(g.now().Sub(started).Seconds())
	g.metrics.ObserveSlots(true, available)
	g.metrics.ObserveSlots(false, unavailable)
	g.logger.Debug("slots generated",
		"doctor_id", doctorID,
		"days", endDay.Sub(startDay)/(24*time.Hour)+1,
		"duration_minutes", duration,
		"slot_count", len(slots),
	)
	return slots, nil
}

// slotsForTemplate steps a cursor through one template window on one day.
// A candidate that collides with the break is dropped and the cursor resumes
// at the break's end, so the first post-break slot starts when the doctor is
// back.
func (g *Generator) slotsForTemplate(day time.Time, tpl *availability.Template, duration int, now time.Time, blocking []appointments.Appointment) []Slot {
	var out []Slot
	for cursor := tpl.StartMinute; cursor+duration <= tpl.EndMinute; {
		candidateEnd := cursor + duration

		if tpl.HasBreak && timeutil.Overlaps(cursor, candidateEnd, tpl.BreakStartMinute, tpl.BreakEndMinute) {
			cursor = tpl.BreakEndMinute
			continue
		}

		startsAt := timeutil.AtMinuteUTC(day, cursor)
		if !startsAt.After(now) {
			// No retroactive booking.
			cursor += duration
			continue
		}
		endsAt := timeutil.AtMinuteUTC(day, candidateEnd)

		out = append(out, Slot{
			DoctorID:    tpl.DoctorID,
			Date:        day,
			StartMinute: cursor,
			EndMinute:   candidateEnd,
			StartsAt:    startsAt,
			EndsAt:      endsAt,
			Available:   !conflicts(startsAt, endsAt, blocking),
		})
		cursor += duration
	}
	return out
}

// conflicts tests the candidate's absolute interval against every blocking
// appointment. This predicate is the one the booking flow must re-run at
// commit time.
func conflicts(startsAt, endsAt time.Time, blocking []appointments.Appointment) bool {
	for i := range blocking {
		if timeutil.OverlapsTime(startsAt, endsAt, blocking[i].StartsAt, blocking[i].EndsAt()) {
			return true
		}
	}
	return false
}

func slotDuration(requested, doctorAverage int) int {
	d := requested
	if d <= 0 {
		d = doctorAverage
	}
	if d <= 0 {
		d = DefaultSlotMinutes
	}
	if d < MinSlotMinutes {
		d = MinSlotMinutes
	}
	return d
}
