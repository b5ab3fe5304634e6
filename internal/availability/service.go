package availability

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/medloop/clinic-ops/internal/doctors"
	"github.com/medloop/clinic-ops/pkg/logging"
)

var availabilityTracer = otel.Tracer("clinicops.internal.availability")

// Service validates and replaces per-doctor template sets.
type Service struct {
	repo      Repository
	directory doctors.Directory
	logger    *logging.Logger
}

// NewService constructs an availability service.
func NewService(repo Repository, directory doctors.Directory, logger *logging.Logger) *Service {
	if repo == nil {
		panic("availability: repository required")
	}
	if directory == nil {
		panic("availability: doctor directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, directory: directory, logger: logger}
}

// List returns the doctor's current template set.
func (s *Service) List(ctx context.Context, doctorID uuid.UUID) ([]Template, error) {
	if _, err := s.directory.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.repo.ListByDoctor(ctx, doctorID)
}

// Replace validates the complete incoming set and swaps it in atomically.
// Validation runs against the whole set before anything is written, so a
// rejected request leaves the stored schedule untouched.
func (s *Service) Replace(ctx context.Context, doctorID uuid.UUID, templates []Template) error {
	ctx, span := availabilityTracer.Start(ctx, "availability.replace")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinicops.doctor_id", doctorID.String()),
		attribute.Int("clinicops.template_count", len(templates)),
	)

	if _, err := s.directory.GetByID(ctx, doctorID); err != nil {
		span.RecordError(err)
		return err
	}
	if err := ValidateSet(templates); err != nil {
		span.RecordError(err)
		return err
	}

	if err := s.repo.ReplaceAll(ctx, doctorID, templates); err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.Info("availability templates replaced",
		"doctor_id", doctorID,
		"template_count", len(templates),
	)
	return nil
}

// ValidateSet checks every template individually and then pairwise for
// same-weekday window overlap.
func ValidateSet(templates []Template) error {
	for i := range templates {
		if err := templates[i].Validate(); err != nil {
			return fmt.Errorf("template %d: %w", i, err)
		}
	}
	for i := range templates {
		for j := i + 1; j < len(templates); j++ {
			if overlapsSameDay(&templates[i], &templates[j]) {
				return fmt.Errorf("templates %d and %d: %w", i, j, ErrTemplateOverlap)
			}
		}
	}
	return nil
}
