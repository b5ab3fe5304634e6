package scheduling

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medloop/clinic-ops/internal/doctors"
	"github.com/medloop/clinic-ops/internal/timeutil"
	"github.com/medloop/clinic-ops/pkg/logging"
)

// Handler serves slot generation queries.
type Handler struct {
	generator *Generator
	logger    *logging.Logger
}

// NewHandler creates a scheduling handler.
func NewHandler(generator *Generator, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{generator: generator, logger: logger}
}

// SlotResponse is the wire form of one generated slot.
type SlotResponse struct {
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Available bool      `json:"available"`
}

// ListSlotsResponse wraps the generated slots.
type ListSlotsResponse struct {
	DoctorID uuid.UUID      `json:"doctor_id"`
	Slots    []SlotResponse `json:"slots"`
	Count    int            `json:"count"`
}

// ListSlots handles GET /doctors/{doctorID}/slots?start=YYYY-MM-DD&end=YYYY-MM-DD&duration=30.
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		http.Error(w, "invalid doctor id", http.StatusBadRequest)
		return
	}

	start, err := time.Parse("2006-01-02", r.URL.Query().Get("start"))
	if err != nil {
		http.Error(w, "invalid start date, use YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	end, err := time.Parse("2006-01-02", r.URL.Query().Get("end"))
	if err != nil {
		http.Error(w, "invalid end date, use YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	duration := 0
	if durStr := r.URL.Query().Get("duration"); durStr != "" {
		duration, err = strconv.Atoi(durStr)
		if err != nil || duration < 0 {
			http.Error(w, "invalid duration", http.StatusBadRequest)
			return
		}
	}

	slots, err := h.generator.Generate(r.Context(), doctorID, start, end, duration)
	if err != nil {
		switch {
		case errors.Is(err, doctors.ErrDoctorNotFound):
			http.Error(w, "doctor not found", http.StatusNotFound)
		case errors.Is(err, ErrInvalidRange), errors.Is(err, ErrRangeTooLarge):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("slot generation failed", "error", err, "doctor_id", doctorID)
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{
			Date:      s.Date.Format("2006-01-02"),
			StartTime: timeutil.FormatClock(s.StartMinute),
			EndTime:   timeutil.FormatClock(s.EndMinute),
			StartsAt:  s.StartsAt,
			EndsAt:    s.EndsAt,
			Available: s.Available,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ListSlotsResponse{DoctorID: doctorID, Slots: out, Count: len(out)})
}
