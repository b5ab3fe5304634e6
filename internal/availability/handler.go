package availability

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medloop/clinic-ops/internal/doctors"
	"github.com/medloop/clinic-ops/internal/timeutil"
	"github.com/medloop/clinic-ops/pkg/logging"
)

// Handler handles HTTP requests for availability templates.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new availability handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// TemplateRequest is the wire form of one template; times use "HH:MM".
type TemplateRequest struct {
	Weekday    time.Weekday `json:"weekday"`
	StartTime  string       `json:"start_time"`
	EndTime    string       `json:"end_time"`
	BreakStart string       `json:"break_start,omitempty"`
	BreakEnd   string       `json:"break_end,omitempty"`
}

// ReplaceRequest carries the complete intended set for a doctor.
type ReplaceRequest struct {
	Templates []TemplateRequest `json:"templates"`
}

// TemplateResponse mirrors TemplateRequest with the stored id.
type TemplateResponse struct {
	ID         uuid.UUID    `json:"id"`
	Weekday    time.Weekday `json:"weekday"`
	StartTime  string       `json:"start_time"`
	EndTime    string       `json:"end_time"`
	BreakStart string       `json:"break_start,omitempty"`
	BreakEnd   string       `json:"break_end,omitempty"`
}

// List handles GET /doctors/{doctorID}/availability.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		http.Error(w, "invalid doctor id", http.StatusBadRequest)
		return
	}

	templates, err := h.service.List(r.Context(), doctorID)
	if err != nil {
		if errors.Is(err, doctors.ErrDoctorNotFound) {
			http.Error(w, "doctor not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to list templates", "error", err, "doctor_id", doctorID)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	out := make([]TemplateResponse, 0, len(templates))
	for _, t := range templates {
		resp := TemplateResponse{
			ID:        t.ID,
			Weekday:   t.Weekday,
			StartTime: timeutil.FormatClock(t.StartMinute),
			EndTime:   timeutil.FormatClock(t.EndMinute),
		}
		if t.HasBreak {
			resp.BreakStart = timeutil.FormatClock(t.BreakStartMinute)
			resp.BreakEnd = timeutil.FormatClock(t.BreakEndMinute)
		}
		out = append(out, resp)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"templates": out})
}

// Replace handles PUT /doctors/{doctorID}/availability.
func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		http.Error(w, "invalid doctor id", http.StatusBadRequest)
		return
	}

	var req ReplaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	templates := make([]Template, 0, len(req.Templates))
	for _, in := range req.Templates {
		t, err := templateFromRequest(doctorID, in)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		templates = append(templates, t)
	}

	if err := h.service.Replace(r.Context(), doctorID, templates); err != nil {
		switch {
		case errors.Is(err, doctors.ErrDoctorNotFound):
			http.Error(w, "doctor not found", http.StatusNotFound)
		case errors.Is(err, ErrTemplateOverlap):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, ErrInvalidTemplate):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			h.logger.Error("failed to replace templates", "error", err, "doctor_id", doctorID)
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func templateFromRequest(doctorID uuid.UUID, in TemplateRequest) (Template, error) {
	t := Template{DoctorID: doctorID, Weekday: in.Weekday}

	var err error
	if t.StartMinute, err = timeutil.ParseClock(in.StartTime); err != nil {
		return Template{}, err
	}
	if t.EndMinute, err = timeutil.ParseClock(in.EndTime); err != nil {
		return Template{}, err
	}
	if in.BreakStart != "" || in.BreakEnd != "" {
		t.HasBreak = true
		if t.BreakStartMinute, err = timeutil.ParseClock(in.BreakStart); err != nil {
			return Template{}, err
		}
		if t.BreakEndMinute, err = timeutil.ParseClock(in.BreakEnd); err != nil {
			return Template{}, err
		}
	}
	return t, nil
}
