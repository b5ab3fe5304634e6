package doctorstatus

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medloop/clinic-ops/internal/timeutil"
	"github.com/medloop/clinic-ops/pkg/logging"
)

// Handler serves the doctor status endpoints.
type Handler struct {
	manager *Manager
	logger  *logging.Logger
}

// NewHandler creates a status handler.
func NewHandler(manager *Manager, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{manager: manager, logger: logger}
}

// GetStatus handles GET /doctors/{doctorID}/status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		http.Error(w, "invalid doctor id", http.StatusBadRequest)
		return
	}

	st, err := h.manager.Get(r.Context(), doctorID)
	if err != nil {
		h.logger.Error("get doctor status failed", "error", err, "doctor_id", doctorID)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}

// StatsResponse is the day-stats view of a doctor's status record.
type StatsResponse struct {
	DoctorID                   uuid.UUID `json:"doctor_id"`
	StatsDate                  string    `json:"stats_date"`
	TodayServed                int       `json:"today_served"`
	TodayNoShows               int       `json:"today_no_shows"`
	TotalServed                int       `json:"total_served"`
	AverageConsultationSeconds int       `json:"average_consultation_seconds"`
}

// GetStats handles GET /doctors/{doctorID}/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		http.Error(w, "invalid doctor id", http.StatusBadRequest)
		return
	}

	st, err := h.manager.Get(r.Context(), doctorID)
	if err != nil {
		h.logger.Error("get doctor stats failed", "error", err, "doctor_id", doctorID)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// Counters reset lazily at mutation time; a read on a fresh day reports
	// zeros without writing anything.
	day := timeutil.DayStartUTC(time.Now())
	if day.After(st.StatsDate) {
		st.StatsDate = day
		st.TodayServed = 0
		st.TodayNoShows = 0
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatsResponse{
		DoctorID:                   st.DoctorID,
		StatsDate:                  st.StatsDate.Format("2006-01-02"),
		TodayServed:                st.TodayServed,
		TodayNoShows:               st.TodayNoShows,
		TotalServed:                st.TotalServed,
		AverageConsultationSeconds: st.AverageConsultationSeconds,
	})
}

// UpdateStatusRequest is the body for PUT /doctors/{doctorID}/status.
type UpdateStatusRequest struct {
	State State `json:"state"`
}

// UpdateStatus handles PUT /doctors/{doctorID}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		http.Error(w, "invalid doctor id", http.StatusBadRequest)
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	st, err := h.manager.SetState(r.Context(), doctorID, req.State)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidState), errors.Is(err, ErrInvalidStateChange):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrStatusChangeWhileServing):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			h.logger.Error("update doctor status failed", "error", err, "doctor_id", doctorID)
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}
