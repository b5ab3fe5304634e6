package queue

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medloop/clinic-ops/internal/appointments"
	"github.com/medloop/clinic-ops/internal/doctors"
	"github.com/medloop/clinic-ops/internal/doctorstatus"
	"github.com/medloop/clinic-ops/pkg/logging"
)

// Handler serves the queue endpoints.
type Handler struct {
	orchestrator *Orchestrator
	statuses     *doctorstatus.Manager
	logger       *logging.Logger
}

// NewHandler creates a queue handler.
func NewHandler(orchestrator *Orchestrator, statuses *doctorstatus.Manager, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{orchestrator: orchestrator, statuses: statuses, logger: logger}
}

// AddWalkInRequest is the body for POST /doctors/{doctorID}/queue/walk-ins.
type AddWalkInRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	Priority  string    `json:"priority,omitempty"` // "urgent" or "normal"
}

// AddWalkIn handles POST /doctors/{doctorID}/queue/walk-ins.
func (h *Handler) AddWalkIn(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		http.Error(w, "invalid doctor id", http.StatusBadRequest)
		return
	}

	var req AddWalkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.PatientID == uuid.Nil {
		http.Error(w, "patient_id is required", http.StatusBadRequest)
		return
	}

	priority, err := parsePriority(req.Priority)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entry, err := h.orchestrator.AddWalkIn(r.Context(), doctorID, req.PatientID, priority)
	if err != nil {
		h.writeError(w, err, "add walk-in failed")
		return
	}
	h.writeJSON(w, http.StatusCreated, entry)
}

// CheckInRequest is the body for POST /queue/check-ins.
type CheckInRequest struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
}

// CheckIn handles POST /queue/check-ins.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AppointmentID == uuid.Nil {
		http.Error(w, "appointment_id is required", http.StatusBadRequest)
		return
	}

	entry, err := h.orchestrator.CheckInAppointment(r.Context(), req.AppointmentID)
	if err != nil {
		h.writeError(w, err, "check-in failed")
		return
	}
	h.writeJSON(w, http.StatusCreated, entry)
}

// CallNext handles POST /doctors/{doctorID}/queue/call-next.
func (h *Handler) CallNext(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		http.Error(w, "invalid doctor id", http.StatusBadRequest)
		return
	}

	entry, err := h.orchestrator.CallNext(r.Context(), doctorID)
	if err != nil {
		h.writeError(w, err, "call-next failed")
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

// UpdatePositionRequest is the body for PATCH /queue/entries/{entryID}/position.
type UpdatePositionRequest struct {
	Position int `json:"position"`
}

// UpdatePosition handles PATCH /queue/entries/{entryID}/position.
func (h *Handler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		http.Error(w, "invalid entry id", http.StatusBadRequest)
		return
	}

	var req UpdatePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	entry, err := h.orchestrator.UpdatePosition(r.Context(), entryID, req.Position)
	if err != nil {
		h.writeError(w, err, "update position failed")
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

// Start handles POST /queue/entries/{entryID}/start.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		http.Error(w, "invalid entry id", http.StatusBadRequest)
		return
	}

	entry, err := h.orchestrator.StartConsultation(r.Context(), entryID)
	if err != nil {
		h.writeError(w, err, "start consultation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

// CompleteRequest is the body for POST /queue/entries/{entryID}/complete.
type CompleteRequest struct {
	Notes string `json:"notes,omitempty"`
}

// Complete handles POST /queue/entries/{entryID}/complete.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		http.Error(w, "invalid entry id", http.StatusBadRequest)
		return
	}

	var req CompleteRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	entry, err := h.orchestrator.Complete(r.Context(), entryID, req.Notes)
	if err != nil {
		h.writeError(w, err, "complete consultation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

// Cancel handles POST /queue/entries/{entryID}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		http.Error(w, "invalid entry id", http.StatusBadRequest)
		return
	}

	entry, err := h.orchestrator.Cancel(r.Context(), entryID)
	if err != nil {
		h.writeError(w, err, "cancel entry failed")
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

// NoShow handles POST /queue/entries/{entryID}/no-show.
func (h *Handler) NoShow(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		http.Error(w, "invalid entry id", http.StatusBadRequest)
		return
	}

	entry, err := h.orchestrator.NoShow(r.Context(), entryID)
	if err != nil {
		h.writeError(w, err, "no-show entry failed")
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

// GetQueue handles GET /doctors/{doctorID}/queue.
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		http.Error(w, "invalid doctor id", http.StatusBadRequest)
		return
	}

	state, err := h.orchestrator.GetQueueState(r.Context(), doctorID)
	if err != nil {
		h.writeError(w, err, "get queue failed")
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

// Board is the waiting-room display read model: the ordered waiting list,
// who is being seen, and the doctor's live state in one response.
type Board struct {
	DoctorID uuid.UUID            `json:"doctor_id"`
	Waiting  []Entry              `json:"waiting"`
	Current  *Entry               `json:"current,omitempty"`
	Status   *doctorstatus.Status `json:"status"`
}

// GetBoard handles GET /doctors/{doctorID}/queue/board.
func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		http.Error(w, "invalid doctor id", http.StatusBadRequest)
		return
	}

	state, err := h.orchestrator.GetQueueState(r.Context(), doctorID)
	if err != nil {
		h.writeError(w, err, "get queue board failed")
		return
	}
	st, err := h.statuses.Get(r.Context(), doctorID)
	if err != nil {
		h.writeError(w, err, "get queue board failed")
		return
	}
	h.writeJSON(w, http.StatusOK, Board{
		DoctorID: doctorID,
		Waiting:  state.Waiting,
		Current:  state.Current,
		Status:   st,
	})
}

// PatientEntries handles GET /patients/{patientID}/queue-entries.
func (h *Handler) PatientEntries(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuid.Parse(chi.URLParam(r, "patientID"))
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}

	entries, err := h.orchestrator.GetPatientActiveQueues(r.Context(), patientID)
	if err != nil {
		h.writeError(w, err, "get patient entries failed")
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

func parsePriority(s string) (Priority, error) {
	switch s {
	case "", "normal":
		return PriorityNormal, nil
	case "urgent":
		return PriorityUrgent, nil
	}
	return 0, ErrInvalidPriority
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, ErrEntryNotFound),
		errors.Is(err, doctors.ErrDoctorNotFound),
		errors.Is(err, appointments.ErrAppointmentNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrDuplicateEntry),
		errors.Is(err, ErrDoctorAlreadyServing):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrQueueEmpty),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrWalkInsNotAllowed),
		errors.Is(err, ErrAppointmentNotToday),
		errors.Is(err, ErrAppointmentNotCheckable),
		errors.Is(err, ErrInvalidPriority):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.logger.Error(msg, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
