package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/medloop/clinic-ops/internal/availability"
	"github.com/medloop/clinic-ops/internal/doctorstatus"
	"github.com/medloop/clinic-ops/internal/events"
	httpmiddleware "github.com/medloop/clinic-ops/internal/http/middleware"
	"github.com/medloop/clinic-ops/internal/queue"
	"github.com/medloop/clinic-ops/internal/scheduling"
	"github.com/medloop/clinic-ops/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	AvailabilityHandler *availability.Handler
	SchedulingHandler   *scheduling.Handler
	QueueHandler        *queue.Handler
	StatusHandler       *doctorstatus.Handler
	Hub                 *events.Hub
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string

	// StaffJWTSecret guards the staff routes. Empty disables them rather
	// than leaving them open.
	StaffJWTSecret string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: health, metrics, and the read-only waiting room
	// surfaces that display screens poll without credentials.
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.QueueHandler != nil {
			public.Get("/doctors/{doctorID}/queue/board", cfg.QueueHandler.GetBoard)
		}
		if cfg.Hub != nil {
			public.Get("/doctors/{doctorID}/queue/ws", cfg.Hub.ServeQueueSocket)
		}
	})

	// Staff endpoints.
	r.Group(func(staff chi.Router) {
		staff.Use(httpmiddleware.StaffJWT(cfg.StaffJWTSecret))
		staff.Use(httpmiddleware.RateLimit(20, 40))

		staff.Route("/doctors/{doctorID}", func(doctor chi.Router) {
			if cfg.AvailabilityHandler != nil {
				doctor.Get("/availability", cfg.AvailabilityHandler.List)
				doctor.Put("/availability", cfg.AvailabilityHandler.Replace)
			}
			if cfg.SchedulingHandler != nil {
				doctor.Get("/slots", cfg.SchedulingHandler.ListSlots)
			}
			if cfg.StatusHandler != nil {
				doctor.Get("/status", cfg.StatusHandler.GetStatus)
				doctor.Put("/status", cfg.StatusHandler.UpdateStatus)
				doctor.Get("/stats", cfg.StatusHandler.GetStats)
			}
			if cfg.QueueHandler != nil {
				doctor.Get("/queue", cfg.QueueHandler.GetQueue)
				doctor.Post("/queue/walk-ins", cfg.QueueHandler.AddWalkIn)
				doctor.Post("/queue/call-next", cfg.QueueHandler.CallNext)
			}
		})

		if cfg.QueueHandler != nil {
			staff.Post("/queue/check-ins", cfg.QueueHandler.CheckIn)
			staff.Route("/queue/entries/{entryID}", func(entry chi.Router) {
				entry.Patch("/position", cfg.QueueHandler.UpdatePosition)
				entry.Post("/start", cfg.QueueHandler.Start)
				entry.Post("/complete", cfg.QueueHandler.Complete)
				entry.Post("/cancel", cfg.QueueHandler.Cancel)
				entry.Post("/no-show", cfg.QueueHandler.NoShow)
			})
			staff.Get("/patients/{patientID}/queue-entries", cfg.QueueHandler.PatientEntries)
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
