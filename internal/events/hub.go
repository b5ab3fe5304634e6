package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/medloop/clinic-ops/pkg/logging"
)

const writeTimeout = 5 * time.Second

// Hub tracks websocket subscribers per doctor and pushes event frames to
// them. Slow or dead connections are dropped rather than back-pressuring the
// send path.
type Hub struct {
	mu       sync.RWMutex
	conns    map[uuid.UUID]map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		conns: make(map[uuid.UUID]map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser origin policy is enforced by the CORS layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeQueueSocket handles GET /doctors/{doctorID}/queue/ws: upgrades the
// connection and subscribes it to that doctor's events until it closes.
func (h *Hub) ServeQueueSocket(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		http.Error(w, "invalid doctor id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err, "doctor_id", doctorID)
		return
	}

	h.add(doctorID, conn)
	h.logger.Debug("websocket subscriber connected", "doctor_id", doctorID)

	// Drain reads until the peer goes away; subscribers never send frames
	// we care about.
	go func() {
		defer h.remove(doctorID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Send pushes one frame to every subscriber of the doctor.
func (h *Hub) Send(doctorID uuid.UUID, message []byte) {
	h.mu.RLock()
	subs := make([]*websocket.Conn, 0, len(h.conns[doctorID]))
	for c := range h.conns[doctorID] {
		subs = append(subs, c)
	}
	h.mu.RUnlock()

	for _, c := range subs {
		c.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
			h.remove(doctorID, c)
		}
	}
}

// Subscribers returns the current subscriber count for a doctor.
func (h *Hub) Subscribers(doctorID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[doctorID])
}

func (h *Hub) add(doctorID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[doctorID] == nil {
		h.conns[doctorID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[doctorID][conn] = struct{}{}
}

func (h *Hub) remove(doctorID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	if subs, ok := h.conns[doctorID]; ok {
		delete(subs, conn)
		if len(subs) == 0 {
			delete(h.conns, doctorID)
		}
	}
	h.mu.Unlock()
	conn.Close()
}
