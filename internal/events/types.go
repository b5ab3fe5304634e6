// Package events defines the versioned payloads pushed to realtime
// consumers and the broadcaster that fans them out over websocket
// connections and redis pub/sub.
package events

import "github.com/google/uuid"

// CanonicalEvent is a versioned domain event. Breaking payload changes get a
// V2 type with a new EventType string.
type CanonicalEvent interface {
	EventType() string
}

// QueueUpdatedV1 signals that a doctor's queue changed in some way. It
// deliberately carries no entry data: clients refetch the queue board, so a
// dropped notification can never leave a display holding stale detail.
type QueueUpdatedV1 struct {
	DoctorID uuid.UUID `json:"doctor_id"`
}

func (QueueUpdatedV1) EventType() string { return "queue.updated.v1" }

// DoctorStatusChangedV1 mirrors a committed doctor status change.
type DoctorStatusChangedV1 struct {
	DoctorID    uuid.UUID `json:"doctor_id"`
	State       string    `json:"state"`
	IsAvailable bool      `json:"is_available"`
}

func (DoctorStatusChangedV1) EventType() string { return "doctor_status.changed.v1" }
