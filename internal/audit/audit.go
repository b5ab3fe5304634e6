// Package audit records structured events for every queue and status
// mutation. Storage and downstream delivery belong to an external
// collaborator; a failed audit write is logged and never rolls back the
// operation that produced it.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one recorded mutation.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Action     string         `json:"action"`
	ActorID    string         `json:"actor_id"`
	ResourceID string         `json:"resource_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, e Event) error
}

// NewEvent fills in the generated fields.
func NewEvent(action, actorID, resourceID string, metadata map[string]any) Event {
	return Event{
		ID:         uuid.New(),
		Action:     action,
		ActorID:    actorID,
		ResourceID: resourceID,
		Metadata:   metadata,
		CreatedAt:  time.Now().UTC(),
	}
}
