package events

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/medloop/clinic-ops/internal/doctorstatus"
	"github.com/medloop/clinic-ops/pkg/logging"
)

// ChannelPrefix namespaces the per-doctor redis pub/sub channels.
const ChannelPrefix = "queue.updates."

// Broadcaster fans committed queue and status changes out to realtime
// consumers. With redis configured, events round-trip through pub/sub so
// every instance's hub delivers them; without it they go straight to the
// local hub. All paths are fire-and-forget.
type Broadcaster struct {
	hub    *Hub
	rdb    *redis.Client
	logger *logging.Logger
}

// NewBroadcaster creates a broadcaster. rdb may be nil for single-instance
// deployments.
func NewBroadcaster(hub *Hub, rdb *redis.Client, logger *logging.Logger) *Broadcaster {
	if hub == nil {
		panic("events: hub required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Broadcaster{hub: hub, rdb: rdb, logger: logger}
}

// QueueChanged implements the queue notifier hook.
func (b *Broadcaster) QueueChanged(doctorID uuid.UUID) {
	b.publish(doctorID, QueueUpdatedV1{DoctorID: doctorID})
}

// StatusChanged is wired to the status manager's subscription hook.
func (b *Broadcaster) StatusChanged(st doctorstatus.Status) {
	b.publish(st.DoctorID, DoctorStatusChangedV1{
		DoctorID:    st.DoctorID,
		State:       string(st.State),
		IsAvailable: st.IsAvailable,
	})
}

func (b *Broadcaster) publish(doctorID uuid.UUID, evt CanonicalEvent) {
	env, err := NewEnvelope(doctorID.String(), evt)
	if err != nil {
		b.logger.Error("build event envelope failed", "error", err, "doctor_id", doctorID)
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		b.logger.Error("marshal event envelope failed", "error", err, "doctor_id", doctorID)
		return
	}

	if b.rdb == nil {
		b.hub.Send(doctorID, data)
		return
	}
	if err := b.rdb.Publish(context.Background(), ChannelPrefix+doctorID.String(), data).Err(); err != nil {
		b.logger.Error("redis publish failed", "error", err, "doctor_id", doctorID)
		// Degrade to local delivery so this instance's screens still move.
		b.hub.Send(doctorID, data)
	}
}

// Run subscribes to the queue update channels and forwards frames to the
// local hub. Blocks until ctx is cancelled. No-op without redis.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.rdb == nil {
		<-ctx.Done()
		return nil
	}

	sub := b.rdb.PSubscribe(ctx, ChannelPrefix+"*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			doctorID, err := uuid.Parse(strings.TrimPrefix(msg.Channel, ChannelPrefix))
			if err != nil {
				b.logger.Error("unparseable event channel", "channel", msg.Channel)
				continue
			}
			b.hub.Send(doctorID, []byte(msg.Payload))
		}
	}
}
