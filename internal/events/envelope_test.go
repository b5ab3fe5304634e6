package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelopeWrapsPayload(t *testing.T) {
	doctorID := uuid.New()
	ts := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	env, err := NewEnvelope(doctorID.String(), QueueUpdatedV1{DoctorID: doctorID}, WithTimestamp(ts))
	require.NoError(t, err)

	assert.Equal(t, "queue.updated.v1", env.EventType)
	assert.Equal(t, doctorID.String(), env.Aggregate)
	assert.Equal(t, ts.UnixMicro(), env.TimestampMicros)
	assert.NotEqual(t, uuid.Nil, env.EventID)

	var payload QueueUpdatedV1
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, doctorID, payload.DoctorID)
}

func TestNewEnvelopeValidation(t *testing.T) {
	_, err := NewEnvelope("", QueueUpdatedV1{})
	assert.Error(t, err)

	_, err = NewEnvelope("doctor-1", nil)
	assert.Error(t, err)
}

func TestWithEventIDOverride(t *testing.T) {
	id := uuid.New()
	env, err := NewEnvelope("doctor-1", QueueUpdatedV1{}, WithEventID(id))
	require.NoError(t, err)
	assert.Equal(t, id, env.EventID)
}
