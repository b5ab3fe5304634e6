package doctorstatus

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medloop/clinic-ops/pkg/logging"
)

type stubServing struct{ serving bool }

func (s *stubServing) IsServing(context.Context, uuid.UUID) (bool, error) {
	return s.serving, nil
}

func newManager(t *testing.T, serving *stubServing) *Manager {
	t.Helper()
	store := NewInMemoryStore()
	return NewManager(store, serving, logging.Default())
}

func TestSetStateExplicitTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		to      State
		wantErr error
	}{
		{"available to break", StateAvailable, StateBreak, nil},
		{"available to off duty", StateAvailable, StateOffDuty, nil},
		{"break back to available", StateBreak, StateAvailable, nil},
		{"break to off duty", StateBreak, StateOffDuty, nil},
		{"off duty to available", StateOffDuty, StateAvailable, nil},
		{"off duty to break rejected", StateOffDuty, StateBreak, ErrInvalidStateChange},
		{"busy cannot be set by hand", StateAvailable, StateBusy, ErrInvalidStateChange},
		{"same state is a no-op", StateAvailable, StateAvailable, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager(t, &stubServing{})
			doctorID := uuid.New()

			// Walk to the starting state through valid steps.
			if tt.from == StateBreak {
				_, err := m.SetState(context.Background(), doctorID, StateBreak)
				require.NoError(t, err)
			}
			if tt.from == StateOffDuty {
				_, err := m.SetState(context.Background(), doctorID, StateOffDuty)
				require.NoError(t, err)
			}

			st, err := m.SetState(context.Background(), doctorID, tt.to)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, st.State)
			assert.Equal(t, tt.to == StateAvailable, st.IsAvailable)
		})
	}
}

func TestSetStateRejectedWhileServing(t *testing.T) {
	serving := &stubServing{serving: true}
	m := newManager(t, serving)

	_, err := m.SetState(context.Background(), uuid.New(), StateBreak)
	assert.ErrorIs(t, err, ErrStatusChangeWhileServing)
}

func TestSetStateRejectsUnknownState(t *testing.T) {
	m := newManager(t, &stubServing{})

	_, err := m.SetState(context.Background(), uuid.New(), State("NAPPING"))
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSubscribersSeeCommittedChanges(t *testing.T) {
	m := newManager(t, &stubServing{})
	doctorID := uuid.New()

	var seen []State
	m.Subscribe(func(st Status) { seen = append(seen, st.State) })

	_, err := m.SetState(context.Background(), doctorID, StateBreak)
	require.NoError(t, err)
	_, err = m.SetState(context.Background(), doctorID, StateAvailable)
	require.NoError(t, err)

	assert.Equal(t, []State{StateBreak, StateAvailable}, seen)
}

func TestSubscribersNotCalledOnRejectedChange(t *testing.T) {
	serving := &stubServing{serving: true}
	m := newManager(t, serving)

	called := false
	m.Subscribe(func(Status) { called = true })

	_, err := m.SetState(context.Background(), uuid.New(), StateBreak)
	require.Error(t, err)
	assert.False(t, called)
}

func TestDailyCountersRollOverAtMutation(t *testing.T) {
	day1 := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	st := NewStatus(uuid.New(), day1)
	st.RecordServed(day1, 600)
	st.RecordNoShow(day1)
	require.Equal(t, 1, st.TodayServed)
	require.Equal(t, 1, st.TodayNoShows)
	require.Equal(t, 1, st.TotalServed)

	// First mutation on the next day resets the daily tallies only.
	st.RecordServed(day2, 1200)
	assert.Equal(t, 1, st.TodayServed)
	assert.Equal(t, 0, st.TodayNoShows)
	assert.Equal(t, 2, st.TotalServed)
	assert.Equal(t, 900, st.AverageConsultationSeconds)
}

func TestGetCreatesDefaultStatus(t *testing.T) {
	store := NewInMemoryStore()
	st, err := store.Get(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, StateAvailable, st.State)
	assert.True(t, st.IsAvailable)
	assert.False(t, st.Serving())
	assert.Zero(t, st.TodayServed)
}
