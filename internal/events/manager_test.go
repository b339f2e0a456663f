package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qumatch/pkg/logger"
)

func newTestManager() *Manager {
	return NewManager(logger.New(logger.Config{Level: "error"}))
}

func TestEmitReachesSubscriber(t *testing.T) {
	m := newTestManager()
	defer m.Close()

	ch, cancel := m.Subscribe(4)
	defer cancel()

	m.EmitTyped("runs", &RunQueuedData{RunID: "r1", Mode: "SFSC", Qubits: 14, Depth: 40})

	select {
	case ev := <-ch:
		assert.Equal(t, RunQueued, ev.Type)
		assert.Equal(t, "runs", ev.Module)
		assert.NotEmpty(t, ev.ID)
		data, ok := ev.Data.(*RunQueuedData)
		require.True(t, ok)
		assert.Equal(t, "r1", data.RunID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestEmitDoesNotBlockOnSlowSubscriber(t *testing.T) {
	m := newTestManager()
	defer m.Close()

	_, cancel := m.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			m.EmitTyped("runs", &RunFailedData{RunID: "r1", Reason: "backend unavailable"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	m := newTestManager()
	defer m.Close()

	ch, cancel := m.Subscribe(4)
	cancel()

	// Channel is closed after cancel.
	_, open := <-ch
	assert.False(t, open)

	// Emitting after cancel must not panic.
	m.EmitTyped("runs", &RunCompletedData{RunID: "r1", TopOutcome: "3", TopProbability: 0.97})
}

func TestEventTypesRoundTrip(t *testing.T) {
	payloads := []EventData{
		&RunQueuedData{},
		&RunSubmittedData{},
		&RunCompletedData{},
		&RunFailedData{},
		&BackendHealthChangedData{},
	}
	want := []EventType{RunQueued, RunSubmitted, RunCompleted, RunFailed, BackendHealthChanged}
	for i, p := range payloads {
		assert.Equal(t, want[i], p.EventType())
	}
}
