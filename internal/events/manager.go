package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Manager fans events out to subscribers. Publishing never blocks: a
// subscriber that cannot keep up has events dropped, with a warning, rather
// than stalling the pipeline.
type Manager struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	log         zerolog.Logger
	closed      bool
}

// NewManager creates an event manager
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		subscribers: make(map[string]chan Event),
		log:         log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a new subscriber and returns its channel plus a cancel
// function. The buffer absorbs bursts; size it for the consumer's latency.
func (m *Manager) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	id := uuid.New().String()
	ch := make(chan Event, buffer)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	m.subscribers[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(sub)
		}
	}
}

// EmitTyped publishes an event with a typed payload
func (m *Manager) EmitTyped(module string, data EventData) {
	event := Event{
		ID:        uuid.New().String(),
		Type:      data.EventType(),
		Module:    module,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	for id, ch := range m.subscribers {
		select {
		case ch <- event:
		default:
			m.log.Warn().
				Str("subscriber", id).
				Str("event_type", string(event.Type)).
				Msg("Subscriber buffer full, event dropped")
		}
	}
}

// Close shuts the bus down and closes all subscriber channels
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for id, ch := range m.subscribers {
		delete(m.subscribers, id)
		close(ch)
	}
}
