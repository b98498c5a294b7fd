package realtime

import (
	"log"
	"sync"
)

// Event types mirrored from the relational change feed.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Event is one row-level change notification. New is nil for deletes,
// Old is nil for inserts.
type Event struct {
	EventType string                 `json:"eventType"`
	Schema    string                 `json:"schema"`
	Table     string                 `json:"table"`
	New       map[string]interface{} `json:"new"`
	Old       map[string]interface{} `json:"old"`
}

// NewEvent builds a change event for the public schema.
func NewEvent(eventType, table string, newRow, oldRow map[string]interface{}) Event {
	return Event{
		EventType: eventType,
		Schema:    "public",
		Table:     table,
		New:       newRow,
		Old:       oldRow,
	}
}

// Hub fans committed change events out to any number of subscribers.
// Delivery is fire-and-forget: a subscriber that cannot keep up has
// events dropped rather than blocking the writer.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber and returns its channel plus a
// cancel function. The channel is closed on cancel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 32)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber without blocking.
// Publication happens only after the underlying transaction commits, so
// subscribers observe a user's own writes in commit order as long as
// they keep draining.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
			log.Printf("WARN: [Realtime] Subscriber backlog full, dropping %s event for table %s.", event.EventType, event.Table)
		}
	}
}
