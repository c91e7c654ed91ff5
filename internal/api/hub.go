package api

import (
	"sync"

	"github.com/google/uuid"

	"github.com/talgya/mini-city/internal/engine"
)

const (
	subscriberBuffer = 256
	recentEvents     = 200
)

// Hub fans drained simulation events out to stream subscribers and keeps
// a short history for catch-up.
type Hub struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]chan engine.Event
	recent []engine.Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID]chan engine.Event)}
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() (uuid.UUID, <-chan engine.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.New()
	ch := make(chan engine.Event, subscriberBuffer)
	h.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish records events and delivers them to every subscriber. Slow
// subscribers miss events rather than block the clock.
func (h *Hub) Publish(events []engine.Event) {
	if len(events) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.recent = append(h.recent, events...)
	if over := len(h.recent) - recentEvents; over > 0 {
		h.recent = append(h.recent[:0], h.recent[over:]...)
	}

	for _, ch := range h.subs {
		for _, e := range events {
			select {
			case ch <- e:
			default:
			}
		}
	}
}

// Recent returns up to limit of the latest events, oldest first.
func (h *Hub) Recent(limit int) []engine.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	start := max(len(h.recent)-limit, 0)
	out := make([]engine.Event, len(h.recent)-start)
	copy(out, h.recent[start:])
	return out
}
