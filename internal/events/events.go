// Package events provides in-process change notification for artifacts.
//
// The TUI and the auto-saver mutate artifacts independently; the hub lets
// any view subscribe to "artifact changed" signals without coupling to the
// mutator. Delivery is best-effort: a subscriber that is not draining its
// channel misses signals instead of blocking the publisher.
package events

import (
	"log/slog"
	"sync"
)

// Change describes one artifact mutation.
type Change struct {
	ArtifactID string
	// Kind is a short verb: "saved", "promoted", "data", "status".
	Kind string
}

// Hub fans Change signals out to subscribers. The zero value is not usable;
// call NewHub.
type Hub struct {
	logger *slog.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]chan Change
	closed bool
}

// NewHub returns an empty hub. logger may be nil.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		logger: logger,
		subs:   make(map[int]chan Change),
	}
}

// Subscribe registers a new subscriber and returns its channel plus a
// cancel function. The channel is buffered; it is closed by cancel or by
// Close, never by the publisher.
func (h *Hub) Subscribe() (<-chan Change, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Change, 16)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Notify publishes a change to every current subscriber without blocking.
func (h *Hub) Notify(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		select {
		case ch <- c:
		default:
			h.logger.Debug("dropping change signal for slow subscriber",
				"subscriber", id, "artifact_id", c.ArtifactID, "kind", c.Kind)
		}
	}
}

// Close removes and closes every subscriber channel. Further Notify calls
// are no-ops and further Subscribe calls return a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
