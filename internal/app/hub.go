package app

import (
	"sync"

	"github.com/ayusman/kinesmooth/internal/store"
)

// subscriberBuffer bounds how far a slow subscriber may lag before runs are
// dropped for it.
const subscriberBuffer = 16

// Hub fans completed runs out to subscribers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan *store.Run]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan *store.Run]struct{})}
}

// Subscribe registers a new subscriber. The returned function removes it and
// closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan *store.Run, func()) {
	ch := make(chan *store.Run, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers run to every subscriber without blocking. Subscribers
// whose buffer is full miss the run.
func (h *Hub) Publish(run *store.Run) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers {
		select {
		case ch <- run:
		default:
		}
	}
}

// Len returns the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
