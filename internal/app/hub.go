package app

import (
	"sync"

	"triviacast-service/internal/domain"
)

// Hub fans leaderboard snapshots out to subscribers without blocking publishers.
type Hub struct {
	mu          sync.Mutex
	last        *domain.Leaderboard
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan domain.Leaderboard]struct{})}
}

// Subscribe registers a channel that first receives the latest snapshot, if any.
func (h *Hub) Subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	if h.last != nil {
		ch <- *h.last
	}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers lb to every subscriber. A full subscriber loses its oldest
// pending snapshot.
func (h *Hub) Publish(lb domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &lb
	for ch := range h.subscribers {
		select {
		case ch <- lb:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}

// Len reports the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
