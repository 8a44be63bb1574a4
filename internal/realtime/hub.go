// Package realtime fans committed date changes out to live subscribers,
// one couple at a time.
package realtime

import (
	"context"
	"sync"

	"ourdates/internal/dates"
	"ourdates/internal/logging"
)

const subscriberBuffer = 64

// Hub routes changes to subscribers of the same couple. Safe for
// concurrent use.
type Hub struct {
	log logging.Logger

	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

func NewHub(log logging.Logger) *Hub {
	return &Hub{log: log, subs: map[string]map[*Subscription]struct{}{}}
}

// Subscription receives changes for one couple until closed, until its
// context ends, or until it falls behind.
type Subscription struct {
	hub      *Hub
	coupleID string
	ch       chan dates.Change
	once     sync.Once
	stop     chan struct{}
}

func (s *Subscription) Events() <-chan dates.Change { return s.ch }

func (s *Subscription) Close() error {
	s.hub.remove(s)
	return nil
}

// Subscribe registers a subscriber for coupleID.
func (h *Hub) Subscribe(ctx context.Context, coupleID string) (*Subscription, error) {
	s := &Subscription{
		hub:      h,
		coupleID: coupleID,
		ch:       make(chan dates.Change, subscriberBuffer),
		stop:     make(chan struct{}),
	}

	h.mu.Lock()
	set, ok := h.subs[coupleID]
	if !ok {
		set = map[*Subscription]struct{}{}
		h.subs[coupleID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			h.remove(s)
		case <-s.stop:
		}
	}()

	return s, nil
}

// Publish delivers c to every subscriber of coupleID without blocking.
// A subscriber with a full buffer is dropped so it can resync.
func (h *Hub) Publish(ctx context.Context, coupleID string, c dates.Change) {
	h.mu.Lock()
	var slow []*Subscription
	for s := range h.subs[coupleID] {
		select {
		case s.ch <- c:
		default:
			slow = append(slow, s)
		}
	}
	for _, s := range slow {
		h.removeLocked(s)
	}
	h.mu.Unlock()

	for range slow {
		h.log.Warn(ctx, "dropped slow subscriber", "couple_id", coupleID)
	}
}

// Reset closes every subscription. Used when the upstream source may have
// missed changes; subscribers observe the close and refresh.
func (h *Hub) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.subs {
		for s := range set {
			h.removeLocked(s)
		}
	}
}

// Count returns the number of live subscriptions for coupleID.
func (h *Hub) Count(coupleID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[coupleID])
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s)
}

func (h *Hub) removeLocked(s *Subscription) {
	s.once.Do(func() {
		if set, ok := h.subs[s.coupleID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(h.subs, s.coupleID)
			}
		}
		close(s.stop)
		close(s.ch)
	})
}
