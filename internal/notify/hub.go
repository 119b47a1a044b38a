package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// DefaultBuffer is the per-subscription event queue size.
const DefaultBuffer = 64

// Subscription is a player's live delivery channel.
type Subscription struct {
	PlayerID string

	events chan Event
	done   chan struct{}
	once   sync.Once
}

// Events returns the queued events.
func (s *Subscription) Events() <-chan Event { return s.events }

// Done is closed when the subscription is replaced or disconnected.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) close() {
	s.once.Do(func() { close(s.done) })
}

// Hub routes events to at most one subscription per player.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]*Subscription
	buffer int
	lg     *zap.Logger
}

// NewHub creates a Hub whose subscriptions queue up to buffer events.
func NewHub(buffer int, lg *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[string]*Subscription),
		buffer: buffer,
		lg:     lg,
	}
}

// Connect registers a new subscription for the player. A previous
// subscription is closed and replaced.
func (h *Hub) Connect(playerID string) *Subscription {
	sub := &Subscription{
		PlayerID: playerID,
		events:   make(chan Event, h.buffer),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.subs[playerID]; ok {
		old.close()
		h.lg.Debug("Subscription replaced", zap.String("player_id", playerID))
	}
	h.subs[playerID] = sub
	return sub
}

// Disconnect closes sub and reports whether it was the player's current
// subscription. Only then should the player's session end.
func (h *Hub) Disconnect(sub *Subscription) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub.close()
	if h.subs[sub.PlayerID] != sub {
		return false
	}
	delete(h.subs, sub.PlayerID)
	return true
}

// Close ends every subscription. Later Disconnect calls report false.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		sub.close()
		delete(h.subs, id)
	}
}

// Connected reports whether the player has a live subscription.
func (h *Hub) Connected(playerID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.subs[playerID]
	return ok
}

// Notify queues ev for the player. Events for absent players and events that
// do not fit in the queue are dropped.
func (h *Hub) Notify(_ context.Context, playerID string, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[playerID]
	if !ok {
		return
	}
	select {
	case sub.events <- ev:
	default:
		h.lg.Warn("Event dropped, subscriber queue full",
			zap.String("player_id", playerID),
			zap.String("event", string(ev.Type())),
		)
	}
}
