package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xenking/kitchen-rush/internal/domain/order"
)

var _ order.Repository = (*OrderStore)(nil)

// OrderStore keeps orders in memory.
type OrderStore struct {
	mu     sync.Mutex
	orders map[string]*order.Order
}

// NewOrderStore returns an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]*order.Order)}
}

// Create stores a copy of o.
func (s *OrderStore) Create(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

// Get returns a copy of the order.
func (s *OrderStore) Get(_ context.Context, id string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

// Resolve is the compare-and-set from pending to a terminal status.
func (s *OrderStore) Resolve(_ context.Context, id string, to order.Status, at time.Time) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if o.Status != order.StatusPending {
		return nil, order.ErrInvalidState
	}
	o.Status = to
	o.ResolvedAt = &at
	cp := *o
	return &cp, nil
}

// ListByPlayer returns the player's orders, newest first.
func (s *OrderStore) ListByPlayer(_ context.Context, playerID string, limit int) ([]order.Order, error) {
	return s.filter(playerID, limit, func(*order.Order) bool { return true }), nil
}

// ListPending returns the player's pending orders that have not passed their deadline.
func (s *OrderStore) ListPending(_ context.Context, playerID string, now time.Time) ([]order.Order, error) {
	return s.filter(playerID, 0, func(o *order.Order) bool {
		return o.Status == order.StatusPending && o.ExpiresAt.After(now)
	}), nil
}

func (s *OrderStore) filter(playerID string, limit int, keep func(*order.Order) bool) []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]order.Order, 0)
	for _, o := range s.orders {
		if o.PlayerID == playerID && keep(o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
