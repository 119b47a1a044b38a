package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockRepo struct {
	mu     sync.Mutex
	orders map[string]*Order
	getErr error
}

func newMockRepo(orders ...*Order) *mockRepo {
	m := &mockRepo{orders: make(map[string]*Order)}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *mockRepo) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockRepo) Get(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockRepo) Resolve(_ context.Context, id string, to Status, at time.Time) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Status != StatusPending {
		return nil, ErrInvalidState
	}
	o.Status = to
	o.ResolvedAt = &at
	cp := *o
	return &cp, nil
}

func (m *mockRepo) ListByPlayer(context.Context, string, int) ([]Order, error) { return nil, nil }

func (m *mockRepo) ListPending(context.Context, string, time.Time) ([]Order, error) {
	return nil, nil
}

// --- Helpers ---

var epoch = time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

func pendingOrder(id string) *Order {
	return &Order{
		ID:         id,
		PlayerID:   "player-1",
		RecipeID:   "carbonara",
		RecipeName: "Pâtes Carbonara",
		Status:     StatusPending,
		CreatedAt:  epoch,
		ExpiresAt:  epoch.Add(time.Minute),
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// --- Tests ---

func TestCheckServable_Pending(t *testing.T) {
	lc := NewLifecycle(newMockRepo(pendingOrder("o1"))).WithClock(fixedClock(epoch.Add(30 * time.Second)))

	o, err := lc.CheckServable(context.Background(), "player-1", "o1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
}

func TestCheckServable_DeadlineIsInclusive(t *testing.T) {
	lc := NewLifecycle(newMockRepo(pendingOrder("o1"))).WithClock(fixedClock(epoch.Add(time.Minute)))

	_, err := lc.CheckServable(context.Background(), "player-1", "o1")
	require.NoError(t, err)
}

func TestCheckServable_NotFound(t *testing.T) {
	lc := NewLifecycle(newMockRepo())

	_, err := lc.CheckServable(context.Background(), "player-1", "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCheckServable_ForeignPlayer(t *testing.T) {
	lc := NewLifecycle(newMockRepo(pendingOrder("o1"))).WithClock(fixedClock(epoch))

	_, err := lc.CheckServable(context.Background(), "intruder", "o1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCheckServable_AlreadyResolved(t *testing.T) {
	o := pendingOrder("o1")
	o.Status = StatusServed
	lc := NewLifecycle(newMockRepo(o)).WithClock(fixedClock(epoch))

	_, err := lc.CheckServable(context.Background(), "player-1", "o1")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCheckServable_PastDeadlineExpiresOrder(t *testing.T) {
	repo := newMockRepo(pendingOrder("o1"))
	lc := NewLifecycle(repo).WithClock(fixedClock(epoch.Add(61 * time.Second)))

	_, err := lc.CheckServable(context.Background(), "player-1", "o1")
	require.ErrorIs(t, err, ErrExpired)

	var expErr *ExpiredError
	require.ErrorAs(t, err, &expErr)
	assert.True(t, expErr.Resolved)
	assert.Equal(t, StatusExpired, expErr.Order.Status)

	stored, err := repo.Get(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, stored.Status)
	require.NotNil(t, stored.ResolvedAt)
}

func TestCheckServable_RepositoryError(t *testing.T) {
	repo := newMockRepo()
	repo.getErr = errors.New("connection reset")
	lc := NewLifecycle(repo)

	_, err := lc.CheckServable(context.Background(), "player-1", "o1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestMarkServed_OnlyOnce(t *testing.T) {
	lc := NewLifecycle(newMockRepo(pendingOrder("o1"))).WithClock(fixedClock(epoch))

	o, err := lc.MarkServed(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, StatusServed, o.Status)

	_, err = lc.MarkServed(context.Background(), "o1")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestMarkExpired_NoOpOnServed(t *testing.T) {
	lc := NewLifecycle(newMockRepo(pendingOrder("o1"))).WithClock(fixedClock(epoch))

	_, err := lc.MarkServed(context.Background(), "o1")
	require.NoError(t, err)

	o, resolved, err := lc.MarkExpired(context.Background(), "o1")
	require.NoError(t, err)
	assert.False(t, resolved)
	assert.Equal(t, StatusServed, o.Status)
}

func TestLifecycle_ConcurrentResolutionWinsOnce(t *testing.T) {
	lc := NewLifecycle(newMockRepo(pendingOrder("o1"))).WithClock(fixedClock(epoch))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var won bool
			if i%2 == 0 {
				_, err := lc.MarkServed(context.Background(), "o1")
				won = err == nil
			} else {
				_, resolved, err := lc.MarkExpired(context.Background(), "o1")
				won = err == nil && resolved
			}
			if won {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}
