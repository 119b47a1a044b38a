package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestEncodeGolden(t *testing.T) {
	expires := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)

	tests := []struct {
		name string
		ev   Event
	}{
		{
			name: "new_order",
			ev: NewOrder{
				OrderID:    "order-1",
				RecipeID:   "carbonara",
				RecipeName: "Pâtes Carbonara",
				Ingredients: []Ingredient{
					{ID: "pates", Name: "Pâtes", Quantity: 1},
					{ID: "oeuf", Name: "Œuf", Quantity: 2},
				},
				ExpiresAt: expires,
				Duration:  time.Minute,
			},
		},
		{
			name: "order_served",
			ev: OrderServed{
				OrderID:      "order-1",
				RecipeName:   "Pâtes Carbonara",
				Satisfaction: 21,
				Money:        decimal.NewFromInt(1040),
			},
		},
		{
			name: "order_expired",
			ev: OrderExpired{
				OrderID:      "order-2",
				RecipeName:   "Omelette",
				Satisfaction: 10,
				Money:        decimal.RequireFromString("950.50"),
				Penalty:      decimal.NewFromInt(50),
			},
		},
		{
			name: "game_over",
			ev:   GameOver{Reason: "bankruptcy", Message: "Game over! Your restaurant went bankrupt."},
		},
		{
			name: "recipe_discovered",
			ev:   RecipeDiscovered{RecipeID: "omelette", RecipeName: "Omelette"},
		},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := Encode(tt.ev)
			require.True(t, jx.Valid(data), "invalid json: %s", data)
			g.Assert(t, tt.name, data)
		})
	}
}

func TestHubReplacesSubscription(t *testing.T) {
	ctx := context.Background()
	h := NewHub(4, zaptest.NewLogger(t))

	first := h.Connect("p1")
	second := h.Connect("p1")

	select {
	case <-first.Done():
	default:
		t.Fatal("replaced subscription must be closed")
	}

	h.Notify(ctx, "p1", GameOver{Reason: "satisfaction"})
	select {
	case ev := <-second.Events():
		assert.Equal(t, TypeGameOver, ev.Type())
	default:
		t.Fatal("current subscription did not receive the event")
	}
	assert.Empty(t, first.Events())

	assert.False(t, h.Disconnect(first), "stale subscription is not current")
	assert.True(t, h.Connected("p1"))
	assert.True(t, h.Disconnect(second))
	assert.False(t, h.Connected("p1"))
	assert.False(t, h.Disconnect(second))
}

func TestHubDropsWhenFullOrAbsent(t *testing.T) {
	ctx := context.Background()
	h := NewHub(2, zaptest.NewLogger(t))

	h.Notify(ctx, "nobody", GameOver{})

	sub := h.Connect("p1")
	for range 5 {
		h.Notify(ctx, "p1", RecipeDiscovered{RecipeID: "omelette"})
	}
	assert.Len(t, sub.Events(), 2)
}

func TestHubClose(t *testing.T) {
	h := NewHub(1, zaptest.NewLogger(t))
	a := h.Connect("p1")
	b := h.Connect("p2")

	h.Close()
	for _, sub := range []*Subscription{a, b} {
		select {
		case <-sub.Done():
		default:
			t.Fatalf("subscription of %s still open", sub.PlayerID)
		}
	}
	assert.False(t, h.Connected("p1"))
	assert.False(t, h.Disconnect(a))
}

func TestFanout(t *testing.T) {
	ctx := context.Background()
	a, b := &recorder{}, &recorder{}

	Fanout{a, b, Nop{}}.Notify(ctx, "p1", RecipeDiscovered{RecipeID: "omelette"})
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestAMQPMirror(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	m := newAMQPMirror(pub, DefaultExchange, zaptest.NewLogger(t))
	m.now = func() time.Time { return time.Unix(100, 0) }

	ev := OrderServed{OrderID: "o1", RecipeName: "Omelette", Satisfaction: 21, Money: decimal.NewFromInt(1050)}
	m.Notify(ctx, "p1", ev)

	require.Len(t, pub.msgs, 1)
	msg := pub.msgs[0]
	assert.Equal(t, DefaultExchange, pub.exchanges[0])
	assert.Equal(t, "order-served", msg.Type)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, "p1", msg.Headers["player_id"])
	assert.Equal(t, Encode(ev), msg.Body)

	t.Run("publish failure is swallowed", func(t *testing.T) {
		pub.err = errors.New("channel closed")
		m.Notify(ctx, "p1", ev)
		assert.Len(t, pub.msgs, 1)
	})

	t.Run("ping without connection", func(t *testing.T) {
		assert.Error(t, m.Ping(ctx))
		assert.NoError(t, m.Close())
	})
}

// --- Mock implementations ---

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(_ context.Context, _ string, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

type fakePublisher struct {
	err       error
	exchanges []string
	msgs      []amqp.Publishing
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, _ string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.exchanges = append(f.exchanges, exchange)
	f.msgs = append(f.msgs, msg)
	return nil
}
