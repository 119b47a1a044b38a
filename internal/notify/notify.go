package notify

import (
	"context"
)

// Notifier delivers an event to a player. Delivery is best effort: a player
// without a connection simply misses the event.
type Notifier interface {
	Notify(ctx context.Context, playerID string, ev Event)
}

// Fanout delivers every event to each of its notifiers in order.
type Fanout []Notifier

// Notify implements Notifier.
func (f Fanout) Notify(ctx context.Context, playerID string, ev Event) {
	for _, n := range f {
		n.Notify(ctx, playerID, ev)
	}
}

// Nop discards every event.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, string, Event) {}
