package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// Status is the lifecycle state of an order.
type Status string

const (
	// StatusPending is the initial state: the customer is waiting.
	StatusPending Status = "pending"
	// StatusServed is terminal: the dish was delivered before the deadline.
	StatusServed Status = "served"
	// StatusExpired is terminal: the deadline passed first.
	StatusExpired Status = "expired"
)

// Sentinel errors for order transitions.
var (
	ErrNotFound     = errors.New("order not found")
	ErrInvalidState = errors.New("order is not pending")
	ErrExpired      = errors.New("order expired")
)

// ExpiredError is returned when a serve attempt observes a passed deadline.
// Resolved is true when that observation itself moved the order to expired,
// in which case the caller owns the expiry consequences.
type ExpiredError struct {
	Order    *Order
	Resolved bool
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("order %s expired at %s", e.Order.ID, e.Order.ExpiresAt.Format(time.RFC3339))
}

// Is reports ErrExpired.
func (e *ExpiredError) Is(target error) bool {
	return target == ErrExpired
}

// Order is a single timed request for a recipe assigned to a player.
type Order struct {
	ID         string
	PlayerID   string
	RecipeID   string
	RecipeName string
	Status     Status
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ResolvedAt *time.Time
}

// IsTerminal reports whether the order can no longer change.
func (o *Order) IsTerminal() bool {
	return o.Status == StatusServed || o.Status == StatusExpired
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// Resolve atomically moves a pending order to the terminal status to.
	// It returns ErrInvalidState when the order is no longer pending.
	Resolve(ctx context.Context, id string, to Status, at time.Time) (*Order, error)
	// ListByPlayer returns the most recent orders of a player, newest first.
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]Order, error)
	// ListPending returns pending orders of a player whose deadline is after now.
	ListPending(ctx context.Context, playerID string, now time.Time) ([]Order, error)
}
