package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Lifecycle guards every status change of an order. Both resolution paths
// (serve and expire) go through the repository compare-and-set, so the first
// one to transition wins and the other observes a terminal order.
type Lifecycle struct {
	repo Repository
	now  func() time.Time
}

// NewLifecycle creates a Lifecycle backed by the given Repository.
func NewLifecycle(repo Repository) *Lifecycle {
	return &Lifecycle{repo: repo, now: time.Now}
}

// WithClock returns a copy of the Lifecycle that reads time from now.
func (l *Lifecycle) WithClock(now func() time.Time) *Lifecycle {
	return &Lifecycle{repo: l.repo, now: now}
}

// CheckServable loads the order and verifies it may be served right now by
// playerID. A passed deadline is resolved on the spot: the order moves to
// expired and an *ExpiredError is returned.
func (l *Lifecycle) CheckServable(ctx context.Context, playerID, orderID string) (*Order, error) {
	o, err := l.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PlayerID != playerID {
		return nil, ErrNotFound
	}
	if o.Status != StatusPending {
		return nil, ErrInvalidState
	}

	now := l.now()
	if !now.After(o.ExpiresAt) {
		return o, nil
	}

	expired, resolved, err := l.MarkExpired(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if expired == nil {
		expired = o
	}
	return nil, &ExpiredError{Order: expired, Resolved: resolved}
}

// MarkServed transitions a pending order to served.
func (l *Lifecycle) MarkServed(ctx context.Context, orderID string) (*Order, error) {
	o, err := l.repo.Resolve(ctx, orderID, StatusServed, l.now())
	if err != nil {
		return nil, errors.Wrap(err, "mark served")
	}
	return o, nil
}

// MarkExpired transitions a pending order to expired. An order that is
// already terminal is left alone and reported with resolved=false; this is
// not an error so that a late timer racing a serve is harmless.
func (l *Lifecycle) MarkExpired(ctx context.Context, orderID string) (o *Order, resolved bool, err error) {
	o, err = l.repo.Resolve(ctx, orderID, StatusExpired, l.now())
	switch {
	case err == nil:
		return o, true, nil
	case errors.Is(err, ErrInvalidState):
		current, getErr := l.repo.Get(ctx, orderID)
		if getErr != nil {
			return nil, false, errors.Wrap(getErr, "reload order")
		}
		return current, false, nil
	default:
		return nil, false, errors.Wrap(err, "mark expired")
	}
}
