package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/kitchen-rush/internal/domain/ledger"
	"github.com/xenking/kitchen-rush/internal/domain/order"
	"github.com/xenking/kitchen-rush/internal/notify"
)

// Game-over reasons.
const (
	ReasonSatisfaction = "satisfaction"
	ReasonBankruptcy   = "bankruptcy"
)

// next is what a resolution asks the session to do afterwards.
type next struct {
	schedule bool
	delay    time.Duration
}

func after(d time.Duration) next { return next{schedule: true, delay: d} }

// JoinSession opens the player's account if needed, starts a fresh session and
// generates its first order. A session in game-over is restarted. Orders left
// pending by an earlier session get their expiry timers back.
func (e *Engine) JoinSession(ctx context.Context, playerID string) (_ *ledger.Progress, rerr error) {
	ctx, span := e.startSpan(ctx, "engine.JoinSession", playerID)
	defer func() { endSpan(span, rerr) }()

	s := e.session(playerID)
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := e.ledger.OpenAccount(ctx, playerID)
	if err != nil {
		return nil, errors.Wrap(err, "open account")
	}

	e.timers.CancelAll(playerID)
	s.active = true
	s.over = false
	s.epoch++

	if err := e.resumePending(ctx, playerID); err != nil {
		return nil, errors.Wrap(err, "resume pending orders")
	}
	if _, err := e.generate(ctx, playerID); err != nil {
		return nil, errors.Wrap(err, "generate first order")
	}

	e.lg.Info("Session started", zap.String("player_id", playerID))
	return p, nil
}

// LeaveSession ends the player's session and cancels all of their timers. A
// callback that already started completes its resolution, but nothing new is
// scheduled afterwards.
func (e *Engine) LeaveSession(ctx context.Context, playerID string) {
	_, span := e.startSpan(ctx, "engine.LeaveSession", playerID)
	defer span.End()

	s := e.session(playerID)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = false
	n := e.timers.CancelAll(playerID)
	e.lg.Info("Session ended", zap.String("player_id", playerID), zap.Int("timers_cancelled", n))
}

// Active reports whether the player has a running session that is not over.
func (e *Engine) Active(playerID string) bool {
	s := e.session(playerID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active && !s.over
}

func (e *Engine) resumePending(ctx context.Context, playerID string) error {
	all, err := e.orders.ListByPlayer(ctx, playerID, 0)
	if err != nil {
		return err
	}
	now := e.now()
	for _, o := range all {
		if o.Status != order.StatusPending {
			continue
		}
		e.scheduleExpiry(playerID, o.ID, max(0, o.ExpiresAt.Sub(now)))
	}
	return nil
}

// generate creates a pending order for a random recipe, schedules its expiry
// and announces it. The caller holds the session lock.
func (e *Engine) generate(ctx context.Context, playerID string) (*order.Order, error) {
	recipes, err := e.catalog.ListRecipes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list recipes")
	}
	if len(recipes) == 0 {
		return nil, ErrNoRecipes
	}
	recipe := recipes[e.pick(len(recipes))]

	now := e.now()
	o := &order.Order{
		ID:         uuid.New().String(),
		PlayerID:   playerID,
		RecipeID:   recipe.ID,
		RecipeName: recipe.Name,
		Status:     order.StatusPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(e.cfg.OrderDuration),
	}
	if err := e.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	e.scheduleExpiry(playerID, o.ID, e.cfg.OrderDuration)

	ingredients := make([]notify.Ingredient, len(recipe.Lines))
	for i, l := range recipe.Lines {
		ingredients[i] = notify.Ingredient{ID: l.IngredientID, Name: l.IngredientName, Quantity: l.Quantity}
	}
	e.notifier.Notify(ctx, playerID, notify.NewOrder{
		OrderID:     o.ID,
		RecipeID:    recipe.ID,
		RecipeName:  recipe.Name,
		Ingredients: ingredients,
		ExpiresAt:   o.ExpiresAt,
		Duration:    e.cfg.OrderDuration,
	})
	e.metrics.generated.Add(ctx, 1)
	e.lg.Debug("Order generated",
		zap.String("player_id", playerID),
		zap.String("order_id", o.ID),
		zap.String("recipe", recipe.ID),
	)
	return o, nil
}

func (e *Engine) scheduleExpiry(playerID, orderID string, d time.Duration) {
	e.timers.Schedule(orderKey(orderID), playerID, d, func() {
		e.onOrderTimeout(playerID, orderID)
	})
}

// onOrderTimeout is the expiry timer callback.
func (e *Engine) onOrderTimeout(playerID, orderID string) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.CallbackTimeout)
	defer cancel()
	ctx, span := e.startSpan(ctx, "engine.ExpireOrder", playerID)
	span.SetAttributes(attribute.String("order.id", orderID))
	defer span.End()

	s := e.session(playerID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.over {
		// Fired before game over cancelled it. The order stays pending and is
		// re-armed by the next join.
		return
	}

	var (
		o        *order.Order
		resolved bool
	)
	err := e.retry(ctx, func(ctx context.Context) error {
		var err error
		o, resolved, err = e.lifecycle.MarkExpired(ctx, orderID)
		return err
	})
	if err != nil {
		e.alert(ctx, "expire order", playerID, err, zap.String("order_id", orderID))
		e.apply(playerID, s, after(e.cfg.NextAfterExpire))
		return
	}
	if !resolved {
		// Served first; nothing to do.
		return
	}
	e.apply(playerID, s, e.finishExpiry(ctx, s, o))
}

// finishExpiry applies the consequences of an order that just moved to
// expired: penalty, notification and the game-over check.
func (e *Engine) finishExpiry(ctx context.Context, s *session, o *order.Order) next {
	var (
		p       *ledger.Progress
		charged = e.cfg.PenaltyMoney
	)
	err := e.retry(ctx, func(ctx context.Context) error {
		var err error
		p, charged, err = e.ledger.ApplyPenalty(ctx, o.PlayerID, e.cfg.PenaltyMoney,
			fmt.Sprintf("Penalty for expired order: %s", o.RecipeName), o.ID)
		return err
	})
	e.metrics.expired.Add(ctx, 1)
	if err != nil {
		e.alert(ctx, "apply penalty", o.PlayerID, err,
			zap.String("order_id", o.ID),
			zap.Stringer("amount", e.cfg.PenaltyMoney),
		)
		return after(e.cfg.NextAfterExpire)
	}

	e.notifier.Notify(ctx, o.PlayerID, notify.OrderExpired{
		OrderID:      o.ID,
		RecipeName:   o.RecipeName,
		Satisfaction: p.Satisfaction,
		Money:        p.Money,
		Penalty:      charged,
	})
	e.lg.Info("Order expired",
		zap.String("player_id", o.PlayerID),
		zap.String("order_id", o.ID),
		zap.Stringer("penalty", charged),
		zap.Stringer("money", p.Money),
		zap.Int("satisfaction", p.Satisfaction),
	)
	return e.checkGameOver(ctx, s, o.PlayerID, p, e.cfg.NextAfterExpire)
}

// checkGameOver ends the session when satisfaction or money reached zero and
// stops every timer of the player. Otherwise it asks for the next order after
// delay. A session that is already over is never ended twice.
func (e *Engine) checkGameOver(ctx context.Context, s *session, playerID string, p *ledger.Progress, delay time.Duration) next {
	if s.over {
		return next{}
	}
	var reason, message string
	switch {
	case p.Satisfaction <= 0:
		reason, message = ReasonSatisfaction, "Game over! Your restaurant closed: customers lost all satisfaction."
	case !p.Money.IsPositive():
		reason, message = ReasonBankruptcy, "Game over! Your restaurant went bankrupt."
	default:
		return after(delay)
	}

	s.over = true
	e.timers.CancelAll(playerID)
	e.notifier.Notify(ctx, playerID, notify.GameOver{Reason: reason, Message: message})
	e.metrics.gameOvers.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	e.lg.Info("Game over", zap.String("player_id", playerID), zap.String("reason", reason))
	return next{}
}

// apply schedules the next order when the session is still running.
func (e *Engine) apply(playerID string, s *session, n next) {
	if !n.schedule || !s.active || s.over {
		return
	}
	epoch := s.epoch
	e.timers.Schedule(nextKey(playerID), playerID, n.delay, func() {
		e.onNextOrder(playerID, epoch)
	})
}

// onNextOrder is the delayed generation callback.
func (e *Engine) onNextOrder(playerID string, epoch uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.CallbackTimeout)
	defer cancel()
	ctx, span := e.startSpan(ctx, "engine.NextOrder", playerID)
	defer span.End()

	s := e.session(playerID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch || !s.active || s.over {
		return
	}
	err := e.retry(ctx, func(ctx context.Context) error {
		_, err := e.generate(ctx, playerID)
		return err
	})
	if err != nil {
		e.alert(ctx, "generate order", playerID, err)
		e.apply(playerID, s, after(e.cfg.NextAfterExpire))
	}
}

// retry runs fn up to 1+CallbackRetries times, waiting RetryDelay between
// attempts.
func (e *Engine) retry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= e.cfg.CallbackRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Wrap(err, ctx.Err().Error())
			case <-time.After(e.cfg.RetryDelay):
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		e.lg.Warn("Callback step failed", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return err
}

// alert reports a workflow step that exhausted its retries. The session keeps
// going; operators are expected to watch this log line and counter.
func (e *Engine) alert(ctx context.Context, op, playerID string, err error, fields ...zap.Field) {
	e.metrics.callbackFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	e.lg.Error("Step failed after retries", append([]zap.Field{
		zap.Bool("alert", true),
		zap.String("op", op),
		zap.String("player_id", playerID),
		zap.Error(err),
	}, fields...)...)
}
