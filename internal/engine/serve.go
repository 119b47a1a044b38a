package engine

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/xenking/kitchen-rush/internal/domain/catalog"
	"github.com/xenking/kitchen-rush/internal/domain/ledger"
	"github.com/xenking/kitchen-rush/internal/domain/order"
	"github.com/xenking/kitchen-rush/internal/notify"
)

// ServeResult is the outcome of a successful serve.
type ServeResult struct {
	Order    *order.Order
	Progress *ledger.Progress
	Earned   decimal.Decimal
}

// ServeOrder delivers a pending order. The order must belong to the player,
// be within its deadline, use a recipe the player discovered, and every
// ingredient must be in stock. An order found past its deadline is expired on
// the spot with the usual penalty and ErrExpired is returned.
func (e *Engine) ServeOrder(ctx context.Context, playerID, orderID string) (_ *ServeResult, rerr error) {
	ctx, span := e.startSpan(ctx, "engine.ServeOrder", playerID)
	span.SetAttributes(attribute.String("order.id", orderID))
	defer func() { endSpan(span, rerr) }()

	s := e.session(playerID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.over {
		return nil, ErrGameOver
	}

	o, err := e.lifecycle.CheckServable(ctx, playerID, orderID)
	if err != nil {
		var expErr *order.ExpiredError
		if errors.As(err, &expErr) && expErr.Resolved {
			e.timers.Cancel(orderKey(orderID))
			e.apply(playerID, s, e.finishExpiry(ctx, s, expErr.Order))
		}
		return nil, err
	}

	recipe, err := e.catalog.GetRecipe(ctx, o.RecipeID)
	if err != nil {
		return nil, errors.Wrapf(err, "get recipe %s", o.RecipeID)
	}
	p, err := e.ledger.Progress(ctx, playerID)
	if err != nil {
		return nil, errors.Wrap(err, "get progress")
	}
	if !p.Knows(recipe.ID) {
		return nil, &RecipeUnknownError{RecipeID: recipe.ID, RecipeName: recipe.Name}
	}

	required := requirements(recipe)
	if _, err := e.ledger.ConsumeIngredients(ctx, playerID, required); err != nil {
		return nil, err
	}

	served, err := e.lifecycle.MarkServed(ctx, orderID)
	if err != nil {
		// Lost the order to a concurrent resolution: give the stock back.
		if _, restockErr := e.ledger.RestockIngredients(ctx, playerID, required); restockErr != nil {
			e.lg.Error("Restock after lost serve failed",
				zap.String("player_id", playerID),
				zap.String("order_id", orderID),
				zap.Error(restockErr),
			)
		}
		return nil, err
	}
	e.timers.Cancel(orderKey(orderID))
	e.metrics.served.Add(ctx, 1)

	err = e.retry(ctx, func(ctx context.Context) error {
		var err error
		p, err = e.ledger.ApplySale(ctx, playerID, recipe.SalePrice,
			fmt.Sprintf("Sale of %s", recipe.Name), orderID)
		return err
	})
	if err != nil {
		// The order stays served without its sale entry. The alert carries
		// what an operator needs to credit it by hand.
		e.alert(ctx, "apply sale", playerID, err,
			zap.String("order_id", orderID),
			zap.Stringer("amount", recipe.SalePrice),
		)
		e.apply(playerID, s, after(e.cfg.NextAfterServe))
		return nil, errors.Wrapf(err, "apply sale of order %s", orderID)
	}

	e.notifier.Notify(ctx, playerID, notify.OrderServed{
		OrderID:      served.ID,
		RecipeName:   served.RecipeName,
		Satisfaction: p.Satisfaction,
		Money:        p.Money,
	})
	e.lg.Info("Order served",
		zap.String("player_id", playerID),
		zap.String("order_id", orderID),
		zap.Stringer("earned", recipe.SalePrice),
		zap.Stringer("money", p.Money),
	)

	e.apply(playerID, s, e.checkGameOver(ctx, s, playerID, p, e.cfg.NextAfterServe))
	return &ServeResult{Order: served, Progress: p, Earned: recipe.SalePrice}, nil
}

func requirements(r *catalog.Recipe) []ledger.Requirement {
	out := make([]ledger.Requirement, len(r.Lines))
	for i, l := range r.Lines {
		out[i] = ledger.Requirement{IngredientID: l.IngredientID, Name: l.IngredientName, Quantity: l.Quantity}
	}
	return out
}
