package engine

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kitchen-rush/internal/domain/catalog"
	"github.com/xenking/kitchen-rush/internal/domain/ledger"
	"github.com/xenking/kitchen-rush/internal/domain/order"
)

// ActiveOrder is a pending order together with its recipe.
type ActiveOrder struct {
	Order  order.Order
	Recipe *catalog.Recipe
}

// ActiveOrders returns the player's pending orders that are still within
// their deadline, newest first.
func (e *Engine) ActiveOrders(ctx context.Context, playerID string) ([]ActiveOrder, error) {
	pending, err := e.orders.ListPending(ctx, playerID, e.now())
	if err != nil {
		return nil, errors.Wrap(err, "list pending orders")
	}
	recipes, err := e.recipeIndex(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]ActiveOrder, len(pending))
	for i, o := range pending {
		out[i] = ActiveOrder{Order: o, Recipe: recipes[o.RecipeID]}
	}
	return out, nil
}

// History is a page of past orders with counts over all of the player's orders.
type History struct {
	Orders  []order.Order
	Served  int
	Expired int
	Pending int
}

// OrderHistory returns the most recent orders, up to limit, and status counts.
// A limit of zero uses the configured history size.
func (e *Engine) OrderHistory(ctx context.Context, playerID string, limit int) (*History, error) {
	if limit <= 0 {
		limit = e.cfg.HistoryLimit
	}
	all, err := e.orders.ListByPlayer(ctx, playerID, 0)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}

	h := &History{}
	for _, o := range all {
		switch o.Status {
		case order.StatusServed:
			h.Served++
		case order.StatusExpired:
			h.Expired++
		case order.StatusPending:
			h.Pending++
		}
	}
	if len(all) > limit {
		all = all[:limit]
	}
	h.Orders = all
	return h, nil
}

// OpenAccount creates the player's economy with the starting balance if it
// does not exist yet.
func (e *Engine) OpenAccount(ctx context.Context, playerID string) (*ledger.Progress, error) {
	return e.ledger.OpenAccount(ctx, playerID)
}

// Progress returns the player's economy state.
func (e *Engine) Progress(ctx context.Context, playerID string) (*ledger.Progress, error) {
	return e.ledger.Progress(ctx, playerID)
}

// Entries returns the player's ledger entries, newest first.
func (e *Engine) Entries(ctx context.Context, playerID string, limit int) ([]ledger.Entry, error) {
	return e.ledger.Entries(ctx, playerID, limit)
}

// Overview summarizes a player's finances and order record.
type Overview struct {
	Money          decimal.Decimal
	Satisfaction   int
	TotalRevenue   decimal.Decimal
	TotalExpenses  decimal.Decimal
	TotalPenalties decimal.Decimal
	NetProfit      decimal.Decimal
	OrdersServed   int
	OrdersExpired  int
}

// Overview aggregates the ledger and order history of the player.
func (e *Engine) Overview(ctx context.Context, playerID string) (*Overview, error) {
	p, err := e.ledger.Progress(ctx, playerID)
	if err != nil {
		return nil, err
	}
	entries, err := e.ledger.Entries(ctx, playerID, 0)
	if err != nil {
		return nil, err
	}
	h, err := e.OrderHistory(ctx, playerID, 1)
	if err != nil {
		return nil, err
	}

	ov := &Overview{
		Money:         p.Money,
		Satisfaction:  p.Satisfaction,
		OrdersServed:  h.Served,
		OrdersExpired: h.Expired,
	}
	for _, en := range entries {
		switch en.Kind {
		case ledger.KindSale:
			ov.TotalRevenue = ov.TotalRevenue.Add(en.Amount)
		case ledger.KindPenalty:
			ov.TotalPenalties = ov.TotalPenalties.Sub(en.Amount)
			ov.TotalExpenses = ov.TotalExpenses.Sub(en.Amount)
		case ledger.KindPurchase:
			ov.TotalExpenses = ov.TotalExpenses.Sub(en.Amount)
		}
	}
	ov.NetProfit = ov.TotalRevenue.Sub(ov.TotalExpenses)
	return ov, nil
}

// Recipes returns the whole catalog of recipes.
func (e *Engine) Recipes(ctx context.Context) ([]catalog.Recipe, error) {
	return e.catalog.ListRecipes(ctx)
}

// Ingredients returns every ingredient sold on the market.
func (e *Engine) Ingredients(ctx context.Context) ([]catalog.Ingredient, error) {
	return e.catalog.ListIngredients(ctx)
}

// DiscoveredRecipes returns the recipes in the player's book, in catalog order.
func (e *Engine) DiscoveredRecipes(ctx context.Context, playerID string) ([]catalog.Recipe, error) {
	p, err := e.ledger.Progress(ctx, playerID)
	if err != nil {
		return nil, err
	}
	recipes, err := e.catalog.ListRecipes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list recipes")
	}
	out := make([]catalog.Recipe, 0, len(p.Discovered))
	for _, r := range recipes {
		if p.Knows(r.ID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (e *Engine) recipeIndex(ctx context.Context) (map[string]*catalog.Recipe, error) {
	recipes, err := e.catalog.ListRecipes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list recipes")
	}
	idx := make(map[string]*catalog.Recipe, len(recipes))
	for i := range recipes {
		idx[recipes[i].ID] = &recipes[i]
	}
	return idx, nil
}
