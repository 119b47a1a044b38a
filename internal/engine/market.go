package engine

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kitchen-rush/internal/domain/catalog"
	"github.com/xenking/kitchen-rush/internal/domain/ledger"
	"github.com/xenking/kitchen-rush/internal/notify"
)

// PurchaseItem is one requested market line.
type PurchaseItem struct {
	IngredientID string
	Quantity     int
}

// BuyIngredients prices the items from the catalog and buys all of them or
// none.
func (e *Engine) BuyIngredients(ctx context.Context, playerID string, items []PurchaseItem) (_ *ledger.PurchaseResult, rerr error) {
	ctx, span := e.startSpan(ctx, "engine.BuyIngredients", playerID)
	defer func() { endSpan(span, rerr) }()

	if len(items) == 0 {
		return nil, ledger.ErrEmptyPurchase
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, ledger.ErrInvalidRequirement
		}
		ids = append(ids, it.IngredientID)
	}

	found, err := e.catalog.GetIngredients(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get ingredients")
	}
	byID := make(map[string]catalog.Ingredient, len(found))
	for _, in := range found {
		byID[in.ID] = in
	}

	lines := make([]ledger.PurchaseLine, 0, len(items))
	for _, it := range items {
		in, ok := byID[it.IngredientID]
		if !ok {
			return nil, &catalog.IngredientNotFoundError{IngredientID: it.IngredientID}
		}
		lines = append(lines, ledger.PurchaseLine{
			IngredientID: in.ID,
			Name:         in.Name,
			UnitPrice:    in.Price,
			Quantity:     it.Quantity,
		})
	}

	s := e.session(playerID)
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := e.ledger.ApplyPurchase(ctx, playerID, lines)
	if err != nil {
		return nil, err
	}
	e.lg.Debug("Ingredients bought",
		zap.String("player_id", playerID),
		zap.Stringer("total", res.Total),
		zap.Stringer("money", res.Progress.Money),
	)
	return res, nil
}

// ExperimentResult is the outcome of a laboratory attempt.
type ExperimentResult struct {
	// Recipe is the matched recipe, nil when the combination matches none.
	Recipe *catalog.Recipe
	// Discovered is true only when this attempt made the discovery.
	Discovered bool
}

// Experiment tries a combination of ingredients in the laboratory. It matches
// when the ids, sorted, equal the sorted ingredient ids of a recipe. Quantities
// play no part. A new match adds the recipe to the player's book.
func (e *Engine) Experiment(ctx context.Context, playerID string, ingredientIDs []string) (_ *ExperimentResult, rerr error) {
	ctx, span := e.startSpan(ctx, "engine.Experiment", playerID)
	defer func() { endSpan(span, rerr) }()

	if len(ingredientIDs) == 0 {
		return nil, ErrEmptyExperiment
	}
	tried := slices.Clone(ingredientIDs)
	slices.Sort(tried)

	recipes, err := e.catalog.ListRecipes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list recipes")
	}

	var match *catalog.Recipe
	for i := range recipes {
		ids := recipes[i].IngredientIDs()
		slices.Sort(ids)
		if slices.Equal(ids, tried) {
			match = &recipes[i]
			break
		}
	}
	if match == nil {
		if _, err := e.ledger.Progress(ctx, playerID); err != nil {
			return nil, err
		}
		return &ExperimentResult{}, nil
	}

	s := e.session(playerID)
	s.mu.Lock()
	defer s.mu.Unlock()

	discovered, err := e.ledger.DiscoverRecipe(ctx, playerID, match.ID)
	if err != nil {
		return nil, err
	}
	if discovered {
		e.metrics.discoveries.Add(ctx, 1)
		e.notifier.Notify(ctx, playerID, notify.RecipeDiscovered{RecipeID: match.ID, RecipeName: match.Name})
		e.lg.Info("Recipe discovered", zap.String("player_id", playerID), zap.String("recipe", match.ID))
	}
	return &ExperimentResult{Recipe: match, Discovered: discovered}, nil
}
