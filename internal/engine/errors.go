package engine

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/kitchen-rush/internal/domain/order"
)

// Sentinel errors returned by the engine itself.
var (
	ErrRecipeUnknown   = errors.New("recipe not discovered")
	ErrNoRecipes       = errors.New("catalog has no recipes")
	ErrEmptyExperiment = errors.New("experiment needs at least one ingredient")
	// ErrGameOver rejects serving until the player joins again. It matches
	// order.ErrInvalidState.
	ErrGameOver = errors.Wrap(order.ErrInvalidState, "game is over")
)

// RecipeUnknownError is returned when a player serves a recipe they have not
// discovered in the laboratory.
type RecipeUnknownError struct {
	RecipeID   string
	RecipeName string
}

func (e *RecipeUnknownError) Error() string {
	return fmt.Sprintf("recipe %s has not been discovered", e.RecipeName)
}

// Is reports ErrRecipeUnknown.
func (e *RecipeUnknownError) Is(target error) bool {
	return target == ErrRecipeUnknown
}
