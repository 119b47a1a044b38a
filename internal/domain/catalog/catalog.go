package catalog

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested recipe or ingredient does not exist.
var ErrNotFound = errors.New("catalog entry not found")

// IngredientNotFoundError indicates a requested ingredient does not exist.
type IngredientNotFoundError struct {
	IngredientID string
}

func (e *IngredientNotFoundError) Error() string {
	return fmt.Sprintf("ingredient %s not found", e.IngredientID)
}

// Is reports ErrNotFound so callers can match every missing catalog entry.
func (e *IngredientNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Ingredient is a raw product players buy on the market.
type Ingredient struct {
	ID       string
	Name     string
	Category string
	Price    decimal.Decimal
}

// Line is one ingredient requirement of a recipe.
type Line struct {
	IngredientID   string
	IngredientName string
	Quantity       int
}

// Recipe is a dish customers can order.
type Recipe struct {
	ID        string
	Name      string
	SalePrice decimal.Decimal
	Lines     []Line
}

// IngredientIDs returns the ids of every ingredient the recipe needs.
func (r *Recipe) IngredientIDs() []string {
	ids := make([]string, len(r.Lines))
	for i, l := range r.Lines {
		ids[i] = l.IngredientID
	}
	return ids
}

// Repository defines read operations for the immutable catalog.
type Repository interface {
	ListRecipes(ctx context.Context) ([]Recipe, error)
	GetRecipe(ctx context.Context, id string) (*Recipe, error)
	ListIngredients(ctx context.Context) ([]Ingredient, error)
	GetIngredients(ctx context.Context, ids []string) ([]Ingredient, error)
}
