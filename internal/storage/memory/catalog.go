package memory

import (
	"context"

	"github.com/xenking/kitchen-rush/internal/domain/catalog"
)

var _ catalog.Repository = (*Catalog)(nil)

// Catalog serves a fixed set of recipes and ingredients.
type Catalog struct {
	ingredients []catalog.Ingredient
	recipes     []catalog.Recipe
	byID        map[string]catalog.Ingredient
}

// NewCatalog returns a Catalog over the given entries.
func NewCatalog(ingredients []catalog.Ingredient, recipes []catalog.Recipe) *Catalog {
	byID := make(map[string]catalog.Ingredient, len(ingredients))
	for _, i := range ingredients {
		byID[i.ID] = i
	}
	return &Catalog{ingredients: ingredients, recipes: recipes, byID: byID}
}

// ListRecipes returns every recipe in catalog order.
func (c *Catalog) ListRecipes(context.Context) ([]catalog.Recipe, error) {
	out := make([]catalog.Recipe, len(c.recipes))
	copy(out, c.recipes)
	return out, nil
}

// GetRecipe returns a recipe by id.
func (c *Catalog) GetRecipe(_ context.Context, id string) (*catalog.Recipe, error) {
	for i := range c.recipes {
		if c.recipes[i].ID == id {
			r := c.recipes[i]
			return &r, nil
		}
	}
	return nil, catalog.ErrNotFound
}

// ListIngredients returns every ingredient in catalog order.
func (c *Catalog) ListIngredients(context.Context) ([]catalog.Ingredient, error) {
	out := make([]catalog.Ingredient, len(c.ingredients))
	copy(out, c.ingredients)
	return out, nil
}

// GetIngredients returns the ingredients matching ids; unknown ids are skipped.
func (c *Catalog) GetIngredients(_ context.Context, ids []string) ([]catalog.Ingredient, error) {
	out := make([]catalog.Ingredient, 0, len(ids))
	for _, id := range ids {
		if i, ok := c.byID[id]; ok {
			out = append(out, i)
		}
	}
	return out, nil
}
