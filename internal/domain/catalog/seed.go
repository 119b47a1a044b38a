package catalog

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Seed is a complete catalog loaded from a YAML document.
type Seed struct {
	Ingredients []Ingredient
	Recipes     []Recipe
}

type seedFile struct {
	Ingredients []struct {
		ID       string `yaml:"id"`
		Name     string `yaml:"name"`
		Category string `yaml:"category"`
		Price    string `yaml:"price"`
	} `yaml:"ingredients"`
	Recipes []struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		SalePrice   string `yaml:"sale_price"`
		Ingredients []struct {
			ID       string `yaml:"id"`
			Quantity int    `yaml:"quantity"`
		} `yaml:"ingredients"`
	} `yaml:"recipes"`
}

// ParseSeed decodes and validates a catalog document. Every recipe line must
// reference a declared ingredient with a positive quantity.
func ParseSeed(data []byte) (*Seed, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}

	seed := &Seed{}
	names := make(map[string]string, len(f.Ingredients))
	for _, in := range f.Ingredients {
		if in.ID == "" {
			return nil, errors.Errorf("ingredient %q: empty id", in.Name)
		}
		if _, dup := names[in.ID]; dup {
			return nil, errors.Errorf("ingredient %q: duplicate id", in.ID)
		}
		price, err := decimal.NewFromString(in.Price)
		if err != nil {
			return nil, errors.Wrapf(err, "ingredient %q: price", in.ID)
		}
		if price.IsNegative() {
			return nil, errors.Errorf("ingredient %q: negative price", in.ID)
		}
		names[in.ID] = in.Name
		seed.Ingredients = append(seed.Ingredients, Ingredient{
			ID:       in.ID,
			Name:     in.Name,
			Category: in.Category,
			Price:    price,
		})
	}

	seen := make(map[string]bool, len(f.Recipes))
	for _, r := range f.Recipes {
		if r.ID == "" || seen[r.ID] {
			return nil, errors.Errorf("recipe %q: missing or duplicate id", r.ID)
		}
		seen[r.ID] = true

		price, err := decimal.NewFromString(r.SalePrice)
		if err != nil {
			return nil, errors.Wrapf(err, "recipe %q: sale price", r.ID)
		}
		if !price.IsPositive() {
			return nil, errors.Errorf("recipe %q: sale price must be positive", r.ID)
		}
		if len(r.Ingredients) == 0 {
			return nil, errors.Errorf("recipe %q: no ingredients", r.ID)
		}

		rec := Recipe{ID: r.ID, Name: r.Name, SalePrice: price}
		lines := make(map[string]bool, len(r.Ingredients))
		for _, l := range r.Ingredients {
			if lines[l.ID] {
				return nil, errors.Errorf("recipe %q: ingredient %q listed twice", r.ID, l.ID)
			}
			lines[l.ID] = true
			name, ok := names[l.ID]
			if !ok {
				return nil, fmt.Errorf("recipe %q: %w", r.ID, &IngredientNotFoundError{IngredientID: l.ID})
			}
			if l.Quantity <= 0 {
				return nil, errors.Errorf("recipe %q: ingredient %q: quantity must be positive", r.ID, l.ID)
			}
			rec.Lines = append(rec.Lines, Line{IngredientID: l.ID, IngredientName: name, Quantity: l.Quantity})
		}
		seed.Recipes = append(seed.Recipes, rec)
	}
	return seed, nil
}
