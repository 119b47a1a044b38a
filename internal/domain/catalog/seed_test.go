package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kitchen-rush/db"
	"github.com/xenking/kitchen-rush/internal/domain/catalog"
)

func TestParseSeedEmbedded(t *testing.T) {
	seed, err := catalog.ParseSeed(db.Catalog)
	require.NoError(t, err)
	assert.Len(t, seed.Ingredients, 15)
	require.Len(t, seed.Recipes, 7)

	carbonara := seed.Recipes[0]
	assert.Equal(t, "carbonara", carbonara.ID)
	assert.Equal(t, "85", carbonara.SalePrice.String())
	assert.Equal(t, []string{"pates", "creme", "fromage", "oeuf"}, carbonara.IngredientIDs())
	assert.Equal(t, "Œuf", carbonara.Lines[3].IngredientName)
	assert.Equal(t, 2, carbonara.Lines[3].Quantity)
}

func TestParseSeedRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "unknown ingredient",
			doc: `
ingredients: [{id: a, name: A, category: x, price: "1"}]
recipes: [{id: r, name: R, sale_price: "5", ingredients: [{id: b, quantity: 1}]}]`,
		},
		{
			name: "zero quantity",
			doc: `
ingredients: [{id: a, name: A, category: x, price: "1"}]
recipes: [{id: r, name: R, sale_price: "5", ingredients: [{id: a, quantity: 0}]}]`,
		},
		{
			name: "bad price",
			doc:  `ingredients: [{id: a, name: A, category: x, price: "cheap"}]`,
		},
		{
			name: "duplicate ingredient",
			doc: `
ingredients: [{id: a, name: A, category: x, price: "1"}, {id: a, name: B, category: x, price: "2"}]`,
		},
		{
			name: "ingredient listed twice in a recipe",
			doc: `
ingredients: [{id: a, name: A, category: x, price: "1"}]
recipes: [{id: r, name: R, sale_price: "5", ingredients: [{id: a, quantity: 1}, {id: a, quantity: 1}]}]`,
		},
		{
			name: "free recipe",
			doc: `
ingredients: [{id: a, name: A, category: x, price: "1"}]
recipes: [{id: r, name: R, sale_price: "0", ingredients: [{id: a, quantity: 1}]}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.ParseSeed([]byte(tt.doc))
			assert.Error(t, err)
		})
	}

	_, err := catalog.ParseSeed([]byte(`
ingredients: [{id: a, name: A, category: x, price: "1"}]
recipes: [{id: r, name: R, sale_price: "5", ingredients: [{id: b, quantity: 1}]}]`))
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}
