package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kitchen-rush/internal/domain/catalog"
)

const (
	listIngredientsSQL = `SELECT id, name, category, price FROM ingredients ORDER BY position, id`

	getIngredientsByIDsSQL = `SELECT id, name, category, price FROM ingredients WHERE id = ANY($1) ORDER BY position, id`

	listRecipesSQL = `SELECT id, name, sale_price FROM recipes ORDER BY position, id`

	getRecipeSQL = `SELECT id, name, sale_price FROM recipes WHERE id = $1`

	listRecipeLinesSQL = `SELECT ri.recipe_id, ri.ingredient_id, i.name, ri.quantity
		FROM recipe_ingredients ri JOIN ingredients i ON i.id = ri.ingredient_id
		WHERE ri.recipe_id = ANY($1)
		ORDER BY ri.recipe_id, ri.position`

	upsertIngredientSQL = `INSERT INTO ingredients (id, name, category, price, position)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, category = EXCLUDED.category,
			price = EXCLUDED.price, position = EXCLUDED.position`

	upsertRecipeSQL = `INSERT INTO recipes (id, name, sale_price, position)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, sale_price = EXCLUDED.sale_price,
			position = EXCLUDED.position`

	deleteRecipeLinesSQL = `DELETE FROM recipe_ingredients WHERE recipe_id = $1`

	insertRecipeLineSQL = `INSERT INTO recipe_ingredients (recipe_id, ingredient_id, quantity, position)
		VALUES ($1, $2, $3, $4)`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// ListIngredients returns every ingredient in catalog order.
func (r *CatalogRepository) ListIngredients(ctx context.Context) ([]catalog.Ingredient, error) {
	rows, err := r.pool.Query(ctx, listIngredientsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing ingredients: %w", err)
	}
	return pgx.CollectRows(rows, scanIngredient)
}

// GetIngredients returns the ingredients matching ids; unknown ids are skipped.
func (r *CatalogRepository) GetIngredients(ctx context.Context, ids []string) ([]catalog.Ingredient, error) {
	rows, err := r.pool.Query(ctx, getIngredientsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting ingredients by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanIngredient)
}

// ListRecipes returns every recipe with its ingredient lines.
func (r *CatalogRepository) ListRecipes(ctx context.Context) ([]catalog.Recipe, error) {
	rows, err := r.pool.Query(ctx, listRecipesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing recipes: %w", err)
	}
	recipes, err := pgx.CollectRows(rows, scanRecipe)
	if err != nil {
		return nil, fmt.Errorf("listing recipes: %w", err)
	}
	if err := r.attachLines(ctx, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// GetRecipe returns a single recipe by id.
func (r *CatalogRepository) GetRecipe(ctx context.Context, id string) (*catalog.Recipe, error) {
	rows, err := r.pool.Query(ctx, getRecipeSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting recipe %q: %w", id, err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, scanRecipe)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting recipe %q: %w", id, err)
	}
	recipes := []catalog.Recipe{rec}
	if err := r.attachLines(ctx, recipes); err != nil {
		return nil, err
	}
	return &recipes[0], nil
}

func (r *CatalogRepository) attachLines(ctx context.Context, recipes []catalog.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	ids := make([]string, len(recipes))
	index := make(map[string]int, len(recipes))
	for i, rec := range recipes {
		ids[i] = rec.ID
		index[rec.ID] = i
	}

	rows, err := r.pool.Query(ctx, listRecipeLinesSQL, ids)
	if err != nil {
		return fmt.Errorf("listing recipe lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			recipeID string
			l        catalog.Line
		)
		if err := rows.Scan(&recipeID, &l.IngredientID, &l.IngredientName, &l.Quantity); err != nil {
			return fmt.Errorf("scanning recipe line: %w", err)
		}
		i := index[recipeID]
		recipes[i].Lines = append(recipes[i].Lines, l)
	}
	return rows.Err()
}

// Seed upserts the catalog in one transaction. Recipe lines are replaced.
func (r *CatalogRepository) Seed(ctx context.Context, seed *catalog.Seed) error {
	return withTx(ctx, r.pool, func(ctx context.Context) error {
		q := conn(ctx, r.pool)
		for i, in := range seed.Ingredients {
			if _, err := q.Exec(ctx, upsertIngredientSQL, in.ID, in.Name, in.Category, in.Price, i); err != nil {
				return fmt.Errorf("upserting ingredient %q: %w", in.ID, err)
			}
		}
		for i, rec := range seed.Recipes {
			if _, err := q.Exec(ctx, upsertRecipeSQL, rec.ID, rec.Name, rec.SalePrice, i); err != nil {
				return fmt.Errorf("upserting recipe %q: %w", rec.ID, err)
			}
			if _, err := q.Exec(ctx, deleteRecipeLinesSQL, rec.ID); err != nil {
				return fmt.Errorf("clearing recipe %q lines: %w", rec.ID, err)
			}
			for j, l := range rec.Lines {
				if _, err := q.Exec(ctx, insertRecipeLineSQL, rec.ID, l.IngredientID, l.Quantity, j); err != nil {
					return fmt.Errorf("inserting recipe %q line %q: %w", rec.ID, l.IngredientID, err)
				}
			}
		}
		return nil
	})
}

func scanIngredient(row pgx.CollectableRow) (catalog.Ingredient, error) {
	var i catalog.Ingredient
	err := row.Scan(&i.ID, &i.Name, &i.Category, &i.Price)
	return i, err
}

func scanRecipe(row pgx.CollectableRow) (catalog.Recipe, error) {
	var r catalog.Recipe
	err := row.Scan(&r.ID, &r.Name, &r.SalePrice)
	return r, err
}
