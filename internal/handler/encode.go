package handler

import (
	"sort"

	"github.com/go-faster/jx"

	"github.com/xenking/kitchen-rush/internal/domain/catalog"
	"github.com/xenking/kitchen-rush/internal/domain/ledger"
	"github.com/xenking/kitchen-rush/internal/domain/order"
	"github.com/xenking/kitchen-rush/internal/notify"
)

// encodeStock writes the stock as an array sorted by ingredient id so the
// output is stable. Zero quantities are omitted.
func encodeStock(e *jx.Encoder, stock map[string]int) {
	ids := make([]string, 0, len(stock))
	for id, q := range stock {
		if q > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	e.Arr(func(e *jx.Encoder) {
		for _, id := range ids {
			e.Obj(func(e *jx.Encoder) {
				e.Field("ingredientId", func(e *jx.Encoder) { e.Str(id) })
				e.Field("quantity", func(e *jx.Encoder) { e.Int(stock[id]) })
			})
		}
	})
}

func encodeProgress(e *jx.Encoder, p *ledger.Progress) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("money", func(e *jx.Encoder) { notify.EncodeDecimal(e, p.Money) })
		e.Field("satisfaction", func(e *jx.Encoder) { e.Int(p.Satisfaction) })
		e.Field("startingBalance", func(e *jx.Encoder) { notify.EncodeDecimal(e, p.StartingBalance) })
		e.Field("stock", func(e *jx.Encoder) { encodeStock(e, p.Stock) })
		e.Field("discoveredRecipes", func(e *jx.Encoder) {
			ids := make([]string, 0, len(p.Discovered))
			for id, ok := range p.Discovered {
				if ok {
					ids = append(ids, id)
				}
			}
			sort.Strings(ids)
			encodeStrings(e, ids)
		})
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("recipeId", func(e *jx.Encoder) { e.Str(o.RecipeID) })
		e.Field("recipeName", func(e *jx.Encoder) { e.Str(o.RecipeName) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(notify.FormatTime(o.CreatedAt)) })
		e.Field("expiresAt", func(e *jx.Encoder) { e.Str(notify.FormatTime(o.ExpiresAt)) })
		if o.ResolvedAt != nil {
			e.Field("resolvedAt", func(e *jx.Encoder) { e.Str(notify.FormatTime(*o.ResolvedAt)) })
		}
	})
}

func encodeIngredient(e *jx.Encoder, in catalog.Ingredient) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(in.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(in.Name) })
		e.Field("category", func(e *jx.Encoder) { e.Str(in.Category) })
		e.Field("price", func(e *jx.Encoder) { notify.EncodeDecimal(e, in.Price) })
	})
}

func encodeRecipe(e *jx.Encoder, r *catalog.Recipe) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(r.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(r.Name) })
		e.Field("salePrice", func(e *jx.Encoder) { notify.EncodeDecimal(e, r.SalePrice) })
		e.Field("ingredients", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range r.Lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("ingredientId", func(e *jx.Encoder) { e.Str(l.IngredientID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(l.IngredientName) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
					})
				}
			})
		})
	})
}

func encodeEntry(e *jx.Encoder, en ledger.Entry) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(en.ID) })
		e.Field("kind", func(e *jx.Encoder) { e.Str(string(en.Kind)) })
		e.Field("amount", func(e *jx.Encoder) { notify.EncodeDecimal(e, en.Amount) })
		e.Field("description", func(e *jx.Encoder) { e.Str(en.Description) })
		if en.OrderID != "" {
			e.Field("orderId", func(e *jx.Encoder) { e.Str(en.OrderID) })
		}
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(notify.FormatTime(en.CreatedAt)) })
	})
}

func encodeStrings(e *jx.Encoder, vs []string) {
	e.Arr(func(e *jx.Encoder) {
		for _, v := range vs {
			e.Str(v)
		}
	})
}
