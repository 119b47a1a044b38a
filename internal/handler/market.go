package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kitchen-rush/internal/engine"
	"github.com/xenking/kitchen-rush/internal/notify"
)

// ListIngredients handles GET /api/market/ingredients.
func (h *Handler) ListIngredients(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.game.Ingredients(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, in := range ingredients {
				encodeIngredient(e, in)
			}
		})
	})
}

// Stock handles GET /api/market/stock.
func (h *Handler) Stock(w http.ResponseWriter, r *http.Request) {
	p, err := h.game.Progress(r.Context(), PlayerFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeStock(e, p.Stock) })
}

// Buy handles POST /api/market/buy.
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	var items []engine.PurchaseItem
	err := h.decodeObject(w, r, func(d *jx.Decoder, key string) error {
		if key != "purchases" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			var it engine.PurchaseItem
			if err := d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "ingredientId":
					v, err := d.Str()
					it.IngredientID = v
					return err
				case "quantity":
					v, err := d.Int()
					it.Quantity = v
					return err
				default:
					return d.Skip()
				}
			}); err != nil {
				return err
			}
			items = append(items, it)
			return nil
		})
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.game.BuyIngredients(r.Context(), PlayerFromContext(r.Context()), items)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("totalCost", func(e *jx.Encoder) { notify.EncodeDecimal(e, res.Total) })
			e.Field("remainingMoney", func(e *jx.Encoder) { notify.EncodeDecimal(e, res.Progress.Money) })
			e.Field("stock", func(e *jx.Encoder) { encodeStock(e, res.Progress.Stock) })
		})
	})
}
