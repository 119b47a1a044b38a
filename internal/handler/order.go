package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kitchen-rush/internal/notify"
)

// ServeOrder handles POST /api/orders/serve.
func (h *Handler) ServeOrder(w http.ResponseWriter, r *http.Request) {
	var orderID string
	err := h.decodeObject(w, r, func(d *jx.Decoder, key string) error {
		switch key {
		case "orderId":
			v, err := d.Str()
			orderID = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if orderID == "" {
		writeError(w, r, badRequest("orderId is required"))
		return
	}

	res, err := h.game.ServeOrder(r.Context(), PlayerFromContext(r.Context()), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("orderId", func(e *jx.Encoder) { e.Str(res.Order.ID) })
			e.Field("satisfaction", func(e *jx.Encoder) { e.Int(res.Progress.Satisfaction) })
			e.Field("money", func(e *jx.Encoder) { notify.EncodeDecimal(e, res.Progress.Money) })
			e.Field("earned", func(e *jx.Encoder) { notify.EncodeDecimal(e, res.Earned) })
			e.Field("stock", func(e *jx.Encoder) { encodeStock(e, res.Progress.Stock) })
		})
	})
}

// ActiveOrders handles GET /api/orders/active.
func (h *Handler) ActiveOrders(w http.ResponseWriter, r *http.Request) {
	active, err := h.game.ActiveOrders(r.Context(), PlayerFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, a := range active {
				e.Obj(func(e *jx.Encoder) {
					e.Field("order", func(e *jx.Encoder) { encodeOrder(e, &a.Order) })
					if a.Recipe != nil {
						e.Field("recipe", func(e *jx.Encoder) { encodeRecipe(e, a.Recipe) })
					}
				})
			}
		})
	})
}

// OrderHistory handles GET /api/orders/history.
func (h *Handler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	hist, err := h.game.OrderHistory(r.Context(), PlayerFromContext(r.Context()), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("orders", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for i := range hist.Orders {
						encodeOrder(e, &hist.Orders[i])
					}
				})
			})
			e.Field("stats", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("served", func(e *jx.Encoder) { e.Int(hist.Served) })
					e.Field("expired", func(e *jx.Encoder) { e.Int(hist.Expired) })
					e.Field("pending", func(e *jx.Encoder) { e.Int(hist.Pending) })
				})
			})
		})
	})
}
