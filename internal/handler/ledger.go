package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kitchen-rush/internal/notify"
)

// Entries handles GET /api/ledger/entries.
func (h *Handler) Entries(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := h.game.Entries(r.Context(), PlayerFromContext(r.Context()), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, en := range entries {
				encodeEntry(e, en)
			}
		})
	})
}

// Overview handles GET /api/ledger/overview.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.game.Overview(r.Context(), PlayerFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("money", func(e *jx.Encoder) { notify.EncodeDecimal(e, ov.Money) })
			e.Field("satisfaction", func(e *jx.Encoder) { e.Int(ov.Satisfaction) })
			e.Field("totalRevenue", func(e *jx.Encoder) { notify.EncodeDecimal(e, ov.TotalRevenue) })
			e.Field("totalExpenses", func(e *jx.Encoder) { notify.EncodeDecimal(e, ov.TotalExpenses) })
			e.Field("totalPenalties", func(e *jx.Encoder) { notify.EncodeDecimal(e, ov.TotalPenalties) })
			e.Field("netProfit", func(e *jx.Encoder) { notify.EncodeDecimal(e, ov.NetProfit) })
			e.Field("ordersServed", func(e *jx.Encoder) { e.Int(ov.OrdersServed) })
			e.Field("ordersExpired", func(e *jx.Encoder) { e.Int(ov.OrdersExpired) })
		})
	})
}

// Progress handles GET /api/player/progress.
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	p, err := h.game.Progress(r.Context(), PlayerFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProgress(e, p) })
}
