package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kitchen-rush/internal/domain/auth"
	"github.com/xenking/kitchen-rush/internal/domain/catalog"
	"github.com/xenking/kitchen-rush/internal/domain/ledger"
	"github.com/xenking/kitchen-rush/internal/domain/order"
	"github.com/xenking/kitchen-rush/internal/engine"
)

// Error codes carried in the error body.
const (
	CodeBadRequest        = "BAD_REQUEST"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidState      = "INVALID_STATE"
	CodeExpired           = "EXPIRED"
	CodeRecipeUnknown     = "RECIPE_UNKNOWN"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeInternal          = "INTERNAL"
)

// errBadRequest marks malformed input found by the transport itself.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return errors.Wrapf(errBadRequest, format, args...)
}

type apiError struct {
	status  int
	code    string
	message string
	missing []ledger.Shortfall
}

func classify(err error) apiError {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return apiError{status: http.StatusUnauthorized, code: CodeUnauthorized, message: "unauthorized"}
	case errors.Is(err, errBadRequest),
		errors.Is(err, ledger.ErrEmptyPurchase),
		errors.Is(err, ledger.ErrInvalidRequirement),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, engine.ErrEmptyExperiment):
		return apiError{status: http.StatusBadRequest, code: CodeBadRequest, message: err.Error()}
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, ledger.ErrPlayerNotFound),
		errors.Is(err, catalog.ErrNotFound):
		return apiError{status: http.StatusNotFound, code: CodeNotFound, message: err.Error()}
	case errors.Is(err, order.ErrExpired):
		return apiError{status: http.StatusConflict, code: CodeExpired, message: "order expired"}
	case errors.Is(err, order.ErrInvalidState):
		return apiError{status: http.StatusConflict, code: CodeInvalidState, message: "order is no longer pending"}
	case errors.Is(err, engine.ErrRecipeUnknown):
		return apiError{status: http.StatusUnprocessableEntity, code: CodeRecipeUnknown, message: err.Error()}
	case errors.Is(err, ledger.ErrInsufficientStock):
		ae := apiError{status: http.StatusUnprocessableEntity, code: CodeInsufficientStock, message: "insufficient stock"}
		var stockErr *ledger.InsufficientStockError
		if errors.As(err, &stockErr) {
			ae.missing = stockErr.Shortfalls
		}
		return ae
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return apiError{status: http.StatusUnprocessableEntity, code: CodeInsufficientFunds, message: "insufficient funds"}
	default:
		return apiError{status: http.StatusInternalServerError, code: CodeInternal, message: "internal error"}
	}
}

// writeError maps err onto a status code and writes the error body.
// Unclassified errors are logged and never leak their text.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae := classify(err)
	if ae.status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(ae.code) })
		e.Field("message", func(e *jx.Encoder) { e.Str(ae.message) })
		if len(ae.missing) > 0 {
			e.Field("missing", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, s := range ae.missing {
						e.Obj(func(e *jx.Encoder) {
							e.Field("ingredientId", func(e *jx.Encoder) { e.Str(s.IngredientID) })
							e.Field("name", func(e *jx.Encoder) { e.Str(s.Name) })
							e.Field("needed", func(e *jx.Encoder) { e.Int(s.Needed) })
							e.Field("inStock", func(e *jx.Encoder) { e.Int(s.InStock) })
						})
					}
				})
			})
		}
	})
	writeBytes(w, ae.status, e.Bytes())
}

// writeJSON encodes a response body with fn and writes it with status.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)
	writeBytes(w, status, e.Bytes())
}

func writeBytes(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
