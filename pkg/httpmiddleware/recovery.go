package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Recovery turns a handler panic into a logged 500.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				zctx.From(r.Context()).Error("Panic recovered",
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
					zap.Stack("stack"),
				)
				w.Header().Set("Connection", "close")
				writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
