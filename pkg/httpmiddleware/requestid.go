package httpmiddleware

import (
	"context"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

type requestIDKey struct{}

// RequestIDFromContext returns the request id or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID reuses a sane incoming X-Request-ID or generates a UUID, echoes it
// on the response and adds it to the context logger. It must run after
// InjectLogger.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if !validRequestID(id) {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)

			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			ctx = zctx.With(ctx, zap.String("request_id", id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validRequestID accepts up to 128 bytes of printable ASCII.
func validRequestID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for i := range len(id) {
		if id[i] < 0x20 || id[i] > 0x7E {
			return false
		}
	}
	return true
}
