package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kitchen-rush/internal/domain/auth"
)

type playerKey struct{}

// PlayerFromContext returns the authenticated player id.
func PlayerFromContext(ctx context.Context) string {
	id, _ := ctx.Value(playerKey{}).(string)
	return id
}

// authed authenticates the request from "Authorization: Bearer <token>" or,
// for browsers opening a WebSocket, the token query parameter. The player's
// account is opened on first sight.
func (h *Handler) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		playerID, err := h.tokens.Verify(token)
		if err != nil {
			writeError(w, r, auth.ErrUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), playerKey{}, playerID)
		ctx = zctx.With(ctx, zap.String("player_id", playerID))

		if _, ok := h.known.Load(playerID); !ok {
			if _, err := h.game.OpenAccount(ctx, playerID); err != nil {
				writeError(w, r.WithContext(ctx), errors.Wrap(err, "open account"))
				return
			}
			h.known.Store(playerID, struct{}{})
		}

		next(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	if v := r.Header.Get("Authorization"); v != "" {
		scheme, token, ok := strings.Cut(v, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
