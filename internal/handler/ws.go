package handler

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xenking/kitchen-rush/internal/notify"
)

const (
	wsWriteWait    = 10 * time.Second
	wsMaxReadBytes = 4 << 10
)

func newUpgrader(origins []string) *websocket.Upgrader {
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	return &websocket.Upgrader{
		HandshakeTimeout: wsWriteWait,
		ReadBufferSize:   1024,
		WriteBufferSize:  4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range origins {
				if strings.EqualFold(o, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WebSocket handles GET /ws. Opening the connection joins the game session;
// closing the player's current connection leaves it. A newer connection for
// the same player replaces this one without ending the session.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	playerID := PlayerFromContext(r.Context())
	lg := zctx.From(r.Context())

	conn, err := h.ws.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		lg.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	// The session outlives request-scoped cancellation.
	ctx := context.WithoutCancel(r.Context())

	sub := h.hub.Connect(playerID)
	if _, err := h.game.JoinSession(ctx, playerID); err != nil {
		ae := classify(err)
		if ae.status == http.StatusInternalServerError {
			lg.Error("Join session", zap.Error(err))
		}
		h.hub.Disconnect(sub)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, ae.message),
			time.Now().Add(wsWriteWait))
		return
	}
	lg.Info("Player connected")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writeLoop(conn, sub, stop, lg)
	}()

	h.readLoop(conn)
	close(stop)
	wg.Wait()

	if h.hub.Disconnect(sub) {
		h.game.LeaveSession(ctx, playerID)
		lg.Info("Player disconnected")
	}
}

// readLoop discards client messages and returns when the connection fails or
// stops answering pings.
func (h *Handler) readLoop(conn *websocket.Conn) {
	pongWait := 2 * h.cfg.WSPingInterval
	conn.SetReadLimit(wsMaxReadBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop is the only writer of conn. It closes the connection when the
// subscription ends (replaced or server shutdown) or a write fails, which ends
// readLoop.
func (h *Handler) writeLoop(conn *websocket.Conn, sub *notify.Subscription, stop <-chan struct{}, lg *zap.Logger) {
	ticker := time.NewTicker(h.cfg.WSPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-sub.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "subscription closed"),
				time.Now().Add(wsWriteWait))
			_ = conn.Close()
			return
		case ev := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, notify.Encode(ev)); err != nil {
				lg.Debug("WebSocket write failed", zap.Error(err))
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
