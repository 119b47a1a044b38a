// Package handler exposes the game over HTTP and WebSocket.
package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xenking/kitchen-rush/internal/domain/catalog"
	"github.com/xenking/kitchen-rush/internal/domain/ledger"
	"github.com/xenking/kitchen-rush/internal/engine"
	"github.com/xenking/kitchen-rush/internal/notify"
)

// Game is the set of engine operations the transport needs.
type Game interface {
	OpenAccount(ctx context.Context, playerID string) (*ledger.Progress, error)
	JoinSession(ctx context.Context, playerID string) (*ledger.Progress, error)
	LeaveSession(ctx context.Context, playerID string)

	ServeOrder(ctx context.Context, playerID, orderID string) (*engine.ServeResult, error)
	ActiveOrders(ctx context.Context, playerID string) ([]engine.ActiveOrder, error)
	OrderHistory(ctx context.Context, playerID string, limit int) (*engine.History, error)

	Ingredients(ctx context.Context) ([]catalog.Ingredient, error)
	Recipes(ctx context.Context) ([]catalog.Recipe, error)
	BuyIngredients(ctx context.Context, playerID string, items []engine.PurchaseItem) (*ledger.PurchaseResult, error)
	Experiment(ctx context.Context, playerID string, ingredientIDs []string) (*engine.ExperimentResult, error)
	DiscoveredRecipes(ctx context.Context, playerID string) ([]catalog.Recipe, error)

	Progress(ctx context.Context, playerID string) (*ledger.Progress, error)
	Entries(ctx context.Context, playerID string, limit int) ([]ledger.Entry, error)
	Overview(ctx context.Context, playerID string) (*engine.Overview, error)
}

var _ Game = (*engine.Engine)(nil)

// TokenVerifier resolves a bearer token to a player id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64
	// WSPingInterval is how often idle WebSocket connections are pinged.
	WSPingInterval time.Duration
	// WSAllowedOrigins lists origins allowed to open a WebSocket. Empty or
	// "*" accepts any origin.
	WSAllowedOrigins []string
}

// Handler serves the HTTP API.
type Handler struct {
	game   Game
	hub    *notify.Hub
	tokens TokenVerifier
	cfg    Config
	ws     *websocket.Upgrader

	// known caches players whose account exists.
	known sync.Map
}

// New constructs a Handler.
func New(cfg Config, game Game, hub *notify.Hub, tokens TokenVerifier) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	if cfg.WSPingInterval <= 0 {
		cfg.WSPingInterval = 30 * time.Second
	}
	return &Handler{
		game:   game,
		hub:    hub,
		tokens: tokens,
		cfg:    cfg,
		ws:     newUpgrader(cfg.WSAllowedOrigins),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /api/orders/serve", h.authed(h.ServeOrder))
	mux.Handle("GET /api/orders/active", h.authed(h.ActiveOrders))
	mux.Handle("GET /api/orders/history", h.authed(h.OrderHistory))

	mux.Handle("GET /api/market/ingredients", h.authed(h.ListIngredients))
	mux.Handle("GET /api/market/stock", h.authed(h.Stock))
	mux.Handle("POST /api/market/buy", h.authed(h.Buy))

	mux.Handle("POST /api/lab/experiment", h.authed(h.Experiment))
	mux.Handle("GET /api/lab/recipes", h.authed(h.MyRecipes))
	mux.Handle("GET /api/lab/recipes/all", h.authed(h.AllRecipes))

	mux.Handle("GET /api/ledger/entries", h.authed(h.Entries))
	mux.Handle("GET /api/ledger/overview", h.authed(h.Overview))
	mux.Handle("GET /api/player/progress", h.authed(h.Progress))

	mux.Handle("GET /ws", h.authed(h.WebSocket))
}
