package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/kitchen-rush/db"
	"github.com/xenking/kitchen-rush/internal/domain/auth"
	"github.com/xenking/kitchen-rush/internal/domain/catalog"
	"github.com/xenking/kitchen-rush/internal/domain/ledger"
	"github.com/xenking/kitchen-rush/internal/domain/order"
	"github.com/xenking/kitchen-rush/internal/engine"
	"github.com/xenking/kitchen-rush/internal/notify"
	"github.com/xenking/kitchen-rush/internal/storage/memory"
)

const testPlayer = "chef-42"

var testSecret = []byte("test-secret")

// --- Mock implementations ---

// stubGame answers the calls a test sets up. Unset methods panic through the
// nil embedded interface.
type stubGame struct {
	Game

	serveErr error
	buyErr   error
	opened   []string
}

func (s *stubGame) OpenAccount(_ context.Context, playerID string) (*ledger.Progress, error) {
	s.opened = append(s.opened, playerID)
	return &ledger.Progress{PlayerID: playerID}, nil
}

func (s *stubGame) ServeOrder(context.Context, string, string) (*engine.ServeResult, error) {
	return nil, s.serveErr
}

func (s *stubGame) BuyIngredients(context.Context, string, []engine.PurchaseItem) (*ledger.PurchaseResult, error) {
	return nil, s.buyErr
}

func (s *stubGame) OrderHistory(context.Context, string, int) (*engine.History, error) {
	return &engine.History{}, nil
}

// --- Helpers ---

func token(t *testing.T, playerID string) string {
	t.Helper()
	tok, err := auth.NewTokens(testSecret).Issue(playerID, time.Hour)
	require.NoError(t, err)
	return tok
}

func newMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func do(t *testing.T, mux http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token(t, testPlayer))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

// --- Tests ---

func TestAuth(t *testing.T) {
	game := &stubGame{}
	mux := newMux(New(Config{}, game, notify.NewHub(0, nil), auth.NewTokens(testSecret)))

	t.Run("MissingToken", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/history", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), CodeUnauthorized)
	})

	t.Run("ForgedToken", func(t *testing.T) {
		forged, err := auth.NewTokens([]byte("other")).Issue(testPlayer, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/orders/history", nil)
		req.Header.Set("Authorization", "Bearer "+forged)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("QueryToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders/history?token="+token(t, testPlayer), nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("AccountOpenedOnce", func(t *testing.T) {
		game.opened = nil
		do(t, mux, http.MethodGet, "/api/orders/history", "")
		do(t, mux, http.MethodGet, "/api/orders/history", "")
		assert.Empty(t, game.opened, "account was cached by the earlier subtests")
	})
}

func TestServeOrderErrors(t *testing.T) {
	pending := &order.Order{ID: "o-1", ExpiresAt: time.Now()}
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"NotFound", order.ErrNotFound, http.StatusNotFound, CodeNotFound},
		{"Expired", &order.ExpiredError{Order: pending, Resolved: true}, http.StatusConflict, CodeExpired},
		{"InvalidState", errors.Wrap(order.ErrInvalidState, "resolve"), http.StatusConflict, CodeInvalidState},
		{"GameOver", engine.ErrGameOver, http.StatusConflict, CodeInvalidState},
		{"RecipeUnknown", &engine.RecipeUnknownError{RecipeID: "carbonara", RecipeName: "Pâtes Carbonara"}, http.StatusUnprocessableEntity, CodeRecipeUnknown},
		{"Internal", errors.New("db down"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newMux(New(Config{}, &stubGame{serveErr: tt.err}, notify.NewHub(0, nil), auth.NewTokens(testSecret)))
			rec, body := do(t, mux, http.MethodPost, "/api/orders/serve", `{"orderId":"o-1"}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, body["code"])
		})
	}

	t.Run("InternalHidesCause", func(t *testing.T) {
		mux := newMux(New(Config{}, &stubGame{serveErr: errors.New("password=hunter2")}, notify.NewHub(0, nil), auth.NewTokens(testSecret)))
		rec, _ := do(t, mux, http.MethodPost, "/api/orders/serve", `{"orderId":"o-1"}`)
		assert.NotContains(t, rec.Body.String(), "hunter2")
	})
}

func TestServeOrderMissingStock(t *testing.T) {
	stockErr := &ledger.InsufficientStockError{Shortfalls: []ledger.Shortfall{
		{IngredientID: "creme", Name: "Crème", Needed: 1, InStock: 0},
		{IngredientID: "oeuf", Name: "Œuf", Needed: 2, InStock: 1},
	}}
	mux := newMux(New(Config{}, &stubGame{serveErr: stockErr}, notify.NewHub(0, nil), auth.NewTokens(testSecret)))

	rec, body := do(t, mux, http.MethodPost, "/api/orders/serve", `{"orderId":"o-1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, CodeInsufficientStock, body["code"])

	missing, ok := body["missing"].([]any)
	require.True(t, ok)
	require.Len(t, missing, 2)
	second := missing[1].(map[string]any)
	assert.Equal(t, "oeuf", second["ingredientId"])
	assert.EqualValues(t, 2, second["needed"])
	assert.EqualValues(t, 1, second["inStock"])
}

func TestBadRequests(t *testing.T) {
	mux := newMux(New(Config{MaxBodyBytes: 64}, &stubGame{}, notify.NewHub(0, nil), auth.NewTokens(testSecret)))

	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{"MalformedJSON", http.MethodPost, "/api/orders/serve", `{"orderId":`},
		{"NotAnObject", http.MethodPost, "/api/orders/serve", `[]`},
		{"MissingOrderID", http.MethodPost, "/api/orders/serve", `{"other":1}`},
		{"BodyTooLarge", http.MethodPost, "/api/orders/serve", `{"orderId":"` + strings.Repeat("x", 128) + `"}`},
		{"BadLimit", http.MethodGet, "/api/orders/history?limit=abc", ""},
		{"NegativeLimit", http.MethodGet, "/api/orders/history?limit=-1", ""},
		{"QuantityNotNumber", http.MethodPost, "/api/market/buy", `{"purchases":[{"quantity":"x"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, mux, tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, CodeBadRequest, body["code"])
		})
	}
}

func TestBuyErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"Funds", &ledger.InsufficientFundsError{}, http.StatusUnprocessableEntity, CodeInsufficientFunds},
		{"Empty", ledger.ErrEmptyPurchase, http.StatusBadRequest, CodeBadRequest},
		{"UnknownIngredient", &catalog.IngredientNotFoundError{IngredientID: "truffe"}, http.StatusNotFound, CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newMux(New(Config{}, &stubGame{buyErr: tt.err}, notify.NewHub(0, nil), auth.NewTokens(testSecret)))
			rec, body := do(t, mux, http.MethodPost, "/api/market/buy", `{"purchases":[{"ingredientId":"oeuf","quantity":1}]}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

// --- Full flow against the real engine ---

type flow struct {
	srv    *httptest.Server
	engine *engine.Engine
	token  string
}

func newFlow(t *testing.T) *flow {
	t.Helper()
	seed, err := catalog.ParseSeed(db.Catalog)
	require.NoError(t, err)

	hub := notify.NewHub(0, zap.NewNop())
	cfg := engine.DefaultConfig()
	cfg.OrderDuration = time.Hour
	cfg.NextAfterServe = time.Hour
	eng, err := engine.New(
		memory.NewCatalog(seed.Ingredients, seed.Recipes),
		memory.NewOrderStore(),
		ledger.NewService(memory.NewLedgerStore(), ledger.DefaultRules()),
		hub,
		engine.Options{Config: cfg, Logger: zap.NewNop(), Pick: func(int) int { return 0 }},
	)
	require.NoError(t, err)
	t.Cleanup(eng.Close)

	srv := httptest.NewServer(newMux(New(Config{WSPingInterval: time.Second}, eng, hub, auth.NewTokens(testSecret))))
	t.Cleanup(srv.Close)

	return &flow{srv: srv, engine: eng, token: token(t, testPlayer)}
}

func (f *flow) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws?token=" + f.token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (f *flow) call(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+f.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

// readEvent reads messages until one of the given type arrives.
func readEvent(t *testing.T, conn *websocket.Conn, typ notify.Type) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var ev struct {
			Type string         `json:"type"`
			Data map[string]any `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg, &ev))
		if ev.Type == string(typ) {
			return ev.Data
		}
	}
}

func TestFlow(t *testing.T) {
	f := newFlow(t)
	conn := f.dial(t)

	first := readEvent(t, conn, notify.TypeNewOrder)
	orderID, _ := first["orderId"].(string)
	require.NotEmpty(t, orderID)
	assert.Equal(t, "carbonara", first["recipeId"])
	assert.True(t, f.engine.Active(testPlayer))

	status, body := f.call(t, http.MethodPost, "/api/orders/serve", `{"orderId":"`+orderID+`"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, CodeRecipeUnknown, body["code"])

	status, body = f.call(t, http.MethodPost, "/api/lab/experiment", `{"ingredientIds":["oeuf","pates","fromage","creme"]}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["discovered"])
	readEvent(t, conn, notify.TypeRecipeDiscovered)

	status, body = f.call(t, http.MethodPost, "/api/market/buy", `{"purchases":[
		{"ingredientId":"pates","quantity":1},
		{"ingredientId":"creme","quantity":1},
		{"ingredientId":"fromage","quantity":1},
		{"ingredientId":"oeuf","quantity":2}
	]}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 45, body["totalCost"])
	assert.EqualValues(t, 955, body["remainingMoney"])

	status, body = f.call(t, http.MethodPost, "/api/orders/serve", `{"orderId":"`+orderID+`"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 1040, body["money"])
	assert.EqualValues(t, 21, body["satisfaction"])
	assert.EqualValues(t, 85, body["earned"])

	served := readEvent(t, conn, notify.TypeOrderServed)
	assert.Equal(t, orderID, served["orderId"])

	status, body = f.call(t, http.MethodPost, "/api/orders/serve", `{"orderId":"`+orderID+`"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, CodeInvalidState, body["code"])

	status, body = f.call(t, http.MethodGet, "/api/ledger/overview", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 85, body["totalRevenue"])
	assert.EqualValues(t, 45, body["totalExpenses"])
	assert.EqualValues(t, 40, body["netProfit"])

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return !f.engine.Active(testPlayer) }, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, f.engine.PendingTimers(testPlayer))
}

func TestReconnectKeepsSession(t *testing.T) {
	f := newFlow(t)
	old := f.dial(t)
	readEvent(t, old, notify.TypeNewOrder)

	fresh := f.dial(t)
	readEvent(t, fresh, notify.TypeNewOrder)

	// The replaced connection is closed by the server.
	require.NoError(t, old.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err := old.ReadMessage(); err != nil {
			break
		}
	}
	assert.True(t, f.engine.Active(testPlayer))
}
