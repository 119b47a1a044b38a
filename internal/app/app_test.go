package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/kitchen-rush/internal/domain/auth"
	"github.com/xenking/kitchen-rush/pkg/httpmiddleware"
)

const testSecret = "integration-secret"

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

// testConfig loads the defaults the way the binary does and binds a free port.
func testConfig(t *testing.T, backend string) *Config {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("KITCHEN_STORAGE", backend)
	t.Setenv("KITCHEN_AUTH_JWT_SECRET", testSecret)

	cfg, err := loadConfig([]string{})
	require.NoError(t, err)
	cfg.Addr = freeAddr(t)
	cfg.Graceful.ReadinessDelay = 0
	cfg.Graceful.ShutdownTimeout = 5 * time.Second
	return cfg
}

type testServer struct {
	base   string
	token  string
	cancel context.CancelFunc
	done   chan error
}

// startServer runs the whole application in-process until the test ends.
func startServer(t *testing.T, cfg *Config, player string) *testServer {
	t.Helper()
	lg := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(zctx.Base(context.Background(), lg))

	s := &testServer{base: "http://" + cfg.Addr, cancel: cancel, done: make(chan error, 1)}
	go func() { s.done <- Run(ctx, lg, noopTelemetry{}, cfg) }()
	t.Cleanup(func() { s.stop(t) })

	require.Eventually(t, func() bool {
		resp, err := http.Get(s.base + "/readyz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 30*time.Second, 100*time.Millisecond)

	tok, err := auth.NewTokens([]byte(testSecret)).Issue(player, time.Hour)
	require.NoError(t, err)
	s.token = tok
	return s
}

func (s *testServer) stop(t *testing.T) {
	t.Helper()
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	select {
	case err := <-s.done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Error("server did not stop")
	}
}

func (s *testServer) call(t *testing.T, method, path, body string) (*http.Response, any) {
	t.Helper()
	req, err := http.NewRequest(method, s.base+path, strings.NewReader(body))
	require.NoError(t, err)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func (s *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.base, "http") + "/ws?token=" + s.token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readEvent reads messages until one of the given type arrives.
func readEvent(t *testing.T, conn *websocket.Conn, typ string, within time.Duration) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(within)))
	for {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var ev struct {
			Type string         `json:"type"`
			Data map[string]any `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg, &ev))
		if ev.Type == typ {
			return ev.Data
		}
	}
}

func TestRun_Memory(t *testing.T) {
	cfg := testConfig(t, StorageMemory)
	cfg.Game.OrderDuration = time.Second
	cfg.Game.NextAfterExpire = time.Hour
	s := startServer(t, cfg, "chef-mem")

	t.Run("probes", func(t *testing.T) {
		resp, body := s.call(t, http.MethodGet, "/livez", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ok", body.(map[string]any)["status"])
		assert.NotEmpty(t, resp.Header.Get(httpmiddleware.HeaderRequestID))
	})

	t.Run("unauthorized", func(t *testing.T) {
		anon := *s
		anon.token = ""
		resp, body := anon.call(t, http.MethodGet, "/api/orders/active", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "UNAUTHORIZED", body.(map[string]any)["code"])
	})

	t.Run("session", func(t *testing.T) {
		resp, body := s.call(t, http.MethodGet, "/api/orders/active", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, body)

		conn := s.dial(t)
		created := readEvent(t, conn, "new-order", 5*time.Second)
		require.NotEmpty(t, created["orderId"])

		expired := readEvent(t, conn, "order-expired", 5*time.Second)
		assert.Equal(t, created["orderId"], expired["orderId"])

		resp, body = s.call(t, http.MethodGet, "/api/ledger/overview", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		overview := body.(map[string]any)
		assert.EqualValues(t, 950, overview["money"])
		assert.EqualValues(t, 50, overview["totalPenalties"])
		assert.EqualValues(t, 1, overview["ordersExpired"])
	})

	s.stop(t)
}
