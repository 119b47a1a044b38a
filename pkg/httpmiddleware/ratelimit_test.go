package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func request(remoteAddr string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/orders/active", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 3, Window: time.Minute})(okHandler())

	for i := range 3 {
		w := serve(handler, request("192.168.1.1:12345", nil))
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}

	w := serve(handler, request("192.168.1.1:999", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "RATE_LIMITED", body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])

	assert.Equal(t, http.StatusOK, serve(handler, request("192.168.1.2:1", nil)).Code, "other client")
}

func TestRateLimitKeys(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	// Two players behind one address.
	a := map[string]string{"Authorization": "Bearer token-a"}
	b := map[string]string{"Authorization": "Bearer token-b"}
	assert.Equal(t, http.StatusOK, serve(handler, request("10.0.0.1:1", a)).Code)
	assert.Equal(t, http.StatusOK, serve(handler, request("10.0.0.1:2", b)).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(handler, request("10.0.0.9:3", a)).Code)

	// X-Forwarded-For wins over the remote address.
	xff := map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}
	assert.Equal(t, http.StatusOK, serve(handler, request("192.168.1.1:4444", xff)).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(handler, request("192.168.1.2:5555", xff)).Code)
}

func TestClientKey(t *testing.T) {
	ws := httptest.NewRequest(http.MethodGet, "/ws?token=abc", nil)
	hdr := request("1.2.3.4:5", map[string]string{"Authorization": "abc"})
	assert.Equal(t, ClientKey(ws), ClientKey(hdr))
	assert.NotContains(t, ClientKey(ws), "abc")

	assert.Equal(t, "ip:1.2.3.4", ClientKey(request("1.2.3.4:5", nil)))
	assert.Equal(t, "ip:9.9.9.9", ClientKey(request("1.2.3.4:5", map[string]string{"X-Real-IP": "9.9.9.9"})))
}

func TestRateLimitSlidingWindow(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 4, Window: time.Minute})
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for range 4 {
		_, _, ok := rl.allow("k", start)
		require.True(t, ok)
	}
	_, _, ok := rl.allow("k", start.Add(30*time.Second))
	assert.False(t, ok)

	// Halfway into the next window half of the previous count still weighs in.
	rem, _, ok := rl.allow("k", start.Add(90*time.Second))
	assert.True(t, ok)
	assert.Equal(t, 1, rem)
	_, _, ok = rl.allow("k", start.Add(90*time.Second))
	assert.True(t, ok)
	_, _, ok = rl.allow("k", start.Add(90*time.Second))
	assert.False(t, ok)

	// Two idle windows forget everything.
	rem, _, ok = rl.allow("k", start.Add(5*time.Minute))
	assert.True(t, ok)
	assert.Equal(t, 3, rem)
}

func TestRateLimitCleanup(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.allow("a", now)
	rl.allow("b", now.Add(2*time.Minute))

	rl.cleanup(now.Add(2*time.Minute + time.Second))
	assert.Equal(t, 1, rl.size())
}
