package httpmiddleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window.
	Max int
	// Window is the window length.
	Window time.Duration
	// KeyFunc extracts the limiter key. Defaults to ClientKey.
	KeyFunc func(*http.Request) string
}

// window counts requests in the current and the previous fixed window. The
// previous count is weighted by its overlap with the sliding window.
type window struct {
	prevCount float64
	currCount float64
	currStart time.Time
}

type rateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientKey
	}
	return &rateLimiter{
		cfg:     cfg,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// allow records a request for key and reports whether it is within the limit.
func (rl *rateLimiter) allow(key string, now time.Time) (remaining int, resetAt time.Time, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, found := rl.windows[key]
	if !found {
		w = &window{currStart: now.Truncate(rl.cfg.Window)}
		rl.windows[key] = w
	}
	if since := now.Sub(w.currStart); since >= rl.cfg.Window {
		if since >= 2*rl.cfg.Window {
			w.prevCount = 0
		} else {
			w.prevCount = w.currCount
		}
		w.currCount = 0
		w.currStart = now.Truncate(rl.cfg.Window)
	}

	overlap := 1 - now.Sub(w.currStart).Seconds()/rl.cfg.Window.Seconds()
	if overlap < 0 {
		overlap = 0
	}
	count := w.prevCount*overlap + w.currCount
	resetAt = w.currStart.Add(rl.cfg.Window)
	if count >= float64(rl.cfg.Max) {
		return 0, resetAt, false
	}

	w.currCount++
	remaining = int(float64(rl.cfg.Max) - count - 1)
	return max(remaining, 0), resetAt, true
}

// cleanup drops keys idle for two windows.
func (rl *rateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, w := range rl.windows {
		if now.Sub(w.currStart) >= 2*rl.cfg.Window {
			delete(rl.windows, key)
		}
	}
}

func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

// RateLimit limits requests per key with a sliding window. Rejected requests
// get 429 and a Retry-After header. Every response carries the X-RateLimit-*
// headers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newRateLimiter(cfg).middleware
}

// RateLimitWithCleanup is RateLimit plus a goroutine that evicts idle keys
// every two windows until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	rl := newRateLimiter(cfg)
	go func() {
		ticker := time.NewTicker(2 * rl.cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				rl.cleanup(now)
			}
		}
	}()
	return rl.middleware
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := rl.now()
		remaining, resetAt, ok := rl.allow(rl.cfg.KeyFunc(r), now)

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
		if !ok {
			retry := max(resetAt.Sub(now), 0)
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientKey limits a player by their bearer token when present, so players
// behind one NAT do not share a budget, and otherwise by client IP. Tokens are
// hashed before they are used as map keys.
func ClientKey(r *http.Request) string {
	tok := r.URL.Query().Get("token")
	if v := r.Header.Get("Authorization"); v != "" {
		tok = v
	}
	if tok != "" {
		sum := sha256.Sum256([]byte(tok))
		return "tok:" + hex.EncodeToString(sum[:8])
	}
	return "ip:" + ClientIP(r)
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// remote address host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
