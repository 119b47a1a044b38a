// Package health serves liveness and readiness probes.
//
// Every check runs in its own goroutine on a fixed interval. A check turns
// unhealthy after failureThreshold consecutive failures and healthy again
// after successThreshold consecutive passes, so a single slow ping does not
// flap the probe.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// Probe selects which endpoint a check contributes to.
type Probe int

const (
	// Liveness checks decide whether the process should be restarted.
	Liveness Probe = iota
	// Readiness checks decide whether the process should receive traffic.
	Readiness
)

const (
	failureThreshold = 3
	successThreshold = 1
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	// Read by handlers, written by run.
	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	// Owned by the single goroutine calling run.
	fails int
	oks   int
}

func (c *check) err() error {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	c.lastErr.Store(&err)
	if err != nil {
		c.oks = 0
		c.fails++
		if c.fails >= failureThreshold {
			c.healthy.Store(false)
		}
		return
	}
	c.fails = 0
	c.oks++
	if c.oks >= successThreshold {
		c.healthy.Store(true)
	}
}

// Health holds the checks of a service.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks map[Probe][]*check
	cancel context.CancelFunc
}

// New creates a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{checks: make(map[Probe][]*check)}
}

// Add registers a check on the probe. Checks start out healthy.
func (h *Health) Add(probe Probe, name string, timeout time.Duration, fn CheckFunc) {
	c := &check{name: name, timeout: timeout, fn: fn}
	c.healthy.Store(true)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[probe] = append(h.checks[probe], c)
}

// AddLivenessCheck is Add(Liveness, ...).
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.Add(Liveness, name, timeout, fn)
}

// AddReadinessCheck is Add(Readiness, ...).
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.Add(Readiness, name, timeout, fn)
}

func (h *Health) snapshot(probe Probe) []*check {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*check(nil), h.checks[probe]...)
}

// Start runs every registered check immediately and then on each interval
// until Stop or ctx cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()

	for _, probe := range []Probe{Liveness, Readiness} {
		for _, c := range h.snapshot(probe) {
			go func() {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				c.run(ctx)
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						c.run(ctx)
					}
				}
			}()
		}
	}
}

// Stop cancels the check goroutines. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady marks the service ready or draining.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	for _, c := range h.snapshot(Readiness) {
		if !c.healthy.Load() {
			return false
		}
	}
	return true
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeResponse(w, failures(h.snapshot(Liveness)))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	f := failures(h.snapshot(Readiness))
	if !h.ready.Load() {
		f["_readiness"] = "service is not ready"
	}
	writeResponse(w, f)
}

// failures maps each unhealthy check to its last error.
func failures(checks []*check) map[string]string {
	out := make(map[string]string)
	for _, c := range checks {
		if c.healthy.Load() {
			continue
		}
		if err := c.err(); err != nil {
			out[c.name] = err.Error()
		} else {
			out[c.name] = "check is unhealthy"
		}
	}
	return out
}

// writeResponse replies {"status":"ok"} or 503 with the failing checks.
func writeResponse(w http.ResponseWriter, failed map[string]string) {
	status := http.StatusOK
	if len(failed) > 0 {
		status = http.StatusServiceUnavailable
	}

	names := make([]string, 0, len(failed))
	for name := range failed {
		names = append(names, name)
	}
	sort.Strings(names)

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		if len(failed) == 0 {
			e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
			return
		}
		e.Field("status", func(e *jx.Encoder) { e.Str("unhealthy") })
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, name := range names {
					e.Field(name, func(e *jx.Encoder) { e.Str(failed[name]) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
