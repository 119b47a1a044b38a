// Package engine runs game sessions: it generates timed orders, resolves them
// by serve or expiry exactly once, applies the economy and pushes events to
// the player.
package engine

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kitchen-rush/internal/domain/catalog"
	"github.com/xenking/kitchen-rush/internal/domain/ledger"
	"github.com/xenking/kitchen-rush/internal/domain/order"
	"github.com/xenking/kitchen-rush/internal/notify"
	"github.com/xenking/kitchen-rush/internal/timer"
)

// Config holds the session timing and penalty constants.
type Config struct {
	OrderDuration   time.Duration
	NextAfterServe  time.Duration
	NextAfterExpire time.Duration
	PenaltyMoney    decimal.Decimal

	// CallbackRetries is how many times a failed timer step is retried.
	CallbackRetries int
	RetryDelay      time.Duration
	CallbackTimeout time.Duration

	HistoryLimit int
}

// DefaultConfig returns the reference timings: 60s orders, next order 3s after
// a serve and 5s after an expiry, 50 money penalty.
func DefaultConfig() Config {
	return Config{
		OrderDuration:   60 * time.Second,
		NextAfterServe:  3 * time.Second,
		NextAfterExpire: 5 * time.Second,
		PenaltyMoney:    decimal.NewFromInt(50),
		CallbackRetries: 3,
		RetryDelay:      200 * time.Millisecond,
		CallbackTimeout: 10 * time.Second,
		HistoryLimit:    50,
	}
}

// Options carries the optional collaborators of an Engine.
type Options struct {
	Config         Config
	Logger         *zap.Logger
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
	// Pick returns a random index in [0, n). Defaults to math/rand/v2.
	Pick func(n int) int
	Now  func() time.Time
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.MeterProvider == nil {
		o.MeterProvider = metricnoop.NewMeterProvider()
	}
	if o.TracerProvider == nil {
		o.TracerProvider = tracenoop.NewTracerProvider()
	}
	if o.Pick == nil {
		o.Pick = rand.IntN
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Config.HistoryLimit <= 0 {
		o.Config.HistoryLimit = 50
	}
	if o.Config.CallbackTimeout <= 0 {
		o.Config.CallbackTimeout = 10 * time.Second
	}
}

// session is the per-player state guarded by mu. Every mutating workflow of
// a player runs while holding mu.
type session struct {
	mu     sync.Mutex
	active bool
	over   bool
	// epoch changes on every join so stale next-order timers are ignored.
	epoch uint64
}

// Engine orchestrates sessions for all players.
type Engine struct {
	cfg       Config
	catalog   catalog.Repository
	orders    order.Repository
	lifecycle *order.Lifecycle
	ledger    *ledger.Service
	timers    *timer.Registry
	notifier  notify.Notifier
	pick      func(n int) int
	now       func() time.Time
	lg        *zap.Logger
	tracer    trace.Tracer
	metrics   metrics

	mu       sync.Mutex
	sessions map[string]*session
}

// New creates an Engine.
func New(
	cat catalog.Repository,
	orders order.Repository,
	ledgerSvc *ledger.Service,
	notifier notify.Notifier,
	opts Options,
) (*Engine, error) {
	opts.setDefaults()
	if notifier == nil {
		notifier = notify.Nop{}
	}

	m, err := newMetrics(opts.MeterProvider.Meter("github.com/xenking/kitchen-rush/internal/engine"))
	if err != nil {
		return nil, errors.Wrap(err, "create metrics")
	}

	return &Engine{
		cfg:       opts.Config,
		catalog:   cat,
		orders:    orders,
		lifecycle: order.NewLifecycle(orders).WithClock(opts.Now),
		ledger:    ledgerSvc,
		timers:    timer.NewRegistry(),
		notifier:  notifier,
		pick:      opts.Pick,
		now:       opts.Now,
		lg:        opts.Logger.Named("engine"),
		tracer:    opts.TracerProvider.Tracer("github.com/xenking/kitchen-rush/internal/engine"),
		metrics:   m,
		sessions:  make(map[string]*session),
	}, nil
}

// PendingTimers returns how many timers the player has scheduled.
func (e *Engine) PendingTimers(playerID string) int {
	return e.timers.Pending(playerID)
}

// TimerCount returns the number of scheduled timers across all players.
func (e *Engine) TimerCount() int {
	return e.timers.Len()
}

// Close cancels every timer of every player.
func (e *Engine) Close() {
	e.mu.Lock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		s := e.session(id)
		s.mu.Lock()
		s.active = false
		e.timers.CancelAll(id)
		s.mu.Unlock()
	}
}

func (e *Engine) session(playerID string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[playerID]
	if !ok {
		s = &session{}
		e.sessions[playerID] = s
	}
	return s
}

func (e *Engine) startSpan(ctx context.Context, name, playerID string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("player.id", playerID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func orderKey(orderID string) string { return "order:" + orderID }

func nextKey(playerID string) string { return "next:" + playerID }
