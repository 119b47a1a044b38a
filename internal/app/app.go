package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kitchen-rush/internal/domain/auth"
	"github.com/xenking/kitchen-rush/internal/domain/ledger"
	"github.com/xenking/kitchen-rush/internal/engine"
	"github.com/xenking/kitchen-rush/internal/handler"
	"github.com/xenking/kitchen-rush/internal/notify"
	"github.com/xenking/kitchen-rush/pkg/health"
	"github.com/xenking/kitchen-rush/pkg/httpmiddleware"
)

// maxTimers bounds the scheduled timers before liveness fails. Each active
// player holds a handful.
const maxTimers = 100_000

// Telemetry provides the OpenTelemetry providers. *app.Telemetry of
// go-faster/sdk implements it.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)

	engineCfg, err := cfg.Game.Engine()
	if err != nil {
		return err
	}
	rules, err := cfg.Game.Rules()
	if err != nil {
		return err
	}

	store, err := openStorage(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	healthSvc := health.New()
	if store.pool != nil {
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(store.pool))
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(50_000))

	// Notifications: WebSocket hub, plus the AMQP mirror when configured.
	hub := notify.NewHub(cfg.WebSocket.Buffer, lg.Named("hub"))
	notifiers := notify.Fanout{hub}
	if cfg.AMQP.URL != "" {
		mirror, err := notify.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, lg.Named("amqp"))
		if err != nil {
			return errors.Wrap(err, "dial amqp")
		}
		defer func() { _ = mirror.Close() }()
		notifiers = append(notifiers, mirror)
		healthSvc.AddReadinessCheck("amqp", time.Second, health.PingCheck(mirror))
	}

	eng, err := engine.New(
		store.catalog,
		store.orders,
		ledger.NewService(store.ledger, rules),
		notifiers,
		engine.Options{
			Config:         engineCfg,
			Logger:         lg,
			MeterProvider:  m.MeterProvider(),
			TracerProvider: m.TracerProvider(),
		},
	)
	if err != nil {
		return errors.Wrap(err, "create engine")
	}
	defer eng.Close()
	healthSvc.AddLivenessCheck("timers", time.Second, health.BacklogCheck("timer", eng.TimerCount, maxTimers))

	h := handler.New(handler.Config{
		WSPingInterval:   cfg.WebSocket.PingInterval,
		WSAllowedOrigins: cfg.CORS.Origins,
	}, eng, hub, auth.NewTokens([]byte(cfg.Auth.JWTSecret)))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.Instrument("kitchen-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				ExposeHeaders:    []string{httpmiddleware.HeaderRequestID},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
		),
	}

	healthSvc.Start(ctx, 10*time.Second)
	defer healthSvc.Stop()
	healthSvc.SetReady(true)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		// Graceful shutdown: fail readiness, drain, then stop.
		<-gCtx.Done()
		healthSvc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()
		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		err := server.Shutdown(shutdownCtx)
		// Hijacked WebSocket connections are not tracked by Shutdown.
		hub.Close()
		if err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return g.Wait()
}
