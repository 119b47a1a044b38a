package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kitchen-rush/internal/domain/ledger"
	"github.com/xenking/kitchen-rush/internal/engine"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config holds the complete application configuration, loadable from
// environment variables (KITCHEN_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage     string `default:"postgres" usage:"Storage backend: postgres or memory"`
	DatabaseURL string `usage:"PostgreSQL connection URL (KITCHEN_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Game        GameConfig
	Auth        AuthConfig
	AMQP        AMQPConfig
	WebSocket   WebSocketConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// GameConfig holds the timing and economy constants of a session.
type GameConfig struct {
	OrderDuration        time.Duration `default:"60s" usage:"How long a customer waits for an order"`
	NextAfterServe       time.Duration `default:"3s" usage:"Delay before the next order after a serve"`
	NextAfterExpire      time.Duration `default:"5s" usage:"Delay before the next order after an expiry"`
	PenaltyMoney         string        `default:"50" usage:"Money charged for an expired order"`
	PenaltySatisfaction  int           `default:"10" usage:"Satisfaction lost for an expired order"`
	SaleSatisfaction     int           `default:"1" usage:"Satisfaction gained per serve"`
	StartingBalance      string        `default:"1000" usage:"Money of a new player"`
	StartingSatisfaction int           `default:"20" usage:"Satisfaction of a new player"`
	CallbackRetries      int           `default:"3" usage:"Retries of a failed timer step"`
	RetryDelay           time.Duration `default:"200ms" usage:"Pause between timer step retries"`
	CallbackTimeout      time.Duration `default:"10s" usage:"Deadline of one timer callback"`
	HistoryLimit         int           `default:"50" usage:"Default size of the order history page"`
}

// AuthConfig configures player token verification.
type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET" usage:"HMAC secret of player tokens (KITCHEN_AUTH_JWT_SECRET)" flag:"jwt-secret"`
}

// AMQPConfig configures the optional event mirror.
type AMQPConfig struct {
	URL      string `usage:"RabbitMQ URL; empty disables the event mirror" flag:"amqp-url"`
	Exchange string `default:"kitchen.events" usage:"Fanout exchange for game events"`
}

// WebSocketConfig configures the realtime channel.
type WebSocketConfig struct {
	PingInterval time.Duration `default:"30s" usage:"Ping interval of idle connections"`
	Buffer       int           `default:"64" usage:"Events queued per connection before dropping"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"300" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS and WebSocket origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform defaults and validates it.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

func loadConfig(args []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KITCHEN",
		Args:      args,
		Files:     []string{"config.yaml", "/etc/kitchen/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided DATABASE_URL and PORT onto the
// KITCHEN_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate reports configuration that cannot start the service.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set KITCHEN_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown storage %q", c.Storage)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("jwt secret is required: set KITCHEN_AUTH_JWT_SECRET")
	}
	if _, err := c.Game.Engine(); err != nil {
		return err
	}
	if _, err := c.Game.Rules(); err != nil {
		return err
	}
	return nil
}

// Engine converts the game section into engine settings.
func (g GameConfig) Engine() (engine.Config, error) {
	penalty, err := decimal.NewFromString(g.PenaltyMoney)
	if err != nil || penalty.IsNegative() {
		return engine.Config{}, errors.Errorf("invalid penalty money %q", g.PenaltyMoney)
	}
	if g.OrderDuration <= 0 {
		return engine.Config{}, errors.New("order duration must be positive")
	}
	return engine.Config{
		OrderDuration:   g.OrderDuration,
		NextAfterServe:  g.NextAfterServe,
		NextAfterExpire: g.NextAfterExpire,
		PenaltyMoney:    penalty,
		CallbackRetries: g.CallbackRetries,
		RetryDelay:      g.RetryDelay,
		CallbackTimeout: g.CallbackTimeout,
		HistoryLimit:    g.HistoryLimit,
	}, nil
}

// Rules converts the game section into ledger rules.
func (g GameConfig) Rules() (ledger.Rules, error) {
	balance, err := decimal.NewFromString(g.StartingBalance)
	if err != nil || balance.IsNegative() {
		return ledger.Rules{}, errors.Errorf("invalid starting balance %q", g.StartingBalance)
	}
	return ledger.Rules{
		StartingBalance:      balance,
		StartingSatisfaction: g.StartingSatisfaction,
		SaleSatisfaction:     g.SaleSatisfaction,
		PenaltySatisfaction:  g.PenaltySatisfaction,
	}, nil
}
