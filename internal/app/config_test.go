package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("KITCHEN_STORAGE", "memory")
	t.Setenv("KITCHEN_AUTH_JWT_SECRET", "s3cret")

	cfg, err := loadConfig([]string{})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, 60*time.Second, cfg.Game.OrderDuration)
	assert.Equal(t, 3*time.Second, cfg.Game.NextAfterServe)
	assert.Equal(t, 5*time.Second, cfg.Game.NextAfterExpire)
	assert.Equal(t, "kitchen.events", cfg.AMQP.Exchange)
	assert.Empty(t, cfg.AMQP.URL)

	ec, err := cfg.Game.Engine()
	require.NoError(t, err)
	assert.Equal(t, "50", ec.PenaltyMoney.String())

	rules, err := cfg.Game.Rules()
	require.NoError(t, err)
	assert.Equal(t, "1000", rules.StartingBalance.String())
	assert.Equal(t, 20, rules.StartingSatisfaction)
	assert.Equal(t, 10, rules.PenaltySatisfaction)
	assert.Equal(t, 1, rules.SaleSatisfaction)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("KITCHEN_AUTH_JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "postgres://kitchen@db/kitchen")
	t.Setenv("PORT", "9000")

	cfg, err := loadConfig([]string{})
	require.NoError(t, err)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, "postgres://kitchen@db/kitchen", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Storage: StorageMemory,
			Auth:    AuthConfig{JWTSecret: "x"},
			Game: GameConfig{
				OrderDuration:   time.Minute,
				PenaltyMoney:    "50",
				StartingBalance: "1000",
			},
		}
	}
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"Valid", func(*Config) {}, ""},
		{"PostgresWithoutURL", func(c *Config) { c.Storage = StoragePostgres }, "database URL is required"},
		{"UnknownStorage", func(c *Config) { c.Storage = "redis" }, `unknown storage "redis"`},
		{"NoSecret", func(c *Config) { c.Auth.JWTSecret = "" }, "jwt secret is required"},
		{"BadPenalty", func(c *Config) { c.Game.PenaltyMoney = "lots" }, "invalid penalty money"},
		{"NegativeBalance", func(c *Config) { c.Game.StartingBalance = "-1" }, "invalid starting balance"},
		{"ZeroDuration", func(c *Config) { c.Game.OrderDuration = 0 }, "order duration must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}
