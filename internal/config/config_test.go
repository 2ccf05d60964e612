package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"service-dispatch/internal/config"
)

const secret = "0123456789abcdef0123"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "STORAGE_DRIVER", "POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD",
		"POSTGRES_DB", "DISPATCH_OFFER_TTL", "DISPATCH_EXPIRY_INTERVAL", "DISPATCH_AUTO_MATCH",
		"AUTH_MODE", "AUTH_JWT_SECRET", "KAFKA_BROKERS", "EVENTS_MAX_ATTEMPTS", "RATE_LIMIT_ENABLED",
		"RATE_LIMIT_RATE", "RATE_LIMIT_BURST", "LOG_LEVEL", "LOG_FILE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTH_JWT_SECRET", secret)

	cfg, err := config.LoadArgs(nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	require.Equal(t, config.DefaultPort(), cfg.Port)
	require.Equal(t, config.StorageMemory, cfg.Storage)
	require.Equal(t, config.DefaultDB(), cfg.DB)
	require.Equal(t, 2*time.Minute, cfg.Dispatch.OfferTTL)
	require.Equal(t, 10*time.Second, cfg.Dispatch.ExpiryInterval)
	require.False(t, cfg.Dispatch.AutoMatch)
	require.Equal(t, config.AuthJWT, cfg.Auth.Mode)
	require.Empty(t, cfg.Kafka.Brokers)
	require.Equal(t, config.DefaultRateLimit(), cfg.RateLimit)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE_DRIVER", "Postgres")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_PORT", "15432")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p@ss")
	t.Setenv("POSTGRES_DB", "dispatch")
	t.Setenv("DISPATCH_OFFER_TTL", "45s")
	t.Setenv("DISPATCH_AUTO_MATCH", "true")
	t.Setenv("AUTH_MODE", "dev")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg, err := config.LoadArgs(nil)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, config.StoragePostgres, cfg.Storage)
	require.Equal(t, "postgres://u:p%40ss@db:15432/dispatch?sslmode=disable", cfg.DB.DSN())
	require.Equal(t, 45*time.Second, cfg.Dispatch.OfferTTL)
	require.True(t, cfg.Dispatch.AutoMatch)
	require.Equal(t, config.AuthDev, cfg.Auth.Mode)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	require.False(t, cfg.RateLimit.Enabled)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("AUTH_MODE", "dev")

	cfg, err := config.LoadArgs([]string{"--port=7070", "--auto-match", "--log-level=debug"})
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Port)
	require.True(t, cfg.Dispatch.AutoMatch)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"port out of range":       {"PORT": "70000", "AUTH_MODE": "dev"},
		"port not a number":       {"PORT": "eighty", "AUTH_MODE": "dev"},
		"postgres port":           {"STORAGE_DRIVER": "postgres", "POSTGRES_PORT": "not-a-number", "AUTH_MODE": "dev"},
		"unknown storage":         {"STORAGE_DRIVER": "sqlite", "AUTH_MODE": "dev"},
		"short jwt secret":        {"AUTH_MODE": "jwt", "AUTH_JWT_SECRET": "short"},
		"unknown auth mode":       {"AUTH_MODE": "basic"},
		"bad offer ttl":           {"DISPATCH_OFFER_TTL": "soon", "AUTH_MODE": "dev"},
		"zero expiry interval":    {"DISPATCH_EXPIRY_INTERVAL": "0s", "AUTH_MODE": "dev"},
		"zero attempts":           {"EVENTS_MAX_ATTEMPTS": "0", "AUTH_MODE": "dev"},
		"bad log level":           {"LOG_LEVEL": "loud", "AUTH_MODE": "dev"},
		"rate limit without rate": {"RATE_LIMIT_RATE": "0", "AUTH_MODE": "dev"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range vars {
				t.Setenv(k, v)
			}
			cfg, err := config.LoadArgs(nil)
			require.Error(t, err)
			require.Nil(t, cfg)
		})
	}
}

func TestLoad_FlagsParseError(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTH_MODE", "dev")

	cfg, err := config.LoadArgs([]string{"--port=not-a-number"})

	require.Error(t, err)
	require.Nil(t, cfg)
	require.Contains(t, err.Error(), "parse flags")
}
