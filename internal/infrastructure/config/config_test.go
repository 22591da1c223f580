package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"GRID_APP_NAME":                  os.Getenv("GRID_APP_NAME"),
		"GRID_APP_ENV":                   os.Getenv("GRID_APP_ENV"),
		"GRID_APP_PORT":                  os.Getenv("GRID_APP_PORT"),
		"GRID_DATABASE_HOST":             os.Getenv("GRID_DATABASE_HOST"),
		"GRID_DATABASE_PASSWORD":         os.Getenv("GRID_DATABASE_PASSWORD"),
		"GRID_DATABASE_SSLMODE":          os.Getenv("GRID_DATABASE_SSLMODE"),
		"GRID_BILLING_CYCLE_SECONDS":     os.Getenv("GRID_BILLING_CYCLE_SECONDS"),
		"GRID_BILLING_BUCKETS":           os.Getenv("GRID_BILLING_BUCKETS"),
		"GRID_PRICING_COMPUTE_PRICE":     os.Getenv("GRID_PRICING_COMPUTE_PRICE"),
		"GRID_FEED_MIN":                  os.Getenv("GRID_FEED_MIN"),
		"GRID_FEED_MAX":                  os.Getenv("GRID_FEED_MAX"),
		"GRID_DATABASE_MAX_IDLE_CONNS":   os.Getenv("GRID_DATABASE_MAX_IDLE_CONNS"),
		"GRID_DATABASE_MAX_OPEN_CONNS":   os.Getenv("GRID_DATABASE_MAX_OPEN_CONNS"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "gridmarket-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, uint64(3600), cfg.Billing.CycleSeconds)
		assert.Equal(t, 600, cfg.Billing.Buckets)
		assert.Equal(t, uint32(336), cfg.Billing.GraceCycles)
		assert.Equal(t, uint32(24), cfg.Billing.DistributionCycles)
		assert.Equal(t, uint64(600_000), cfg.Pricing.ComputePrice)
		assert.Equal(t, uint32(500), cfg.Feed.Average)
	})

	t.Run("loads values from environment variables with GRID prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("GRID_APP_NAME", "test-app")
		os.Setenv("GRID_APP_PORT", "9000")
		os.Setenv("GRID_DATABASE_HOST", "testdb.local")
		os.Setenv("GRID_BILLING_CYCLE_SECONDS", "7200")
		os.Setenv("GRID_PRICING_COMPUTE_PRICE", "750000")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, uint64(7200), cfg.Billing.CycleSeconds)
		assert.Equal(t, uint64(750_000), cfg.Pricing.ComputePrice)
	})

	t.Run("rejects a tick interval that rounds to zero", func(t *testing.T) {
		clearEnv()
		os.Setenv("GRID_BILLING_CYCLE_SECONDS", "10")
		os.Setenv("GRID_BILLING_BUCKETS", "600")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects an inverted feed clamp", func(t *testing.T) {
		clearEnv()
		os.Setenv("GRID_FEED_MIN", "2000")
		os.Setenv("GRID_FEED_MAX", "1000")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("production requires a password and ssl", func(t *testing.T) {
		clearEnv()
		os.Setenv("GRID_APP_ENV", "production")

		_, err := Load()
		require.Error(t, err)

		os.Setenv("GRID_DATABASE_PASSWORD", "secret")
		_, err = Load()
		require.Error(t, err) // sslmode still disabled

		os.Setenv("GRID_DATABASE_SSLMODE", "require")
		_, err = Load()
		assert.NoError(t, err)
	})
}
