package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/promptroute/promptroute/internal/config"
)

func TestLoad(t *testing.T) {
	t.Run("should load config with defaults", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost:5432/promptroute")
		t.Setenv("ENCRYPTION_KEY", "test-passphrase")

		cfg, err := config.Load()

		require.NoError(t, err)
		require.NotNil(t, cfg)

		require.Equal(t, 8080, cfg.Server.Port)
		require.Equal(t, 30, cfg.Server.ReadTimeout)
		require.Equal(t, 120, cfg.Server.WriteTimeout)
		require.Equal(t, 60, cfg.Providers.Timeout)
		require.Equal(t, "https://api.openai.com/v1", cfg.Providers.OpenAIBaseURL)
		require.Equal(t, "https://api.anthropic.com", cfg.Providers.AnthropicBaseURL)
		require.Equal(t, 50, cfg.Database.MaxOpenConns)
		require.Empty(t, cfg.Redis.Addr) // cache disabled by default
		require.False(t, cfg.Access.EnforceJoinLimit)
	})

	t.Run("should load config from environment variables", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://db:5432/gw")
		t.Setenv("ENCRYPTION_KEY", "another-passphrase")
		t.Setenv("SERVER_PORT", "9000")
		t.Setenv("PROVIDER_TIMEOUT", "120")
		t.Setenv("REDIS_ADDR", "redis:6379")
		t.Setenv("REDIS_KEY_TTL", "600")
		t.Setenv("ACCESS_ENFORCE_JOIN_LIMIT", "true")

		cfg, err := config.Load()

		require.NoError(t, err)
		require.Equal(t, 9000, cfg.Server.Port)
		require.Equal(t, "postgres://db:5432/gw", cfg.Database.DSN)
		require.Equal(t, "another-passphrase", cfg.Crypto.EncryptionKey)
		require.Equal(t, 120, cfg.Providers.Timeout)
		require.Equal(t, "redis:6379", cfg.Redis.Addr)
		require.Equal(t, 600, cfg.Redis.TTL)
		require.True(t, cfg.Access.EnforceJoinLimit)
	})

	t.Run("missing required settings fail", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "placeholder") // restore on cleanup
		t.Setenv("ENCRYPTION_KEY", "placeholder")
		require.NoError(t, os.Unsetenv("DATABASE_URL"))
		require.NoError(t, os.Unsetenv("ENCRYPTION_KEY"))

		_, err := config.Load()

		require.Error(t, err)
	})
}
