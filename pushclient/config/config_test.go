package config_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweat24/go-push-client/pushclient/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	logger := newTestLogger()

	baseConfig := func() *config.Config {
		return &config.Config{
			ListenAddr: ":8080",
			UserID:     7,
			Channel:    "auto",
			Backend:    config.BackendConfig{BaseURL: "https://api.sweat24.gr", AuthToken: "base-token"},
			Bridge:     config.BridgeConfig{BaseURL: "http://localhost:7070"},
		}
	}

	t.Run("Success - All overrides applied", func(t *testing.T) {
		cfg := baseConfig()

		t.Setenv("PORT", "9090")
		t.Setenv("USER_ID", "42")
		t.Setenv("PUSH_CHANNEL", "web")
		t.Setenv("BACKEND_URL", "https://staging.sweat24.gr")
		t.Setenv("AUTH_TOKEN", "env-token")
		t.Setenv("BRIDGE_URL", "http://localhost:9999")
		t.Setenv("VAPID_PUBLIC_KEY", "env-vapid")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, ":9090", finalCfg.ListenAddr)
		assert.Equal(t, int64(42), finalCfg.UserID)
		assert.Equal(t, "web", finalCfg.Channel)
		assert.Equal(t, "https://staging.sweat24.gr", finalCfg.Backend.BaseURL)
		assert.Equal(t, "env-token", finalCfg.Backend.AuthToken)
		assert.Equal(t, "http://localhost:9999", finalCfg.Bridge.BaseURL)
		assert.Equal(t, "env-vapid", finalCfg.VapidPublicKey)
	})

	t.Run("Success - Defaults preserved and filled", func(t *testing.T) {
		cfg := baseConfig()
		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, int64(7), finalCfg.UserID)
		assert.Equal(t, "base-token", finalCfg.Backend.AuthToken)
		assert.Equal(t, 3, finalCfg.Retry.MaxAttempts)
		assert.Equal(t, 2*time.Second, finalCfg.Retry.RetryDelay)
		assert.Equal(t, 10*time.Second, finalCfg.Retry.RequestTimeout)
		assert.Equal(t, 5*time.Second, finalCfg.Retry.SubmitRetryDelay)
		assert.Equal(t, 30*time.Second, finalCfg.Retry.PermissionPollGap)
	})

	t.Run("Redis overrides enable the cache", func(t *testing.T) {
		cfg := baseConfig()
		t.Setenv("REDIS_ADDR", "localhost:6379")
		t.Setenv("REDIS_DB", "2")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)
		assert.True(t, finalCfg.Redis.Enabled)
		assert.Equal(t, "localhost:6379", finalCfg.Redis.Addr)
		assert.Equal(t, 2, finalCfg.Redis.DB)
	})

	t.Run("CORS origins are split and trimmed", func(t *testing.T) {
		cfg := baseConfig()
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.sweat24.gr, https://admin.sweat24.gr ,")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)
		assert.Equal(t, []string{"https://app.sweat24.gr", "https://admin.sweat24.gr"}, finalCfg.CorsConfig.AllowedOrigins)
	})

	t.Run("Validation Failure - Missing UserID", func(t *testing.T) {
		cfg := baseConfig()
		cfg.UserID = 0
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - Missing backend URL", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Backend.BaseURL = ""
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - Bad channel", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Channel = "carrier-pigeon"
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - Bad USER_ID env", func(t *testing.T) {
		cfg := baseConfig()
		t.Setenv("USER_ID", "not-a-number")
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})
}
