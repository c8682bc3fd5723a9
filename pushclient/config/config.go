package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type BackendConfig struct {
	BaseURL   string
	AuthToken string
}

type BridgeConfig struct {
	BaseURL string
}

type RetryConfig struct {
	MaxAttempts       int
	RetryDelay        time.Duration
	RequestTimeout    time.Duration
	SubmitRetryDelay  time.Duration
	PermissionPollGap time.Duration
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ListenAddr string
	UserID     int64

	// Channel forces the delivery channel. "auto" detects from the shell's
	// reported platform.
	Channel string

	Backend        BackendConfig
	Bridge         BridgeConfig
	VapidPublicKey string

	CorsConfig middleware.CorsConfig
	Redis      RedisConfig
	Retry      RetryConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("USER_ID"); val != "" {
		id, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid USER_ID %q: %w", val, err)
		}
		logger.Debug("Overriding config value", "key", "USER_ID", "source", "env")
		cfg.UserID = id
	}
	if val := os.Getenv("PUSH_CHANNEL"); val != "" {
		logger.Debug("Overriding config value", "key", "PUSH_CHANNEL", "source", "env")
		cfg.Channel = val
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		logger.Debug("Overriding config value", "key", "BACKEND_URL", "source", "env")
		cfg.Backend.BaseURL = val
	}
	if val := os.Getenv("AUTH_TOKEN"); val != "" {
		cfg.Backend.AuthToken = val
	}
	if val := os.Getenv("BRIDGE_URL"); val != "" {
		logger.Debug("Overriding config value", "key", "BRIDGE_URL", "source", "env")
		cfg.Bridge.BaseURL = val
	}
	if val := os.Getenv("VAPID_PUBLIC_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "VAPID_PUBLIC_KEY", "source", "env")
		cfg.VapidPublicKey = val
	}

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 2. Final Validation
	if cfg.UserID == 0 {
		return nil, fmt.Errorf("user_id is required (set via YAML or USER_ID env var)")
	}
	if cfg.Backend.BaseURL == "" {
		return nil, fmt.Errorf("backend base_url is required (set via YAML or BACKEND_URL env var)")
	}
	if cfg.Bridge.BaseURL == "" {
		return nil, fmt.Errorf("bridge base_url is required (set via YAML or BRIDGE_URL env var)")
	}
	switch cfg.Channel {
	case "", "auto":
		cfg.Channel = "auto"
	case "native", "web":
	default:
		return nil, fmt.Errorf("channel must be auto, native or web, got %q", cfg.Channel)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.RetryDelay <= 0 {
		cfg.Retry.RetryDelay = 2 * time.Second
	}
	if cfg.Retry.RequestTimeout <= 0 {
		cfg.Retry.RequestTimeout = 10 * time.Second
	}
	if cfg.Retry.SubmitRetryDelay <= 0 {
		cfg.Retry.SubmitRetryDelay = 5 * time.Second
	}
	if cfg.Retry.PermissionPollGap <= 0 {
		cfg.Retry.PermissionPollGap = 30 * time.Second
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
