package config

import (
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

type YamlBackendConfig struct {
	BaseURL   string `yaml:"base_url"`
	AuthToken string `yaml:"auth_token"`
}

type YamlBridgeConfig struct {
	BaseURL string `yaml:"base_url"`
}

type YamlRetryConfig struct {
	MaxAttempts            int           `yaml:"max_attempts"`
	RetryDelay             time.Duration `yaml:"retry_delay"`
	RequestTimeout         time.Duration `yaml:"request_timeout"`
	SubmitRetryDelay       time.Duration `yaml:"submit_retry_delay"`
	PermissionPollInterval time.Duration `yaml:"permission_poll_interval"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ListenAddr     string            `yaml:"listen_addr"`
	UserID         int64             `yaml:"user_id"`
	Channel        string            `yaml:"channel"`
	Backend        YamlBackendConfig `yaml:"backend"`
	Bridge         YamlBridgeConfig  `yaml:"bridge"`
	VapidPublicKey string            `yaml:"vapid_public_key"`
	CorsConfig     YamlCorsConfig    `yaml:"cors"`
	RedisConfig    YamlRedisConfig   `yaml:"redis"`
	Retry          YamlRetryConfig   `yaml:"retry"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ListenAddr: baseCfg.ListenAddr,
		UserID:     baseCfg.UserID,
		Channel:    baseCfg.Channel,
		Backend: BackendConfig{
			BaseURL:   baseCfg.Backend.BaseURL,
			AuthToken: baseCfg.Backend.AuthToken,
		},
		Bridge: BridgeConfig{
			BaseURL: baseCfg.Bridge.BaseURL,
		},
		VapidPublicKey: baseCfg.VapidPublicKey,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
		},
		Retry: RetryConfig{
			MaxAttempts:       baseCfg.Retry.MaxAttempts,
			RetryDelay:        baseCfg.Retry.RetryDelay,
			RequestTimeout:    baseCfg.Retry.RequestTimeout,
			SubmitRetryDelay:  baseCfg.Retry.SubmitRetryDelay,
			PermissionPollGap: baseCfg.Retry.PermissionPollInterval,
		},
	}

	logger.Debug("YAML config mapping complete",
		"listen_addr", cfg.ListenAddr,
		"user_id", cfg.UserID,
		"channel", cfg.Channel,
	)

	return cfg, nil
}
