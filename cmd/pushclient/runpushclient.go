package main

import (
	"context"
	_ "embed"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sweat24/go-push-client/internal/backend"
	"github.com/sweat24/go-push-client/internal/platform/bridge"
	"github.com/sweat24/go-push-client/internal/platform/native"
	"github.com/sweat24/go-push-client/internal/platform/web"
	"github.com/sweat24/go-push-client/internal/router"
	"github.com/sweat24/go-push-client/internal/scheduler"
	"github.com/sweat24/go-push-client/internal/storage/cache"
	"github.com/sweat24/go-push-client/pkg/push"
	"github.com/sweat24/go-push-client/pushclient"
	"github.com/sweat24/go-push-client/pushclient/config"
)

//go:embed local.yaml
var configFile []byte

func main() {
	_ = godotenv.Load()

	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "go-push-client")
	slog.SetDefault(logger)

	ctx := context.Background()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, _ := config.NewConfigFromYaml(&yamlCfg, logger)
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	// --- Host Shell Bridge ---
	shell := bridge.NewClient(cfg.Bridge.BaseURL, logger)

	caps, err := shell.Capabilities(ctx)
	if err != nil {
		logger.Error("Host shell unreachable", "url", cfg.Bridge.BaseURL, "err", err)
		os.Exit(1)
	}
	if !caps.PushSupported {
		logger.Error("Host shell reports push unsupported", "platform", caps.Platform)
		os.Exit(1)
	}

	// --- Channel Selection (once, at startup) ---
	channel := cfg.Channel
	if channel == "auto" {
		if caps.Platform == "web" {
			channel = "web"
		} else {
			channel = "native"
		}
	}

	var adapter push.Adapter
	switch channel {
	case "web":
		adapter = web.NewAdapter(shell, cfg.VapidPublicKey, logger)
	default:
		adapter = native.NewAdapter(shell, logger)
	}
	logger.Info("Delivery channel selected", "channel", channel, "platform", caps.Platform)

	// --- Backend Client ---
	backendClient := backend.NewClient(cfg.Backend.BaseURL, func() string {
		// Prefer a live env token so a refreshed login is picked up.
		if tok := os.Getenv("AUTH_TOKEN"); tok != "" {
			return tok
		}
		return cfg.Backend.AuthToken
	}, logger)

	// --- Reminder Store (Decorated) ---
	var store scheduler.Store = backendClient
	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis cache layer...", "addr", cfg.Redis.Addr)
		redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		defer func() { _ = redisClient.Close() }()
		store = cache.NewCachedStore(backendClient, redisClient, cfg.UserID, 10*time.Minute)
		logger.Info("Reminder store upgraded", "type", "redis_cached_backend")
	}

	// --- Navigation ---
	navigator := router.NavigatorFunc(func(route string) {
		nctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shell.Navigate(nctx, route); err != nil {
			logger.Warn("Navigation intent failed", "route", route, "err", err)
		}
	})

	// --- Service ---
	service, err := pushclient.New(cfg, adapter, backendClient, store, navigator, caps.Platform, logger)
	if err != nil {
		logger.Error("Service creation failed", "err", err)
		os.Exit(1)
	}

	logger.Info("Starting push agent...")
	if err := service.Start(ctx); err != nil {
		logger.Error("Service shutdown with error", "err", err)
		os.Exit(1)
	}
}
