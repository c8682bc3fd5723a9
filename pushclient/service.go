// Package pushclient assembles the push agent: the initialization state
// machine, permission gate, token manager, message router, reminder scheduler
// and the local diagnostic HTTP surface.
package pushclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/sweat24/go-push-client/internal/api"
	"github.com/sweat24/go-push-client/internal/backend"
	"github.com/sweat24/go-push-client/internal/initctl"
	"github.com/sweat24/go-push-client/internal/lifecycle"
	"github.com/sweat24/go-push-client/internal/permission"
	"github.com/sweat24/go-push-client/internal/router"
	"github.com/sweat24/go-push-client/internal/scheduler"
	"github.com/sweat24/go-push-client/internal/token"
	"github.com/sweat24/go-push-client/pkg/push"
	"github.com/sweat24/go-push-client/pushclient/config"
)

type Service struct {
	*microservice.BaseServer

	cfg        *config.Config
	adapter    push.Adapter
	platform   string
	gate       *permission.Gate
	tokens     *token.Manager
	controller *initctl.Controller
	lifecycle  *lifecycle.Manager
	router     *router.Router
	scheduler  *scheduler.Scheduler
	backend    *backend.Client
	logger     *slog.Logger
}

// New assembles the service. The adapter decides the delivery channel; the
// store is the backend client, optionally wrapped in the redis read-aside
// decorator. platform is the device platform reported to the backend (ios,
// android, web).
func New(
	cfg *config.Config,
	adapter push.Adapter,
	backendClient *backend.Client,
	store scheduler.Store,
	navigator router.Navigator,
	platform string,
	logger *slog.Logger,
) (*Service, error) {
	if platform == "" {
		platform = string(adapter.Channel())
	}

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Collaborators
	gate := permission.NewGate(adapter, cfg.Retry.RequestTimeout, logger)
	msgRouter := router.New(navigator, adapter, logger)
	tokens := token.NewManager(adapter, gate, backendClient, token.Config{
		Platform:         platform,
		AcquireTimeout:   cfg.Retry.RequestTimeout,
		SubmitRetryDelay: cfg.Retry.SubmitRetryDelay,
	}, logger)

	// 3. Initialization machine. Listener removers flow from the controller
	// into the lifecycle manager, which owns teardown.
	var lc *lifecycle.Manager
	attach := func() (func(), error) { return adapter.Listen(msgRouter) }
	onArmed := func(remove func()) { lc.Track(remove) }
	ctl := initctl.NewController(gate, tokens, attach, onArmed, initctl.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		RetryDelay:  cfg.Retry.RetryDelay,
	}, logger)
	lc = lifecycle.NewManager(ctl, tokens, cfg.Retry.PermissionPollGap, logger)

	// 4. Scheduler, gated on the controller's phase.
	sched := scheduler.New(store, ctl, logger)

	svc := &Service{
		BaseServer: baseServer,
		cfg:        cfg,
		adapter:    adapter,
		platform:   platform,
		gate:       gate,
		tokens:     tokens,
		controller: ctl,
		lifecycle:  lc,
		router:     msgRouter,
		scheduler:  sched,
		backend:    backendClient,
		logger:     logger,
	}

	// 5. Diagnostic API
	statusAPI := api.NewStatusAPI(svc, logger)

	// Register Routes
	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	mux.Handle("GET /api/v1/status", corsMiddleware(http.HandlerFunc(statusAPI.StatusHandler)))
	mux.Handle("GET /api/v1/messages", corsMiddleware(http.HandlerFunc(statusAPI.MessagesHandler)))
	mux.Handle("POST /api/v1/test", corsMiddleware(http.HandlerFunc(statusAPI.TestHandler)))

	return svc, nil
}

// Initialize drives the state machine toward active. Safe to call again after
// a failure; a call while active is a no-op.
func (s *Service) Initialize(ctx context.Context) error {
	return s.controller.Initialize(ctx)
}

// RequestPermissions prompts the user directly, without running the full
// initialization sequence. Settings screens use this for their toggle.
func (s *Service) RequestPermissions(ctx context.Context) (bool, error) {
	state, err := s.gate.Request(ctx)
	if err != nil {
		return false, err
	}
	return state.CanReceive, nil
}

// OnMessage subscribes to foreground deliveries.
func (s *Service) OnMessage(handler func(push.InboundMessage)) (unsubscribe func()) {
	return s.router.OnMessage(handler)
}

// Recent returns the buffered foreground messages, oldest first.
func (s *Service) Recent() []push.InboundMessage {
	return s.router.Recent()
}

// Status reports the agent's current state for the diagnostic surface.
func (s *Service) Status() api.AgentStatus {
	return api.AgentStatus{
		Phase:         s.controller.Phase(),
		Channel:       s.adapter.Channel(),
		Permission:    s.gate.Snapshot(),
		HasToken:      s.tokens.Current() != "",
		TotalAttempts: s.controller.TotalAttempts(),
	}
}

// SendTestNotification asks the backend for an immediate test delivery to
// this device. The agent must be active so a registered token exists.
func (s *Service) SendTestNotification(ctx context.Context, title, message string) error {
	if s.controller.Phase() != push.PhaseActive {
		return fmt.Errorf("test notification requires active agent: %w", push.ErrInvalidState)
	}
	return s.backend.SendTest(ctx, title, message, s.tokens.Current(), s.platform)
}

// Scheduler exposes the reminder scheduler to the embedding app.
func (s *Service) Scheduler() *scheduler.Scheduler {
	return s.scheduler
}

// Start launches initialization in the background, starts the permission poll
// and serves the diagnostic API. Initialization failure does not stop the
// server; the app can re-trigger it through Initialize.
func (s *Service) Start(ctx context.Context) error {
	go func() {
		if err := s.controller.Initialize(ctx); err != nil {
			s.logger.Warn("Background initialization did not complete.", "err", err)
		}
	}()
	s.lifecycle.StartPermissionPoll(ctx, s.gate)

	s.SetReady(true)
	s.logger.Info("Push agent is now ready.")
	return s.BaseServer.Start()
}

func (s *Service) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down push agent components...")
	s.lifecycle.Teardown()
	if err := s.BaseServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown failed.", "err", err)
		return err
	}
	s.logger.Info("Push agent shutdown complete.")
	return nil
}
