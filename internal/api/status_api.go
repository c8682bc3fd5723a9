// Package api exposes the agent's local diagnostic surface: current status,
// recently received messages and a test-notification trigger. It serves the
// gym app's settings screen, not the public internet.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/sweat24/go-push-client/pkg/push"
)

// AgentStatus is the GET status body.
type AgentStatus struct {
	Phase         push.Phase           `json:"phase"`
	Channel       push.Channel         `json:"channel"`
	Permission    push.PermissionState `json:"permission"`
	HasToken      bool                 `json:"has_token"`
	TotalAttempts int                  `json:"total_attempts"`
}

// Agent is the surface the handlers need from the assembled service.
type Agent interface {
	Status() AgentStatus
	Recent() []push.InboundMessage
	SendTestNotification(ctx context.Context, title, message string) error
}

type StatusAPI struct {
	Agent  Agent
	Logger *slog.Logger
}

func NewStatusAPI(agent Agent, logger *slog.Logger) *StatusAPI {
	return &StatusAPI{
		Agent:  agent,
		Logger: logger,
	}
}

func (api *StatusAPI) StatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(api.Agent.Status()); err != nil {
		api.Logger.Error("failed to encode status", "err", err)
	}
}

func (api *StatusAPI) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	messages := api.Agent.Recent()
	if messages == nil {
		messages = []push.InboundMessage{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"messages": messages}); err != nil {
		api.Logger.Error("failed to encode messages", "err", err)
	}
}

type TestNotificationRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (api *StatusAPI) TestHandler(w http.ResponseWriter, r *http.Request) {
	var req TestNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Title == "" {
		req.Title = "Test Notification"
	}
	if req.Message == "" {
		req.Message = "Push notifications are working."
	}

	if err := api.Agent.SendTestNotification(r.Context(), req.Title, req.Message); err != nil {
		if errors.Is(err, push.ErrInvalidState) {
			response.WriteJSONError(w, http.StatusConflict, "push agent is not active")
			return
		}
		api.Logger.Error("failed to send test notification", "err", err)
		response.WriteJSONError(w, http.StatusBadGateway, "backend rejected test notification")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
