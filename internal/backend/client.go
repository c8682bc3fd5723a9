// Package backend is the REST client for the Sweat24 API's notification
// endpoints. The backend owns all durable reminder state; this client only
// submits requests and reads back listings.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sweat24/go-push-client/pkg/push"
)

// TokenSource supplies the bearer token for each request, so a refreshed
// login is picked up without rebuilding the client.
type TokenSource func() string

type Client struct {
	baseURL    string
	httpClient *http.Client
	authToken  TokenSource
	logger     *slog.Logger
}

func NewClient(baseURL string, authToken TokenSource, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		authToken:  authToken,
		logger:     logger.With("component", "BackendClient"),
	}
}

// TokenRegistration is the POST /users/push-token body.
type TokenRegistration struct {
	Token      string          `json:"token"`
	Platform   string          `json:"platform"`
	DeviceInfo push.DeviceInfo `json:"device_info"`
}

func (c *Client) RegisterToken(ctx context.Context, reg TokenRegistration) error {
	return c.do(ctx, http.MethodPost, "/users/push-token", reg, nil, "register token")
}

func (c *Client) ScheduleReminder(ctx context.Context, r push.Reminder) error {
	return c.do(ctx, http.MethodPost, "/notifications/schedule", r, nil, "schedule reminder")
}

// CancelReminder deactivates a scheduled reminder. Canceling an id the
// backend does not know is success, which is what makes cancel idempotent.
func (c *Client) CancelReminder(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, "/notifications/cancel/"+id, nil, nil, "cancel reminder")
	var netErr *push.NetworkError
	if errors.As(err, &netErr) && netErr.StatusCode == http.StatusNotFound {
		c.logger.Debug("Cancel of unknown reminder treated as success.", "id", id)
		return nil
	}
	return err
}

// SendTest requests an immediate-delivery test notification, bypassing
// scheduling entirely.
func (c *Client) SendTest(ctx context.Context, title, message, token, platform string) error {
	body := map[string]string{
		"title":    title,
		"message":  message,
		"platform": platform,
	}
	if token != "" {
		body["token"] = token
	}
	return c.do(ctx, http.MethodPost, "/notifications/test", body, nil, "send test notification")
}

func (c *Client) ListReminders(ctx context.Context, userID int64) ([]push.Reminder, error) {
	var out struct {
		Notifications []push.Reminder `json:"notifications"`
	}
	path := "/users/" + strconv.FormatInt(userID, 10) + "/notifications"
	if err := c.do(ctx, http.MethodGet, path, nil, &out, "list reminders"); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, op string) error {
	var reqBody io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.authToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, push.ErrTimeout)
		}
		return &push.NetworkError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &push.NetworkError{Op: op, StatusCode: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &push.NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
