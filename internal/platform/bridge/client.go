// Package bridge is the HTTP client for the host shell's local bridge: the
// process embedding the agent (mobile shell or browser host) exposes the
// platform notification primitives over a loopback endpoint, and the channel
// adapters drive them through this client.
package bridge

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

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/sweat24/go-push-client/pkg/push"
)

// Capabilities describes what the host shell supports. Platform drives the
// one-time channel selection at startup.
type Capabilities struct {
	Platform      string `json:"platform"` // ios | android | web
	PushSupported bool   `json:"push_supported"`
	UserAgent     string `json:"user_agent,omitempty"`
}

// Event is one delivered notification event from the shell's event stream.
type Event struct {
	Seq   int64             `json:"seq"`
	Type  string            `json:"type"` // message | tap
	Title string            `json:"title,omitempty"`
	Body  string            `json:"body,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

const (
	EventMessage = "message"
	EventTap     = "tap"
)

// Client talks to the shell bridge. Long-poll requests use a generous
// timeout; everything else inherits the caller's context.
type Client struct {
	baseURL    string
	httpClient *http.Client
	pollClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		pollClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.With("component", "ShellBridge"),
	}
}

func (c *Client) Capabilities(ctx context.Context) (Capabilities, error) {
	var caps Capabilities
	err := c.do(ctx, http.MethodGet, "/capabilities", nil, &caps, "capabilities")
	return caps, err
}

// Permissions returns the shell's raw permission string, e.g. "granted",
// "denied", "prompt" or "prompt-with-rationale". Adapters normalize it.
func (c *Client) Permissions(ctx context.Context) (string, error) {
	var out struct {
		Receive string `json:"receive"`
	}
	if err := c.do(ctx, http.MethodGet, "/permissions", nil, &out, "check permissions"); err != nil {
		return "", err
	}
	return out.Receive, nil
}

// RequestPermissions asks the shell to prompt the user. The call blocks until
// the user answers or the context expires.
func (c *Client) RequestPermissions(ctx context.Context) (string, error) {
	var out struct {
		Receive string `json:"receive"`
	}
	if err := c.do(ctx, http.MethodPost, "/permissions/request", nil, &out, "request permissions"); err != nil {
		return "", err
	}
	return out.Receive, nil
}

// Register asks the shell for the native delivery token.
func (c *Client) Register(ctx context.Context) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/register", nil, &out, "register"); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", &push.NetworkError{Op: "register", Err: errors.New("bridge returned empty token")}
	}
	return out.Token, nil
}

func (c *Client) Unregister(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/register", nil, nil, "unregister")
}

// Subscribe asks the browser host for a web-push subscription keyed to the
// given VAPID application server key.
func (c *Client) Subscribe(ctx context.Context, applicationServerKey string) (*webpush.Subscription, error) {
	body := map[string]string{"application_server_key": applicationServerKey}
	var sub webpush.Subscription
	if err := c.do(ctx, http.MethodPost, "/subscribe", body, &sub, "subscribe"); err != nil {
		return nil, err
	}
	if sub.Endpoint == "" {
		return nil, &push.NetworkError{Op: "subscribe", Err: errors.New("bridge returned empty subscription")}
	}
	return &sub, nil
}

func (c *Client) Unsubscribe(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/subscribe", nil, nil, "unsubscribe")
}

// ShowNotification renders a local visual notification through the shell.
func (c *Client) ShowNotification(ctx context.Context, title, body string, data map[string]string) error {
	payload := map[string]any{"title": title, "body": body, "data": data}
	return c.do(ctx, http.MethodPost, "/notifications/show", payload, nil, "show notification")
}

// Navigate forwards a navigation intent to the embedding application.
func (c *Client) Navigate(ctx context.Context, route string) error {
	payload := map[string]string{"route": route}
	return c.do(ctx, http.MethodPost, "/navigate", payload, nil, "navigate")
}

// Events long-polls the shell for delivery events newer than since. An empty
// batch after the poll window is normal, not an error.
func (c *Client) Events(ctx context.Context, since int64) ([]Event, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events?since="+strconv.FormatInt(since, 10), nil)
	if err != nil {
		return nil, since, err
	}
	resp, err := c.pollClient.Do(req)
	if err != nil {
		return nil, since, &push.NetworkError{Op: "poll events", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, since, statusError("poll events", resp)
	}

	var out struct {
		Events []Event `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, since, &push.NetworkError{Op: "poll events", Err: err}
	}
	next := since
	for _, ev := range out.Events {
		if ev.Seq > next {
			next = ev.Seq
		}
	}
	return out.Events, next, nil
}

// Listen runs the long-poll loop in a goroutine and invokes onEvent for each
// delivered event in order. The returned stop function detaches the listener
// and waits for the loop to exit.
func (c *Client) Listen(onEvent func(Event)) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		var since int64
		for {
			events, next, err := c.Events(ctx, since)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				c.logger.Warn("Event poll failed, backing off.", "err", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(2 * time.Second):
				}
				continue
			}
			since = next
			for _, ev := range events {
				onEvent(ev)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
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
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
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
		return statusError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &push.NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// statusError maps bridge status codes onto the error taxonomy. The shell
// answers 501 for primitives the platform genuinely lacks.
func statusError(op string, resp *http.Response) error {
	if resp.StatusCode == http.StatusNotImplemented {
		return fmt.Errorf("%s: %w", op, push.ErrChannelUnavailable)
	}
	return &push.NetworkError{Op: op, StatusCode: resp.StatusCode}
}
