package rentalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/rentsync/pkg/config"
	pkgerrors "github.com/angelmondragon/rentsync/pkg/errors"
	"github.com/angelmondragon/rentsync/pkg/logger"
)

const responseBodyReadLimit int64 = 1024

var (
	errBaseURLRequired = errors.New("chat api base url is required")
	errLoggerRequired  = errors.New("chat api logger is required")
)

// Client talks to the remote chat/user API with centralized bearer auth,
// logging, and error mapping. It is the only wire surface the synchronizer
// depends on.
type Client struct {
	httpClient *http.Client
	baseURL    string
	audience   Audience
	logger     *logger.Logger

	mu    sync.RWMutex
	token string

	expiredOnce      sync.Once
	onSessionExpired func()
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSessionExpiredHandler registers a callback invoked exactly once when
// a request with a token on board comes back 401.
func WithSessionExpiredHandler(fn func()) Option {
	return func(c *Client) {
		c.onSessionExpired = fn
	}
}

// NewClient builds the chat API client for the given audience.
func NewClient(cfg config.ChatAPIConfig, audience Audience, logg *logger.Logger, opts ...Option) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	if audience != AudienceCustomer && audience != AudienceAdmin {
		return nil, fmt.Errorf("audience must be %q or %q", AudienceCustomer, AudienceAdmin)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		audience:   audience,
		logger:     logg,
		token:      strings.TrimSpace(cfg.BearerToken),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// SetToken replaces the bearer token, e.g. after a fresh login.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = strings.TrimSpace(token)
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Profile resolves the authenticated caller's own user id.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var envelope profileEnvelope
	if err := c.getJSON(ctx, c.audiencePath("profile"), &envelope); err != nil {
		return nil, err
	}
	if envelope.Profile.UserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "profile response missing user id")
	}
	return &envelope.Profile, nil
}

// UserByID fetches a single user, used for role resolution.
func (c *Client) UserByID(ctx context.Context, userID string) (*User, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	var envelope userEnvelope
	path := fmt.Sprintf("api/admin/users/%s", url.PathEscape(trimmed))
	if err := c.getJSON(ctx, path, &envelope); err != nil {
		return nil, err
	}
	return &envelope.User, nil
}

// ListUsers returns all users, optionally filtered by role. Unexpected
// response shapes degrade to an empty list rather than an error.
func (c *Client) ListUsers(ctx context.Context, roleFilter string) ([]User, error) {
	path := "api/admin/users"
	if trimmed := strings.TrimSpace(roleFilter); trimmed != "" {
		path = fmt.Sprintf("%s?role=%s", path, url.QueryEscape(trimmed))
	}
	var raw json.RawMessage
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, err
	}
	return decodeUserList(raw), nil
}

// Conversation fetches the full message list with the given counterparty,
// in the server's ascending order. The client never reorders it.
func (c *Client) Conversation(ctx context.Context, counterpartyID string) ([]ChatMessage, error) {
	trimmed := strings.TrimSpace(counterpartyID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "counterparty id is required")
	}
	var messages []ChatMessage
	path := c.audiencePath(fmt.Sprintf("chats/%s", url.PathEscape(trimmed)))
	if err := c.getJSON(ctx, path, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// Send posts a new chat message on behalf of the current actor.
func (c *Client) Send(ctx context.Context, params SendParams) error {
	if strings.TrimSpace(params.ReceiverID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "receiver id is required")
	}
	if strings.TrimSpace(params.Message) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "message is required")
	}

	payload := map[string]string{
		"receiver_id": params.ReceiverID,
		"message":     params.Message,
	}
	// The admin send endpoint infers the sender from the token; the customer
	// endpoint expects it in the body.
	if c.audience == AudienceCustomer {
		payload["sender_id"] = params.SenderID
	}

	return c.postJSON(ctx, c.audiencePath("chats/send"), payload)
}

func (c *Client) audiencePath(suffix string) string {
	return fmt.Sprintf("api/%s/%s", c.audience, strings.TrimLeft(suffix, "/"))
}

func (c *Client) getJSON(ctx context.Context, path string, dest any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, dest)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal request body")
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	target := fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(path, "/"))
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, dest any) error {
	hadToken := req.Header.Get("Authorization") != ""

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute chat api request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return c.handleUnauthorized(req.Context(), hadToken)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		return pkgerrors.Wrap(codeForStatus(resp.StatusCode), cause, "chat api request failed")
	}

	if dest == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode chat api response")
	}
	return nil
}

// handleUnauthorized distinguishes a stale session from a plain anonymous
// request. The session-expired path clears the token and fires the handler
// exactly once so the UI shows a single notice.
func (c *Client) handleUnauthorized(ctx context.Context, hadToken bool) error {
	if !hadToken {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	c.SetToken("")
	c.expiredOnce.Do(func() {
		c.logger.Warn(ctx, "chat api session expired, token cleared")
		if c.onSessionExpired != nil {
			c.onSessionExpired()
		}
	})
	return pkgerrors.New(pkgerrors.CodeSessionExpired, "session expired")
}

func codeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return pkgerrors.CodeValidation
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}
