package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-task-client/internal/errors"
	"github.com/jrsteele09/go-task-client/sessions"
	"github.com/jrsteele09/go-task-client/tasks"
	"github.com/jrsteele09/go-task-client/users"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const RequestIDHeader = "X-Request-ID"

var (
	_ tasks.Repo        = (*Client)(nil)
	_ sessions.AuthRepo = (*Client)(nil)
)

// Client talks to the task backend's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration

	mu     sync.RWMutex
	tokens oauth2.TokenSource
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// New creates a client for baseURL, e.g. http://localhost:8000/api.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	switch {
	case c.httpClient == nil:
		timeout := c.timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		c.httpClient = &http.Client{Timeout: timeout}
	case c.timeout > 0:
		// Copy so a caller's shared client keeps its own timeout.
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// SetTokenSource sets where bearer tokens come from. Requests go out without
// an Authorization header while no source is set or it has no token.
func (c *Client) SetTokenSource(ts oauth2.TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Login calls POST /login/. A 401 is reported as errors.ErrInvalidCredentials.
func (c *Client) Login(ctx context.Context, username, password string) (*sessions.Credentials, error) {
	var creds sessions.Credentials
	err := c.do(ctx, http.MethodPost, "/login/", credentialsRequest{username, password}, &creds, noAuth)
	if err != nil {
		var apiErr *errors.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			return nil, apiErr.WithKind(errors.ErrInvalidCredentials)
		}
		return nil, err
	}
	if creds.AccessToken == "" {
		return nil, errors.Wrapf(errors.ErrBackend, "login response without access token")
	}
	return &creds, nil
}

// Register calls POST /register/ and returns the server's confirmation message.
func (c *Client) Register(ctx context.Context, username, password string) (string, error) {
	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, "/register/", credentialsRequest{username, password}, &resp, noAuth); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Profile calls GET /profile/ with accessToken rather than the token source.
func (c *Client) Profile(ctx context.Context, accessToken string) (*users.User, error) {
	var u users.User
	if err := c.do(ctx, http.MethodGet, "/profile/", nil, &u, bearer(accessToken)); err != nil {
		return nil, err
	}
	return &u, nil
}

// RefreshAccessToken calls POST /token/refresh/.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	var resp refreshResponse
	if err := c.do(ctx, http.MethodPost, "/token/refresh/", refreshRequest{refreshToken}, &resp, noAuth); err != nil {
		return "", err
	}
	if resp.Access == "" {
		return "", errors.Wrapf(errors.ErrBackend, "refresh response without access token")
	}
	return resp.Access, nil
}

// ListUsers calls GET /users_list/.
func (c *Client) ListUsers(ctx context.Context) ([]users.User, error) {
	var list []users.User
	if err := c.do(ctx, http.MethodGet, "/users_list/", nil, &list, c.sourceAuth); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) ListTasks(ctx context.Context) ([]tasks.Task, error) {
	var list []tasks.Task
	if err := c.do(ctx, http.MethodGet, "/tasks/", nil, &list, c.sourceAuth); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) CreateTask(ctx context.Context, draft tasks.Draft) (*tasks.Task, error) {
	var task tasks.Task
	if err := c.do(ctx, http.MethodPost, "/tasks/", draft, &task, c.sourceAuth); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) UpdateTask(ctx context.Context, id tasks.ID, draft tasks.Draft) (*tasks.Task, error) {
	var task tasks.Task
	if err := c.do(ctx, http.MethodPut, taskPath(id), draft, &task, c.sourceAuth); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) DeleteTask(ctx context.Context, id tasks.ID) error {
	return c.do(ctx, http.MethodDelete, taskPath(id), nil, nil, c.sourceAuth)
}

// TaskStats calls GET /task-stats/.
func (c *Client) TaskStats(ctx context.Context) (*tasks.Stats, error) {
	var stats tasks.Stats
	if err := c.do(ctx, http.MethodGet, "/task-stats/", nil, &stats, c.sourceAuth); err != nil {
		return nil, err
	}
	return &stats, nil
}

func taskPath(id tasks.ID) string {
	return "/tasks/" + url.PathEscape(string(id)) + "/"
}

type authFunc func(req *http.Request)

func noAuth(*http.Request) {}

func bearer(accessToken string) authFunc {
	return func(req *http.Request) {
		tok := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
		tok.SetAuthHeader(req)
	}
}

func (c *Client) sourceAuth(req *http.Request) {
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()
	if ts == nil {
		return
	}
	tok, err := ts.Token()
	if err != nil {
		log.Debug().Err(err).Msg("sending request without bearer token")
		return
	}
	tok.SetAuthHeader(req)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}, auth authFunc) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	auth(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.handleRequestError(ctx, err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Dur("elapsed", time.Since(start)).
		Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return errors.NewAPIError(resp.StatusCode, raw)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(errors.ErrBackend, "invalid response from backend: %v", err)
	}
	return nil
}

// handleRequestError converts transport failures into errors.ErrBackend.
func (c *Client) handleRequestError(ctx context.Context, err error) error {
	if ctx.Err() == context.Canceled {
		return fmt.Errorf("request canceled: %w", ctx.Err())
	}
	if ctx.Err() == context.DeadlineExceeded {
		return errors.Wrapf(errors.ErrBackend, "request timed out")
	}
	return errors.Wrapf(errors.ErrBackend, "cannot connect to backend at %s: %v", c.baseURL, err)
}
