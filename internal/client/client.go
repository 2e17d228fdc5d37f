// Package client is the console's typed client for the inventory API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/simp-lee/ftthadmin/internal/datatable"
	"github.com/simp-lee/ftthadmin/internal/domain"
	"github.com/simp-lee/ftthadmin/internal/module/inventory"
)

const maxResponseBytes = 8 << 20

// Client talks to one API base URL, e.g. http://127.0.0.1:8080/api/v1.
type Client struct {
	base   string
	http   *http.Client
	logger *slog.Logger

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the logger used for request logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token, e.g. after Login.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// envelope mirrors the API's response body. Errors is only set on 422.
type envelope struct {
	Code    int                 `json:"code"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors"`
}

// do sends one request. path is relative to the base URL and may carry a
// query string. Non-2xx answers are returned as *domain.AppError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "api request failed",
			slog.String("method", method), slog.String("path", path), slog.Any("error", err))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.DebugContext(ctx, "api request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp.StatusCode, env, decodeErr)
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response of %s %s: %w", method, path, decodeErr)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data of %s %s: %w", method, path, err)
	}
	return nil
}

func responseError(status int, env envelope, decodeErr error) *domain.AppError {
	msg := env.Message
	if decodeErr != nil || msg == "" {
		msg = strings.ToLower(http.StatusText(status))
	}
	appErr := domain.NewAppError(domain.CodeFromHTTPStatus(status), msg, nil)
	if appErr.Code == domain.CodeValidation {
		appErr.Fields = env.Errors
	}
	return appErr
}

// List fetches one page from a list endpoint URL such as "/odps?page=1".
func (c *Client) List(ctx context.Context, endpoint string) (*datatable.ResultPage, error) {
	var page datatable.ResultPage
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}
	if page.Rows == nil {
		page.Rows = []datatable.Resource{}
	}
	return &page, nil
}

// Bulk posts an action for ids to basePath + "/bulk" and returns the
// affected resources.
func (c *Client) Bulk(ctx context.Context, basePath, action string, ids []string) ([]datatable.Resource, error) {
	var affected []datatable.Resource
	req := domain.BulkRequest{Action: action, IDs: ids}
	if err := c.do(ctx, http.MethodPost, basePath+"/bulk", req, &affected); err != nil {
		return nil, err
	}
	return affected, nil
}

// Get fetches one resource.
func (c *Client) Get(ctx context.Context, basePath, id string) (datatable.Resource, error) {
	var r datatable.Resource
	err := c.do(ctx, http.MethodGet, basePath+"/"+url.PathEscape(id), nil, &r)
	return r, err
}

// Create posts a new resource; body is any JSON-encodable value.
func (c *Client) Create(ctx context.Context, basePath string, body any) (datatable.Resource, error) {
	var r datatable.Resource
	err := c.do(ctx, http.MethodPost, basePath, body, &r)
	return r, err
}

// Update replaces resource id.
func (c *Client) Update(ctx context.Context, basePath, id string, body any) (datatable.Resource, error) {
	var r datatable.Resource
	err := c.do(ctx, http.MethodPut, basePath+"/"+url.PathEscape(id), body, &r)
	return r, err
}

// Token is a bearer token issued by Login.
type Token struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// Login exchanges credentials for a token and uses it for later requests.
func (c *Client) Login(ctx context.Context, email, password string) (Token, error) {
	var tok Token
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &tok); err != nil {
		return Token{}, err
	}
	c.SetToken(tok.Token)
	return tok, nil
}

// LoadPreference decodes the stored preference document into into. It
// reports false when nothing was saved under key yet.
func (c *Client) LoadPreference(ctx context.Context, key string, into any) (bool, error) {
	err := c.do(ctx, http.MethodGet, "/preferences/"+url.PathEscape(key), nil, into)
	if domain.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SavePreference stores value under key for the current user.
func (c *Client) SavePreference(ctx context.Context, key string, value any) error {
	return c.do(ctx, http.MethodPut, "/preferences/"+url.PathEscape(key), value, nil)
}

// Stats returns resource counts per endpoint path.
func (c *Client) Stats(ctx context.Context) (map[string]inventory.StatusCounts, error) {
	var stats map[string]inventory.StatusCounts
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}
