package gateway

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

	"github.com/kgcollins/parishport/internal/session"
)

// Endpoints is the endpoint map the embedding site's proxy hands out.
type Endpoints struct {
	Register  string `json:"register"`
	Login     string `json:"login"`
	Logout    string `json:"logout"`
	Household string `json:"household"`
	Members   string `json:"members"`
	Member    string `json:"member"`
}

// Config is the remote API configuration resolved from the proxy.
type Config struct {
	APIURL    string    `json:"apiUrl"`
	Endpoints Endpoints `json:"endpoints"`
}

// Client turns local calls into authenticated requests against the remote
// record-keeping API. The bearer token is read from the session store on
// every request; requests are single-attempt with no retries.
type Client struct {
	httpClient *http.Client
	portalURL  string
	nonce      string
	sessions   *session.Store
	logger     *slog.Logger

	onUnauthorized func()

	mu  sync.Mutex
	cfg *Config
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(portalURL, nonce string, sessions *session.Store, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		portalURL:  portalURL,
		nonce:      nonce,
		sessions:   sessions,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetUnauthorizedHook registers the callback invoked after a 401 response has
// cleared the session store. The triggering error is still returned to the
// caller afterwards.
func (c *Client) SetUnauthorizedHook(fn func()) {
	c.onUnauthorized = fn
}

type proxyResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// ResolveConfig fetches the API base URL and endpoint map from the embedding
// site's proxy, memoized after the first success. The proxy enforces its own
// nonce check and refuses to answer when the backend is unconfigured.
func (c *Client) ResolveConfig(ctx context.Context) (*Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg != nil {
		return c.cfg, nil
	}

	form := url.Values{
		"action": {"get_api_config"},
		"nonce":  {c.nonce},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.portalURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create config request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ConfigError{Message: "proxy unreachable: " + err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConfigError{Message: "read proxy response: " + err.Error()}
	}

	var pr proxyResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("malformed proxy response (status %d)", resp.StatusCode)}
	}
	if !pr.Success {
		return nil, &ConfigError{Message: proxyErrorMessage(pr.Data)}
	}

	var cfg Config
	if err := json.Unmarshal(pr.Data, &cfg); err != nil {
		return nil, &ConfigError{Message: "malformed API configuration"}
	}
	if cfg.APIURL == "" {
		return nil, &ConfigError{Message: "backend API URL is not configured"}
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	c.cfg = &cfg
	c.logger.Debug("resolved portal config", "api_url", cfg.APIURL)
	return c.cfg, nil
}

func proxyErrorMessage(data json.RawMessage) string {
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil && body.Message != "" {
		return body.Message
	}
	var s string
	if json.Unmarshal(data, &s) == nil && s != "" {
		return s
	}
	return "failed to load API configuration"
}

// result is the normalized outcome of one API call: the payload with any
// response envelope stripped, plus the envelope's human-readable message.
type result struct {
	payload json.RawMessage
	message string
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// do performs one authenticated JSON request. On 401 it clears the session
// store and fires the unauthorized hook before returning the error, so the
// caller's own error handling still runs.
func (c *Client) do(ctx context.Context, method, endpoint string, body any) (*result, error) {
	cfg, err := c.ResolveConfig(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.APIURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(raw, resp.StatusCode)}
		if resp.StatusCode == http.StatusUnauthorized {
			c.handleUnauthorized()
		}
		return nil, apiErr
	}

	return normalize(raw, resp.StatusCode)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token, ok := c.sessions.Token(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) handleUnauthorized() {
	c.logger.Info("session rejected by API, clearing token")
	c.sessions.ClearToken()
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

// normalize reduces the observed response shapes to one canonical payload at
// this single chokepoint: a {success,data,message} envelope, or the bare
// object/array. Call sites never shape-sniff.
func normalize(raw []byte, status int) (*result, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Success == nil {
		return &result{payload: raw}, nil
	}
	if !*env.Success {
		msg := env.Message
		if msg == "" {
			msg = errorMessage(env.Data, status)
		}
		return nil, &APIError{Status: status, Message: msg}
	}
	payload := env.Data
	if len(payload) == 0 {
		payload = raw
	}
	return &result{payload: payload, message: env.Message}, nil
}

// errorMessage extracts a message from a JSON error body, else synthesizes
// one from the status code.
func errorMessage(raw []byte, status int) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return fmt.Sprintf("request failed with status %d", status)
}

// unwrapKey strips a single named wrapper object when present, e.g.
// {"household": {...}} versus the bare household object.
func unwrapKey(raw json.RawMessage, key string) json.RawMessage {
	var m map[string]json.RawMessage
	if json.Unmarshal(raw, &m) != nil {
		return raw
	}
	if v, ok := m[key]; ok && len(v) > 0 && string(v) != "null" {
		return v
	}
	return raw
}
