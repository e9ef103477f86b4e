package api

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

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jobmarket/marketplace-client/internal/credstore"
	"github.com/jobmarket/marketplace-client/internal/httpclient"
	"github.com/jobmarket/marketplace-client/internal/metrics"
	"github.com/jobmarket/marketplace-client/pkg/model"
	"github.com/jobmarket/marketplace-client/pkg/utils"
)

const (
	loginEndpoint    = "/auth/login/"
	logoutEndpoint   = "/auth/logout/"
	refreshEndpoint  = "/auth/refresh/"
	registerEndpoint = "/auth/register/"
)

// Doer performs one HTTP round trip. *httpclient.Executor satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request, rateLimitKey string) (*httpclient.Response, error)
}

// SessionNotifier is told about login, refresh, logout and expiry.
type SessionNotifier interface {
	Notify(ctx context.Context, ev model.SessionEvent)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, model.SessionEvent) {}

// Client is the authenticated request pipeline for the marketplace API.
// Tokens are loaded from the store at construction and written back on every change.
type Client struct {
	logger   *zap.Logger
	baseURL  string
	rateKey  string
	exec     Doer
	store    credstore.Store
	notifier SessionNotifier

	mu           sync.RWMutex
	accessToken  string
	refreshToken string

	refreshGroup singleflight.Group
}

// NewClient builds a pipeline rooted at baseURL (for example http://localhost:8000/api)
// and restores any tokens held in store. notifier may be nil.
func NewClient(ctx context.Context, logger *zap.Logger, baseURL string, exec Doer, store credstore.Store, notifier SessionNotifier) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("api: invalid base url %q", baseURL)
	}

	c := &Client{
		logger:   logger,
		baseURL:  strings.TrimRight(baseURL, "/"),
		rateKey:  u.Host,
		exec:     exec,
		store:    store,
		notifier: notifier,
	}

	if c.accessToken, err = c.loadKey(ctx, credstore.KeyAccessToken); err != nil {
		return nil, err
	}
	if c.refreshToken, err = c.loadKey(ctx, credstore.KeyRefreshToken); err != nil {
		return nil, err
	}

	logger.Debug("api.client_ready",
		zap.String("base_url", c.baseURL),
		zap.Bool("authenticated", c.accessToken != ""),
		zap.Bool("refreshable", c.refreshToken != ""))
	return c, nil
}

func (c *Client) loadKey(ctx context.Context, key string) (string, error) {
	v, err := c.store.Get(ctx, key)
	if errors.Is(err, credstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("api: load %s: %w", key, err)
	}
	return v, nil
}

// Send issues a request to baseURL+endpoint. A 401 with a held refresh token triggers
// one refresh followed by one replay; if the refresh fails the session is cleared and
// the call fails with ErrSessionExpired.
func (c *Client) Send(ctx context.Context, endpoint string, opts RequestOptions) (*Response, error) {
	return c.send(ctx, endpoint, opts, true)
}

// send is Send with control over the terminal refresh failure. With expireOnFailure
// false the session is left untouched and the refresh error is returned as is.
func (c *Client) send(ctx context.Context, endpoint string, opts RequestOptions, expireOnFailure bool) (*Response, error) {
	resp, sentToken, err := c.issue(ctx, endpoint, opts)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !opts.SkipRefresh && c.hasRefreshToken() {
		if err := c.refreshAfter(ctx, sentToken); err != nil {
			if !expireOnFailure {
				return nil, fmt.Errorf("refresh: %w", err)
			}
			c.expire(ctx, err)
			return nil, &SessionExpiredError{Cause: err}
		}
		replay := opts
		replay.SkipRefresh = true
		return c.send(ctx, endpoint, replay, expireOnFailure)
	}

	return c.parse(opts.method(), endpoint, resp)
}

// issue sends one request and reports the access token it carried.
func (c *Client) issue(ctx context.Context, endpoint string, opts RequestOptions) (*httpclient.Response, string, error) {
	method := opts.method()
	target := c.baseURL + endpoint
	if len(opts.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + opts.Query.Encode()
	}

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, "", fmt.Errorf("api: build %s %s: %w", method, endpoint, err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	var token string
	if !opts.SkipAuth {
		c.mu.RLock()
		token = c.accessToken
		c.mu.RUnlock()
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.exec.Do(ctx, req, c.rateKey)
	if err != nil {
		c.logger.Debug("api.transport_failed", zap.String("method", method), zap.String("endpoint", endpoint), zap.Error(err))
		return nil, "", &TransportError{Method: method, Endpoint: endpoint, Err: err}
	}
	return resp, token, nil
}

func (c *Client) parse(method, endpoint string, resp *httpclient.Response) (*Response, error) {
	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 && resp.OK() {
		body = []byte("null")
	}
	if !json.Valid(body) {
		c.logger.Debug("api.parse_failed", zap.String("endpoint", endpoint), zap.Int("status", resp.StatusCode))
		return nil, &ParseError{Status: resp.StatusCode, Err: errors.New("invalid JSON body")}
	}

	if !resp.OK() {
		msg := failureMessage(body)
		c.logger.Debug("api.request_failed",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return nil, &RequestFailedError{Status: resp.StatusCode, Message: msg, Body: body}
	}

	return &Response{Status: resp.StatusCode, Body: body}, nil
}

func (c *Client) hasRefreshToken() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshToken != ""
}

// refreshAfter refreshes unless another caller already rotated the token that got the 401.
func (c *Client) refreshAfter(ctx context.Context, staleToken string) error {
	if staleToken != "" {
		c.mu.RLock()
		current := c.accessToken
		c.mu.RUnlock()
		if current != "" && current != staleToken {
			return nil
		}
	}
	return c.Refresh(ctx)
}

// Refresh exchanges the held refresh token for a new access token. Concurrent callers
// share one in-flight call. A failure leaves the stored tokens untouched.
func (c *Client) Refresh(ctx context.Context) error {
	_, err, shared := c.refreshGroup.Do("refresh", func() (any, error) {
		return nil, c.refresh(context.WithoutCancel(ctx))
	})
	if shared {
		c.logger.Debug("api.refresh_shared")
	}
	return err
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// refresh talks to the executor directly so it can never re-enter Send.
func (c *Client) refresh(ctx context.Context) error {
	c.mu.RLock()
	refreshToken := c.refreshToken
	c.mu.RUnlock()
	if refreshToken == "" {
		metrics.IncTokenRefresh("no_token")
		return errors.New("no refresh token held")
	}

	payload, err := json.Marshal(map[string]string{"refresh": refreshToken})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+refreshEndpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.exec.Do(ctx, req, c.rateKey)
	if err != nil {
		metrics.IncTokenRefresh("transport_error")
		c.logger.Warn("api.refresh_failed", zap.Error(err))
		return &TransportError{Method: http.MethodPost, Endpoint: refreshEndpoint, Err: err}
	}
	if !resp.OK() {
		metrics.IncTokenRefresh("rejected")
		c.logger.Warn("api.refresh_rejected", zap.Int("status", resp.StatusCode))
		return &RequestFailedError{Status: resp.StatusCode, Message: failureMessage(resp.Body), Body: resp.Body}
	}

	var out refreshResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		metrics.IncTokenRefresh("invalid_response")
		return &ParseError{Status: resp.StatusCode, Err: err}
	}
	if out.Access == "" {
		metrics.IncTokenRefresh("invalid_response")
		return errors.New("refresh response has empty access token")
	}

	c.mu.Lock()
	c.accessToken = out.Access
	if out.Refresh != "" {
		c.refreshToken = out.Refresh
	}
	c.mu.Unlock()

	if err := c.store.Set(ctx, credstore.KeyAccessToken, out.Access); err != nil {
		c.logger.Warn("api.persist_failed", zap.String("key", credstore.KeyAccessToken), zap.Error(err))
	}
	if out.Refresh != "" {
		if err := c.store.Set(ctx, credstore.KeyRefreshToken, out.Refresh); err != nil {
			c.logger.Warn("api.persist_failed", zap.String("key", credstore.KeyRefreshToken), zap.Error(err))
		}
	}

	metrics.IncTokenRefresh("success")
	c.logger.Info("api.token_refreshed",
		zap.String("access", utils.MaskToken(out.Access)),
		zap.Bool("rotated_refresh", out.Refresh != ""))
	c.notifier.Notify(ctx, model.NewSessionEvent(model.SessionRefreshed, c.cachedUser(ctx)))
	return nil
}

// expire clears the session after a terminal refresh failure. Only the caller that
// actually held tokens announces the expiry.
func (c *Client) expire(ctx context.Context, cause error) {
	user := c.cachedUser(ctx)
	if !c.clearTokens() {
		return
	}
	if err := c.store.Delete(ctx, credstore.SessionKeys...); err != nil {
		c.logger.Warn("api.clear_failed", zap.Error(err))
	}
	metrics.IncSessionExpired()
	c.logger.Warn("api.session_expired", zap.Error(cause))
	c.notifier.Notify(ctx, model.NewSessionEvent(model.SessionExpired, user))
}

// clearTokens drops both tokens and reports whether any were held.
func (c *Client) clearTokens() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	held := c.accessToken != "" || c.refreshToken != ""
	c.accessToken = ""
	c.refreshToken = ""
	return held
}

// Login authenticates with email and password. When the response carries an access
// token both tokens and the user snapshot are persisted.
func (c *Client) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	opts, err := Post(model.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	opts.SkipAuth = true
	opts.SkipRefresh = true

	resp, err := c.Send(ctx, loginEndpoint, opts)
	if err != nil {
		return nil, err
	}
	var out model.LoginResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if out.Access == "" {
		return &out, nil
	}

	c.mu.Lock()
	c.accessToken = out.Access
	c.refreshToken = out.Refresh
	c.mu.Unlock()

	userJSON, err := json.Marshal(out.User)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}
	var errs []error
	for _, kv := range [][2]string{
		{credstore.KeyAccessToken, out.Access},
		{credstore.KeyRefreshToken, out.Refresh},
		{credstore.KeyUser, string(userJSON)},
	} {
		if err := c.store.Set(ctx, kv[0], kv[1]); err != nil {
			errs = append(errs, fmt.Errorf("persist %s: %w", kv[0], err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return &out, err
	}

	fields := []zap.Field{zap.String("access", utils.MaskToken(out.Access))}
	if out.User != nil {
		fields = append(fields, zap.Int64("user_id", out.User.ID), zap.String("role", string(out.User.Role)))
	}
	c.logger.Info("api.logged_in", fields...)
	c.notifier.Notify(ctx, model.NewSessionEvent(model.SessionLogin, out.User))
	return &out, nil
}

// Logout tells the server (best effort) and then always clears the local session.
// A dead session is reported as a logout, never as an expiry. Only store failures
// are returned.
func (c *Client) Logout(ctx context.Context) error {
	user := c.cachedUser(ctx)

	c.mu.RLock()
	refreshToken := c.refreshToken
	c.mu.RUnlock()

	if refreshToken != "" {
		opts, err := Post(map[string]string{"refresh_token": refreshToken})
		if err == nil {
			_, err = c.send(ctx, logoutEndpoint, opts, false)
		}
		if err != nil {
			c.logger.Warn("api.logout_notify_failed", zap.Error(err))
		}
	}

	c.clearTokens()
	if err := c.store.Delete(ctx, credstore.SessionKeys...); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}

	c.logger.Info("api.logged_out")
	c.notifier.Notify(ctx, model.NewSessionEvent(model.SessionLogout, user))
	return nil
}

// Register creates an account. It never sends or refreshes credentials.
func (c *Client) Register(ctx context.Context, in model.RegisterRequest) (*model.RegisterResponse, error) {
	opts, err := Post(in)
	if err != nil {
		return nil, err
	}
	opts.SkipAuth = true
	opts.SkipRefresh = true

	resp, err := c.Send(ctx, registerEndpoint, opts)
	if err != nil {
		return nil, err
	}
	var out model.RegisterResponse
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// IsAuthenticated reports whether an access token is held.
func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken != ""
}

// Tokens returns the held access and refresh tokens.
func (c *Client) Tokens() (access, refresh string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken, c.refreshToken
}

// User returns the stored user snapshot, or nil when none is held.
func (c *Client) User(ctx context.Context) (*model.User, error) {
	raw, err := c.store.Get(ctx, credstore.KeyUser)
	if errors.Is(err, credstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ParseUser(raw)
}

func (c *Client) cachedUser(ctx context.Context) *model.User {
	u, err := c.User(ctx)
	if err != nil {
		c.logger.Debug("api.user_snapshot_unreadable", zap.Error(err))
		return nil
	}
	return u
}
