package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/authz"
	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/obs"
)

const (
	defaultTimeout = 10 * time.Second

	headerAuthorization = "Authorization"
	headerRequestID     = "X-Request-Id"
	headerActorID       = "X-Actor-Id"
)

// TokenSource supplies the current bearer token for authenticated calls.
type TokenSource func(ctx context.Context) (string, bool)

// Client talks to the console backend's auth and claim endpoints.
type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	tokens  TokenSource
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying transport (test servers, proxies).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit caps outbound request rate so bulk claim traffic cannot
// hammer the backend.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// NewClient creates a client for the given base URL.
func NewClient(base string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		base:    strings.TrimRight(base, "/"),
		http:    &http.Client{},
		timeout: defaultTimeout,
		limiter: rate.NewLimiter(rate.Limit(20), 5),
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges credentials for a token pair. Unauthenticated call.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "auth/login", req, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh exchanges a refresh token for a new pair. Unauthenticated call.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	var resp RefreshResponse
	err := c.do(ctx, http.MethodPost, "/auth/refresh", "auth/refresh", RefreshRequest{RefreshToken: refreshToken}, &resp, false)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout invalidates the server-side session. Best effort at call sites.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", "auth/logout", struct{}{}, nil, true)
}

// Verify is the cheap liveness check for a stored token.
func (c *Client) Verify(ctx context.Context) (*VerifyResponse, error) {
	var resp VerifyResponse
	if err := c.do(ctx, http.MethodGet, "/auth/verify", "auth/verify", nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Claim asks the backend for an exclusive claim on the customer.
func (c *Client) Claim(ctx context.Context, customerID string) error {
	path := "/customers/" + url.PathEscape(customerID) + "/claim"
	return c.do(ctx, http.MethodPost, path, "customers/claim", struct{}{}, nil, true)
}

// Release gives up the claim on the customer.
func (c *Client) Release(ctx context.Context, customerID string) error {
	path := "/customers/" + url.PathEscape(customerID) + "/release"
	return c.do(ctx, http.MethodPost, path, "customers/release", struct{}{}, nil, true)
}

// Transfer moves the claim to another assistant.
func (c *Client) Transfer(ctx context.Context, customerID, targetUserID string) error {
	path := "/customers/" + url.PathEscape(customerID) + "/transfer"
	return c.do(ctx, http.MethodPost, path, "customers/transfer", transferRequest{TargetUserID: targetUserID}, nil, true)
}

// ReleaseAll releases every listed claim in one call. Used during logout.
func (c *Client) ReleaseAll(ctx context.Context, customerIDs []string) error {
	if len(customerIDs) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/customers/release-all", "customers/release-all", releaseAllRequest{CustomerIDs: customerIDs}, nil, true)
}

func (c *Client) do(ctx context.Context, method, path, endpoint string, body, out any, authed bool) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerRequestID, uuid.NewString())
	if actor, ok := authz.ActorFromContext(ctx); ok {
		req.Header.Set(headerActorID, actor)
	}
	if authed && c.tokens != nil {
		if token, ok := c.tokens(ctx); ok {
			req.Header.Set(headerAuthorization, "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		obs.ObserveAPIRequest(endpoint, "error", time.Since(start).Seconds())
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	obs.ObserveAPIRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	if resp.StatusCode >= 400 {
		var envelope errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&envelope)
		return statusError(resp.StatusCode, envelope.Error)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", endpoint, err)
		}
	}
	return nil
}
