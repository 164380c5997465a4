// Package api is the typed client of the complaint backend.
//
// This package implements:
//   - Connection pooling shared by every request of one Client
//   - Client-side rate limiting so dashboard refreshes cannot flood the backend
//   - A request id on every call for correlating backend logs
//   - Classification of failures into transport, status and decode errors
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
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apierrors "cdash/internal/errors"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// maxErrorBody bounds how much of a failed response is kept.
const maxErrorBody = 4096

// Options configures a Client.
type Options struct {
	// BaseURL is the backend root, e.g. http://localhost:3003.
	BaseURL string
	// Timeout bounds one complete request.
	Timeout time.Duration
	// MaxConns caps idle pooled connections.
	MaxConns int
	// RateLimit is the number of requests per second. Zero disables it.
	RateLimit float64
	// HTTPClient overrides the pooled client (tests).
	HTTPClient *http.Client
	// Logger receives request logs.
	Logger *zap.Logger
}

// Client talks to the backend API. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient validates opts and builds a client.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(opts.Timeout, opts.MaxConns)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: base,
		http:    httpClient,
		limiter: limiter,
		logger:  logger.Named("api"),
	}, nil
}

// NewHTTPClient creates an HTTP client with connection pooling.
//
// Connection pool configuration:
//   - MaxIdleConns: maxConns, total idle connections kept for reuse
//   - MaxIdleConnsPerHost: a tenth of maxConns (at least 2); the dashboard
//     talks to a single backend host
//   - IdleConnTimeout: 90 seconds
//
// Parameters:
//   - timeout: maximum time for a complete request (including reading the body)
//   - maxConns: idle connection pool size; values below 1 use 100
//
// Returns:
//   - *http.Client: configured HTTP client
func NewHTTPClient(timeout time.Duration, maxConns int) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxConns < 1 {
		maxConns = 100
	}
	perHost := maxConns / 10
	if perHost < 2 {
		perHost = 2
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        maxConns,
			MaxIdleConnsPerHost: perHost,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}

// endpoint resolves path and query against the base URL.
func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends one request and decodes a JSON answer into out.
//
// Flow:
//  1. Wait for the rate limiter (honours ctx)
//  2. Send the request with a fresh X-Request-ID
//  3. Map non-2xx answers onto StatusError, keeping a bounded body excerpt
//  4. Decode the body into out; a malformed body becomes a DecodeError
//
// Parameters:
//   - method: HTTP method
//   - path: path below the base URL, starting with "/"
//   - query: optional query parameters
//   - body: optional value sent as JSON
//   - out: optional pointer the answer is decoded into
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	op := method + " " + path

	if err := c.limiter.Wait(ctx); err != nil {
		return apierrors.NewTransportError(op, err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return apierrors.NewTransportError(op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", zap.String("op", op), zap.String("request_id", requestID), zap.Error(err))
		return apierrors.NewTransportError(op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request done",
		zap.String("op", op),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apierrors.NewStatusError(op, resp.StatusCode, detail(excerpt))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierrors.NewTransportError(op, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apierrors.NewDecodeError(op, err)
	}
	return nil
}

// detail extracts the "detail" message the backend puts in error bodies,
// falling back to the raw text.
func detail(body []byte) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok {
			return s
		}
		if b, err := json.Marshal(payload.Detail); err == nil {
			return string(b)
		}
	}
	return strings.TrimSpace(string(body))
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}
