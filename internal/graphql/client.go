// Package graphql is the transport to a store's Admin GraphQL endpoint: a
// single POST of {query, variables} authenticated by an access-token header.
//
// A Client issues one request at a time and throttles with a token bucket so
// a migration never exceeds the remote platform's rate limits.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AccessTokenHeader authenticates every request.
const AccessTokenHeader = "X-Shopify-Access-Token"

// Options configures a Client.
type Options struct {
	// RequestsPerSecond throttles requests. Zero disables throttling.
	RequestsPerSecond float64

	// Timeout bounds one request. Zero keeps the http.Client default.
	Timeout time.Duration

	// HTTPClient overrides the underlying client (tests).
	HTTPClient *http.Client

	Logger *zap.Logger
}

// Client talks to one store endpoint.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger

	// mu serializes requests; the migration never overlaps calls to a store.
	mu sync.Mutex
}

// NewClient creates a client for endpoint authenticated with token.
func NewClient(endpoint, token string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Client{
		endpoint: endpoint,
		token:    token,
		http:     httpClient,
		limiter:  limiter,
		logger:   logger.With(zap.String("endpoint", endpoint)),
	}
}

// Endpoint returns the URL the client posts to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []ErrorEntry    `json:"errors"`
}

// Do executes query with variables and decodes the response's data member
// into out. out may be nil when the caller only needs success.
//
// Every failure is returned as *Error.
func (c *Client) Do(ctx context.Context, query string, variables map[string]any, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &Error{Kind: KindTransport, Message: "rate limiter wait", Err: err}
		}
	}

	if variables == nil {
		variables = map[string]any{}
	}
	body, err := json.Marshal(request{Query: query, Variables: variables})
	if err != nil {
		return &Error{Kind: KindEncode, Message: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return &Error{Kind: KindTransport, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(AccessTokenHeader, c.token)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Message: "post", Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindTransport, Message: "read response", Err: err}
	}
	c.logger.Debug("graphql request",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("bytes", len(payload)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			Kind:       KindTransport,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, truncate(payload, 200)),
		}
	}

	var decoded response
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return &Error{Kind: KindDecode, Message: "decode response", Err: err}
	}
	if len(decoded.Errors) > 0 {
		return &Error{Kind: KindGraphQL, Message: "query failed", Entries: decoded.Errors}
	}

	if out == nil || len(decoded.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(decoded.Data, out); err != nil {
		return &Error{Kind: KindDecode, Message: "decode data", Err: err}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
