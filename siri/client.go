package siri

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.511.org/transit"

	// defaultTimeout bounds a single round trip. The upstream API is slow
	// on cold caches; 20s matches its observed worst case.
	defaultTimeout = 20 * time.Second

	maxResponseBodySize = 1 << 20 // 1MB
)

// connection pooling limits to prevent resource exhaustion when many
// pollers share one client
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// rateLimitPrefix is how 511.org reports quota exhaustion inside an
// HTTP 200 body.
const rateLimitPrefix = "The allowed number of requests"

// Client talks to the 511.org transit API.
//
// A single Client is safe for concurrent use and should be shared by all
// pollers using the same credential: it pools connections and paces
// outbound requests with a burst limiter so that many pollers waking at
// once do not hammer the API. The limiter is anti-burst spacing only; the
// hourly request budget is accounted for by the caller.
//
// Client never retries. Each method performs exactly one round trip and
// classifies failures via [Error].
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
}

// ClientOption configures a [Client] during construction.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL. Used by tests to point the
// client at a local fake server.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// WithTimeout overrides the per-request timeout (default 20s).
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a [Client] for the given API key.
//
// The client is configured with connection pooling limits and a 1 req/s
// anti-burst limiter. Per-request timeouts are applied via context, not a
// global client timeout.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		timeout: defaultTimeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StopMonitoring fetches the current monitored visits for a stop.
//
// The operator is the 511 agency code (e.g. "SF"); stopCode identifies the
// stop within that operator.
func (c *Client) StopMonitoring(ctx context.Context, operator, stopCode string) (*Delivery, error) {
	const op = "StopMonitoring"
	params := url.Values{"agency": {operator}}
	if stopCode != "" {
		params.Set("stopCode", stopCode)
	}
	body, err := c.get(ctx, op, params)
	if err != nil {
		return nil, err
	}
	d, derr := decodeStopDelivery(body)
	if derr != nil {
		return nil, &Error{Kind: KindDecode, Op: op, Err: derr}
	}
	return d, nil
}

// VehicleMonitoring fetches the current activity for a vehicle.
func (c *Client) VehicleMonitoring(ctx context.Context, operator, vehicleID string) (*Delivery, error) {
	const op = "VehicleMonitoring"
	params := url.Values{"agency": {operator}}
	if vehicleID != "" {
		params.Set("vehicleID", vehicleID)
	}
	body, err := c.get(ctx, op, params)
	if err != nil {
		return nil, err
	}
	d, derr := decodeVehicleDelivery(body)
	if derr != nil {
		return nil, &Error{Kind: KindDecode, Op: op, Err: derr}
	}
	return d, nil
}

// get performs one GET round trip and returns the sanitized body.
// All failure classification happens here so the endpoint methods only
// deal with payload decoding.
func (c *Client) get(ctx context.Context, op string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params.Set("api_key", c.apiKey)
	params.Set("format", "JSON")
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, op, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{Kind: KindRateLimit, Op: op, Message: "rate limit exceeded"}
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, &Error{Kind: KindAuth, Op: op, Message: "authentication failed"}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &Error{Kind: KindNetwork, Op: op, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: err}
	}

	// 511 prepends a UTF-8 BOM to JSON responses
	body = bytes.TrimSpace(bytes.TrimPrefix(body, []byte("\ufeff")))

	if len(body) == 0 {
		return nil, &Error{Kind: KindEmpty, Op: op, Message: "empty response"}
	}
	if strings.HasPrefix(string(body), rateLimitPrefix) {
		return nil, &Error{Kind: KindRateLimit, Op: op, Message: truncate(string(body), 120)}
	}
	if body[0] != '{' && body[0] != '[' {
		return nil, &Error{Kind: KindDecode, Op: op, Message: "not a JSON response: " + truncate(string(body), 120)}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
