// Package apiclient is a small HTTP client for driving a web application's
// API from end-to-end tests: seeding fixtures, querying state, and deleting
// the resources a test created.
//
// Requests are retried on transport errors and 5xx responses with a capped,
// jittered exponential backoff. 4xx responses are never retried: in a test
// the request itself is wrong and repeating it only hides the bug. Every
// logical request carries one X-Request-Id across all of its attempts so
// server logs can be correlated with a single test action.
//
// Client satisfies the cleanup tracker's API deleter contract, so it can be
// passed directly to Tracker.Cleanup.
package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTimeout bounds a single HTTP attempt, not the whole retried
	// request; the caller's context bounds that.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is how many times a failed request is retried on
	// top of the initial attempt.
	DefaultMaxRetries = 3

	// maxResponseBytes caps how much of a response body is read. Test APIs
	// return small JSON documents; anything larger is a bug upstream.
	maxResponseBytes = 10 << 20
)

// Client issues HTTP requests against one base URL. It is safe for
// concurrent use by multiple goroutines.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	headers    map[string]string
	authUser   string
	authPass   string
	logger     *slog.Logger
}

// clientConfig collects option values before New assembles the Client.
type clientConfig struct {
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
	headers    map[string]string
	authUser   string
	authPass   string
	logger     *slog.Logger
}

// Option configures a Client during construction via New.
//
// With* functions panic on invalid input: option values are typically
// compile-time constants, so an invalid value is a programmer error rather
// than a runtime condition.
type Option func(*clientConfig)

// WithHTTPClient supplies the underlying *http.Client, replacing the default
// one. Use it to install custom transports or cookie jars. WithTimeout is
// ignored when this option is given; configure the supplied client instead.
//
// Panics if hc is nil.
func WithHTTPClient(hc *http.Client) Option {
	if hc == nil {
		panic("apiclient: http client must not be nil")
	}
	return func(c *clientConfig) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-attempt timeout on the default HTTP client.
//
// Panics if d <= 0.
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic(fmt.Sprintf("apiclient: timeout must be greater than 0, got %v", d))
	}
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithMaxRetries sets how many times a failed request is retried. Zero
// disables retries; the initial attempt always runs.
//
// Panics if n < 0.
func WithMaxRetries(n int) Option {
	if n < 0 {
		panic(fmt.Sprintf("apiclient: max retries must not be negative, got %d", n))
	}
	return func(c *clientConfig) {
		c.maxRetries = n
	}
}

// WithHeader adds a header set on every request, e.g. a tenant or API token
// header. Later values for the same name win.
//
// Panics if name is empty.
func WithHeader(name, value string) Option {
	if name == "" {
		panic("apiclient: header name must not be empty")
	}
	return func(c *clientConfig) {
		if c.headers == nil {
			c.headers = make(map[string]string)
		}
		c.headers[name] = value
	}
}

// WithBasicAuth sets credentials sent with every request.
//
// Panics if user is empty.
func WithBasicAuth(user, pass string) Option {
	if user == "" {
		panic("apiclient: basic auth user must not be empty")
	}
	return func(c *clientConfig) {
		c.authUser = user
		c.authPass = pass
	}
}

// WithBearerToken sets an "Authorization: Bearer" header sent with every
// request. It overwrites any Authorization header set via WithHeader, and
// vice versa, whichever comes later.
//
// Panics if token is empty.
func WithBearerToken(token string) Option {
	if token == "" {
		panic("apiclient: bearer token must not be empty")
	}
	return func(c *clientConfig) {
		if c.headers == nil {
			c.headers = make(map[string]string)
		}
		c.headers["Authorization"] = "Bearer " + token
	}
}

// WithLogger sets the logger for retry warnings. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// New creates a Client for the given base URL, e.g. "https://qa.example.com".
// The URL must be absolute with an http or https scheme; a trailing slash is
// trimmed so request paths can always start with "/".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL %q: host must not be empty", baseURL)
	}

	cfg := clientConfig{
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
		maxRetries: cfg.maxRetries,
		headers:    cfg.headers,
		authUser:   cfg.authUser,
		authPass:   cfg.authPass,
		logger:     logger,
	}, nil
}

// StatusError is returned by Do for responses outside the 2xx range. Body
// holds the response body (up to maxResponseBytes) for diagnosis.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	const maxBodyInMessage = 256

	if len(e.Body) == 0 {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
	}
	body := e.Body
	if len(body) > maxBodyInMessage {
		body = body[:maxBodyInMessage]
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, body)
}

// Do executes one logical request, following the retry policy, and returns
// the response body. path must be service-relative ("/api/projects"); a
// missing leading slash is added.
//
// Context cancellation stops retrying immediately and returns the context's
// error. A 4xx response returns a *StatusError without retrying; a 5xx
// response returns a *StatusError only once retries are exhausted.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	reqID := uuid.NewString()
	log := c.logger.With("method", method, "path", path, "req_id", reqID)

	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		respBody, status, err := c.doOnce(ctx, method, path, body, reqID)

		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			// Return immediately on cancellation; the test is over.
			return nil, err

		case err != nil:
			lastErr = err
			log.Warn("request failed, trying again",
				"err", err, "attempt", i+1, "max_attempts", c.maxRetries+1)
			sleepContext(ctx, calcBackoff(i))
			continue

		case status >= http.StatusInternalServerError:
			lastErr = &StatusError{Method: method, Path: path, StatusCode: status, Body: respBody}
			log.Warn("server error, trying again",
				"status", status, "attempt", i+1, "max_attempts", c.maxRetries+1)
			sleepContext(ctx, calcBackoff(i))
			continue

		case status >= http.StatusOK && status < http.StatusMultipleChoices:
			return respBody, nil

		default:
			// 1xx/3xx/4xx: the request itself is wrong, retrying hides the bug.
			return nil, &StatusError{Method: method, Path: path, StatusCode: status, Body: respBody}
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// doOnce performs a single HTTP attempt and reads the full response body.
func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, reqID string) ([]byte, int, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}

	if c.authUser != "" {
		req.SetBasicAuth(c.authUser, c.authPass)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", reqID)
	for name, value := range c.headers {
		req.Header.Set(name, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("reading response body: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// url joins the base URL and a service-relative path.
func (c *Client) url(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// calcBackoff returns the pause before retry i: exponential with jitter,
// capped at 2s so a flaky endpoint cannot stall a teardown for long.
func calcBackoff(i int) time.Duration {
	jitter := float64(rand.Int63n(250))
	ms := math.Min(math.Pow(2, float64(i))*100+jitter, 2000)
	return time.Duration(ms) * time.Millisecond
}

// sleepContext pauses for duration or until ctx is done, whichever is first.
func sleepContext(ctx context.Context, duration time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(duration):
	}
}
