package api

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Client reads the exchange's public market-data endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	attempts int           // retries after the first request
	backoff  time.Duration // first retry delay, doubled per retry

	requests   atomic.Int64
	failures   atomic.Int64
	retries    atomic.Int64
	usedWeight atomic.Int64
}

// Stats holds request counters and the last reported request weight.
type Stats struct {
	Requests   int64
	Failures   int64
	Retries    int64
	UsedWeight int64 // X-MBX-USED-WEIGHT-1M from the latest response
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a client for the REST API at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
		now:        time.Now,
		attempts:   3,
		backoff:    time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets how many times a failed request is retried and the
// initial delay between tries.
func WithRetries(retries int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.attempts = retries
		c.backoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger.With("component", "rest_client")
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTLSConfig installs cfg on a copy of the default transport.
func WithTLSConfig(cfg *tls.Config) ClientOption {
	return func(c *Client) {
		if cfg == nil {
			return
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = cfg
		c.httpClient.Transport = transport
	}
}

// Stats returns request counters.
func (c *Client) Stats() Stats {
	return Stats{
		Requests:   c.requests.Load(),
		Failures:   c.failures.Load(),
		Retries:    c.retries.Load(),
		UsedWeight: c.usedWeight.Load(),
	}
}
