// Package fetch provides the per-worker HTTP clients used for remote tile
// and data fetches, plus the worker-keyed pool that owns them.
package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/tileforge/tileserv/pkg/config"
	"github.com/tileforge/tileserv/pkg/metrics"
)

// Client is a connect-ready HTTP client context. A Client belongs to exactly
// one serving worker and is not safe for concurrent use by other workers;
// the pool enforces that ownership.
type Client struct {
	workerID   int
	config     *config.HTTPConfig
	logger     *zap.Logger
	httpClient *http.Client
	transport  *http.Transport
	breaker    *CircuitBreaker
	metrics    *metrics.Collector

	totalRequests  int64
	failedRequests int64
}

// NewClient builds a client for the given worker from the shared fetch
// configuration. Transport construction can fail when HTTP/2 setup is
// rejected.
func NewClient(workerID int, cfg *config.HTTPConfig, logger *zap.Logger) (*Client, error) {
	c := &Client{
		workerID: workerID,
		config:   cfg,
		metrics:  metrics.NewCollector(),
		logger: logger.With(
			zap.String("component", "fetch_client"),
			zap.Int("worker_id", workerID)),
	}

	c.transport = &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.KeepAlive,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // operator opt-in
			MinVersion:         tls.VersionTLS12,
		},
	}

	if cfg.EnableHTTP2 {
		if err := http2.ConfigureTransport(c.transport); err != nil {
			return nil, fmt.Errorf("failed to configure HTTP/2: %w", err)
		}
	}

	c.httpClient = &http.Client{
		Transport: c.transport,
		Timeout:   cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	if cfg.CircuitBreakerEnabled {
		c.breaker = NewCircuitBreaker(cfg, c.logger)
	}

	return c, nil
}

// WorkerID returns the owning worker's ID.
func (c *Client) WorkerID() int {
	return c.workerID
}

// Get performs an HTTP GET request.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url, headers)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Do performs an HTTP request under the circuit breaker.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.breaker != nil && !c.breaker.Allow() {
		atomic.AddInt64(&c.failedRequests, 1)
		c.metrics.RecordFetch("rejected")
		return nil, fmt.Errorf("circuit breaker open")
	}

	atomic.AddInt64(&c.totalRequests, 1)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		atomic.AddInt64(&c.failedRequests, 1)
		c.metrics.RecordFetch("failure")
		if c.breaker != nil {
			c.breaker.RecordFailure()
		}
		return nil, err
	}

	c.metrics.RecordFetch("success")
	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}

	return resp, nil
}

// newRequest creates an HTTP request with the default fetch headers
func (c *Client) newRequest(ctx context.Context, method, url string, headers map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "tileserv/1.0")
	}

	return req, nil
}

// Stats returns request counters for the client.
func (c *Client) Stats() ClientStats {
	total := atomic.LoadInt64(&c.totalRequests)
	failed := atomic.LoadInt64(&c.failedRequests)

	stats := ClientStats{
		TotalRequests:  total,
		FailedRequests: failed,
	}
	if total > 0 {
		stats.SuccessRate = float64(total-failed) / float64(total) * 100
	}
	return stats
}

// Close releases idle connections held by the client's transport.
func (c *Client) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// ClientStats represents per-client request statistics
type ClientStats struct {
	TotalRequests  int64   `json:"total_requests"`
	FailedRequests int64   `json:"failed_requests"`
	SuccessRate    float64 `json:"success_rate"`
}
