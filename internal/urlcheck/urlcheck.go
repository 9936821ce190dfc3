// Package urlcheck probes asset URL reachability before import.
package urlcheck

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// DefaultTimeout bounds each individual probe.
const DefaultTimeout = 6 * time.Second

// retryWithGetStatuses are responses where the host likely rejects HEAD
// rather than the resource being gone; those get one GET retry.
var retryWithGetStatuses = map[int]struct{}{
	http.StatusUnauthorized:     {},
	http.StatusForbidden:        {},
	http.StatusMethodNotAllowed: {},
}

// Result is the outcome of probing one URL.
type Result struct {
	URL    string `json:"url"`
	OK     bool   `json:"ok"`
	Status int    `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Checker probes URLs with a bounded per-request timeout. When Bypass is set
// every check short-circuits to ok with status 0, for restricted-network
// environments.
type Checker struct {
	client  *http.Client
	timeout time.Duration
	bypass  bool
}

// Option configures a Checker.
type Option func(*Checker)

// WithTimeout overrides the per-probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithBypass disables network probing entirely.
func WithBypass(bypass bool) Option {
	return func(c *Checker) { c.bypass = bypass }
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Checker) {
		if client != nil {
			c.client = client
		}
	}
}

// NewChecker creates a Checker with default settings.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		client:  &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check probes a single URL with a HEAD request. Hosts answering 401, 403 or
// 405 get one GET retry, since some reject HEAD outright. Network failures
// and timeouts map to ok=false with the error text preserved.
func (c *Checker) Check(ctx context.Context, url string) Result {
	if c.bypass {
		return Result{URL: url, OK: true, Status: 0}
	}

	status, err := c.probe(ctx, http.MethodHead, url)
	if err != nil {
		return Result{URL: url, OK: false, Error: err.Error()}
	}

	if _, retry := retryWithGetStatuses[status]; retry {
		status, err = c.probe(ctx, http.MethodGet, url)
		if err != nil {
			return Result{URL: url, OK: false, Error: err.Error()}
		}
	}

	return Result{
		URL:    url,
		OK:     status >= http.StatusOK && status < http.StatusBadRequest,
		Status: status,
	}
}

func (c *Checker) probe(ctx context.Context, method, url string) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}

// CheckAll dedupes URLs and probes them sequentially. Sequential on purpose:
// per-host rate limits matter more than probe latency here.
func (c *Checker) CheckAll(ctx context.Context, urls []string) []Result {
	seen := make(map[string]struct{}, len(urls))
	results := make([]Result, 0, len(urls))
	for _, url := range urls {
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		results = append(results, c.Check(ctx, url))
	}
	return results
}
