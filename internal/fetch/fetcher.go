// Package fetch implements the rate-limited, retrying page fetcher.
//
// A Fetcher paces requests per instance: at most MaxConcurrency requests in
// flight, and at least Delay between the starts of consecutive requests.
// Transient failures (5xx, network) are retried with exponential backoff;
// client errors (4xx) fail immediately.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Config configures the fetcher.
type Config struct {
	// Delay is the minimum gap between the starts of two requests
	// issued by this instance. Default: 2s.
	Delay time.Duration
	// MaxRetries is the number of additional attempts after the first
	// for transient failures. Default: 3.
	MaxRetries int
	// MaxConcurrency bounds in-flight requests per instance. Default: 2.
	MaxConcurrency int64
	// Timeout is the per-request HTTP timeout. Default: 30s.
	Timeout time.Duration
	// MaxBytes caps the response body size. Default: 10MB.
	MaxBytes int64
}

func (c *Config) defaults() {
	if c.Delay <= 0 {
		c.Delay = 2 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 2
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
}

// FetchError is the terminal error of a FetchPage call.
type FetchError struct {
	URL        string
	Attempts   int
	StatusCode int // last observed HTTP status, 0 if the failure was pre-response
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// identity is one rotating request signature.
type identity struct {
	userAgent      string
	acceptLanguage string
}

// identities is the fixed pool rotated across attempts to reduce
// fingerprint-based blocking.
var identities = []identity{
	{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36", "en-US,en;q=0.9"},
	{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36", "en-US,en;q=0.8"},
	{"Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0", "en-GB,en;q=0.9"},
	{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15", "en-US,en;q=0.7"},
}

// Fetcher issues paced HTTP GET requests.
type Fetcher struct {
	client *http.Client
	config Config
	sem    *semaphore.Weighted
	logger *slog.Logger

	mu        sync.Mutex
	nextStart time.Time // earliest allowed start of the next request
}

// New creates a Fetcher.
func New(cfg Config, logger *slog.Logger) *Fetcher {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrency),
		logger: logger,
	}
}

// FetchPage retrieves url and returns the page body as text.
//
// It blocks until an in-flight slot is free, then until the minimum delay
// since the previous request start has elapsed. Transient failures are
// retried with exponential backoff (2^attempt seconds); 4xx responses fail
// immediately. The returned error is always a *FetchError on failure.
func (f *Fetcher) FetchPage(ctx context.Context, url string, extraHeaders map[string]string) (string, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return "", &FetchError{URL: url, Attempts: 0, Err: err}
	}
	defer f.sem.Release(1)

	var lastErr error
	var lastStatus int

	for attempt := 0; attempt <= f.config.MaxRetries; attempt++ {
		if err := f.waitTurn(ctx); err != nil {
			return "", &FetchError{URL: url, Attempts: attempt, StatusCode: lastStatus, Err: err}
		}

		body, status, err := f.do(ctx, url, extraHeaders)
		if err == nil {
			f.logger.Debug("fetch: ok", "url", url, "status", status, "attempt", attempt+1, "bytes", len(body))
			return body, nil
		}

		lastErr = err
		lastStatus = status
		f.logger.Warn("fetch: attempt failed", "url", url, "status", status,
			"attempt", attempt+1, "class", Classify(status, err.Error()), "error", err)

		// 4xx is durable: the page is gone, forbidden, or the request is
		// malformed. Retrying cannot help.
		if status >= 400 && status < 500 {
			return "", &FetchError{URL: url, Attempts: attempt + 1, StatusCode: status, Err: err}
		}

		if attempt < f.config.MaxRetries {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			select {
			case <-ctx.Done():
				return "", &FetchError{URL: url, Attempts: attempt + 1, StatusCode: lastStatus, Err: ctx.Err()}
			case <-time.After(backoff):
			}
		}
	}

	return "", &FetchError{
		URL:        url,
		Attempts:   f.config.MaxRetries + 1,
		StatusCode: lastStatus,
		Err:        lastErr,
	}
}

// waitTurn reserves the next request start slot and sleeps until it.
// Slots are spaced Delay apart per instance, regardless of which goroutine
// claims them.
func (f *Fetcher) waitTurn(ctx context.Context) error {
	f.mu.Lock()
	now := time.Now()
	start := f.nextStart
	if start.Before(now) {
		start = now
	}
	f.nextStart = start.Add(f.config.Delay)
	f.mu.Unlock()

	if wait := time.Until(start); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil
}

// do issues one attempt. A non-2xx response is returned as an error with
// the status code.
func (f *Fetcher) do(ctx context.Context, url string, extraHeaders map[string]string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("new request: %w", err)
	}

	id := identities[rand.IntN(len(identities))]
	req.Header.Set("User-Agent", id.userAgent)
	req.Header.Set("Accept-Language", id.acceptLanguage)
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", resp.StatusCode, fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return string(body), resp.StatusCode, nil
}
