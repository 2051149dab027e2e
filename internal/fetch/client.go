// Package fetch implements the resilient HTTP text client used by every
// upstream call. Each attempt carries its own timeout; failures back off
// linearly (base delay times attempt number) up to a retry budget, then
// surface as a typed *Error carrying the last cause.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/echecs92/chess-sync/internal/metrics"
)

// Error is the terminal failure of a fetch after all retries.
type Error struct {
	URL      string
	Attempts int
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("fetch %s: HTTP %d after %d attempt(s)", e.URL, e.Status, e.Attempts)
	}
	return fmt.Sprintf("fetch %s: %v after %d attempt(s)", e.URL, e.Err, e.Attempts)
}

func (e *Error) Unwrap() error { return e.Err }

// Options adjusts a single call.
type Options struct {
	Headers map[string]string
	// MaxRetries overrides the client budget when >= 0.
	MaxRetries int
}

// DefaultOptions leaves the client retry budget in place.
func DefaultOptions() Options {
	return Options{MaxRetries: -1}
}

// Config holds client-wide settings.
type Config struct {
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	UserAgent   string
}

// Client performs GET/POST requests returning decoded body text.
type Client struct {
	http    *http.Client
	cfg     Config
	logger  *zap.Logger
	headers map[string]string
}

// New builds a Client. The http.Client has no timeout of its own, each
// attempt is bounded by a per-attempt context deadline.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	headers := map[string]string{}
	if cfg.UserAgent != "" {
		headers["User-Agent"] = cfg.UserAgent
	}
	return &Client{
		http:    &http.Client{},
		cfg:     cfg,
		logger:  logger,
		headers: headers,
	}
}

// Text fetches url with GET and returns the response body.
func (c *Client) Text(ctx context.Context, rawURL string, opts Options) (string, error) {
	return c.do(ctx, http.MethodGet, rawURL, "", opts)
}

// PostForm submits form values as application/x-www-form-urlencoded and
// returns the response body. Used for WebForms postback pagination.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, opts Options) (string, error) {
	body := form.Encode()
	headers := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	for k, v := range opts.Headers {
		headers[k] = v
	}
	opts.Headers = headers
	return c.do(ctx, http.MethodPost, rawURL, body, opts)
}

// Download streams rawURL into path, retrying on the client budget. Unlike
// Text it puts no per-attempt deadline on the transfer: rating list archives
// run to tens of megabytes, so only the caller context bounds it.
func (c *Client) Download(ctx context.Context, rawURL, path string, opts Options) error {
	retries := c.cfg.MaxRetries
	if opts.MaxRetries >= 0 {
		retries = opts.MaxRetries
	}

	var lastErr error
	lastStatus := 0
	attempts := 0

	for attempt := 0; attempt <= retries; attempt++ {
		attempts++
		status, err := c.downloadAttempt(ctx, rawURL, path, opts.Headers)
		if err == nil {
			metrics.CountFetchAttempt(http.MethodGet, "ok")
			return nil
		}
		metrics.CountFetchAttempt(http.MethodGet, "error")
		lastErr = err
		lastStatus = status

		if ctx.Err() != nil {
			break
		}
		if attempt < retries {
			metrics.CountFetchRetry()
			c.logger.Debug("download retry",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			if !sleepCtx(ctx, c.cfg.BackoffBase*time.Duration(attempt+1)) {
				break
			}
		}
	}

	metrics.CountFetchFailure()
	return &Error{URL: rawURL, Attempts: attempts, Status: lastStatus, Err: lastErr}
}

func (c *Client) downloadAttempt(ctx context.Context, rawURL, path string, headers map[string]string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close() //nolint:errcheck // read side fully consumed below

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	out, err := os.Create(path)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(path)
		return resp.StatusCode, fmt.Errorf("write %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return resp.StatusCode, fmt.Errorf("close %s: %w", path, err)
	}
	return resp.StatusCode, nil
}

func (c *Client) do(ctx context.Context, method, rawURL, body string, opts Options) (string, error) {
	retries := c.cfg.MaxRetries
	if opts.MaxRetries >= 0 {
		retries = opts.MaxRetries
	}

	var lastErr error
	lastStatus := 0
	attempts := 0

	for attempt := 0; attempt <= retries; attempt++ {
		attempts++
		text, status, err := c.attempt(ctx, method, rawURL, body, opts.Headers)
		if err == nil {
			metrics.CountFetchAttempt(method, "ok")
			return text, nil
		}
		metrics.CountFetchAttempt(method, "error")
		lastErr = err
		lastStatus = status

		if ctx.Err() != nil {
			break
		}
		if attempt < retries {
			metrics.CountFetchRetry()
			c.logger.Debug("fetch retry",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			if !sleepCtx(ctx, c.cfg.BackoffBase*time.Duration(attempt+1)) {
				break
			}
		}
	}

	metrics.CountFetchFailure()
	return "", &Error{URL: rawURL, Attempts: attempts, Status: lastStatus, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, method, rawURL, body string, headers map[string]string) (string, int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, rawURL, reader)
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close() //nolint:errcheck // read side fully consumed below

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return "", resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return string(data), resp.StatusCode, nil
}

// sleepCtx waits for d or until ctx is done; it reports whether the full
// delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// IsFetchError reports whether err is (or wraps) a fetch *Error.
func IsFetchError(err error) bool {
	var fe *Error
	return errors.As(err, &fe)
}
