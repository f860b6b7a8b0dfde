package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const userAgent = "healthlens-cli/1.0 (+https://github.com/KaramelBytes/healthlens-cli)"

// Client downloads source files over HTTP with retry/backoff on 429/5xx and
// transient network errors.
type Client struct {
	httpClient       *http.Client
	limiter          *rate.Limiter
	logger           *zap.Logger
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleep            func(context.Context, time.Duration) error
}

// Options customizes a Client. Zero values fall back to defaults.
type Options struct {
	HTTPTimeout       time.Duration
	RetryMaxAttempts  int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	RequestsPerSecond float64
	Logger            *zap.Logger
}

// NewClient allows customizing HTTP timeout, pacing and retry/backoff behavior.
func NewClient(opt Options) *Client {
	if opt.HTTPTimeout <= 0 {
		opt.HTTPTimeout = 60 * time.Second
	}
	if opt.RetryMaxAttempts <= 0 {
		opt.RetryMaxAttempts = 3
	}
	if opt.RetryBaseDelay <= 0 {
		opt.RetryBaseDelay = 500 * time.Millisecond
	}
	if opt.RetryMaxDelay <= 0 {
		opt.RetryMaxDelay = 4 * time.Second
	}
	limit := rate.Inf
	if opt.RequestsPerSecond > 0 {
		limit = rate.Limit(opt.RequestsPerSecond)
	}
	logger := opt.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient:       &http.Client{Timeout: opt.HTTPTimeout},
		limiter:          rate.NewLimiter(limit, 1),
		logger:           logger,
		retryMaxAttempts: opt.RetryMaxAttempts,
		retryBaseDelay:   opt.RetryBaseDelay,
		retryMaxDelay:    opt.RetryMaxDelay,
		sleep:            sleepCtx,
	}
}

// request describes a single GET.
type request struct {
	url      string
	user     string
	password string
}

// Download performs a GET against rawURL and streams the body into w.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	return c.do(ctx, request{url: rawURL}, w)
}

func (c *Client) do(ctx context.Context, req request, w io.Writer) (int64, error) {
	host := req.url
	if u, err := url.Parse(req.url); err == nil {
		host = u.Host
	}
	backoff := c.retryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, err
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.url, nil)
		if err != nil {
			return 0, fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("User-Agent", userAgent)
		if req.user != "" {
			httpReq.SetBasicAuth(req.user, req.password)
		}

		c.logger.Debug("download attempt", zap.String("url", req.url), zap.Int("attempt", attempt))
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			lastErr = &UnreachableError{Host: host, Err: err}
			if isRetryableNetErr(err) && attempt < c.retryMaxAttempts {
				if err := c.wait(ctx, backoff, attempt, lastErr); err != nil {
					return 0, err
				}
				backoff *= 2
				continue
			}
			return 0, lastErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			n, err := io.Copy(w, resp.Body)
			resp.Body.Close()
			if err != nil {
				return n, fmt.Errorf("read body: %w", err)
			}
			return n, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		resp.Body.Close()
		httpErr := &HTTPError{StatusCode: resp.StatusCode, URL: req.url, Body: string(body)}
		lastErr = classifyHTTPError(httpErr, resp)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		if !retryable || attempt >= c.retryMaxAttempts {
			return 0, lastErr
		}
		var rl *RateLimitError
		if errors.As(lastErr, &rl) && rl.RetryAfter > 0 {
			// the server's delay is used as given, without jitter or cap
			c.logger.Warn("rate limited, honouring Retry-After",
				zap.Int("attempt", attempt),
				zap.Duration("retry_after", rl.RetryAfter))
			if err := c.sleep(ctx, rl.RetryAfter); err != nil {
				return 0, err
			}
			continue
		}
		if err := c.wait(ctx, backoff, attempt, lastErr); err != nil {
			return 0, err
		}
		backoff *= 2
	}
	return 0, lastErr
}

func (c *Client) wait(ctx context.Context, d time.Duration, attempt int, cause error) error {
	sleep := withJitter(d)
	if c.retryMaxDelay > 0 && sleep > c.retryMaxDelay {
		sleep = c.retryMaxDelay
	}
	c.logger.Warn("retrying download",
		zap.Int("attempt", attempt),
		zap.Duration("backoff", sleep),
		zap.Error(cause))
	return c.sleep(ctx, sleep)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	// EOF or connection reset
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// parseRetryAfterSeconds tries to interpret Retry-After header value as seconds or HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// classifyHTTPError maps a status code to a typed error.
func classifyHTTPError(httpErr *HTTPError, resp *http.Response) error {
	sc := httpErr.StatusCode
	switch {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return &AuthError{HTTPError: httpErr}
	case sc == http.StatusNotFound:
		return &NotFoundError{HTTPError: httpErr}
	case sc == http.StatusTooManyRequests:
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{HTTPError: httpErr, RetryAfter: ra}
	case sc >= 500 && sc <= 599:
		return &ServerError{HTTPError: httpErr}
	}
	return httpErr
}

// withJitter returns a backoff duration with +/- 20% jitter applied.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}
