// Package pumpfun is a client for the pump.fun public coin feed.
package pumpfun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Selopol/padre-pump-backend/internal/domain"
	"github.com/Selopol/padre-pump-backend/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
	DefaultRPS         = 5.0
	DefaultBurst       = 1

	// latestWindow is how many coins LatestByCreator inspects.
	latestWindow = 10
)

// ErrUpstreamUnavailable is returned when the feed is unreachable or answers non-2xx.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// Client fetches coin pages from the feed.
type Client struct {
	baseURL     string
	client      *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	now         func() time.Time
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithRateLimit caps outgoing requests. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithClock overrides the clock used for detection timestamps.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a feed client for baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(DefaultRPS), DefaultBurst),
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListLatest returns the newest coins, newest first.
func (c *Client) ListLatest(ctx context.Context, offset, limit int) ([]*domain.Coin, error) {
	q := pageQuery(offset, limit)
	q.Set("sort", "created_timestamp")
	q.Set("order", "DESC")
	page, err := c.page(ctx, "/coins", q)
	return page.Coins, err
}

// ListMigrated returns the newest coins that completed their bonding curve.
func (c *Client) ListMigrated(ctx context.Context, offset, limit int) ([]*domain.Coin, error) {
	page, err := c.MigratedPage(ctx, offset, limit)
	return page.Coins, err
}

// MigratedPage is ListMigrated with the upstream element count, for Paginate.
func (c *Client) MigratedPage(ctx context.Context, offset, limit int) (Page, error) {
	q := pageQuery(offset, limit)
	q.Set("sort", "created_timestamp")
	q.Set("order", "DESC")
	q.Set("complete", "true")
	return c.page(ctx, "/coins", q)
}

// ListByCreator returns coins launched by a wallet.
func (c *Client) ListByCreator(ctx context.Context, wallet string, offset, limit int) ([]*domain.Coin, error) {
	page, err := c.CreatorPage(ctx, wallet, offset, limit)
	return page.Coins, err
}

// CreatorPage is ListByCreator with the upstream element count, for Paginate.
func (c *Client) CreatorPage(ctx context.Context, wallet string, offset, limit int) (Page, error) {
	if wallet == "" {
		return Page{}, fmt.Errorf("wallet is required")
	}
	return c.page(ctx, "/coins/user-created-coins/"+url.PathEscape(wallet), pageQuery(offset, limit))
}

// LatestByCreator returns the most recently created coin of a wallet, or nil.
func (c *Client) LatestByCreator(ctx context.Context, wallet string) (*domain.Coin, error) {
	coins, err := c.ListByCreator(ctx, wallet, 0, latestWindow)
	if err != nil {
		return nil, err
	}
	var latest *domain.Coin
	for _, coin := range coins {
		if latest == nil || coin.CreatedAt > latest.CreatedAt {
			latest = coin
		}
	}
	return latest, nil
}

func pageQuery(offset, limit int) url.Values {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("includeNsfw", "true")
	return q
}

func (c *Client) page(ctx context.Context, path string, q url.Values) (Page, error) {
	body, err := c.get(ctx, path, q)
	if err != nil {
		return Page{}, err
	}
	coins, dropped, err := decodeCoins(body, c.now().UnixMilli())
	if err != nil {
		return Page{}, fmt.Errorf("%w: decode %s: %v", ErrUpstreamUnavailable, path, err)
	}
	for i := 0; i < dropped; i++ {
		observability.RecordItemError("feed", "decode")
	}
	return Page{Coins: coins, Received: len(coins) + dropped}, nil
}

// get performs a GET with rate limiting, retries and exponential backoff.
// Transport errors, 429 and 5xx are retried; other non-2xx fail immediately.
func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			observability.RecordUpstream("pumpfun", "error", time.Since(start).Seconds())
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		observability.RecordUpstream("pumpfun", strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (429)")
			if d, ok := retryAfter(resp.Header.Get("Retry-After")); ok && d > delay {
				delay = min(d, c.maxDelay)
			}
			continue
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body))
			continue
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, fmt.Errorf("%w: status %d: %s", ErrUpstreamUnavailable, resp.StatusCode, truncate(body))
		}

		return body, nil
	}

	return nil, fmt.Errorf("%w: max retries exceeded: %v", ErrUpstreamUnavailable, lastErr)
}

func retryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
