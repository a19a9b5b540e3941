// Package social looks up post authors and community owners on a
// Twitter-compatible lookup API.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Selopol/padre-pump-backend/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultRPS        = 2.0

	profileBaseURL = "https://x.com/"
)

var (
	// ErrNotFound is returned when the post or community does not exist.
	ErrNotFound = errors.New("social: not found")
	// ErrLookupFailed is returned when the API is unreachable or answers unexpectedly.
	ErrLookupFailed = errors.New("social: lookup failed")
)

// Profile identifies an account on the social network.
type Profile struct {
	ID     string
	Handle string
	Name   string
	URL    string
}

// Lookup resolves social references to account profiles.
type Lookup interface {
	// PostAuthor returns the author of a post.
	PostAuthor(ctx context.Context, postID string) (*Profile, error)

	// CommunityOwner returns the creator of a community, or its first admin.
	CommunityOwner(ctx context.Context, communityID string) (*Profile, error)
}

// Client implements Lookup over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
}

var _ Lookup = (*Client)(nil)

// ClientOption configures Client.
type ClientOption func(*Client)

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the delay between retries.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithRateLimit caps outgoing requests. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// NewClient creates a lookup client authenticated with apiKey.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		client:     &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRPS), 1),
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiUser struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
	Name     string `json:"name"`
	URL      string `json:"url"`
}

func (u *apiUser) profile() *Profile {
	if u == nil || strings.TrimSpace(u.UserName) == "" {
		return nil
	}
	p := &Profile{
		ID:     u.ID,
		Handle: u.UserName,
		Name:   u.Name,
		URL:    u.URL,
	}
	if p.URL == "" {
		p.URL = profileBaseURL + u.UserName
	}
	return p
}

type tweetsResponse struct {
	Tweets []struct {
		ID     string   `json:"id"`
		Author *apiUser `json:"author"`
	} `json:"tweets"`
}

type communityResponse struct {
	CommunityInfo *struct {
		ID      string     `json:"id"`
		Creator *apiUser   `json:"creator"`
		Admin   *apiUser   `json:"admin"`
		Admins  []*apiUser `json:"admins"`
	} `json:"community_info"`
}

// PostAuthor returns the author of a post.
func (c *Client) PostAuthor(ctx context.Context, postID string) (*Profile, error) {
	q := url.Values{}
	q.Set("tweet_ids", postID)

	var resp tweetsResponse
	if err := c.get(ctx, "/twitter/tweets", q, &resp); err != nil {
		return nil, err
	}
	for _, tw := range resp.Tweets {
		if p := tw.Author.profile(); p != nil {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: post %s", ErrNotFound, postID)
}

// CommunityOwner returns the creator of a community, falling back to its admins.
func (c *Client) CommunityOwner(ctx context.Context, communityID string) (*Profile, error) {
	q := url.Values{}
	q.Set("community_id", communityID)

	var resp communityResponse
	if err := c.get(ctx, "/twitter/community/info", q, &resp); err != nil {
		return nil, err
	}
	info := resp.CommunityInfo
	if info == nil {
		return nil, fmt.Errorf("%w: community %s", ErrNotFound, communityID)
	}
	if p := info.Creator.profile(); p != nil {
		return p, nil
	}
	if p := info.Admin.profile(); p != nil {
		return p, nil
	}
	for _, a := range info.Admins {
		if p := a.profile(); p != nil {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: community %s has no owner", ErrNotFound, communityID)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	endpoint := c.baseURL + path + "?" + q.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("X-API-Key", c.apiKey)
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			observability.RecordUpstream("social", "error", time.Since(start).Seconds())
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		observability.RecordUpstream("social", strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode)
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: decode: %v", ErrLookupFailed, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrLookupFailed, lastErr)
}
