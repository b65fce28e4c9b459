// Package scraper provides the HTTP client used to read school web pages:
// random User-Agent, politeness rate limiting, retry with backoff, gzip
// handling and an optional per-session cookie jar.
package scraper

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/corpix/uarand"

	apperrors "github.com/garyellow/anan-assistant-go/internal/errors"
)

// DefaultRetryDelay is the initial backoff between failed requests.
const DefaultRetryDelay = 1 * time.Second

// Client is an HTTP client for scraping with rate limiting and retries.
type Client struct {
	httpClient  *http.Client
	rateLimiter *RateLimiter
	userAgents  []string
	maxRetries  int
	retryDelay  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimiter replaces the default politeness limiter.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(c *Client) { c.rateLimiter = rl }
}

// WithRetryDelay sets the initial backoff delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithHTTPClient replaces the underlying http.Client. Used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a scraper client.
func NewClient(timeout time.Duration, maxRetries int, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		rateLimiter: NewRateLimiter(4, 200*time.Millisecond, 600*time.Millisecond),
		userAgents:  generateUserAgents(),
		maxRetries:  max(maxRetries, 0),
		retryDelay:  DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns a copy of the client with its own cookie jar, so that
// cookies set by one login do not leak into other sessions.
func (c *Client) Session() *Client {
	jar, _ := cookiejar.New(nil) // never fails with nil options
	hc := *c.httpClient
	hc.Jar = jar
	s := *c
	s.httpClient = &hc
	return &s
}

// Get performs a GET request with rate limiting and retries.
// Caller is responsible for closing the response body.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, rawURL, "")
}

// GetDocument performs a GET request and parses the response as HTML.
func (c *Client) GetDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return parseDocument(resp)
}

// PostForm performs a form POST and parses the response as HTML.
func (c *Client) PostForm(ctx context.Context, postURL string, form url.Values) (*goquery.Document, error) {
	resp, err := c.do(ctx, http.MethodPost, postURL, form.Encode())
	if err != nil {
		return nil, err
	}
	return parseDocument(resp)
}

func (c *Client) do(ctx context.Context, method, rawURL, body string) (*http.Response, error) {
	var resp *http.Response

	err := RetryWithBackoff(ctx, c.maxRetries, c.retryDelay, func() error {
		if c.rateLimiter != nil {
			if err := c.rateLimiter.Wait(ctx); err != nil {
				return &permanentError{err: err}
			}
		}

		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return &permanentError{err: fmt.Errorf("create request: %w", err)}
		}
		req.Header.Set("User-Agent", c.randomUserAgent())
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "ja,en-US;q=0.8,en;q=0.7")
		req.Header.Set("Accept-Encoding", "gzip")
		if method == http.MethodPost {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		r, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return &permanentError{err: apperrors.NewScraperError(rawURL, 0, ctx.Err())}
			}
			return apperrors.NewScraperError(rawURL, 0, err)
		}

		if r.StatusCode < 200 || r.StatusCode >= 300 {
			_ = r.Body.Close()
			return classifyStatus(rawURL, r.StatusCode)
		}

		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func classifyStatus(rawURL string, status int) error {
	switch status {
	case http.StatusTooManyRequests:
		return apperrors.NewScraperError(rawURL, status, apperrors.ErrRateLimitExceeded)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusInternalServerError:
		return apperrors.NewScraperError(rawURL, status, apperrors.ErrUnavailable)
	case http.StatusNotFound:
		return &permanentError{err: apperrors.NewScraperError(rawURL, status, apperrors.ErrNotFound)}
	default:
		return &permanentError{err: apperrors.NewScraperError(rawURL, status, fmt.Errorf("unexpected status %d", status))}
	}
}

func parseDocument(resp *http.Response) (*goquery.Document, error) {
	defer func() { _ = resp.Body.Close() }()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("decompress gzip: %w", err)
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	return doc, nil
}

func (c *Client) randomUserAgent() string {
	if len(c.userAgents) == 0 {
		return uarand.GetRandom()
	}
	return c.userAgents[rand.IntN(len(c.userAgents))]
}

// IsNetworkError reports whether err looks like a transport-level failure
// (timeout, refused or reset connection, 5xx, rate limiting) as opposed to
// a permanent client error.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, apperrors.ErrUnavailable) || errors.Is(err, apperrors.ErrRateLimitExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection reset", "no such host", "server error", "rate limited", "eof"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func generateUserAgents() []string {
	agents := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
	}
	return append(agents, uarand.GetRandom())
}
