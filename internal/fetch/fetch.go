package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hyperifyio/gosift/internal/cache"
)

// DefaultMaxBodyBytes bounds a page body when MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 10 << 20

var (
	// ErrNonHTML is returned for 2xx responses whose content type is not HTML.
	ErrNonHTML = errors.New("content type is not html")
	// ErrUnsupportedScheme is returned for anything but http and https.
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	// ErrBodyTooLarge is returned when a body exceeds MaxBodyBytes.
	ErrBodyTooLarge = errors.New("response body too large")
)

// StatusError reports a non-2xx answer.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// Response is a fetched page.
type Response struct {
	// URL is the final URL after redirects.
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	// Revalidated is set when a 304 answer was served from the cache.
	Revalidated bool
}

// BrowserHeaders are sent with every request unless overridden by
// Client.Header; publishers routinely reject bare library requests.
func BrowserHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Connection", "keep-alive")
	h.Set("Referer", "https://www.google.com/")
	return h
}

// Client wraps http.Client and provides timeouts and limited retry on transient errors.
type Client struct {
	HTTPClient *http.Client
	// UserAgent is used by Get; GetAs takes the agent per call.
	UserAgent string
	// Header is added to every request. Nil means BrowserHeaders.
	Header http.Header
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// PerRequestTimeout bounds each request.
	PerRequestTimeout time.Duration
	// Cache enables conditional revalidation of pages seen before.
	Cache *cache.HTTPCache
	// BypassCache skips conditional headers but still saves the latest response.
	BypassCache bool
	// RedirectMaxHops caps redirect following to avoid loops. Zero means default (5).
	RedirectMaxHops int
	// MaxConcurrent limits concurrent in-flight requests per client instance.
	// Zero means unlimited.
	MaxConcurrent int
	// MaxBodyBytes rejects larger bodies with ErrBodyTooLarge. Zero means
	// DefaultMaxBodyBytes.
	MaxBodyBytes int64

	limiter     *semaphore.Weighted
	limiterOnce sync.Once
	sleep       func(context.Context, time.Duration) error
}

func (c *Client) getHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		// Clone to attach our redirect policy without mutating caller's client
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{Timeout: c.PerRequestTimeout, CheckRedirect: c.checkRedirectFunc()}
}

// Get fetches rawURL with the client's UserAgent.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	return c.GetAs(ctx, rawURL, c.UserAgent)
}

// GetAs issues a GET as userAgent with bounded retry for transient errors.
// Non-HTML 2xx answers return the Response together with ErrNonHTML.
func (c *Client) GetAs(ctx context.Context, rawURL, userAgent string) (*Response, error) {
	var etag, lastMod string
	if c.Cache != nil && !c.BypassCache {
		if meta, err := c.Cache.LoadMeta(ctx, rawURL); err == nil && meta != nil {
			etag = meta.ETag
			lastMod = meta.LastModified
		}
	}
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		resp, etagOut, lastModOut, err := c.tryOnce(ctx, rawURL, userAgent, etag, lastMod)
		if err == nil {
			if resp.StatusCode == http.StatusNotModified {
				return c.fromCache(ctx, rawURL, resp)
			}
			if c.Cache != nil {
				_ = c.Cache.Save(ctx, rawURL, resp.ContentType, etagOut, lastModOut, resp.Body)
			}
			return resp, nil
		}
		lastErr = err
		if !isTransient(err) || i == attempts-1 {
			return resp, err
		}
		if err := c.wait(ctx, time.Duration(i+1)*200*time.Millisecond); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) fromCache(ctx context.Context, rawURL string, resp *Response) (*Response, error) {
	if c.Cache == nil {
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	body, err := c.Cache.LoadBody(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("load cached body: %w", err)
	}
	if meta, err := c.Cache.LoadMeta(ctx, rawURL); err == nil && resp.ContentType == "" {
		resp.ContentType = meta.ContentType
	}
	resp.Body = body
	resp.StatusCode = http.StatusOK
	resp.Revalidated = true
	return resp, nil
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		return c.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) tryOnce(ctx context.Context, rawURL, userAgent, etag, lastMod string) (*Response, string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", "", fmt.Errorf("new request: %w", err)
	}
	// Reject non-HTTP(S) schemes early
	if !isHTTPScheme(req.URL) {
		return nil, "", "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, rawURL)
	}
	if err := c.acquire(ctx); err != nil {
		return nil, "", "", err
	}
	defer c.release()

	header := c.Header
	if header == nil {
		header = BrowserHeaders()
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(req.Context(), c.PerRequestTimeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return nil, "", "", err
	}
	defer resp.Body.Close()

	out := &Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if resp.StatusCode == http.StatusNotModified && etag+lastMod != "" {
		return out, "", "", nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, "", "", &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	if !IsHTML(out.ContentType) {
		return out, "", "", fmt.Errorf("%w: %q", ErrNonHTML, out.ContentType)
	}
	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	if resp.ContentLength > limit {
		return out, "", "", fmt.Errorf("%w: %d bytes, limit %d", ErrBodyTooLarge, resp.ContentLength, limit)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return out, "", "", fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, limit)
	}
	out.Body = body
	return out, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), nil
}

// Head reports the status of a HEAD request, for probing which scheme a
// bare host answers on.
func (c *Client) Head(ctx context.Context, rawURL, userAgent string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	if !isHTTPScheme(req.URL) {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedScheme, rawURL)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		defer cancel()
		req = req.WithContext(ctx)
	}
	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// isTransient treats 5xx, 429 and timeouts as worth another attempt.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		// Only allow http/https during redirects
		if !isHTTPScheme(req.URL) {
			return fmt.Errorf("redirect: %w", ErrUnsupportedScheme)
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// IsHTML reports whether a Content-Type header names an HTML document.
func IsHTML(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

func (c *Client) acquire(ctx context.Context) error {
	if c.MaxConcurrent <= 0 {
		return nil
	}
	c.limiterOnce.Do(func() {
		c.limiter = semaphore.NewWeighted(int64(c.MaxConcurrent))
	})
	return c.limiter.Acquire(ctx, 1)
}

func (c *Client) release() {
	if c.limiter != nil {
		c.limiter.Release(1)
	}
}
