// Package permission decides whether a page may be scraped. It combines the
// site's robots.txt policy with a live request made as the same agent.
package permission

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gosift/internal/fetch"
	"github.com/hyperifyio/gosift/internal/robots"
)

// DefaultTimeout bounds each gate.
const DefaultTimeout = 10 * time.Second

// Reason explains a Verdict.
type Reason string

const (
	ReasonOK                Reason = "OK"
	ReasonRobotsDenied      Reason = "ROBOTS_DENIED"
	ReasonRobotsUnreachable Reason = "ROBOTS_UNREACHABLE"
	ReasonFetchFailed       Reason = "FETCH_FAILED"
	ReasonNonHTML           Reason = "NON_HTML"
)

// Verdict is the outcome of one check. Allowed is true only with ReasonOK.
type Verdict struct {
	Allowed   bool   `json:"allowed"`
	Reason    Reason `json:"reason"`
	URL       string `json:"url"`
	UserAgent string `json:"userAgent"`
	Detail    string `json:"detail,omitempty"`
	// CrawlDelay is the delay robots.txt asks of this agent, when declared.
	CrawlDelay time.Duration `json:"crawlDelay,omitempty"`
}

// Page is the document fetched by a successful probe.
type Page struct {
	URL         string
	ContentType string
	Body        []byte
}

// Checker runs the robots gate and then the live probe. A robots.txt that
// cannot be fetched denies; it is never read as blanket permission.
type Checker struct {
	Robots  *robots.Manager
	Probe   *fetch.Client
	Timeout time.Duration
	Logger  *zerolog.Logger
}

// New returns a Checker whose gates share httpClient.
func New(httpClient *http.Client) *Checker {
	return &Checker{
		Robots: &robots.Manager{HTTPClient: httpClient},
		Probe:  &fetch.Client{HTTPClient: httpClient, MaxAttempts: 1},
	}
}

func (c *Checker) logger() *zerolog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return &log.Logger
}

func (c *Checker) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// Check reports whether userAgent may scrape rawURL.
func (c *Checker) Check(ctx context.Context, rawURL, userAgent string) Verdict {
	v, _ := c.CheckFetch(ctx, rawURL, userAgent)
	return v
}

// CheckFetch is Check that also returns the probed page when allowed, so
// callers do not fetch the document twice.
func (c *Checker) CheckFetch(ctx context.Context, rawURL, userAgent string) (Verdict, *Page) {
	v, rules := c.robotsGate(ctx, rawURL, userAgent)
	if v.Reason != "" {
		c.report(v)
		return v, nil
	}
	v, page := c.probeGate(ctx, rawURL, userAgent)
	v.CrawlDelay = rules.CrawlDelayFor(userAgent)
	c.report(v)
	return v, page
}

func (c *Checker) robotsGate(ctx context.Context, rawURL, userAgent string) (Verdict, robots.Rules) {
	deny := func(reason Reason, detail string) (Verdict, robots.Rules) {
		return Verdict{Reason: reason, URL: rawURL, UserAgent: userAgent, Detail: detail}, robots.Rules{}
	}
	robotsURL, err := robots.URLFor(rawURL)
	if err != nil {
		return deny(ReasonRobotsUnreachable, err.Error())
	}
	mgr := c.Robots
	if mgr == nil {
		mgr = &robots.Manager{}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()
	rules, _, err := mgr.Get(ctx, robotsURL, userAgent)
	if err != nil {
		return deny(ReasonRobotsUnreachable, err.Error())
	}
	if !rules.IsAllowed(userAgent, robots.PathOf(rawURL)) {
		return deny(ReasonRobotsDenied, "disallowed by "+robotsURL)
	}
	return Verdict{}, rules
}

func (c *Checker) probeGate(ctx context.Context, rawURL, userAgent string) (Verdict, *Page) {
	v := Verdict{URL: rawURL, UserAgent: userAgent}
	probe := c.Probe
	if probe == nil {
		probe = &fetch.Client{MaxAttempts: 1}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()
	resp, err := probe.GetAs(ctx, rawURL, userAgent)
	switch {
	case errors.Is(err, fetch.ErrNonHTML):
		v.Reason = ReasonNonHTML
		v.Detail = err.Error()
		return v, nil
	case err != nil:
		v.Reason = ReasonFetchFailed
		v.Detail = err.Error()
		return v, nil
	}
	v.Allowed = true
	v.Reason = ReasonOK
	return v, &Page{URL: resp.URL, ContentType: resp.ContentType, Body: resp.Body}
}

func (c *Checker) report(v Verdict) {
	ev := c.logger().Info()
	if !v.Allowed {
		ev = c.logger().Warn()
	}
	ev.Str("url", v.URL).Str("reason", string(v.Reason)).Str("user_agent", v.UserAgent).Str("detail", v.Detail).Dur("crawl_delay", v.CrawlDelay).Msg("scrape permission")
}

// NormalizeURL adds a scheme to bare host inputs: https when a HEAD answers
// below 400 within five seconds, http otherwise. Absolute http(s) URLs are
// returned unchanged.
func NormalizeURL(ctx context.Context, probe *fetch.Client, raw, userAgent string) string {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return raw
	}
	if probe == nil {
		probe = &fetch.Client{}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	secure := "https://" + raw
	if code, err := probe.Head(ctx, secure, userAgent); err == nil && code < 400 {
		return secure
	}
	return "http://" + raw
}
