package robots

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

	"github.com/temoto/robotstxt"

	"github.com/hyperifyio/gosift/internal/cache"
)

// DefaultTimeout bounds a robots.txt fetch when the Manager has no client.
const DefaultTimeout = 10 * time.Second

// maxBodyBytes caps how much of a robots.txt response is read.
const maxBodyBytes = 512 * 1024

type Source int

const (
	SourceNetwork Source = iota
	SourceMemory
	SourceCache304
)

func (s Source) String() string {
	switch s {
	case SourceMemory:
		return "memory"
	case SourceCache304:
		return "cache-304"
	default:
		return "network"
	}
}

// StatusError is returned when robots.txt answers with a non-2xx status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("robots %s: unexpected status %d", e.URL, e.Code)
}

// ErrPrivateHost is returned for loopback and private hosts unless
// AllowPrivateHosts is set.
var ErrPrivateHost = errors.New("private host not allowed")

// Rules is a parsed robots.txt file.
type Rules struct {
	data *robotstxt.RobotsData
}

// Parse reads a robots.txt body.
func Parse(body []byte) (Rules, error) {
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return Rules{}, fmt.Errorf("parse robots: %w", err)
	}
	return Rules{data: data}, nil
}

// IsAllowed evaluates whether the provided path (which may include a query
// string) may be fetched by userAgent. Empty rules allow everything.
func (r Rules) IsAllowed(userAgent, pathWithOptionalQuery string) bool {
	if r.data == nil {
		return true
	}
	if pathWithOptionalQuery == "" {
		pathWithOptionalQuery = "/"
	}
	return r.data.TestAgent(pathWithOptionalQuery, userAgent)
}

// CrawlDelayFor returns the crawl delay of the group matching userAgent, or
// zero when none is declared.
func (r Rules) CrawlDelayFor(userAgent string) time.Duration {
	if r.data == nil {
		return 0
	}
	if g := r.data.FindGroup(userAgent); g != nil {
		return g.CrawlDelay
	}
	return 0
}

// URLFor derives scheme://host/robots.txt from an absolute page URL.
func URLFor(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if !isHTTPScheme(u) || u.Host == "" {
		return "", fmt.Errorf("not an absolute http(s) url: %q", rawURL)
	}
	return (&url.URL{Scheme: strings.ToLower(u.Scheme), Host: u.Host, Path: "/robots.txt"}).String(), nil
}

// PathOf returns the path and query of rawURL as robots rules see them.
func PathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "/"
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

// Manager fetches robots.txt files. Parsed rules are kept in memory for
// EntryExpiry when it is positive; with a Cache, bodies are revalidated by
// ETag and Last-Modified. Fetch failures are returned to the caller, who
// decides whether to fail open or closed.
type Manager struct {
	HTTPClient        *http.Client
	Cache             *cache.HTTPCache
	EntryExpiry       time.Duration
	AllowPrivateHosts bool

	mu  sync.Mutex
	mem map[string]memEntry
	now func() time.Time
}

type memEntry struct {
	rules  Rules
	expiry time.Time
}

// Get fetches and parses robotsURL on behalf of userAgent.
func (m *Manager) Get(ctx context.Context, robotsURL, userAgent string) (Rules, Source, error) {
	u, err := url.Parse(robotsURL)
	if err != nil {
		return Rules{}, SourceNetwork, fmt.Errorf("parse url: %w", err)
	}
	if !isHTTPScheme(u) {
		return Rules{}, SourceNetwork, fmt.Errorf("unsupported url scheme: %q", robotsURL)
	}
	host := u.Hostname()
	if !m.AllowPrivateHosts && isLocalOrPrivateHost(host) {
		return Rules{}, SourceNetwork, fmt.Errorf("%w: %s", ErrPrivateHost, host)
	}

	m.mu.Lock()
	if ent, ok := m.mem[robotsURL]; ok && m.clock().Before(ent.expiry) {
		r := ent.rules
		m.mu.Unlock()
		return r, SourceMemory, nil
	}
	m.mu.Unlock()

	var etag, lastMod string
	if m.Cache != nil {
		if meta, err := m.Cache.LoadMeta(ctx, robotsURL); err == nil && meta != nil {
			etag = meta.ETag
			lastMod = meta.LastModified
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return Rules{}, SourceNetwork, fmt.Errorf("new request: %w", err)
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
	client := m.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Rules{}, SourceNetwork, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && m.Cache != nil {
		body, err := m.Cache.LoadBody(ctx, robotsURL)
		if err != nil {
			return Rules{}, SourceCache304, fmt.Errorf("load cached robots: %w", err)
		}
		rules, err := Parse(body)
		if err != nil {
			return Rules{}, SourceCache304, err
		}
		m.storeMem(robotsURL, rules)
		return rules, SourceCache304, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Rules{}, SourceNetwork, &StatusError{URL: robotsURL, Code: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Rules{}, SourceNetwork, fmt.Errorf("read robots: %w", err)
	}
	rules, err := Parse(data)
	if err != nil {
		return Rules{}, SourceNetwork, err
	}
	if m.Cache != nil {
		_ = m.Cache.Save(ctx, robotsURL, "text/plain", resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), data)
	}
	m.storeMem(robotsURL, rules)
	return rules, SourceNetwork, nil
}

func (m *Manager) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

func (m *Manager) storeMem(key string, rules Rules) {
	if m.EntryExpiry <= 0 {
		return
	}
	m.mu.Lock()
	if m.mem == nil {
		m.mem = make(map[string]memEntry)
	}
	m.mem[key] = memEntry{rules: rules, expiry: m.clock().Add(m.EntryExpiry)}
	m.mu.Unlock()
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func isLocalOrPrivateHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "localhost" || h == "localhost.localdomain" || h == "::1" || h == "[::1]" {
		return true
	}
	if ip := net.ParseIP(h); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return true
		}
	}
	return false
}
