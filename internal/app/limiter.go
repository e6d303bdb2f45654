package app

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
)

// hostLimiter bounds concurrent work per host across the run.
type hostLimiter struct {
	per int64

	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func newHostLimiter(per int) *hostLimiter {
	if per <= 0 {
		per = DefaultPerHost
	}
	return &hostLimiter{per: int64(per), sems: make(map[string]*semaphore.Weighted)}
}

func (h *hostLimiter) sem(host string) *semaphore.Weighted {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sems[host]
	if !ok {
		s = semaphore.NewWeighted(h.per)
		h.sems[host] = s
	}
	return s
}

// acquire blocks until a slot for rawURL's host is free.
func (h *hostLimiter) acquire(ctx context.Context, rawURL string) (func(), error) {
	s := h.sem(hostKey(rawURL))
	if err := s.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { s.Release(1) }, nil
}

func hostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.ToLower(u.Host)
}
