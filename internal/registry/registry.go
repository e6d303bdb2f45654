// Package registry maps article URLs to site profiles.
package registry

import (
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/hyperifyio/gosift/internal/profile"
)

// ErrDuplicateDomain is returned when a domain predicate is registered twice.
var ErrDuplicateDomain = errors.New("duplicate domain predicate")

// Registry holds the known profiles. Build it once at startup; lookups are
// safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	profiles []*profile.Profile
	entries  []entry
	byDomain map[string]*profile.Profile
}

type entry struct {
	domain profile.Domain
	p      *profile.Profile
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{byDomain: make(map[string]*profile.Profile)}
}

// Register validates p and adds it. A profile whose domain predicate is
// already registered is rejected as ambiguous.
func (r *Registry) Register(p *profile.Profile) error {
	if p == nil {
		return errors.New("register: nil profile")
	}
	if !p.Validated() {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range p.Domains {
		if prev, ok := r.byDomain[d.String()]; ok {
			return fmt.Errorf("%w: %s claimed by %q and %q", ErrDuplicateDomain, d, prev.Name, p.Name)
		}
	}
	for _, d := range p.Domains {
		r.byDomain[d.String()] = p
		r.entries = append(r.entries, entry{domain: d, p: p})
	}
	r.profiles = append(r.profiles, p)
	return nil
}

// MustRegister is Register that panics, for static tables.
func (r *Registry) MustRegister(ps ...*profile.Profile) {
	for _, p := range ps {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
}

// Resolve returns the profile for rawURL. Among matching predicates the one
// with the longest domain wins; equal lengths resolve in registration order.
func (r *Registry) Resolve(rawURL string) (*profile.Profile, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return r.ResolveHost(u.Host)
}

// ResolveHost is Resolve for a bare host name.
func (r *Registry) ResolveHost(host string) (*profile.Profile, bool) {
	h := profile.NormalizeHost(host)
	if h == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *profile.Profile
	bestLen := -1
	for _, e := range r.entries {
		if !e.domain.Matches(h) {
			continue
		}
		if n := len(profile.NormalizeHost(e.domain.Name)); n > bestLen {
			best, bestLen = e.p, n
		}
	}
	return best, best != nil
}

// Profiles returns the registered profiles in registration order.
func (r *Registry) Profiles() []*profile.Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*profile.Profile(nil), r.profiles...)
}

// Len returns the number of registered profiles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

// Builtin returns a registry holding the embedded profiles.
func Builtin() (*Registry, error) {
	ps, err := profile.Builtin()
	if err != nil {
		return nil, err
	}
	r := New()
	for _, p := range ps {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// LoadDir registers every profile found in dir.
func (r *Registry) LoadDir(dir string) error {
	ps, err := profile.LoadDir(dir)
	if err != nil {
		return err
	}
	for _, p := range ps {
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}
