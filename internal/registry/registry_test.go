package registry

import (
	"errors"
	"testing"

	"github.com/hyperifyio/gosift/internal/profile"
)

func prof(name string, domains ...profile.Domain) *profile.Profile {
	return &profile.Profile{Name: name, Domains: domains}
}

func TestResolve_LongestDomainWins(t *testing.T) {
	r := New()
	r.MustRegister(
		prof("google", profile.Domain{Name: "google.com"}),
		prof("cloud", profile.Domain{Name: "cloud.google.com"}),
	)
	cases := map[string]string{
		"https://cloud.google.com/blog/x":    "cloud",
		"https://www.google.com/search":      "google",
		"HTTPS://Cloud.Google.COM:443/path":  "cloud",
		"https://blog.cloud.google.com./a?b": "cloud",
	}
	for u, want := range cases {
		p, ok := r.Resolve(u)
		if !ok || p.Name != want {
			t.Fatalf("Resolve(%s) = %v, want %s", u, p, want)
		}
	}
	if _, ok := r.Resolve("https://example.org/"); ok {
		t.Fatalf("unexpected match for unknown host")
	}
	if _, ok := r.Resolve("not a url"); ok {
		t.Fatalf("unexpected match for relative url")
	}
}

func TestResolve_TieUsesRegistrationOrder(t *testing.T) {
	r := New()
	r.MustRegister(
		prof("suffix", profile.Domain{Name: "welivesecurity.com"}),
		prof("exact", profile.Domain{Name: "welivesecurity.com", Exact: true}),
	)
	p, ok := r.Resolve("https://welivesecurity.com/en/")
	if !ok || p.Name != "suffix" {
		t.Fatalf("tie should go to first registered, got %v", p)
	}
	p, _ = r.Resolve("https://www.welivesecurity.com/en/")
	if p.Name != "suffix" {
		t.Fatalf("exact predicate must not match subdomain, got %s", p.Name)
	}
}

func TestRegister_RejectsDuplicatesAndInvalid(t *testing.T) {
	r := New()
	if err := r.Register(prof("a", profile.Domain{Name: "a.com"})); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := r.Register(prof("b", profile.Domain{Name: "A.com"}))
	if !errors.Is(err, ErrDuplicateDomain) {
		t.Fatalf("expected ErrDuplicateDomain, got %v", err)
	}
	err = r.Register(prof("c"))
	if !errors.Is(err, profile.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for profile without domains, got %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("failed registrations must not be kept, len=%d", r.Len())
	}
}

func TestBuiltin_ResolvesKnownPublishers(t *testing.T) {
	r, err := Builtin()
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	cases := map[string]string{
		"https://www.bleepingcomputer.com/news/security/x/":  "bleepingcomputer",
		"https://unit42.paloaltonetworks.com/some-threat/":   "unit42",
		"https://www.welivesecurity.com/en/eset-research/x/": "welivesecurity",
		"https://blog.talosintelligence.com/post/":           "talosintelligence",
		"https://www.microsoft.com/en-us/security/blog/x/":   "microsoft",
	}
	for u, want := range cases {
		p, ok := r.Resolve(u)
		if !ok || p.Name != want {
			t.Fatalf("Resolve(%s) = %v, want %s", u, p, want)
		}
	}
}
