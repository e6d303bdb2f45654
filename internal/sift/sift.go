// Package sift resolves a URL to its site profile and renders the page as
// plain article text.
package sift

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/gosift/internal/assemble"
	"github.com/hyperifyio/gosift/internal/dom"
	"github.com/hyperifyio/gosift/internal/extract"
	"github.com/hyperifyio/gosift/internal/profile"
	"github.com/hyperifyio/gosift/internal/registry"
)

// ErrNoProfile is returned for URLs whose host no profile claims.
var ErrNoProfile = errors.New("no profile for host")

// Article is the rendered text of one page.
type Article struct {
	URL     string
	Profile string
	Title   string
	Text    string
}

// Sifter glues registry, engine and assembler together. The zero Extractor
// is the profile engine; a nil Logger uses the global logger.
type Sifter struct {
	Registry  *registry.Registry
	Extractor extract.Extractor
	Logger    *zerolog.Logger
}

func (s *Sifter) logger() *zerolog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return &log.Logger
}

func (s *Sifter) extractor() extract.Extractor {
	if s.Extractor != nil {
		return s.Extractor
	}
	return extract.Engine{}
}

// Profile returns the profile responsible for rawURL.
func (s *Sifter) Profile(rawURL string) (*profile.Profile, error) {
	if s.Registry == nil {
		return nil, errors.New("sift: no registry")
	}
	p, ok := s.Registry.Resolve(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoProfile, rawURL)
	}
	return p, nil
}

// Sift renders body, fetched from rawURL, with the matching profile.
// A page whose structure does not fit the profile yields an Article with
// empty Text and the *extract.AnchorError; the mismatch is logged.
func (s *Sifter) Sift(rawURL string, body []byte, contentType string) (Article, error) {
	p, err := s.Profile(rawURL)
	if err != nil {
		return Article{URL: rawURL}, err
	}
	root, err := dom.Parse(body, contentType)
	if err != nil {
		return Article{URL: rawURL, Profile: p.Name}, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return s.SiftNode(rawURL, root, p)
}

// SiftNode is Sift for an already parsed document and a known profile.
func (s *Sifter) SiftNode(rawURL string, root dom.Node, p *profile.Profile) (Article, error) {
	art := Article{URL: rawURL, Profile: p.Name}
	res, err := s.extractor().Extract(root, p)
	if err != nil {
		ev := s.logger().Warn().Err(err).Str("url", rawURL).Str("profile", p.Name)
		var ae *extract.AnchorError
		if errors.As(err, &ae) {
			ev = ev.Str("role", ae.Role).Str("selector", ae.Step).Int("matches", ae.Matches)
		}
		ev.Msg("page structure does not match profile")
		return art, err
	}
	art.Title = res.Title
	art.Text = assemble.Article(p, res)
	if art.Text == "" {
		s.logger().Warn().Str("url", rawURL).Str("profile", p.Name).Msg("profile matched but produced no text")
	}
	return art, nil
}
