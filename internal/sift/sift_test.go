package sift

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hyperifyio/gosift/internal/extract"
	"github.com/hyperifyio/gosift/internal/profile"
	"github.com/hyperifyio/gosift/internal/registry"
)

const mainProfile = `
name: main
domains: [news.example]
anchor:
  - {tag: div, class: main}
title:
  - {tag: h1}
headerTags: [h2]
headerExcludeSubstrings: [IOC]
`

func newSifter(t *testing.T, doc string, buf *bytes.Buffer) *Sifter {
	t.Helper()
	ps, err := profile.Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r := registry.New()
	r.MustRegister(ps...)
	logger := zerolog.New(buf)
	return &Sifter{Registry: r, Logger: &logger}
}

func TestSift_EndToEnd(t *testing.T) {
	var buf bytes.Buffer
	s := newSifter(t, mainProfile, &buf)
	body := `<html><body><div class="main"><h1>T</h1><p>Intro.</p><h2>IOC List</h2><p>hash123</p></div></body></html>`
	art, err := s.Sift("https://www.news.example/post/1", []byte(body), "text/html")
	if err != nil {
		t.Fatalf("sift: %v", err)
	}
	if art.Text != "T\n\nIntro." {
		t.Fatalf("text = %q", art.Text)
	}
	if art.Profile != "main" || art.Title != "T" {
		t.Fatalf("unexpected article %+v", art)
	}
}

func TestSift_MissingTitleLogsSelector(t *testing.T) {
	var buf bytes.Buffer
	s := newSifter(t, `
name: strict
domains: [news.example]
title:
  - {tag: h1, class: entry-title}
`, &buf)
	art, err := s.Sift("https://news.example/a", []byte(`<h1>plain</h1><p>text</p>`), "")
	var ae *extract.AnchorError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AnchorError, got %v", err)
	}
	if art.Text != "" {
		t.Fatalf("failed page must not produce text, got %q", art.Text)
	}
	logged := buf.String()
	if !strings.Contains(logged, `"level":"warn"`) || !strings.Contains(logged, "h1.entry-title") || !strings.Contains(logged, "https://news.example/a") {
		t.Fatalf("warning should name url and selector: %s", logged)
	}
}

func TestSift_UnknownHost(t *testing.T) {
	var buf bytes.Buffer
	s := newSifter(t, mainProfile, &buf)
	_, err := s.Sift("https://elsewhere.example/", []byte("<p>x</p>"), "")
	if !errors.Is(err, ErrNoProfile) {
		t.Fatalf("expected ErrNoProfile, got %v", err)
	}
}

func TestSift_BuiltinProfile(t *testing.T) {
	r, err := registry.Builtin()
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	s := &Sifter{Registry: r}
	p, err := s.Profile("https://unit42.paloaltonetworks.com/x/")
	if err != nil || p.Name != "unit42" {
		t.Fatalf("profile = %v, %v", p, err)
	}
	page := `<main class="main"><div class="ab__title"><h1>New Loader</h1></div>
<section class="section blog-contents">
<h2>Executive Summary</h2><p>We observed a loader.</p>
<ul><li>Targets finance</li><li>Uses DLL sideloading</li></ul>
<h2>Indicators of Compromise</h2><p>deadbeef</p>
</section></main>`
	art, err := s.Sift("https://unit42.paloaltonetworks.com/x/", []byte(page), "text/html; charset=utf-8")
	if err != nil {
		t.Fatalf("sift: %v", err)
	}
	want := "New Loader\n\nExecutive Summary\nWe observed a loader.\n\nTargets finance\nUses DLL sideloading"
	if art.Text != want {
		t.Fatalf("text = %q, want %q", art.Text, want)
	}
}
