package app

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// ExtractURLs returns every http(s) URL in text in order of appearance,
// without duplicates. URLs end at whitespace.
func ExtractURLs(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, u := range urlPattern.FindAllString(text, -1) {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// ReadURLs reads a URL list file.
func ReadURLs(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	return ExtractURLs(string(b)), nil
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugPattern.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "article"
	}
	return s
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)
