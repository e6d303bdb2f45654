package app

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestExtractURLs(t *testing.T) {
	text := "https://a.example/x http://b.example/y?q=1\n\tftp://c.example/z www.d.example\nhttps://a.example/x\nnotes: https://e.example/p."
	got := ExtractURLs(text)
	want := []string{"https://a.example/x", "http://b.example/y?q=1", "https://e.example/p."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractURLs = %q, want %q", got, want)
	}
}

func TestReadURLs(t *testing.T) {
	p := filepath.Join(t.TempDir(), "urls.txt")
	if err := os.WriteFile(p, []byte("https://a.example/1 https://a.example/2"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadURLs(p)
	if err != nil || len(got) != 2 {
		t.Fatalf("ReadURLs = %v, %v", got, err)
	}
	if _, err := ReadURLs(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatalf("missing file should fail")
	}
}

func TestSlugify(t *testing.T) {
	for in, want := range map[string]string{"Unit42.PaloAltoNetworks.com": "unit42-paloaltonetworks-com", "  ": "article", "127.0.0.1": "127-0-0-1"} {
		if got := slugify(in); got != want {
			t.Fatalf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
