package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLLMCache_CompletionRoundTrip(t *testing.T) {
	c := &LLMCache{Dir: t.TempDir()}
	ctx := context.Background()
	key := KeyFrom("gpt-4o", "Summarize:\nNew Loader\n\nWe observed a loader.")
	if _, ok, err := c.Get(ctx, key); ok || err != nil {
		t.Fatalf("expected clean miss, ok=%v err=%v", ok, err)
	}
	payload := []byte(`{"completion":"A new loader was observed."}`)
	if err := c.Save(ctx, key, payload); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok || string(got) != string(payload) {
		t.Fatalf("get = %q ok=%v err=%v", got, ok, err)
	}
}

func TestLLMCache_LimitsIgnoreHTTPEntries(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	lc := &LLMCache{Dir: dir}
	hc := &HTTPCache{Dir: dir}
	if err := hc.Save(ctx, "https://d.example/post", "text/html", "", "", []byte("<p>x</p>")); err != nil {
		t.Fatalf("save page: %v", err)
	}
	keys := []string{KeyFrom("m", "p1"), KeyFrom("m", "p2"), KeyFrom("m", "p3")}
	for i, k := range keys {
		if err := lc.Save(ctx, k, []byte(`{"completion":"c"}`)); err != nil {
			t.Fatalf("save: %v", err)
		}
		at := time.Now().Add(-time.Duration(3-i) * time.Hour)
		if err := os.Chtimes(filepath.Join(dir, k+".json"), at, at); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
	// A hit refreshes the oldest completion.
	if _, ok, _ := lc.Get(ctx, keys[0]); !ok {
		t.Fatalf("expected hit")
	}

	removed, err := EnforceLLMCacheLimits(dir, 0, 1)
	if err != nil || removed != 2 {
		t.Fatalf("removed=%d err=%v", removed, err)
	}
	if _, ok, _ := lc.Get(ctx, keys[0]); !ok {
		t.Fatalf("recently used completion evicted")
	}
	for _, k := range keys[1:] {
		if _, ok, _ := lc.Get(ctx, k); ok {
			t.Fatalf("older completion kept")
		}
	}
	if _, err := hc.LoadMeta(ctx, "https://d.example/post"); err != nil {
		t.Fatalf("page entry counted as a completion: %v", err)
	}
}

func TestLLMCache_PurgeByAge(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	c := &LLMCache{Dir: dir}
	old, recent := KeyFrom("m", "old"), KeyFrom("m", "recent")
	for _, k := range []string{old, recent} {
		if err := c.Save(ctx, k, []byte("{}")); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	at := time.Now().Add(-72 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, old+".json"), at, at); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	removed, err := PurgeLLMCacheByAge(dir, 24*time.Hour)
	if err != nil || removed != 1 {
		t.Fatalf("removed=%d err=%v", removed, err)
	}
	if _, ok, _ := c.Get(ctx, recent); !ok {
		t.Fatalf("recent completion purged")
	}
	if n, _ := PurgeLLMCacheByAge(dir, 0); n != 0 {
		t.Fatalf("zero max age must be a no-op, removed %d", n)
	}
}
