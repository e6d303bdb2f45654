package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// lastUsed backdates the body mtime, which eviction reads as last use.
func lastUsed(t *testing.T, c *HTTPCache, url string, ago time.Duration) {
	t.Helper()
	at := time.Now().Add(-ago)
	if err := os.Chtimes(c.bodyPath(url), at, at); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func entrySize(t *testing.T, c *HTTPCache, url string) int64 {
	t.Helper()
	var n int64
	for _, p := range []string{c.metaPath(url), c.bodyPath(url)} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		n += info.Size()
	}
	return n
}

func TestHTTPCache_RobotsAndPageEntriesAreIndependent(t *testing.T) {
	c := &HTTPCache{Dir: t.TempDir()}
	ctx := context.Background()
	robotsURL := "https://www.welivesecurity.com/robots.txt"
	pageURL := "https://www.welivesecurity.com/en/eset-research/x/"
	if err := c.Save(ctx, robotsURL, "text/plain", `W/"r"`, "", []byte("User-agent: *\nDisallow: /wp-admin\n")); err != nil {
		t.Fatalf("save robots: %v", err)
	}
	if err := c.Save(ctx, pageURL, "text/html; charset=utf-8", "", "Tue, 01 Oct 2024 10:00:00 GMT", []byte("<h1>v1</h1>")); err != nil {
		t.Fatalf("save page: %v", err)
	}
	if err := c.Save(ctx, pageURL, "text/html; charset=utf-8", `"p2"`, "", []byte("<h1>v2</h1>")); err != nil {
		t.Fatalf("resave page: %v", err)
	}

	rm, err := c.LoadMeta(ctx, robotsURL)
	if err != nil || rm.ETag != `W/"r"` || rm.ContentType != "text/plain" || rm.URL != robotsURL {
		t.Fatalf("robots meta = %+v, %v", rm, err)
	}
	pm, err := c.LoadMeta(ctx, pageURL)
	if err != nil || pm.ETag != `"p2"` || pm.LastModified != "" {
		t.Fatalf("page meta must reflect the latest save: %+v, %v", pm, err)
	}
	if b, _ := c.LoadBody(ctx, robotsURL); string(b) != "User-agent: *\nDisallow: /wp-admin\n" {
		t.Fatalf("robots body = %q", b)
	}
	if b, _ := c.LoadBody(ctx, pageURL); string(b) != "<h1>v2</h1>" {
		t.Fatalf("page body = %q", b)
	}
	if _, err := c.LoadMeta(ctx, "https://www.welivesecurity.com/other/"); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist miss, got %v", err)
	}
}

func TestHTTPCache_EvictsLeastRecentlyUsed(t *testing.T) {
	dir := t.TempDir()
	c := &HTTPCache{Dir: dir}
	ctx := context.Background()
	urls := []string{"https://a.example/1", "https://a.example/2", "https://a.example/3"}
	for i, u := range urls {
		if err := c.Save(ctx, u, "text/html", "", "", []byte("<p>page</p>")); err != nil {
			t.Fatalf("save: %v", err)
		}
		lastUsed(t, c, u, time.Duration(3-i)*time.Hour)
	}
	// Revalidating the oldest entry reads its body and makes it the newest.
	if _, err := c.LoadBody(ctx, urls[0]); err != nil {
		t.Fatalf("load: %v", err)
	}
	removed, err := EnforceHTTPCacheLimits(dir, 0, 2)
	if err != nil || removed != 1 {
		t.Fatalf("removed=%d err=%v", removed, err)
	}
	for i, u := range urls {
		_, metaErr := os.Stat(c.metaPath(u))
		_, bodyErr := os.Stat(c.bodyPath(u))
		gone := os.IsNotExist(metaErr) && os.IsNotExist(bodyErr)
		if gone != (i == 1) {
			t.Fatalf("entry %d gone=%v (meta %v, body %v)", i, gone, metaErr, bodyErr)
		}
	}
}

func TestHTTPCache_ByteCapCountsMetaAndBody(t *testing.T) {
	dir := t.TempDir()
	c := &HTTPCache{Dir: dir}
	ctx := context.Background()
	big, small := "https://b.example/big", "https://b.example/small"
	if err := c.Save(ctx, big, "text/html", "", "", []byte("<p>0123456789</p>")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := c.Save(ctx, small, "text/html", "", "", []byte("<p>1</p>")); err != nil {
		t.Fatalf("save: %v", err)
	}
	lastUsed(t, c, big, 2*time.Hour)
	lastUsed(t, c, small, time.Hour)

	removed, err := EnforceHTTPCacheLimits(dir, entrySize(t, c, small), 0)
	if err != nil || removed != 1 {
		t.Fatalf("removed=%d err=%v", removed, err)
	}
	if _, err := c.LoadMeta(ctx, big); err == nil {
		t.Fatalf("older entry should be evicted")
	}
	if _, err := c.LoadMeta(ctx, small); err != nil {
		t.Fatalf("entry within the cap evicted: %v", err)
	}
}

func TestHTTPCache_PurgeByAgeUsesSavedAt(t *testing.T) {
	dir := t.TempDir()
	c := &HTTPCache{Dir: dir}
	ctx := context.Background()
	stale, fresh := "https://c.example/robots.txt", "https://c.example/post"
	for _, u := range []string{stale, fresh} {
		if err := c.Save(ctx, u, "text/html", "", "", []byte("x")); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	meta, err := json.Marshal(HTTPEntry{URL: stale, ContentType: "text/plain", SavedAt: time.Now().Add(-48 * time.Hour)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(c.metaPath(stale), meta, 0o644); err != nil {
		t.Fatalf("write meta: %v", err)
	}
	// A completion in the same directory is not an HTTP entry.
	if err := (&LLMCache{Dir: dir}).Save(ctx, KeyFrom("m", "p"), []byte("{}")); err != nil {
		t.Fatalf("save completion: %v", err)
	}

	removed, err := PurgeHTTPCacheByAge(dir, 24*time.Hour)
	if err != nil || removed != 1 {
		t.Fatalf("removed=%d err=%v", removed, err)
	}
	if _, err := c.LoadBody(ctx, stale); err == nil {
		t.Fatalf("stale body must go with its meta")
	}
	if _, err := c.LoadMeta(ctx, fresh); err != nil {
		t.Fatalf("fresh entry purged: %v", err)
	}
	if _, ok, _ := (&LLMCache{Dir: dir}).Get(ctx, KeyFrom("m", "p")); !ok {
		t.Fatalf("completion removed by HTTP purge")
	}
	if n, err := PurgeHTTPCacheByAge(filepath.Join(dir, "absent"), time.Hour); err != nil || n != 0 {
		t.Fatalf("missing dir: n=%d err=%v", n, err)
	}
}
