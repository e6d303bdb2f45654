package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ClearDir removes the directory and all contents. It recreates the directory
// afterwards to leave a valid empty cache location.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// entry is one logical cache record, possibly spread over several files.
type entry struct {
	paths []string
	size  int64
	saved time.Time
	used  time.Time
}

func (e entry) remove() {
	for _, p := range e.paths {
		_ = os.Remove(p)
	}
}

func readDir(dir string) ([]fs.DirEntry, error) {
	des, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return des, err
}

// httpEntries pairs every <key>.meta.json with its <key>.body. SavedAt comes
// from the metadata; last use is the body mtime, which LoadBody refreshes.
func httpEntries(dir string) ([]entry, error) {
	des, err := readDir(dir)
	if err != nil {
		return nil, err
	}
	var out []entry
	for _, d := range des {
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".meta.json") {
			continue
		}
		metaPath := filepath.Join(dir, d.Name())
		bodyPath := strings.TrimSuffix(metaPath, ".meta.json") + ".body"
		b, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}
		var meta HTTPEntry
		if err := json.Unmarshal(b, &meta); err != nil {
			continue
		}
		e := entry{paths: []string{metaPath, bodyPath}, size: int64(len(b)), saved: meta.SavedAt, used: meta.SavedAt}
		if info, err := os.Stat(bodyPath); err == nil {
			e.size += info.Size()
			e.used = info.ModTime()
		}
		out = append(out, e)
	}
	return out, nil
}

// llmEntries lists <key>.json completions; mtime is both save and use time.
func llmEntries(dir string) ([]entry, error) {
	des, err := readDir(dir)
	if err != nil {
		return nil, err
	}
	var out []entry
	for _, d := range des {
		name := d.Name()
		if d.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".meta.json") {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		out = append(out, entry{
			paths: []string{filepath.Join(dir, name)},
			size:  info.Size(),
			saved: info.ModTime(),
			used:  info.ModTime(),
		})
	}
	return out, nil
}

func purgeOlder(entries []entry, maxAge time.Duration) int {
	now := time.Now()
	removed := 0
	for _, e := range entries {
		if now.Sub(e.saved) > maxAge {
			e.remove()
			removed++
		}
	}
	return removed
}

// enforce evicts least recently used entries until both caps hold.
// A cap of zero is unlimited.
func enforce(entries []entry, maxBytes int64, maxEntries int) int {
	if maxBytes <= 0 && maxEntries <= 0 {
		return 0
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].used.Before(entries[j].used) })
	var total int64
	for _, e := range entries {
		total += e.size
	}
	count := len(entries)
	removed := 0
	for _, e := range entries {
		overBytes := maxBytes > 0 && total > maxBytes
		overCount := maxEntries > 0 && count > maxEntries
		if !overBytes && !overCount {
			break
		}
		e.remove()
		total -= e.size
		count--
		removed++
	}
	return removed
}

// PurgeHTTPCacheByAge removes HTTP cache entries saved more than maxAge ago.
func PurgeHTTPCacheByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	entries, err := httpEntries(dir)
	if err != nil {
		return 0, err
	}
	return purgeOlder(entries, maxAge), nil
}

// PurgeLLMCacheByAge removes LLM cache entries older than maxAge based on
// file modification time.
func PurgeLLMCacheByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	entries, err := llmEntries(dir)
	if err != nil {
		return 0, err
	}
	return purgeOlder(entries, maxAge), nil
}

// EnforceHTTPCacheLimits evicts least recently used HTTP entries until the
// directory holds at most maxBytes and maxEntries.
func EnforceHTTPCacheLimits(dir string, maxBytes int64, maxEntries int) (int, error) {
	entries, err := httpEntries(dir)
	if err != nil {
		return 0, err
	}
	return enforce(entries, maxBytes, maxEntries), nil
}

// EnforceLLMCacheLimits is EnforceHTTPCacheLimits for completions.
func EnforceLLMCacheLimits(dir string, maxBytes int64, maxEntries int) (int, error) {
	entries, err := llmEntries(dir)
	if err != nil {
		return 0, err
	}
	return enforce(entries, maxBytes, maxEntries), nil
}
