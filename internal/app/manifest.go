package app

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"time"
)

// Outcome statuses recorded per URL.
const (
	StatusOK            = "ok"
	StatusUnhandled     = "unhandled"
	StatusDenied        = "denied"
	StatusEmpty         = "empty"
	StatusSummaryFailed = "summary_failed"
	StatusError         = "error"
)

// manifestEntry is a compact record of one input URL.
type manifestEntry struct {
	Index    int    `json:"index"`
	URL      string `json:"url"`
	Profile  string `json:"profile,omitempty"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Artifact string `json:"artifact,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	Chars    int    `json:"chars,omitempty"`
}

// manifestMeta captures high-level run details that aid reproducibility.
type manifestMeta struct {
	Version      string    `json:"version"`
	Model        string    `json:"model,omitempty"`
	LLMBaseURL   string    `json:"llm_base_url,omitempty"`
	URLCount     int       `json:"url_count"`
	ArticleCount int       `json:"article_count"`
	Profiles     int       `json:"profiles"`
	HTTPCache    bool      `json:"http_cache"`
	LLMCache     bool      `json:"llm_cache"`
	DryRun       bool      `json:"dry_run"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// computeSHA256Hex returns a lowercase hex-encoded SHA-256 of the given text.
func computeSHA256Hex(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

func countOK(entries []manifestEntry) int {
	n := 0
	for _, e := range entries {
		if e.Status == StatusOK {
			n++
		}
	}
	return n
}

// writeManifest writes manifest.json into dir.
func writeManifest(dir string, meta manifestMeta, entries []manifestEntry) error {
	payload := struct {
		Meta manifestMeta    `json:"meta"`
		URLs []manifestEntry `json:"urls"`
	}{Meta: meta, URLs: entries}
	return writeJSON(filepath.Join(dir, "manifest.json"), payload)
}
