package app

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// createdDateLayout is local time without zone, as downstream importers expect.
const createdDateLayout = "2006-01-02T15:04:05"

// Artifact is the JSON record written for every article.
type Artifact struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Profile string `json:"profile"`
	Title   string `json:"title"`
	Text    string `json:"text"`
	// Summary is the model's raw answer, stored unparsed.
	Summary     string `json:"summary,omitempty"`
	CreatedDate string `json:"createdDate"`
	// Source is the URL as listed in the input; URL is where it ended up.
	Source string `json:"source"`
}

func formatCreatedDate(t time.Time) string {
	return t.Format(createdDateLayout)
}

// artifactName is stable per id and readable per host.
func artifactName(a Artifact) string {
	host := "article"
	if u, err := url.Parse(a.Source); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	return slugify(host) + "-" + a.ID + ".json"
}

// writeArtifact stores a under dir and returns the file name and its bytes.
func writeArtifact(dir string, a Artifact) (string, []byte, error) {
	b, err := json.MarshalIndent(a, "", "    ")
	if err != nil {
		return "", nil, fmt.Errorf("encode artifact: %w", err)
	}
	name := artifactName(a)
	if err := writeFileAtomic(filepath.Join(dir, name), b); err != nil {
		return "", nil, err
	}
	return name, b, nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, b)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}
