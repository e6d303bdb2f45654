package app

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

// LoadEnvFiles reads KEY=VALUE pairs into the process environment.
func TestLoadEnvFiles_LoadsKeyValues(t *testing.T) {
	t.Setenv("FOO", "")
	t.Setenv("BAR", "")

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "\n# sample dotenv file\nFOO=alpha\nBAR=\"beta gamma\"\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	if err := LoadEnvFiles(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}

	if got := os.Getenv("FOO"); got != "alpha" {
		t.Fatalf("FOO=%q, want alpha", got)
	}
	if got := os.Getenv("BAR"); got != "beta gamma" {
		t.Fatalf("BAR=%q, want beta gamma", got)
	}
}

// Later files override earlier ones when loading multiple dotenv files.
func TestLoadEnvFiles_OverrideOrder(t *testing.T) {
	t.Setenv("K", "")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("K=first\n"), 0o600); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(b, []byte("K=second\n"), 0o600); err != nil {
		t.Fatalf("write b: %v", err)
	}

	if err := LoadEnvFiles(a, b); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("K"); got != "second" {
		t.Fatalf("override order failed: got %q, want second", got)
	}
}

func TestApplyEnvToConfig_FillsOnlyUnset(t *testing.T) {
	t.Setenv("LLM_MODEL", "gpt-4o")
	t.Setenv("LLM_BASE_URL", "https://res.openai.azure.com")
	t.Setenv("LLM_AZURE_API_VERSION", "")
	t.Setenv("AZURE_OPENAI_API_VERSION", "2024-02-01")
	t.Setenv("GOSIFT_CACHE_DIR", "")
	t.Setenv("CACHE_DIR", "/tmp/gosift-cache")
	t.Setenv("GOSIFT_PROFILES", "a,b")
	t.Setenv("GOSIFT_CONCURRENCY", "8")
	t.Setenv("GOSIFT_TIMEOUT", "3s")
	t.Setenv("GOSIFT_DRY_RUN", "yes")

	cfg := Config{LLMModel: "explicit"}
	ApplyEnvToConfig(&cfg)
	if cfg.LLMModel != "explicit" {
		t.Fatalf("explicit value overwritten: %q", cfg.LLMModel)
	}
	if cfg.LLMBaseURL != "https://res.openai.azure.com" || cfg.AzureAPIVersion != "2024-02-01" {
		t.Fatalf("llm env not applied: %+v", cfg)
	}
	if cfg.CacheDir != "/tmp/gosift-cache" {
		t.Fatalf("CacheDir=%q, want fallback from CACHE_DIR", cfg.CacheDir)
	}
	if !reflect.DeepEqual(cfg.ProfileDirs, []string{"a", "b"}) {
		t.Fatalf("ProfileDirs=%q", cfg.ProfileDirs)
	}
	if cfg.Concurrency != 8 || cfg.Timeout != 3*time.Second || !cfg.DryRun {
		t.Fatalf("numeric/bool env not applied: %+v", cfg)
	}
}

// Env overrides file values, including turning booleans off.
func TestApplyEnvOverrides_BooleansBothWays(t *testing.T) {
	t.Setenv("SSL_VERIFY", "false")
	t.Setenv("GOSIFT_DRY_RUN", "1")
	t.Setenv("GOSIFT_PER_HOST", "not-a-number")
	cfg := Config{SSLVerify: true, PerHostLimit: 3}
	ApplyEnvOverrides(&cfg)
	if cfg.SSLVerify {
		t.Fatalf("SSL_VERIFY=false should disable verification")
	}
	if !cfg.DryRun {
		t.Fatalf("GOSIFT_DRY_RUN=1 should enable dry run")
	}
	if cfg.PerHostLimit != 3 {
		t.Fatalf("invalid number must be ignored, got %d", cfg.PerHostLimit)
	}
}
