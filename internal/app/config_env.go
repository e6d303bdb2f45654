package app

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	setStr := func(dst *string, keys ...string) {
		if *dst != "" {
			return
		}
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	setStr(&cfg.InputPath, "GOSIFT_INPUT")
	setStr(&cfg.OutputDir, "GOSIFT_OUTPUT")
	setStr(&cfg.LLMBaseURL, "LLM_BASE_URL")
	setStr(&cfg.LLMModel, "LLM_MODEL")
	setStr(&cfg.LLMAPIKey, "LLM_API_KEY")
	setStr(&cfg.LLMKeyFile, "LLM_KEY_FILE")
	setStr(&cfg.AzureAPIVersion, "LLM_AZURE_API_VERSION", "AZURE_OPENAI_API_VERSION")
	setStr(&cfg.PromptFile, "GOSIFT_PROMPT_FILE")
	setStr(&cfg.UserAgent, "GOSIFT_USER_AGENT")
	setStr(&cfg.CacheDir, "GOSIFT_CACHE_DIR", "CACHE_DIR")
	setStr(&cfg.LogFile, "GOSIFT_LOG_FILE")
	setStr(&cfg.MetricsFile, "GOSIFT_METRICS_FILE")

	if len(cfg.ProfileDirs) == 0 {
		cfg.ProfileDirs = splitList(os.Getenv("GOSIFT_PROFILES"))
	}
	setInt := func(dst *int, key string) {
		if *dst != 0 {
			return
		}
		if n, ok := envInt(key); ok {
			*dst = n
		}
	}
	setInt(&cfg.Concurrency, "GOSIFT_CONCURRENCY")
	setInt(&cfg.PerHostLimit, "GOSIFT_PER_HOST")
	setInt(&cfg.MaxAttempts, "GOSIFT_MAX_ATTEMPTS")
	setInt(&cfg.CacheMaxEntries, "GOSIFT_CACHE_MAX_ENTRIES")
	if cfg.CacheMaxBytes == 0 {
		if n, ok := envInt("GOSIFT_CACHE_MAX_BYTES"); ok {
			cfg.CacheMaxBytes = int64(n)
		}
	}
	setDur := func(dst *time.Duration, key string) {
		if *dst != 0 {
			return
		}
		if d, ok := envDuration(key); ok {
			*dst = d
		}
	}
	setDur(&cfg.Timeout, "GOSIFT_TIMEOUT")
	setDur(&cfg.CacheMaxAge, "GOSIFT_CACHE_MAX_AGE")

	// Booleans
	setBool := func(dst *bool, envKey string) {
		if *dst {
			return
		}
		if v, ok := envBool(envKey); ok && v {
			*dst = true
		}
	}
	setBool(&cfg.DryRun, "GOSIFT_DRY_RUN")
	setBool(&cfg.Verbose, "GOSIFT_VERBOSE")
	setBool(&cfg.CacheClear, "GOSIFT_CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "GOSIFT_CACHE_STRICT_PERMS")
	setBool(&cfg.LLMCacheOnly, "GOSIFT_LLM_CACHE_ONLY")
	setBool(&cfg.AllowPrivateHosts, "GOSIFT_ALLOW_PRIVATE_HOSTS")
	setBool(&cfg.NoBuiltinProfiles, "GOSIFT_NO_BUILTIN_PROFILES")
}

// ApplyEnvOverrides forcefully overrides cfg fields with environment variables
// when the corresponding env vars are set. This lets env take precedence over
// values coming from a config file while flags remain highest precedence.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	override := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
			}
		}
	}
	override(&cfg.InputPath, "GOSIFT_INPUT")
	override(&cfg.OutputDir, "GOSIFT_OUTPUT")
	override(&cfg.LLMBaseURL, "LLM_BASE_URL")
	override(&cfg.LLMModel, "LLM_MODEL")
	override(&cfg.LLMAPIKey, "LLM_API_KEY")
	override(&cfg.LLMKeyFile, "LLM_KEY_FILE")
	override(&cfg.AzureAPIVersion, "AZURE_OPENAI_API_VERSION", "LLM_AZURE_API_VERSION")
	override(&cfg.PromptFile, "GOSIFT_PROMPT_FILE")
	override(&cfg.UserAgent, "GOSIFT_USER_AGENT")
	override(&cfg.CacheDir, "CACHE_DIR", "GOSIFT_CACHE_DIR")
	override(&cfg.LogFile, "GOSIFT_LOG_FILE")
	override(&cfg.MetricsFile, "GOSIFT_METRICS_FILE")

	if dirs := splitList(os.Getenv("GOSIFT_PROFILES")); len(dirs) > 0 {
		cfg.ProfileDirs = dirs
	}
	if n, ok := envInt("GOSIFT_CONCURRENCY"); ok {
		cfg.Concurrency = n
	}
	if n, ok := envInt("GOSIFT_PER_HOST"); ok {
		cfg.PerHostLimit = n
	}
	if n, ok := envInt("GOSIFT_MAX_ATTEMPTS"); ok {
		cfg.MaxAttempts = n
	}
	if n, ok := envInt("GOSIFT_CACHE_MAX_ENTRIES"); ok {
		cfg.CacheMaxEntries = n
	}
	if n, ok := envInt("GOSIFT_CACHE_MAX_BYTES"); ok {
		cfg.CacheMaxBytes = int64(n)
	}
	if d, ok := envDuration("GOSIFT_TIMEOUT"); ok {
		cfg.Timeout = d
	}
	if d, ok := envDuration("GOSIFT_CACHE_MAX_AGE"); ok {
		cfg.CacheMaxAge = d
	}

	// Booleans override when env present and truthy/falsey
	setBool := func(dst *bool, envKey string) {
		if v, ok := envBool(envKey); ok {
			*dst = v
		}
	}
	setBool(&cfg.DryRun, "GOSIFT_DRY_RUN")
	setBool(&cfg.Verbose, "GOSIFT_VERBOSE")
	setBool(&cfg.CacheClear, "GOSIFT_CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "GOSIFT_CACHE_STRICT_PERMS")
	setBool(&cfg.LLMCacheOnly, "GOSIFT_LLM_CACHE_ONLY")
	setBool(&cfg.AllowPrivateHosts, "GOSIFT_ALLOW_PRIVATE_HOSTS")
	setBool(&cfg.NoBuiltinProfiles, "GOSIFT_NO_BUILTIN_PROFILES")
	setBool(&cfg.SSLVerify, "SSL_VERIFY")
}

func envInt(key string) (int, bool) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func envDuration(key string) (time.Duration, bool) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, true
}

func envBool(key string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// splitList accepts an OS path list or a comma separated list.
func splitList(s string) []string {
	var out []string
	for _, part := range filepath.SplitList(s) {
		for _, p := range strings.Split(part, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
