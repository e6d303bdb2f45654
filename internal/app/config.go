package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/gosift/internal/summarize"
)

// Flag defaults. ApplyFileConfig treats a field still holding its default as
// unset so the config file can override it.
const (
	DefaultInputPath   = "urls.txt"
	DefaultOutputDir   = "out"
	DefaultCacheDir    = ".gosift-cache"
	DefaultConcurrency = 4
	DefaultPerHost     = 2
	DefaultTimeout     = 10 * time.Second
	DefaultMaxAttempts = 2
)

// Config holds runtime configuration for the application.
type Config struct {
	// InputPath is a text file; every http(s) URL in it is processed.
	InputPath string
	// OutputDir receives one JSON artifact per article and manifest.json.
	OutputDir string

	// Profiles
	ProfileDirs       []string
	NoBuiltinProfiles bool

	// LLM
	LLMBaseURL      string
	LLMModel        string
	LLMAPIKey       string
	LLMKeyFile      string
	AzureAPIVersion string
	PromptFile      string
	PromptTemplate  string

	// Network
	Concurrency       int
	PerHostLimit      int
	Timeout           time.Duration
	MaxAttempts       int
	UserAgent         string
	AllowPrivateHosts bool
	SSLVerify         bool

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool
	CacheMaxBytes    int64
	CacheMaxEntries  int
	LLMCacheOnly     bool

	// Behavior
	DryRun      bool
	Verbose     bool
	LogFile     string
	MetricsFile string
}

// FileConfig represents the single-file configuration schema.
type FileConfig struct {
	Input  string `yaml:"input" json:"input"`
	Output string `yaml:"output" json:"output"`

	Profiles struct {
		Dirs       []string `yaml:"dirs" json:"dirs"`
		NoBuiltins bool     `yaml:"noBuiltins" json:"noBuiltins"`
	} `yaml:"profiles" json:"profiles"`

	LLM struct {
		BaseURL         string `yaml:"base" json:"base"`
		Model           string `yaml:"model" json:"model"`
		APIKey          string `yaml:"key" json:"key"`
		KeyFile         string `yaml:"keyFile" json:"keyFile"`
		AzureAPIVersion string `yaml:"azureAPIVersion" json:"azureAPIVersion"`
	} `yaml:"llm" json:"llm"`

	Prompt struct {
		File     string `yaml:"file" json:"file"`
		Template string `yaml:"template" json:"template"`
	} `yaml:"prompt" json:"prompt"`

	Network struct {
		Concurrency       int           `yaml:"concurrency" json:"concurrency"`
		PerHost           int           `yaml:"perHost" json:"perHost"`
		Timeout           time.Duration `yaml:"timeout" json:"timeout"`
		MaxAttempts       int           `yaml:"maxAttempts" json:"maxAttempts"`
		UserAgent         string        `yaml:"userAgent" json:"userAgent"`
		AllowPrivateHosts bool          `yaml:"allowPrivateHosts" json:"allowPrivateHosts"`
		SSLVerify         *bool         `yaml:"sslVerify" json:"sslVerify"`
	} `yaml:"network" json:"network"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
		MaxBytes    int64         `yaml:"maxBytes" json:"maxBytes"`
		MaxEntries  int           `yaml:"maxEntries" json:"maxEntries"`
		LLMOnly     bool          `yaml:"llmOnly" json:"llmOnly"`
	} `yaml:"cache" json:"cache"`

	DryRun      bool   `yaml:"dryRun" json:"dryRun"`
	Verbose     bool   `yaml:"verbose" json:"verbose"`
	LogFile     string `yaml:"logFile" json:"logFile"`
	MetricsFile string `yaml:"metricsFile" json:"metricsFile"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from FileConfig into cfg for any fields that
// are currently unset or still at their flag default.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if (cfg.InputPath == "" || cfg.InputPath == DefaultInputPath) && fc.Input != "" {
		cfg.InputPath = fc.Input
	}
	if (cfg.OutputDir == "" || cfg.OutputDir == DefaultOutputDir) && fc.Output != "" {
		cfg.OutputDir = fc.Output
	}

	if len(cfg.ProfileDirs) == 0 && len(fc.Profiles.Dirs) > 0 {
		cfg.ProfileDirs = append([]string{}, fc.Profiles.Dirs...)
	}
	if !cfg.NoBuiltinProfiles && fc.Profiles.NoBuiltins {
		cfg.NoBuiltinProfiles = true
	}

	if cfg.LLMBaseURL == "" && fc.LLM.BaseURL != "" {
		cfg.LLMBaseURL = fc.LLM.BaseURL
	}
	if cfg.LLMModel == "" && fc.LLM.Model != "" {
		cfg.LLMModel = fc.LLM.Model
	}
	if cfg.LLMAPIKey == "" && fc.LLM.APIKey != "" {
		cfg.LLMAPIKey = fc.LLM.APIKey
	}
	if cfg.LLMKeyFile == "" && fc.LLM.KeyFile != "" {
		cfg.LLMKeyFile = fc.LLM.KeyFile
	}
	if cfg.AzureAPIVersion == "" && fc.LLM.AzureAPIVersion != "" {
		cfg.AzureAPIVersion = fc.LLM.AzureAPIVersion
	}
	if cfg.PromptFile == "" && fc.Prompt.File != "" {
		cfg.PromptFile = fc.Prompt.File
	}
	if cfg.PromptTemplate == "" && fc.Prompt.Template != "" {
		cfg.PromptTemplate = fc.Prompt.Template
	}

	if (cfg.Concurrency == 0 || cfg.Concurrency == DefaultConcurrency) && fc.Network.Concurrency > 0 {
		cfg.Concurrency = fc.Network.Concurrency
	}
	if (cfg.PerHostLimit == 0 || cfg.PerHostLimit == DefaultPerHost) && fc.Network.PerHost > 0 {
		cfg.PerHostLimit = fc.Network.PerHost
	}
	if (cfg.Timeout == 0 || cfg.Timeout == DefaultTimeout) && fc.Network.Timeout > 0 {
		cfg.Timeout = fc.Network.Timeout
	}
	if (cfg.MaxAttempts == 0 || cfg.MaxAttempts == DefaultMaxAttempts) && fc.Network.MaxAttempts > 0 {
		cfg.MaxAttempts = fc.Network.MaxAttempts
	}
	if cfg.UserAgent == "" && fc.Network.UserAgent != "" {
		cfg.UserAgent = fc.Network.UserAgent
	}
	if !cfg.AllowPrivateHosts && fc.Network.AllowPrivateHosts {
		cfg.AllowPrivateHosts = true
	}
	// Verification defaults on; the file may only turn it off explicitly.
	if fc.Network.SSLVerify != nil {
		cfg.SSLVerify = *fc.Network.SSLVerify
	}

	if (cfg.CacheDir == "" || cfg.CacheDir == DefaultCacheDir) && fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	if !cfg.CacheClear && fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if !cfg.CacheStrictPerms && fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}
	if cfg.CacheMaxBytes == 0 && fc.Cache.MaxBytes > 0 {
		cfg.CacheMaxBytes = fc.Cache.MaxBytes
	}
	if cfg.CacheMaxEntries == 0 && fc.Cache.MaxEntries > 0 {
		cfg.CacheMaxEntries = fc.Cache.MaxEntries
	}
	if !cfg.LLMCacheOnly && fc.Cache.LLMOnly {
		cfg.LLMCacheOnly = true
	}

	if !cfg.DryRun && fc.DryRun {
		cfg.DryRun = true
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
	if cfg.LogFile == "" && fc.LogFile != "" {
		cfg.LogFile = fc.LogFile
	}
	if cfg.MetricsFile == "" && fc.MetricsFile != "" {
		cfg.MetricsFile = fc.MetricsFile
	}
}

// ResolveSecrets reads the prompt template and API key from their files
// when they were not given inline. Trailing newlines of the key file are
// dropped; the template is used as written.
func ResolveSecrets(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	if strings.TrimSpace(cfg.PromptTemplate) == "" && cfg.PromptFile != "" {
		b, err := os.ReadFile(cfg.PromptFile)
		if err != nil {
			return fmt.Errorf("read prompt file: %w", err)
		}
		cfg.PromptTemplate = string(b)
	}
	if cfg.LLMAPIKey == "" && cfg.LLMKeyFile != "" {
		b, err := os.ReadFile(cfg.LLMKeyFile)
		if err != nil {
			return fmt.Errorf("read llm key file: %w", err)
		}
		cfg.LLMAPIKey = strings.TrimSpace(string(b))
	}
	return nil
}

// ValidateConfig performs minimal schema validation for required settings.
// For dry-run, LLM settings may be omitted.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.InputPath) == "" {
		return errors.New("config: input path is required")
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return errors.New("config: output directory is required")
	}
	if cfg.NoBuiltinProfiles && len(cfg.ProfileDirs) == 0 {
		return errors.New("config: no profiles (builtins disabled and no profile dirs)")
	}
	if !cfg.DryRun {
		if strings.TrimSpace(cfg.LLMModel) == "" {
			return errors.New("config: llm.model is required (or set LLM_MODEL)")
		}
		if err := summarize.ValidateTemplate(cfg.PromptTemplate); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if cfg.AzureAPIVersion != "" && strings.TrimSpace(cfg.LLMBaseURL) == "" {
			return errors.New("config: azure needs llm.base set to the resource endpoint")
		}
	}
	if cfg.Concurrency < 0 || cfg.PerHostLimit < 0 || cfg.MaxAttempts < 0 || cfg.Timeout < 0 || cfg.CacheMaxBytes < 0 || cfg.CacheMaxEntries < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	return nil
}
