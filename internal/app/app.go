package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/gosift/internal/cache"
	"github.com/hyperifyio/gosift/internal/dom"
	"github.com/hyperifyio/gosift/internal/fetch"
	"github.com/hyperifyio/gosift/internal/llm"
	"github.com/hyperifyio/gosift/internal/metrics"
	"github.com/hyperifyio/gosift/internal/permission"
	"github.com/hyperifyio/gosift/internal/registry"
	"github.com/hyperifyio/gosift/internal/robots"
	"github.com/hyperifyio/gosift/internal/sift"
	"github.com/hyperifyio/gosift/internal/summarize"
	"github.com/hyperifyio/gosift/internal/useragent"
)

// ErrNoArticles is returned when a run with at least one URL produced no
// artifact, so the CLI can exit non-zero.
var ErrNoArticles = errors.New("no articles produced")

// App runs the URL list through permission, extraction and summarization.
type App struct {
	cfg        Config
	registry   *registry.Registry
	sifter     *sift.Sifter
	checker    *permission.Checker
	agents     *useragent.Pool
	summarizer *summarize.Summarizer
	metrics    *metrics.Run
	logger     *zerolog.Logger

	now   func() time.Time
	newID func() string
}

// New wires the components described by cfg.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.PerHostLimit <= 0 {
		cfg.PerHostLimit = DefaultPerHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}

	reg, err := LoadRegistry(cfg)
	if err != nil {
		return nil, err
	}

	agents := useragent.Default()
	if ua := strings.TrimSpace(cfg.UserAgent); ua != "" {
		if agents, err = useragent.New(ua); err != nil {
			return nil, err
		}
	}

	httpClient := newHighThroughputHTTPClient(cfg.SSLVerify)
	var httpCache *cache.HTTPCache
	var llmCache *cache.LLMCache
	if cfg.CacheDir != "" {
		prepareCache(cfg)
		httpCache = &cache.HTTPCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
		llmCache = &cache.LLMCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
	}

	a := &App{
		cfg:      cfg,
		registry: reg,
		sifter:   &sift.Sifter{Registry: reg},
		checker:  newChecker(cfg, httpClient, httpCache),
		agents:   agents,
		metrics:  metrics.New(),
		logger:   &log.Logger,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}

	if !cfg.DryRun {
		provider := llm.New(llm.Config{
			APIKey:          cfg.LLMAPIKey,
			BaseURL:         cfg.LLMBaseURL,
			AzureAPIVersion: cfg.AzureAPIVersion,
			HTTPClient:      httpClient,
		})
		a.summarizer = &summarize.Summarizer{
			Client:    provider,
			Model:     cfg.LLMModel,
			Template:  cfg.PromptTemplate,
			Cache:     llmCache,
			CacheOnly: cfg.LLMCacheOnly,
		}
		preflight(ctx, provider)
	}
	return a, nil
}

// NewChecker returns the permission checker a run would use, for one-off
// checks outside Run.
func NewChecker(cfg Config) *permission.Checker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return newChecker(cfg, newHighThroughputHTTPClient(cfg.SSLVerify), nil)
}

func newChecker(cfg Config, httpClient *http.Client, httpCache *cache.HTTPCache) *permission.Checker {
	return &permission.Checker{
		Robots: &robots.Manager{
			HTTPClient:        httpClient,
			Cache:             httpCache,
			EntryExpiry:       time.Hour,
			AllowPrivateHosts: cfg.AllowPrivateHosts,
		},
		Probe: &fetch.Client{
			HTTPClient:    httpClient,
			MaxAttempts:   cfg.MaxAttempts,
			Cache:         httpCache,
			MaxConcurrent: cfg.Concurrency,
		},
		Timeout: cfg.Timeout,
	}
}

// LoadRegistry builds the profile registry: builtins first unless disabled,
// then every profile directory in order.
func LoadRegistry(cfg Config) (*registry.Registry, error) {
	reg := registry.New()
	if !cfg.NoBuiltinProfiles {
		b, err := registry.Builtin()
		if err != nil {
			return nil, fmt.Errorf("builtin profiles: %w", err)
		}
		reg = b
	}
	for _, dir := range cfg.ProfileDirs {
		if err := reg.LoadDir(dir); err != nil {
			return nil, fmt.Errorf("profiles %s: %w", dir, err)
		}
	}
	if reg.Len() == 0 {
		return nil, errors.New("no profiles loaded")
	}
	return reg, nil
}

func prepareCache(cfg Config) {
	if cfg.CacheClear {
		if err := cache.ClearDir(cfg.CacheDir); err != nil {
			log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
		}
	}
	if cfg.CacheMaxAge > 0 {
		// Purge both HTTP and LLM caches by age; errors do not fail startup
		_, _ = cache.PurgeHTTPCacheByAge(cfg.CacheDir, cfg.CacheMaxAge)
		_, _ = cache.PurgeLLMCacheByAge(cfg.CacheDir, cfg.CacheMaxAge)
	}
	if cfg.CacheMaxBytes > 0 || cfg.CacheMaxEntries > 0 {
		_, _ = cache.EnforceHTTPCacheLimits(cfg.CacheDir, cfg.CacheMaxBytes, cfg.CacheMaxEntries)
		_, _ = cache.EnforceLLMCacheLimits(cfg.CacheDir, cfg.CacheMaxBytes, cfg.CacheMaxEntries)
	}
}

// preflight lists models once; failure is a warning only.
func preflight(ctx context.Context, ml llm.ModelLister) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	models, err := ml.ListModels(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("LLM model list failed; continuing")
		return
	}
	log.Info().Int("count", len(models.Models)).Msg("LLM models available")
}

// Run processes every URL of the input file. One URL failing never stops the
// others; the manifest records each outcome.
func (a *App) Run(ctx context.Context) error {
	urls, err := ReadURLs(a.cfg.InputPath)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		a.logger.Info().Str("input", a.cfg.InputPath).Msg("no links found to process")
		return nil
	}
	if err := os.MkdirAll(a.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	entries := make([]manifestEntry, len(urls))
	hosts := newHostLimiter(a.cfg.PerHostLimit)
	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			release, err := hosts.acquire(ctx, u)
			if err != nil {
				entries[i] = manifestEntry{Index: i + 1, URL: u, Status: StatusError, Detail: err.Error()}
				return nil
			}
			defer release()
			entries[i] = a.process(ctx, u)
			entries[i].Index = i + 1
			return nil
		})
	}
	_ = g.Wait()

	meta := manifestMeta{
		Version:      Version(),
		URLCount:     len(urls),
		ArticleCount: countOK(entries),
		Profiles:     a.registry.Len(),
		HTTPCache:    a.cfg.CacheDir != "",
		LLMCache:     a.cfg.CacheDir != "" && !a.cfg.DryRun,
		DryRun:       a.cfg.DryRun,
		GeneratedAt:  a.now().UTC(),
	}
	if !a.cfg.DryRun {
		meta.Model = a.cfg.LLMModel
		meta.LLMBaseURL = a.cfg.LLMBaseURL
	}
	if err := writeManifest(a.cfg.OutputDir, meta, entries); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if a.cfg.MetricsFile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
			a.logger.Warn().Err(err).Str("path", a.cfg.MetricsFile).Msg("metrics textfile not written")
		}
	}
	a.logger.Info().Int("urls", meta.URLCount).Int("articles", meta.ArticleCount).Str("output", a.cfg.OutputDir).Msg("run complete")
	if err := ctx.Err(); err != nil {
		return err
	}
	if meta.ArticleCount == 0 {
		return ErrNoArticles
	}
	return nil
}

// process handles one URL end to end and reports its manifest entry.
func (a *App) process(ctx context.Context, rawURL string) manifestEntry {
	entry := manifestEntry{URL: rawURL}
	done := func(status string) manifestEntry {
		entry.Status = status
		a.metrics.Outcome(status)
		return entry
	}
	l := a.logger.With().Str("url", rawURL).Logger()
	l.Info().Msg("processing url")

	p, err := a.sifter.Profile(rawURL)
	if err != nil {
		l.Warn().Msg("no profile found for url")
		return done(StatusUnhandled)
	}
	entry.Profile = p.Name

	ua := a.agents.Pick()
	verdict, page := a.checker.CheckFetch(ctx, rawURL, ua)
	if !verdict.Allowed {
		entry.Reason = string(verdict.Reason)
		entry.Detail = verdict.Detail
		a.metrics.Denied(entry.Reason)
		return done(StatusDenied)
	}

	start := time.Now()
	root, err := dom.Parse(page.Body, page.ContentType)
	if err != nil {
		entry.Detail = err.Error()
		l.Error().Err(err).Msg("parse failed")
		return done(StatusError)
	}
	art, err := a.sifter.SiftNode(rawURL, root, p)
	if err != nil || art.Text == "" {
		if err != nil {
			entry.Detail = err.Error()
		}
		return done(StatusEmpty)
	}
	a.metrics.Extracted(p.Name, time.Since(start), len(art.Text))

	var summary string
	if a.summarizer != nil {
		summary, err = a.summarizer.Summarize(ctx, art.Text)
		if err != nil {
			entry.Detail = err.Error()
			a.metrics.SummaryFailed()
			l.Error().Err(err).Msg("summarizer call failed")
			return done(StatusSummaryFailed)
		}
	}

	artifact := Artifact{
		ID:          a.newID(),
		URL:         page.URL,
		Profile:     p.Name,
		Title:       art.Title,
		Text:        art.Text,
		Summary:     summary,
		CreatedDate: formatCreatedDate(a.now()),
		Source:      rawURL,
	}
	name, b, err := writeArtifact(a.cfg.OutputDir, artifact)
	if err != nil {
		entry.Detail = err.Error()
		l.Error().Err(err).Msg("artifact not written")
		return done(StatusError)
	}
	a.metrics.ArtifactWritten()
	entry.Artifact = name
	entry.SHA256 = computeSHA256Hex(string(b))
	entry.Chars = len(art.Text)
	l.Info().Str("profile", p.Name).Str("artifact", name).Int("chars", entry.Chars).Msg("article written")
	return done(StatusOK)
}
