package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/hyperifyio/gosift/internal/app"
	"github.com/hyperifyio/gosift/internal/permission"
	"github.com/hyperifyio/gosift/internal/sift"
	"github.com/hyperifyio/gosift/internal/useragent"
)

// errDenied makes `gosift check` exit non-zero when any URL is refused.
var errDenied = errors.New("scraping not permitted")

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newCLI().RunContext(ctx, os.Args)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("gosift failed")
		os.Exit(exitCode(err))
	}
}

// exitCode: 2 when a run produced nothing, 3 when a check was denied.
func exitCode(err error) int {
	switch {
	case errors.Is(err, app.ErrNoArticles):
		return 2
	case errors.Is(err, errDenied):
		return 3
	default:
		return 1
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:    "gosift",
		Usage:   "extract articles from known publisher layouts and summarize them",
		Version: app.Version(),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML or JSON config file"},
			&cli.StringSliceFlag{Name: "env-file", Value: cli.NewStringSlice(".env"), Usage: "dotenv files loaded before anything else"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, EnvVars: []string{"GOSIFT_VERBOSE"}, Usage: "debug logging"},
			&cli.StringFlag{Name: "log-file", EnvVars: []string{"GOSIFT_LOG_FILE"}, Usage: "also write JSON logs to this file"},
		},
		Before: func(c *cli.Context) error {
			if err := app.LoadEnvFiles(c.StringSlice("env-file")...); err != nil {
				return fmt.Errorf("load env: %w", err)
			}
			return setupLogging(c.App.ErrWriter, c.Bool("verbose"), c.String("log-file"))
		},
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			runCommand(),
			checkCommand(),
			extractCommand(),
			profilesCommand(),
		},
	}
}

func setupLogging(console io.Writer, verbose bool, logFile string) error {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	if console == nil {
		console = os.Stderr
	}
	cw := zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}
	if strings.TrimSpace(logFile) == "" {
		log.Logger = log.Output(cw)
		return nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(cw, f)).With().Timestamp().Logger()
	return nil
}

func profileFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{Name: "profiles", Usage: "directories of YAML site profiles"},
		&cli.BoolFlag{Name: "no-builtins", Usage: "do not load the embedded profiles"},
	}
}

func networkFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{Name: "timeout", Value: app.DefaultTimeout, Usage: "per-request timeout"},
		&cli.IntFlag{Name: "max-attempts", Value: app.DefaultMaxAttempts, Usage: "attempts per page fetch, including the first"},
		&cli.StringFlag{Name: "user-agent", Usage: "fixed User-Agent instead of the rotating browser pool"},
		&cli.BoolFlag{Name: "allow-private-hosts", Usage: "permit loopback and private addresses"},
		&cli.BoolFlag{Name: "ssl-verify", Value: true, Usage: "verify TLS certificates"},
	}
}

func runCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Value: app.DefaultInputPath, Usage: "text file with the URLs to process"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: app.DefaultOutputDir, Usage: "directory for article JSON files and manifest.json"},
		&cli.StringFlag{Name: "llm.base", Usage: "OpenAI-compatible base URL, or the Azure resource endpoint"},
		&cli.StringFlag{Name: "llm.model", Usage: "model name (Azure: deployment name)"},
		&cli.StringFlag{Name: "llm.key", Usage: "API key"},
		&cli.StringFlag{Name: "llm.keyFile", Usage: "file containing the API key"},
		&cli.StringFlag{Name: "llm.azureVersion", Usage: "Azure OpenAI API version; enables Azure mode"},
		&cli.StringFlag{Name: "prompt.file", Usage: "prompt template file containing {data}"},
		&cli.IntFlag{Name: "concurrency", Value: app.DefaultConcurrency, Usage: "URLs processed in parallel"},
		&cli.IntFlag{Name: "per-host", Value: app.DefaultPerHost, Usage: "parallel URLs per host"},
		&cli.StringFlag{Name: "cache.dir", Value: app.DefaultCacheDir, Usage: "HTTP and LLM cache directory; empty disables"},
		&cli.DurationFlag{Name: "cache.maxAge", Usage: "purge cache entries older than this at startup"},
		&cli.BoolFlag{Name: "cache.clear", Usage: "clear the cache before the run"},
		&cli.BoolFlag{Name: "cache.strictPerms", Usage: "0700 cache dirs and 0600 files"},
		&cli.Int64Flag{Name: "cache.maxBytes", Usage: "LRU size limit per cache"},
		&cli.IntFlag{Name: "cache.maxEntries", Usage: "LRU entry limit per cache"},
		&cli.BoolFlag{Name: "llm.cacheOnly", Usage: "answer from the LLM cache only"},
		&cli.BoolFlag{Name: "dry-run", Usage: "extract and write articles without calling the model"},
		&cli.StringFlag{Name: "metrics-file", Usage: "write Prometheus metrics in text format here"},
	}
	flags = append(flags, profileFlags()...)
	flags = append(flags, networkFlags()...)
	return &cli.Command{
		Name:   "run",
		Usage:  "process every URL of the input file",
		Flags:  flags,
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}
	if cfg.LogFile != c.String("log-file") || cfg.Verbose != c.Bool("verbose") {
		if err := setupLogging(c.App.ErrWriter, cfg.Verbose, cfg.LogFile); err != nil {
			return err
		}
	}
	a, err := app.New(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	return a.Run(c.Context)
}

// buildConfig layers flag defaults, the config file, the environment and
// explicitly set flags, in increasing precedence.
func buildConfig(c *cli.Context) (app.Config, error) {
	var cfg app.Config
	applyFlags(c, &cfg, true)
	if path := c.String("config"); path != "" {
		fc, err := app.LoadConfigFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)
	applyFlags(c, &cfg, false)
	if c.Bool("verbose") {
		cfg.Verbose = true
	}
	if cfg.LogFile == "" {
		cfg.LogFile = c.String("log-file")
	}
	if err := app.ResolveSecrets(&cfg); err != nil {
		return cfg, err
	}
	if err := app.ValidateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyFlags copies flag values into cfg: all of them, or only those given
// on the command line.
func applyFlags(c *cli.Context, cfg *app.Config, all bool) {
	set := func(name string) bool { return all || c.IsSet(name) }
	str := func(dst *string, name string) {
		if set(name) {
			*dst = c.String(name)
		}
	}
	str(&cfg.InputPath, "input")
	str(&cfg.OutputDir, "output")
	str(&cfg.LLMBaseURL, "llm.base")
	str(&cfg.LLMModel, "llm.model")
	str(&cfg.LLMAPIKey, "llm.key")
	str(&cfg.LLMKeyFile, "llm.keyFile")
	str(&cfg.AzureAPIVersion, "llm.azureVersion")
	str(&cfg.PromptFile, "prompt.file")
	str(&cfg.UserAgent, "user-agent")
	str(&cfg.CacheDir, "cache.dir")
	str(&cfg.MetricsFile, "metrics-file")
	if set("profiles") {
		cfg.ProfileDirs = c.StringSlice("profiles")
	}
	if set("concurrency") {
		cfg.Concurrency = c.Int("concurrency")
	}
	if set("per-host") {
		cfg.PerHostLimit = c.Int("per-host")
	}
	if set("max-attempts") {
		cfg.MaxAttempts = c.Int("max-attempts")
	}
	if set("cache.maxEntries") {
		cfg.CacheMaxEntries = c.Int("cache.maxEntries")
	}
	if set("cache.maxBytes") {
		cfg.CacheMaxBytes = c.Int64("cache.maxBytes")
	}
	if set("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}
	if set("cache.maxAge") {
		cfg.CacheMaxAge = c.Duration("cache.maxAge")
	}
	flag := func(dst *bool, name string) {
		if set(name) {
			*dst = c.Bool(name)
		}
	}
	flag(&cfg.NoBuiltinProfiles, "no-builtins")
	flag(&cfg.AllowPrivateHosts, "allow-private-hosts")
	flag(&cfg.SSLVerify, "ssl-verify")
	flag(&cfg.CacheClear, "cache.clear")
	flag(&cfg.CacheStrictPerms, "cache.strictPerms")
	flag(&cfg.LLMCacheOnly, "llm.cacheOnly")
	flag(&cfg.DryRun, "dry-run")
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "report whether each URL may be scraped (robots.txt and a live probe)",
		ArgsUsage: "<url-or-host>...",
		Flags:     networkFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return errors.New("check: at least one URL is required")
			}
			cfg := app.Config{}
			applyFlags(c, &cfg, true)
			checker := app.NewChecker(cfg)
			agents := useragent.Default()
			enc := json.NewEncoder(c.App.Writer)
			denied := 0
			for _, arg := range c.Args().Slice() {
				ua := cfg.UserAgent
				if ua == "" {
					ua = agents.Pick()
				}
				target := permission.NormalizeURL(c.Context, checker.Probe, arg, ua)
				v := checker.Check(c.Context, target, ua)
				if !v.Allowed {
					denied++
				}
				if err := enc.Encode(v); err != nil {
					return err
				}
			}
			if denied > 0 {
				return fmt.Errorf("%w: %d of %d", errDenied, denied, c.NArg())
			}
			return nil
		},
	}
}

func extractCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "read HTML from this file instead of fetching; the URL still selects the profile"},
		&cli.StringFlag{Name: "content-type", Value: "text/html", Usage: "content type of --file, for charset detection"},
	}
	flags = append(flags, profileFlags()...)
	flags = append(flags, networkFlags()...)
	return &cli.Command{
		Name:      "extract",
		Usage:     "print the article text of one URL",
		ArgsUsage: "<url>",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("extract: exactly one URL is required")
			}
			rawURL := c.Args().First()
			cfg := app.Config{}
			applyFlags(c, &cfg, true)
			reg, err := app.LoadRegistry(cfg)
			if err != nil {
				return err
			}
			s := &sift.Sifter{Registry: reg}
			if _, err := s.Profile(rawURL); err != nil {
				return err
			}

			var body []byte
			contentType := c.String("content-type")
			if path := c.String("file"); path != "" {
				if body, err = os.ReadFile(path); err != nil {
					return fmt.Errorf("read html: %w", err)
				}
			} else {
				ua := cfg.UserAgent
				if ua == "" {
					ua = useragent.Default().Pick()
				}
				v, page := app.NewChecker(cfg).CheckFetch(c.Context, rawURL, ua)
				if !v.Allowed {
					return fmt.Errorf("%w: %s (%s)", errDenied, v.Reason, v.Detail)
				}
				body, contentType = page.Body, page.ContentType
			}
			art, err := s.Sift(rawURL, body, contentType)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, art.Text)
			return err
		},
	}
}

func profilesCommand() *cli.Command {
	return &cli.Command{
		Name:  "profiles",
		Usage: "list the loaded site profiles and their domains",
		Flags: append(profileFlags(), &cli.BoolFlag{Name: "json", Usage: "print JSON"}),
		Action: func(c *cli.Context) error {
			cfg := app.Config{}
			applyFlags(c, &cfg, true)
			reg, err := app.LoadRegistry(cfg)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				enc := json.NewEncoder(c.App.Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(reg.Profiles())
			}
			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDOMAINS")
			for _, p := range reg.Profiles() {
				names := make([]string, 0, len(p.Domains))
				for _, d := range p.Domains {
					names = append(names, d.String())
				}
				fmt.Fprintf(tw, "%s\t%s\n", p.Name, strings.Join(names, ", "))
			}
			return tw.Flush()
		},
	}
}
