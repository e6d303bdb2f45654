package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/hyperifyio/gosift/internal/app"
	"github.com/hyperifyio/gosift/internal/permission"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	c := newCLI()
	c.Writer = &out
	c.ErrWriter = &errOut
	err := c.Run(append([]string{"gosift"}, args...))
	return out.String(), err
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
		case "/post":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<h1>T</h1><article><p>Intro.</p></article>`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeProfileDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	doc := "name: local\ndomains: [127.0.0.1]\ntitle:\n  - {tag: h1}\nbody:\n  - {tag: article}\n"
	if err := os.WriteFile(filepath.Join(dir, "local.yaml"), []byte(doc), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return dir
}

func TestCLI_RunDryRunWritesArtifacts(t *testing.T) {
	srv := newSite(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "urls.txt")
	out := filepath.Join(dir, "out")
	if err := os.WriteFile(in, []byte(srv.URL+"/post\n"+srv.URL+"/private\n"), 0o644); err != nil {
		t.Fatalf("write urls: %v", err)
	}
	_, err := runCLI(t, "run", "--dry-run", "--input", in, "--output", out, "--cache.dir", "",
		"--profiles", writeProfileDir(t), "--no-builtins", "--allow-private-hosts")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(out, "manifest.json"))
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if !strings.Contains(string(b), `"status": "ok"`) || !strings.Contains(string(b), `"reason": "ROBOTS_DENIED"`) {
		t.Fatalf("unexpected manifest:\n%s", b)
	}
}

func TestCLI_RunRequiresModelUnlessDryRun(t *testing.T) {
	t.Setenv("LLM_MODEL", "")
	dir := t.TempDir()
	_, err := runCLI(t, "run", "--input", filepath.Join(dir, "urls.txt"), "--output", dir, "--cache.dir", "")
	if err == nil || !strings.Contains(err.Error(), "llm.model") {
		t.Fatalf("expected missing model error, got %v", err)
	}
}

func TestCLI_ExtractFromFile(t *testing.T) {
	page := `<main class="main"><div class="ab__title"><h1>New Loader</h1></div>
<section class="section blog-contents">
<h2>Executive Summary</h2><p>We observed a loader.</p>
<h2>Indicators of Compromise</h2><p>deadbeef</p>
</section></main>`
	f := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(f, []byte(page), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := runCLI(t, "extract", "--file", f, "https://unit42.paloaltonetworks.com/new-loader/")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out != "New Loader\n\nExecutive Summary\nWe observed a loader.\n" {
		t.Fatalf("extract output = %q", out)
	}
	if _, err := runCLI(t, "extract", "--file", f, "https://unknown.example/"); err == nil {
		t.Fatalf("unknown host should fail")
	}
}

func TestCLI_CheckReportsVerdicts(t *testing.T) {
	srv := newSite(t)
	out, err := runCLI(t, "check", "--allow-private-hosts", srv.URL+"/post", srv.URL+"/private")
	if !errors.Is(err, errDenied) || exitCode(err) != 3 {
		t.Fatalf("expected denial error, got %v", err)
	}
	dec := json.NewDecoder(strings.NewReader(out))
	var got []permission.Verdict
	for dec.More() {
		var v permission.Verdict
		if err := dec.Decode(&v); err != nil {
			t.Fatalf("decode: %v", err)
		}
		got = append(got, v)
	}
	if len(got) != 2 || !got[0].Allowed || got[1].Reason != permission.ReasonRobotsDenied {
		t.Fatalf("verdicts = %+v", got)
	}
	if got[0].UserAgent == "" || got[0].UserAgent == "Go-http-client/1.1" {
		t.Fatalf("check should use a browser agent, got %q", got[0].UserAgent)
	}
}

func TestCLI_ProfilesListsBuiltins(t *testing.T) {
	out, err := runCLI(t, "profiles")
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	if !strings.HasPrefix(out, "NAME") || !strings.Contains(out, "unit42.paloaltonetworks.com") {
		t.Fatalf("profiles output:\n%s", out)
	}
}

func TestBuildConfig_Precedence(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "gosift.yaml")
	if err := os.WriteFile(cfgFile, []byte("network:\n  concurrency: 9\n  perHost: 4\ndryRun: true\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("GOSIFT_PER_HOST", "6")
	t.Setenv("GOSIFT_CONCURRENCY", "")

	capture := func(args ...string) app.Config {
		t.Helper()
		var got app.Config
		c := newCLI()
		cmd := runCommand()
		cmd.Action = func(ctx *cli.Context) error {
			var err error
			got, err = buildConfig(ctx)
			return err
		}
		c.Commands = []*cli.Command{cmd}
		if err := c.Run(append([]string{"gosift", "--config", cfgFile, "run"}, args...)); err != nil {
			t.Fatalf("run: %v", err)
		}
		return got
	}

	cfg := capture()
	if cfg.Concurrency != 9 || cfg.PerHostLimit != 6 || !cfg.DryRun || !cfg.SSLVerify {
		t.Fatalf("file then env: %+v", cfg)
	}
	cfg = capture("--concurrency", "2", "--per-host", "1")
	if cfg.Concurrency != 2 || cfg.PerHostLimit != 1 {
		t.Fatalf("explicit flags must win: %+v", cfg)
	}
}

func TestExitCode(t *testing.T) {
	if exitCode(app.ErrNoArticles) != 2 || exitCode(errors.New("x")) != 1 {
		t.Fatalf("unexpected exit codes")
	}
}
