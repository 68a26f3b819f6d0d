package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/paramcrawl/internal/config"
	"github.com/nao1215/paramcrawl/internal/database"
	"github.com/nao1215/paramcrawl/internal/pipeline"
)

// newTestSite serves a two-page site: the index links to a search page
// with a query, and the search page holds a form.
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	pages := map[string]string{
		"/":       `<html><body><a href="/search?q=1">search</a></body></html>`,
		"/search": `<html><body><form><input name="term" value="x"></form></body></html>`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// writeConfig writes a config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "paramcrawl.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// executeCrawl runs "paramcrawl crawl args..." and returns stdout.
func executeCrawl(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"crawl", "--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

// TestNewCrawlCmd tests the crawl command creation.
func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "crawl [url...]" {
			t.Errorf("expected use 'crawl [url...]', got %q", cmd.Use)
		}
	})

	t.Run("has long description", func(t *testing.T) {
		t.Parallel()
		if cmd.Long == "" {
			t.Error("expected non-empty long description")
		}
	})

	flags := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{name: "list", shorthand: "l", defValue: ""},
		{name: "depth", shorthand: "d", defValue: "3"},
		{name: "max-urls", shorthand: "n", defValue: "100"},
		{name: "batch-concurrency", shorthand: "b", defValue: "4"},
		{name: "timeout", shorthand: "t", defValue: "30s"},
		{name: "user-agent", shorthand: "A", defValue: ""},
		{name: "proxy", shorthand: "x", defValue: ""},
		{name: "json", shorthand: "j", defValue: "false"},
		{name: "markdown", shorthand: "m", defValue: "false"},
		{name: "output", shorthand: "o", defValue: ""},
		{name: "save", shorthand: "s", defValue: "false"},
		{name: "concurrency", defValue: "8"},
		{name: "tor", defValue: "false"},
		{name: "same-site", defValue: "false"},
		{name: "no-sitemap", defValue: "false"},
		{name: "depth-mode", defValue: ""},
		{name: "rebase", defValue: ""},
	}
	for _, tt := range flags {
		t.Run("has "+tt.name+" flag", func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

// TestBuildConfig tests mapping flags to a Config.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("builds config with default values", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		cfg, err := buildConfig(cmd, []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(cfg.Seeds, []string{"https://example.com/"}) {
			t.Errorf("expected seeds [https://example.com/], got %v", cfg.Seeds)
		}
		if cfg.MaxDepth != config.DefaultMaxDepth {
			t.Errorf("expected MaxDepth %d, got %d", config.DefaultMaxDepth, cfg.MaxDepth)
		}
		if cfg.MaxURLs != config.DefaultMaxURLs {
			t.Errorf("expected MaxURLs %d, got %d", config.DefaultMaxURLs, cfg.MaxURLs)
		}
		if cfg.SaveToDB {
			t.Error("expected SaveToDB to be false")
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected default config to validate, got %v", err)
		}
	})

	t.Run("maps flags", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		for name, value := range map[string]string{
			"depth":             "5",
			"max-urls":          "0",
			"depth-mode":        "hops",
			"rebase":            "link-target",
			"same-site":         "true",
			"no-sitemap":        "true",
			"ignore":            "/logout,*.pdf",
			"batch-concurrency": "2",
			"timeout":           "5s",
			"proxy":             "127.0.0.1:9050",
			"markdown":          "true",
			"save":              "true",
			"db-dir":            "/tmp/paramcrawl",
		} {
			if err := cmd.Flags().Set(name, value); err != nil {
				t.Fatalf("failed to set %s: %v", name, err)
			}
		}

		cfg, err := buildConfig(cmd, []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.MaxDepth != 5 {
			t.Errorf("expected MaxDepth 5, got %d", cfg.MaxDepth)
		}
		if cfg.MaxURLs != 0 {
			t.Errorf("expected MaxURLs 0, got %d", cfg.MaxURLs)
		}
		if cfg.DepthMode != "hops" || cfg.RebaseMode != "link-target" {
			t.Errorf("expected hops/link-target, got %s/%s", cfg.DepthMode, cfg.RebaseMode)
		}
		if !cfg.SameSite || !cfg.NoSitemap {
			t.Error("expected SameSite and NoSitemap to be true")
		}
		if !slices.Equal(cfg.IgnorePatterns, []string{"/logout", "*.pdf"}) {
			t.Errorf("expected ignore patterns [/logout *.pdf], got %v", cfg.IgnorePatterns)
		}
		if cfg.BatchConcurrency != 2 {
			t.Errorf("expected BatchConcurrency 2, got %d", cfg.BatchConcurrency)
		}
		if cfg.Timeout != 5*time.Second {
			t.Errorf("expected Timeout 5s, got %s", cfg.Timeout)
		}
		if cfg.ProxyAddress != "127.0.0.1:9050" {
			t.Errorf("expected ProxyAddress 127.0.0.1:9050, got %q", cfg.ProxyAddress)
		}
		if !cfg.MarkdownReport || !cfg.SaveToDB || cfg.DBDir != "/tmp/paramcrawl" {
			t.Errorf("unexpected report settings: markdown=%v save=%v dir=%q", cfg.MarkdownReport, cfg.SaveToDB, cfg.DBDir)
		}
	})

	t.Run("appends seeds from list file", func(t *testing.T) {
		t.Parallel()

		listPath := filepath.Join(t.TempDir(), "seeds.txt")
		content := "# staging\nhttps://a.example/\n\n  https://b.example/  \n"
		if err := os.WriteFile(listPath, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write list: %v", err)
		}

		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("list", listPath)
		cfg, err := buildConfig(cmd, []string{"https://c.example/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"https://c.example/", "https://a.example/", "https://b.example/"}
		if !slices.Equal(cfg.Seeds, want) {
			t.Errorf("expected %v, got %v", want, cfg.Seeds)
		}
	})

	t.Run("returns error for missing list file", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("list", filepath.Join(t.TempDir(), "missing.txt"))
		if _, err := buildConfig(cmd, nil); err == nil {
			t.Error("expected error for missing list file")
		}
	})

	t.Run("returns error for invalid config file", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		_ = root.PersistentFlags().Set("config", writeConfig(t, "{invalid yaml"))
		crawl, _, err := root.Find([]string{"crawl"})
		if err != nil {
			t.Fatalf("failed to find crawl command: %v", err)
		}
		if _, err := buildConfig(crawl, []string{"https://example.com/"}); err == nil {
			t.Error("expected error for invalid config file")
		}
	})
}

// TestRunCrawlCmd tests end-to-end crawls against a local site.
func TestRunCrawlCmd(t *testing.T) {
	t.Parallel()

	t.Run("prints text report", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		out, err := executeCrawl(t, writeConfig(t, ""), "--no-sitemap", "--stats", site.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(out, "Crawled 2 URLs in ") {
			t.Errorf("expected summary line, got %q", out)
		}
		if !strings.Contains(out, "pages fetched") {
			t.Errorf("expected stats line, got %q", out)
		}
		if !strings.Contains(out, site.URL+"/search?term=x") {
			t.Errorf("expected form URL in output, got %q", out)
		}
	})

	t.Run("prints json report for a batch", func(t *testing.T) {
		t.Parallel()

		first := newTestSite(t)
		second := newTestSite(t)
		out, err := executeCrawl(t, writeConfig(t, ""), "--json", first.URL+"/", second.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var doc struct {
			Results []struct {
				Seed       string   `json:"seed"`
				Parameters []string `json:"parameters"`
			} `json:"results"`
		}
		if err := json.Unmarshal([]byte(out), &doc); err != nil {
			t.Fatalf("failed to decode output: %v", err)
		}
		if len(doc.Results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(doc.Results))
		}
		if doc.Results[0].Seed != first.URL+"/" || doc.Results[1].Seed != second.URL+"/" {
			t.Errorf("expected results in seed order, got %s and %s", doc.Results[0].Seed, doc.Results[1].Seed)
		}
		for _, r := range doc.Results {
			if len(r.Parameters) != 2 {
				t.Errorf("expected 2 parameters for %s, got %v", r.Seed, r.Parameters)
			}
		}
	})

	t.Run("applies site config", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		configPath := writeConfig(t, "sites:\n  127.0.0.1:\n    ignore:\n      - \"/search\"\n")
		out, err := executeCrawl(t, configPath, "--no-sitemap", site.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(out, "term=x") {
			t.Errorf("expected ignored path not to be crawled, got %q", out)
		}
		if !strings.Contains(out, site.URL+"/?q=1") {
			t.Errorf("expected link parameters on the index, got %q", out)
		}
	})

	t.Run("writes report to file", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		outputPath := filepath.Join(t.TempDir(), "reports", "surface.md")
		out, err := executeCrawl(t, writeConfig(t, ""), "--markdown", "-o", outputPath, site.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "" {
			t.Errorf("expected nothing on stdout, got %q", out)
		}

		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		if !strings.Contains(string(content), "# Parameter Surface Report") {
			t.Errorf("expected markdown heading, got %q", content)
		}

		info, err := os.Stat(outputPath)
		if err != nil {
			t.Fatalf("failed to stat report: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("expected permissions 0600, got %o", perm)
		}
	})

	t.Run("saves result to history database", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		dbDir := t.TempDir()
		if _, err := executeCrawl(t, writeConfig(t, ""), "--save", "--db-dir", dbDir, site.URL+"/"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		db, err := database.Open(dbDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		runs, err := db.ListRuns(t.Context(), site.URL+"/", 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 {
			t.Fatalf("expected 1 run, got %d", len(runs))
		}
		if runs[0].ParameterCount != 2 {
			t.Errorf("expected 2 parameters, got %d", runs[0].ParameterCount)
		}
	})

	t.Run("invalid seed fails", func(t *testing.T) {
		t.Parallel()

		_, err := executeCrawl(t, writeConfig(t, ""), "ftp://example.com/")
		if !errors.Is(err, pipeline.ErrInvalidSeed) {
			t.Errorf("expected ErrInvalidSeed, got %v", err)
		}
	})

	t.Run("onion seed needs a proxy", func(t *testing.T) {
		t.Parallel()

		onion := "http://aaaqeayeaudaocajbifqydiob4ibceqtcqkrmfyydenbwha5dyp3kead.onion/"
		_, err := executeCrawl(t, writeConfig(t, ""), onion)
		if !errors.Is(err, pipeline.ErrOnionNeedsProxy) {
			t.Errorf("expected ErrOnionNeedsProxy, got %v", err)
		}
	})

	t.Run("valid seeds are reported when another fails", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		out, err := executeCrawl(t, writeConfig(t, ""), "--no-sitemap", "not a url", site.URL+"/")
		if !errors.Is(err, pipeline.ErrInvalidSeed) {
			t.Errorf("expected ErrInvalidSeed, got %v", err)
		}
		if !strings.Contains(out, site.URL+"/?q=1") {
			t.Errorf("expected report for the valid seed, got %q", out)
		}
	})

	t.Run("rejects conflicting formats", func(t *testing.T) {
		t.Parallel()

		_, err := executeCrawl(t, writeConfig(t, ""), "--json", "--markdown", "https://example.com/")
		if !errors.Is(err, config.ErrConflictingReportFormats) {
			t.Errorf("expected ErrConflictingReportFormats, got %v", err)
		}
	})

	t.Run("rejects missing seeds", func(t *testing.T) {
		t.Parallel()

		_, err := executeCrawl(t, writeConfig(t, ""))
		if !errors.Is(err, config.ErrNoSeed) {
			t.Errorf("expected ErrNoSeed, got %v", err)
		}
	})

	t.Run("rejects unreachable proxy", func(t *testing.T) {
		t.Parallel()

		_, err := executeCrawl(t, writeConfig(t, ""), "--proxy", "127.0.0.1:1", "--timeout", "2s", "https://example.com/")
		if err == nil {
			t.Error("expected error for unreachable proxy")
		}
	})
}

// TestNewSpider tests building a spider from site settings.
func TestNewSpider(t *testing.T) {
	t.Parallel()

	t.Run("rejects invalid site depth mode", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.SiteConfigs = &config.File{
			Sites: map[string]config.SiteConfig{"example.com": {DepthMode: "sideways"}},
		}
		if _, err := newSpider(nil, cfg, "https://example.com/", nil, nil); err == nil {
			t.Error("expected error for invalid depth mode")
		}
	})

	t.Run("builds spider with defaults", func(t *testing.T) {
		t.Parallel()

		spider, err := newSpider(nil, config.NewConfig(), "https://example.com/", nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if spider == nil {
			t.Error("expected non-nil spider")
		}
	})
}

// TestHostOf tests host extraction from seeds.
func TestHostOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{raw: "https://Example.com/path", want: "example.com"},
		{raw: "http://127.0.0.1:8080/", want: "127.0.0.1"},
		{raw: " https://example.com ", want: "example.com"},
		{raw: "/relative", want: ""},
		{raw: "://bad", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			if got := hostOf(tt.raw); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
