package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/nao1215/paramcrawl/internal/config"
	"github.com/nao1215/paramcrawl/internal/crawler"
	"github.com/nao1215/paramcrawl/internal/database"
	"github.com/nao1215/paramcrawl/internal/fetch"
	"github.com/nao1215/paramcrawl/internal/log"
	"github.com/nao1215/paramcrawl/internal/model"
	"github.com/nao1215/paramcrawl/internal/params"
	"github.com/nao1215/paramcrawl/internal/pipeline"
	"github.com/nao1215/paramcrawl/internal/report"
	"github.com/nao1215/paramcrawl/internal/sitemap"
	"github.com/nao1215/paramcrawl/internal/tor"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl one or more sites for parameterized URLs",
		Long: `Crawl fetches each seed URL, seeds the frontier from the site's
sitemap.xml, and follows links up to the depth bound. Every page is
searched for links carrying query parameters and for forms, whose fields
are turned into candidate URLs. Candidates that reveal parameters of their
own are crawled in turn.

Several seeds are crawled concurrently and share one sitemap cache.

Examples:
  # Crawl a single site
  paramcrawl crawl https://example.com/

  # Crawl every URL listed in a file, three at a time
  paramcrawl crawl --list seeds.txt --batch-concurrency 3

  # Follow links deeper, measured in hops from the seed
  paramcrawl crawl --depth 5 --depth-mode hops https://example.com/

  # Write a Markdown report and keep the run in the history database
  paramcrawl crawl --markdown -o report.md --save https://example.com/

  # Crawl an onion service through an embedded Tor daemon
  paramcrawl crawl --tor http://<56 characters>.onion/

Configuration file (.paramcrawl.yaml) example:
  defaults:
    depth: 4
  sites:
    example.com:
      headers:
        X-Env: staging
      ignore:
        - "/logout"
        - "*.pdf"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Input
	cmd.Flags().StringP("list", "l", "",
		"File with one seed URL per line (blank lines and # comments are skipped)")

	// Crawl bounds
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Depth at which links stop being followed (0 = unbounded)")
	cmd.Flags().IntP("max-urls", "n", config.DefaultMaxURLs,
		"Stop after this many parameterized URLs per seed (0 = no cap)")
	cmd.Flags().String("depth-mode", "",
		`How depth is measured: "path" (path segments) or "hops" (links from the seed)`)
	cmd.Flags().String("rebase", "",
		`Where synthesized parameters are attached: "page" or "link-target"`)
	cmd.Flags().Bool("same-site", false,
		"Only evaluate candidates on the seed's registrable domain")
	cmd.Flags().Bool("no-sitemap", false,
		"Do not seed the frontier from sitemap.xml")
	cmd.Flags().StringSlice("ignore", nil,
		"Path globs never crawled (repeatable)")
	cmd.Flags().StringSlice("follow", nil,
		"Only crawl paths matching these globs (repeatable)")

	// Fetching
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Candidate pages fetched at once per seed")
	cmd.Flags().IntP("batch-concurrency", "b", config.DefaultBatchConcurrency,
		"Seeds crawled at once")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")
	cmd.Flags().StringP("user-agent", "A", "",
		"User-Agent header (default: rotate browser user agents)")

	// Proxy
	cmd.Flags().StringP("proxy", "x", "",
		"Route requests through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route requests through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Report
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("stats", false,
		"Include crawl counters in the text report")

	// History
	cmd.Flags().BoolP("save", "s", false,
		"Save each crawl result to the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	return runCrawl(cmd, cfg)
}

// buildConfig creates a Config from the crawl command's flags and args.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	if err := applyGlobalFlags(cmd, cfg); err != nil {
		return nil, err
	}

	var err error
	flags := cmd.Flags()

	listFile, err := flags.GetString("list")
	if err != nil {
		return nil, err
	}
	cfg.Seeds = append(cfg.Seeds, args...)
	if listFile != "" {
		seeds, err := readSeedList(listFile)
		if err != nil {
			return nil, err
		}
		cfg.Seeds = append(cfg.Seeds, seeds...)
	}

	if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.MaxURLs, err = flags.GetInt("max-urls"); err != nil {
		return nil, err
	}
	if cfg.DepthMode, err = flags.GetString("depth-mode"); err != nil {
		return nil, err
	}
	if cfg.RebaseMode, err = flags.GetString("rebase"); err != nil {
		return nil, err
	}
	if cfg.SameSite, err = flags.GetBool("same-site"); err != nil {
		return nil, err
	}
	if cfg.NoSitemap, err = flags.GetBool("no-sitemap"); err != nil {
		return nil, err
	}
	if cfg.IgnorePatterns, err = flags.GetStringSlice("ignore"); err != nil {
		return nil, err
	}
	if cfg.FollowPatterns, err = flags.GetStringSlice("follow"); err != nil {
		return nil, err
	}

	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.BatchConcurrency, err = flags.GetInt("batch-concurrency"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}

	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.OutputFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.ShowStats, err = flags.GetBool("stats"); err != nil {
		return nil, err
	}

	if cfg.SaveToDB, err = flags.GetBool("save"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// readSeedList reads one seed per line. Blank lines and lines starting
// with "#" are skipped.
func readSeedList(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided seed list is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open seed list: %w", err)
	}
	defer f.Close()

	var seeds []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seeds = append(seeds, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read seed list: %w", err)
	}
	return seeds, nil
}

// newLogger returns the secure logger selected by cfg.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if cfg.LogJSON {
		return log.NewSecureJSONLogger(w, cfg.Verbose)
	}
	return log.NewSecureLogger(w, cfg.Verbose)
}

// runCrawl crawls every seed of cfg and writes the report. Failures inside
// a crawl are absorbed by the crawler; only seeds that could not be
// crawled at all make the command fail.
func runCrawl(cmd *cobra.Command, cfg *config.Config) error {
	logger := newLogger(cfg, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, finishing with partial results")
			cancel()
		case <-ctx.Done():
		}
	}()

	client, stop, err := newHTTPClient(ctx, cfg, cmd.ErrOrStderr(), logger)
	if err != nil {
		return err
	}
	defer stop()

	fetcher := newFetcher(client, cfg)
	defer fetcher.CloseIdleConnections()

	var db *database.CrawlDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	proxied := cfg.UseTor || cfg.ProxyAddress != ""
	cache := sitemap.NewCache()
	crawlerFor := func(seed string) (pipeline.Crawler, error) {
		return newSpider(fetcher, cfg, seed, cache, logger)
	}

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			p := pipeline.New(pipeline.WithLogger(logger))
			p.AddStep(
				pipeline.NewValidateStep(proxied),
				pipeline.NewCrawlStep(crawlerFor, pipeline.WithCrawlLogger(logger)),
			)
			if db != nil {
				p.AddStep(pipeline.NewSaveStep(db, logger))
			}
			return p
		},
		pipeline.WithConcurrency(cfg.BatchConcurrency),
		pipeline.WithBatchLogger(logger),
	)

	jobs, batchErr := bp.ProcessBatch(ctx, cfg.Seeds)

	var results []*model.CrawlResult
	var errs []error
	for _, job := range jobs {
		if job.Result != nil {
			results = append(results, job.Result)
		}
		if job.Err != nil && !errors.Is(job.Err, context.Canceled) {
			errs = append(errs, fmt.Errorf("%s: %w", job.Seed, job.Err))
		}
	}
	if batchErr != nil {
		errs = append(errs, batchErr)
	}

	if len(results) > 0 {
		if err := writeReport(cmd.OutOrStdout(), cfg, results); err != nil {
			errs = append(errs, fmt.Errorf("failed to write report: %w", err))
		}
	}

	return errors.Join(errs...)
}

// newHTTPClient returns the client all fetches share. With --tor or
// --proxy it goes through SOCKS5; the returned stop func shuts down an
// embedded Tor daemon and is a no-op otherwise.
func newHTTPClient(ctx context.Context, cfg *config.Config, progress io.Writer, logger *slog.Logger) (*http.Client, func(), error) {
	noop := func() {}

	switch {
	case cfg.UseTor:
		fmt.Fprintln(progress, "Starting embedded Tor daemon...")
		fmt.Fprintf(progress, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

		embeddedTor := tor.NewEmbeddedTor(
			tor.WithStartupTimeout(cfg.TorStartupTimeout),
			tor.WithLogger(logger),
		)
		if err := embeddedTor.Start(ctx); err != nil {
			return nil, noop, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		stop := func() {
			if err := embeddedTor.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}

		torClient, err := embeddedTor.NewClient(cfg.Timeout)
		if err != nil {
			stop()
			return nil, noop, fmt.Errorf("failed to create Tor client: %w", err)
		}
		if status := torClient.CheckConnection(ctx); status != tor.ProxyStatusOK {
			stop()
			return nil, noop, fmt.Errorf("embedded Tor proxy check failed: %w", status.Error())
		}
		logger.Info("embedded Tor daemon started", "socks_addr", embeddedTor.SocksAddr())
		return torClient.NewHTTPClient(), stop, nil

	case cfg.ProxyAddress != "":
		proxyClient, err := tor.NewClient(cfg.ProxyAddress, cfg.Timeout)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create proxy client: %w", err)
		}
		if status := proxyClient.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, noop, fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)",
				status.Error(), cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
		return proxyClient.NewHTTPClient(), noop, nil

	default:
		return &http.Client{Timeout: cfg.Timeout}, noop, nil
	}
}

// newFetcher returns the fetcher shared by every crawl. Config file
// headers are scoped to the hosts they are configured for so that they
// never leak to third-party hosts linked from a page.
func newFetcher(client *http.Client, cfg *config.Config) *fetch.HTTPFetcher {
	opts := []fetch.Option{
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
	}
	if cfg.SiteConfigs != nil {
		for host := range cfg.SiteConfigs.Sites {
			opts = append(opts, fetch.WithHostHeaders(host, cfg.SiteConfigs.SiteConfig(host).Headers))
		}
	}
	for _, seed := range cfg.Seeds {
		if host := hostOf(seed); host != "" {
			opts = append(opts, fetch.WithHostHeaders(host, cfg.Site(host).Headers))
		}
	}
	return fetch.New(client, opts...)
}

// newSpider builds the spider for seed from the effective site settings.
func newSpider(f fetch.Fetcher, cfg *config.Config, seed string, cache *sitemap.Cache, logger *slog.Logger) (*crawler.Spider, error) {
	site := cfg.Site(hostOf(seed))

	depthMode, err := crawler.ParseDepthMode(site.DepthMode)
	if err != nil {
		return nil, err
	}
	rebaseMode, err := params.ParseRebaseMode(site.RebaseMode)
	if err != nil {
		return nil, err
	}

	return crawler.NewSpider(f,
		crawler.WithMaxDepth(site.MaxDepth),
		crawler.WithMaxURLs(site.MaxURLs),
		crawler.WithConcurrency(cfg.Concurrency),
		crawler.WithDepthMode(depthMode),
		crawler.WithRebaseMode(rebaseMode),
		crawler.WithSameSite(cfg.SameSite),
		crawler.WithIgnorePatterns(site.IgnorePatterns),
		crawler.WithFollowPatterns(site.FollowPatterns),
		crawler.WithSitemapCache(cache),
		crawler.WithSitemap(!cfg.NoSitemap),
		crawler.WithLogger(logger),
		crawler.WithErrorHandler(func(f *model.Failure) {
			logger.Debug("page skipped", "kind", f.Kind.String(), "url", f.URL, "error", f.Err)
		}),
	), nil
}

// hostOf returns the lower-cased host name of raw, or "".
func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// writeReport writes results in the format selected by cfg, to the
// output file if one is set.
func writeReport(stdout io.Writer, cfg *config.Config, results []*model.CrawlResult) error {
	output := stdout
	if cfg.OutputFile != "" {
		f, err := createOutputFile(cfg.OutputFile)
		if err != nil {
			return err
		}
		defer f.Close()
		output = f
	}

	var w report.Writer
	format := report.FormatFor(cfg.JSONReport, cfg.MarkdownReport)
	if format == report.FormatText {
		w = report.NewSimpleWriter(output, report.WithStats(cfg.ShowStats))
	} else {
		w = report.NewWriter(format, output, getVersion())
	}

	_, err := w.WriteAll(results)
	return err
}

// createOutputFile creates path and its parent directories. Reports list
// every discovered endpoint, so the file is only readable by the owner.
func createOutputFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
