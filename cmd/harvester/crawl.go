package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/harvester/internal/config"
	"github.com/nao1215/harvester/internal/crawler"
	"github.com/nao1215/harvester/internal/database"
	harvesterlog "github.com/nao1215/harvester/internal/log"
	"github.com/nao1215/harvester/internal/model"
	"github.com/nao1215/harvester/internal/pipeline"
	"github.com/nao1215/harvester/internal/plugins"
	"github.com/nao1215/harvester/internal/report"
	"github.com/nao1215/harvester/internal/transport"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [unit...]",
		Short: "Run one or more crawl units",
		Long: `Crawl runs the named units, or every registered unit when none is given.

Each unit starts from its seed address and follows links chosen by its
handlers until no work is left or the command is interrupted. Units run
concurrently, up to --batch at a time. A report is written for every unit
as soon as it finishes.

Examples:
  # Run every registered unit
  harvester crawl

  # Run one unit with a smaller permit pool and a politeness throttle
  harvester crawl foo --concurrency 8 --rps 2

  # Route requests through an existing SOCKS5 proxy (e.g. Tor)
  harvester crawl foo --proxy 127.0.0.1:9050

  # Start a private Tor daemon for this run
  harvester crawl foo --embedded-tor

  # Write a Markdown report to a file
  harvester crawl foo --markdown -o reports/foo.md

Configuration file (.harvester) example:
  defaults:
    userAgent: "harvester/0.1"
  units:
    foo:
      concurrency: 32
      dedupe: true`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Request flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request, body included")
	cmd.Flags().IntP("concurrency", "n", 0,
		"Override every unit's permit pool size")
	cmd.Flags().StringP("user-agent", "u", "",
		"Override every unit's User-Agent header")
	cmd.Flags().Bool("dedupe", false,
		"Skip URLs already visited in this run")
	cmd.Flags().Float64P("rps", "r", 0,
		"Throttle every unit to this many requests per second")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum bytes read from a response body")
	cmd.Flags().Uint64("max-retries", 0,
		"Give up on an address after this many retries (0: limited by --retry-timeout only)")
	cmd.Flags().Duration("retry-timeout", config.DefaultRetryMaxElapsedTime,
		"Give up on an address once retries have run this long")

	// Transport flags
	cmd.Flags().StringP("proxy", "x", "",
		"Route requests through a SOCKS5 proxy at host:port")
	cmd.Flags().BoolP("embedded-tor", "E", false,
		"Start a private Tor daemon and route requests through it")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of units run concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .harvester in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write reports to the specified file path (creates directories if needed)")

	// Journal flags
	cmd.Flags().Bool("no-db", false,
		"Do not journal visits and runs")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the journal database")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := harvesterlog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, plugins.Default(), cmd.OutOrStdout(), logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from the command's flags and the
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.Dedupe, err = flags.GetBool("dedupe"); err != nil {
		return nil, err
	}
	if cfg.RequestsPerSecond, err = flags.GetFloat64("rps"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.Retry.MaxRetries, err = flags.GetUint64("max-retries"); err != nil {
		return nil, err
	}
	if cfg.Retry.MaxElapsedTime, err = flags.GetDuration("retry-timeout"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseEmbeddedTor, err = flags.GetBool("embedded-tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	// An explicit config path must exist; a missing default file is fine.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.UnitConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.UnitConfigs = &config.File{Units: make(map[string]config.UnitConfig)}
	}

	cfg.Units = args
	return cfg, nil
}

// runCrawl runs the selected units of reg and writes their reports to out
// (or cfg.ReportFile). It returns an error when a unit could not be built
// or the run was interrupted.
func runCrawl(ctx context.Context, cfg *config.Config, reg *plugins.Registry, out io.Writer, logger *slog.Logger) error {
	names, err := reg.Resolve(cfg.Units)
	if err != nil {
		return err
	}

	logger.Info("starting crawl",
		"units", names,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
		"proxy", cfg.ProxyAddress != "" || cfg.UseEmbeddedTor,
	)

	var db *database.CrawlDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	topts := transport.DefaultOptions()
	topts.Timeout = cfg.Timeout
	topts.ProxyAddress = cfg.ProxyAddress

	if cfg.ProxyAddress != "" {
		if err := transport.ProbeProxy(ctx, cfg.ProxyAddress); err != nil {
			return fmt.Errorf("proxy check failed (make sure the proxy is running at %s): %w",
				cfg.ProxyAddress, err)
		}
	}
	if cfg.UseEmbeddedTor {
		embeddedTor, err := startEmbeddedTor(ctx, cfg, out, logger)
		if err != nil {
			return err
		}
		defer func() {
			logger.Info("stopping embedded Tor daemon...")
			if err := embeddedTor.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}()
		if topts, err = embeddedTor.Apply(topts); err != nil {
			return err
		}
	}

	output, closeOutput, err := openReportOutput(cfg.ReportFile, out)
	if err != nil {
		return err
	}
	defer closeOutput()

	factory := pipeline.NewUnitFactory(
		func(name string, opts ...crawler.Option) (crawler.Runner, error) {
			return reg.Build(name, cfg.UnitConfig(name), opts...)
		},
		pipeline.WithJournalDB(db),
		pipeline.WithReportWriter(newReportWriter(cfg, output)),
		pipeline.WithFactoryLogger(logger),
		pipeline.WithCrawlerOptions(
			crawler.WithLogger(logger),
			crawler.WithTransport(topts),
			crawler.WithRetryPolicy(crawler.RetryPolicyFromConfig(cfg.Retry)),
			crawler.WithMaxBodySize(cfg.MaxBodySize),
		),
	)

	bp := pipeline.NewBatchProcessor(factory.Build,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()
	var failed atomic.Int64
	err = bp.ProcessBatchWithCallback(ctx, names, func(rep *model.CrawlReport, index int) {
		// Reports are written by the pipeline; this only tracks progress.
		if rep.Error != nil {
			failed.Add(1)
		}
		logger.Info("unit finished",
			"unit", rep.Unit,
			"progress", fmt.Sprintf("%d/%d", index+1, len(names)),
			"visited", rep.Stats.Visited,
			"failed", rep.Stats.Failed,
		)
	})

	logger.Info("crawl complete",
		"units", len(names),
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)

	if err != nil {
		return err
	}
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%w: %d of %d", errUnitsFailed, n, len(names))
	}
	return nil
}

// errUnitsFailed is returned when at least one unit ended with an error,
// so the process exits non-zero.
var errUnitsFailed = errors.New("crawl units failed")

// newReportWriter returns the writer for the selected report format.
func newReportWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(w, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}

// openReportOutput returns the report destination: path when set, else
// fallback. Report files are created with 0600 since failure messages may
// contain internal addresses.
func openReportOutput(path string, fallback io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return fallback, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil //nolint:errcheck // nothing to do on close failure
}

// startEmbeddedTor starts a private Tor daemon and waits for bootstrap.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) (*transport.EmbeddedTor, error) {
	fmt.Fprintln(out, "Starting embedded Tor daemon...")
	fmt.Fprintf(out, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := transport.NewEmbeddedTor(cfg.TorStartupTimeout)
	if err := embeddedTor.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	if err := transport.ProbeProxy(ctx, embeddedTor.SocksAddr()); err != nil {
		_ = embeddedTor.Stop() //nolint:errcheck // Best effort cleanup
		return nil, fmt.Errorf("embedded Tor proxy check failed: %w", err)
	}

	logger.Info("embedded Tor daemon started", "socksAddr", embeddedTor.SocksAddr())
	return embeddedTor, nil
}
