package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-tor-books/config"
	"github.com/aluiziolira/go-scrape-tor-books/models"
	"github.com/aluiziolira/go-scrape-tor-books/pipeline"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scraper",
		Short: "Scrape book listings and details into a cleaned CSV",
		Long: `scraper crawls the paginated book listing of a publisher site, scrapes
every book's detail page and cleans the result into a final table.

Configuration comes from the environment (and an optional .env file):
BASE_URL, USER_AGENT, SCRAPE_DELAY, MAX_PAGES, LINK_FILEPATH, BOOK_FILEPATH
and FINAL_BOOK_FILEPATH. Flags override the environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("env-file", ".env", "Env file to load before reading the environment")
	cmd.PersistentFlags().String("base-url", "", "Site root to crawl (overrides BASE_URL)")
	cmd.PersistentFlags().Int("delay", 0, "Delay between requests in seconds (overrides SCRAPE_DELAY)")
	cmd.PersistentFlags().String("metrics-addr", "", "Prometheus metrics listen address, e.g. :9090 (overrides METRICS_ADDR)")

	cmd.AddCommand(newStageCmd(pipeline.StageLinks, "Crawl listing pages and save book links", func(ctx context.Context, p *pipeline.Pipeline) ([]*models.StageResult, error) {
		result, err := p.CollectLinks(ctx)
		return []*models.StageResult{result}, err
	}))
	cmd.AddCommand(newStageCmd(pipeline.StageDetails, "Scrape the detail page of every saved link", func(ctx context.Context, p *pipeline.Pipeline) ([]*models.StageResult, error) {
		result, err := p.CollectDetails(ctx)
		return []*models.StageResult{result}, err
	}))
	cmd.AddCommand(newStageCmd(pipeline.StageClean, "Clean the scraped book table", func(_ context.Context, p *pipeline.Pipeline) ([]*models.StageResult, error) {
		result, err := p.Clean()
		return []*models.StageResult{result}, err
	}))
	cmd.AddCommand(newStageCmd("run", "Run links, details and clean in order", func(ctx context.Context, p *pipeline.Pipeline) ([]*models.StageResult, error) {
		return p.Run(ctx)
	}))

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		slog.Error("scraper failed", slog.Any("error", err))
		os.Exit(1)
	}
}

type stageFunc func(ctx context.Context, p *pipeline.Pipeline) ([]*models.StageResult, error)

func newStageCmd(use, short string, run stageFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runStage(cmd.Context(), cfg, run)
		},
	}

	switch use {
	case pipeline.StageLinks, "run":
		cmd.Flags().Int("pages", 0, "Maximum listing pages to crawl (overrides MAX_PAGES)")
	}
	switch use {
	case pipeline.StageClean, "run":
		cmd.Flags().String("format", "", "Final output format: csv, json, or dual (overrides OUTPUT_FORMAT)")
	}

	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("base-url") {
		cfg.BaseURL, _ = flags.GetString("base-url")
	}
	if flags.Changed("delay") {
		cfg.ScrapeDelay, _ = flags.GetInt("delay")
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Lookup("pages") != nil && flags.Changed("pages") {
		cfg.MaxPages, _ = flags.GetInt("pages")
	}
	if flags.Lookup("format") != nil && flags.Changed("format") {
		format, _ := flags.GetString("format")
		cfg.OutputFormat = strings.ToLower(format)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runStage(parent context.Context, cfg *config.Config, run stageFunc) error {
	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting scrape",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("max_pages", cfg.MaxPages),
		slog.Duration("delay", cfg.Delay()),
	)

	p := pipeline.NewPipeline(cfg)

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(p.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
			cancel()
		}()
	}

	results, err := run(ctx, p)
	for _, result := range results {
		if result != nil {
			printSummary(result)
		}
	}
	return err
}

func printSummary(result *models.StageResult) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Printf("Stage %s finished\n", result.Stage)
	fmt.Printf("  Items:         %d\n", result.ItemCount)
	if result.Stage != pipeline.StageClean {
		fmt.Printf("  Requests:      %d\n", result.RequestCount)
		fmt.Printf("  Errors:        %d\n", result.ErrorCount)
		if len(result.ErrorsByType) > 0 {
			fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
		}
	}
	if result.PageCount > 0 {
		fmt.Printf("  Pages:         %d\n", result.PageCount)
	}
	fmt.Printf("  Duration:      %v\n", result.Duration().Round(time.Millisecond))
	fmt.Printf("  Output file:   %s\n", result.OutputFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
