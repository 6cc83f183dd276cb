package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ctrip-reviews/config"
	"ctrip-reviews/models"
	"ctrip-reviews/pipeline"
	"ctrip-reviews/report"
	"ctrip-reviews/resolver"
	"ctrip-reviews/scraper"
)

func main() {
	defaultCfg := config.DefaultConfig()

	pagesDefault := defaultCfg.MaxPages
	if value, ok, err := config.EnvInt("SPIDER_MAX_PAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SPIDER_MAX_PAGES: %v\n", err)
		os.Exit(1)
	} else if ok {
		pagesDefault = value
	}
	poiDefault := ""
	if value, ok := config.EnvString("SPIDER_POI_ID"); ok {
		poiDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("SPIDER_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("SPIDER_METRICS_ADDR"); ok {
		metricsDefault = value
	}
	minDelayDefault := defaultCfg.MinDelay.Seconds()
	if value, ok, err := config.EnvFloat("SPIDER_MIN_DELAY"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SPIDER_MIN_DELAY: %v\n", err)
		os.Exit(1)
	} else if ok {
		minDelayDefault = value
	}
	maxDelayDefault := defaultCfg.MaxDelay.Seconds()
	if value, ok, err := config.EnvFloat("SPIDER_MAX_DELAY"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SPIDER_MAX_DELAY: %v\n", err)
		os.Exit(1)
	} else if ok {
		maxDelayDefault = value
	}

	sightURL := flag.String("url", defaultCfg.SightURL, "Sight page URL; the poiId is extracted from its HTML")
	poiID := flag.String("poi-id", poiDefault, "Known poiId, skips page resolution")
	maxPages := flag.Int("max-pages", pagesDefault, "Maximum pages to fetch (0 = all)")
	outputFile := flag.String("output", outputDefault, "Output file path (default: output/reviews_<poi>_<timestamp>)")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: csv, json, dual, or sqlite")
	minDelay := flag.Float64("min-delay", minDelayDefault, "Minimum inter-page delay (seconds)")
	maxDelay := flag.Float64("max-delay", maxDelayDefault, "Maximum inter-page delay (seconds)")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	logFile := flag.String("log-file", defaultCfg.LogFile, "Log file mirrored alongside stdout (empty disables)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	cfg := defaultCfg
	cfg.SightURL = *sightURL
	cfg.PoiID = *poiID
	cfg.MaxPages = *maxPages
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.MinDelay = time.Duration(*minDelay * float64(time.Second))
	cfg.MaxDelay = time.Duration(*maxDelay * float64(time.Second))
	cfg.MetricsAddr = *metricsAddr
	cfg.LogFile = *logFile
	cfg.Verbose = *verbose

	logger, closeLog := newLogger(cfg.Verbose, cfg.LogFile)
	defer closeLog()
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing up")
	}()

	poi, err := resolvePoiID(cfg)
	if err != nil {
		slog.Error("cannot determine poiId", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("spider starting",
		slog.String("sight_url", cfg.SightURL),
		slog.Int("poi_id", poi),
		slog.Int("max_pages", cfg.MaxPages),
		slog.Duration("min_delay", cfg.MinDelay),
		slog.Duration("max_delay", cfg.MaxDelay),
	)

	if cfg.OutputFile == "" {
		cfg.OutputFile = defaultOutputPath(poi, cfg.OutputFormat)
	}
	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	fetcher := scraper.NewFetcher(cfg, poi)
	s, err := scraper.NewScraper(cfg, poi, fetcher)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	// A single worker keeps the sink in page order.
	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(1)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	result := s.Run(ctx, p)

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	if len(result.Reviews) == 0 {
		slog.Warn("no reviews collected",
			slog.String("reason", string(result.StopReason)),
			slog.Int("server_total", result.ServerTotal),
		)
		return
	}

	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}

	stats := report.Compute(result.Reviews, result.ServerTotal)
	printSummary(result, stats, cfg.OutputFile)
}

// resolvePoiID prefers an explicitly configured poiId and otherwise
// resolves one from the sight page. Either path failing is a hard stop
// before any retrieval begins.
func resolvePoiID(cfg *config.Config) (int, error) {
	raw := cfg.PoiID
	if raw == "" {
		if pageID, ok := resolver.ExtractPageID(cfg.SightURL); ok {
			slog.Debug("sight page id", slog.String("page_id", pageID))
		}
		r, err := resolver.New(cfg.UserAgent, cfg.Timeout, 64)
		if err != nil {
			return 0, err
		}
		raw, err = r.Resolve(cfg.SightURL)
		if err != nil {
			return 0, err
		}
		slog.Info("resolved poiId from sight page", slog.String("poi_id", raw))
	}

	poi, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("poiId %q is not numeric: %w", raw, err)
	}
	return poi, nil
}

func defaultOutputPath(poiID int, format string) string {
	ext := ".csv"
	switch format {
	case "json":
		ext = ".jsonl"
	case "sqlite":
		ext = ".db"
	}
	timestamp := time.Now().Format("20060102_150405")
	return fmt.Sprintf("output/reviews_%d_%s%s", poiID, timestamp, ext)
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".jsonl"
		return pipeline.NewDualWriter(filename, jsonFilename)
	case "sqlite":
		return pipeline.NewSQLiteWriter(filename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(result *models.RunResult, stats report.Stats, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Retrieval complete")
	fmt.Printf("  Reviews:        %d\n", stats.Count)
	fmt.Printf("  Server total:   %d\n", stats.ServerTotal)
	fmt.Printf("  Stop reason:    %s\n", result.StopReason)
	fmt.Printf("  Pages:          %d\n", result.PagesFetched)
	fmt.Printf("  Requests:       %d\n", result.RequestCount)
	fmt.Printf("  Retries:        %d\n", result.RetryCount)
	if result.ErrorCount > 0 {
		fmt.Printf("  Errors:         %d %v\n", result.ErrorCount, result.ErrorsByType)
	}
	if stats.ScoredCount > 0 {
		fmt.Printf("  Score mean:     %.2f (min %.1f, max %.1f, n=%d)\n",
			stats.ScoreMean, stats.ScoreMin, stats.ScoreMax, stats.ScoredCount)
	}
	fmt.Printf("  Useful votes:   %d total, %.2f per review\n", stats.UsefulSum, stats.UsefulMean)
	fmt.Printf("  Duration:       %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	fmt.Printf("  Output file:    %s\n", outputFile)
	fmt.Println(separator)
}

// newLogger builds the process logger: text on a terminal, JSON otherwise,
// mirrored into the spider log file when one is configured.
func newLogger(verbose bool, logFile string) (*slog.Logger, func()) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	out := io.Writer(os.Stdout)
	closeLog := func() {}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot open log file %s: %v\n", logFile, err)
		} else {
			out = io.MultiWriter(os.Stdout, f)
			closeLog = func() { f.Close() }
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) && logFile == "" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return slog.New(handler), closeLog
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
