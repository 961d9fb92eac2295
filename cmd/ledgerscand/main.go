// Command ledgerscand watches a directory for receipts and invoices,
// extracts structured transactions from them through a vision model, and
// records the results.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ledgerscan/constants"
	"ledgerscan/internal/config"
	"ledgerscan/internal/ingest"
	"ledgerscan/internal/llm/factory"
	"ledgerscan/internal/normalize"
	"ledgerscan/internal/pipeline"
	"ledgerscan/internal/retry"
	"ledgerscan/internal/store"
	"ledgerscan/internal/validate"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, cleanup := config.SetupLogger(cfg.Log.File, config.ParseLevel(cfg.Log.Level))
	defer cleanup()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	txStore, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer txStore.Close()

	backends, err := factory.Chain(cfg.Backend, logger)
	if err != nil {
		logger.Error("failed to build extraction backends", "error", err)
		os.Exit(1)
	}

	categories := cfg.Extract.Categories
	if len(categories) == 0 {
		categories = constants.DefaultCategories
	}

	processor := pipeline.NewProcessor(
		logger,
		normalize.New(normalize.Config{
			MaxEdgePixels: cfg.Extract.MaxEdgePixels,
			RenderDPI:     cfg.Extract.RenderDPI,
			JPEGQuality:   cfg.Extract.JPEGQuality,
			FirstPageOnly: cfg.Extract.FirstPageOnly,
		}, logger),
		backends,
		validate.New(categories, logger),
		retry.NewExecutor(cfg.Extract.RetryMaxAttempts, cfg.Extract.RetryBaseDelay, logger),
		categories,
	)

	allowed := constants.AllowedExtensions
	if len(cfg.Ingest.AllowedExts) > 0 {
		allowed = make(map[string]struct{}, len(cfg.Ingest.AllowedExts))
		for _, ext := range cfg.Ingest.AllowedExts {
			allowed[constants.NormalizeExt(ext)] = struct{}{}
		}
	}

	watcher, err := ingest.NewWatcher(ingest.Config{
		WatchDir:    cfg.Ingest.WatchDir,
		ArchiveDir:  cfg.Ingest.ArchiveDir,
		AllowedExts: allowed,
		Debounce:    500 * time.Millisecond,
	}, processor, txStore, logger,
		ingest.WithWorkers(cfg.Ingest.Workers),
		ingest.WithQueueSize(512),
		ingest.WithJobTimeout(3*time.Minute),
	)
	if err != nil {
		logger.Error("failed to build watcher", "error", err)
		os.Exit(1)
	}

	if err := watcher.Start(ctx); err != nil {
		logger.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}
	if _, err := watcher.ProcessExisting(ctx); err != nil {
		logger.Error("initial scan failed", "error", err)
	}

	logger.Info("ledgerscand running", "watch_dir", cfg.Ingest.WatchDir, "backend", cfg.Backend.Primary)
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	watcher.Stop(shutdownCtx)

	for _, b := range backends {
		u := b.Usage()
		logger.Info("backend usage", "backend", b.Name(), "calls", u.Calls, "failures", u.Failures)
	}
	logger.Info("ledgerscand stopped")
}
