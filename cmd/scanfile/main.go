// Command scanfile runs one document through the extraction pipeline
// without a watcher or store and prints the resulting transaction as
// JSON. Useful for trying out prompts, models and category vocabularies.
package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"ledgerscan/constants"
	"ledgerscan/internal/config"
	"ledgerscan/internal/document"
	"ledgerscan/internal/llm/factory"
	"ledgerscan/internal/normalize"
	"ledgerscan/internal/pipeline"
	"ledgerscan/internal/retry"
	"ledgerscan/internal/validate"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, cleanup := config.SetupLogger(cfg.Log.File, config.ParseLevel(cfg.Log.Level))
	defer cleanup()

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "scanfile <path-to-document>")
		os.Exit(2)
	}
	path := os.Args[1]
	info, err := os.Stat(path)
	if err != nil {
		logger.Error("cannot stat input", "path", path, "error", err)
		os.Exit(1)
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	out := processor.ProcessDocument(ctx, document.SourceDocument{
		Path:         path,
		Size:         info.Size(),
		Format:       constants.MapExtToFormat(constants.NormalizeExt(filepath.Ext(path))),
		DiscoveredAt: time.Now(),
	})

	switch out.Kind {
	case document.OutcomeSucceeded:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out.Transaction); err != nil {
			logger.Error("encode transaction", "error", err)
			os.Exit(1)
		}
	default:
		logger.Error("processing failed", "outcome", string(out.Kind), "reason", out.Reason)
		os.Exit(1)
	}
}
