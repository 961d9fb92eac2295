// Package pipeline composes normalizer, extraction backends and validator
// into one "process one document" operation. Each document runs its own
// state machine: Normalizing -> Extracting -> Validating -> Succeeded or
// Quarantined; failures never escape as errors, they become outcomes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ledgerscan/internal/document"
	"ledgerscan/internal/llm"
	"ledgerscan/internal/normalize"
	"ledgerscan/internal/retry"
	"ledgerscan/internal/validate"
)

// Normalizer is the slice of the normalize package the processor depends on.
type Normalizer interface {
	Normalize(ctx context.Context, path string) ([]document.Frame, error)
}

type Processor struct {
	logger     *slog.Logger
	normalizer Normalizer
	backends   []llm.Backend // primary first, then optional fallbacks
	validator  *validate.Validator
	retries    *retry.Executor
	categories []string
}

func NewProcessor(
	logger *slog.Logger,
	normalizer Normalizer,
	backends []llm.Backend,
	validator *validate.Validator,
	retries *retry.Executor,
	categories []string,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:     logger,
		normalizer: normalizer,
		backends:   backends,
		validator:  validator,
		retries:    retries,
		categories: categories,
	}
}

// ProcessDocument runs one document through the pipeline and reports how it
// ended. No error propagates out of here: everything becomes an outcome.
func (p *Processor) ProcessDocument(ctx context.Context, src document.SourceDocument) document.Outcome {
	start := time.Now()

	// Normalizing
	frames, err := p.normalizer.Normalize(ctx, src.Path)
	if err != nil {
		if ctx.Err() != nil {
			return document.Transient(fmt.Sprintf("normalization interrupted: %v", ctx.Err()))
		}
		var nerr *normalize.Error
		if errors.As(err, &nerr) {
			p.logger.Error("pipeline.normalize_failed", "path", src.Path, "error", err)
			return document.Quarantined(fmt.Sprintf("cannot decode document: %v", nerr.Err))
		}
		return document.Quarantined(fmt.Sprintf("normalization failed: %v", err))
	}

	req := document.ExtractionRequest{
		Frames:     frames,
		Categories: p.categories,
	}

	// Extracting: primary backend under its retry policy, then fallbacks.
	// The frame set is reused across backends.
	var resp document.ExtractionResponse
	var lastErr error
	extracted := false
	for _, backend := range p.backends {
		resp, err = retry.Do(ctx, p.retries, backend.Name(), func(ctx context.Context) (document.ExtractionResponse, error) {
			return backend.Extract(ctx, req)
		})
		if err == nil {
			extracted = true
			break
		}
		lastErr = err
		if ctx.Err() != nil {
			return document.Transient(fmt.Sprintf("extraction interrupted: %v", ctx.Err()))
		}
		p.logger.Warn("pipeline.backend_failed",
			"path", src.Path, "backend", backend.Name(), "error", err)
	}
	if !extracted {
		p.logger.Error("pipeline.extraction_exhausted",
			"path", src.Path, "backends", len(p.backends), "error", lastErr)
		return document.Quarantined(fmt.Sprintf("extraction failed across %d backend(s): %v", len(p.backends), lastErr))
	}

	// Validating: always runs once any response was produced.
	tx, err := p.validator.Validate(resp)
	if err != nil {
		var rej *validate.Rejection
		if errors.As(err, &rej) {
			p.logger.Error("pipeline.validation_rejected", "path", src.Path, "reason", rej.Reason)
			return document.Quarantined(rej.Reason)
		}
		return document.Quarantined(fmt.Sprintf("validation failed: %v", err))
	}

	p.logger.Info("pipeline.succeeded",
		"path", src.Path,
		"document_class", string(tx.DocumentClass),
		"direction", string(tx.Direction),
		"amount", tx.Amount,
		"consistent", tx.Consistent,
		"warnings", len(tx.Warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return document.Succeeded(tx)
}
