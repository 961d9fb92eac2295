// Package gemini adapts Google's generative-ai-go client to the extraction
// backend contract. Frames travel as inline blobs; the response is requested
// as raw JSON via the response MIME type.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"ledgerscan/internal/document"
	"ledgerscan/internal/llm"
)

type Config struct {
	APIKey  string
	Model   string        // e.g., "gemini-1.5-flash"
	Timeout time.Duration // per-call timeout
}

type Client struct {
	cfg    Config
	logger *slog.Logger
	usage  llm.Usage
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger}
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Usage() llm.UsageSnapshot { return c.usage.Snapshot() }

func (c *Client) Extract(ctx context.Context, req document.ExtractionRequest) (document.ExtractionResponse, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.usage.RecordCall()

	if strings.TrimSpace(c.cfg.APIKey) == "" {
		c.usage.RecordFailure()
		return document.ExtractionResponse{}, &llm.BackendError{
			Provider: "gemini", Class: llm.Terminal, Err: errors.New("api key is empty"),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	c.logger.Info("llm.extract.start",
		"provider", "gemini",
		"req_id", rid,
		"model", c.cfg.Model,
		"frames", len(req.Frames),
		"categories", len(req.Categories),
	)

	cl, err := genai.NewClient(ctx, option.WithAPIKey(c.cfg.APIKey))
	if err != nil {
		c.usage.RecordFailure()
		return document.ExtractionResponse{}, c.classify(err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(c.cfg.Model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(llm.BuildSystemPrompt(req))},
	}

	parts := []genai.Part{genai.Text(llm.BuildUserPrompt(req))}
	for _, f := range req.Frames {
		parts = append(parts, genai.Blob{MIMEType: f.MIMEType, Data: f.Data})
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		c.usage.RecordFailure()
		c.logger.Error("llm.extract.call_error",
			"provider", "gemini", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return document.ExtractionResponse{}, c.classify(err)
	}

	txt := firstText(resp)
	if txt == "" {
		c.usage.RecordFailure()
		return document.ExtractionResponse{}, &llm.BackendError{
			Provider: "gemini", Class: llm.Retryable, Err: errors.New("empty response"),
		}
	}

	out, notes, err := llm.DecodeResponse(txt)
	if err != nil {
		c.usage.RecordFailure()
		c.logger.Error("llm.extract.bad_payload",
			"provider", "gemini", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return document.ExtractionResponse{}, &llm.BackendError{
			Provider: "gemini", Class: llm.Retryable,
			Err: fmt.Errorf("malformed model output: %w", err),
		}
	}
	if len(notes) > 0 {
		c.logger.Warn("llm.extract.sanitized",
			"provider", "gemini", "req_id", rid, "repairs", notes)
	}

	c.logger.Info("llm.extract.ok",
		"provider", "gemini", "req_id", rid,
		"document_class", out.DocumentClass,
		"direction", out.Direction,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// classify maps client errors onto the shared taxonomy: HTTP-carrying API
// errors follow the status rule, everything else (transport, deadline) is
// transient except caller cancellation.
func (c *Client) classify(err error) *llm.BackendError {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &llm.BackendError{
			Provider: "gemini",
			Class:    llm.ClassifyStatus(apiErr.Code),
			Status:   apiErr.Code,
			Err:      err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &llm.BackendError{Provider: "gemini", Class: llm.Terminal, Err: err}
	}
	return &llm.BackendError{Provider: "gemini", Class: llm.Retryable, Err: err}
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

func ptrFloat32(f float32) *float32 { return &f }
