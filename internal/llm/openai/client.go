package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"ledgerscan/internal/document"
	"ledgerscan/internal/llm"
)

// Extract implements llm.Backend against the chat/completions endpoint,
// attaching every normalized frame as an image_url data URL.
func (c *Client) Extract(ctx context.Context, req document.ExtractionRequest) (document.ExtractionResponse, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.usage.RecordCall()

	c.logger.Info("llm.extract.start",
		"provider", "openai",
		"req_id", rid,
		"model", c.cfg.Model,
		"frames", len(req.Frames),
		"categories", len(req.Categories),
	)

	userParts := []map[string]any{
		{"type": "text", "text": llm.BuildUserPrompt(req)},
	}
	for _, f := range req.Frames {
		userParts = append(userParts, map[string]any{
			"type": "image_url",
			"image_url": map[string]any{
				"url": "data:" + f.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(f.Data),
			},
		})
	}

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt(req)},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(llm.BuildResponseSchema(req.Categories))},
			{"role": "user", "content": userParts},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.usage.RecordFailure()
		c.logger.Error("llm.extract.http_error",
			"provider", "openai", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return document.ExtractionResponse{}, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.usage.RecordFailure()
		return document.ExtractionResponse{}, &llm.BackendError{
			Provider: "openai", Class: llm.Retryable,
			Err: fmt.Errorf("decode response envelope: %w", err),
		}
	}
	if len(cc.Choices) == 0 {
		c.usage.RecordFailure()
		return document.ExtractionResponse{}, &llm.BackendError{
			Provider: "openai", Class: llm.Retryable,
			Err: errors.New("no choices in response"),
		}
	}

	out, notes, err := llm.DecodeResponse(cc.Choices[0].Message.Content)
	if err != nil {
		c.usage.RecordFailure()
		c.logger.Error("llm.extract.bad_payload",
			"provider", "openai", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return document.ExtractionResponse{}, &llm.BackendError{
			Provider: "openai", Class: llm.Retryable,
			Err: fmt.Errorf("malformed model output: %w", err),
		}
	}
	if len(notes) > 0 {
		c.logger.Warn("llm.extract.sanitized",
			"provider", "openai", "req_id", rid, "repairs", notes)
	}

	c.logger.Info("llm.extract.ok",
		"provider", "openai", "req_id", rid,
		"document_class", out.DocumentClass,
		"direction", out.Direction,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, &llm.BackendError{Provider: "openai", Class: llm.Terminal, Err: fmt.Errorf("marshal request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, &llm.BackendError{Provider: "openai", Class: llm.Terminal, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &llm.BackendError{Provider: "openai", Class: classifyTransportError(err), Err: err}
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.logger.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &llm.BackendError{
			Provider: "openai",
			Class:    llm.ClassifyStatus(resp.StatusCode),
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 512)),
		}
	}
	return raw, nil
}

// classifyTransportError: timeouts are worth retrying; a context cancelled by
// the caller is not.
func classifyTransportError(err error) llm.ErrorClass {
	if errors.Is(err, context.Canceled) {
		return llm.Terminal
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return llm.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return llm.Retryable
	}
	return llm.Retryable
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
