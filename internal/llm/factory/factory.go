// Package factory builds extraction backends from configuration. Provider
// selection happens exactly once at startup; call sites never dispatch on
// provider names.
package factory

import (
	"fmt"
	"log/slog"

	"ledgerscan/internal/config"
	"ledgerscan/internal/llm"
	"ledgerscan/internal/llm/gemini"
	"ledgerscan/internal/llm/openai"
)

// New returns the backend for a provider name.
func New(name string, cfg config.BackendConfig, logger *slog.Logger) (llm.Backend, error) {
	switch name {
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			Timeout:     cfg.OpenAI.Timeout,
		}, logger), nil
	case "gemini":
		return gemini.NewClient(gemini.Config{
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.Gemini.Model,
			Timeout: cfg.Gemini.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown backend provider: %q (use 'openai' or 'gemini')", name)
	}
}

// Chain resolves the configured primary and optional fallback backends.
func Chain(cfg config.BackendConfig, logger *slog.Logger) ([]llm.Backend, error) {
	primary, err := New(cfg.Primary, cfg, logger)
	if err != nil {
		return nil, err
	}
	backends := []llm.Backend{primary}
	if cfg.Fallback != "" && cfg.Fallback != cfg.Primary {
		fallback, err := New(cfg.Fallback, cfg, logger)
		if err != nil {
			return nil, err
		}
		backends = append(backends, fallback)
	}
	return backends, nil
}
