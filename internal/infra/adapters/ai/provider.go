// File: internal/infra/adapters/ai/provider.go
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"portfolio-advisor/internal/config"
	"portfolio-advisor/internal/domain/ports/adapter"
)

// ResolveProvider picks the backend for the configured model. An explicit
// provider wins; otherwise the model name decides, and as a last resort the
// first provider with a key.
func ResolveProvider(cfg config.AIConfig) string {
	if p := strings.ToLower(strings.TrimSpace(cfg.Provider)); p != "" {
		return p
	}
	l := strings.ToLower(cfg.DefaultModel)
	switch {
	case strings.HasPrefix(l, "gemini") && cfg.GeminiKey != "":
		return "gemini"
	case strings.HasPrefix(l, "gpt") && cfg.OpenAIKey != "":
		return "openai"
	}
	switch {
	case cfg.OpenAIKey != "":
		return "openai"
	case cfg.MetisKey != "":
		return "metis"
	case cfg.GeminiKey != "":
		return "gemini"
	}
	return "echo"
}

// NewModelClient builds the configured model client wrapped with metrics and
// the concurrency limit. Dev mode without any key gets the echo model.
func NewModelClient(ctx context.Context, cfg config.AIConfig, dev bool, log *zerolog.Logger) (adapter.ModelClient, string, error) {
	provider := ResolveProvider(cfg)

	var (
		client adapter.ModelClient
		err    error
	)
	switch provider {
	case "openai":
		client, err = NewOpenAIAdapter(OpenAIOptions{
			Provider: "openai", APIKey: cfg.OpenAIKey, BaseURL: cfg.OpenAIBaseURL,
			Model: cfg.DefaultModel, MaxTokens: cfg.MaxTokens, Timeout: cfg.Timeout,
		})
	case "metis":
		client, err = NewOpenAIAdapter(OpenAIOptions{
			Provider: "metis", APIKey: cfg.MetisKey, BaseURL: cfg.MetisBaseURL,
			Model: cfg.DefaultModel, MaxTokens: cfg.MaxTokens, Timeout: cfg.Timeout,
		})
	case "gemini":
		client, err = NewGeminiAdapter(ctx, cfg.GeminiKey, cfg.GeminiURL, cfg.DefaultModel, cfg.MaxTokens)
	case "echo":
		if !dev {
			return nil, "", fmt.Errorf("no model provider key configured")
		}
		client = NewEchoModel(log)
	default:
		return nil, "", fmt.Errorf("unknown ai provider %q", provider)
	}
	if err != nil {
		return nil, "", fmt.Errorf("init %s model client: %w", provider, err)
	}

	log.Info().Str("provider", provider).Str("model", cfg.DefaultModel).Int("concurrent_limit", cfg.ConcurrentLimit).Msg("model client ready")
	client = NewInstrumentedModel(client, provider, cfg.DefaultModel)
	return NewLimitedModel(client, cfg.ConcurrentLimit), provider, nil
}
