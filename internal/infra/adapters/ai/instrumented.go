package ai

import (
	"context"
	"time"

	"portfolio-advisor/internal/domain/ports/adapter"
	"portfolio-advisor/internal/infra/metrics"
)

type instrumentedModel struct {
	inner    adapter.ModelClient
	provider string
	model    string
}

// NewInstrumentedModel records latency and token usage for every call.
func NewInstrumentedModel(inner adapter.ModelClient, provider, model string) adapter.ModelClient {
	return &instrumentedModel{inner: inner, provider: provider, model: model}
}

func (m *instrumentedModel) Invoke(ctx context.Context, messages []adapter.Message, tools []adapter.ToolSpec) (*adapter.ModelReply, error) {
	start := time.Now()
	reply, err := m.inner.Invoke(ctx, messages, tools)
	latency := int(time.Since(start).Milliseconds())

	var u adapter.Usage
	if reply != nil {
		u = reply.Usage
	}
	metrics.ObserveChatUsage(m.provider, m.model, u.PromptTokens, u.CompletionTokens, u.TotalTokens, latency, err == nil)
	return reply, err
}
