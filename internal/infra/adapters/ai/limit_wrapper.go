package ai

import (
	"context"

	"portfolio-advisor/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.ModelClient = (*limitedModel)(nil)

type limitedModel struct {
	inner adapter.ModelClient
	sem   chan struct{}
}

// NewLimitedModel caps the number of in-flight model calls. A non-positive
// limit returns inner unchanged.
func NewLimitedModel(inner adapter.ModelClient, maxConcurrent int) adapter.ModelClient {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedModel{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedModel) Invoke(ctx context.Context, messages []adapter.Message, tools []adapter.ToolSpec) (*adapter.ModelReply, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Invoke(ctx, messages, tools)
}
