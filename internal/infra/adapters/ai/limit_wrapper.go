package ai

import (
	"context"
	"time"

	"media-pipeline/internal/domain/ports/adapter"
	"media-pipeline/internal/infra/metrics"
)

// Compile-time check
var _ adapter.AIServiceAdapter = (*limitedAI)(nil)

type limitedAI struct {
	inner adapter.AIServiceAdapter
	sem   chan struct{}
}

// NewLimitedAI caps concurrent calls to inner. Waiting for a slot honors ctx.
func NewLimitedAI(inner adapter.AIServiceAdapter, maxConcurrent int) adapter.AIServiceAdapter {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAI{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedAI) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limitedAI) Provider() string { return l.inner.Provider() }

func (l *limitedAI) Chat(ctx context.Context, model string, messages []adapter.Message, opts adapter.ChatOptions) (string, adapter.Usage, error) {
	if err := l.acquire(ctx); err != nil {
		return "", adapter.Usage{}, err
	}
	defer func() { <-l.sem }()
	return l.inner.Chat(ctx, model, messages, opts)
}

func (l *limitedAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	if err := l.acquire(ctx); err != nil {
		return 0, err
	}
	defer func() { <-l.sem }()
	return l.inner.CountTokens(ctx, model, messages)
}

// meteredAI records latency and token usage of every chat call.
type meteredAI struct {
	inner adapter.AIServiceAdapter
}

var _ adapter.AIServiceAdapter = (*meteredAI)(nil)

func NewMeteredAI(inner adapter.AIServiceAdapter) adapter.AIServiceAdapter {
	return &meteredAI{inner: inner}
}

func (m *meteredAI) Provider() string { return m.inner.Provider() }

func (m *meteredAI) Chat(ctx context.Context, model string, messages []adapter.Message, opts adapter.ChatOptions) (string, adapter.Usage, error) {
	start := time.Now()
	out, u, err := m.inner.Chat(ctx, model, messages, opts)
	metrics.ObserveChat(m.inner.Provider(), model, u.PromptTokens, u.CompletionTokens, time.Since(start), err == nil)
	return out, u, err
}

func (m *meteredAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return m.inner.CountTokens(ctx, model, messages)
}
