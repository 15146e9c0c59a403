// File: internal/infra/adapters/ai/multi_adapter.go
package ai

import (
	"context"
	"strings"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*MultiAIAdapter)(nil)

// MultiAIAdapter routes each call to a provider by model name. It does not
// inject any default model; each provider adapter owns its default.
type MultiAIAdapter struct {
	defaultProvider string // e.g., "openai" or "gemini"
	byProvider      map[string]adapter.AIServiceAdapter
	modelToProvider map[string]string
}

func NewMultiAIAdapter(
	defaultProvider string,
	byProvider map[string]adapter.AIServiceAdapter,
	modelToProvider map[string]string,
) *MultiAIAdapter {
	return &MultiAIAdapter{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
		modelToProvider: modelToProvider,
	}
}

func (m *MultiAIAdapter) Provider() string { return m.defaultProvider }

func (m *MultiAIAdapter) resolveProvider(model string) string {
	if p := m.modelToProvider[model]; p != "" {
		return strings.ToLower(p)
	}
	l := strings.ToLower(model)
	switch {
	case strings.HasPrefix(l, "gemini"):
		return "gemini"
	case strings.HasPrefix(l, "gpt"), strings.HasPrefix(l, "o1"), strings.HasPrefix(l, "o3"), strings.HasPrefix(l, "o4"):
		return "openai"
	default:
		return m.defaultProvider
	}
}

func (m *MultiAIAdapter) pick(model string) (adapter.AIServiceAdapter, error) {
	prov := m.resolveProvider(model)
	if a := m.byProvider[prov]; a != nil {
		return a, nil
	}
	if a := m.byProvider[m.defaultProvider]; a != nil {
		return a, nil
	}
	return nil, &domain.ConfigurationMissingError{Key: "ai." + prov}
}

func (m *MultiAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	a, err := m.pick(model)
	if err != nil {
		return 0, err
	}
	return a.CountTokens(ctx, model, messages)
}

func (m *MultiAIAdapter) Chat(ctx context.Context, model string, messages []adapter.Message, opts adapter.ChatOptions) (string, adapter.Usage, error) {
	a, err := m.pick(model)
	if err != nil {
		return "", adapter.Usage{}, err
	}
	return a.Chat(ctx, model, messages, opts)
}
