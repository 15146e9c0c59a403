package ai

import (
	"context"
	"strings"
	"time"

	"media-pipeline/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter implements adapter.AIServiceAdapter for local/dev runs.
// It echoes the last user message after a short delay, or returns Reply
// when set.
type NoopAIAdapter struct {
	Reply string
	Delay time.Duration
}

func NewNoopAIAdapter() *NoopAIAdapter {
	return &NoopAIAdapter{Delay: 50 * time.Millisecond}
}

func (a *NoopAIAdapter) Provider() string { return "noop" }

func (a *NoopAIAdapter) Chat(ctx context.Context, model string, messages []adapter.Message, opts adapter.ChatOptions) (string, adapter.Usage, error) {
	select {
	case <-time.After(a.Delay):
	case <-ctx.Done():
		return "", adapter.Usage{}, ctx.Err()
	}
	reply := a.Reply
	if reply == "" {
		for i := len(messages) - 1; i >= 0; i-- {
			if strings.ToLower(messages[i].Role) == "user" {
				reply = messages[i].Content
				break
			}
		}
	}
	n, _ := a.CountTokens(ctx, model, messages)
	out := len(strings.Fields(reply))
	return reply, adapter.Usage{PromptTokens: n, CompletionTokens: out, TotalTokens: n + out}, nil
}

// CountTokens approximates one token per whitespace-separated word.
func (a *NoopAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	n := 0
	for _, m := range messages {
		n += len(strings.Fields(m.Content))
	}
	return n, nil
}
