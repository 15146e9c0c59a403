// Package llm holds the text-model backed producers: planner, critic,
// rewriter, summarizer and script writer.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/ports/adapter"
	"media-pipeline/internal/infra/metrics"
)

// Client is the shared call path: token budget check, then Chat.
type Client struct {
	ai        adapter.AIServiceAdapter
	model     string
	maxPrompt int
	log       *zerolog.Logger
}

func NewClient(ai adapter.AIServiceAdapter, model string, maxPromptTokens int, logger *zerolog.Logger) *Client {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{ai: ai, model: model, maxPrompt: maxPromptTokens, log: logger}
}

func (c *Client) Model() string { return c.model }

// Complete sends one system+user exchange after the budget check and returns
// the trimmed reply.
func (c *Client) Complete(ctx context.Context, system, user string, opts adapter.ChatOptions) (string, error) {
	msgs := []adapter.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
	if c.maxPrompt > 0 {
		n, err := c.ai.CountTokens(ctx, c.model, msgs)
		if err != nil {
			// counting is best-effort; the provider enforces its own limit
			c.log.Debug().Err(err).Str("model", c.model).Msg("token count unavailable")
		} else if n > c.maxPrompt {
			metrics.BudgetBlocked(c.ai.Provider(), c.model)
			return "", fmt.Errorf("prompt has %d tokens, budget is %d: %w", n, c.maxPrompt, domain.ErrInvalidArgument)
		}
	}
	out, _, err := c.ai.Chat(ctx, c.model, msgs, opts)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// extractJSON returns the outermost JSON object in s, tolerating code fences
// and chatter around it.
func extractJSON(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in model output")
	}
	return s[start : end+1], nil
}
