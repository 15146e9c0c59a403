// File: internal/infra/adapters/ai/openai_adapter.go
package ai

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/pkoukk/tiktoken-go"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AIServiceAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter talks to the Chat Completions API, or to any
// OpenAI-compatible gateway when a base URL is given.
type OpenAIAdapter struct {
	client openai.Client
	model  string

	encMu sync.Mutex
	enc   map[string]*tiktoken.Tiktoken
}

func NewOpenAIAdapter(apiKey, baseURL, model string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, &domain.ConfigurationMissingError{Key: "ai.openai_key"}
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	return &OpenAIAdapter{
		client: openai.NewClient(opts...),
		model:  model,
		enc:    make(map[string]*tiktoken.Tiktoken),
	}, nil
}

func (o *OpenAIAdapter) Provider() string { return "openai" }

func (o *OpenAIAdapter) Chat(ctx context.Context, model string, messages []adapter.Message, opts adapter.ChatOptions) (string, adapter.Usage, error) {
	if len(messages) == 0 {
		return "", adapter.Usage{}, errors.New("openai: no messages")
	}
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(modelOrDefault(model, o.model)),
		Messages: toOpenAIMessages(messages),
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(float64(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", adapter.Usage{}, err
	}
	u := adapter.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, u, nil
		}
	}
	return "", u, errors.New("openai: no choice content")
}

// CountTokens follows the chat format accounting: a fixed overhead per
// message plus the reply primer.
func (o *OpenAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	enc, err := o.encoding(modelOrDefault(model, o.model))
	if err != nil {
		return 0, err
	}
	const perMessage, primer = 3, 3
	n := primer
	for _, m := range messages {
		n += perMessage
		n += len(enc.Encode(m.Role, nil, nil))
		n += len(enc.Encode(m.Content, nil, nil))
	}
	return n, nil
}

func (o *OpenAIAdapter) encoding(model string) (*tiktoken.Tiktoken, error) {
	o.encMu.Lock()
	defer o.encMu.Unlock()
	if e, ok := o.enc[model]; ok {
		return e, nil
	}
	e, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// unknown or gateway-specific model names
		e, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	o.enc[model] = e
	return e, nil
}

func toOpenAIMessages(msgs []adapter.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant", "model":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
