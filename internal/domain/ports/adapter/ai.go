package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Usage for a single chat call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatOptions tune one call. Zero values leave the provider defaults.
type ChatOptions struct {
	Temperature float32
	MaxTokens   int
	// JSON asks the provider for a JSON object response when it supports it.
	JSON bool
}

// AIServiceAdapter is the port for text LLM calls used by planning,
// prompt refinement, critique and script writing.
type AIServiceAdapter interface {
	Provider() string

	// CountTokens returns prompt tokens for the provided messages
	// (best-effort when the provider has no exact counter).
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)

	// Chat returns the assistant text and usage as reported by the provider.
	Chat(ctx context.Context, model string, messages []Message, opts ChatOptions) (string, Usage, error)
}
