package mock

import (
	"context"

	"ai-docchat-be/pkg/llm"
)

// Provider answers without any external API, for offline development.
type Provider struct{}

var _ llm.LLMProvider = Provider{}

func (Provider) Model() string { return "mock-docchat" }

func (Provider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	if len(history) == 0 {
		return "", llm.ErrNoReply
	}
	last := history[len(history)-1]
	return "Understood. (mock) You asked: \"" + last.Content + "\"", nil
}
