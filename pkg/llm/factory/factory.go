package factory

import (
	"ai-docchat-be/pkg/llm"
	"ai-docchat-be/pkg/llm/gemini"
	"ai-docchat-be/pkg/llm/mock"
	"ai-docchat-be/pkg/llm/ollama"
	"fmt"
	"time"
)

// Settings carries what each backend needs to be constructed.
type Settings struct {
	Provider      string // "gemini" | "ollama" | "mock"
	Model         string
	GeminiAPIURL  string
	GeminiAPIKey  string
	OllamaBaseURL string
	Timeout       time.Duration
}

func NewLLMProvider(s Settings) (llm.LLMProvider, error) {
	switch s.Provider {
	case "", "gemini":
		return gemini.NewProvider(s.GeminiAPIURL, s.GeminiAPIKey, s.Model, s.Timeout), nil
	case "ollama":
		baseURL := s.OllamaBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		model := s.Model
		if model == "" {
			model = "llama3"
		}
		return ollama.NewOllamaProvider(baseURL, model, s.Timeout), nil
	case "mock":
		return mock.Provider{}, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", s.Provider)
	}
}
