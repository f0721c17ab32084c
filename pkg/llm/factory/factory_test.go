package factory

import (
	"testing"
	"time"

	"ai-docchat-be/pkg/llm/gemini"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLLMProvider(t *testing.T) {
	tests := []struct {
		provider string
		model    string
		want     string
	}{
		{"", "", gemini.DefaultModel},
		{"gemini", "models/gemini-1.5-pro", "models/gemini-1.5-pro"},
		{"ollama", "", "llama3"},
		{"mock", "", "mock-docchat"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewLLMProvider(Settings{Provider: tt.provider, Model: tt.model, Timeout: time.Second})
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Model())
		})
	}

	_, err := NewLLMProvider(Settings{Provider: "huggingface"})
	assert.Error(t, err)
}
