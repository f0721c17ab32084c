package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ai-docchat-be/pkg/llm"
)

const (
	DefaultModel  = "models/gemini-1.5-flash"
	DefaultAPIURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"

	responseMimeTypeText = "text/plain"
)

type GeminiChatParts struct {
	Text string `json:"text"`
}

type GeminiChatContent struct {
	Parts []*GeminiChatParts `json:"parts"`
	Role  string             `json:"role,omitempty"`
}

type GeminiGenerationConfig struct {
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
}

type GeminiChatRequest struct {
	Model            string                  `json:"model"`
	Contents         []*GeminiChatContent    `json:"contents"`
	GenerationConfig *GeminiGenerationConfig `json:"generationConfig,omitempty"`
}

type GeminiChatCandidate struct {
	Content *GeminiChatContent `json:"content"`
}

type GeminiChatResponse struct {
	Candidates []*GeminiChatCandidate `json:"candidates"`
}

// ReplyText returns the first candidate's first text part. The second result
// is false when that path is missing from the response.
func (r *GeminiChatResponse) ReplyText() (string, bool) {
	if r == nil || len(r.Candidates) == 0 {
		return "", false
	}
	c := r.Candidates[0]
	if c == nil || c.Content == nil || len(c.Content.Parts) == 0 || c.Content.Parts[0] == nil {
		return "", false
	}
	return c.Content.Parts[0].Text, true
}

// Provider talks to the Gemini generateContent endpoint.
type Provider struct {
	APIURL    string
	APIKey    string
	ModelName string
	Client    *http.Client
}

var _ llm.LLMProvider = &Provider{}

func NewProvider(apiURL, apiKey, modelName string, timeout time.Duration) *Provider {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	return &Provider{
		APIURL:    apiURL,
		APIKey:    apiKey,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *Provider) Model() string { return p.ModelName }

// BuildRequest maps generic messages onto the Gemini request shape.
func (p *Provider) BuildRequest(history []llm.Message, opts ...llm.Option) *GeminiChatRequest {
	options := llm.Apply(llm.Options{Model: p.ModelName}, opts...)

	contents := make([]*GeminiChatContent, 0, len(history))
	for _, msg := range history {
		role := msg.Role
		if role == llm.RoleAssistant {
			role = llm.RoleModel
		}
		contents = append(contents, &GeminiChatContent{
			Parts: []*GeminiChatParts{{Text: msg.Content}},
			Role:  role,
		})
	}

	cfg := &GeminiGenerationConfig{
		ResponseMimeType: responseMimeTypeText,
		MaxOutputTokens:  options.MaxTokens,
	}
	if options.Temperature > 0 {
		t := options.Temperature
		cfg.Temperature = &t
	}

	return &GeminiChatRequest{
		Model:            options.Model,
		Contents:         contents,
		GenerationConfig: cfg,
	}
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	payload := p.BuildRequest(history, opts...)
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.APIURL, bytes.NewBuffer(payloadJson))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("x-goog-api-key", p.APIKey)
	}

	res, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", fmt.Errorf(
			"status error, got status %d. with response body %s",
			res.StatusCode,
			string(resBody),
		)
	}

	var geminiRes GeminiChatResponse
	if err := json.Unmarshal(resBody, &geminiRes); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	text, ok := geminiRes.ReplyText()
	if !ok || strings.TrimSpace(text) == "" {
		return "", llm.ErrNoReply
	}
	return text, nil
}
