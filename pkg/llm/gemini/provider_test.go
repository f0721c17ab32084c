package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-docchat-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_BuildRequest(t *testing.T) {
	p := NewProvider("", "key", "", time.Second)

	req := p.BuildRequest([]llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
		{Role: llm.RoleUser, Content: "again"},
	})

	assert.Equal(t, DefaultModel, req.Model)
	require.Len(t, req.Contents, 3)
	assert.Equal(t, "user", req.Contents[0].Role)
	assert.Equal(t, "model", req.Contents[1].Role)
	assert.Equal(t, "again", req.Contents[2].Parts[0].Text)
	assert.Equal(t, "text/plain", req.GenerationConfig.ResponseMimeType)
	assert.Nil(t, req.GenerationConfig.Temperature)
}

func TestProvider_Chat(t *testing.T) {
	var gotKey string
	var gotBody GeminiChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Hello there"}],"role":"model"}}]}`))
	}))
	defer srv.Close()

	p := NewProvider(srv.URL, "secret", "", time.Second)
	reply, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})

	require.NoError(t, err)
	assert.Equal(t, "Hello there", reply)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, DefaultModel, gotBody.Model)
}

func TestProvider_ChatFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		noReply   bool
		wantError string
	}{
		{name: "no candidates", status: 200, body: `{"candidates":[]}`, noReply: true},
		{name: "missing parts", status: 200, body: `{"candidates":[{"content":{"parts":[]}}]}`, noReply: true},
		{name: "blank text", status: 200, body: `{"candidates":[{"content":{"parts":[{"text":"  "}]}}]}`, noReply: true},
		{name: "http error", status: 500, body: `{"error":"boom"}`, wantError: "status 500"},
		{name: "not json", status: 200, body: `<html>`, wantError: "unmarshal response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewProvider(srv.URL, "", "", time.Second).Chat(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})

			require.Error(t, err)
			if tt.noReply {
				assert.ErrorIs(t, err, llm.ErrNoReply)
			} else {
				assert.NotErrorIs(t, err, llm.ErrNoReply)
				assert.Contains(t, err.Error(), tt.wantError)
			}
		})
	}
}
