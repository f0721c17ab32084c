package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"ai-docchat-be/internal/pkg/logger"
	"ai-docchat-be/internal/pkg/serverutils"
	"ai-docchat-be/internal/repository/memory"
	"ai-docchat-be/internal/service"
	"ai-docchat-be/pkg/document"
	"ai-docchat-be/pkg/llm/mock"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type onePage []string

func (p onePage) NumPage() int                      { return 1 }
func (p onePage) Fragments(n int) ([]string, error) { return p, nil }

type envelope struct {
	Success bool                   `json:"success"`
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	extractor := document.NewExtractorWithDecoder(func(data []byte) (document.Pages, error) {
		if !bytes.HasPrefix(data, []byte("%PDF")) {
			return nil, fmt.Errorf("not a pdf")
		}
		return onePage{"contract", "terms"}, nil
	}, 1024)

	chatService := service.NewChatService(
		memory.NewSessionRepository(time.Hour, time.Hour),
		mock.Provider{},
		extractor,
		service.NewPublisherService("chat.session.updated", pubSub),
		logger.NewNopLogger(),
		service.ChatServiceConfig{RequestTimeout: time.Second, ExtractionTimeout: time.Second},
	)

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	NewChatController(chatService).RegisterRoutes(app.Group("/api"))
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, envelope) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	return resp.StatusCode, env
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, path, fileName, mediaType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	header.Set("Content-Type", mediaType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func createSession(t *testing.T, app *fiber.App) string {
	t.Helper()
	status, env := do(t, app, httptest.NewRequest(http.MethodPost, "/api/chat/v1/sessions", nil))
	require.Equal(t, http.StatusOK, status)
	return env.Data["id"].(string)
}

func TestChatController_ConversationFlow(t *testing.T) {
	app := newTestApp(t)
	id := createSession(t, app)
	base := "/api/chat/v1/sessions/" + id

	status, env := do(t, app, uploadRequest(t, base+"/documents", "contract.pdf", "application/pdf", []byte("%PDF-1.4")))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "contract.pdf", env.Data["label"])
	assert.Equal(t, float64(1), env.Data["page_count"])

	status, env = do(t, app, jsonRequest(http.MethodPost, base+"/messages", `{"message":"what are the terms?"}`))
	require.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
	assert.Equal(t, false, env.Data["fallback"])
	reply := env.Data["reply"].(map[string]interface{})
	assert.Contains(t, reply["text"], "contract terms")

	status, env = do(t, app, httptest.NewRequest(http.MethodGet, base, nil))
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, env.Data["transcript"], 2)
	assert.Equal(t, "contract.pdf", env.Data["uploaded_document_label"])
	assert.Equal(t, true, env.Data["has_pending_document"])

	status, env = do(t, app, httptest.NewRequest(http.MethodDelete, base+"/documents", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, env.Data["has_pending_document"])

	status, env = do(t, app, httptest.NewRequest(http.MethodPost, base+"/clear", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, env.Data["transcript"])
	assert.Nil(t, env.Data["uploaded_document_label"])

	status, _ = do(t, app, httptest.NewRequest(http.MethodDelete, base, nil))
	require.Equal(t, http.StatusOK, status)

	status, env = do(t, app, httptest.NewRequest(http.MethodGet, base, nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
}

func TestChatController_Errors(t *testing.T) {
	app := newTestApp(t)
	id := createSession(t, app)
	base := "/api/chat/v1/sessions/" + id

	tests := []struct {
		name   string
		req    func() *http.Request
		status int
	}{
		{
			name:   "unknown session",
			req:    func() *http.Request { return jsonRequest(http.MethodPost, "/api/chat/v1/sessions/nope/messages", `{"message":"hi"}`) },
			status: http.StatusNotFound,
		},
		{
			name:   "missing message",
			req:    func() *http.Request { return jsonRequest(http.MethodPost, base+"/messages", `{}`) },
			status: http.StatusBadRequest,
		},
		{
			name:   "whitespace message",
			req:    func() *http.Request { return jsonRequest(http.MethodPost, base+"/messages", `{"message":"   "}`) },
			status: http.StatusBadRequest,
		},
		{
			name:   "malformed body",
			req:    func() *http.Request { return jsonRequest(http.MethodPost, base+"/messages", `{"message":`) },
			status: http.StatusBadRequest,
		},
		{
			name: "not a pdf",
			req: func() *http.Request {
				return uploadRequest(t, base+"/documents", "notes.txt", "text/plain", []byte("hello"))
			},
			status: http.StatusUnsupportedMediaType,
		},
		{
			name: "unreadable pdf",
			req: func() *http.Request {
				return uploadRequest(t, base+"/documents", "broken.pdf", "application/pdf", []byte("garbage"))
			},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "missing file",
			req:    func() *http.Request { return httptest.NewRequest(http.MethodPost, base+"/documents", nil) },
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, app, tt.req())
			assert.Equal(t, tt.status, status)
			assert.False(t, env.Success)
			assert.Equal(t, tt.status, env.Code)
		})
	}

	t.Run("failed requests leave the session untouched", func(t *testing.T) {
		_, env := do(t, app, httptest.NewRequest(http.MethodGet, base, nil))
		assert.Empty(t, env.Data["transcript"])
		assert.Equal(t, false, env.Data["awaiting_reply"])
	})
}
