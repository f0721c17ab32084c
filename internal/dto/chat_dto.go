package dto

import (
	"time"

	"github.com/google/uuid"
)

type TurnResponse struct {
	Id        uuid.UUID `json:"id"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionResponse is the state the UI renders.
type SessionResponse struct {
	Id                    string          `json:"id"`
	Transcript            []*TurnResponse `json:"transcript"`
	AwaitingReply         bool            `json:"awaiting_reply"`
	UploadedDocumentLabel *string         `json:"uploaded_document_label"`
	HasPendingDocument    bool            `json:"has_pending_document"`
	CreatedAt             time.Time       `json:"created_at"`
}

type SendMessageRequest struct {
	Message string `json:"message" validate:"required,max=32000"`
}

type SendMessageResponse struct {
	SessionId string        `json:"session_id"`
	Sent      *TurnResponse `json:"sent"`
	Reply     *TurnResponse `json:"reply"`
	Fallback  bool          `json:"fallback"`
}

type UploadDocumentRequest struct {
	FileName  string `validate:"required,max=255"`
	MediaType string
	Data      []byte
}

type UploadDocumentResponse struct {
	SessionId  string `json:"session_id"`
	Label      string `json:"label"`
	PageCount  int    `json:"page_count"`
	Characters int    `json:"characters"`
}

// --- Push messages (websocket / event bus) ---

const (
	PushTypeSession = "session"
	PushTypeNotice  = "notice"
)

type NoticeResponse struct {
	Level   string `json:"level"` // "info" | "error"
	Message string `json:"message"`
}

// SessionUpdateMessage travels over the in-process bus and out to watchers.
type SessionUpdateMessage struct {
	Type      string           `json:"type"`
	EventType string           `json:"event_type"`
	SessionId string           `json:"session_id"`
	Session   *SessionResponse `json:"session,omitempty"`
	Notice    *NoticeResponse  `json:"notice,omitempty"`
}
