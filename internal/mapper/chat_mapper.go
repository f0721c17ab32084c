package mapper

import (
	"ai-docchat-be/internal/dto"
	"ai-docchat-be/pkg/conversation"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

func (m *ChatMapper) TurnToResponse(t conversation.Turn) *dto.TurnResponse {
	return &dto.TurnResponse{
		Id:        t.ID,
		Speaker:   string(t.Speaker),
		Text:      t.Text,
		CreatedAt: t.CreatedAt,
	}
}

func (m *ChatMapper) SnapshotToResponse(s conversation.Snapshot) *dto.SessionResponse {
	transcript := make([]*dto.TurnResponse, 0, len(s.Transcript))
	for _, t := range s.Transcript {
		transcript = append(transcript, m.TurnToResponse(t))
	}
	return &dto.SessionResponse{
		Id:                    s.ID,
		Transcript:            transcript,
		AwaitingReply:         s.AwaitingReply,
		UploadedDocumentLabel: s.UploadedDocumentLabel,
		HasPendingDocument:    s.HasPendingDocument,
		CreatedAt:             s.CreatedAt,
	}
}

func (m *ChatMapper) OutcomeToResponse(sessionID string, o conversation.Outcome) *dto.SendMessageResponse {
	return &dto.SendMessageResponse{
		SessionId: sessionID,
		Sent:      m.TurnToResponse(o.Sent),
		Reply:     m.TurnToResponse(o.Reply),
		Fallback:  o.Fallback,
	}
}
