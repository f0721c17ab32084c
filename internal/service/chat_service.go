package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-docchat-be/internal/dto"
	"ai-docchat-be/internal/mapper"
	"ai-docchat-be/internal/pkg/logger"
	"ai-docchat-be/internal/repository/memory"
	"ai-docchat-be/pkg/conversation"
	"ai-docchat-be/pkg/document"
	"ai-docchat-be/pkg/events"
	"ai-docchat-be/pkg/llm"
)

var ErrSessionNotFound = errors.New("session not found")

const (
	NoticeInfo  = "info"
	NoticeError = "error"

	UnsupportedFormatNotice = "Please upload a valid PDF file."
	ExtractionFailedNotice  = "Could not read text from the uploaded PDF."
	EmptyDocumentNotice     = "The uploaded PDF contains no extractable text."
)

type IChatService interface {
	CreateSession(ctx context.Context) (*dto.SessionResponse, error)
	GetSession(ctx context.Context, sessionId string) (*dto.SessionResponse, error)
	SendMessage(ctx context.Context, sessionId string, request *dto.SendMessageRequest) (*dto.SendMessageResponse, error)
	UploadDocument(ctx context.Context, sessionId string, request *dto.UploadDocumentRequest) (*dto.UploadDocumentResponse, error)
	ClearDocument(ctx context.Context, sessionId string) (*dto.SessionResponse, error)
	ClearSession(ctx context.Context, sessionId string) (*dto.SessionResponse, error)
	DeleteSession(ctx context.Context, sessionId string) error
}

// DocumentExtractor is the part of document.Extractor the service depends on.
type DocumentExtractor interface {
	ExtractAsync(ctx context.Context, up document.Upload) <-chan document.Outcome
}

type ChatServiceConfig struct {
	RequestTimeout    time.Duration
	ExtractionTimeout time.Duration
	LLMOptions        []llm.Option
}

type chatService struct {
	sessionRepo       *memory.SessionRepository
	dispatcher        *conversation.Dispatcher
	extractor         DocumentExtractor
	publisherService  IPublisherService
	mapper            *mapper.ChatMapper
	logger            logger.ILogger
	extractionTimeout time.Duration
}

func NewChatService(
	sessionRepo *memory.SessionRepository,
	llmProvider llm.LLMProvider,
	extractor DocumentExtractor,
	publisherService IPublisherService,
	log logger.ILogger,
	cfg ChatServiceConfig,
) IChatService {
	if cfg.ExtractionTimeout <= 0 {
		cfg.ExtractionTimeout = 2 * time.Minute
	}

	s := &chatService{
		sessionRepo:       sessionRepo,
		extractor:         extractor,
		publisherService:  publisherService,
		mapper:            mapper.NewChatMapper(),
		logger:            log,
		extractionTimeout: cfg.ExtractionTimeout,
	}
	s.dispatcher = conversation.NewDispatcher(llmProvider, conversation.DispatcherConfig{
		Timeout: cfg.RequestTimeout,
		Options: cfg.LLMOptions,
		OnSent: func(session *conversation.Session, sent conversation.Turn) {
			s.publishSession(context.Background(), session, events.TurnSent)
		},
	})
	return s
}

func (s *chatService) CreateSession(ctx context.Context) (*dto.SessionResponse, error) {
	session := s.sessionRepo.Create()

	s.logger.Info("CHAT", "Session created", map[string]interface{}{
		"session_id": session.ID,
	})
	s.publishSession(ctx, session, events.SessionCreated)

	return s.mapper.SnapshotToResponse(session.Snapshot()), nil
}

func (s *chatService) GetSession(ctx context.Context, sessionId string) (*dto.SessionResponse, error) {
	session, err := s.getSession(sessionId)
	if err != nil {
		return nil, err
	}
	return s.mapper.SnapshotToResponse(session.Snapshot()), nil
}

func (s *chatService) SendMessage(ctx context.Context, sessionId string, request *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	session, err := s.getSession(sessionId)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	outcome, err := s.dispatcher.Send(ctx, session, request.Message)
	if err != nil {
		return nil, err
	}

	details := map[string]interface{}{
		"session_id":  sessionId,
		"turn_id":     outcome.Sent.ID.String(),
		"duration_ms": time.Since(start).Milliseconds(),
		"fallback":    outcome.Fallback,
	}
	switch {
	case outcome.Dropped:
		s.logger.Warn("CHAT", "Reply dropped, session was cleared mid-flight", details)
		return s.mapper.OutcomeToResponse(sessionId, outcome), nil
	case errors.Is(outcome.Cause, conversation.ErrRequestFailed):
		details["error"] = outcome.Cause
		s.logger.Error("CHAT", "Model request failed, fallback reply appended", details)
	case outcome.Fallback:
		s.logger.Warn("CHAT", "Model returned no text, fallback reply appended", details)
	default:
		s.logger.Info("CHAT", "Reply received", details)
	}

	s.publishSession(ctx, session, events.TurnCompleted)
	return s.mapper.OutcomeToResponse(sessionId, outcome), nil
}

// UploadDocument rejects anything but a PDF up front, then extracts the text
// and stages it in the session. The extraction outlives a cancelled request so
// the session still learns how the upload ended.
func (s *chatService) UploadDocument(ctx context.Context, sessionId string, request *dto.UploadDocumentRequest) (*dto.UploadDocumentResponse, error) {
	session, err := s.getSession(sessionId)
	if err != nil {
		return nil, err
	}

	if !document.Supports(request.MediaType) {
		s.logger.Warn("DOCUMENT", "Upload rejected", map[string]interface{}{
			"session_id": sessionId,
			"file_name":  request.FileName,
			"media_type": request.MediaType,
		})
		s.publishNotice(ctx, session, events.DocumentFailed, NoticeError, UnsupportedFormatNotice)
		return nil, fmt.Errorf("%w: %q", document.ErrUnsupportedFormat, request.MediaType)
	}

	ticket := session.BeginUpload(request.FileName)
	s.publishSession(ctx, session, events.DocumentAccepted)

	extractCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.extractionTimeout)
	results := s.extractor.ExtractAsync(extractCtx, document.Upload{
		Name:      request.FileName,
		MediaType: request.MediaType,
		Data:      request.Data,
	})

	select {
	case out := <-results:
		cancel()
		return s.finishUpload(ctx, session, ticket, request.FileName, out)
	case <-ctx.Done():
		go func() {
			defer cancel()
			_, _ = s.finishUpload(context.Background(), session, ticket, request.FileName, <-results)
		}()
		return nil, ctx.Err()
	}
}

func (s *chatService) finishUpload(
	ctx context.Context,
	session *conversation.Session,
	ticket uint64,
	fileName string,
	out document.Outcome,
) (*dto.UploadDocumentResponse, error) {
	details := map[string]interface{}{
		"session_id": session.ID,
		"file_name":  fileName,
	}

	if out.Err != nil {
		details["error"] = out.Err
		s.logger.Error("DOCUMENT", "Text extraction failed", details)
		if session.FailUpload(ticket) {
			s.publishNotice(ctx, session, events.DocumentFailed, NoticeError, ExtractionFailedNotice)
		}
		return nil, out.Err
	}

	text := out.Result.Text
	if !session.CompleteUpload(ticket, text) {
		s.logger.Info("DOCUMENT", "Upload superseded before extraction finished", details)
	} else if text == "" {
		s.publishNotice(ctx, session, events.DocumentExtracted, NoticeInfo, EmptyDocumentNotice)
	} else {
		details["pages"] = out.Result.PageCount
		details["characters"] = len(text)
		s.logger.Info("DOCUMENT", "Document text staged", details)
		s.publishSession(ctx, session, events.DocumentExtracted)
	}

	return &dto.UploadDocumentResponse{
		SessionId:  session.ID,
		Label:      fileName,
		PageCount:  out.Result.PageCount,
		Characters: len(text),
	}, nil
}

func (s *chatService) ClearDocument(ctx context.Context, sessionId string) (*dto.SessionResponse, error) {
	session, err := s.getSession(sessionId)
	if err != nil {
		return nil, err
	}

	session.ClearPendingDocumentText()
	s.publishSession(ctx, session, events.DocumentCleared)

	return s.mapper.SnapshotToResponse(session.Snapshot()), nil
}

func (s *chatService) ClearSession(ctx context.Context, sessionId string) (*dto.SessionResponse, error) {
	session, err := s.getSession(sessionId)
	if err != nil {
		return nil, err
	}

	session.Reset()
	s.logger.Info("CHAT", "Session cleared", map[string]interface{}{
		"session_id": sessionId,
	})
	s.publishSession(ctx, session, events.SessionCleared)

	return s.mapper.SnapshotToResponse(session.Snapshot()), nil
}

func (s *chatService) DeleteSession(ctx context.Context, sessionId string) error {
	session, err := s.getSession(sessionId)
	if err != nil {
		return err
	}

	// in-flight sends must not deliver into a deleted session
	session.Reset()
	s.sessionRepo.Delete(sessionId)

	s.logger.Info("CHAT", "Session deleted", map[string]interface{}{
		"session_id": sessionId,
	})
	s.publish(ctx, dto.SessionUpdateMessage{
		Type:      dto.PushTypeNotice,
		EventType: events.SessionDeleted,
		SessionId: sessionId,
		Notice:    &dto.NoticeResponse{Level: NoticeInfo, Message: "Session closed."},
	})
	return nil
}

func (s *chatService) getSession(sessionId string) (*conversation.Session, error) {
	session, ok := s.sessionRepo.Get(sessionId)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionId)
	}
	return session, nil
}

func (s *chatService) publishSession(ctx context.Context, session *conversation.Session, eventType string) {
	s.publish(ctx, dto.SessionUpdateMessage{
		Type:      dto.PushTypeSession,
		EventType: eventType,
		SessionId: session.ID,
		Session:   s.mapper.SnapshotToResponse(session.Snapshot()),
	})
}

func (s *chatService) publishNotice(ctx context.Context, session *conversation.Session, eventType, level, text string) {
	s.publish(ctx, dto.SessionUpdateMessage{
		Type:      dto.PushTypeNotice,
		EventType: eventType,
		SessionId: session.ID,
		Session:   s.mapper.SnapshotToResponse(session.Snapshot()),
		Notice:    &dto.NoticeResponse{Level: level, Message: text},
	})
}

func (s *chatService) publish(ctx context.Context, update dto.SessionUpdateMessage) {
	payload, err := json.Marshal(update)
	if err != nil {
		s.logger.Error("CHAT", "Failed to marshal session update", map[string]interface{}{
			"error": err,
		})
		return
	}
	if err := s.publisherService.Publish(ctx, payload); err != nil {
		s.logger.Warn("CHAT", "Failed to publish session update", map[string]interface{}{
			"error":      err.Error(),
			"session_id": update.SessionId,
			"event_type": update.EventType,
		})
	}
}
