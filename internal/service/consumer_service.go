package service

import (
	"context"
	"encoding/json"

	"ai-docchat-be/internal/dto"
	"ai-docchat-be/internal/pkg/logger"
	"ai-docchat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

// SessionNotifier pushes a message to everyone watching a session.
type SessionNotifier interface {
	Send(ctx context.Context, sessionID string, message interface{})
}

// EventPublisher forwards lifecycle events to an external bus.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	notifier   SessionNotifier
	eventPub   EventPublisher
	logger     logger.ILogger
}

// NewConsumerService wires the session update stream to its sinks. notifier
// and eventPub may be nil.
func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	notifier SessionNotifier,
	eventPub EventPublisher,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		notifier:   notifier,
		eventPub:   eventPub,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	// updates are best effort, a bad payload is never retried
	defer msg.Ack()

	var update dto.SessionUpdateMessage
	if err := json.Unmarshal(msg.Payload, &update); err != nil {
		cs.logger.Error("CONSUMER", "Failed to unmarshal session update", map[string]interface{}{
			"error":      err,
			"message_id": msg.UUID,
		})
		return
	}

	if cs.notifier != nil {
		cs.notifier.Send(ctx, update.SessionId, update)
	}

	if cs.eventPub != nil && update.EventType != "" {
		evt := events.New(update.EventType, eventPayload(update))
		if err := cs.eventPub.Publish(ctx, evt); err != nil {
			cs.logger.Warn("CONSUMER", "Failed to forward event", map[string]interface{}{
				"error":      err.Error(),
				"event_type": update.EventType,
				"session_id": update.SessionId,
			})
		}
	}
}

// eventPayload keeps external events free of transcript text.
func eventPayload(update dto.SessionUpdateMessage) map[string]interface{} {
	data := map[string]interface{}{
		"session_id": update.SessionId,
	}
	if update.Session != nil {
		data["turns"] = len(update.Session.Transcript)
		data["awaiting_reply"] = update.Session.AwaitingReply
		data["has_pending_document"] = update.Session.HasPendingDocument
		if update.Session.UploadedDocumentLabel != nil {
			data["document_label"] = *update.Session.UploadedDocumentLabel
		}
	}
	if update.Notice != nil {
		data["notice_level"] = update.Notice.Level
	}
	return data
}
