package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-docchat-be/pkg/llm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// DocumentContextMarker separates the user's words from the attached
	// document text in the outgoing request. It is never parsed back.
	DocumentContextMarker = "\n\n[Context from uploaded PDF:]\n"

	// NoReplyText is used when the service answered without reply text.
	NoReplyText = "🤖 Sorry, I couldn't fetch a response."

	// RequestFailedText is used when the request itself failed.
	RequestFailedText = "🤖 Error: Failed to fetch response from Gemini API."

	DefaultRequestTimeout = 60 * time.Second
)

var tracer = otel.Tracer("ai-docchat-be/pkg/conversation")

// Outcome describes one completed send cycle.
type Outcome struct {
	Sent  Turn
	Reply Turn

	// Fallback is true when Reply carries one of the fixed fallback texts.
	Fallback bool

	// Cause is the recovered failure behind a fallback, nil otherwise.
	Cause error

	// Dropped is true when the session was reset before the reply arrived,
	// in which case Reply was not appended.
	Dropped bool
}

type DispatcherConfig struct {
	// Timeout bounds the remote call; expiry takes the failure path.
	Timeout time.Duration

	// Options are passed to every provider call.
	Options []llm.Option

	// OnSent runs after the user turn is recorded and before the remote call.
	OnSent func(session *Session, sent Turn)
}

// Dispatcher runs send cycles against an LLM backend.
type Dispatcher struct {
	provider llm.LLMProvider
	timeout  time.Duration
	opts     []llm.Option
	onSent   func(*Session, Turn)
}

func NewDispatcher(provider llm.LLMProvider, cfg DispatcherConfig) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	return &Dispatcher{
		provider: provider,
		timeout:  cfg.Timeout,
		opts:     cfg.Options,
		onSent:   cfg.OnSent,
	}
}

// ComposeOutgoing appends the document block to the user's text when a
// document is pending.
func ComposeOutgoing(userText, documentText string) string {
	if documentText == "" {
		return userText
	}
	return userText + DocumentContextMarker + documentText
}

// BuildContents maps the prior transcript onto the remote role vocabulary and
// appends the outgoing text as the final user entry.
func BuildContents(prior []Turn, outgoing string) []llm.Message {
	contents := make([]llm.Message, 0, len(prior)+1)
	for _, t := range prior {
		role := llm.RoleUser
		if t.Speaker == SpeakerAssistant {
			role = llm.RoleModel
		}
		contents = append(contents, llm.Message{Role: role, Content: t.Text})
	}
	return append(contents, llm.Message{Role: llm.RoleUser, Content: outgoing})
}

// Send runs one cycle: it records the user's turn, calls the backend and
// records exactly one assistant turn, falling back to a fixed text on failure.
// Only ErrEmptyInput and ErrReplyPending are returned as errors; both leave the
// session untouched.
func (d *Dispatcher) Send(ctx context.Context, session *Session, rawInput string) (Outcome, error) {
	text := strings.TrimSpace(rawInput)
	if text == "" {
		return Outcome{}, ErrEmptyInput
	}

	ctx, span := tracer.Start(ctx, "chat.send")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", session.ID))

	sent, prior, doc, err := session.beginSend(text)
	if err != nil {
		return Outcome{}, err
	}
	outgoing := ComposeOutgoing(text, doc)
	span.SetAttributes(
		attribute.Int("chat.prior_turns", len(prior)),
		attribute.Bool("chat.document_attached", doc != ""),
	)
	if d.onSent != nil {
		d.onSent(session, sent)
	}

	// the reply must land even if the caller goes away
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	replyText, cause := d.generate(callCtx, BuildContents(prior, outgoing))
	out := Outcome{Sent: sent}
	switch {
	case cause == nil:
	case errors.Is(cause, llm.ErrNoReply):
		replyText = NoReplyText
		out.Fallback = true
		out.Cause = cause
	default:
		replyText = RequestFailedText
		out.Fallback = true
		out.Cause = fmt.Errorf("%w: %w", ErrRequestFailed, cause)
		span.RecordError(cause)
		span.SetStatus(codes.Error, "generation request failed")
	}

	reply, ok := session.AnswerTurn(sent.ID, replyText)
	out.Reply = reply
	out.Dropped = !ok
	if !ok {
		out.Reply = Turn{Speaker: SpeakerAssistant, Text: replyText}
	}
	return out, nil
}

func (d *Dispatcher) generate(ctx context.Context, contents []llm.Message) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", d.provider.Model()),
		attribute.Int("llm.messages", len(contents)),
	)

	reply, err := d.provider.Chat(ctx, contents, d.opts...)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", llm.ErrNoReply
	}
	return reply, nil
}
