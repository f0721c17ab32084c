package conversation

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session holds the conversational context of one chat: the transcript, the
// pending document slot, the label of the last upload and the typing flag.
// All mutations go through its methods, each of which runs under the lock.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu            sync.RWMutex
	transcript    []Turn
	pendingDoc    string
	uploadedLabel string
	awaitingReply bool

	// replyTo is the user turn the pending reply answers.
	replyTo uuid.UUID

	// uploadSeq identifies the latest accepted upload.
	uploadSeq uint64
}

// Snapshot is a read-only copy of a session for rendering.
type Snapshot struct {
	ID                    string    `json:"id"`
	Transcript            []Turn    `json:"transcript"`
	AwaitingReply         bool      `json:"awaiting_reply"`
	UploadedDocumentLabel *string   `json:"uploaded_document_label"`
	HasPendingDocument    bool      `json:"has_pending_document"`
	CreatedAt             time.Time `json:"created_at"`
}

func NewSession(id string) *Session {
	return &Session{
		ID:         id,
		CreatedAt:  time.Now(),
		transcript: make([]Turn, 0, 16),
	}
}

// AppendUserTurn records the user's text and marks the session as waiting
// for a reply. Whitespace-only text is rejected without touching state.
func (s *Session) AppendUserTurn(text string) (Turn, error) {
	turn, _, _, err := s.beginSend(text)
	return turn, err
}

// beginSend appends the user turn and, in the same critical section, captures
// the turns before it and the pending document text.
func (s *Session) beginSend(text string) (Turn, []Turn, string, error) {
	if strings.TrimSpace(text) == "" {
		return Turn{}, nil, "", ErrEmptyInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.awaitingReply {
		return Turn{}, nil, "", ErrReplyPending
	}

	prior := make([]Turn, len(s.transcript))
	copy(prior, s.transcript)

	turn := newTurn(SpeakerUser, text)
	s.transcript = append(s.transcript, turn)
	s.awaitingReply = true
	s.replyTo = turn.ID
	return turn, prior, s.pendingDoc, nil
}

// AppendAssistantTurn records a reply and clears the typing flag. Blank text
// is recorded as NoReplyText so no turn is ever empty.
func (s *Session) AppendAssistantTurn(text string) Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendAssistantLocked(text)
}

// AnswerTurn appends the reply to the user turn identified by userTurnID. It
// appends nothing and reports false when a reset dropped that turn meanwhile.
func (s *Session) AnswerTurn(userTurnID uuid.UUID, text string) (Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.awaitingReply || s.replyTo != userTurnID {
		return Turn{}, false
	}
	return s.appendAssistantLocked(text), true
}

func (s *Session) appendAssistantLocked(text string) Turn {
	if strings.TrimSpace(text) == "" {
		text = NoReplyText
	}
	turn := newTurn(SpeakerAssistant, text)
	s.transcript = append(s.transcript, turn)
	s.awaitingReply = false
	s.replyTo = uuid.Nil
	return turn
}

// SetPendingDocumentText replaces whatever document text was staged before.
// Empty text leaves the slot empty.
func (s *Session) SetPendingDocumentText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingDoc = text
}

func (s *Session) ClearPendingDocumentText() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingDoc = ""
}

// PendingDocumentText returns the staged document text, if any.
func (s *Session) PendingDocumentText() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingDoc, s.pendingDoc != ""
}

func (s *Session) SetUploadedLabel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadedLabel = name
}

// BeginUpload sets the label of a newly accepted upload and returns its ticket.
// Only the most recent ticket may later complete or fail.
func (s *Session) BeginUpload(label string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadSeq++
	s.uploadedLabel = label
	return s.uploadSeq
}

// CompleteUpload stages text for the upload identified by ticket. It reports
// false when a newer upload or a reset superseded the ticket.
func (s *Session) CompleteUpload(ticket uint64, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket != s.uploadSeq {
		return false
	}
	s.pendingDoc = text
	return true
}

// FailUpload drops any staged text so the session proceeds without a document.
func (s *Session) FailUpload(ticket uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket != s.uploadSeq {
		return false
	}
	s.pendingDoc = ""
	return true
}

// Reset returns the session to its initial empty state.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = make([]Turn, 0, 16)
	s.pendingDoc = ""
	s.uploadedLabel = ""
	s.awaitingReply = false
	s.replyTo = uuid.Nil
	// outstanding uploads must not repopulate a cleared session
	s.uploadSeq++
}

// Transcript returns a copy of the turns in chronological order.
func (s *Session) Transcript() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]Turn, len(s.transcript))
	copy(cp, s.transcript)
	return cp
}

func (s *Session) AwaitingReply() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.awaitingReply
}

func (s *Session) UploadedLabel() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uploadedLabel, s.uploadedLabel != ""
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transcript := make([]Turn, len(s.transcript))
	copy(transcript, s.transcript)

	var label *string
	if s.uploadedLabel != "" {
		l := s.uploadedLabel
		label = &l
	}

	return Snapshot{
		ID:                    s.ID,
		Transcript:            transcript,
		AwaitingReply:         s.awaitingReply,
		UploadedDocumentLabel: label,
		HasPendingDocument:    s.pendingDoc != "",
		CreatedAt:             s.CreatedAt,
	}
}
