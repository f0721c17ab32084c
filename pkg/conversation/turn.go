package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Speaker identifies who authored a turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one immutable chat entry.
type Turn struct {
	ID        uuid.UUID `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// newTurn stamps a turn with a UUIDv7, which sorts by creation time.
func newTurn(speaker Speaker, text string) Turn {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Turn{
		ID:        id,
		Speaker:   speaker,
		Text:      text,
		CreatedAt: time.Now(),
	}
}
