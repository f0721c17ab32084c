package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_AppendUserTurn(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{name: "plain text", text: "hello"},
		{name: "multiline text kept verbatim", text: "line one\nline two"},
		{name: "empty", text: "", wantErr: ErrEmptyInput},
		{name: "whitespace only", text: " \t\n ", wantErr: ErrEmptyInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession("s-1")

			turn, err := s.AppendUserTurn(tt.text)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, NewSession("s-1").Snapshot().Transcript, s.Snapshot().Transcript)
				assert.False(t, s.AwaitingReply())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, SpeakerUser, turn.Speaker)
			assert.Equal(t, tt.text, turn.Text)
			assert.True(t, s.AwaitingReply())
			assert.Equal(t, []Turn{turn}, s.Transcript())
		})
	}
}

func TestSession_ReplyPendingGuard(t *testing.T) {
	s := NewSession("s-1")
	_, err := s.AppendUserTurn("first")
	require.NoError(t, err)

	_, err = s.AppendUserTurn("second")
	assert.ErrorIs(t, err, ErrReplyPending)
	assert.Len(t, s.Transcript(), 1)

	s.AppendAssistantTurn("answer")
	assert.False(t, s.AwaitingReply())

	_, err = s.AppendUserTurn("second")
	assert.NoError(t, err)
	assert.Len(t, s.Transcript(), 3)
}

func TestSession_TurnIDsAreDistinctAndOrdered(t *testing.T) {
	s := NewSession("s-1")
	for i := 0; i < 20; i++ {
		_, err := s.AppendUserTurn("q")
		require.NoError(t, err)
		s.AppendAssistantTurn("a")
	}

	seen := make(map[string]bool)
	turns := s.Transcript()
	for i, turn := range turns {
		assert.False(t, seen[turn.ID.String()], "duplicate id %s", turn.ID)
		seen[turn.ID.String()] = true
		if i > 0 {
			assert.Less(t, turns[i-1].ID.String(), turn.ID.String())
		}
	}
}

func TestSession_AnswerTurnAfterReset(t *testing.T) {
	s := NewSession("s-1")
	sent, err := s.AppendUserTurn("question")
	require.NoError(t, err)

	s.Reset()

	_, ok := s.AnswerTurn(sent.ID, "late answer")
	assert.False(t, ok)
	assert.Empty(t, s.Transcript())
	assert.False(t, s.AwaitingReply())
}

func TestSession_BlankAssistantTextBecomesNotice(t *testing.T) {
	for _, text := range []string{"", "  ", "\n\t"} {
		s := NewSession("s-1")
		_, err := s.AppendUserTurn("question")
		require.NoError(t, err)

		direct := s.AppendAssistantTurn(text)
		assert.Equal(t, NoReplyText, direct.Text)

		sent, err := s.AppendUserTurn("again")
		require.NoError(t, err)
		answered, ok := s.AnswerTurn(sent.ID, text)
		require.True(t, ok)
		assert.Equal(t, NoReplyText, answered.Text)

		for _, turn := range s.Transcript() {
			assert.NotEmpty(t, turn.Text)
		}
	}
}

func TestSession_PendingDocumentSlot(t *testing.T) {
	s := NewSession("s-1")

	_, ok := s.PendingDocumentText()
	assert.False(t, ok)

	s.SetPendingDocumentText("first document")
	s.SetPendingDocumentText("second document")
	text, ok := s.PendingDocumentText()
	assert.True(t, ok)
	assert.Equal(t, "second document", text)

	s.ClearPendingDocumentText()
	_, ok = s.PendingDocumentText()
	assert.False(t, ok)
	assert.False(t, s.Snapshot().HasPendingDocument)
}

func TestSession_UploadTickets(t *testing.T) {
	t.Run("stale upload cannot overwrite newer one", func(t *testing.T) {
		s := NewSession("s-1")
		first := s.BeginUpload("a.pdf")
		second := s.BeginUpload("b.pdf")

		assert.True(t, s.CompleteUpload(second, "B"))
		assert.False(t, s.CompleteUpload(first, "A"))

		text, _ := s.PendingDocumentText()
		assert.Equal(t, "B", text)
		label, _ := s.UploadedLabel()
		assert.Equal(t, "b.pdf", label)
	})

	t.Run("failed upload clears pending text", func(t *testing.T) {
		s := NewSession("s-1")
		ok := s.CompleteUpload(s.BeginUpload("a.pdf"), "A")
		require.True(t, ok)

		ticket := s.BeginUpload("broken.pdf")
		assert.True(t, s.FailUpload(ticket))

		_, has := s.PendingDocumentText()
		assert.False(t, has)
		label, _ := s.UploadedLabel()
		assert.Equal(t, "broken.pdf", label)
	})

	t.Run("reset invalidates outstanding uploads", func(t *testing.T) {
		s := NewSession("s-1")
		ticket := s.BeginUpload("a.pdf")
		s.Reset()

		assert.False(t, s.CompleteUpload(ticket, "A"))
		_, has := s.PendingDocumentText()
		assert.False(t, has)
	})
}

func TestSession_ResetReturnsInitialState(t *testing.T) {
	s := NewSession("s-1")
	initial := s.Snapshot()

	_, err := s.AppendUserTurn("hello")
	require.NoError(t, err)
	s.AppendAssistantTurn("hi")
	_, err = s.AppendUserTurn("pending question")
	require.NoError(t, err)
	s.SetPendingDocumentText("doc")
	s.SetUploadedLabel("doc.pdf")

	s.Reset()

	assert.Equal(t, initial, s.Snapshot())
	assert.Nil(t, s.Snapshot().UploadedDocumentLabel)
}

func TestSession_SnapshotIsACopy(t *testing.T) {
	s := NewSession("s-1")
	_, err := s.AppendUserTurn("hello")
	require.NoError(t, err)

	snap := s.Snapshot()
	snap.Transcript[0].Text = "mutated"

	assert.Equal(t, "hello", s.Transcript()[0].Text)
}
