package conversation

import "errors"

var (
	// ErrEmptyInput is returned when a send carries no visible text.
	ErrEmptyInput = errors.New("message is empty")

	// ErrReplyPending is returned when a send arrives while the previous one is unresolved.
	ErrReplyPending = errors.New("a reply is still pending for this session")

	// ErrRequestFailed classifies transport and protocol failures of the remote call.
	// The dispatcher recovers from it with a fallback turn; it only surfaces in Outcome.Cause.
	ErrRequestFailed = errors.New("generation request failed")
)
