package events

// Chat lifecycle event codes.
const (
	SessionCreated    = "SESSION_CREATED"
	SessionCleared    = "SESSION_CLEARED"
	SessionDeleted    = "SESSION_DELETED"
	TurnSent          = "TURN_SENT"
	TurnCompleted     = "TURN_COMPLETED"
	DocumentAccepted  = "DOCUMENT_ACCEPTED"
	DocumentExtracted = "DOCUMENT_EXTRACTED"
	DocumentFailed    = "DOCUMENT_FAILED"
	DocumentCleared   = "DOCUMENT_CLEARED"
)
