package entity

import "errors"

var (
	// Session errors
	ErrInvalidRequester     = errors.New("invalid requester id")
	ErrInvalidPriority      = errors.New("invalid priority")
	ErrInvalidSessionStatus = errors.New("invalid session status")
	ErrEmptySubject         = errors.New("subject is required")
	ErrSubjectTooLong       = errors.New("subject is too long")
	ErrSessionEnded         = errors.New("session has already ended")
	ErrInvalidTransition    = errors.New("invalid session status transition")
	ErrInvalidAgent         = errors.New("invalid agent id")
	ErrInvalidRating        = errors.New("rating must be between 1 and 5")

	// Message errors
	ErrEmptyMessage       = errors.New("message text is required")
	ErrMessageTooLong     = errors.New("message text is too long")
	ErrInvalidMessageType = errors.New("invalid message type")

	// Agent status errors
	ErrInvalidAgentStatus = errors.New("invalid agent status")
	ErrInvalidMaxChats    = errors.New("max concurrent chats out of range")

	// Tag errors
	ErrInvalidTag = errors.New("invalid tag")
)
