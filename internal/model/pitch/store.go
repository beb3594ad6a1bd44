package pitch

import (
	"context"
	"errors"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrInterruptionNotFound = errors.New("interruption not found")
	ErrInterruptionLimit    = errors.New("interruption limit reached")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrChatNotFound         = errors.New("mentorship chat not found")
	ErrReportNotReady       = errors.New("report not ready")
	ErrSessionNotLive       = errors.New("session is not live")
	ErrInvalidInput         = errors.New("invalid input")
	ErrReactionAlreadySet   = errors.New("reaction already recorded")
)

// Store persists sessions, interruptions and mentorship chats.
type Store interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context, userID string, limit int) ([]Session, error)
	// UpdateSession applies mutate to the stored session atomically. When
	// mutate returns an error nothing is written.
	UpdateSession(ctx context.Context, id string, mutate func(*Session) error) (Session, error)

	// AppendInterruption inserts in unless the session already holds limit
	// interruptions, in which case it returns ErrInterruptionLimit. The count
	// check and the insert happen as one step.
	AppendInterruption(ctx context.Context, in Interruption, limit int) (Interruption, error)
	ListInterruptions(ctx context.Context, sessionID string) ([]Interruption, error)
	GetInterruption(ctx context.Context, id string) (Interruption, error)
	// SetReaction labels an interruption once. A second label returns
	// ErrReactionAlreadySet and leaves the first one in place.
	SetReaction(ctx context.Context, interruptionID string, reaction Reaction) (Interruption, error)

	AppendChatMessages(ctx context.Context, sessionID, userID string, focus FocusArea, messages ...ChatMessage) (MentorshipChat, error)
	GetChat(ctx context.Context, sessionID string, focus FocusArea) (MentorshipChat, error)
}
