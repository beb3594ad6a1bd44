package pitch

import (
	"strings"
	"time"
)

// FocusArea selects which pillar a mentorship chat works on.
type FocusArea string

const (
	FocusMarket    FocusArea = "market"
	FocusTech      FocusArea = "tech"
	FocusEconomics FocusArea = "economics"
	FocusReadiness FocusArea = "readiness"
)

// ParseFocusArea normalizes raw into a known focus area.
func ParseFocusArea(raw string) (FocusArea, bool) {
	switch FocusArea(strings.ToLower(strings.TrimSpace(raw))) {
	case FocusMarket:
		return FocusMarket, true
	case FocusTech:
		return FocusTech, true
	case FocusEconomics:
		return FocusEconomics, true
	case FocusReadiness:
		return FocusReadiness, true
	default:
		return "", false
	}
}

// Role tags a chat message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of a mentorship conversation.
type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// MentorshipChat is the single conversation for a (session, focus area) pair.
type MentorshipChat struct {
	SessionID string        `json:"sessionId"`
	UserID    string        `json:"userId"`
	FocusArea FocusArea     `json:"focusArea"`
	Messages  []ChatMessage `json:"messages"`
}
