package pitch

import "time"

// Status is the lifecycle state of a pitch session.
type Status string

const (
	StatusUploading Status = "uploading"
	StatusPreparing Status = "preparing"
	StatusLive      Status = "live"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// lifecycle lists the forward sequence. Failed sits outside it.
var lifecycle = []Status{StatusUploading, StatusPreparing, StatusLive, StatusCompleted}

func (s Status) rank() int {
	for i, st := range lifecycle {
		if st == s {
			return i
		}
	}
	return -1
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	return s == StatusFailed || s.rank() >= 0
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether the session may move from s to next.
// Moves only go forward through the lifecycle; failed is reachable from
// any non-terminal state.
func (s Status) CanTransitionTo(next Status) bool {
	if s.Terminal() || !s.IsValid() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	from, to := s.rank(), next.rank()
	return to >= 0 && to > from
}

// Session is one pitch attempt owned by a single user.
type Session struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	Title         string     `json:"title"`
	Status        Status     `json:"status"`
	DeckRef       string     `json:"deckRef,omitempty"`
	PitchContext  string     `json:"pitchContext,omitempty"`
	MarketContext string     `json:"marketContext,omitempty"`
	StartTime     *time.Time `json:"startTime,omitempty"`
	EndTime       *time.Time `json:"endTime,omitempty"`
	Transcript    string     `json:"transcript,omitempty"`
	Report        *Report    `json:"reportCard,omitempty"`
	FailureReason string     `json:"failureReason,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// OwnedBy reports whether userID owns the session.
func (s Session) OwnedBy(userID string) bool {
	return userID != "" && s.UserID == userID
}
