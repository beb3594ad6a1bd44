package pitch

import (
	"strings"
	"time"
)

// Category identifies which scripted interruption fired.
type Category string

const (
	RealityCheck Category = "reality_check"
	MathCheck    Category = "math_check"
	BSDetector   Category = "bs_detector"
)

// Categories returns the trigger categories in evaluation priority order.
func Categories() []Category {
	return []Category{RealityCheck, MathCheck, BSDetector}
}

// ParseCategory normalizes raw into a known category.
func ParseCategory(raw string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Categories() {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Reaction is the post-hoc classification of a founder's reply.
type Reaction string

const (
	Defensive Reaction = "defensive"
	Receptive Reaction = "receptive"
	Neutral   Reaction = "neutral"
)

// ParseReaction normalizes raw into one of the three reaction labels.
func ParseReaction(raw string) (Reaction, bool) {
	switch Reaction(strings.ToLower(strings.TrimSpace(raw))) {
	case Defensive:
		return Defensive, true
	case Receptive:
		return Receptive, true
	case Neutral:
		return Neutral, true
	default:
		return "", false
	}
}

// Fact is a short search snippet cited in a rebuttal.
type Fact struct {
	Source string  `json:"source"`
	Fact   string  `json:"fact"`
	URL    string  `json:"url"`
	Score  float64 `json:"score,omitempty"`
}

// Interruption records one fired trigger and the rebuttal spoken to the founder.
type Interruption struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"sessionId"`
	Timestamp        time.Time `json:"timestamp"`
	Category         Category  `json:"triggerType"`
	FounderStatement string    `json:"founderStatement"`
	Response         string    `json:"vcResponse"`
	Reaction         Reaction  `json:"founderReaction,omitempty"`
	Facts            []Fact    `json:"facts,omitempty"`
}
