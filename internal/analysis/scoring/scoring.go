package scoring

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
)

const (
	defensivePenalty = -10
	receptiveBonus   = 5

	// FallbackPillar is the neutral mid-scale value used when analysis fails.
	FallbackPillar = 50
)

// OverallScore returns the exact arithmetic mean of the four pillars.
func OverallScore(pillars [4]int) float64 {
	sum := 0
	for _, p := range pillars {
		sum += p
	}
	return float64(sum) / float64(len(pillars))
}

// CoachabilityDelta sums the per-reaction adjustments: defensive -10,
// receptive +5, neutral and unset 0.
func CoachabilityDelta(reactions []pitch.Reaction) int {
	delta := 0
	for _, r := range reactions {
		switch r {
		case pitch.Defensive:
			delta += defensivePenalty
		case pitch.Receptive:
			delta += receptiveBonus
		}
	}
	return delta
}

// ReactionsOf extracts reaction labels in interruption order.
func ReactionsOf(interruptions []pitch.Interruption) []pitch.Reaction {
	out := make([]pitch.Reaction, 0, len(interruptions))
	for _, in := range interruptions {
		out = append(out, in.Reaction)
	}
	return out
}

// ClampPillar bounds a pillar score to [0, 100].
func ClampPillar(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Normalize clamps the model's pillars and recomputes the derived fields
// locally. The investor readiness pillar is kept as scored; the delta is
// reported alongside it, not folded in.
func Normalize(r pitch.Report, interruptions []pitch.Interruption) pitch.Report {
	r.MarketClarity = ClampPillar(r.MarketClarity)
	r.TechDefensibility = ClampPillar(r.TechDefensibility)
	r.UnitEconomicLogic = ClampPillar(r.UnitEconomicLogic)
	r.InvestorReadiness = ClampPillar(r.InvestorReadiness)
	r.OverallScore = OverallScore(r.Pillars())
	r.CoachabilityDelta = CoachabilityDelta(ReactionsOf(interruptions))
	r.Insights = strings.TrimSpace(r.Insights)
	return r
}

// Fallback builds the degraded report persisted when synthesis fails.
func Fallback(hasTranscript, hasContext bool) pitch.Report {
	transcriptNote := "No transcript available"
	if hasTranscript {
		transcriptNote = "Transcript captured successfully"
	}
	contextNote := "No pitch context provided"
	if hasContext {
		contextNote = "Pitch context provided"
	}

	r := pitch.Report{
		MarketClarity:     FallbackPillar,
		TechDefensibility: FallbackPillar,
		UnitEconomicLogic: FallbackPillar,
		InvestorReadiness: FallbackPillar,
		CoachabilityDelta: 0,
		Approximate:       true,
		Insights: fmt.Sprintf(
			"Unable to generate full analysis due to technical error; these scores are approximate. Based on available data: %s. %s. Please review your session data and try again.",
			transcriptNote, contextNote,
		),
	}
	r.OverallScore = OverallScore(r.Pillars())
	return r
}
