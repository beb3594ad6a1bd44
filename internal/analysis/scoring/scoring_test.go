package scoring

import (
	"strings"
	"testing"

	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
)

func TestOverallScoreIsExactMean(t *testing.T) {
	cases := []struct {
		pillars [4]int
		want    float64
	}{
		{[4]int{50, 50, 50, 50}, 50},
		{[4]int{0, 0, 0, 1}, 0.25},
		{[4]int{100, 90, 81, 70}, 85.25},
		{[4]int{33, 33, 34, 0}, 25},
	}
	for _, tc := range cases {
		if got := OverallScore(tc.pillars); got != tc.want {
			t.Fatalf("OverallScore(%v) = %v, want %v", tc.pillars, got, tc.want)
		}
	}
}

func TestCoachabilityDelta(t *testing.T) {
	if got := CoachabilityDelta([]pitch.Reaction{pitch.Defensive}); got != -10 {
		t.Fatalf("single defensive: expected -10, got %d", got)
	}
	mixed := []pitch.Reaction{pitch.Defensive, pitch.Receptive, pitch.Neutral, "", pitch.Receptive}
	if got := CoachabilityDelta(mixed); got != 0 {
		t.Fatalf("mixed: expected 0, got %d", got)
	}
	if got := CoachabilityDelta(nil); got != 0 {
		t.Fatalf("none: expected 0, got %d", got)
	}
}

func TestNormalizeRecomputesDerivedFields(t *testing.T) {
	raw := pitch.Report{
		MarketClarity:     120,
		TechDefensibility: -4,
		UnitEconomicLogic: 60,
		InvestorReadiness: 40,
		OverallScore:      99,
		CoachabilityDelta: 42,
		Insights:          "  sharp founder  ",
	}
	interruptions := []pitch.Interruption{{Reaction: pitch.Defensive}, {}}

	got := Normalize(raw, interruptions)
	if got.MarketClarity != 100 || got.TechDefensibility != 0 {
		t.Fatalf("pillars not clamped: %+v", got)
	}
	if got.InvestorReadiness != 40 {
		t.Fatalf("investor readiness must stay as scored, got %d", got.InvestorReadiness)
	}
	if got.OverallScore != 50 {
		t.Fatalf("expected overall 50, got %v", got.OverallScore)
	}
	if got.CoachabilityDelta != -10 {
		t.Fatalf("expected delta -10, got %d", got.CoachabilityDelta)
	}
	if got.Insights != "sharp founder" {
		t.Fatalf("unexpected insights %q", got.Insights)
	}
}

func TestFallback(t *testing.T) {
	r := Fallback(false, true)
	for i, p := range r.Pillars() {
		if p != 50 {
			t.Fatalf("pillar %d: expected 50, got %d", i, p)
		}
	}
	if r.OverallScore != 50 || r.CoachabilityDelta != 0 {
		t.Fatalf("unexpected fallback: %+v", r)
	}
	if !r.Approximate {
		t.Fatal("fallback must be flagged approximate")
	}
	if !strings.Contains(r.Insights, "No transcript available") || !strings.Contains(r.Insights, "Pitch context provided") {
		t.Fatalf("insights should describe available data: %q", r.Insights)
	}
}
