package trigger

import (
	"strings"
	"testing"

	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
)

func filler(n int) string {
	return strings.Repeat("x", n)
}

func TestEvaluateShortTranscriptNeverFires(t *testing.T) {
	e := NewEvaluator(nil)
	inputs := []string{
		"",
		"no competitors",
		"we have no competitors and our burn rate is fine and our ai is proprietary ai blockchain",
		strings.Repeat("a", MinTranscriptLength-1),
	}
	for _, in := range inputs {
		if got := e.Evaluate(in, 0); got.Fire {
			t.Fatalf("expected no trigger for %d-char transcript, got %+v", len(in), got)
		}
	}
}

func TestEvaluateLengthCountsCharactersNotBytes(t *testing.T) {
	e := NewEvaluator(nil)
	// over 100 bytes, under 100 characters
	transcript := strings.Repeat("é", 80) + "no competitors"
	if got := e.Evaluate(transcript, 0); got.Fire {
		t.Fatalf("expected %d-char transcript not to fire, got %+v", len([]rune(transcript)), got)
	}
}

func TestEvaluateLimitReached(t *testing.T) {
	e := NewEvaluator(nil)
	transcript := filler(150) + " we have no competitors in this space"
	for _, count := range []int{3, 4, 10} {
		got := e.Evaluate(transcript, count)
		if got.Fire {
			t.Fatalf("count=%d: expected no trigger", count)
		}
		if got.Reason != ReasonLimitReached {
			t.Fatalf("count=%d: expected limit reason, got %s", count, got.Reason)
		}
	}
}

func TestEvaluateRealityCheckScenario(t *testing.T) {
	e := NewEvaluator(nil)
	got := e.Evaluate(filler(150)+"we have no competitors in this space", 0)
	if !got.Fire || got.Category != pitch.RealityCheck {
		t.Fatalf("expected reality_check, got %+v", got)
	}
	if got.Phrase != "no competitors" {
		t.Fatalf("unexpected phrase %q", got.Phrase)
	}
}

func TestEvaluatePriorityOrder(t *testing.T) {
	e := NewEvaluator(nil)
	transcript := filler(120) + " our runway is long, we use machine learning and have No Competitors."
	got := e.Evaluate(transcript, 2)
	if got.Category != pitch.RealityCheck {
		t.Fatalf("expected reality_check to win priority, got %s", got.Category)
	}

	transcript = filler(120) + " blockchain powers it and our burn rate is low"
	if got := e.Evaluate(transcript, 0); got.Category != pitch.MathCheck {
		t.Fatalf("expected math_check before bs_detector, got %s", got.Category)
	}

	transcript = filler(120) + " OUR AI is the secret"
	if got := e.Evaluate(transcript, 0); got.Category != pitch.BSDetector {
		t.Fatalf("expected bs_detector, got %s", got.Category)
	}
}

func TestEvaluateNoMatch(t *testing.T) {
	e := NewEvaluator(nil)
	got := e.Evaluate(filler(200)+" we sell shoes to people who like shoes", 0)
	if got.Fire || got.Reason != ReasonNoMatch {
		t.Fatalf("expected no match, got %+v", got)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	e := NewEvaluator(nil)
	transcript := filler(150) + " first to market with a hiring plan"
	first := e.Evaluate(transcript, 1)
	for i := 0; i < 5; i++ {
		if got := e.Evaluate(transcript, 1); got != first {
			t.Fatalf("evaluation %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestExcerpt(t *testing.T) {
	short := "we have no competitors"
	if got := Excerpt(short); got != short {
		t.Fatalf("short transcript should be returned whole, got %q", got)
	}

	long := strings.Repeat("a", 300) + strings.Repeat("ü", ExcerptLength)
	got := Excerpt(long)
	if len([]rune(got)) != ExcerptLength {
		t.Fatalf("expected %d runes, got %d", ExcerptLength, len([]rune(got)))
	}
	if strings.Contains(got, "a") {
		t.Fatal("excerpt should only contain the trailing characters")
	}
}

func TestParseTableOverridesOrder(t *testing.T) {
	data := []byte(`
rules:
  - category: BS_DETECTOR
    phrases: ["our ai"]
  - category: reality_check
    phrases: ["no competitors"]
`)
	table, err := ParseTable(data)
	if err != nil {
		t.Fatalf("ParseTable err: %v", err)
	}

	e := NewEvaluator(table)
	got := e.Evaluate(filler(120)+" our ai means no competitors", 0)
	if got.Category != pitch.BSDetector {
		t.Fatalf("expected file order to set priority, got %s", got.Category)
	}
}

func TestParseTableRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown category": "rules:\n  - category: hype_check\n    phrases: [\"x\"]\n",
		"duplicate":        "rules:\n  - category: math_check\n    phrases: [\"a\"]\n  - category: math_check\n    phrases: [\"b\"]\n",
		"no phrases":       "rules:\n  - category: math_check\n    phrases: [\"  \"]\n",
		"empty":            "rules: []\n",
	}
	for name, raw := range cases {
		if _, err := ParseTable([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestMarshalFileRoundTripsDefaultTable(t *testing.T) {
	data, err := DefaultTable().MarshalFile()
	if err != nil {
		t.Fatalf("MarshalFile err: %v", err)
	}
	table, err := ParseTable(data)
	if err != nil {
		t.Fatalf("ParseTable err: %v", err)
	}
	if len(table) != 3 || table[0].Category != pitch.RealityCheck {
		t.Fatalf("unexpected table: %+v", table)
	}
}
