package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
)

// ReportInput is everything the analyst model sees about a finished session.
type ReportInput struct {
	PitchContext  string
	Transcript    string
	Interruptions []pitch.Interruption
}

type reportPayload struct {
	MarketClarity     *float64 `json:"marketClarity"`
	TechDefensibility *float64 `json:"techDefensibility"`
	UnitEconomicLogic *float64 `json:"unitEconomicLogic"`
	InvestorReadiness *float64 `json:"investorReadiness"`
	OverallScore      float64  `json:"overallScore"`
	CoachabilityDelta float64  `json:"coachabilityDelta"`
	Insights          string   `json:"insights"`
}

var codeFence = regexp.MustCompile("```(?:json)?\\n?|\\n?```")

// SynthesizeReport asks the model for the scored report. The returned
// report carries the model's raw numbers; callers recompute derived fields.
func (s *Service) SynthesizeReport(ctx context.Context, in ReportInput) (pitch.Report, error) {
	text, err := s.invoke(ctx, reportSystemPrompt, nil, BuildReportPrompt(in),
		model.WithTemperature(s.cfg.ReportTemperature),
		model.WithMaxTokens(s.cfg.ReportMaxTokens),
	)
	if err != nil {
		return pitch.Report{}, err
	}

	report, err := ParseReport(text)
	if err != nil {
		s.log.WithError(err).WithField("preview", preview(text, 200)).Warn("unparsable report output")
		return pitch.Report{}, err
	}
	return report, nil
}

// BuildReportPrompt renders the analyst prompt.
func BuildReportPrompt(in ReportInput) string {
	pitchContext := strings.TrimSpace(in.PitchContext)
	if pitchContext == "" {
		pitchContext = noContextPlaceholder
	}
	transcript := strings.TrimSpace(in.Transcript)
	if transcript == "" {
		transcript = noTranscriptPlaceholder
	}

	lines := make([]string, 0, len(in.Interruptions))
	for _, it := range in.Interruptions {
		reaction := string(it.Reaction)
		if reaction == "" {
			reaction = unknownReaction
		}
		lines = append(lines, fmt.Sprintf("[%s] Founder: %q | VC: %q | Reaction: %s",
			it.Category, it.FounderStatement, it.Response, reaction))
	}

	return fmt.Sprintf("PITCH CONTEXT:\n%s\n\nTRANSCRIPT:\n%s\n\nINTERRUPTIONS & FOUNDER RESPONSES:\n%s\n\n%s",
		pitchContext, transcript, strings.Join(lines, "\n"), reportInstructions)
}

// ParseReport strips code fences and decodes the JSON object in text.
func ParseReport(text string) (pitch.Report, error) {
	cleaned := strings.TrimSpace(codeFence.ReplaceAllString(text, ""))
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end <= start {
		return pitch.Report{}, fmt.Errorf("missing json object")
	}

	var p reportPayload
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &p); err != nil {
		return pitch.Report{}, fmt.Errorf("decode report: %w", err)
	}
	if strings.TrimSpace(p.Insights) == "" {
		return pitch.Report{}, fmt.Errorf("report missing insights")
	}
	pillars := []struct {
		name  pitch.Pillar
		value *float64
	}{
		{pitch.MarketClarity, p.MarketClarity},
		{pitch.TechDefensibility, p.TechDefensibility},
		{pitch.UnitEconomicLogic, p.UnitEconomicLogic},
		{pitch.InvestorReadiness, p.InvestorReadiness},
	}
	for _, pl := range pillars {
		if pl.value == nil {
			return pitch.Report{}, fmt.Errorf("report missing %s", pl.name)
		}
	}

	return pitch.Report{
		MarketClarity:     round(*p.MarketClarity),
		TechDefensibility: round(*p.TechDefensibility),
		UnitEconomicLogic: round(*p.UnitEconomicLogic),
		InvestorReadiness: round(*p.InvestorReadiness),
		OverallScore:      p.OverallScore,
		CoachabilityDelta: round(p.CoachabilityDelta),
		Insights:          p.Insights,
	}, nil
}

func round(v float64) int {
	return int(math.Round(v))
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
