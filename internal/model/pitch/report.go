package pitch

import "time"

// Pillar names one of the four scored dimensions.
type Pillar string

const (
	MarketClarity     Pillar = "marketClarity"
	TechDefensibility Pillar = "techDefensibility"
	UnitEconomicLogic Pillar = "unitEconomicLogic"
	InvestorReadiness Pillar = "investorReadiness"
)

// Report is the fundability report card produced after a session ends.
type Report struct {
	MarketClarity     int       `json:"marketClarity"`
	TechDefensibility int       `json:"techDefensibility"`
	UnitEconomicLogic int       `json:"unitEconomicLogic"`
	InvestorReadiness int       `json:"investorReadiness"`
	OverallScore      float64   `json:"overallScore"`
	CoachabilityDelta int       `json:"coachabilityDelta"`
	Insights          string    `json:"insights"`
	Approximate       bool      `json:"approximate,omitempty"`
	GeneratedAt       time.Time `json:"generatedAt"`
}

// Pillars returns the four pillar scores in display order.
func (r Report) Pillars() [4]int {
	return [4]int{r.MarketClarity, r.TechDefensibility, r.UnitEconomicLogic, r.InvestorReadiness}
}
