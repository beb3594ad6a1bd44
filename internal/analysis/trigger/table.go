package trigger

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
)

// Rule binds one interruption category to the phrases that trigger it.
type Rule struct {
	Category pitch.Category `yaml:"category"`
	Phrases  []string       `yaml:"phrases"`
}

// Table is an ordered rule list; order is evaluation priority.
type Table []Rule

type tableFile struct {
	Rules Table `yaml:"rules"`
}

// DefaultTable returns the built-in phrase table.
func DefaultTable() Table {
	return Table{
		{
			Category: pitch.RealityCheck,
			Phrases:  []string{"no competitors", "no competition", "first to market", "unique in the world"},
		},
		{
			Category: pitch.MathCheck,
			Phrases:  []string{"hiring", "marketing spend", "runway", "burn rate"},
		},
		{
			Category: pitch.BSDetector,
			Phrases:  []string{"proprietary ai", "our ai", "machine learning", "blockchain"},
		},
	}
}

// Validate checks that every rule names a known category exactly once and
// carries at least one phrase.
func (t Table) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("phrase table is empty")
	}
	seen := make(map[pitch.Category]bool, len(t))
	for i, rule := range t {
		if _, ok := pitch.ParseCategory(string(rule.Category)); !ok {
			return fmt.Errorf("rule %d: unknown category %q", i, rule.Category)
		}
		if seen[rule.Category] {
			return fmt.Errorf("rule %d: duplicate category %q", i, rule.Category)
		}
		seen[rule.Category] = true

		phrases := 0
		for _, p := range rule.Phrases {
			if strings.TrimSpace(p) != "" {
				phrases++
			}
		}
		if phrases == 0 {
			return fmt.Errorf("rule %d (%s): no phrases", i, rule.Category)
		}
	}
	return nil
}

func (t Table) clone() Table {
	out := make(Table, len(t))
	for i, rule := range t {
		out[i] = Rule{Category: rule.Category, Phrases: append([]string(nil), rule.Phrases...)}
	}
	return out
}

// LoadTable reads a YAML phrase table of the form
//
//	rules:
//	  - category: reality_check
//	    phrases: ["no competitors", ...]
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading phrase table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes and validates a YAML phrase table.
func ParseTable(data []byte) (Table, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing phrase table: %w", err)
	}
	for i := range file.Rules {
		file.Rules[i].Category = pitch.Category(strings.ToLower(strings.TrimSpace(string(file.Rules[i].Category))))
	}
	if err := file.Rules.Validate(); err != nil {
		return nil, err
	}
	return file.Rules, nil
}

// MarshalFile renders the table in the same shape LoadTable reads.
func (t Table) MarshalFile() ([]byte, error) {
	return yaml.Marshal(tableFile{Rules: t})
}
