package trigger

import (
	"strings"
	"unicode/utf8"

	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
)

const (
	// MaxInterruptions 是单个会话允许的中断上限。
	MaxInterruptions = 3
	// MinTranscriptLength 以字符计，转写不足时不打断。
	MinTranscriptLength = 100
	// ExcerptLength 是保存为创始人发言摘录的尾部字符数。
	ExcerptLength = 200
)

// Reason explains why an evaluation did not fire.
type Reason string

const (
	ReasonFired        Reason = "fired"
	ReasonLimitReached Reason = "limit_reached"
	ReasonTooShort     Reason = "too_short"
	ReasonNoMatch      Reason = "no_match"
)

// Decision is the outcome of one evaluation.
type Decision struct {
	Fire     bool
	Category pitch.Category
	Phrase   string
	Reason   Reason
}

// Evaluator applies the phrase table to cumulative transcripts.
type Evaluator struct {
	table Table
}

// NewEvaluator returns an evaluator over table; an empty table falls back to DefaultTable.
func NewEvaluator(table Table) *Evaluator {
	if len(table) == 0 {
		table = DefaultTable()
	}
	return &Evaluator{table: table.clone()}
}

// Table returns a copy of the rules in priority order.
func (e *Evaluator) Table() Table {
	return e.table.clone()
}

// Evaluate decides whether the transcript warrants an interruption given how
// many interruptions the session already has. Rules are checked in table
// order and the first matching category wins.
func (e *Evaluator) Evaluate(transcript string, count int) Decision {
	if count >= MaxInterruptions {
		return Decision{Reason: ReasonLimitReached}
	}
	if utf8.RuneCountInString(transcript) < MinTranscriptLength {
		return Decision{Reason: ReasonTooShort}
	}

	normalized := strings.ToLower(transcript)
	for _, rule := range e.table {
		for _, phrase := range rule.Phrases {
			if phrase == "" {
				continue
			}
			if strings.Contains(normalized, strings.ToLower(phrase)) {
				return Decision{Fire: true, Category: rule.Category, Phrase: phrase, Reason: ReasonFired}
			}
		}
	}

	return Decision{Reason: ReasonNoMatch}
}

// Excerpt returns at most the trailing ExcerptLength characters of transcript.
func Excerpt(transcript string) string {
	if utf8.RuneCountInString(transcript) <= ExcerptLength {
		return transcript
	}
	runes := []rune(transcript)
	return string(runes[len(runes)-ExcerptLength:])
}
