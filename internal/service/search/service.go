// Package search wraps the web-search API used for fact lookups and
// market-context prefetch.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
)

const (
	factLimit         = 3
	factSnippetLen    = 150
	findingLimit      = 3
	findingSnippetLen = 200
	competitorLimit   = 5
)

// Searcher runs one web search.
type Searcher interface {
	Search(ctx context.Context, query string, depth Depth) (*Response, error)
}

// FactCheckResult is the outcome of a tactical lookup. Failures are
// reported through Success and Error, never as a Go error.
type FactCheckResult struct {
	Success bool         `json:"success"`
	Query   string       `json:"query,omitempty"`
	Facts   []pitch.Fact `json:"facts"`
	Error   string       `json:"error,omitempty"`
}

// Finding summarizes the top hits of one prefetch query.
type Finding struct {
	Query    string `json:"query"`
	Findings string `json:"findings"`
}

// Competitor is one result of a competitor search.
type Competitor struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	URL         string  `json:"url"`
	Relevance   float64 `json:"relevance"`
}

// Service implements the fact lookup operations.
type Service struct {
	searcher Searcher
	now      func() time.Time
	log      *logrus.Entry
}

// NewService wraps searcher.
func NewService(searcher Searcher) *Service {
	return &Service{
		searcher: searcher,
		now:      time.Now,
		log:      logrus.WithField("component", "search"),
	}
}

// FactCheckQuery builds the category-specific query for a claim.
func FactCheckQuery(claim string, category pitch.Category) string {
	switch category {
	case pitch.RealityCheck:
		return claim + " competitors alternatives similar companies"
	case pitch.MathCheck:
		return claim + " CAC LTV industry benchmarks average"
	case pitch.BSDetector:
		return claim + " technology real implementation vs buzzword"
	default:
		return claim
	}
}

// FactCheck looks up facts relevant to claim at basic depth.
func (s *Service) FactCheck(ctx context.Context, claim string, category pitch.Category) FactCheckResult {
	query := FactCheckQuery(claim, category)

	resp, err := s.searcher.Search(ctx, query, DepthBasic)
	if err != nil {
		s.log.WithError(err).WithField("category", category).Warn("fact check failed")
		return FactCheckResult{Success: false, Query: query, Facts: []pitch.Fact{}, Error: err.Error()}
	}

	facts := make([]pitch.Fact, 0, factLimit)
	for _, r := range top(resp.Results, factLimit) {
		facts = append(facts, pitch.Fact{
			Source: r.Title,
			Fact:   truncate(r.Content, factSnippetLen),
			URL:    r.URL,
			Score:  r.Score,
		})
	}
	return FactCheckResult{Success: true, Query: query, Facts: facts}
}

// PrefetchQueries lists the industry scans run before a pitch starts.
func (s *Service) PrefetchQueries(pitchContext string) []string {
	year := s.now().Year()
	return []string{
		pitchContext + " competitors market analysis",
		pitchContext + " market size TAM SAM",
		fmt.Sprintf("%s industry trends %d %d", pitchContext, year-1, year),
	}
}

// PrefetchMarketContext runs the industry scans concurrently and returns
// the findings as a JSON document. Any failed query fails the whole scan.
func (s *Service) PrefetchMarketContext(ctx context.Context, pitchContext string) (string, error) {
	queries := s.PrefetchQueries(pitchContext)
	findings := make([]Finding, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, query := range queries {
		g.Go(func() error {
			resp, err := s.searcher.Search(gctx, query, DepthBasic)
			if err != nil {
				return fmt.Errorf("prefetch %q: %w", query, err)
			}
			lines := make([]string, 0, findingLimit)
			for _, r := range top(resp.Results, findingLimit) {
				lines = append(lines, fmt.Sprintf("%s: %s...", r.Title, truncate(r.Content, findingSnippetLen)))
			}
			findings[i] = Finding{Query: query, Findings: strings.Join(lines, "\n\n")}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	data, err := json.Marshal(findings)
	if err != nil {
		return "", fmt.Errorf("encode market context: %w", err)
	}
	return string(data), nil
}

// FindCompetitors runs an advanced-depth competitor search.
func (s *Service) FindCompetitors(ctx context.Context, industry, product string) ([]Competitor, error) {
	query := fmt.Sprintf("%s %s competitors alternatives top companies %d", product, industry, s.now().Year())

	resp, err := s.searcher.Search(ctx, query, DepthAdvanced)
	if err != nil {
		return nil, err
	}

	out := make([]Competitor, 0, competitorLimit)
	for _, r := range top(resp.Results, competitorLimit) {
		out = append(out, Competitor{
			Name:        r.Title,
			Description: truncate(r.Content, findingSnippetLen),
			URL:         r.URL,
			Relevance:   r.Score,
		})
	}
	return out, nil
}

func top(results []Result, n int) []Result {
	if len(results) > n {
		return results[:n]
	}
	return results
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
