package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
)

type tavilyStub struct {
	mu       sync.Mutex
	requests []request
	status   int
}

func (s *tavilyStub) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()

		if s.status != 0 {
			http.Error(w, "quota exceeded", s.status)
			return
		}
		results := make([]Result, 0, 5)
		for i := 0; i < 5; i++ {
			results = append(results, Result{
				Title:   "Result " + string(rune('A'+i)),
				URL:     "https://example.com/" + string(rune('a'+i)),
				Content: strings.Repeat("x", 400),
				Score:   0.9 - float64(i)/10,
			})
		}
		_ = json.NewEncoder(w).Encode(Response{Query: req.Query, Results: results})
	})
}

func newStubService(t *testing.T, stub *tavilyStub) *Service {
	t.Helper()
	srv := httptest.NewServer(stub.handler(t))
	t.Cleanup(srv.Close)

	svc := NewService(NewClient("tvly-test", srv.URL, time.Second))
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestFactCheckBuildsCategoryQuery(t *testing.T) {
	stub := &tavilyStub{}
	svc := newStubService(t, stub)

	res := svc.FactCheck(context.Background(), "we have no competitors", pitch.RealityCheck)
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Query != "we have no competitors competitors alternatives similar companies" {
		t.Fatalf("unexpected query %q", res.Query)
	}
	if len(res.Facts) != 3 {
		t.Fatalf("expected 3 facts, got %d", len(res.Facts))
	}
	if got := len([]rune(res.Facts[0].Fact)); got != 150 {
		t.Fatalf("expected fact truncated to 150 chars, got %d", got)
	}

	req := stub.requests[0]
	if req.APIKey != "tvly-test" || req.SearchDepth != DepthBasic || req.MaxResults != 5 || !req.IncludeAnswer {
		t.Fatalf("unexpected request payload %+v", req)
	}
}

func TestFactCheckQueries(t *testing.T) {
	cases := map[pitch.Category]string{
		pitch.MathCheck:  "burn CAC LTV industry benchmarks average",
		pitch.BSDetector: "burn technology real implementation vs buzzword",
	}
	for category, want := range cases {
		if got := FactCheckQuery("burn", category); got != want {
			t.Fatalf("%s: expected %q, got %q", category, want, got)
		}
	}
}

func TestFactCheckFailureIsReported(t *testing.T) {
	stub := &tavilyStub{status: http.StatusTooManyRequests}
	svc := newStubService(t, stub)

	res := svc.FactCheck(context.Background(), "our ai", pitch.BSDetector)
	if res.Success || res.Error == "" || len(res.Facts) != 0 {
		t.Fatalf("expected reported failure, got %+v", res)
	}
}

func TestFactCheckMissingKey(t *testing.T) {
	svc := NewService(NewClient("", "", 0))
	res := svc.FactCheck(context.Background(), "claim", pitch.MathCheck)
	if res.Success || !strings.Contains(res.Error, "TAVILY_API_KEY") {
		t.Fatalf("expected missing key failure, got %+v", res)
	}

	if _, err := svc.FindCompetitors(context.Background(), "fintech", "ledger"); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestPrefetchMarketContext(t *testing.T) {
	stub := &tavilyStub{}
	svc := newStubService(t, stub)

	raw, err := svc.PrefetchMarketContext(context.Background(), "dental SaaS")
	if err != nil {
		t.Fatalf("prefetch: %v", err)
	}

	var findings []Finding
	if err := json.Unmarshal([]byte(raw), &findings); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(findings) != 3 {
		t.Fatalf("expected 3 findings, got %d", len(findings))
	}
	wantQueries := []string{
		"dental SaaS competitors market analysis",
		"dental SaaS market size TAM SAM",
		"dental SaaS industry trends 2024 2025",
	}
	for i, want := range wantQueries {
		if findings[i].Query != want {
			t.Fatalf("finding %d: expected query %q, got %q", i, want, findings[i].Query)
		}
		if got := strings.Count(findings[i].Findings, "\n\n"); got != 2 {
			t.Fatalf("finding %d: expected 3 summarized hits, got %d separators", i, got)
		}
	}
	if len(stub.requests) != 3 {
		t.Fatalf("expected 3 searches, got %d", len(stub.requests))
	}
}

func TestPrefetchFailsWhenAnyQueryFails(t *testing.T) {
	stub := &tavilyStub{status: http.StatusInternalServerError}
	svc := newStubService(t, stub)

	if _, err := svc.PrefetchMarketContext(context.Background(), "dental SaaS"); err == nil {
		t.Fatal("expected error")
	}
}

func TestFindCompetitors(t *testing.T) {
	stub := &tavilyStub{}
	svc := newStubService(t, stub)

	got, err := svc.FindCompetitors(context.Background(), "fintech", "ledger")
	if err != nil {
		t.Fatalf("find competitors: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 competitors, got %d", len(got))
	}
	if got[0].Relevance != 0.9 || len([]rune(got[0].Description)) != 200 {
		t.Fatalf("unexpected competitor %+v", got[0])
	}
	req := stub.requests[0]
	if req.SearchDepth != DepthAdvanced || req.Query != "ledger fintech competitors alternatives top companies 2025" {
		t.Fatalf("unexpected request %+v", req)
	}
}
