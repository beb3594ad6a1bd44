package report

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
	"github.com/zhouzirui/vc-hotseat/backend/internal/service/ai"
	"github.com/zhouzirui/vc-hotseat/backend/internal/store"
)

type fakeSynth struct {
	report pitch.Report
	err    error
	input  ai.ReportInput
}

func (f *fakeSynth) SynthesizeReport(_ context.Context, in ai.ReportInput) (pitch.Report, error) {
	f.input = in
	return f.report, f.err
}

// blockingSynth holds the call until the caller's context ends.
type blockingSynth struct{}

func (blockingSynth) SynthesizeReport(ctx context.Context, _ ai.ReportInput) (pitch.Report, error) {
	<-ctx.Done()
	return pitch.Report{}, ctx.Err()
}

func seed(t *testing.T, transcript, pitchContext string, reactions ...pitch.Reaction) *store.Memory {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	if err := mem.CreateSession(ctx, pitch.Session{
		ID: "s1", UserID: "alice", Status: pitch.StatusCompleted,
		Transcript: transcript, PitchContext: pitchContext,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, r := range reactions {
		in, err := mem.AppendInterruption(ctx, pitch.Interruption{SessionID: "s1", Category: pitch.MathCheck}, 3)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if r != "" {
			if _, err := mem.SetReaction(ctx, in.ID, r); err != nil {
				t.Fatalf("set reaction: %v", err)
			}
		}
	}
	return mem
}

func TestGenerateNormalizesModelOutput(t *testing.T) {
	mem := seed(t, "we burn 200k a month", "b2b payroll", pitch.Defensive, "")
	synth := &fakeSynth{report: pitch.Report{
		MarketClarity: 80, TechDefensibility: 60, UnitEconomicLogic: 41, InvestorReadiness: 70,
		OverallScore: 12, CoachabilityDelta: 25, Insights: "Numbers are soft.",
	}}
	svc := NewService(mem, synth)
	fixed := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	got, err := svc.Generate(context.Background(), "s1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got.OverallScore != 62.75 {
		t.Fatalf("expected exact mean 62.75, got %v", got.OverallScore)
	}
	if got.CoachabilityDelta != -10 {
		t.Fatalf("expected locally computed delta -10, got %d", got.CoachabilityDelta)
	}
	if got.InvestorReadiness != 70 || got.Approximate {
		t.Fatalf("unexpected report %+v", got)
	}
	if len(synth.input.Interruptions) != 2 || synth.input.Transcript != "we burn 200k a month" {
		t.Fatalf("synthesizer got wrong input %+v", synth.input)
	}

	session, _ := mem.GetSession(context.Background(), "s1")
	if session.Report == nil || !session.Report.GeneratedAt.Equal(fixed) {
		t.Fatalf("report not persisted: %+v", session.Report)
	}
}

func TestGenerateFallsBackOnFailure(t *testing.T) {
	mem := seed(t, "", "")
	svc := NewService(mem, &fakeSynth{err: errors.New("model timeout")})

	got, err := svc.Generate(context.Background(), "s1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got.OverallScore != 50 || got.CoachabilityDelta != 0 || !got.Approximate {
		t.Fatalf("expected fallback report, got %+v", got)
	}
	if !strings.Contains(got.Insights, "No transcript available") || !strings.Contains(got.Insights, "No pitch context provided") {
		t.Fatalf("unexpected insights %q", got.Insights)
	}

	session, _ := mem.GetSession(context.Background(), "s1")
	if session.Report == nil || !session.Report.Approximate {
		t.Fatalf("fallback must be stored: %+v", session.Report)
	}
}

func TestGenerateWithoutModel(t *testing.T) {
	mem := seed(t, "transcript", "")
	got, err := NewService(mem, nil).Generate(context.Background(), "s1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !got.Approximate || !strings.Contains(got.Insights, "Transcript captured successfully") {
		t.Fatalf("unexpected fallback %+v", got)
	}
}

func TestGenerateMissingSession(t *testing.T) {
	svc := NewService(store.NewMemory(), &fakeSynth{})
	if _, err := svc.Generate(context.Background(), "missing"); !errors.Is(err, pitch.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestGenerateStoresFallbackAfterDeadline(t *testing.T) {
	db, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "hotseat.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.CreateSession(context.Background(), pitch.Session{
		ID: "s1", UserID: "alice", Status: pitch.StatusCompleted, Transcript: "we are first to market",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	got, err := NewService(db, blockingSynth{}).Generate(ctx, "s1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !got.Approximate {
		t.Fatalf("expected fallback report, got %+v", got)
	}

	session, err := db.GetSession(context.Background(), "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if session.Report == nil || !session.Report.Approximate {
		t.Fatalf("report left unset after synthesis timed out: %+v", session.Report)
	}
}
