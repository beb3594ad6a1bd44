package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
)

func backends(t *testing.T) map[string]pitch.Store {
	t.Helper()

	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "hotseat.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return map[string]pitch.Store{
		"memory": NewMemory(),
		"sqlite": db,
	}
}

func seedSession(t *testing.T, s pitch.Store, id, user string, created time.Time) pitch.Session {
	t.Helper()
	session := pitch.Session{
		ID:        id,
		UserID:    user,
		Title:     "Seed round " + id,
		Status:    pitch.StatusPreparing,
		CreatedAt: created,
	}
	if err := s.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

func TestSessionRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedSession(t, s, "s1", "alice", time.Now().UTC())

			got, err := s.GetSession(ctx, "s1")
			if err != nil {
				t.Fatalf("get session: %v", err)
			}
			if got.UserID != "alice" || got.Status != pitch.StatusPreparing || got.Report != nil {
				t.Fatalf("unexpected session: %+v", got)
			}

			if _, err := s.GetSession(ctx, "missing"); !errors.Is(err, pitch.ErrSessionNotFound) {
				t.Fatalf("expected ErrSessionNotFound, got %v", err)
			}
		})
	}
}

func TestUpdateSessionAppliesOrDiscards(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedSession(t, s, "s1", "alice", time.Now().UTC())

			start := time.Now().UTC()
			updated, err := s.UpdateSession(ctx, "s1", func(sess *pitch.Session) error {
				sess.Status = pitch.StatusLive
				sess.StartTime = &start
				sess.Report = &pitch.Report{MarketClarity: 70, OverallScore: 17.5, Insights: "ok"}
				return nil
			})
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if updated.Status != pitch.StatusLive {
				t.Fatalf("expected live, got %s", updated.Status)
			}

			boom := errors.New("boom")
			if _, err := s.UpdateSession(ctx, "s1", func(sess *pitch.Session) error {
				sess.Status = pitch.StatusFailed
				return boom
			}); !errors.Is(err, boom) {
				t.Fatalf("expected mutate error, got %v", err)
			}

			got, err := s.GetSession(ctx, "s1")
			if err != nil {
				t.Fatalf("get session: %v", err)
			}
			if got.Status != pitch.StatusLive {
				t.Fatalf("failed mutation must not be written, got %s", got.Status)
			}
			if got.StartTime == nil || got.StartTime.UnixMilli() != start.UnixMilli() {
				t.Fatalf("start time not persisted: %v", got.StartTime)
			}
			if got.Report == nil || got.Report.MarketClarity != 70 || got.Report.Insights != "ok" {
				t.Fatalf("report not persisted: %+v", got.Report)
			}

			if _, err := s.UpdateSession(ctx, "missing", func(*pitch.Session) error { return nil }); !errors.Is(err, pitch.ErrSessionNotFound) {
				t.Fatalf("expected ErrSessionNotFound, got %v", err)
			}
		})
	}
}

func TestListSessionsNewestFirstPerUser(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Now().UTC().Add(-time.Hour)
			for i := 0; i < 5; i++ {
				seedSession(t, s, fmt.Sprintf("a%d", i), "alice", base.Add(time.Duration(i)*time.Minute))
			}
			seedSession(t, s, "b0", "bob", base)

			got, err := s.ListSessions(context.Background(), "alice", 3)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("expected 3 sessions, got %d", len(got))
			}
			for i, want := range []string{"a4", "a3", "a2"} {
				if got[i].ID != want {
					t.Fatalf("position %d: expected %s, got %s", i, want, got[i].ID)
				}
			}
		})
	}
}

func TestAppendInterruptionEnforcesLimit(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedSession(t, s, "s1", "alice", time.Now().UTC())

			for i := 0; i < 3; i++ {
				in, err := s.AppendInterruption(ctx, pitch.Interruption{
					SessionID: "s1",
					Category:  pitch.RealityCheck,
					Response:  fmt.Sprintf("rebuttal %d", i),
					Facts:     []pitch.Fact{{Source: "Tavily", Fact: "fact", URL: "https://example.com"}},
				}, 3)
				if err != nil {
					t.Fatalf("append %d: %v", i, err)
				}
				if in.ID == "" || in.Timestamp.IsZero() {
					t.Fatalf("append %d: id and timestamp must be assigned: %+v", i, in)
				}
			}

			if _, err := s.AppendInterruption(ctx, pitch.Interruption{SessionID: "s1", Category: pitch.MathCheck}, 3); !errors.Is(err, pitch.ErrInterruptionLimit) {
				t.Fatalf("expected ErrInterruptionLimit, got %v", err)
			}

			list, err := s.ListInterruptions(ctx, "s1")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != 3 {
				t.Fatalf("expected 3 interruptions, got %d", len(list))
			}
			for i, in := range list {
				if in.Response != fmt.Sprintf("rebuttal %d", i) {
					t.Fatalf("interruptions out of order at %d: %q", i, in.Response)
				}
				if len(in.Facts) != 1 || in.Facts[0].Source != "Tavily" {
					t.Fatalf("facts not persisted: %+v", in.Facts)
				}
			}

			if _, err := s.AppendInterruption(ctx, pitch.Interruption{SessionID: "missing"}, 3); !errors.Is(err, pitch.ErrSessionNotFound) {
				t.Fatalf("expected ErrSessionNotFound, got %v", err)
			}
		})
	}
}

func TestAppendInterruptionConcurrentCap(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedSession(t, s, "s1", "alice", time.Now().UTC())

			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				accepted int
			)
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.AppendInterruption(ctx, pitch.Interruption{SessionID: "s1", Category: pitch.BSDetector}, 3)
					if err == nil {
						mu.Lock()
						accepted++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			if accepted != 3 {
				t.Fatalf("expected exactly 3 accepted appends, got %d", accepted)
			}
		})
	}
}

func TestSetReaction(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedSession(t, s, "s1", "alice", time.Now().UTC())
			in, err := s.AppendInterruption(ctx, pitch.Interruption{SessionID: "s1", Category: pitch.MathCheck}, 3)
			if err != nil {
				t.Fatalf("append: %v", err)
			}

			patched, err := s.SetReaction(ctx, in.ID, pitch.Receptive)
			if err != nil {
				t.Fatalf("set reaction: %v", err)
			}
			if patched.Reaction != pitch.Receptive {
				t.Fatalf("expected receptive, got %q", patched.Reaction)
			}

			got, err := s.GetInterruption(ctx, in.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Reaction != pitch.Receptive || got.SessionID != "s1" {
				t.Fatalf("unexpected interruption: %+v", got)
			}

			if _, err := s.SetReaction(ctx, in.ID, pitch.Defensive); !errors.Is(err, pitch.ErrReactionAlreadySet) {
				t.Fatalf("expected ErrReactionAlreadySet, got %v", err)
			}
			if got, _ := s.GetInterruption(ctx, in.ID); got.Reaction != pitch.Receptive {
				t.Fatalf("second label overwrote the first: %q", got.Reaction)
			}

			if _, err := s.SetReaction(ctx, "missing", pitch.Neutral); !errors.Is(err, pitch.ErrInterruptionNotFound) {
				t.Fatalf("expected ErrInterruptionNotFound, got %v", err)
			}
		})
	}
}

func TestChatAppendsPerFocusArea(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedSession(t, s, "s1", "alice", time.Now().UTC())

			if _, err := s.GetChat(ctx, "s1", pitch.FocusMarket); !errors.Is(err, pitch.ErrChatNotFound) {
				t.Fatalf("expected ErrChatNotFound, got %v", err)
			}

			_, err := s.AppendChatMessages(ctx, "s1", "alice", pitch.FocusMarket,
				pitch.ChatMessage{Role: pitch.RoleUser, Content: "how big is my market?"},
				pitch.ChatMessage{Role: pitch.RoleAssistant, Content: "who pays you today?"},
			)
			if err != nil {
				t.Fatalf("append: %v", err)
			}
			chat, err := s.AppendChatMessages(ctx, "s1", "alice", pitch.FocusMarket,
				pitch.ChatMessage{Role: pitch.RoleUser, Content: "clinics"},
			)
			if err != nil {
				t.Fatalf("append: %v", err)
			}
			if chat.UserID != "alice" || len(chat.Messages) != 3 {
				t.Fatalf("unexpected chat: %+v", chat)
			}
			if chat.Messages[2].Content != "clinics" || chat.Messages[2].Timestamp.IsZero() {
				t.Fatalf("unexpected last message: %+v", chat.Messages[2])
			}

			if _, err := s.GetChat(ctx, "s1", pitch.FocusTech); !errors.Is(err, pitch.ErrChatNotFound) {
				t.Fatalf("other focus areas stay empty, got %v", err)
			}
		})
	}
}
