// Package session implements the pitch session lifecycle: creation,
// start, end, failure and the owner-scoped reads around it.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/vc-hotseat/backend/internal/analysis/trigger"
	"github.com/zhouzirui/vc-hotseat/backend/internal/identity"
	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
	"github.com/zhouzirui/vc-hotseat/backend/internal/worker"
)

// ListLimit caps how many sessions List returns.
const ListLimit = 20

// Scheduler runs background jobs.
type Scheduler interface {
	Submit(name string, fields logrus.Fields, job worker.Job) error
}

// Prefetcher scans the market for a pitch context.
type Prefetcher interface {
	PrefetchMarketContext(ctx context.Context, pitchContext string) (string, error)
}

// ReportGenerator builds and stores a session's report.
type ReportGenerator interface {
	Generate(ctx context.Context, sessionID string) (pitch.Report, error)
}

// LiveTracker holds per-session state while a session is live.
type LiveTracker interface {
	Forget(sessionID string)
}

// Deps groups the collaborators of Service.
type Deps struct {
	Store      pitch.Store
	Identity   identity.Provider
	Jobs       Scheduler
	Prefetcher Prefetcher
	Reports    ReportGenerator
	Live       LiveTracker
}

// Service is the session lifecycle controller.
type Service struct {
	store      pitch.Store
	ids        identity.Provider
	jobs       Scheduler
	prefetcher Prefetcher
	reports    ReportGenerator
	live       LiveTracker
	now        func() time.Time
	log        *logrus.Entry
}

// NewService wires the controller. Prefetcher and Live may be nil.
func NewService(deps Deps) *Service {
	return &Service{
		store:      deps.Store,
		ids:        deps.Identity,
		jobs:       deps.Jobs,
		prefetcher: deps.Prefetcher,
		reports:    deps.Reports,
		live:       deps.Live,
		now:        time.Now,
		log:        logrus.WithField("component", "session"),
	}
}

// CreateInput describes a new session.
type CreateInput struct {
	Title        string `json:"title"`
	DeckRef      string `json:"deckRef,omitempty"`
	PitchContext string `json:"pitchContext,omitempty"`
}

// Create stores a new preparing session for the caller and, when a pitch
// context is present, schedules the market-context prefetch.
func (s *Service) Create(ctx context.Context, in CreateInput) (pitch.Session, error) {
	userID, err := s.ids.Resolve(ctx)
	if err != nil {
		return pitch.Session{}, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return pitch.Session{}, fmt.Errorf("%w: title is required", pitch.ErrInvalidInput)
	}

	session := pitch.Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		Title:        title,
		Status:       pitch.StatusPreparing,
		DeckRef:      strings.TrimSpace(in.DeckRef),
		PitchContext: strings.TrimSpace(in.PitchContext),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return pitch.Session{}, fmt.Errorf("create session: %w", err)
	}

	s.log.WithFields(logrus.Fields{"session": session.ID, "user": userID}).Info("session created")

	if session.PitchContext != "" {
		s.schedulePrefetch(session.ID, session.PitchContext)
	}
	return session, nil
}

func (s *Service) schedulePrefetch(sessionID, pitchContext string) {
	if s.prefetcher == nil || s.jobs == nil {
		return
	}
	fields := logrus.Fields{"session": sessionID}
	err := s.jobs.Submit("market-prefetch", fields, func(ctx context.Context) error {
		marketContext, err := s.prefetcher.PrefetchMarketContext(ctx, pitchContext)
		if err != nil {
			return err
		}
		_, err = s.store.UpdateSession(ctx, sessionID, func(sess *pitch.Session) error {
			sess.MarketContext = marketContext
			return nil
		})
		return err
	})
	if err != nil {
		s.log.WithFields(fields).WithError(err).Warn("market prefetch not scheduled")
	}
}

// Get returns the caller's session.
func (s *Service) Get(ctx context.Context, id string) (pitch.Session, error) {
	_, session, err := s.owned(ctx, id)
	return session, err
}

// List returns the caller's most recent sessions, newest first.
func (s *Service) List(ctx context.Context) ([]pitch.Session, error) {
	userID, err := s.ids.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ListSessions(ctx, userID, ListLimit)
}

// Start moves the session to live and records the start time.
func (s *Service) Start(ctx context.Context, id string) (pitch.Session, error) {
	return s.transition(ctx, id, pitch.StatusLive, func(sess *pitch.Session, now time.Time) {
		sess.StartTime = &now
	})
}

// End completes the session, keeps the longer of the stored and final
// transcripts, and schedules report generation.
func (s *Service) End(ctx context.Context, id, finalTranscript string) (pitch.Session, error) {
	session, err := s.transition(ctx, id, pitch.StatusCompleted, func(sess *pitch.Session, now time.Time) {
		sess.EndTime = &now
		if len([]rune(finalTranscript)) > len([]rune(sess.Transcript)) {
			sess.Transcript = finalTranscript
		}
	})
	if err != nil {
		return pitch.Session{}, err
	}

	s.release(session.ID)
	s.scheduleReport(session.ID)
	return session, nil
}

// Fail marks a non-terminal session as failed.
func (s *Service) Fail(ctx context.Context, id, reason string) (pitch.Session, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unspecified"
	}
	session, err := s.transition(ctx, id, pitch.StatusFailed, func(sess *pitch.Session, _ time.Time) {
		sess.FailureReason = reason
	})
	if err != nil {
		return pitch.Session{}, err
	}
	s.release(session.ID)
	return session, nil
}

func (s *Service) release(sessionID string) {
	if s.live != nil {
		s.live.Forget(sessionID)
	}
}

// RegenerateReport re-runs report generation for a completed session.
func (s *Service) RegenerateReport(ctx context.Context, id string) error {
	_, session, err := s.owned(ctx, id)
	if err != nil {
		return err
	}
	if session.Status != pitch.StatusCompleted {
		return fmt.Errorf("%w: report requires a completed session", pitch.ErrInvalidTransition)
	}
	s.scheduleReport(session.ID)
	return nil
}

func (s *Service) scheduleReport(sessionID string) {
	fields := logrus.Fields{"session": sessionID}
	if s.reports == nil || s.jobs == nil {
		s.log.WithFields(fields).Warn("report generation not wired")
		return
	}
	err := s.jobs.Submit("report", fields, func(ctx context.Context) error {
		_, err := s.reports.Generate(ctx, sessionID)
		return err
	})
	if err != nil {
		s.log.WithFields(fields).WithError(err).Warn("report generation not scheduled")
	}
}

func (s *Service) transition(ctx context.Context, id string, next pitch.Status, apply func(*pitch.Session, time.Time)) (pitch.Session, error) {
	userID, err := s.ids.Resolve(ctx)
	if err != nil {
		return pitch.Session{}, err
	}

	now := s.now().UTC()
	var from pitch.Status
	session, err := s.store.UpdateSession(ctx, id, func(sess *pitch.Session) error {
		if !sess.OwnedBy(userID) {
			return pitch.ErrSessionNotFound
		}
		if !sess.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", pitch.ErrInvalidTransition, sess.Status, next)
		}
		from = sess.Status
		sess.Status = next
		apply(sess, now)
		return nil
	})
	if err != nil {
		return pitch.Session{}, err
	}

	s.log.WithFields(logrus.Fields{"session": id, "from": from, "to": next}).Info("session transitioned")
	return session, nil
}

// owned loads id and checks the caller owns it. Foreign sessions are
// reported as not found.
func (s *Service) owned(ctx context.Context, id string) (string, pitch.Session, error) {
	userID, err := s.ids.Resolve(ctx)
	if err != nil {
		return "", pitch.Session{}, err
	}
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return "", pitch.Session{}, err
	}
	if !session.OwnedBy(userID) {
		return "", pitch.Session{}, pitch.ErrSessionNotFound
	}
	return userID, session, nil
}

// Interruptions lists the interruptions of the caller's session in order.
func (s *Service) Interruptions(ctx context.Context, id string) ([]pitch.Interruption, error) {
	if _, _, err := s.owned(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListInterruptions(ctx, id)
}

// InterruptionInput is a manually submitted interruption.
type InterruptionInput struct {
	Category         pitch.Category `json:"triggerType"`
	FounderStatement string         `json:"founderStatement"`
	Response         string         `json:"vcResponse"`
}

// SubmitInterruption records an interruption produced outside the live
// evaluator. The cap still applies.
func (s *Service) SubmitInterruption(ctx context.Context, id string, in InterruptionInput) (pitch.Interruption, error) {
	if _, _, err := s.owned(ctx, id); err != nil {
		return pitch.Interruption{}, err
	}
	category, ok := pitch.ParseCategory(string(in.Category))
	if !ok {
		return pitch.Interruption{}, fmt.Errorf("%w: unknown trigger type %q", pitch.ErrInvalidInput, in.Category)
	}
	if strings.TrimSpace(in.Response) == "" {
		return pitch.Interruption{}, fmt.Errorf("%w: vcResponse is required", pitch.ErrInvalidInput)
	}

	return s.store.AppendInterruption(ctx, pitch.Interruption{
		SessionID:        id,
		Timestamp:        s.now().UTC(),
		Category:         category,
		FounderStatement: in.FounderStatement,
		Response:         in.Response,
	}, trigger.MaxInterruptions)
}

// PatchReaction sets the reaction label on one of the caller's interruptions.
// An interruption is labelled at most once.
func (s *Service) PatchReaction(ctx context.Context, interruptionID string, reaction pitch.Reaction) (pitch.Interruption, error) {
	parsed, ok := pitch.ParseReaction(string(reaction))
	if !ok {
		return pitch.Interruption{}, fmt.Errorf("%w: unknown reaction %q", pitch.ErrInvalidInput, reaction)
	}
	in, err := s.OwnedInterruption(ctx, interruptionID)
	if err != nil {
		return pitch.Interruption{}, err
	}
	return s.store.SetReaction(ctx, in.ID, parsed)
}

// OwnedInterruption loads an interruption whose session the caller owns.
func (s *Service) OwnedInterruption(ctx context.Context, interruptionID string) (pitch.Interruption, error) {
	in, err := s.store.GetInterruption(ctx, interruptionID)
	if err != nil {
		return pitch.Interruption{}, err
	}
	if _, _, err := s.owned(ctx, in.SessionID); err != nil {
		if errors.Is(err, pitch.ErrSessionNotFound) {
			return pitch.Interruption{}, pitch.ErrInterruptionNotFound
		}
		return pitch.Interruption{}, err
	}
	return in, nil
}
