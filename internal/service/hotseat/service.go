// Package hotseat runs the live interrogation: every transcript chunk is
// evaluated against the trigger table and, on a match, turned into a
// fact-backed rebuttal.
package hotseat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/vc-hotseat/backend/internal/analysis/trigger"
	"github.com/zhouzirui/vc-hotseat/backend/internal/identity"
	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
	"github.com/zhouzirui/vc-hotseat/backend/internal/service/search"
)

// FactChecker looks up facts for a claim.
type FactChecker interface {
	FactCheck(ctx context.Context, claim string, category pitch.Category) search.FactCheckResult
}

// Rebutter writes the spoken interruption.
type Rebutter interface {
	Rebuttal(ctx context.Context, category pitch.Category, statement string, facts []pitch.Fact) (string, error)
}

// ReactionClassifier labels the founder's reply to a rebuttal.
type ReactionClassifier interface {
	ClassifyReaction(ctx context.Context, rebuttal, reply string) pitch.Reaction
}

// Deps groups the collaborators of Service.
type Deps struct {
	Store     pitch.Store
	Identity  identity.Provider
	Evaluator *trigger.Evaluator
	Facts     FactChecker
	Rebuttals Rebutter
	Reactions ReactionClassifier
}

// Chunk is one transcript update from the client.
type Chunk struct {
	Transcript string `json:"transcript"`
	// AudioData is the raw chunk the transcript came from. It is accepted
	// for wire compatibility and not processed.
	AudioData string `json:"audioData,omitempty"`
}

// ChunkResult reports whether the chunk produced an interruption.
type ChunkResult struct {
	Interrupted  bool                `json:"interrupted"`
	Interruption *pitch.Interruption `json:"interruption,omitempty"`
	VCResponse   string              `json:"vcResponse,omitempty"`
	Reason       trigger.Reason      `json:"reason,omitempty"`
}

// ReasonUnchanged marks a chunk whose transcript was already evaluated.
const ReasonUnchanged trigger.Reason = "unchanged"

// ReasonSynthesisFailed marks a match that produced no rebuttal.
const ReasonSynthesisFailed trigger.Reason = "synthesis_failed"

type liveState struct {
	mu            sync.Mutex
	lastEvaluated string
	evaluated     bool
}

// Service orchestrates live chunk evaluation.
type Service struct {
	store     pitch.Store
	ids       identity.Provider
	evaluator *trigger.Evaluator
	facts     FactChecker
	rebuttals Rebutter
	reactions ReactionClassifier
	now       func() time.Time
	log       *logrus.Entry

	mu   sync.Mutex
	live map[string]*liveState
}

// NewService wires the live service. A nil evaluator uses the default table.
func NewService(deps Deps) *Service {
	evaluator := deps.Evaluator
	if evaluator == nil {
		evaluator = trigger.NewEvaluator(nil)
	}
	return &Service{
		store:     deps.Store,
		ids:       deps.Identity,
		evaluator: evaluator,
		facts:     deps.Facts,
		rebuttals: deps.Rebuttals,
		reactions: deps.Reactions,
		now:       time.Now,
		log:       logrus.WithField("component", "hotseat"),
		live:      make(map[string]*liveState),
	}
}

func (s *Service) state(sessionID string) *liveState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.live[sessionID]
	if !ok {
		st = &liveState{}
		s.live[sessionID] = st
	}
	return st
}

// Forget drops the in-memory evaluation state of a session that is no
// longer live.
func (s *Service) Forget(sessionID string) {
	s.mu.Lock()
	delete(s.live, sessionID)
	s.mu.Unlock()
}

// ProcessChunk evaluates the cumulative transcript carried by chunk.
// Evaluations for one session are serialized, so interruptions are stored
// in the order their evaluations completed.
func (s *Service) ProcessChunk(ctx context.Context, sessionID string, chunk Chunk) (ChunkResult, error) {
	userID, err := s.ids.Resolve(ctx)
	if err != nil {
		return ChunkResult{}, err
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return ChunkResult{}, err
	}
	if !session.OwnedBy(userID) {
		return ChunkResult{}, pitch.ErrSessionNotFound
	}
	if session.Status != pitch.StatusLive {
		s.Forget(sessionID)
		return ChunkResult{}, pitch.ErrSessionNotLive
	}

	st := s.state(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	log := s.log.WithField("session", sessionID)
	transcript := chunk.Transcript

	if st.evaluated && transcript == st.lastEvaluated {
		return ChunkResult{Reason: ReasonUnchanged}, nil
	}

	if err := s.recordTranscript(ctx, sessionID, transcript); err != nil {
		return ChunkResult{}, err
	}

	existing, err := s.store.ListInterruptions(ctx, sessionID)
	if err != nil {
		return ChunkResult{}, fmt.Errorf("count interruptions: %w", err)
	}
	st.lastEvaluated = transcript
	st.evaluated = true

	decision := s.evaluator.Evaluate(transcript, len(existing))
	if !decision.Fire {
		log.WithFields(logrus.Fields{"reason": decision.Reason, "count": len(existing)}).Debug("no trigger")
		return ChunkResult{Reason: decision.Reason}, nil
	}

	log = log.WithFields(logrus.Fields{"category": decision.Category, "phrase": decision.Phrase})
	log.Info("trigger matched")

	excerpt := trigger.Excerpt(transcript)
	facts := s.lookup(ctx, log, excerpt, decision.Category)

	response, err := s.rebut(ctx, decision.Category, excerpt, facts)
	if err != nil {
		log.WithError(err).Warn("rebuttal synthesis failed, skipping interruption")
		return ChunkResult{Reason: ReasonSynthesisFailed}, nil
	}

	in, err := s.store.AppendInterruption(ctx, pitch.Interruption{
		SessionID:        sessionID,
		Timestamp:        s.now().UTC(),
		Category:         decision.Category,
		FounderStatement: excerpt,
		Response:         response,
		Facts:            facts,
	}, trigger.MaxInterruptions)
	if errors.Is(err, pitch.ErrInterruptionLimit) {
		return ChunkResult{Reason: trigger.ReasonLimitReached}, nil
	}
	if err != nil {
		return ChunkResult{}, fmt.Errorf("store interruption: %w", err)
	}

	log.WithField("interruption", in.ID).Info("interruption recorded")
	return ChunkResult{
		Interrupted:  true,
		Interruption: &in,
		VCResponse:   in.Response,
		Reason:       trigger.ReasonFired,
	}, nil
}

// recordTranscript stores transcript when it is longer than the stored one.
func (s *Service) recordTranscript(ctx context.Context, sessionID, transcript string) error {
	_, err := s.store.UpdateSession(ctx, sessionID, func(sess *pitch.Session) error {
		if sess.Status != pitch.StatusLive {
			return pitch.ErrSessionNotLive
		}
		if len([]rune(transcript)) > len([]rune(sess.Transcript)) {
			sess.Transcript = transcript
		}
		return nil
	})
	return err
}

func (s *Service) lookup(ctx context.Context, log *logrus.Entry, claim string, category pitch.Category) []pitch.Fact {
	if s.facts == nil {
		return nil
	}
	res := s.facts.FactCheck(ctx, claim, category)
	if !res.Success {
		log.WithField("error", res.Error).Info("fact lookup failed, using generic framing")
		return nil
	}
	return res.Facts
}

func (s *Service) rebut(ctx context.Context, category pitch.Category, excerpt string, facts []pitch.Fact) (string, error) {
	if s.rebuttals == nil {
		return "", errors.New("no rebuttal synthesizer")
	}
	response, err := s.rebuttals.Rebuttal(ctx, category, excerpt, facts)
	if err != nil {
		return "", err
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return "", errors.New("empty rebuttal")
	}
	return response, nil
}

// ClassifyReply labels the founder's reply to an interruption and stores
// the label on it. Only the first reply to an interruption is classified.
func (s *Service) ClassifyReply(ctx context.Context, interruptionID, reply string) (pitch.Interruption, error) {
	userID, err := s.ids.Resolve(ctx)
	if err != nil {
		return pitch.Interruption{}, err
	}
	if strings.TrimSpace(reply) == "" {
		return pitch.Interruption{}, fmt.Errorf("%w: reply is required", pitch.ErrInvalidInput)
	}

	in, err := s.store.GetInterruption(ctx, interruptionID)
	if err != nil {
		return pitch.Interruption{}, err
	}
	session, err := s.store.GetSession(ctx, in.SessionID)
	if err != nil || !session.OwnedBy(userID) {
		return pitch.Interruption{}, pitch.ErrInterruptionNotFound
	}
	if in.Reaction != "" {
		return pitch.Interruption{}, pitch.ErrReactionAlreadySet
	}

	reaction := pitch.Neutral
	if s.reactions != nil {
		reaction = s.reactions.ClassifyReaction(ctx, in.Response, reply)
	}

	updated, err := s.store.SetReaction(ctx, in.ID, reaction)
	if err != nil {
		return pitch.Interruption{}, err
	}
	s.log.WithFields(logrus.Fields{"session": in.SessionID, "interruption": in.ID, "reaction": reaction}).Info("founder reaction classified")
	return updated, nil
}
