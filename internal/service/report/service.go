// Package report turns a finished session into its scored report card.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/vc-hotseat/backend/internal/analysis/scoring"
	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
	"github.com/zhouzirui/vc-hotseat/backend/internal/service/ai"
)

// Synthesizer produces the model's raw report.
type Synthesizer interface {
	SynthesizeReport(ctx context.Context, in ai.ReportInput) (pitch.Report, error)
}

// saveTimeout bounds the report write, which runs even after the
// generation context expired.
const saveTimeout = 5 * time.Second

// Service generates and persists report cards.
type Service struct {
	store pitch.Store
	synth Synthesizer
	now   func() time.Time
	log   *logrus.Entry
}

// NewService wires the generator. synth may be nil, in which case every
// report is the approximate fallback.
func NewService(store pitch.Store, synth Synthesizer) *Service {
	return &Service{
		store: store,
		synth: synth,
		now:   time.Now,
		log:   logrus.WithField("component", "report"),
	}
}

// Generate builds the report for sessionID and stores it on the session.
// Model failures degrade to the fallback report; only storage errors are
// returned.
func (s *Service) Generate(ctx context.Context, sessionID string) (pitch.Report, error) {
	log := s.log.WithField("session", sessionID)

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return pitch.Report{}, fmt.Errorf("load session: %w", err)
	}
	interruptions, err := s.store.ListInterruptions(ctx, sessionID)
	if err != nil {
		return pitch.Report{}, fmt.Errorf("load interruptions: %w", err)
	}

	log.WithFields(logrus.Fields{
		"transcript_len": len([]rune(session.Transcript)),
		"interruptions":  len(interruptions),
	}).Info("generating report")

	report, err := s.synthesize(ctx, session, interruptions)
	if err != nil {
		log.WithError(err).Warn("report synthesis failed, storing fallback")
		report = scoring.Fallback(strings.TrimSpace(session.Transcript) != "", strings.TrimSpace(session.PitchContext) != "")
	} else {
		report = scoring.Normalize(report, interruptions)
	}
	report.GeneratedAt = s.now().UTC()

	// A timed-out or cancelled synthesis still has to leave a report behind.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if _, err := s.store.UpdateSession(saveCtx, sessionID, func(sess *pitch.Session) error {
		r := report
		sess.Report = &r
		return nil
	}); err != nil {
		return pitch.Report{}, fmt.Errorf("save report: %w", err)
	}

	log.WithFields(logrus.Fields{
		"overall":     report.OverallScore,
		"delta":       report.CoachabilityDelta,
		"approximate": report.Approximate,
	}).Info("report stored")
	return report, nil
}

func (s *Service) synthesize(ctx context.Context, session pitch.Session, interruptions []pitch.Interruption) (pitch.Report, error) {
	if s.synth == nil {
		return pitch.Report{}, ai.ErrModelUnavailable
	}
	return s.synth.SynthesizeReport(ctx, ai.ReportInput{
		PitchContext:  session.PitchContext,
		Transcript:    session.Transcript,
		Interruptions: interruptions,
	})
}
