// Package mentor runs the Socratic follow-up chats opened from a report.
package mentor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/vc-hotseat/backend/internal/identity"
	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
	"github.com/zhouzirui/vc-hotseat/backend/internal/service/ai"
)

// Responder produces the mentor's next turn.
type Responder interface {
	Mentor(ctx context.Context, in ai.MentorInput) (string, error)
}

// Service stores and advances mentorship chats.
type Service struct {
	store     pitch.Store
	ids       identity.Provider
	responder Responder
	now       func() time.Time
	log       *logrus.Entry
}

// NewService wires the mentor.
func NewService(store pitch.Store, ids identity.Provider, responder Responder) *Service {
	return &Service{
		store:     store,
		ids:       ids,
		responder: responder,
		now:       time.Now,
		log:       logrus.WithField("component", "mentor"),
	}
}

// Send appends message to the (session, focus) chat together with the
// mentor's reply. Nothing is stored when the model fails.
func (s *Service) Send(ctx context.Context, sessionID string, focus pitch.FocusArea, message string) (pitch.MentorshipChat, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return pitch.MentorshipChat{}, fmt.Errorf("%w: message is required", pitch.ErrInvalidInput)
	}

	userID, session, err := s.owned(ctx, sessionID)
	if err != nil {
		return pitch.MentorshipChat{}, err
	}
	if session.Report == nil {
		return pitch.MentorshipChat{}, pitch.ErrReportNotReady
	}

	var history []pitch.ChatMessage
	chat, err := s.store.GetChat(ctx, sessionID, focus)
	switch {
	case err == nil:
		history = chat.Messages
	case errors.Is(err, pitch.ErrChatNotFound):
	default:
		return pitch.MentorshipChat{}, err
	}

	if s.responder == nil {
		return pitch.MentorshipChat{}, ai.ErrModelUnavailable
	}
	asked := s.now().UTC()
	answer, err := s.responder.Mentor(ctx, ai.MentorInput{
		Report:  *session.Report,
		Focus:   focus,
		History: history,
		Message: message,
	})
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"session": sessionID, "focus": focus}).Warn("mentor reply failed")
		return pitch.MentorshipChat{}, err
	}

	return s.store.AppendChatMessages(ctx, sessionID, userID, focus,
		pitch.ChatMessage{Role: pitch.RoleUser, Content: message, Timestamp: asked},
		pitch.ChatMessage{Role: pitch.RoleAssistant, Content: answer, Timestamp: s.now().UTC()},
	)
}

// Chat returns the stored chat for a focus area.
func (s *Service) Chat(ctx context.Context, sessionID string, focus pitch.FocusArea) (pitch.MentorshipChat, error) {
	if _, _, err := s.owned(ctx, sessionID); err != nil {
		return pitch.MentorshipChat{}, err
	}
	return s.store.GetChat(ctx, sessionID, focus)
}

func (s *Service) owned(ctx context.Context, sessionID string) (string, pitch.Session, error) {
	userID, err := s.ids.Resolve(ctx)
	if err != nil {
		return "", pitch.Session{}, err
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", pitch.Session{}, err
	}
	if !session.OwnedBy(userID) {
		return "", pitch.Session{}, pitch.ErrSessionNotFound
	}
	return userID, session, nil
}
