package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
)

type chatKey struct {
	sessionID string
	focus     pitch.FocusArea
}

// Memory keeps everything in process maps. Suitable for development and tests.
type Memory struct {
	mu            sync.RWMutex
	sessions      map[string]pitch.Session
	interruptions map[string][]pitch.Interruption
	bySessionOf   map[string]string
	chats         map[chatKey]pitch.MentorshipChat
}

var _ pitch.Store = (*Memory)(nil)

// NewMemory bootstraps an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions:      make(map[string]pitch.Session),
		interruptions: make(map[string][]pitch.Interruption),
		bySessionOf:   make(map[string]string),
		chats:         make(map[chatKey]pitch.MentorshipChat),
	}
}

func (m *Memory) CreateSession(_ context.Context, session pitch.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = cloneSession(session)
	m.interruptions[session.ID] = make([]pitch.Interruption, 0, 4)
	return nil
}

func (m *Memory) GetSession(_ context.Context, id string) (pitch.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return pitch.Session{}, pitch.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

func (m *Memory) ListSessions(_ context.Context, userID string, limit int) ([]pitch.Session, error) {
	m.mu.RLock()
	out := make([]pitch.Session, 0)
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, cloneSession(s))
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) UpdateSession(_ context.Context, id string, mutate func(*pitch.Session) error) (pitch.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.sessions[id]
	if !ok {
		return pitch.Session{}, pitch.ErrSessionNotFound
	}
	working := cloneSession(current)
	if err := mutate(&working); err != nil {
		return pitch.Session{}, err
	}
	working.ID = current.ID
	m.sessions[id] = cloneSession(working)
	return working, nil
}

func (m *Memory) AppendInterruption(_ context.Context, in pitch.Interruption, limit int) (pitch.Interruption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[in.SessionID]; !ok {
		return pitch.Interruption{}, pitch.ErrSessionNotFound
	}
	existing := m.interruptions[in.SessionID]
	if limit > 0 && len(existing) >= limit {
		return pitch.Interruption{}, pitch.ErrInterruptionLimit
	}

	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}
	in.Facts = append([]pitch.Fact(nil), in.Facts...)

	m.interruptions[in.SessionID] = append(existing, in)
	m.bySessionOf[in.ID] = in.SessionID
	return in, nil
}

func (m *Memory) ListInterruptions(_ context.Context, sessionID string) ([]pitch.Interruption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items, ok := m.interruptions[sessionID]
	if !ok {
		return nil, pitch.ErrSessionNotFound
	}
	copied := make([]pitch.Interruption, len(items))
	copy(copied, items)
	return copied, nil
}

func (m *Memory) GetInterruption(_ context.Context, id string) (pitch.Interruption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, err := m.locate(id)
	if err != nil {
		return pitch.Interruption{}, err
	}
	return m.interruptions[m.bySessionOf[id]][idx], nil
}

func (m *Memory) SetReaction(_ context.Context, interruptionID string, reaction pitch.Reaction) (pitch.Interruption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := m.locate(interruptionID)
	if err != nil {
		return pitch.Interruption{}, err
	}
	sessionID := m.bySessionOf[interruptionID]
	if m.interruptions[sessionID][idx].Reaction != "" {
		return pitch.Interruption{}, pitch.ErrReactionAlreadySet
	}
	m.interruptions[sessionID][idx].Reaction = reaction
	return m.interruptions[sessionID][idx], nil
}

// locate must be called with mu held.
func (m *Memory) locate(id string) (int, error) {
	sessionID, ok := m.bySessionOf[id]
	if !ok {
		return 0, pitch.ErrInterruptionNotFound
	}
	for i, in := range m.interruptions[sessionID] {
		if in.ID == id {
			return i, nil
		}
	}
	return 0, pitch.ErrInterruptionNotFound
}

func (m *Memory) AppendChatMessages(_ context.Context, sessionID, userID string, focus pitch.FocusArea, messages ...pitch.ChatMessage) (pitch.MentorshipChat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return pitch.MentorshipChat{}, pitch.ErrSessionNotFound
	}

	key := chatKey{sessionID: sessionID, focus: focus}
	chat, ok := m.chats[key]
	if !ok {
		chat = pitch.MentorshipChat{SessionID: sessionID, UserID: userID, FocusArea: focus}
	}
	now := time.Now().UTC()
	for _, msg := range messages {
		if msg.Timestamp.IsZero() {
			msg.Timestamp = now
		}
		chat.Messages = append(chat.Messages, msg)
	}
	m.chats[key] = chat
	return cloneChat(chat), nil
}

func (m *Memory) GetChat(_ context.Context, sessionID string, focus pitch.FocusArea) (pitch.MentorshipChat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chat, ok := m.chats[chatKey{sessionID: sessionID, focus: focus}]
	if !ok {
		return pitch.MentorshipChat{}, pitch.ErrChatNotFound
	}
	return cloneChat(chat), nil
}

func cloneSession(s pitch.Session) pitch.Session {
	if s.StartTime != nil {
		t := *s.StartTime
		s.StartTime = &t
	}
	if s.EndTime != nil {
		t := *s.EndTime
		s.EndTime = &t
	}
	if s.Report != nil {
		r := *s.Report
		s.Report = &r
	}
	return s
}

func cloneChat(c pitch.MentorshipChat) pitch.MentorshipChat {
	c.Messages = append([]pitch.ChatMessage(nil), c.Messages...)
	return c
}
