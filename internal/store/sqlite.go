package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"

	_ "modernc.org/sqlite"
)

// SQLite persists the pitch model in a single database file.
type SQLite struct {
	db *sql.DB
}

var _ pitch.Store = (*SQLite)(nil)

// OpenSQLite opens (and migrates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer keeps the count-then-insert transactions serialized
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate(ctx context.Context) error {
	schema := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS sessions (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL,
		title          TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL,
		deck_ref       TEXT NOT NULL DEFAULT '',
		pitch_context  TEXT NOT NULL DEFAULT '',
		market_context TEXT NOT NULL DEFAULT '',
		start_time     INTEGER,
		end_time       INTEGER,
		transcript     TEXT NOT NULL DEFAULT '',
		report         TEXT,
		failure_reason TEXT NOT NULL DEFAULT '',
		created_at     INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS interruptions (
		id                TEXT PRIMARY KEY,
		session_id        TEXT NOT NULL REFERENCES sessions(id),
		seq               INTEGER NOT NULL,
		timestamp         INTEGER NOT NULL,
		category          TEXT NOT NULL,
		founder_statement TEXT NOT NULL DEFAULT '',
		response          TEXT NOT NULL DEFAULT '',
		reaction          TEXT NOT NULL DEFAULT '',
		facts             TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		user_id    TEXT NOT NULL,
		focus_area TEXT NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		timestamp  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, created_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_interruptions_seq ON interruptions(session_id, seq);
	CREATE INDEX IF NOT EXISTS idx_chat_session_focus ON chat_messages(session_id, focus_area);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const sessionColumns = `id, user_id, title, status, deck_ref, pitch_context, market_context,
	start_time, end_time, transcript, report, failure_reason, created_at`

func (s *SQLite) CreateSession(ctx context.Context, session pitch.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	args, err := sessionArgs(session)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO sessions ("+sessionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		args...,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLite) GetSession(ctx context.Context, id string) (pitch.Session, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	return scanSession(row)
}

func (s *SQLite) ListSessions(ctx context.Context, userID string, limit int) ([]pitch.Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?",
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]pitch.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *SQLite) UpdateSession(ctx context.Context, id string, mutate func(*pitch.Session) error) (pitch.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pitch.Session{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	current, err := scanSession(tx.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id))
	if err != nil {
		return pitch.Session{}, err
	}
	if err := mutate(&current); err != nil {
		return pitch.Session{}, err
	}
	current.ID = id

	args, err := sessionArgs(current)
	if err != nil {
		return pitch.Session{}, err
	}
	_, err = tx.ExecContext(ctx, `UPDATE sessions SET user_id = ?, title = ?, status = ?, deck_ref = ?,
		pitch_context = ?, market_context = ?, start_time = ?, end_time = ?, transcript = ?,
		report = ?, failure_reason = ?, created_at = ? WHERE id = ?`,
		append(args[1:], id)...,
	)
	if err != nil {
		return pitch.Session{}, fmt.Errorf("update session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return pitch.Session{}, fmt.Errorf("commit: %w", err)
	}
	return current, nil
}

const interruptionColumns = `id, session_id, timestamp, category, founder_statement, response, reaction, facts`

func (s *SQLite) AppendInterruption(ctx context.Context, in pitch.Interruption, limit int) (pitch.Interruption, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pitch.Interruption{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE id = ?", in.SessionID).Scan(&exists); err != nil {
		return pitch.Interruption{}, fmt.Errorf("check session: %w", err)
	}
	if exists == 0 {
		return pitch.Interruption{}, pitch.ErrSessionNotFound
	}

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM interruptions WHERE session_id = ?", in.SessionID).Scan(&count); err != nil {
		return pitch.Interruption{}, fmt.Errorf("count interruptions: %w", err)
	}
	if limit > 0 && count >= limit {
		return pitch.Interruption{}, pitch.ErrInterruptionLimit
	}

	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}
	facts, err := json.Marshal(nonNilFacts(in.Facts))
	if err != nil {
		return pitch.Interruption{}, fmt.Errorf("encode facts: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO interruptions (id, session_id, seq, timestamp, category, founder_statement, response, reaction, facts) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		in.ID, in.SessionID, count, toMillis(in.Timestamp), string(in.Category),
		in.FounderStatement, in.Response, string(in.Reaction), string(facts),
	)
	if err != nil {
		return pitch.Interruption{}, fmt.Errorf("insert interruption: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return pitch.Interruption{}, fmt.Errorf("commit: %w", err)
	}
	in.Timestamp = fromMillis(toMillis(in.Timestamp))
	return in, nil
}

func (s *SQLite) ListInterruptions(ctx context.Context, sessionID string) ([]pitch.Interruption, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+interruptionColumns+" FROM interruptions WHERE session_id = ? ORDER BY seq ASC",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query interruptions: %w", err)
	}
	defer rows.Close()

	out := make([]pitch.Interruption, 0)
	for rows.Next() {
		in, err := scanInterruption(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *SQLite) GetInterruption(ctx context.Context, id string) (pitch.Interruption, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+interruptionColumns+" FROM interruptions WHERE id = ?", id)
	return scanInterruption(row)
}

func (s *SQLite) SetReaction(ctx context.Context, interruptionID string, reaction pitch.Reaction) (pitch.Interruption, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE interruptions SET reaction = ? WHERE id = ? AND reaction = ''", string(reaction), interruptionID)
	if err != nil {
		return pitch.Interruption{}, fmt.Errorf("update reaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// either missing or already labelled
		if _, err := s.GetInterruption(ctx, interruptionID); err != nil {
			return pitch.Interruption{}, err
		}
		return pitch.Interruption{}, pitch.ErrReactionAlreadySet
	}
	return s.GetInterruption(ctx, interruptionID)
}

func (s *SQLite) AppendChatMessages(ctx context.Context, sessionID, userID string, focus pitch.FocusArea, messages ...pitch.ChatMessage) (pitch.MentorshipChat, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pitch.MentorshipChat{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE id = ?", sessionID).Scan(&exists); err != nil {
		return pitch.MentorshipChat{}, fmt.Errorf("check session: %w", err)
	}
	if exists == 0 {
		return pitch.MentorshipChat{}, pitch.ErrSessionNotFound
	}

	now := time.Now().UTC()
	for _, msg := range messages {
		ts := msg.Timestamp
		if ts.IsZero() {
			ts = now
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO chat_messages (session_id, user_id, focus_area, role, content, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
			sessionID, userID, string(focus), string(msg.Role), msg.Content, toMillis(ts),
		)
		if err != nil {
			return pitch.MentorshipChat{}, fmt.Errorf("insert chat message: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return pitch.MentorshipChat{}, fmt.Errorf("commit: %w", err)
	}
	return s.GetChat(ctx, sessionID, focus)
}

func (s *SQLite) GetChat(ctx context.Context, sessionID string, focus pitch.FocusArea) (pitch.MentorshipChat, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, role, content, timestamp FROM chat_messages WHERE session_id = ? AND focus_area = ? ORDER BY id ASC",
		sessionID, string(focus),
	)
	if err != nil {
		return pitch.MentorshipChat{}, fmt.Errorf("query chat: %w", err)
	}
	defer rows.Close()

	chat := pitch.MentorshipChat{SessionID: sessionID, FocusArea: focus}
	for rows.Next() {
		var (
			userID, role, content string
			ts                    int64
		)
		if err := rows.Scan(&userID, &role, &content, &ts); err != nil {
			return pitch.MentorshipChat{}, fmt.Errorf("scan chat message: %w", err)
		}
		if chat.UserID == "" {
			chat.UserID = userID
		}
		chat.Messages = append(chat.Messages, pitch.ChatMessage{
			Role:      pitch.Role(role),
			Content:   content,
			Timestamp: fromMillis(ts),
		})
	}
	if err := rows.Err(); err != nil {
		return pitch.MentorshipChat{}, err
	}
	if len(chat.Messages) == 0 {
		return pitch.MentorshipChat{}, pitch.ErrChatNotFound
	}
	return chat, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (pitch.Session, error) {
	var (
		session            pitch.Session
		status             string
		startTime, endTime sql.NullInt64
		report             sql.NullString
		createdAt          int64
	)
	err := row.Scan(&session.ID, &session.UserID, &session.Title, &status, &session.DeckRef,
		&session.PitchContext, &session.MarketContext, &startTime, &endTime, &session.Transcript,
		&report, &session.FailureReason, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return pitch.Session{}, pitch.ErrSessionNotFound
	}
	if err != nil {
		return pitch.Session{}, fmt.Errorf("scan session: %w", err)
	}

	session.Status = pitch.Status(status)
	session.CreatedAt = fromMillis(createdAt)
	if startTime.Valid {
		t := fromMillis(startTime.Int64)
		session.StartTime = &t
	}
	if endTime.Valid {
		t := fromMillis(endTime.Int64)
		session.EndTime = &t
	}
	if report.Valid && report.String != "" {
		var r pitch.Report
		if err := json.Unmarshal([]byte(report.String), &r); err != nil {
			return pitch.Session{}, fmt.Errorf("decode report: %w", err)
		}
		session.Report = &r
	}
	return session, nil
}

func sessionArgs(s pitch.Session) ([]any, error) {
	var report sql.NullString
	if s.Report != nil {
		data, err := json.Marshal(s.Report)
		if err != nil {
			return nil, fmt.Errorf("encode report: %w", err)
		}
		report = sql.NullString{String: string(data), Valid: true}
	}
	return []any{
		s.ID, s.UserID, s.Title, string(s.Status), s.DeckRef, s.PitchContext, s.MarketContext,
		nullMillis(s.StartTime), nullMillis(s.EndTime), s.Transcript, report, s.FailureReason,
		toMillis(s.CreatedAt),
	}, nil
}

func scanInterruption(row scanner) (pitch.Interruption, error) {
	var (
		in                 pitch.Interruption
		ts                 int64
		category, reaction string
		facts              string
	)
	err := row.Scan(&in.ID, &in.SessionID, &ts, &category, &in.FounderStatement, &in.Response, &reaction, &facts)
	if errors.Is(err, sql.ErrNoRows) {
		return pitch.Interruption{}, pitch.ErrInterruptionNotFound
	}
	if err != nil {
		return pitch.Interruption{}, fmt.Errorf("scan interruption: %w", err)
	}
	in.Timestamp = fromMillis(ts)
	in.Category = pitch.Category(category)
	in.Reaction = pitch.Reaction(reaction)
	if facts != "" {
		if err := json.Unmarshal([]byte(facts), &in.Facts); err != nil {
			return pitch.Interruption{}, fmt.Errorf("decode facts: %w", err)
		}
	}
	if len(in.Facts) == 0 {
		in.Facts = nil
	}
	return in, nil
}

func nonNilFacts(facts []pitch.Fact) []pitch.Fact {
	if facts == nil {
		return []pitch.Fact{}
	}
	return facts
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}
