// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session holds conversation state: the SQLite-backed session store
// and the orchestrator that drives one conversational turn end-to-end.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/medassist-engine/pkg/types"
)

const (
	dbFile = "sessions.db"

	// titleRunes bounds a session title derived from its first query.
	titleRunes = 50
)

// Patch is a partial session update. Nil fields are left unchanged.
type Patch struct {
	Title *string
}

// Store persists sessions and their conversation turns.
type Store struct {
	db *sql.DB

	// now is replaced in tests.
	now func() time.Time
}

// NewStore opens or creates the session database at dataDir/sessions.db and
// creates the schema if it does not exist.
func NewStore(cfg types.SessionConfig) (*Store, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			message_count INTEGER NOT NULL DEFAULT 0,
			last_message TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, updated_at DESC)`,
		`CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			query_text TEXT NOT NULL,
			query_at TEXT NOT NULL,
			response_text TEXT NOT NULL,
			response_at TEXT NOT NULL,
			sources TEXT NOT NULL DEFAULT '[]',
			file_references TEXT NOT NULL DEFAULT '[]',
			query_type TEXT NOT NULL DEFAULT 'general',
			processing_time_ms INTEGER,
			confidence_score REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, query_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// CreateSession creates a session for the user. An empty title defaults to
// "New Conversation" until the first turn supplies one.
func (s *Store) CreateSession(ctx context.Context, userID, title string) (types.Session, error) {
	if userID == "" {
		return types.Session{}, fmt.Errorf("user id is required")
	}
	if title == "" {
		title = "New Conversation"
	}

	now := s.now().UTC()
	session := types.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.Title,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return types.Session{}, fmt.Errorf("creating session: %w", err)
	}
	return session, nil
}

// GetSession returns one session owned by the user.
func (s *Store) GetSession(ctx context.Context, userID, sessionID string) (types.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at, message_count, last_message
		FROM sessions WHERE id = ? AND user_id = ?`, sessionID, userID)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return types.Session{}, fmt.Errorf("session %s not found", sessionID)
	}
	if err != nil {
		return types.Session{}, fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	return session, nil
}

// ListSessions returns the user's sessions, most recently updated first.
func (s *Store) ListSessions(ctx context.Context, userID string) ([]types.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at, message_count, last_message
		FROM sessions WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]types.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// UpdateSession applies a partial update to a session owned by the user.
func (s *Store) UpdateSession(ctx context.Context, userID, sessionID string, patch Patch) error {
	if patch.Title == nil {
		return nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET title = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		*patch.Title, s.now().UTC().Format(time.RFC3339Nano), sessionID, userID)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", sessionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s not found", sessionID)
	}
	return nil
}

// DeleteSession removes a session and all of its turns.
func (s *Store) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ? AND user_id = ?`, sessionID, userID); err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	return nil
}

// AppendTurn records one query/response exchange on a session. The session's
// updatedAt, messageCount, and lastMessage summary move with every append;
// the first append also titles the session from its query text.
func (s *Store) AppendTurn(ctx context.Context, userID, sessionID string, query types.TurnQuery, response types.TurnResponse) (types.ConversationTurn, error) {
	session, err := s.GetSession(ctx, userID, sessionID)
	if err != nil {
		return types.ConversationTurn{}, err
	}

	turn := types.ConversationTurn{
		SessionID: sessionID,
		TurnID:    uuid.NewString(),
		Query:     query,
		Response:  response,
	}
	if turn.Query.Timestamp.IsZero() {
		turn.Query.Timestamp = s.now().UTC()
	}
	if turn.Response.Timestamp.IsZero() {
		turn.Response.Timestamp = s.now().UTC()
	}

	sources, err := json.Marshal(orEmpty(response.Sources))
	if err != nil {
		return types.ConversationTurn{}, fmt.Errorf("encoding sources: %w", err)
	}
	fileRefs, err := json.Marshal(orEmptyRefs(response.FileReferences))
	if err != nil {
		return types.ConversationTurn{}, fmt.Errorf("encoding file references: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.ConversationTurn{}, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (id, session_id, query_text, query_at, response_text, response_at, sources, file_references, query_type, processing_time_ms, confidence_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.TurnID, sessionID,
		turn.Query.Text, turn.Query.Timestamp.Format(time.RFC3339Nano),
		turn.Response.Text, turn.Response.Timestamp.Format(time.RFC3339Nano),
		string(sources), string(fileRefs), string(response.QueryType),
		response.ProcessingTimeMs, response.ConfidenceScore,
	)
	if err != nil {
		return types.ConversationTurn{}, fmt.Errorf("inserting turn: %w", err)
	}

	title := session.Title
	if session.MessageCount == 0 {
		title = deriveTitle(query.Text)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET title = ?, updated_at = ?, message_count = message_count + 1, last_message = ? WHERE id = ?`,
		title, s.now().UTC().Format(time.RFC3339Nano), summarize(query.Text), sessionID)
	if err != nil {
		return types.ConversationTurn{}, fmt.Errorf("updating session %s: %w", sessionID, err)
	}

	if err := tx.Commit(); err != nil {
		return types.ConversationTurn{}, fmt.Errorf("committing turn: %w", err)
	}
	return turn, nil
}

// ListTurns returns a session's turns in chronological order. A limit > 0
// returns the most recent turns, still oldest-first.
func (s *Store) ListTurns(ctx context.Context, userID, sessionID string, limit int) ([]types.ConversationTurn, error) {
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	query := `SELECT id, query_text, query_at, response_text, response_at, sources, file_references, query_type, processing_time_ms, confidence_score
		FROM turns WHERE session_id = ? ORDER BY query_at`
	args := []any{sessionID}
	if limit > 0 {
		query = `SELECT * FROM (` + query + ` DESC LIMIT ?) ORDER BY query_at`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	defer rows.Close()

	turns := make([]types.ConversationTurn, 0)
	for rows.Next() {
		var (
			turn              types.ConversationTurn
			queryAt, respAt   string
			sources, fileRefs string
		)
		turn.SessionID = sessionID
		if err := rows.Scan(&turn.TurnID, &turn.Query.Text, &queryAt,
			&turn.Response.Text, &respAt, &sources, &fileRefs,
			&turn.Response.QueryType, &turn.Response.ProcessingTimeMs,
			&turn.Response.ConfidenceScore); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turn.Query.Timestamp, _ = time.Parse(time.RFC3339Nano, queryAt)
		turn.Response.Timestamp, _ = time.Parse(time.RFC3339Nano, respAt)
		if err := json.Unmarshal([]byte(sources), &turn.Response.Sources); err != nil {
			return nil, fmt.Errorf("decoding sources: %w", err)
		}
		if err := json.Unmarshal([]byte(fileRefs), &turn.Response.FileReferences); err != nil {
			return nil, fmt.Errorf("decoding file references: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (types.Session, error) {
	var (
		session              types.Session
		createdAt, updatedAt string
	)
	if err := row.Scan(&session.ID, &session.UserID, &session.Title,
		&createdAt, &updatedAt, &session.MessageCount, &session.LastMessage); err != nil {
		return types.Session{}, err
	}
	session.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	session.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return session, nil
}

// deriveTitle builds a session title from its first query, truncated to
// titleRunes runes with a trailing ellipsis when cut.
func deriveTitle(queryText string) string {
	runes := []rune(queryText)
	if len(runes) <= titleRunes {
		return queryText
	}
	return string(runes[:titleRunes]) + "..."
}

// summarize bounds the last-message preview stored on the session row.
func summarize(text string) string {
	const maxRunes = 120
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "..."
}

func orEmpty(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func orEmptyRefs(list []types.FileReference) []types.FileReference {
	if list == nil {
		return []types.FileReference{}
	}
	return list
}
