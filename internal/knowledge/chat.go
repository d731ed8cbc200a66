package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ChatMessage is one turn of a conversation about a repository.
type ChatMessage struct {
	RepoName  string
	SessionID string
	MessageID string
	Role      string
	Content   string
	Timestamp time.Time
	Metadata  map[string]interface{}
}

// ChatSession summarizes the messages of one session.
type ChatSession struct {
	RepoName     string
	SessionID    string
	FirstMessage time.Time
	LastMessage  time.Time
	MessageCount int
}

// StoreChatMessage appends a message. A zero Timestamp is stamped with the
// current time.
func (s *Store) StoreChatMessage(ctx context.Context, msg ChatMessage) error {
	if msg.Metadata == nil {
		msg.Metadata = map[string]interface{}{}
	}
	meta, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO chat_history (repo_name, session_id, message_id, role, content, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.RepoName, msg.SessionID, msg.MessageID, msg.Role, msg.Content, msg.Timestamp.UnixNano(), string(meta))
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// GetChatHistory returns a repository's messages in order. An empty
// sessionID returns every session.
func (s *Store) GetChatHistory(ctx context.Context, repoName, sessionID string) ([]ChatMessage, error) {
	query := `SELECT session_id, message_id, role, content, timestamp, metadata
		FROM chat_history WHERE repo_name = ?`
	args := []any{repoName}
	if sessionID != "" {
		query += " AND session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY timestamp ASC, id ASC"

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		m := ChatMessage{RepoName: repoName}
		var ts int64
		var meta *string
		if err := rows.Scan(&m.SessionID, &m.MessageID, &m.Role, &m.Content, &ts, &meta); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.Timestamp = time.Unix(0, ts)
		m.Metadata = map[string]interface{}{}
		if meta != nil && *meta != "" {
			if err := json.Unmarshal([]byte(*meta), &m.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ClearChatHistory deletes a repository's messages, or one session's when
// sessionID is set, and returns how many were removed.
func (s *Store) ClearChatHistory(ctx context.Context, repoName, sessionID string) (int64, error) {
	query := "DELETE FROM chat_history WHERE repo_name = ?"
	args := []any{repoName}
	if sessionID != "" {
		query += " AND session_id = ?"
		args = append(args, sessionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear chat history: %w", err)
	}
	return res.RowsAffected()
}

// ListChatSessions summarizes sessions, most recently active first. An
// empty repoName lists sessions of every repository.
func (s *Store) ListChatSessions(ctx context.Context, repoName string) ([]ChatSession, error) {
	query := `SELECT repo_name, session_id, MIN(timestamp), MAX(timestamp), COUNT(*)
		FROM chat_history`
	var args []any
	if repoName != "" {
		query += " WHERE repo_name = ?"
		args = append(args, repoName)
	}
	query += " GROUP BY repo_name, session_id ORDER BY MAX(timestamp) DESC"

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chat sessions: %w", err)
	}
	defer rows.Close()

	var out []ChatSession
	for rows.Next() {
		var cs ChatSession
		var first, last int64
		if err := rows.Scan(&cs.RepoName, &cs.SessionID, &first, &last, &cs.MessageCount); err != nil {
			return nil, fmt.Errorf("scan chat session: %w", err)
		}
		cs.FirstMessage = time.Unix(0, first)
		cs.LastMessage = time.Unix(0, last)
		out = append(out, cs)
	}
	return out, rows.Err()
}
