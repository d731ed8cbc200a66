package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// FeatureSuggestion is a stored answer to a feature placement request.
type FeatureSuggestion struct {
	ID          int64
	RepoName    string
	Description string
	Suggestions string
	CreatedAt   time.Time
}

// StoreFeatureSuggestion records suggestions made for a repository and
// returns the row id. The repository must already be stored.
func (s *Store) StoreFeatureSuggestion(ctx context.Context, repoName, description, suggestions string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var repoID int64
	err := s.conn.QueryRowContext(ctx, "SELECT id FROM repositories WHERE repo_name = ?", repoName).Scan(&repoID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("store feature for %s: %w", repoName, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("look up repository %s: %w", repoName, err)
	}

	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO features (repo_id, feature_description, suggestions, created_at)
		VALUES (?, ?, ?, ?)
	`, repoID, description, suggestions, s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("insert feature: %w", err)
	}
	return res.LastInsertId()
}

// ListFeatureSuggestions returns a repository's suggestions, oldest first.
func (s *Store) ListFeatureSuggestions(ctx context.Context, repoName string) ([]FeatureSuggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.QueryContext(ctx, `
		SELECT f.id, f.feature_description, f.suggestions, f.created_at
		FROM features f JOIN repositories r ON r.id = f.repo_id
		WHERE r.repo_name = ?
		ORDER BY f.created_at ASC, f.id ASC
	`, repoName)
	if err != nil {
		return nil, fmt.Errorf("list features: %w", err)
	}
	defer rows.Close()

	var out []FeatureSuggestion
	for rows.Next() {
		f := FeatureSuggestion{RepoName: repoName}
		var created int64
		if err := rows.Scan(&f.ID, &f.Description, &f.Suggestions, &created); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		f.CreatedAt = time.Unix(0, created)
		out = append(out, f)
	}
	return out, rows.Err()
}
