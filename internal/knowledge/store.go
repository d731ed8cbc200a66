// Package knowledge is the SQLite store of analyzed repositories, the
// feature suggestions made for them and the chat history about them.
package knowledge

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

// ErrNotFound is returned when a repository is not in the store.
var ErrNotFound = errors.New("repository not found")

// Store wraps the knowledge database. It implements capability.KnowledgeStore.
type Store struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
	now  func() time.Time
}

// DefaultPath returns the knowledge database path under root.
func DefaultPath(root string) string {
	return filepath.Join(root, ".spoc", "knowledge.db")
}

// Open opens the database at path, creating parent directories and
// applying pending migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// foreign_keys is per connection, so it goes in the DSN for every pooled one.
	conn, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &Store{conn: conn, path: path, now: time.Now}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the path to the database file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	if err := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Repositories},
		{2, migrationV2Features},
		{3, migrationV3ChatHistory},
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}
	return nil
}

const migrationV1Repositories = `
CREATE TABLE IF NOT EXISTS repositories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	repo_name TEXT NOT NULL UNIQUE,
	repo_hash TEXT NOT NULL,
	file_structure TEXT NOT NULL,
	file_contents TEXT NOT NULL,
	analysis TEXT NOT NULL,
	mermaid_diagram TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_repositories_created ON repositories(created_at);
`

const migrationV2Features = `
CREATE TABLE IF NOT EXISTS features (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	repo_id INTEGER NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
	feature_description TEXT NOT NULL,
	suggestions TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_features_repo ON features(repo_id);
`

const migrationV3ChatHistory = `
CREATE TABLE IF NOT EXISTS chat_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	repo_name TEXT NOT NULL,
	session_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_chat_repo_session ON chat_history(repo_name, session_id);
`

// RepoHash fingerprints repository data: MD5 over its JSON encoding, which
// orders map keys.
func RepoHash(data models.RepositoryData) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal repository data: %w", err)
	}
	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:]), nil
}

// StoreRepository inserts or replaces a repository's knowledge and returns
// its content hash. Re-storing keeps the row id so feature suggestions
// stay attached.
func (s *Store) StoreRepository(ctx context.Context, name string, data models.RepositoryData, analysis map[string]interface{}, mermaid string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("store repository: empty name")
	}
	hash, err := RepoHash(data)
	if err != nil {
		return "", err
	}
	if data == nil {
		data = models.RepositoryData{}
	}
	structure, err := json.Marshal(data.Paths())
	if err != nil {
		return "", fmt.Errorf("marshal file structure: %w", err)
	}
	contents, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal file contents: %w", err)
	}
	if analysis == nil {
		analysis = map[string]interface{}{}
	}
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return "", fmt.Errorf("marshal analysis: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO repositories (repo_name, repo_hash, file_structure, file_contents, analysis, mermaid_diagram, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_name) DO UPDATE SET
			repo_hash = excluded.repo_hash,
			file_structure = excluded.file_structure,
			file_contents = excluded.file_contents,
			analysis = excluded.analysis,
			mermaid_diagram = excluded.mermaid_diagram,
			created_at = excluded.created_at
	`, name, hash, string(structure), string(contents), string(analysisJSON), mermaid, s.now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("store repository %s: %w", name, err)
	}
	return hash, nil
}

// GetRepositoryKnowledge returns everything stored for name. Unknown
// repositories yield an empty value and no error.
func (s *Store) GetRepositoryKnowledge(ctx context.Context, name string) (*models.RepositoryKnowledge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.conn.QueryRowContext(ctx, `
		SELECT file_structure, file_contents, analysis, mermaid_diagram
		FROM repositories WHERE repo_name = ?
	`, name)
	var structure, contents, analysis, mermaid string
	err := row.Scan(&structure, &contents, &analysis, &mermaid)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.RepositoryKnowledge{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", name, err)
	}
	return decodeKnowledge(structure, contents, analysis, mermaid)
}

func decodeKnowledge(structure, contents, analysis, mermaid string) (*models.RepositoryKnowledge, error) {
	kn := &models.RepositoryKnowledge{MermaidDiagram: mermaid}
	if err := json.Unmarshal([]byte(structure), &kn.FileStructure); err != nil {
		return nil, fmt.Errorf("decode file structure: %w", err)
	}
	if err := json.Unmarshal([]byte(contents), &kn.FileContents); err != nil {
		return nil, fmt.Errorf("decode file contents: %w", err)
	}
	if err := json.Unmarshal([]byte(analysis), &kn.Analysis); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return kn, nil
}

// HasRepository reports whether name is stored.
func (s *Store) HasRepository(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM repositories WHERE repo_name = ?", name).Scan(&count); err != nil {
		return false, fmt.Errorf("check repository %s: %w", name, err)
	}
	return count > 0, nil
}

// ListRepositories returns stored repositories, most recently analyzed first.
func (s *Store) ListRepositories(ctx context.Context) ([]models.RepositorySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.QueryContext(ctx, "SELECT repo_name, created_at FROM repositories ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var out []models.RepositorySummary
	for rows.Next() {
		var name string
		var created int64
		if err := rows.Scan(&name, &created); err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		out = append(out, models.RepositorySummary{Name: name, AnalyzedAt: time.Unix(0, created)})
	}
	return out, rows.Err()
}

// GetAllRepositoriesKnowledge returns the knowledge of every stored repository.
func (s *Store) GetAllRepositoriesKnowledge(ctx context.Context) (map[string]*models.RepositoryKnowledge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.QueryContext(ctx, `
		SELECT repo_name, file_structure, file_contents, analysis, mermaid_diagram
		FROM repositories ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query repositories: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*models.RepositoryKnowledge)
	for rows.Next() {
		var name, structure, contents, analysis, mermaid string
		if err := rows.Scan(&name, &structure, &contents, &analysis, &mermaid); err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		kn, err := decodeKnowledge(structure, contents, analysis, mermaid)
		if err != nil {
			return nil, fmt.Errorf("repository %s: %w", name, err)
		}
		out[name] = kn
	}
	return out, rows.Err()
}

// DeleteRepository removes a repository and its feature suggestions.
func (s *Store) DeleteRepository(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.conn.ExecContext(ctx, "DELETE FROM repositories WHERE repo_name = ?", name)
	if err != nil {
		return fmt.Errorf("delete repository %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
