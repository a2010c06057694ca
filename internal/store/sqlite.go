// Package store provides SQLite persistence for articles and cluster anchors.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/briahnloo/source-of-truth/internal/cluster"
	"github.com/briahnloo/source-of-truth/internal/logging"
	"github.com/briahnloo/source-of-truth/internal/model"
)

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex // Protects all database operations
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for better concurrent read performance (file-based DBs only).
func Open(dbPath string) (*Store, error) {
	// Build connection string based on database type
	connStr := dbPath
	if dbPath == ":memory:" {
		// For in-memory databases, use shared cache mode so all connections
		// in the pool see the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// For in-memory databases, limit to 1 connection to avoid issues
	// with multiple connections getting different databases
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Enable WAL mode for file-based databases (not :memory:)
	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

// createTables creates the required tables and indexes if they don't exist.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		title TEXT NOT NULL,
		summary TEXT,
		published_at DATETIME NOT NULL,
		language TEXT,
		entities TEXT,  -- JSON array of entity strings
		cluster_id TEXT DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at DESC);
	CREATE INDEX IF NOT EXISTS idx_articles_cluster ON articles(cluster_id);

	CREATE TABLE IF NOT EXISTS cluster_anchors (
		cluster_id TEXT PRIMARY KEY,
		embedding TEXT NOT NULL,  -- JSON array of floats
		member_count INTEGER NOT NULL,
		last_updated DATETIME NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
// Thread-safe: acquires write lock to prevent closing during in-flight operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SaveArticles stores articles, returning count of new rows inserted.
// Duplicates (by id) are silently ignored via INSERT OR IGNORE.
func (s *Store) SaveArticles(articles []model.Article) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO articles (id, source, title, summary, published_at, language, entities, cluster_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, a := range articles {
		entities, err := json.Marshal(a.Entities)
		if err != nil {
			entities = []byte("[]")
		}

		res, err := stmt.Exec(a.ID, a.Source, a.Title, a.Summary, a.Published, a.Language, string(entities), a.ClusterID)
		if err != nil {
			logging.Warn("Article insert failed", "id", a.ID, "error", err)
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// ArticlesInCluster returns all articles assigned to a cluster.
func (s *Store) ArticlesInCluster(clusterID string) ([]model.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, source, title, summary, published_at, language, entities, cluster_id
		FROM articles
		WHERE cluster_id = ?
		ORDER BY published_at ASC
	`, clusterID)
	if err != nil {
		return nil, fmt.Errorf("query cluster members: %w", err)
	}
	defer rows.Close()

	return scanArticles(rows)
}

// ArticlesSince returns articles published after the cutoff.
func (s *Store) ArticlesSince(cutoff time.Time) ([]model.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, source, title, summary, published_at, language, entities, cluster_id
		FROM articles
		WHERE published_at > ?
		ORDER BY published_at ASC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query articles since: %w", err)
	}
	defer rows.Close()

	return scanArticles(rows)
}

// AssignCluster writes a cluster assignment back to an article.
func (s *Store) AssignCluster(articleID, clusterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE articles SET cluster_id = ? WHERE id = ?`, clusterID, articleID)
	if err != nil {
		return fmt.Errorf("assign cluster: %w", err)
	}
	return nil
}

// ClusterSummary is one row of the per-cluster member count listing.
type ClusterSummary struct {
	ClusterID string
	Members   int
}

// ClusterSummaries returns every non-empty cluster with its member
// count, largest first.
func (s *Store) ClusterSummaries() ([]ClusterSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT cluster_id, COUNT(*) AS members
		FROM articles
		WHERE cluster_id != ''
		GROUP BY cluster_id
		ORDER BY members DESC, cluster_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query cluster summaries: %w", err)
	}
	defer rows.Close()

	var out []ClusterSummary
	for rows.Next() {
		var cs ClusterSummary
		if err := rows.Scan(&cs.ClusterID, &cs.Members); err != nil {
			return nil, fmt.Errorf("scan cluster summary: %w", err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// scanArticles reads article rows, skipping rows with malformed data
// rather than failing the whole query.
func scanArticles(rows *sql.Rows) ([]model.Article, error) {
	var articles []model.Article
	for rows.Next() {
		var a model.Article
		var entitiesJSON sql.NullString
		var summary, language sql.NullString

		err := rows.Scan(&a.ID, &a.Source, &a.Title, &summary, &a.Published, &language, &entitiesJSON, &a.ClusterID)
		if err != nil {
			logging.Warn("Article row scan failed", "error", err)
			continue
		}
		a.Summary = summary.String
		a.Language = language.String

		if entitiesJSON.Valid && entitiesJSON.String != "" {
			// Malformed stored JSON is treated as absent data, never fatal.
			if err := json.Unmarshal([]byte(entitiesJSON.String), &a.Entities); err != nil {
				logging.Warn("Malformed entities JSON", "article", a.ID, "error", err)
				a.Entities = nil
			}
		}

		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// SaveAnchors replaces the whole anchor set in one transaction, so a
// crash mid-write never leaves a half-written anchor table.
func (s *Store) SaveAnchors(anchors []cluster.Anchor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cluster_anchors`); err != nil {
		return fmt.Errorf("clear anchors: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO cluster_anchors (cluster_id, embedding, member_count, last_updated)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare anchor insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range anchors {
		embedding, err := json.Marshal(a.Embedding)
		if err != nil {
			return fmt.Errorf("marshal anchor embedding: %w", err)
		}
		if _, err := stmt.Exec(a.ClusterID, string(embedding), a.MemberCount, a.LastUpdated.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("insert anchor %s: %w", a.ClusterID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit anchors: %w", err)
	}
	return nil
}

// LoadAnchors loads the full persisted anchor set.
func (s *Store) LoadAnchors() ([]cluster.Anchor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT cluster_id, embedding, member_count, last_updated FROM cluster_anchors`)
	if err != nil {
		return nil, fmt.Errorf("query anchors: %w", err)
	}
	defer rows.Close()

	var anchors []cluster.Anchor
	for rows.Next() {
		var a cluster.Anchor
		var embeddingJSON, lastUpdated string

		if err := rows.Scan(&a.ClusterID, &embeddingJSON, &a.MemberCount, &lastUpdated); err != nil {
			logging.Warn("Anchor row scan failed", "error", err)
			continue
		}
		if err := json.Unmarshal([]byte(embeddingJSON), &a.Embedding); err != nil {
			logging.Warn("Malformed anchor embedding", "cluster", a.ClusterID, "error", err)
			continue
		}
		if t, err := time.Parse(time.RFC3339, lastUpdated); err == nil {
			a.LastUpdated = t
		}

		anchors = append(anchors, a)
	}
	return anchors, rows.Err()
}
