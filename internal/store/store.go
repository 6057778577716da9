package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mhutchins/arbmon/internal/hashutil"
)

const defaultPath = "data/matches.db"

// Candidate is a cross-venue pair proposed by the matcher, not yet persisted.
type Candidate struct {
	SourceText string
	TargetText string
	SourceID   string
	TargetID   string
	Similarity float64
}

// MatchedPair is a persisted claim that two markets are semantically
// equivalent. Rows are never mutated after insert.
type MatchedPair struct {
	ID         int64
	SourceText string
	TargetText string
	SourceID   string
	TargetID   string
	Similarity float64
	CreatedAt  time.Time
}

// Key returns a stable identifier for the pair, used by the alert cache.
func (p MatchedPair) Key() string {
	return hashutil.HashStrings(p.SourceID, p.TargetID)
}

// Store wraps a SQLite DB connection holding the matched-pairs table.
type Store struct {
	path string
	db   *sql.DB
}

// Open creates (if needed) and opens the SQLite database and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := ensureWAL(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	s := &Store{path: path, db: db}
	if err := s.CreateTables(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func ensureWAL(db *sql.DB) error {
	const (
		maxAttempts = 5
		delay       = 200 * time.Millisecond
	)
	for i := 0; i < maxAttempts; i++ {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			if strings.Contains(err.Error(), "database is locked") {
				time.Sleep(delay)
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("database is locked after retries")
}

// Path returns the path backing the store.
func (s *Store) Path() string {
	return s.path
}

// Close closes the DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS matched_pairs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_text TEXT NOT NULL,
	target_text TEXT NOT NULL,
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	similarity_score REAL,
	created_at TEXT NOT NULL,
	UNIQUE(source_id, target_id)
);
CREATE INDEX IF NOT EXISTS matched_pairs_source_idx ON matched_pairs(source_id);
CREATE INDEX IF NOT EXISTS matched_pairs_target_idx ON matched_pairs(target_id);
`

// CreateTables ensures the matched-pairs table and its indexes exist.
func (s *Store) CreateTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// DropTables removes the matched-pairs table.
func (s *Store) DropTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS matched_pairs;`)
	return err
}

const insertSQL = `
INSERT OR IGNORE INTO matched_pairs
	(source_text, target_text, source_id, target_id, similarity_score, created_at)
VALUES (?, ?, ?, ?, ?, ?);
`

// StoreMatches inserts candidates inside one transaction and returns the
// number of genuinely new rows. Re-inserting a known (source_id, target_id)
// pair is a no-op, so repeated scan cycles leave the table unchanged.
func (s *Store) StoreMatches(ctx context.Context, candidates []Candidate) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	inserted := 0
	for _, c := range candidates {
		res, err := stmt.ExecContext(ctx, c.SourceText, c.TargetText, c.SourceID, c.TargetID, c.Similarity, now)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("insert pair %s/%s: %w", c.SourceID, c.TargetID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

const selectCols = `id, source_text, target_text, source_id, target_id, similarity_score, created_at`

// GetAll returns every stored pair, most recently created first.
func (s *Store) GetAll(ctx context.Context) ([]MatchedPair, error) {
	query := fmt.Sprintf(`SELECT %s FROM matched_pairs ORDER BY created_at DESC, id DESC;`, selectCols)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []MatchedPair
	for rows.Next() {
		p, err := scanPair(rows)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// GetByID returns a single pair, or (nil, nil) when no row matches.
func (s *Store) GetByID(ctx context.Context, id int64) (*MatchedPair, error) {
	query := fmt.Sprintf(`SELECT %s FROM matched_pairs WHERE id = ?;`, selectCols)
	row := s.db.QueryRowContext(ctx, query, id)
	p, err := scanPair(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteByID removes a pair and reports whether a row was deleted.
func (s *Store) DeleteByID(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM matched_pairs WHERE id = ?;`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearAll deletes every pair and returns how many were removed.
func (s *Store) ClearAll(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM matched_pairs;`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Count returns the number of stored pairs.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matched_pairs;`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPair(r rowScanner) (MatchedPair, error) {
	var p MatchedPair
	var similarity sql.NullFloat64
	var createdAt string
	if err := r.Scan(&p.ID, &p.SourceText, &p.TargetText, &p.SourceID, &p.TargetID, &similarity, &createdAt); err != nil {
		return MatchedPair{}, err
	}
	if similarity.Valid {
		p.Similarity = similarity.Float64
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		p.CreatedAt = ts
	}
	return p, nil
}
