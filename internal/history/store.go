// Package history persists visit history and per-origin zoom levels in
// SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver" // SQLite driver for database/sql
	_ "github.com/ncruces/go-sqlite3/embed"  // Embed SQLite for cross-platform compatibility
)

const schema = `
CREATE TABLE IF NOT EXISTS history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL DEFAULT '',
    visit_count INTEGER NOT NULL DEFAULT 0,
    last_visited TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_history_last_visited ON history(last_visited DESC);

CREATE TABLE IF NOT EXISTS zoom_levels (
    origin TEXT PRIMARY KEY,
    factor REAL NOT NULL
);
`

// Entry is one row of browsing history.
type Entry struct {
	URL         string
	Title       string
	VisitCount  int
	LastVisited time.Time
}

// Store wraps the history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history: database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("history: failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("history: failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: failed to connect to database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordVisit upserts a visit for url, bumping the visit count.
func (s *Store) RecordVisit(ctx context.Context, url, title string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history (url, title, visit_count, last_visited)
		VALUES (?, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(url) DO UPDATE SET
			visit_count = visit_count + 1,
			last_visited = CURRENT_TIMESTAMP,
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE title END`,
		url, title)
	if err != nil {
		return fmt.Errorf("history: failed to record visit: %w", err)
	}
	return nil
}

// UpdateTitle sets the stored title for url, if the URL is known.
func (s *Store) UpdateTitle(ctx context.Context, url, title string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE history SET title = ? WHERE url = ?", title, url)
	if err != nil {
		return fmt.Errorf("history: failed to update title: %w", err)
	}
	return nil
}

// Recent returns the most recently visited entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, title, visit_count, last_visited
		FROM history ORDER BY last_visited DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: failed to query recent entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.URL, &e.Title, &e.VisitCount, &e.LastVisited); err != nil {
			return nil, fmt.Errorf("history: failed to scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetZoom stores the zoom factor for an origin.
func (s *Store) SetZoom(ctx context.Context, origin string, factor float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO zoom_levels (origin, factor) VALUES (?, ?)
		ON CONFLICT(origin) DO UPDATE SET factor = excluded.factor`,
		origin, factor)
	if err != nil {
		return fmt.Errorf("history: failed to store zoom level: %w", err)
	}
	return nil
}

// Zoom returns the stored zoom factor for an origin; ok is false when none
// was stored.
func (s *Store) Zoom(ctx context.Context, origin string) (factor float64, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		"SELECT factor FROM zoom_levels WHERE origin = ?", origin).Scan(&factor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("history: failed to query zoom level: %w", err)
	}
	return factor, true, nil
}

// Prune removes entries beyond maxEntries and older than retention. Zero
// values disable the respective limit.
func (s *Store) Prune(ctx context.Context, maxEntries int, retention time.Duration) error {
	if retention > 0 {
		cutoff := time.Now().Add(-retention)
		if _, err := s.db.ExecContext(ctx,
			"DELETE FROM history WHERE last_visited < ?", cutoff); err != nil {
			return fmt.Errorf("history: failed to prune by age: %w", err)
		}
	}
	if maxEntries > 0 {
		if _, err := s.db.ExecContext(ctx, `
			DELETE FROM history WHERE id NOT IN (
				SELECT id FROM history ORDER BY last_visited DESC LIMIT ?)`,
			maxEntries); err != nil {
			return fmt.Errorf("history: failed to prune by count: %w", err)
		}
	}
	return nil
}
