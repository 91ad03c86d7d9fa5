// Package history keeps a local record of finished streaming sessions so
// results can be reviewed after the fact.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Record is one finished session.
type Record struct {
	ID                int64     `json:"id"`
	StartedAt         time.Time `json:"started_at"`
	Endpoint          string    `json:"endpoint"`
	DurationSeconds   float64   `json:"duration_seconds"`
	FramesSent        int       `json:"frames_sent"`
	Prediction        string    `json:"prediction"`
	Confidence        float64   `json:"confidence"`
	AIProbability     float64   `json:"ai_probability"`
	ProcessingSeconds float64   `json:"processing_seconds"`
	Live              bool      `json:"live"`
}

// Store handles SQLite operations for session history.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates the database file (and its directory) if needed and runs the
// schema migration.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		endpoint TEXT NOT NULL,
		duration_seconds REAL NOT NULL,
		frames_sent INTEGER NOT NULL,
		prediction TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		ai_probability REAL NOT NULL DEFAULT 0,
		processing_seconds REAL NOT NULL DEFAULT 0,
		live INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Insert adds one finished session and returns its row id.
func (s *Store) Insert(rec *Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`
		INSERT INTO sessions (started_at, endpoint, duration_seconds, frames_sent,
			prediction, confidence, ai_probability, processing_seconds, live)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.StartedAt, rec.Endpoint, rec.DurationSeconds, rec.FramesSent,
		rec.Prediction, rec.Confidence, rec.AIProbability, rec.ProcessingSeconds, rec.Live)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}

	return result.LastInsertId()
}

// Recent returns up to limit sessions, newest first.
func (s *Store) Recent(limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, started_at, endpoint, duration_seconds, frames_sent,
			prediction, confidence, ai_probability, processing_seconds, live
		FROM sessions ORDER BY started_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &rec.Endpoint, &rec.DurationSeconds,
			&rec.FramesSent, &rec.Prediction, &rec.Confidence, &rec.AIProbability,
			&rec.ProcessingSeconds, &rec.Live); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
