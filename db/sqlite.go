// Package db records completed form submissions in SQLite.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Submission is one finished submit cycle. Exactly one of Prediction and
// Error is normally set.
type Submission struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Inputs     []string  `json:"inputs"`
	Prediction string    `json:"prediction,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type DB struct {
	conn *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// One writer; sqlite serialises anyway.
	conn.SetMaxOpenConns(1)

	_, err = conn.Exec(`
    CREATE TABLE IF NOT EXISTS submissions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT NOT NULL,
        inputs TEXT NOT NULL,
        prediction TEXT,
        error TEXT,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_submissions_created_at ON submissions(created_at);
    `)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn}, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

// SaveSubmission stores s and returns its id. A zero CreatedAt is set to now.
func (d *DB) SaveSubmission(ctx context.Context, s Submission) (int64, error) {
	inputs, err := json.Marshal(s.Inputs)
	if err != nil {
		return 0, err
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	res, err := d.conn.ExecContext(ctx, `
        INSERT INTO submissions (session_id, inputs, prediction, error, created_at)
        VALUES (?, ?, ?, ?, ?)`,
		s.SessionID, string(inputs), nullString(s.Prediction), nullString(s.Error), s.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentSubmissions returns up to limit submissions, newest first.
func (d *DB) RecentSubmissions(ctx context.Context, limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.conn.QueryContext(ctx, `
        SELECT id, session_id, inputs, prediction, error, created_at
        FROM submissions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := make([]Submission, 0)
	for rows.Next() {
		var (
			s                 Submission
			inputs            string
			prediction, errMs sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.SessionID, &inputs, &prediction, &errMs, &s.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(inputs), &s.Inputs); err != nil {
			return nil, fmt.Errorf("submission %d: decode inputs: %w", s.ID, err)
		}
		s.Prediction = prediction.String
		s.Error = errMs.String
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
