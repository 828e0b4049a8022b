package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pauljones0/skynet-bot/internal/models"

	_ "modernc.org/sqlite"
)

const (
	artifactCookies   = "cookies"
	artifactUserAgent = "user_agent"
)

// SQLiteStore keeps each session artifact as a row of session_artifacts.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS session_artifacts (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);`)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context) (models.Session, error) {
	var session models.Session

	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM session_artifacts`)
	if err != nil {
		return session, fmt.Errorf("failed to query session artifacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return session, err
		}
		switch name {
		case artifactCookies:
			if err := json.Unmarshal([]byte(value), &session.Cookies); err != nil {
				return session, fmt.Errorf("failed to decode cookies: %w", err)
			}
		case artifactUserAgent:
			session.UserAgent = value
		}
	}
	return session, rows.Err()
}

func (s *SQLiteStore) Save(ctx context.Context, session models.Session) error {
	cookies := session.Cookies
	if cookies == nil {
		cookies = map[string]string{}
	}
	data, err := json.Marshal(cookies)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	upsert := `
		INSERT INTO session_artifacts (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, upsert, artifactCookies, string(data), now); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsert, artifactUserAgent, session.UserAgent, now); err != nil {
		return fmt.Errorf("failed to save user agent: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
