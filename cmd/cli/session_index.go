package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sessionIndexDriver = "sqlite"
	sessionIndexDSNOpt = "?_pragma=busy_timeout(3000)&_pragma=journal_mode(WAL)"
)

// sessionIndex is a sqlite lookup table over the session store so listing
// and resuming sessions never has to scan every log file.
type sessionIndex struct {
	db *sql.DB
	mu sync.Mutex
}

type sessionIndexRecord struct {
	SessionID       string
	Workspace       string
	CreatedAt       time.Time
	LastEventAt     time.Time
	EventCount      int64
	LastUserMessage string
}

func newSessionIndex(path string) (*sessionIndex, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("session index: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("session index: create dir: %w", err)
	}
	db, err := sql.Open(sessionIndexDriver, path+sessionIndexDSNOpt)
	if err != nil {
		return nil, fmt.Errorf("session index: open db: %w", err)
	}
	idx := &sessionIndex{db: db}
	if err := idx.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func (s *sessionIndex) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sessionIndex) UpsertSession(workspace, sessionID string, at time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session index: session_id is required")
	}
	if at.IsZero() {
		at = time.Now()
	}
	ts := at.UnixMilli()
	const q = `
INSERT INTO session_index (
	session_id, workspace, created_at, last_event_at, event_count, last_user_message
) VALUES (?, ?, ?, ?, 0, '')
ON CONFLICT(session_id) DO UPDATE SET
	workspace = excluded.workspace,
	last_event_at = CASE
		WHEN session_index.last_event_at > excluded.last_event_at THEN session_index.last_event_at
		ELSE excluded.last_event_at
	END`
	_, err := s.db.ExecContext(context.Background(), q, sessionID, workspace, ts, ts)
	return err
}

// TouchEvent bumps the event count and, for user input, remembers the
// message so listings show what each session was about.
func (s *sessionIndex) TouchEvent(workspace, sessionID, userMessage string, at time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session index: session_id is required")
	}
	if at.IsZero() {
		at = time.Now()
	}
	ts := at.UnixMilli()
	userMessage = strings.TrimSpace(userMessage)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.UpsertSession(workspace, sessionID, at); err != nil {
		return err
	}
	const q = `
UPDATE session_index SET
	last_event_at = ?,
	event_count = event_count + 1,
	last_user_message = CASE
		WHEN ? <> '' THEN ?
		ELSE last_user_message
	END
WHERE session_id = ?`
	_, err := s.db.ExecContext(context.Background(), q, ts, userMessage, userMessage, sessionID)
	return err
}

func (s *sessionIndex) ListSessions(limit int) ([]sessionIndexRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT session_id, workspace, created_at, last_event_at, event_count, last_user_message
FROM session_index
ORDER BY last_event_at DESC, created_at DESC
LIMIT ?`
	rows, err := s.db.QueryContext(context.Background(), q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]sessionIndexRecord, 0, limit)
	for rows.Next() {
		var rec sessionIndexRecord
		var createdAt, lastEventAt int64
		if err := rows.Scan(&rec.SessionID, &rec.Workspace, &createdAt, &lastEventAt, &rec.EventCount, &rec.LastUserMessage); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.UnixMilli(createdAt)
		rec.LastEventAt = time.UnixMilli(lastEventAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SyncFromStoreDir backfills the index from session log files written
// before the index existed.
func (s *sessionIndex) SyncFromStoreDir(storeDir string) error {
	if s == nil || s.db == nil {
		return nil
	}
	entries, err := os.ReadDir(storeDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		sessionID := strings.TrimSuffix(entry.Name(), ".jsonl")
		info, statErr := entry.Info()
		if statErr != nil {
			continue
		}
		if err := s.UpsertSession("", sessionID, info.ModTime()); err != nil {
			return err
		}
	}
	return nil
}

func (s *sessionIndex) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS session_index (
	session_id TEXT NOT NULL PRIMARY KEY,
	workspace TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	last_event_at INTEGER NOT NULL,
	event_count INTEGER NOT NULL DEFAULT 0,
	last_user_message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_session_index_last_event
ON session_index(last_event_at DESC);`
	_, err := s.db.ExecContext(ctx, ddl)
	if err != nil {
		return fmt.Errorf("session index: migrate: %w", err)
	}
	return nil
}
