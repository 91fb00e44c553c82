package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteLogger appends audit events to a sqlite database, for deployments
// that want the log queryable rather than grep-able.
type SQLiteLogger struct {
	dsn string

	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteLogger opens (creating if needed) a sqlite-backed audit log.
func NewSQLiteLogger(dsn string) (*SQLiteLogger, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("missing sqlite dsn")
	}
	l := &SQLiteLogger{dsn: dsn}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *SQLiteLogger) Append(ctx context.Context, e Event) error {
	// Copy the handle out under the lock so a concurrent Close cannot nil
	// it between check and use. sql.DB itself is safe for concurrent use;
	// a close mid-insert surfaces as an error from ExecContext.
	l.mu.Lock()
	db := l.db
	l.mu.Unlock()
	if db == nil {
		return fmt.Errorf("sqlite audit log is closed")
	}

	fieldsJSON, err := json.Marshal(e.Fields)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
INSERT INTO audit_events (ts_unix_nano, event, fields_json)
VALUES (?, ?, ?)
`, e.Timestamp.UnixNano(), e.Name, string(fieldsJSON))
	return err
}

func (l *SQLiteLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

func (l *SQLiteLogger) open() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	db, err := sql.Open("sqlite", l.dsn)
	if err != nil {
		return fmt.Errorf("open sqlite audit log: %w", err)
	}
	schema := []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts_unix_nano INTEGER NOT NULL,
  event TEXT NOT NULL,
  fields_json TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_event ON audit_events(event)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return fmt.Errorf("create audit schema: %w", err)
		}
	}
	l.db = db
	return nil
}
