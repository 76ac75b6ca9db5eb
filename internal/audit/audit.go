// Package audit records every generation attempt against a session, so the
// history of model interactions can be reconstructed after the fact.
package audit

import (
	"database/sql"
	"fmt"
	"time"
)

// #region types

// Outcomes for a recorded generation.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Operations recorded in the log.
const (
	OpInitialize = "initialize"
	OpCycle      = "cycle"
)

// Entry is a single row in the generation_log table.
type Entry struct {
	SessionID  string        `json:"session_id"`
	Operation  string        `json:"operation"` // "initialize" | "cycle"
	CycleIndex int           `json:"cycle_index"`
	Outcome    string        `json:"outcome"` // "ok" | "error"
	Detail     string        `json:"detail,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
	CreatedAt  time.Time     `json:"created_at"`
}

// #endregion types

// #region log

// Log owns the generation_log table. It shares the session database but
// manages its own schema.
type Log struct {
	db *sql.DB
}

// NewLog creates the generation_log table if needed.
func NewLog(db *sql.DB) (*Log, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS generation_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		operation TEXT NOT NULL,
		cycle_index INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		detail TEXT,
		elapsed_ms INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_generation_log_session ON generation_log(session_id)`)
	if err != nil {
		return nil, fmt.Errorf("create generation_log table: %w", err)
	}
	return &Log{db: db}, nil
}

// Record appends one entry. Failures here must not fail the request that
// produced the entry; callers log and move on.
func (l *Log) Record(entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.Exec(
		`INSERT INTO generation_log (session_id, operation, cycle_index, outcome, detail, elapsed_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.Operation,
		entry.CycleIndex,
		entry.Outcome,
		nullIfEmpty(entry.Detail),
		entry.Elapsed.Milliseconds(),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record generation: %w", err)
	}
	return nil
}

// BySession returns a session's entries, oldest first.
func (l *Log) BySession(sessionID string) ([]Entry, error) {
	rows, err := l.db.Query(
		`SELECT session_id, operation, cycle_index, outcome, COALESCE(detail, ''), elapsed_ms, created_at
		 FROM generation_log WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query generation_log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var elapsedMS int64
		var createdAt string
		if err := rows.Scan(&e.SessionID, &e.Operation, &e.CycleIndex, &e.Outcome, &e.Detail, &elapsedMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan generation_log row: %w", err)
		}
		e.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion log

// #region helpers

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
