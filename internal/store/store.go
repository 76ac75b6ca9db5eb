// Package store is the persistence gateway: typed access to the sessions,
// blueprints, and action_cycles tables in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/living-blueprint/internal/blueprint"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                        TEXT PRIMARY KEY,
	user_id                   TEXT,
	created_at                TEXT NOT NULL,
	updated_at                TEXT NOT NULL,
	current_position          REAL NOT NULL DEFAULT 0.0,
	active_cycle_index        INTEGER NOT NULL DEFAULT 0,
	last_assessment_narrative TEXT,
	blueprint_id              TEXT
);

CREATE TABLE IF NOT EXISTS blueprints (
	id                 TEXT PRIMARY KEY,
	session_id         TEXT NOT NULL,
	created_at         TEXT NOT NULL,
	main_path          TEXT NOT NULL,
	milestone_nodes    TEXT NOT NULL,
	initial_hypothesis TEXT,
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);

CREATE TABLE IF NOT EXISTS action_cycles (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id           TEXT NOT NULL,
	cycle_index          INTEGER NOT NULL,
	created_at           TEXT NOT NULL,
	user_observations    TEXT NOT NULL,
	assessment_narrative TEXT NOT NULL,
	previous_position    REAL NOT NULL,
	new_position         REAL NOT NULL,
	action_lines         TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);

CREATE INDEX IF NOT EXISTS idx_action_cycles_session
ON action_cycles(session_id, cycle_index);
`

// #endregion schema

// #region store-struct
// Store manages session, blueprint, and cycle records in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region create-session
// CreateSession inserts a session and its blueprint in one transaction.
func (s *Store) CreateSession(sess Session, bp BlueprintRecord) error {
	mainPath, err := json.Marshal(bp.Definition.MainPath)
	if err != nil {
		return fmt.Errorf("marshal main_path: %w", err)
	}
	milestones, err := json.Marshal(bp.Definition.MilestoneNodes)
	if err != nil {
		return fmt.Errorf("marshal milestone_nodes: %w", err)
	}
	var hypothesis interface{}
	if bp.InitialHypothesis != nil {
		b, err := json.Marshal(bp.InitialHypothesis)
		if err != nil {
			return fmt.Errorf("marshal initial_hypothesis: %w", err)
		}
		hypothesis = string(b)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO sessions (id, user_id, created_at, updated_at, current_position, active_cycle_index, last_assessment_narrative, blueprint_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, nullIfEmpty(sess.UserID),
		sess.CreatedAt.Format(time.RFC3339Nano), sess.UpdatedAt.Format(time.RFC3339Nano),
		sess.CurrentPosition, sess.ActiveCycleIndex, sess.LastAssessmentNarrative, sess.BlueprintID,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO blueprints (id, session_id, created_at, main_path, milestone_nodes, initial_hypothesis)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		bp.ID, bp.SessionID, bp.CreatedAt.Format(time.RFC3339Nano),
		string(mainPath), string(milestones), hypothesis,
	)
	if err != nil {
		return fmt.Errorf("insert blueprint: %w", err)
	}

	return tx.Commit()
}

// #endregion create-session

// #region get-session
// GetSession retrieves a session by id.
func (s *Store) GetSession(id string) (Session, error) {
	var sess Session
	var userID, narrative sql.NullString
	var blueprintID sql.NullString
	var createdStr, updatedStr string

	err := s.db.QueryRow(
		`SELECT id, user_id, created_at, updated_at, current_position, active_cycle_index, last_assessment_narrative, blueprint_id
		 FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &userID, &createdStr, &updatedStr, &sess.CurrentPosition, &sess.ActiveCycleIndex, &narrative, &blueprintID)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session %s: %w", id, err)
	}

	if userID.Valid {
		sess.UserID = userID.String
	}
	if narrative.Valid {
		n := narrative.String
		sess.LastAssessmentNarrative = &n
	}
	if blueprintID.Valid {
		sess.BlueprintID = blueprintID.String
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
	return sess, nil
}

// #endregion get-session

// #region get-blueprint
// GetBlueprintBySession retrieves the blueprint belonging to a session.
func (s *Store) GetBlueprintBySession(sessionID string) (BlueprintRecord, error) {
	var bp BlueprintRecord
	var mainPath, milestones string
	var hypothesis sql.NullString
	var createdStr string

	err := s.db.QueryRow(
		`SELECT id, session_id, created_at, main_path, milestone_nodes, initial_hypothesis
		 FROM blueprints WHERE session_id = ?`, sessionID,
	).Scan(&bp.ID, &bp.SessionID, &createdStr, &mainPath, &milestones, &hypothesis)
	if errors.Is(err, sql.ErrNoRows) {
		return BlueprintRecord{}, ErrBlueprintNotFound
	}
	if err != nil {
		return BlueprintRecord{}, fmt.Errorf("get blueprint for %s: %w", sessionID, err)
	}

	if err := json.Unmarshal([]byte(mainPath), &bp.Definition.MainPath); err != nil {
		return BlueprintRecord{}, fmt.Errorf("unmarshal main_path: %w", err)
	}
	if err := json.Unmarshal([]byte(milestones), &bp.Definition.MilestoneNodes); err != nil {
		return BlueprintRecord{}, fmt.Errorf("unmarshal milestone_nodes: %w", err)
	}
	if hypothesis.Valid {
		var h blueprint.InitialHypothesis
		if err := json.Unmarshal([]byte(hypothesis.String), &h); err != nil {
			return BlueprintRecord{}, fmt.Errorf("unmarshal initial_hypothesis: %w", err)
		}
		bp.InitialHypothesis = &h
	}
	bp.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return bp, nil
}

// #endregion get-blueprint

// #region advance
// AdvanceSession commits one completed cycle: the session row update and the
// action_cycles insert happen in one transaction, guarded by a
// compare-and-swap on active_cycle_index.
func (s *Store) AdvanceSession(p AdvanceParams) (ActionCycle, error) {
	lines, err := json.Marshal(p.ActionLines)
	if err != nil {
		return ActionCycle{}, fmt.Errorf("marshal action_lines: %w", err)
	}

	now := time.Now().UTC()
	newIndex := p.ExpectedCycleIndex + 1

	tx, err := s.db.Begin()
	if err != nil {
		return ActionCycle{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE sessions
		 SET current_position = ?, active_cycle_index = ?, last_assessment_narrative = ?, updated_at = ?
		 WHERE id = ? AND active_cycle_index = ?`,
		p.NewPosition, newIndex, p.AssessmentNarrative, now.Format(time.RFC3339Nano),
		p.SessionID, p.ExpectedCycleIndex,
	)
	if err != nil {
		return ActionCycle{}, fmt.Errorf("update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return ActionCycle{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Either the session vanished or another cycle won the race.
		var exists int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM sessions WHERE id = ?`, p.SessionID).Scan(&exists); err != nil {
			return ActionCycle{}, fmt.Errorf("check session: %w", err)
		}
		if exists == 0 {
			return ActionCycle{}, ErrSessionNotFound
		}
		return ActionCycle{}, ErrConcurrentModification
	}

	result, err := tx.Exec(
		`INSERT INTO action_cycles (session_id, cycle_index, created_at, user_observations, assessment_narrative, previous_position, new_position, action_lines)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.SessionID, newIndex, now.Format(time.RFC3339Nano),
		p.UserObservations, p.AssessmentNarrative,
		p.PreviousPosition, p.NewPosition, string(lines),
	)
	if err != nil {
		return ActionCycle{}, fmt.Errorf("insert cycle: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return ActionCycle{}, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ActionCycle{}, fmt.Errorf("commit: %w", err)
	}

	return ActionCycle{
		ID:                  id,
		SessionID:           p.SessionID,
		CycleIndex:          newIndex,
		CreatedAt:           now,
		UserObservations:    p.UserObservations,
		AssessmentNarrative: p.AssessmentNarrative,
		PreviousPosition:    p.PreviousPosition,
		NewPosition:         p.NewPosition,
		ActionLines:         p.ActionLines,
	}, nil
}

// #endregion advance

// #region list-sessions
// ListSessions returns all sessions, newest-updated first.
func (s *Store) ListSessions() ([]SessionSummary, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, updated_at, current_position, active_cycle_index
		 FROM sessions ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	summaries := []SessionSummary{}
	for rows.Next() {
		var sum SessionSummary
		var createdStr, updatedStr string
		if err := rows.Scan(&sum.ID, &createdStr, &updatedStr, &sum.CurrentPosition, &sum.ActiveCycleIndex); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		sum.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		sum.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// #endregion list-sessions

// #region list-cycles
// ListCycles returns a session's cycle log in cycle order.
func (s *Store) ListCycles(sessionID string) ([]ActionCycle, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, cycle_index, created_at, user_observations, assessment_narrative, previous_position, new_position, action_lines
		 FROM action_cycles WHERE session_id = ? ORDER BY cycle_index ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()

	cycles := []ActionCycle{}
	for rows.Next() {
		var c ActionCycle
		var createdStr, lines string
		if err := rows.Scan(&c.ID, &c.SessionID, &c.CycleIndex, &createdStr, &c.UserObservations, &c.AssessmentNarrative, &c.PreviousPosition, &c.NewPosition, &lines); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(lines), &c.ActionLines); err != nil {
			return nil, fmt.Errorf("unmarshal action_lines: %w", err)
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// CountCycles returns the number of cycle records for a session.
func (s *Store) CountCycles(sessionID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM action_cycles WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count cycles: %w", err)
	}
	return n, nil
}

// #endregion list-cycles

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
