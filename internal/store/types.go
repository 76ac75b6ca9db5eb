package store

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/living-blueprint/internal/blueprint"
)

// #region errors

var (
	// ErrSessionNotFound means no session row exists for the id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrBlueprintNotFound means a session exists without its blueprint —
	// a data-integrity violation, not a user error.
	ErrBlueprintNotFound = errors.New("blueprint not found")
	// ErrConcurrentModification means another cycle committed first; the
	// compare-and-swap on active_cycle_index did not match.
	ErrConcurrentModification = errors.New("session modified concurrently")
)

// #endregion errors

// #region session

// Session is the mutable per-goal record. current_position always equals
// the new_position of the most recent cycle, or the initial hypothesis
// before any cycle has run.
type Session struct {
	ID                      string    `json:"id"`
	UserID                  string    `json:"user_id,omitempty"` // empty when anonymous
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
	CurrentPosition         float64   `json:"current_position"`
	ActiveCycleIndex        int       `json:"active_cycle_index"`
	LastAssessmentNarrative *string   `json:"last_assessment_narrative"`
	BlueprintID             string    `json:"blueprint_id"`
}

// SessionSummary is the listing shape for GET /sessions.
type SessionSummary struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	CurrentPosition  float64   `json:"currentPosition"`
	ActiveCycleIndex int       `json:"activeCycleIndex"`
}

// #endregion session

// #region blueprint-record

// BlueprintRecord is the immutable generated blueprint for a session.
type BlueprintRecord struct {
	ID                string
	SessionID         string
	CreatedAt         time.Time
	Definition        blueprint.Definition
	InitialHypothesis *blueprint.InitialHypothesis
}

// #endregion blueprint-record

// #region action-cycle

// ActionCycle is one append-only log entry per completed cycle.
type ActionCycle struct {
	ID                  int64                  `json:"id"`
	SessionID           string                 `json:"session_id"`
	CycleIndex          int                    `json:"cycle_index"`
	CreatedAt           time.Time              `json:"created_at"`
	UserObservations    string                 `json:"user_observations"`
	AssessmentNarrative string                 `json:"assessment_narrative"`
	PreviousPosition    float64                `json:"previous_position"`
	NewPosition         float64                `json:"new_position"`
	ActionLines         []blueprint.ActionLine `json:"action_lines"`
}

// AdvanceParams is the single logical write for one completed cycle:
// the session update and its log entry commit in one transaction.
type AdvanceParams struct {
	SessionID string
	// ExpectedCycleIndex is the active_cycle_index the caller read; the
	// write fails with ErrConcurrentModification if it no longer matches.
	ExpectedCycleIndex  int
	UserObservations    string
	AssessmentNarrative string
	PreviousPosition    float64
	NewPosition         float64
	ActionLines         []blueprint.ActionLine
}

// #endregion action-cycle
