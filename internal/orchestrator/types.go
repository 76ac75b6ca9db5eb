package orchestrator

import (
	"errors"

	"github.com/danielpatrickdp/living-blueprint/internal/blueprint"
)

// #region errors

// ErrInvalidRequest means a required input was missing or empty.
// Surfaced before any model call is made.
var ErrInvalidRequest = errors.New("invalid request")

// #endregion errors

// #region outcomes

// InitOutcome is everything the transport needs to stream after a
// successful Initialize: state is already durably persisted.
type InitOutcome struct {
	SessionID string
	Commands  blueprint.CreateCommand
	Narrative string
}

// AdvanceOutcome is the streamable result of one committed cycle.
type AdvanceOutcome struct {
	Commands    blueprint.UpdateCommand
	Narrative   string
	NewPosition float64
	CycleIndex  int
}

// #endregion outcomes
