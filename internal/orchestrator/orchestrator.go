// Package orchestrator coordinates one turn of the session cycle: load
// current state, invoke the model, persist the transition, and hand the
// results to the transport in a defined order.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/living-blueprint/internal/audit"
	"github.com/danielpatrickdp/living-blueprint/internal/blueprint"
	"github.com/danielpatrickdp/living-blueprint/internal/model"
	"github.com/danielpatrickdp/living-blueprint/internal/store"
)

// #region orchestrator-struct

// Orchestrator is the top-level coordinator for session initialization
// and cycle advancement.
type Orchestrator struct {
	store *store.Store
	gen   model.Generator
	audit *audit.Log
	log   *zap.Logger
}

// NewOrchestrator creates a fully wired orchestrator.
func NewOrchestrator(st *store.Store, gen model.Generator, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{store: st, gen: gen, log: log}
}

// SetAuditLog attaches the generation audit trail. Nil disables it.
func (o *Orchestrator) SetAuditLog(al *audit.Log) {
	o.audit = al
}

// recordAudit appends an audit entry; audit failures never fail the turn.
func (o *Orchestrator) recordAudit(entry audit.Entry) {
	if o.audit == nil {
		return
	}
	if err := o.audit.Record(entry); err != nil {
		o.log.Warn("audit record failed", zap.Error(err))
	}
}

// #endregion orchestrator-struct

// #region initialize

// Initialize turns a user goal into a persisted session and blueprint.
// The returned outcome is only handed back after the insert committed, so
// a client that sees the blueprint event can rely on the session existing.
func (o *Orchestrator) Initialize(ctx context.Context, userGoal string) (*InitOutcome, error) {
	if strings.TrimSpace(userGoal) == "" {
		return nil, ErrInvalidRequest
	}

	// The id is minted up front so failed attempts are attributable too.
	sessionID := uuid.New().String()

	started := time.Now()
	result, err := o.gen.GenerateBlueprint(ctx, userGoal)
	if err != nil {
		o.recordAudit(audit.Entry{
			SessionID: sessionID,
			Operation: audit.OpInitialize,
			Outcome:   audit.OutcomeError,
			Detail:    err.Error(),
			Elapsed:   time.Since(started),
		})
		return nil, err
	}

	blueprintID := uuid.New().String()
	now := time.Now().UTC()
	hyp := result.Commands.Payload.InitialHypothesis

	sess := store.Session{
		ID:               sessionID,
		CreatedAt:        now,
		UpdatedAt:        now,
		CurrentPosition:  blueprint.Clamp01(hyp.SuggestedPositionOnPath),
		ActiveCycleIndex: 0,
		BlueprintID:      blueprintID,
	}
	bp := store.BlueprintRecord{
		ID:                blueprintID,
		SessionID:         sessionID,
		CreatedAt:         now,
		Definition:        result.Commands.Payload.BlueprintDefinition,
		InitialHypothesis: &hyp,
	}
	if err := o.store.CreateSession(sess, bp); err != nil {
		return nil, err
	}

	o.log.Info("session initialized",
		zap.String("session_id", sessionID),
		zap.Int("stages", len(bp.Definition.MainPath)),
		zap.Float64("initial_position", sess.CurrentPosition),
	)
	o.recordAudit(audit.Entry{
		SessionID: sessionID,
		Operation: audit.OpInitialize,
		Outcome:   audit.OutcomeOK,
		Elapsed:   time.Since(started),
	})

	return &InitOutcome{
		SessionID: sessionID,
		Commands:  result.Commands,
		Narrative: result.Narrative,
	}, nil
}

// #endregion initialize

// #region advance

// Advance runs one cycle: reassess position from the user's observations,
// commit the transition, and return the streamable outputs. firstCycle only
// affects prompt phrasing (calibration vs progress update).
func (o *Orchestrator) Advance(ctx context.Context, sessionID, userText string, firstCycle bool) (*AdvanceOutcome, error) {
	if sessionID == "" || strings.TrimSpace(userText) == "" {
		return nil, ErrInvalidRequest
	}

	sess, err := o.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	bp, err := o.store.GetBlueprintBySession(sessionID)
	if err != nil {
		return nil, err
	}

	previousPosition := sess.CurrentPosition

	state := blueprint.SessionState{
		SessionID:               sess.ID,
		BlueprintDefinition:     bp.Definition,
		CurrentPosition:         sess.CurrentPosition,
		ActiveCycleIndex:        sess.ActiveCycleIndex,
		LastAssessmentNarrative: sess.LastAssessmentNarrative,
	}

	started := time.Now()
	result, err := o.gen.RunCycle(ctx, state, userText, firstCycle)
	if err != nil {
		o.recordAudit(audit.Entry{
			SessionID:  sessionID,
			Operation:  audit.OpCycle,
			CycleIndex: sess.ActiveCycleIndex + 1,
			Outcome:    audit.OutcomeError,
			Detail:     err.Error(),
			Elapsed:    time.Since(started),
		})
		return nil, err
	}

	newPosition := blueprint.Clamp01(result.Commands.Payload.NewArrowPosition)
	cycle, err := o.store.AdvanceSession(store.AdvanceParams{
		SessionID:           sessionID,
		ExpectedCycleIndex:  sess.ActiveCycleIndex,
		UserObservations:    userText,
		AssessmentNarrative: result.Narrative,
		PreviousPosition:    previousPosition,
		NewPosition:         newPosition,
		ActionLines:         result.Commands.Payload.NewActionLines,
	})
	if err != nil {
		return nil, err
	}

	o.log.Info("cycle committed",
		zap.String("session_id", sessionID),
		zap.Int("cycle_index", cycle.CycleIndex),
		zap.Float64("previous_position", previousPosition),
		zap.Float64("new_position", newPosition),
	)
	o.recordAudit(audit.Entry{
		SessionID:  sessionID,
		Operation:  audit.OpCycle,
		CycleIndex: cycle.CycleIndex,
		Outcome:    audit.OutcomeOK,
		Elapsed:    time.Since(started),
	})

	return &AdvanceOutcome{
		Commands:    result.Commands,
		Narrative:   result.Narrative,
		NewPosition: newPosition,
		CycleIndex:  cycle.CycleIndex,
	}, nil
}

// #endregion advance
