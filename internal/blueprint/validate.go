package blueprint

import (
	"fmt"
	"math"
)

// #region constants

// The generation contract asks for 2–5 stages. Enforced here rather than
// trusted, so a malformed model response fails the parse attempt and
// triggers a retry instead of reaching the store.
const (
	MinStages = 2
	MaxStages = 5
)

// #endregion constants

// #region clamp

// Clamp01 bounds a path position to [0, 1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func validPosition(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// #endregion clamp

// #region validate-definition

// ValidateDefinition checks the structural contract of a generated blueprint.
func ValidateDefinition(def Definition) error {
	n := len(def.MainPath)
	if n < MinStages || n > MaxStages {
		return fmt.Errorf("main_path has %d stages, want %d-%d", n, MinStages, MaxStages)
	}

	seen := make(map[string]bool, n)
	for i, seg := range def.MainPath {
		if seg.SegmentID == "" {
			return fmt.Errorf("main_path[%d]: empty segment_id", i)
		}
		if seg.StageName == "" {
			return fmt.Errorf("main_path[%d]: empty stage_name", i)
		}
		if seen[seg.SegmentID] {
			return fmt.Errorf("main_path[%d]: duplicate segment_id %q", i, seg.SegmentID)
		}
		seen[seg.SegmentID] = true
	}

	for i, node := range def.MilestoneNodes {
		if node.Label == "" {
			return fmt.Errorf("milestone_nodes[%d]: empty label", i)
		}
		if !validPosition(node.PositionOnPath) {
			return fmt.Errorf("milestone_nodes[%d]: position_on_path %v out of [0,1]", i, node.PositionOnPath)
		}
		if node.Content.CoreObjective == "" {
			return fmt.Errorf("milestone_nodes[%d]: empty core_objective", i)
		}
	}

	// Milestone labels are not required to match stage names; the
	// presentation layer treats the pairing as best-effort.
	return nil
}

// #endregion validate-definition

// #region validate-init

// ValidateInitResult checks a decoded initialize response field by field.
func (r *InitResult) Validate() error {
	if r.Commands.Action != ActionCreateBlueprint {
		return fmt.Errorf("unexpected action %q, want %q", r.Commands.Action, ActionCreateBlueprint)
	}
	if err := ValidateDefinition(r.Commands.Payload.BlueprintDefinition); err != nil {
		return err
	}
	hyp := r.Commands.Payload.InitialHypothesis
	if hyp.SuggestedStageName == "" {
		return fmt.Errorf("initial_hypothesis: empty suggested_stage_name")
	}
	if !validPosition(hyp.SuggestedPositionOnPath) {
		return fmt.Errorf("initial_hypothesis: position %v out of [0,1]", hyp.SuggestedPositionOnPath)
	}
	if r.Narrative == "" {
		return fmt.Errorf("empty narrative")
	}
	return nil
}

// #endregion validate-init

// #region validate-cycle

// ValidateCycleResult checks a decoded cycle response field by field.
func (r *CycleResult) Validate() error {
	if r.Commands.Action != ActionUpdateBlueprint {
		return fmt.Errorf("unexpected action %q, want %q", r.Commands.Action, ActionUpdateBlueprint)
	}
	if !validPosition(r.Commands.Payload.NewArrowPosition) {
		return fmt.Errorf("new_arrow_position %v out of [0,1]", r.Commands.Payload.NewArrowPosition)
	}
	for i, line := range r.Commands.Payload.NewActionLines {
		if line.LineID == "" {
			return fmt.Errorf("action_lines[%d]: empty line_id", i)
		}
		if line.Label == "" {
			return fmt.Errorf("action_lines[%d]: empty label", i)
		}
		if !line.Style.Valid() {
			return fmt.Errorf("action_lines[%d]: unknown style %q", i, line.Style)
		}
	}
	if r.Narrative == "" {
		return fmt.Errorf("empty narrative")
	}
	return nil
}

// #endregion validate-cycle
