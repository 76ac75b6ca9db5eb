package blueprint

// #region path

// PathSegment is one stage along the main path.
type PathSegment struct {
	SegmentID string `json:"segment_id"`
	StageName string `json:"stage_name"`
}

// MilestoneContent is the on-click detail for a milestone node.
type MilestoneContent struct {
	CoreObjective string   `json:"core_objective"`
	KeySignals    []string `json:"key_signals"`
}

// MilestoneNode marks a point of interest along the path.
// Label loosely mirrors a stage name; position is a fraction in [0,1].
type MilestoneNode struct {
	Label          string           `json:"label"`
	PositionOnPath float64          `json:"position_on_path"`
	Content        MilestoneContent `json:"content"`
}

// Definition is the full generated blueprint: the staged path plus its milestones.
type Definition struct {
	MainPath       []PathSegment   `json:"main_path"`
	MilestoneNodes []MilestoneNode `json:"milestone_nodes"`
}

// InitialHypothesis is the model's first guess at where the user stands.
type InitialHypothesis struct {
	SuggestedStageName      string  `json:"suggested_stage_name"`
	SuggestedPositionOnPath float64 `json:"suggested_position_on_path"`
}

// #endregion path

// #region action-lines

// LineStyle tags an action line for rendering.
type LineStyle string

const (
	StyleSuggestion   LineStyle = "suggestion"
	StyleUrgent       LineStyle = "urgent"
	StyleExperimental LineStyle = "experimental"
)

// Valid reports whether s is one of the three known styles.
func (s LineStyle) Valid() bool {
	switch s {
	case StyleSuggestion, StyleUrgent, StyleExperimental:
		return true
	}
	return false
}

// ActionLine is one suggested next action for the current cycle.
type ActionLine struct {
	LineID  string    `json:"line_id"`
	Label   string    `json:"label"`
	Style   LineStyle `json:"style"`
	Content string    `json:"content"`
}

// #endregion action-lines

// #region session-state

// SessionState is the snapshot handed to the model on every cycle.
type SessionState struct {
	SessionID               string     `json:"session_id"`
	BlueprintDefinition     Definition `json:"blueprint_definition"`
	CurrentPosition         float64    `json:"current_position"`
	ActiveCycleIndex        int        `json:"active_cycle_index"`
	LastAssessmentNarrative *string    `json:"last_assessment_narrative"`
}

// #endregion session-state

// #region commands

// CommandAction discriminates the two visual-engine command shapes.
type CommandAction string

const (
	ActionCreateBlueprint CommandAction = "CREATE_BLUEPRINT"
	ActionUpdateBlueprint CommandAction = "UPDATE_BLUEPRINT"
)

// CreatePayload carries a freshly generated blueprint.
type CreatePayload struct {
	BlueprintDefinition Definition        `json:"blueprint_definition"`
	InitialHypothesis   InitialHypothesis `json:"initial_hypothesis"`
}

// UpdatePayload carries a position move plus the cycle's action lines.
type UpdatePayload struct {
	NewArrowPosition float64      `json:"new_arrow_position"`
	NewActionLines   []ActionLine `json:"new_action_lines_to_draw"`
}

// CreateCommand is the CREATE_BLUEPRINT command envelope.
type CreateCommand struct {
	Action  CommandAction `json:"action"`
	Payload CreatePayload `json:"payload"`
}

// UpdateCommand is the UPDATE_BLUEPRINT command envelope.
type UpdateCommand struct {
	Action  CommandAction `json:"action"`
	Payload UpdatePayload `json:"payload"`
}

// InitResult is the decoded model response for an initialize call.
type InitResult struct {
	Commands  CreateCommand `json:"visual_engine_commands"`
	Narrative string        `json:"narrative"`
}

// CycleResult is the decoded model response for a cycle call.
type CycleResult struct {
	Commands  UpdateCommand `json:"visual_engine_commands"`
	Narrative string        `json:"narrative"`
}

// #endregion commands
