package prompt

import (
	"strings"
	"testing"
)

func TestInitialize(t *testing.T) {
	p := Initialize(`Launch a "simple" SaaS product`)
	if !strings.Contains(p, `Launch a \"simple\" SaaS product`) {
		t.Error("goal not quoted into the prompt")
	}
	if !strings.Contains(p, "CREATE_BLUEPRINT") {
		t.Error("missing output-format action")
	}
	if !strings.Contains(p, "between 2 and 5") {
		t.Error("missing stage-count constraint")
	}
}

func TestStrategyCycle_StatePrefixStable(t *testing.T) {
	state := `{"session_id":"s-1"}`
	first := StrategyCycle(state, "input one", true)
	second := StrategyCycle(state, "different input", false)

	// The serialized state leads both prompts so repeated turns share a
	// cacheable prefix.
	prefix := "# CURRENT SESSION STATE (Cached Context):\n" + state
	if !strings.HasPrefix(first, prefix) || !strings.HasPrefix(second, prefix) {
		t.Error("cycle prompts do not start with the session state")
	}
}

func TestStrategyCycle_Phrasing(t *testing.T) {
	state := `{"session_id":"s-1"}`
	calibration := StrategyCycle(state, "I'm further along", true)
	if !strings.Contains(calibration, "FIRST CYCLE - Calibration") {
		t.Error("missing calibration phrasing on first cycle")
	}
	progress := StrategyCycle(state, "Shipped MVP", false)
	if !strings.Contains(progress, "SUBSEQUENT CYCLE - Progress Update") {
		t.Error("missing progress phrasing on later cycles")
	}
	if !strings.Contains(progress, "UPDATE_BLUEPRINT") {
		t.Error("missing output-format action")
	}
}
