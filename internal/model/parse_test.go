package model

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danielpatrickdp/living-blueprint/internal/blueprint"
)

const validInitJSON = `{
  "visual_engine_commands": {
    "action": "CREATE_BLUEPRINT",
    "payload": {
      "blueprint_definition": {
        "main_path": [
          {"segment_id": "stage_1", "stage_name": "Foundation"},
          {"segment_id": "stage_2", "stage_name": "Traction"},
          {"segment_id": "stage_3", "stage_name": "Scale"}
        ],
        "milestone_nodes": [
          {"label": "Foundation", "position_on_path": 0.0, "content": {"core_objective": "Ship the MVP", "key_signals": ["first users"]}}
        ]
      },
      "initial_hypothesis": {"suggested_stage_name": "Foundation", "suggested_position_on_path": 0.1}
    }
  },
  "narrative": "The first marks are on the paper."
}`

const validCycleJSON = `{
  "visual_engine_commands": {
    "action": "UPDATE_BLUEPRINT",
    "payload": {
      "new_arrow_position": 0.25,
      "new_action_lines_to_draw": [
        {"line_id": "option_A", "label": "Interview users", "style": "suggestion", "content": "Talk to the first ten signups."}
      ]
    }
  },
  "narrative": "The arrow moves forward."
}`

func stubClient(call generateFunc) *Client {
	return NewClientWithCall(call, nil, 0, nil)
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"whitespace", "  {\"a\":1}\n", `{"a":1}`},
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced bare", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"fence prefix without close", "```json {\"a\":1}", "```json {\"a\":1}"},
	}
	for _, c := range cases {
		if got := ExtractJSON(c.in); got != c.want {
			t.Errorf("%s: got %q, want %q", c.name, got, c.want)
		}
	}
}

func TestGenerateBlueprint_FencedOutput(t *testing.T) {
	c := stubClient(func(ctx context.Context, prompt, cached string) (string, error) {
		return "```json\n" + validInitJSON + "\n```", nil
	})

	result, err := c.GenerateBlueprint(context.Background(), "Launch a SaaS product")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(result.Commands.Payload.BlueprintDefinition.MainPath); got != 3 {
		t.Errorf("main_path length = %d, want 3", got)
	}
	if result.Commands.Payload.InitialHypothesis.SuggestedPositionOnPath != 0.1 {
		t.Errorf("hypothesis position = %v, want 0.1", result.Commands.Payload.InitialHypothesis.SuggestedPositionOnPath)
	}
}

func TestGenerateBlueprint_MalformedExhaustsRetries(t *testing.T) {
	calls := 0
	c := stubClient(func(ctx context.Context, prompt, cached string) (string, error) {
		calls++
		return "I am not JSON at all", nil
	})

	_, err := c.GenerateBlueprint(context.Background(), "Launch a SaaS product")
	if !errors.Is(err, ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure, got %v", err)
	}
	if calls != 3 {
		t.Errorf("model called %d times, want 3", calls)
	}
}

func TestGenerateBlueprint_RecoversOnSecondAttempt(t *testing.T) {
	calls := 0
	c := stubClient(func(ctx context.Context, prompt, cached string) (string, error) {
		calls++
		if calls == 1 {
			return "garbage", nil
		}
		return validInitJSON, nil
	})

	result, err := c.GenerateBlueprint(context.Background(), "Launch a SaaS product")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("model called %d times, want 2", calls)
	}
	if result.Narrative == "" {
		t.Error("expected narrative")
	}
}

func TestGenerateBlueprint_ValidationFailureRetried(t *testing.T) {
	// Well-formed JSON that violates the stage-count contract still burns
	// an attempt; the parser treats it like a decode failure.
	calls := 0
	c := stubClient(func(ctx context.Context, prompt, cached string) (string, error) {
		calls++
		return `{"visual_engine_commands":{"action":"CREATE_BLUEPRINT","payload":{"blueprint_definition":{"main_path":[{"segment_id":"s1","stage_name":"Only"}],"milestone_nodes":[]},"initial_hypothesis":{"suggested_stage_name":"Only","suggested_position_on_path":0.1}}},"narrative":"n"}`, nil
	})

	_, err := c.GenerateBlueprint(context.Background(), "goal")
	if !errors.Is(err, ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure, got %v", err)
	}
	if calls != 3 {
		t.Errorf("model called %d times, want 3", calls)
	}
}

func TestGenerateBlueprint_RejectedAttemptDoesNotLeak(t *testing.T) {
	// First answer is fully populated but carries the wrong action; later
	// answers have a valid action and definition but omit the narrative and
	// hypothesis. If fields from the rejected answer carried over, the later
	// attempt would validate as a merge of two responses.
	sparse := `{
	  "visual_engine_commands": {
	    "action": "CREATE_BLUEPRINT",
	    "payload": {
	      "blueprint_definition": {
	        "main_path": [
	          {"segment_id": "stage_1", "stage_name": "Foundation"},
	          {"segment_id": "stage_2", "stage_name": "Traction"}
	        ],
	        "milestone_nodes": []
	      }
	    }
	  }
	}`
	calls := 0
	c := stubClient(func(ctx context.Context, prompt, cached string) (string, error) {
		calls++
		if calls == 1 {
			return strings.Replace(validInitJSON, "CREATE_BLUEPRINT", "UPDATE_BLUEPRINT", 1), nil
		}
		return sparse, nil
	})

	_, err := c.GenerateBlueprint(context.Background(), "goal")
	if !errors.Is(err, ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure, got %v", err)
	}
	if calls != 3 {
		t.Errorf("model called %d times, want 3", calls)
	}
}

func TestGenerateBlueprint_ModelErrorRetried(t *testing.T) {
	calls := 0
	c := stubClient(func(ctx context.Context, prompt, cached string) (string, error) {
		calls++
		return "", ErrEmptyResponse
	})

	_, err := c.GenerateBlueprint(context.Background(), "goal")
	if !errors.Is(err, ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure, got %v", err)
	}
	if calls != 3 {
		t.Errorf("model called %d times, want 3", calls)
	}
}

func TestRunCycle_Valid(t *testing.T) {
	var gotPrompt string
	c := stubClient(func(ctx context.Context, prompt, cached string) (string, error) {
		gotPrompt = prompt
		return validCycleJSON, nil
	})

	state := blueprint.SessionState{SessionID: "s-1", CurrentPosition: 0.1, ActiveCycleIndex: 0}
	result, err := c.RunCycle(context.Background(), state, "Shipped MVP, 3 signups", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Commands.Payload.NewArrowPosition != 0.25 {
		t.Errorf("new position = %v, want 0.25", result.Commands.Payload.NewArrowPosition)
	}
	if len(result.Commands.Payload.NewActionLines) != 1 {
		t.Errorf("action lines = %d, want 1", len(result.Commands.Payload.NewActionLines))
	}
	if gotPrompt == "" {
		t.Fatal("expected prompt to be passed through")
	}
}

func TestRunCycle_AbortsWhenBackoffCancelled(t *testing.T) {
	c := stubClient(func(ctx context.Context, prompt, cached string) (string, error) {
		return "garbage", nil
	})
	c.sleep = func(ctx context.Context, d time.Duration) error { return context.Canceled }

	_, err := c.RunCycle(context.Background(), blueprint.SessionState{SessionID: "s-1"}, "obs", false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
