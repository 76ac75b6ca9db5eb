// Package stream emits the ordered SSE event sequence for one request.
// Each event is a single `data: <json>` line; the event type is the "type"
// discriminator inside the payload, matching what the visualization consumes.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielpatrickdp/living-blueprint/internal/blueprint"
)

// #region types

// Simulated typing cadence for the narrative playback.
const defaultNarrativeDelay = 50 * time.Millisecond

// Writer sends typed SSE events over a single long-lived response.
// Not safe for concurrent use; one Writer serves one request.
type Writer struct {
	w     http.ResponseWriter
	f     http.Flusher
	delay time.Duration
}

type blueprintEvent struct {
	Type string             `json:"type"`
	Data blueprintEventData `json:"data"`
}

type blueprintEventData struct {
	Commands  blueprint.CreateCommand `json:"visual_engine_commands"`
	SessionID string                  `json:"session_id"`
}

type commandsEvent struct {
	Type string                  `json:"type"`
	Data blueprint.UpdateCommand `json:"data"`
}

type narrativeEvent struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	IsComplete bool   `json:"isComplete"`
}

type doneEvent struct {
	Type string `json:"type"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// #endregion types

// #region constructor

// NewWriter prepares w for SSE and flushes the headers. Fails when the
// underlying ResponseWriter cannot flush.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	f.Flush()
	return &Writer{w: w, f: f, delay: defaultNarrativeDelay}, nil
}

// SetDelay overrides the per-word narrative delay. Tests use zero.
func (sw *Writer) SetDelay(d time.Duration) {
	sw.delay = d
}

// #endregion constructor

// #region send

func (sw *Writer) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", data); err != nil {
		return err
	}
	sw.f.Flush()
	return nil
}

// #endregion send

// #region events

// Blueprint sends the CREATE_BLUEPRINT command with its session id, so the
// client can render and store the session reference immediately.
func (sw *Writer) Blueprint(cmd blueprint.CreateCommand, sessionID string) error {
	return sw.send(blueprintEvent{Type: "blueprint", Data: blueprintEventData{Commands: cmd, SessionID: sessionID}})
}

// Commands sends the UPDATE_BLUEPRINT command for one cycle.
func (sw *Writer) Commands(cmd blueprint.UpdateCommand) error {
	return sw.send(commandsEvent{Type: "commands", Data: cmd})
}

// Narrative plays the text back word by word: one event per cumulative
// prefix, isComplete on the last chunk, a fixed pause between emissions.
func (sw *Writer) Narrative(ctx context.Context, narrative string) error {
	words := strings.Fields(narrative)
	for i := range words {
		chunk := strings.Join(words[:i+1], " ")
		if err := sw.send(narrativeEvent{Type: "narrative", Text: chunk, IsComplete: i == len(words)-1}); err != nil {
			return err
		}
		if i < len(words)-1 && sw.delay > 0 {
			t := time.NewTimer(sw.delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	return nil
}

// Done sends the terminal event.
func (sw *Writer) Done() error {
	return sw.send(doneEvent{Type: "done"})
}

// Error sends the single in-stream error event. No events follow it.
func (sw *Writer) Error(message string) error {
	return sw.send(errorEvent{Type: "error", Message: message})
}

// #endregion events
