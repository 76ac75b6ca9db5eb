// Package server exposes the HTTP surface: the two SSE-streaming cycle
// endpoints plus the JSON snapshot and listing endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/living-blueprint/internal/blueprint"
	"github.com/danielpatrickdp/living-blueprint/internal/model"
	"github.com/danielpatrickdp/living-blueprint/internal/orchestrator"
	"github.com/danielpatrickdp/living-blueprint/internal/store"
	"github.com/danielpatrickdp/living-blueprint/internal/stream"
)

// #region types

// maxBodySize limits POST request bodies.
const maxBodySize = 1 << 20 // 1 MB

// Engine is the orchestrator surface the handlers call. Split out so
// handler tests can stub the model-and-store path.
type Engine interface {
	Initialize(ctx context.Context, userGoal string) (*orchestrator.InitOutcome, error)
	Advance(ctx context.Context, sessionID, userText string, firstCycle bool) (*orchestrator.AdvanceOutcome, error)
}

// Server routes the HTTP API.
type Server struct {
	engine         Engine
	store          *store.Store
	log            *zap.Logger
	narrativeDelay time.Duration
}

// NewServer creates the HTTP server layer.
func NewServer(engine Engine, st *store.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{engine: engine, store: st, log: log, narrativeDelay: -1}
}

// SetNarrativeDelay overrides the streaming cadence (tests pass 0).
func (s *Server) SetNarrativeDelay(d time.Duration) {
	s.narrativeDelay = d
}

// #endregion types

// #region routes

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /init", s.handleInit)
	mux.HandleFunc("POST /cycle", s.handleCycle)
	mux.HandleFunc("GET /session-state", s.handleSessionState)
	mux.HandleFunc("GET /sessions", s.handleSessions)
	mux.HandleFunc("GET /cycles", s.handleCycles)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// #endregion routes

// #region request-types

type initRequest struct {
	UserGoal string `json:"userGoal"`
}

type cycleRequest struct {
	SessionID        string `json:"session_id"`
	UserObservations string `json:"user_observations"`
	IsFirstCycle     bool   `json:"is_first_cycle"`
}

// #endregion request-types

// #region init

func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req initRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.UserGoal == "" {
		s.writeError(w, http.StatusBadRequest, "userGoal is required", "")
		return
	}

	// The model call and both inserts complete before any event is sent:
	// a client that receives the blueprint event holds a durable session.
	outcome, err := s.engine.Initialize(r.Context(), req.UserGoal)
	if err != nil {
		s.writeEngineError(w, err, "failed to generate blueprint")
		return
	}

	sw, err := stream.NewWriter(w)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported", "")
		return
	}
	if s.narrativeDelay >= 0 {
		sw.SetDelay(s.narrativeDelay)
	}

	if err := sw.Blueprint(outcome.Commands, outcome.SessionID); err != nil {
		s.abortStream(sw, "init", err)
		return
	}
	if err := sw.Narrative(r.Context(), outcome.Narrative); err != nil {
		s.abortStream(sw, "init", err)
		return
	}
	if err := sw.Done(); err != nil {
		s.log.Debug("client disconnected before done", zap.Error(err))
	}
}

// #endregion init

// #region cycle

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req cycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.SessionID == "" || req.UserObservations == "" {
		s.writeError(w, http.StatusBadRequest, "session_id and user_observations are required", "")
		return
	}

	outcome, err := s.engine.Advance(r.Context(), req.SessionID, req.UserObservations, req.IsFirstCycle)
	if err != nil {
		s.writeEngineError(w, err, "failed to process cycle")
		return
	}

	sw, err := stream.NewWriter(w)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported", "")
		return
	}
	if s.narrativeDelay >= 0 {
		sw.SetDelay(s.narrativeDelay)
	}

	if err := sw.Commands(outcome.Commands); err != nil {
		s.abortStream(sw, "cycle", err)
		return
	}
	if err := sw.Narrative(r.Context(), outcome.Narrative); err != nil {
		s.abortStream(sw, "cycle", err)
		return
	}
	if err := sw.Done(); err != nil {
		s.log.Debug("client disconnected before done", zap.Error(err))
	}
}

// #endregion cycle

// #region session-state

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "id required", "")
		return
	}

	sess, err := s.store.GetSession(id)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, "not found", "")
			return
		}
		s.log.Error("get session failed", zap.String("id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}

	// A missing blueprint for an existing session is tolerated here with an
	// empty definition, matching the snapshot contract; it still indicates
	// an integrity problem, so it gets its own log line.
	var def blueprint.Definition
	bp, err := s.store.GetBlueprintBySession(id)
	switch {
	case err == nil:
		def = bp.Definition
	case errors.Is(err, store.ErrBlueprintNotFound):
		s.log.Error("data integrity: session has no blueprint", zap.String("session_id", id))
		def = blueprint.Definition{MainPath: []blueprint.PathSegment{}, MilestoneNodes: []blueprint.MilestoneNode{}}
	default:
		s.log.Error("get blueprint failed", zap.String("id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}

	state := blueprint.SessionState{
		SessionID:               sess.ID,
		BlueprintDefinition:     def,
		CurrentPosition:         sess.CurrentPosition,
		ActiveCycleIndex:        sess.ActiveCycleIndex,
		LastAssessmentNarrative: sess.LastAssessmentNarrative,
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"session_state": state})
}

// #endregion session-state

// #region listings

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions()
	if err != nil {
		s.log.Error("list sessions failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list sessions", "")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session_id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "session_id required", "")
		return
	}
	if _, err := s.store.GetSession(id); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			s.writeError(w, http.StatusNotFound, "not found", "")
			return
		}
		s.log.Error("get session failed", zap.String("id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error", "")
		return
	}
	cycles, err := s.store.ListCycles(id)
	if err != nil {
		s.log.Error("list cycles failed", zap.String("id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list cycles", "")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"cycles": cycles})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// #endregion listings

// #region error-mapping

// writeEngineError maps orchestrator errors to the response taxonomy.
func (s *Server) writeEngineError(w http.ResponseWriter, err error, genericMsg string) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidRequest):
		s.writeError(w, http.StatusBadRequest, "invalid request", "")
	case errors.Is(err, store.ErrSessionNotFound):
		s.writeError(w, http.StatusNotFound, "session not found", "")
	case errors.Is(err, store.ErrBlueprintNotFound):
		// Data-integrity violation, not a user error; logged distinctly.
		s.log.Error("data integrity: session has no blueprint", zap.Error(err))
		s.writeError(w, http.StatusNotFound, "blueprint not found", "")
	case errors.Is(err, store.ErrConcurrentModification):
		s.writeError(w, http.StatusConflict, "session was modified by another request", "")
	case errors.Is(err, model.ErrParseFailure),
		errors.Is(err, model.ErrModelUnavailable),
		errors.Is(err, model.ErrEmptyResponse):
		s.log.Error("generation failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, genericMsg, err.Error())
	default:
		s.log.Error("request failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error", "")
	}
}

// abortStream emits the single in-stream error event and gives up; events
// already sent are not rolled back.
func (s *Server) abortStream(sw *stream.Writer, op string, err error) {
	s.log.Warn("stream aborted", zap.String("op", op), zap.Error(err))
	if serr := sw.Error("processing failed"); serr != nil {
		s.log.Debug("error event not delivered", zap.Error(serr))
	}
}

// #endregion error-mapping

// #region response-helpers

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("write response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg, details string) {
	body := map[string]string{"error": msg}
	if details != "" {
		body["details"] = details
	}
	s.writeJSON(w, status, body)
}

// #endregion response-helpers
