// Package model wraps the Gemini API behind the two operations the
// orchestrator needs: blueprint generation and strategy cycles. All JSON
// parsing and retry logic for free-text model output lives here.
package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/danielpatrickdp/living-blueprint/internal/blueprint"
	"github.com/danielpatrickdp/living-blueprint/internal/prompt"
)

// #region errors

var (
	// ErrModelUnavailable wraps transport or service failures from the model.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrEmptyResponse means the model returned no text at all.
	ErrEmptyResponse = errors.New("empty model response")
)

// #endregion errors

// #region types

const defaultModelName = "gemini-2.5-flash-lite-preview-09-2025"

// Lower temperature for more deterministic JSON output.
const generationTemperature = 0.4

// Generator is the model surface the orchestrator depends on.
type Generator interface {
	GenerateBlueprint(ctx context.Context, userGoal string) (*blueprint.InitResult, error)
	RunCycle(ctx context.Context, state blueprint.SessionState, userInput string, firstCycle bool) (*blueprint.CycleResult, error)
}

// generateFunc performs one raw model call and returns the raw text.
// cachedContent is the name of an explicit context cache, or empty.
type generateFunc func(ctx context.Context, promptText, cachedContent string) (string, error)

// Config holds the client settings.
type Config struct {
	APIKey string
	Model  string
}

// Client calls the Gemini API for blueprint generation and cycles.
type Client struct {
	gc    *genai.Client
	model string
	cache *ContextCache
	call  generateFunc
	sleep sleepFunc
	log   *zap.Logger
}

// #endregion types

// #region constructor

// NewClient creates a Gemini-backed client. The context cache is bounded
// and owned by the client; pass size 0 to disable explicit caching.
func NewClient(ctx context.Context, cfg Config, cacheSize int, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("model: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModelName
	}
	if log == nil {
		log = zap.NewNop()
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("model: create genai client: %w", err)
	}

	c := &Client{
		gc:    gc,
		model: cfg.Model,
		sleep: sleepCtx,
		log:   log,
	}
	c.call = c.generateOnce
	c.cache = NewContextCache(cacheSize, genaiCacheOps{gc: gc, model: cfg.Model}, log)
	return c, nil
}

// NewClientWithCall creates a client with an injected raw-call function and
// cache backend. Used for testing without a live API.
func NewClientWithCall(call generateFunc, ops CacheOps, cacheSize int, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		model: defaultModelName,
		call:  call,
		sleep: func(context.Context, time.Duration) error { return nil },
		log:   log,
		cache: NewContextCache(cacheSize, ops, log),
	}
}

// #endregion constructor

// #region raw-call

// generateOnce performs a single generation call. No retries at this layer.
func (c *Client) generateOnce(ctx context.Context, promptText, cachedContent string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](generationTemperature),
	}
	if cachedContent != "" {
		cfg.CachedContent = cachedContent
	}

	resp, err := c.gc.Models.GenerateContent(ctx, c.model, genai.Text(promptText), cfg)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}

	if resp.UsageMetadata != nil {
		c.log.Debug("model usage",
			zap.Int32("prompt_tokens", resp.UsageMetadata.PromptTokenCount),
			zap.Int32("cached_tokens", resp.UsageMetadata.CachedContentTokenCount),
			zap.Int32("output_tokens", resp.UsageMetadata.CandidatesTokenCount),
		)
	}
	return text, nil
}

// #endregion raw-call

// #region generate-blueprint

// GenerateBlueprint runs the initialize prompt for a user goal and returns
// the validated blueprint-creation result.
func (c *Client) GenerateBlueprint(ctx context.Context, userGoal string) (*blueprint.InitResult, error) {
	promptText := prompt.Initialize(userGoal)

	return parseWithRetry(ctx, c, func(ctx context.Context) (string, error) {
		return c.call(ctx, promptText, "")
	}, (*blueprint.InitResult).Validate)
}

// #endregion generate-blueprint

// #region run-cycle

// RunCycle runs one strategy cycle against the current session state and
// returns the validated blueprint-update result.
func (c *Client) RunCycle(ctx context.Context, state blueprint.SessionState, userInput string, firstCycle bool) (*blueprint.CycleResult, error) {
	stateJSON, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("model: marshal session state: %w", err)
	}

	// Explicit caching is a cost optimization only; failures fall back to
	// the implicit cache.
	cachedContent := c.cache.HandleFor(ctx, state.SessionID, state.ActiveCycleIndex, string(stateJSON))

	promptText := prompt.StrategyCycle(string(stateJSON), userInput, firstCycle)

	return parseWithRetry(ctx, c, func(ctx context.Context) (string, error) {
		return c.call(ctx, promptText, cachedContent)
	}, (*blueprint.CycleResult).Validate)
}

// #endregion run-cycle

// #region close

// Close releases remote cached contents and the underlying client.
func (c *Client) Close(ctx context.Context) error {
	c.cache.Close(ctx)
	return nil
}

// #endregion close

// #region genai-cache-ops

// genaiCacheOps backs the context cache with the real Caches API.
type genaiCacheOps struct {
	gc    *genai.Client
	model string
}

func (o genaiCacheOps) Create(ctx context.Context, displayName, contents string) (string, error) {
	cc, err := o.gc.Caches.Create(ctx, o.model, &genai.CreateCachedContentConfig{
		DisplayName: displayName,
		Contents:    genai.Text("# CURRENT SESSION STATE (Cached Context):\n" + contents),
		TTL:         time.Hour,
	})
	if err != nil {
		return "", err
	}
	return cc.Name, nil
}

func (o genaiCacheOps) Delete(ctx context.Context, name string) error {
	_, err := o.gc.Caches.Delete(ctx, name, nil)
	return err
}

// #endregion genai-cache-ops
