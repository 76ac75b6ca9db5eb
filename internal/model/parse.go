package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// #region constants

// Free-text model output is not guaranteed to be well-formed JSON; this is
// the only retry logic in the system.
const maxParseAttempts = 3

const backoffUnit = time.Second // linear: attempt N waits N units

// ErrParseFailure means the model output never decoded into the expected
// shape within the attempt budget. It wraps the last underlying error.
var ErrParseFailure = errors.New("failed to parse model output")

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n```")

// #endregion constants

// #region extract

// ExtractJSON strips an optional markdown code fence from raw model output.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if m := fencedJSON.FindStringSubmatch(s); m != nil {
			return m[1]
		}
	}
	return s
}

// #endregion extract

// #region parse-with-retry

// parseWithRetry calls gen, decodes the output, and runs validate. Any
// failure waits backoffUnit×attempt and retries, up to maxParseAttempts
// total calls. Every attempt decodes into its own zero value, so fields
// from a rejected response never carry into a later one.
func parseWithRetry[T any](ctx context.Context, c *Client, gen func(context.Context) (string, error), validate func(*T) error) (*T, error) {
	var lastErr error
	for attempt := 1; attempt <= maxParseAttempts; attempt++ {
		var result T
		lastErr = func() error {
			raw, err := gen(ctx)
			if err != nil {
				return err
			}
			if err := json.Unmarshal([]byte(ExtractJSON(raw)), &result); err != nil {
				return fmt.Errorf("decode: %w", err)
			}
			return validate(&result)
		}()
		if lastErr == nil {
			return &result, nil
		}

		c.log.Warn("model output rejected",
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)

		if attempt < maxParseAttempts {
			if err := c.sleep(ctx, backoffUnit*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrParseFailure, maxParseAttempts, lastErr)
}

// #endregion parse-with-retry

// #region sleep

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// #endregion sleep
