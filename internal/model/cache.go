package model

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// #region types

// Explicit caching only pays off above the service's minimum token count
// (~1024 tokens for the flash models, roughly 4 bytes per token).
const minCacheContentBytes = 4096

// CacheOps abstracts the remote cached-content API so eviction behavior is
// testable without a live service.
type CacheOps interface {
	Create(ctx context.Context, displayName, contents string) (string, error)
	Delete(ctx context.Context, name string) error
}

type cacheEntry struct {
	sessionID  string
	name       string // remote cached-content name
	cycleIndex int
}

// ContextCache is a bounded session→cached-content map with LRU eviction.
// Evicted and replaced entries are deleted remotely on a best-effort basis.
type ContextCache struct {
	mu      sync.Mutex
	cap     int
	ops     CacheOps
	entries []cacheEntry // LRU order, oldest first
	log     *zap.Logger
}

// #endregion types

// #region constructor

// NewContextCache creates a cache holding at most capacity entries.
// Capacity 0 disables explicit caching entirely.
func NewContextCache(capacity int, ops CacheOps, log *zap.Logger) *ContextCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &ContextCache{cap: capacity, ops: ops, log: log}
}

// #endregion constructor

// #region handle-for

// HandleFor returns the remote cache name to use for a cycle call, creating
// or refreshing the entry as needed. Returns empty when caching is disabled,
// the content is too small, or the remote create fails — callers proceed
// without explicit caching in all three cases.
func (c *ContextCache) HandleFor(ctx context.Context, sessionID string, cycleIndex int, contents string) string {
	if c.cap == 0 || c.ops == nil {
		return ""
	}
	if len(contents) < minCacheContentBytes {
		return ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(sessionID); i >= 0 {
		e := c.entries[i]
		if e.cycleIndex == cycleIndex {
			c.touch(i)
			return e.name
		}
		// Stale entry from a previous cycle: replace it.
		c.removeAt(i)
		c.deleteRemote(ctx, e.name)
	}

	name, err := c.ops.Create(ctx, fmt.Sprintf("session-%s-cycle-%d", sessionID, cycleIndex), contents)
	if err != nil || name == "" {
		c.log.Warn("context cache create failed, using implicit cache",
			zap.String("session_id", sessionID), zap.Error(err))
		return ""
	}

	c.entries = append(c.entries, cacheEntry{sessionID: sessionID, name: name, cycleIndex: cycleIndex})
	for len(c.entries) > c.cap {
		evicted := c.entries[0]
		c.entries = c.entries[1:]
		c.deleteRemote(ctx, evicted.name)
	}
	return name
}

// #endregion handle-for

// #region invalidate

// Invalidate drops a session's entry and deletes it remotely.
func (c *ContextCache) Invalidate(ctx context.Context, sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(sessionID); i >= 0 {
		name := c.entries[i].name
		c.removeAt(i)
		c.deleteRemote(ctx, name)
	}
}

// Close deletes all remote entries.
func (c *ContextCache) Close(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		c.deleteRemote(ctx, e.name)
	}
	c.entries = nil
}

// #endregion invalidate

// #region helpers

// Len returns the number of live entries.
func (c *ContextCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ContextCache) indexOf(sessionID string) int {
	for i, e := range c.entries {
		if e.sessionID == sessionID {
			return i
		}
	}
	return -1
}

func (c *ContextCache) touch(i int) {
	e := c.entries[i]
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	c.entries = append(c.entries, e)
}

func (c *ContextCache) removeAt(i int) {
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
}

func (c *ContextCache) deleteRemote(ctx context.Context, name string) {
	if err := c.ops.Delete(ctx, name); err != nil {
		c.log.Warn("context cache delete failed", zap.String("name", name), zap.Error(err))
	}
}

// #endregion helpers
