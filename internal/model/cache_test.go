package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// fakeOps records create/delete calls against the remote cache API.
type fakeOps struct {
	creates  int
	deletes  []string
	failNext bool
}

func (f *fakeOps) Create(ctx context.Context, displayName, contents string) (string, error) {
	if f.failNext {
		f.failNext = false
		return "", errors.New("quota exceeded")
	}
	f.creates++
	return fmt.Sprintf("cachedContents/%d", f.creates), nil
}

func (f *fakeOps) Delete(ctx context.Context, name string) error {
	f.deletes = append(f.deletes, name)
	return nil
}

var bigContents = strings.Repeat("x", minCacheContentBytes)

func TestContextCache_SmallContentSkipped(t *testing.T) {
	ops := &fakeOps{}
	c := NewContextCache(1, ops, nil)

	if name := c.HandleFor(context.Background(), "s-1", 0, "tiny"); name != "" {
		t.Errorf("expected no handle for small content, got %q", name)
	}
	if ops.creates != 0 {
		t.Errorf("expected no remote create, got %d", ops.creates)
	}
}

func TestContextCache_ReuseWithinCycle(t *testing.T) {
	ops := &fakeOps{}
	c := NewContextCache(1, ops, nil)

	first := c.HandleFor(context.Background(), "s-1", 2, bigContents)
	if first == "" {
		t.Fatal("expected a handle")
	}
	second := c.HandleFor(context.Background(), "s-1", 2, bigContents)
	if second != first {
		t.Errorf("expected reuse, got %q then %q", first, second)
	}
	if ops.creates != 1 {
		t.Errorf("remote creates = %d, want 1", ops.creates)
	}
}

func TestContextCache_StaleCycleReplaced(t *testing.T) {
	ops := &fakeOps{}
	c := NewContextCache(1, ops, nil)

	first := c.HandleFor(context.Background(), "s-1", 1, bigContents)
	second := c.HandleFor(context.Background(), "s-1", 2, bigContents)
	if second == first {
		t.Error("expected a fresh handle for the new cycle")
	}
	if len(ops.deletes) != 1 || ops.deletes[0] != first {
		t.Errorf("expected stale handle %q deleted, got %v", first, ops.deletes)
	}
}

func TestContextCache_EvictsOldest(t *testing.T) {
	ops := &fakeOps{}
	c := NewContextCache(2, ops, nil)

	a := c.HandleFor(context.Background(), "s-a", 0, bigContents)
	c.HandleFor(context.Background(), "s-b", 0, bigContents)

	// Touch a so b becomes the oldest.
	c.HandleFor(context.Background(), "s-a", 0, bigContents)
	c.HandleFor(context.Background(), "s-c", 0, bigContents)

	if c.Len() != 2 {
		t.Errorf("cache holds %d entries, want 2", c.Len())
	}
	if len(ops.deletes) != 1 {
		t.Fatalf("expected 1 eviction delete, got %v", ops.deletes)
	}
	if ops.deletes[0] == a {
		t.Error("touched entry was evicted instead of the oldest")
	}
}

func TestContextCache_CreateFailureFallsBack(t *testing.T) {
	ops := &fakeOps{failNext: true}
	c := NewContextCache(1, ops, nil)

	if name := c.HandleFor(context.Background(), "s-1", 0, bigContents); name != "" {
		t.Errorf("expected fallback to implicit caching, got %q", name)
	}
	// Next call succeeds.
	if name := c.HandleFor(context.Background(), "s-1", 0, bigContents); name == "" {
		t.Error("expected a handle once the remote recovers")
	}
}

func TestContextCache_Disabled(t *testing.T) {
	ops := &fakeOps{}
	c := NewContextCache(0, ops, nil)
	if name := c.HandleFor(context.Background(), "s-1", 0, bigContents); name != "" {
		t.Errorf("expected caching disabled, got %q", name)
	}
}

func TestContextCache_Close(t *testing.T) {
	ops := &fakeOps{}
	c := NewContextCache(2, ops, nil)
	c.HandleFor(context.Background(), "s-a", 0, bigContents)
	c.HandleFor(context.Background(), "s-b", 0, bigContents)

	c.Close(context.Background())
	if c.Len() != 0 {
		t.Errorf("cache holds %d entries after close, want 0", c.Len())
	}
	if len(ops.deletes) != 2 {
		t.Errorf("remote deletes = %d, want 2", len(ops.deletes))
	}
}
