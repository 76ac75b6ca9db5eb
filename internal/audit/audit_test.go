package audit

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func testLog(t *testing.T) *Log {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	l, err := NewLog(db)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestLog_RecordAndBySession(t *testing.T) {
	l := testLog(t)

	entries := []Entry{
		{SessionID: "s-1", Operation: OpInitialize, CycleIndex: 0, Outcome: OutcomeOK, Elapsed: 1200 * time.Millisecond},
		{SessionID: "s-1", Operation: OpCycle, CycleIndex: 1, Outcome: OutcomeError, Detail: "parse failure", Elapsed: 3 * time.Second},
		{SessionID: "s-2", Operation: OpInitialize, CycleIndex: 0, Outcome: OutcomeOK},
	}
	for _, e := range entries {
		if err := l.Record(e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := l.BySession("s-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("entry count = %d, want 2", len(got))
	}
	if got[0].Operation != OpInitialize || got[1].Operation != OpCycle {
		t.Errorf("unexpected order: %s then %s", got[0].Operation, got[1].Operation)
	}
	if got[1].Outcome != OutcomeError || got[1].Detail != "parse failure" {
		t.Errorf("unexpected failure entry: %+v", got[1])
	}
	if got[1].Elapsed != 3*time.Second {
		t.Errorf("elapsed = %v, want 3s", got[1].Elapsed)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("created_at not defaulted")
	}
}

func TestLog_BySessionEmpty(t *testing.T) {
	l := testLog(t)
	got, err := l.BySession("missing")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("entry count = %d, want 0", len(got))
	}
}

func TestNewLog_Idempotent(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := NewLog(db); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLog(db); err != nil {
		t.Fatalf("second NewLog failed: %v", err)
	}
}
