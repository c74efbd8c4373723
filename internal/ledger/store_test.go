package ledger_test

import (
	"context"
	"testing"

	"phototriage/internal/testsupport"
)

func TestInsertKeptIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	ctx := context.Background()
	if err := store.InsertKept(ctx, "asset-1"); err != nil {
		t.Fatalf("InsertKept failed: %v", err)
	}
	if err := store.InsertKept(ctx, "asset-1"); err != nil {
		t.Fatalf("duplicate InsertKept failed: %v", err)
	}

	count, err := store.KeptCount(ctx)
	if err != nil {
		t.Fatalf("KeptCount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected kept count 1, got %d", count)
	}

	kept, err := store.IsKept(ctx, "asset-1")
	if err != nil {
		t.Fatalf("IsKept failed: %v", err)
	}
	if !kept {
		t.Fatal("expected asset-1 to be kept")
	}
}

func TestInsertKeptRejectsEmptyID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	if err := store.InsertKept(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestSensitiveRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	ctx := context.Background()
	for _, id := range []string{"s1", "s2", "s3"} {
		if err := store.InsertSensitive(ctx, id, 0.91); err != nil {
			t.Fatalf("InsertSensitive(%s) failed: %v", id, err)
		}
	}
	// Duplicate insert must not rewrite the original verdict.
	if err := store.InsertSensitive(ctx, "s1", 0.5); err != nil {
		t.Fatalf("duplicate InsertSensitive failed: %v", err)
	}

	ids, err := store.SensitiveIDs(ctx)
	if err != nil {
		t.Fatalf("SensitiveIDs failed: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 sensitive ids, got %d", len(ids))
	}

	entries, err := store.SensitiveEntries(ctx)
	if err != nil {
		t.Fatalf("SensitiveEntries failed: %v", err)
	}
	for _, entry := range entries {
		if entry.ID == "s1" && entry.Confidence != 0.91 {
			t.Fatalf("duplicate insert overwrote confidence: %v", entry.Confidence)
		}
	}

	removed, err := store.RemoveSensitive(ctx, "s2", "missing")
	if err != nil {
		t.Fatalf("RemoveSensitive failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	has, err := store.HasSensitive(ctx, "s2")
	if err != nil {
		t.Fatalf("HasSensitive failed: %v", err)
	}
	if has {
		t.Fatal("s2 should be removed")
	}
}

func TestClearSensitive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if err := store.InsertSensitive(ctx, id, 0.85); err != nil {
			t.Fatalf("InsertSensitive failed: %v", err)
		}
	}
	cleared, err := store.ClearSensitive(ctx)
	if err != nil {
		t.Fatalf("ClearSensitive failed: %v", err)
	}
	if cleared != 2 {
		t.Fatalf("expected 2 cleared, got %d", cleared)
	}
}

func TestScanStateLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	ctx := context.Background()
	state, err := store.ScanState(ctx)
	if err != nil {
		t.Fatalf("ScanState failed: %v", err)
	}
	if state.Started || state.Completed || state.Version != 0 {
		t.Fatalf("fresh database should report zero state, got %+v", state)
	}

	if err := store.SetScanStarted(ctx, true); err != nil {
		t.Fatalf("SetScanStarted failed: %v", err)
	}
	if err := store.SetScanCompleted(ctx); err != nil {
		t.Fatalf("SetScanCompleted failed: %v", err)
	}

	state, err = store.ScanState(ctx)
	if err != nil {
		t.Fatalf("ScanState failed: %v", err)
	}
	if !state.Started || !state.Completed || state.Version != 1 {
		t.Fatalf("unexpected state after completion: %+v", state)
	}

	if err := store.ResetScan(ctx); err != nil {
		t.Fatalf("ResetScan failed: %v", err)
	}
	state, err = store.ScanState(ctx)
	if err != nil {
		t.Fatalf("ScanState failed: %v", err)
	}
	if state.Started || state.Completed {
		t.Fatalf("ResetScan should clear flags, got %+v", state)
	}
	if state.Version != 1 {
		t.Fatalf("ResetScan must not touch version, got %d", state.Version)
	}
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	store := testsupport.MustOpenLedger(t, cfg)
	if err := store.InsertKept(ctx, "k1"); err != nil {
		t.Fatalf("InsertKept failed: %v", err)
	}
	if err := store.InsertSensitive(ctx, "s1", 0.9); err != nil {
		t.Fatalf("InsertSensitive failed: %v", err)
	}
	if err := store.SetScanStarted(ctx, true); err != nil {
		t.Fatalf("SetScanStarted failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenLedger(t, cfg)
	kept, err := reopened.IsKept(ctx, "k1")
	if err != nil {
		t.Fatalf("IsKept failed: %v", err)
	}
	if !kept {
		t.Fatal("kept marker lost across reopen")
	}
	has, err := reopened.HasSensitive(ctx, "s1")
	if err != nil {
		t.Fatalf("HasSensitive failed: %v", err)
	}
	if !has {
		t.Fatal("sensitive verdict lost across reopen")
	}
	state, err := reopened.ScanState(ctx)
	if err != nil {
		t.Fatalf("ScanState failed: %v", err)
	}
	if !state.Started || state.Completed {
		t.Fatalf("expected interrupted-scan flags after reopen, got %+v", state)
	}
}
