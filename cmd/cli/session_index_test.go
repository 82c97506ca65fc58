package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestIndex(t *testing.T) *sessionIndex {
	t.Helper()
	idx, err := newSessionIndex(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestUpsertAndList(t *testing.T) {
	idx := newTestIndex(t)
	now := time.Now()

	if err := idx.UpsertSession("/repos/a", "older", now.Add(-time.Hour)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := idx.UpsertSession("/repos/b", "newer", now); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	records, err := idx.ListSessions(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 || records[0].SessionID != "newer" {
		t.Fatalf("expected newest first, got %+v", records)
	}
}

func TestTouchEventTracksActivity(t *testing.T) {
	idx := newTestIndex(t)
	now := time.Now()

	if err := idx.TouchEvent("/repos/a", "s1", "fix the parser", now); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := idx.TouchEvent("/repos/a", "s1", "", now.Add(time.Second)); err != nil {
		t.Fatalf("touch: %v", err)
	}

	records, err := idx.ListSessions(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	rec := records[0]
	if rec.EventCount != 2 {
		t.Fatalf("event count should be 2, got %d", rec.EventCount)
	}
	if rec.LastUserMessage != "fix the parser" {
		t.Fatalf("empty touch must keep the last user message, got %q", rec.LastUserMessage)
	}
}

func TestSyncFromStoreDir(t *testing.T) {
	idx := newTestIndex(t)
	storeDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(storeDir, "abc.jsonl"), []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(storeDir, "ignored.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := idx.SyncFromStoreDir(storeDir); err != nil {
		t.Fatalf("sync: %v", err)
	}
	records, err := idx.ListSessions(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].SessionID != "abc" {
		t.Fatalf("expected only abc indexed, got %+v", records)
	}
}
