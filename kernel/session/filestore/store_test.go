package filestore

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/barqworks/barqcoder/kernel/session"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return store
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	sess := session.New("abc123", "/repos/demo")
	sess.Events = append(sess.Events,
		session.UserInput("fix the parser"),
		session.ToolCalled("shell_exec", map[string]any{"command": "ls"}, map[string]any{"exit_code": float64(0)}),
		session.EditApplied("src/parser.rs", "+fn parse() {}\n"),
	)
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(ctx, "abc123")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ID != sess.ID || loaded.Workspace != sess.Workspace {
		t.Fatalf("header mismatch: %+v", loaded)
	}
	if !loaded.CreatedAt.Equal(sess.CreatedAt) {
		t.Fatalf("created_at mismatch: %v vs %v", loaded.CreatedAt, sess.CreatedAt)
	}
	if len(loaded.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(loaded.Events))
	}
	if !reflect.DeepEqual(loaded.Events[1].Args, sess.Events[1].Args) {
		t.Fatalf("tool args mismatch: %v", loaded.Events[1].Args)
	}
}

func TestAppendDurable(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	sess := session.New("abc123", "/repos/demo")
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Append(ctx, "abc123", session.AgentToken("hello")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(ctx, "missing", session.AgentToken("x")); err != session.ErrSessionNotFound {
		t.Fatalf("append to missing session: %v", err)
	}

	loaded, err := store.Load(ctx, "abc123")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Events) != 1 || loaded.Events[0].Token != "hello" {
		t.Fatalf("appended event missing: %+v", loaded.Events)
	}
}

func TestListNewestFirst(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	older := session.New("older", "/repos/a")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := session.New("newer", "/repos/b")
	for _, s := range []*session.Session{older, newer} {
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	metas, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(metas) != 2 || metas[0].ID != "newer" || metas[1].ID != "older" {
		t.Fatalf("expected newest first, got %v", metas)
	}
}

func TestLoadMissing(t *testing.T) {
	store := newStore(t)
	if _, err := store.Load(context.Background(), "nope"); err != session.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestReplayMissingIsEmpty(t *testing.T) {
	store := newStore(t)
	count := 0
	for range session.Replay(context.Background(), store, "missing") {
		count++
	}
	if count != 0 {
		t.Fatalf("missing session should replay empty, yielded %d", count)
	}
}

func TestReplayOrder(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	sess := session.New("abc123", "/repos/demo")
	sess.Events = append(sess.Events,
		session.UserInput("first"),
		session.AgentToken("second"),
		session.Failure("third"),
	)
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	var kinds []session.EventKind
	for ev := range session.Replay(ctx, store, "abc123") {
		kinds = append(kinds, ev.Kind)
	}
	want := []session.EventKind{session.KindUserInput, session.KindAgentToken, session.KindError}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("replay order %v, want %v", kinds, want)
	}
}

func TestInvalidSessionID(t *testing.T) {
	store := newStore(t)
	if _, err := store.Load(context.Background(), "../escape"); err == nil {
		t.Fatal("path-traversing id must be rejected")
	}
}
