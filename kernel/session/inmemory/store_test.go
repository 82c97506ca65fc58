package inmemory

import (
	"context"
	"testing"

	"github.com/barqworks/barqcoder/kernel/session"
)

func TestSaveIsolatesCaller(t *testing.T) {
	store := New()
	ctx := context.Background()

	sess := session.New("abc", "/repos/demo")
	sess.Events = append(sess.Events, session.UserInput("hi"))
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	sess.Events[0].Text = "mutated"
	loaded, err := store.Load(ctx, "abc")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Events[0].Text != "hi" {
		t.Fatalf("store shares memory with caller: %q", loaded.Events[0].Text)
	}
}

func TestAppendMissing(t *testing.T) {
	store := New()
	if err := store.Append(context.Background(), "nope", session.UserInput("x")); err != session.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
