// Package filestore persists sessions as jsonl files, one per session:
// a header line followed by one line per event. Writes are fsynced before
// they are acknowledged.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/barqworks/barqcoder/kernel/session"
)

const fileExt = ".jsonl"

// header is the first line of a session file.
type header struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	Workspace string `json:"workspace"`
}

// Store is a durable file-backed session store.
type Store struct {
	root string
	mu   sync.Mutex
}

func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("filestore: root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

func (s *Store) Save(ctx context.Context, sess *session.Session) error {
	_ = ctx
	path, err := s.sessionPath(sess.ID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.CreateTemp(s.root, ".session-*")
	if err != nil {
		return fmt.Errorf("filestore: save: %w", err)
	}
	defer os.Remove(f.Name())

	enc := json.NewEncoder(f)
	if err := enc.Encode(headerOf(sess)); err != nil {
		f.Close()
		return fmt.Errorf("filestore: encode header: %w", err)
	}
	for i := range sess.Events {
		if err := enc.Encode(&sess.Events[i]); err != nil {
			f.Close()
			return fmt.Errorf("filestore: encode event: %w", err)
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("filestore: sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("filestore: close: %w", err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("filestore: replace %q: %w", path, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id string) (*session.Session, error) {
	_ = ctx
	path, err := s.sessionPath(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: open %q: %w", path, err)
	}
	defer f.Close()
	return decode(f)
}

func (s *Store) Append(ctx context.Context, id string, ev session.Event) error {
	_ = ctx
	path, err := s.sessionPath(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return session.ErrSessionNotFound
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("filestore: open %q: %w", path, err)
	}
	defer f.Close()

	raw, err := json.Marshal(&ev)
	if err != nil {
		return fmt.Errorf("filestore: encode event: %w", err)
	}
	if _, err := f.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("filestore: append: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("filestore: sync: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]session.Meta, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("filestore: list: %w", err)
	}
	metas := []session.Meta{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		f, err := os.Open(filepath.Join(s.root, entry.Name()))
		if err != nil {
			continue
		}
		sess, err := decode(f)
		f.Close()
		if err != nil {
			continue
		}
		metas = append(metas, session.Meta{
			ID:        sess.ID,
			CreatedAt: sess.CreatedAt,
			Workspace: sess.Workspace,
			Events:    len(sess.Events),
		})
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

func headerOf(sess *session.Session) *header {
	return &header{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt.Format(time.RFC3339Nano),
		Workspace: sess.Workspace,
	}
}

func decode(r io.Reader) (*session.Session, error) {
	dec := json.NewDecoder(r)
	var h header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("filestore: decode header: %w", err)
	}
	sess := &session.Session{ID: h.ID, Workspace: h.Workspace, Events: []session.Event{}}
	if h.CreatedAt != "" {
		created, err := time.Parse(time.RFC3339Nano, h.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("filestore: decode header: %w", err)
		}
		sess.CreatedAt = created
	}
	for {
		var ev session.Event
		if err := dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("filestore: decode events: %w", err)
		}
		sess.Events = append(sess.Events, ev)
	}
	return sess, nil
}

func (s *Store) sessionPath(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || id == "." || id == ".." ||
		strings.ContainsAny(id, `/\`) || filepath.Clean(id) != id {
		return "", fmt.Errorf("filestore: invalid session id %q", id)
	}
	return filepath.Join(s.root, id+fileExt), nil
}
