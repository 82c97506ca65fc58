// Package inmemory is a map-backed session store for tests and ephemeral
// runs.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/barqworks/barqcoder/kernel/session"
)

type Store struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func New() *Store {
	return &Store{sessions: map[string]*session.Session{}}
}

func (s *Store) Save(ctx context.Context, sess *session.Session) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = clone(sess)
	return nil
}

func (s *Store) Load(ctx context.Context, id string) (*session.Session, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return clone(sess), nil
}

func (s *Store) Append(ctx context.Context, id string, ev session.Event) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return session.ErrSessionNotFound
	}
	sess.Events = append(sess.Events, ev)
	return nil
}

func (s *Store) List(ctx context.Context) ([]session.Meta, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	metas := make([]session.Meta, 0, len(s.sessions))
	for _, sess := range s.sessions {
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

func clone(sess *session.Session) *session.Session {
	cp := *sess
	cp.Events = make([]session.Event, len(sess.Events))
	copy(cp.Events, sess.Events)
	return &cp
}
