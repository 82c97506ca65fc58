// Package session defines the durable, replayable record of one coding
// session: everything the user said, every token the agent produced, every
// tool call, and every applied edit.
package session

import (
	"context"
	"errors"
	"iter"
	"time"
)

var ErrSessionNotFound = errors.New("session: not found")

// EventKind discriminates the persisted event union.
type EventKind string

const (
	KindUserInput   EventKind = "user_input"
	KindAgentToken  EventKind = "agent_token"
	KindToolCalled  EventKind = "tool_called"
	KindEditApplied EventKind = "edit_applied"
	KindError       EventKind = "error"
)

// Event is one entry in a session's history. Only the fields for its Kind
// are set.
type Event struct {
	Kind EventKind `json:"kind"`
	Time time.Time `json:"time"`

	Text    string         `json:"text,omitempty"`
	Token   string         `json:"token,omitempty"`
	Tool    string         `json:"tool,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Result  map[string]any `json:"result,omitempty"`
	File    string         `json:"file,omitempty"`
	Patch   string         `json:"patch,omitempty"`
	Message string         `json:"message,omitempty"`
}

func UserInput(text string) Event {
	return Event{Kind: KindUserInput, Time: time.Now().UTC(), Text: text}
}

func AgentToken(token string) Event {
	return Event{Kind: KindAgentToken, Time: time.Now().UTC(), Token: token}
}

func ToolCalled(tool string, args, result map[string]any) Event {
	return Event{Kind: KindToolCalled, Time: time.Now().UTC(), Tool: tool, Args: args, Result: result}
}

func EditApplied(file, patch string) Event {
	return Event{Kind: KindEditApplied, Time: time.Now().UTC(), File: file, Patch: patch}
}

func Failure(message string) Event {
	return Event{Kind: KindError, Time: time.Now().UTC(), Message: message}
}

// Session is one recorded conversation against one workspace.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Workspace string    `json:"workspace"`
	Events    []Event   `json:"events"`
}

func New(id, workspace string) *Session {
	return &Session{ID: id, CreatedAt: time.Now().UTC(), Workspace: workspace}
}

// Meta is the listing view of a stored session.
type Meta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Workspace string    `json:"workspace"`
	Events    int       `json:"events"`
}

// Store persists sessions. Save and Append must not acknowledge before the
// data is durable on disk.
type Store interface {
	// Save writes the full session, replacing any prior record.
	Save(ctx context.Context, s *Session) error
	// Load returns the stored session or ErrSessionNotFound.
	Load(ctx context.Context, id string) (*Session, error)
	// Append durably adds one event to an existing session.
	Append(ctx context.Context, id string, ev Event) error
	// List returns session metadata, newest first.
	List(ctx context.Context) ([]Meta, error)
}

// Replay yields the stored events of a session in order. A missing or
// unreadable session replays as an empty session: the sequence yields
// nothing and never raises.
func Replay(ctx context.Context, store Store, id string) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		s, err := store.Load(ctx, id)
		if err != nil {
			return
		}
		for _, ev := range s.Events {
			if !yield(ev) {
				return
			}
		}
	}
}
