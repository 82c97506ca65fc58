// Package orchestrator drives the single-agent tool-calling loop: ask the
// model, execute the tools it requests, feed results back, and finish on a
// final answer or a budget exhaustion.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/barqworks/barqcoder/kernel/model"
	"github.com/barqworks/barqcoder/kernel/retrieval"
	"github.com/barqworks/barqcoder/kernel/session"
	"github.com/barqworks/barqcoder/kernel/tool"
)

// State is the loop's lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateAwaitingModel
	StateExecutingTools
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateExecutingTools:
		return "executing_tools"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// EventType discriminates stream events.
type EventType string

const (
	EventToken            EventType = "token"
	EventToolCallStarted  EventType = "tool_call_started"
	EventToolCallFinished EventType = "tool_call_finished"
	EventDone             EventType = "done"
	EventError            EventType = "error"
)

// Event is one entry on the run's event stream.
type Event struct {
	Type        EventType
	Token       string
	ToolName    string
	Args        map[string]any
	Result      map[string]any
	FinalAnswer string
	Err         string
}

const (
	defaultMaxIterations = 5
	defaultEventBuffer   = 64

	maxRetries     = 3
	retryBaseDelay = 250 * time.Millisecond
	retryMaxDelay  = 4 * time.Second
)

// Config configures an Orchestrator.
type Config struct {
	LLM   model.LLM
	Tools *tool.Registry
	// Store records session events. Nil disables persistence.
	Store session.Store
	// Retriever supplies workspace context for the system prompt. Nil
	// disables it.
	Retriever retrieval.Retriever
	// PromptPreamble is prepended to the operating protocol in the
	// system prompt, e.g. a role description.
	PromptPreamble string
	// MaxIterations bounds model turns per run. Defaults to 5.
	MaxIterations int
	// EventBuffer sizes the event channel. Defaults to 64.
	EventBuffer int
}

// Orchestrator runs one task at a time against one model and one tool set.
type Orchestrator struct {
	cfg Config

	mu    sync.Mutex
	state State
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("orchestrator: model is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("orchestrator: tool registry is required")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	return &Orchestrator{cfg: cfg, state: StateIdle}, nil
}

// State reports the current lifecycle phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run starts the loop for one user input and returns its event stream.
// The channel is closed exactly once: after Done, after Failed, or when
// ctx is canceled.
func (o *Orchestrator) Run(ctx context.Context, sess *session.Session, input string) <-chan Event {
	events := make(chan Event, o.cfg.EventBuffer)
	go func() {
		defer close(events)
		o.run(ctx, sess, input, events)
	}()
	return events
}

func (o *Orchestrator) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// record appends the event in memory and to the store. A store failure is
// an error: the event is not durably recorded until the append returns.
func (o *Orchestrator) record(ctx context.Context, sess *session.Session, ev session.Event) error {
	sess.Events = append(sess.Events, ev)
	if o.cfg.Store == nil {
		return nil
	}
	if err := o.cfg.Store.Append(ctx, sess.ID, ev); err != nil {
		return fmt.Errorf("orchestrator: persist %s event: %w", ev.Kind, err)
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, sess *session.Session, events chan<- Event, reason string) {
	o.setState(StateFailed)
	if err := o.record(ctx, sess, session.Failure(reason)); err != nil {
		reason = reason + "; " + err.Error()
	}
	o.emit(ctx, events, Event{Type: EventError, Err: reason})
}

func (o *Orchestrator) run(ctx context.Context, sess *session.Session, input string, events chan<- Event) {
	if err := o.record(ctx, sess, session.UserInput(input)); err != nil {
		o.fail(ctx, sess, events, err.Error())
		return
	}

	messages := []model.Message{
		{Role: model.RoleSystem, Content: o.systemPrompt(ctx, input)},
		{Role: model.RoleUser, Content: input},
	}
	dupCount := map[string]int{}

	for iteration := 0; iteration < o.cfg.MaxIterations; iteration++ {
		o.setState(StateAwaitingModel)
		req := &model.Request{
			Messages: messages,
			Tools:    o.cfg.Tools.Declarations(),
			Stream:   true,
		}
		resp, err := o.generateWithRetry(ctx, req, events, sess)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				o.setState(StateFailed)
				return
			}
			o.fail(ctx, sess, events, err.Error())
			return
		}

		final := resp.Final
		if final == nil || final.Stalled() {
			o.fail(ctx, sess, events, "model stalled: no tool calls and no final answer")
			return
		}
		messages = append(messages, assistantMessage(final))

		if final.FinalAnswer != nil {
			o.setState(StateDone)
			o.emit(ctx, events, Event{Type: EventDone, FinalAnswer: *final.FinalAnswer})
			return
		}

		o.setState(StateExecutingTools)
		for _, call := range final.ToolCalls {
			sig := callSignature(call)
			dupCount[sig]++
			if dupCount[sig] > 2 {
				o.fail(ctx, sess, events, fmt.Sprintf("tool %q called repeatedly with identical arguments", call.Name))
				return
			}
			if !o.emit(ctx, events, Event{Type: EventToolCallStarted, ToolName: call.Name, Args: call.Arguments}) {
				o.setState(StateFailed)
				return
			}
			result := o.dispatch(ctx, call)
			if err := o.record(ctx, sess, session.ToolCalled(call.Name, call.Arguments, result)); err != nil {
				o.fail(ctx, sess, events, err.Error())
				return
			}
			if !o.emit(ctx, events, Event{Type: EventToolCallFinished, ToolName: call.Name, Result: result}) {
				o.setState(StateFailed)
				return
			}
			messages = append(messages, toolMessage(call, result))
		}
	}

	o.fail(ctx, sess, events, fmt.Sprintf("iteration budget of %d exhausted without a final answer", o.cfg.MaxIterations))
}

// dispatch runs one tool call. Failures become an error result fed back to
// the model instead of aborting the run.
func (o *Orchestrator) dispatch(ctx context.Context, call model.ToolCall) map[string]any {
	t, err := o.cfg.Tools.Get(call.Name)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	result, err := t.Run(ctx, call.Arguments)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return result
}

func (o *Orchestrator) generateWithRetry(
	ctx context.Context,
	req *model.Request,
	events chan<- Event,
	sess *session.Session,
) (*model.Response, error) {
	retries := 0
	for {
		streamed := false
		resp, err := o.collectLast(ctx, o.cfg.LLM.Generate(ctx, req), events, sess, &streamed)
		if err == nil {
			return resp, nil
		}
		// Once tokens reached the caller a retry would replay them.
		if streamed || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if retries >= maxRetries {
			return nil, fmt.Errorf("orchestrator: model request failed after %d retries: %w", maxRetries, err)
		}
		timer := time.NewTimer(retryDelay(retries))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		retries++
	}
}

func (o *Orchestrator) collectLast(
	ctx context.Context,
	seq iter.Seq2[*model.Response, error],
	events chan<- Event,
	sess *session.Session,
	streamed *bool,
) (*model.Response, error) {
	var last *model.Response
	var text string
	for res, err := range seq {
		if err != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if res == nil {
			continue
		}
		if res.Partial && res.Token != "" {
			*streamed = true
			text += res.Token
			if !o.emit(ctx, events, Event{Type: EventToken, Token: res.Token}) {
				return nil, ctx.Err()
			}
		}
		last = res
	}
	if last == nil {
		return nil, fmt.Errorf("orchestrator: empty model response")
	}
	if text != "" {
		if err := o.record(ctx, sess, session.AgentToken(text)); err != nil {
			return nil, err
		}
	}
	return last, nil
}

func retryDelay(retry int) time.Duration {
	delay := retryBaseDelay
	for i := 0; i < retry; i++ {
		delay *= 2
		if delay >= retryMaxDelay {
			return retryMaxDelay
		}
	}
	return delay
}

func assistantMessage(final *model.AgentResponse) model.Message {
	msg := model.Message{Role: model.RoleAssistant, ToolCalls: final.ToolCalls}
	if final.FinalAnswer != nil {
		msg.Content = *final.FinalAnswer
	} else {
		msg.Content = final.Reasoning
	}
	return msg
}

func toolMessage(call model.ToolCall, result map[string]any) model.Message {
	raw, err := json.Marshal(result)
	if err != nil {
		raw = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
	}
	return model.Message{
		Role:       model.RoleTool,
		Content:    string(raw),
		ToolCallID: call.ID,
	}
}

func callSignature(call model.ToolCall) string {
	keys := make([]string, 0, len(call.Arguments))
	for k := range call.Arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		parts = append(parts, k, call.Arguments[k])
	}
	raw, _ := json.Marshal(parts)
	return call.Name + ":" + string(raw)
}
