package model

import (
	"context"
	"iter"
)

// Role identifies message author type.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolDefinition describes a callable tool for model planning.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is a model-emitted tool invocation request. ID correlates the
// call with its eventual tool-role result message.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Message is a single turn element in model context. Conversation order is
// append-only and replayed to the model verbatim each turn.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// AgentResponse is the structured terminal payload of one model turn.
//
// A non-nil FinalAnswer terminates the agent loop. A response with no tool
// calls and no final answer is a stall and must be handled as an error by
// the caller, never waited on.
type AgentResponse struct {
	Reasoning   string     `json:"reasoning"`
	ToolCalls   []ToolCall `json:"tool_calls,omitempty"`
	FinalAnswer *string    `json:"final_answer"`
}

// Stalled reports whether the response neither calls tools nor answers.
func (r *AgentResponse) Stalled() bool {
	if r == nil {
		return true
	}
	return len(r.ToolCalls) == 0 && r.FinalAnswer == nil
}

// Request is a provider-agnostic model request.
type Request struct {
	Messages []Message
	Tools    []ToolDefinition
	Stream   bool
}

// Response is a provider-agnostic model response chunk. Partial chunks carry
// incremental token text; the terminal chunk carries the parsed
// AgentResponse.
type Response struct {
	Token    string
	Partial  bool
	Final    *AgentResponse
	Model    string
	Provider string
}

// LLM is the model capability used by the kernel: given a message history
// and tool schemas, produce a token stream terminating in a structured
// response. The sequence must honor context cancellation.
type LLM interface {
	Name() string
	Generate(context.Context, *Request) iter.Seq2[*Response, error]
}
