package model

import (
	"encoding/json"
	"strings"
)

// ParseAgentResponse decodes the terminal model payload. Malformed output is
// tolerated: when raw does not parse as the structured schema, the text
// becomes the reasoning field with no tool calls and no final answer,
// forcing the caller into its stall-handling path.
func ParseAgentResponse(raw string) *AgentResponse {
	candidate := stripFences(strings.TrimSpace(raw))
	var resp AgentResponse
	if err := json.Unmarshal([]byte(candidate), &resp); err == nil {
		return &resp
	}
	// Some providers wrap the object in prose; retry on the outermost braces.
	if start, end := strings.Index(candidate, "{"), strings.LastIndex(candidate, "}"); start >= 0 && end > start {
		var inner AgentResponse
		if err := json.Unmarshal([]byte(candidate[start:end+1]), &inner); err == nil {
			return &inner
		}
	}
	return &AgentResponse{Reasoning: raw}
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop an optional language tag on the fence line.
		first := strings.TrimSpace(s[:idx])
		if first == "json" || first == "" {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
