package orchestrator

import (
	"context"
	"fmt"
	"strings"
)

const (
	contextTopK = 3

	protocol = `You are a coding agent working inside a checked-out repository.
Respond with a single JSON object of the form
{"reasoning": "...", "tool_calls": [{"id": "...", "name": "...", "arguments": {...}}], "final_answer": null}.
Request tools when you need information or want to change the repository.
Set final_answer and leave tool_calls empty only when the task is complete.
Every edit you apply is compiled and tested; broken edits are rolled back.`
)

// systemPrompt assembles the operating protocol, the available tools, and
// retrieved workspace context relevant to the input.
func (o *Orchestrator) systemPrompt(ctx context.Context, input string) string {
	var sb strings.Builder
	if o.cfg.PromptPreamble != "" {
		sb.WriteString(o.cfg.PromptPreamble)
		sb.WriteString("\n\n")
	}
	sb.WriteString(protocol)

	sb.WriteString("\n\nAvailable tools: ")
	sb.WriteString(strings.Join(o.cfg.Tools.Names(), ", "))

	if o.cfg.Retriever == nil {
		return sb.String()
	}
	hits, err := o.cfg.Retriever.Query(ctx, input, contextTopK)
	if err != nil || len(hits) == 0 {
		return sb.String()
	}

	sb.WriteString("\n\nRelevant code from the workspace:")
	for _, hit := range hits {
		fmt.Fprintf(&sb, "\n--- %s:%d (score %.2f)\n%s\n", hit.File, hit.Line, hit.Score, hit.Content)
	}

	seen := map[string]struct{}{}
	var depLines []string
	for _, hit := range hits {
		for _, symbol := range symbolsIn(hit.Content) {
			if _, dup := seen[symbol]; dup {
				continue
			}
			seen[symbol] = struct{}{}
			if deps := o.cfg.Retriever.GraphDeps(symbol); len(deps) > 0 {
				depLines = append(depLines, fmt.Sprintf("%s depends on %s", symbol, strings.Join(deps, ", ")))
			}
		}
	}
	if len(depLines) > 0 {
		sb.WriteString("\nSymbol dependencies:\n")
		sb.WriteString(strings.Join(depLines, "\n"))
	}
	return sb.String()
}

// symbolsIn extracts function and type names defined in a snippet.
func symbolsIn(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(strings.TrimSpace(line))
		for i := 0; i < len(fields)-1; i++ {
			switch fields[i] {
			case "fn", "struct", "enum", "trait", "func":
				name := fields[i+1]
				if idx := strings.IndexAny(name, "(<{:"); idx > 0 {
					name = name[:idx]
				}
				if name != "" {
					out = append(out, name)
				}
			}
		}
	}
	return out
}
