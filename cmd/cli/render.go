package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/barqworks/barqcoder/kernel/agents"
	"github.com/barqworks/barqcoder/kernel/orchestrator"
	"github.com/barqworks/barqcoder/kernel/session"
)

var (
	toolColor   = color.New(color.FgCyan)
	errColor    = color.New(color.FgRed, color.Bold)
	okColor     = color.New(color.FgGreen)
	dimColor    = color.New(color.Faint)
	headerColor = color.New(color.Bold)
)

// renderEvents prints the orchestrator's stream as it arrives and returns
// the final answer, if any.
func renderEvents(w io.Writer, events <-chan orchestrator.Event) string {
	answer := ""
	for ev := range events {
		switch ev.Type {
		case orchestrator.EventToken:
			fmt.Fprint(w, ev.Token)
		case orchestrator.EventToolCallStarted:
			fmt.Fprintf(w, "\n%s %s\n", toolColor.Sprint("tool>"), ev.ToolName)
			if len(ev.Args) > 0 {
				fmt.Fprintf(w, "%s\n", dimColor.Sprint(compactJSON(ev.Args)))
			}
		case orchestrator.EventToolCallFinished:
			if errMsg, ok := ev.Result["error"]; ok {
				fmt.Fprintf(w, "%s %v\n", errColor.Sprint("tool error:"), errMsg)
			} else {
				fmt.Fprintf(w, "%s %s\n", okColor.Sprint("tool<"), dimColor.Sprint(compactJSON(ev.Result)))
			}
		case orchestrator.EventDone:
			answer = ev.FinalAnswer
			fmt.Fprintf(w, "\n%s %s\n", okColor.Sprint("done:"), ev.FinalAnswer)
		case orchestrator.EventError:
			fmt.Fprintf(w, "\n%s %s\n", errColor.Sprint("error:"), ev.Err)
		}
	}
	return answer
}

// renderReplay prints a stored session's events in order.
func renderReplay(w io.Writer, events []session.Event) {
	for _, ev := range events {
		stamp := dimColor.Sprint(ev.Time.Format("15:04:05"))
		switch ev.Kind {
		case session.KindUserInput:
			fmt.Fprintf(w, "%s %s %s\n", stamp, headerColor.Sprint("user:"), ev.Text)
		case session.KindAgentToken:
			fmt.Fprintf(w, "%s %s %s\n", stamp, okColor.Sprint("agent:"), ev.Token)
		case session.KindToolCalled:
			fmt.Fprintf(w, "%s %s %s %s\n", stamp, toolColor.Sprint("tool:"), ev.Tool, dimColor.Sprint(compactJSON(ev.Args)))
		case session.KindEditApplied:
			fmt.Fprintf(w, "%s %s %s\n", stamp, okColor.Sprint("edit:"), ev.File)
		case session.KindError:
			fmt.Fprintf(w, "%s %s %s\n", stamp, errColor.Sprint("error:"), ev.Message)
		}
	}
}

func renderSessionList(w io.Writer, records []sessionIndexRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no sessions recorded")
		return
	}
	for _, rec := range records {
		summary := rec.LastUserMessage
		if len(summary) > 60 {
			summary = summary[:57] + "..."
		}
		fmt.Fprintf(w, "%s  %s  %3d events  %s\n",
			headerColor.Sprint(rec.SessionID),
			rec.LastEventAt.Format(time.DateTime),
			rec.EventCount,
			dimColor.Sprint(summary),
		)
	}
}

func renderPipeline(w io.Writer, result *agents.PipelineResult) {
	fmt.Fprintf(w, "%s %s\n", headerColor.Sprint("goal:"), result.Goal)
	for _, step := range result.Steps {
		mark := okColor.Sprint("done  ")
		if step.Status == agents.StatusFailed {
			mark = errColor.Sprint("failed")
		}
		fmt.Fprintf(w, "  %s step %s: %s\n", mark, step.ID, step.Description)
		if step.Feedback != "" && step.Status == agents.StatusFailed {
			fmt.Fprintf(w, "         %s\n", dimColor.Sprint(step.Feedback))
		}
	}
	fmt.Fprintf(w, "%d of %d steps completed\n", result.Completed, len(result.Steps))
}

func compactJSON(v map[string]any) string {
	if len(v) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	s := string(raw)
	if len(s) > 200 {
		s = s[:197] + "..."
	}
	return strings.ReplaceAll(s, "\n", " ")
}
