package verifier

import (
	"fmt"
	"regexp"
	"strings"
)

// staticResult separates findings that escalate from plain warnings.
type staticResult struct {
	unsafeFindings []string
	warnings       []string
}

var (
	unsafePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bunsafe\s*\{`),
		regexp.MustCompile(`\btransmute\b`),
		regexp.MustCompile(`\bfrom_raw_parts\b`),
	}
	securityPatterns = map[string]*regexp.Regexp{
		"possible hardcoded credential": regexp.MustCompile(`(?i)(password|api_key|secret|token)\s*[:=]\s*"[^"]+"`),
		"shell invocation from code":    regexp.MustCompile(`Command::new\(\s*"(?:sh|bash)"`),
	}
	perfPatterns = map[string]*regexp.Regexp{
		"clone inside a loop":        regexp.MustCompile(`(?s)for\b[^{]*\{[^}]*\.clone\(\)`),
		"collect only to count":      regexp.MustCompile(`collect::<Vec<[^>]*>>\(\)\s*\.\s*len\(\)`),
		"repeated string rebuilding": regexp.MustCompile(`(?s)for\b[^{]*\{[^}]*\+=\s*&?format!`),
	}
	deadCodePatterns = map[string]*regexp.Regexp{
		"allow(dead_code) attribute": regexp.MustCompile(`#\[allow\(dead_code\)\]`),
		"unimplemented todo macro":   regexp.MustCompile(`\b(?:todo|unimplemented)!\(`),
	}
	defPattern = regexp.MustCompile(`(?m)^\s*(?:pub\s+)?(?:fn|struct|enum|trait|func)\s+([A-Za-z_][A-Za-z0-9_]*)`)
)

// runStatic applies the static battery to the edited content. Unsafe
// constructs are collected separately because they fail the compile
// outcome rather than staying informational.
func runStatic(edit Edit, deps GraphDeps) staticResult {
	var out staticResult
	content := edit.After

	for _, re := range unsafePatterns {
		if loc := re.FindString(content); loc != "" {
			out.unsafeFindings = append(out.unsafeFindings,
				fmt.Sprintf("%s: unsafe construct %q", edit.File, strings.TrimSpace(loc)))
		}
	}
	for label, re := range securityPatterns {
		if re.MatchString(content) {
			out.warnings = append(out.warnings, fmt.Sprintf("%s: %s", edit.File, label))
		}
	}
	for label, re := range perfPatterns {
		if re.MatchString(content) {
			out.warnings = append(out.warnings, fmt.Sprintf("%s: %s", edit.File, label))
		}
	}
	for label, re := range deadCodePatterns {
		if re.MatchString(content) {
			out.warnings = append(out.warnings, fmt.Sprintf("%s: %s", edit.File, label))
		}
	}
	if deps != nil {
		for _, m := range defPattern.FindAllStringSubmatch(content, -1) {
			if cycle := findCycle(m[1], deps); len(cycle) > 0 {
				out.warnings = append(out.warnings,
					fmt.Sprintf("%s: dependency cycle %s", edit.File, strings.Join(cycle, " -> ")))
			}
		}
	}
	return out
}

// findCycle walks the dependency graph from start and returns the path of
// a cycle that leads back to start, or nil.
func findCycle(start string, deps GraphDeps) []string {
	visited := map[string]bool{}
	var path []string

	var walk func(symbol string) []string
	walk = func(symbol string) []string {
		if visited[symbol] {
			return nil
		}
		visited[symbol] = true
		path = append(path, symbol)
		for _, dep := range deps.GraphDeps(symbol) {
			if dep == start {
				return append(append([]string{}, path...), start)
			}
			if cycle := walk(dep); cycle != nil {
				return cycle
			}
		}
		path = path[:len(path)-1]
		return nil
	}
	return walk(start)
}
