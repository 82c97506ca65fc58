package policy

import "strings"

// DecisionEffect describes a guard decision outcome.
type DecisionEffect string

const (
	DecisionEffectAllow DecisionEffect = "allow"
	DecisionEffectDeny  DecisionEffect = "deny"
)

// Decision is one guard verdict for a proposed command.
type Decision struct {
	Effect DecisionEffect
	Reason string
}

// Allowed reports whether the decision permits execution.
func (d Decision) Allowed() bool {
	return d.Effect != DecisionEffectDeny
}

// CommandGuard inspects a command string before any subprocess is spawned.
type CommandGuard interface {
	Name() string
	Check(command string) Decision
}

// Chain evaluates guards in order; the first deny wins.
func Chain(guards []CommandGuard, command string) Decision {
	for _, guard := range guards {
		if guard == nil {
			continue
		}
		decision := guard.Check(command)
		if !decision.Allowed() {
			decision.Reason = strings.TrimSpace(decision.Reason)
			return decision
		}
	}
	return Decision{Effect: DecisionEffectAllow}
}
