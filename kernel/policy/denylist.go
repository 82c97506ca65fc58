package policy

import (
	"fmt"
	"strings"
)

// DefaultDeniedSubstrings blocks destructive and network-reaching commands
// from agent-driven shell execution.
func DefaultDeniedSubstrings() []string {
	return []string{"rm -rf /", "sudo", "curl", "wget", "ssh", "mkfs", "> /dev/"}
}

type denylistGuard struct {
	needles []string
}

// NewDenylist builds a guard rejecting any command containing one of the
// given substrings. Empty substrings fall back to the default set.
func NewDenylist(substrings []string) CommandGuard {
	needles := make([]string, 0, len(substrings))
	for _, s := range substrings {
		if strings.TrimSpace(s) != "" {
			needles = append(needles, s)
		}
	}
	if len(needles) == 0 {
		needles = DefaultDeniedSubstrings()
	}
	return &denylistGuard{needles: needles}
}

func (g *denylistGuard) Name() string {
	return "command_denylist"
}

func (g *denylistGuard) Check(command string) Decision {
	for _, needle := range g.needles {
		if strings.Contains(command, needle) {
			return Decision{
				Effect: DecisionEffectDeny,
				Reason: fmt.Sprintf("blocked command substring %q", needle),
			}
		}
	}
	return Decision{Effect: DecisionEffectAllow}
}
