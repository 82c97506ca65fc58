package policy

import "testing"

func TestDenylist_BlocksSubstrings(t *testing.T) {
	guard := NewDenylist(nil)
	cases := []struct {
		command string
		allowed bool
	}{
		{"go test ./...", true},
		{"sudo rm -rf /", false},
		{"curl http://example.com", false},
		{"echo sshd-config", false},
		{"ls -la", true},
	}
	for _, tc := range cases {
		decision := guard.Check(tc.command)
		if decision.Allowed() != tc.allowed {
			t.Fatalf("command %q: allowed=%v, want %v (reason %q)",
				tc.command, decision.Allowed(), tc.allowed, decision.Reason)
		}
	}
}

func TestChain_FirstDenyWins(t *testing.T) {
	permissive := NewDenylist([]string{"never-matches"})
	strict := NewDenylist([]string{"go"})
	decision := Chain([]CommandGuard{permissive, strict}, "go build")
	if decision.Allowed() {
		t.Fatal("expected deny from second guard")
	}
	if decision.Reason == "" {
		t.Fatal("deny must carry a reason")
	}
}

func TestChain_NilGuardsSkipped(t *testing.T) {
	decision := Chain([]CommandGuard{nil, NewDenylist(nil)}, "ls")
	if !decision.Allowed() {
		t.Fatalf("unexpected deny: %q", decision.Reason)
	}
}
