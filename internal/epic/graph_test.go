package epic

import (
	"strings"
	"testing"
)

// tg builds a ticket map from id -> dependency list.
func tg(deps map[string][]string) map[string]*Ticket {
	tickets := make(map[string]*Ticket, len(deps))
	for id, d := range deps {
		tickets[id] = &Ticket{ID: id, DependsOn: d, State: StatePending}
	}
	return tickets
}

func TestValidateAcyclic(t *testing.T) {
	tests := []struct {
		name    string
		deps    map[string][]string
		wantErr string
	}{
		{
			name: "linear chain",
			deps: map[string][]string{"a": nil, "b": {"a"}, "c": {"b"}},
		},
		{
			name: "diamond",
			deps: map[string][]string{"a": nil, "b": {"a"}, "c": {"a"}, "d": {"b", "c"}},
		},
		{
			name: "independent tickets",
			deps: map[string][]string{"a": nil, "b": nil, "c": nil},
		},
		{
			name:    "two-node cycle",
			deps:    map[string][]string{"a": {"b"}, "b": {"a"}},
			wantErr: "cyclic dependency",
		},
		{
			name:    "self cycle",
			deps:    map[string][]string{"a": {"a"}},
			wantErr: "cyclic dependency",
		},
		{
			name:    "cycle behind valid prefix",
			deps:    map[string][]string{"a": nil, "b": {"a", "d"}, "c": {"b"}, "d": {"c"}},
			wantErr: "cyclic dependency",
		},
		{
			name:    "unknown dependency",
			deps:    map[string][]string{"a": {"ghost"}},
			wantErr: `unknown ticket "ghost"`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAcyclic(tg(tc.deps))
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tc.wantErr)
			}
		})
	}
}

func TestDepth(t *testing.T) {
	tickets := tg(map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"a"},
		"d": {"b", "c"},
		"e": {"d", "a"},
	})

	tests := []struct {
		id   string
		want int
	}{
		{"a", 0},
		{"b", 1},
		{"c", 1},
		{"d", 2},
		{"e", 3},
		{"missing", 0},
	}
	for _, tc := range tests {
		if got := Depth(tickets, tc.id); got != tc.want {
			t.Errorf("Depth(%q) = %d, want %d", tc.id, got, tc.want)
		}
	}
}

func TestTopoSort(t *testing.T) {
	tickets := tg(map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"a"},
		"d": {"b", "c"},
	})

	order := TopoSort(tickets, []string{"d", "c", "b", "a"})
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}

	if len(order) != 4 {
		t.Fatalf("TopoSort returned %d ids, want 4", len(order))
	}
	if pos["a"] > pos["b"] || pos["a"] > pos["c"] {
		t.Errorf("a must come before its dependents: %v", order)
	}
	if pos["b"] > pos["d"] || pos["c"] > pos["d"] {
		t.Errorf("d must come after b and c: %v", order)
	}
	// Same-depth tickets come out lexicographically.
	if pos["b"] > pos["c"] {
		t.Errorf("b should precede c: %v", order)
	}
}

func TestTopoSortSubset(t *testing.T) {
	tickets := tg(map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"b"},
	})

	// a is excluded (failed, say); b's dependency on it is ignored.
	order := TopoSort(tickets, []string{"c", "b"})
	if len(order) != 2 {
		t.Fatalf("TopoSort returned %d ids, want 2", len(order))
	}
	if order[0] != "b" || order[1] != "c" {
		t.Errorf("order = %v, want [b c]", order)
	}
}

func TestTopoSortEmpty(t *testing.T) {
	order := TopoSort(tg(nil), nil)
	if len(order) != 0 {
		t.Errorf("TopoSort of empty set returned %v", order)
	}
}

func TestTicketStatePredicates(t *testing.T) {
	terminal := []TicketState{StateCompleted, StateFailed, StateBlocked}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	nonTerminal := []TicketState{StatePending, StateReady, StateBranchCreated, StateInProgress, StateAwaitingValidation}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}

	if !StateInProgress.Active() || !StateAwaitingValidation.Active() {
		t.Error("IN_PROGRESS and AWAITING_VALIDATION should be active")
	}
	if StateReady.Active() || StateCompleted.Active() {
		t.Error("READY and COMPLETED should not be active")
	}
}
