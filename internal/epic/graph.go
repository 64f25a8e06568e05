package epic

import (
	"fmt"
	"sort"
)

// ValidateAcyclic checks that the depends_on graph over the ticket map is a
// DAG and that every dependency resolves to a ticket in the same epic.
// It runs once at initialization so the recursive depth calculation below can
// never loop.
func ValidateAcyclic(tickets map[string]*Ticket) error {
	indegree := make(map[string]int, len(tickets))
	dependents := make(map[string][]string, len(tickets))

	for id, t := range tickets {
		if _, ok := indegree[id]; !ok {
			indegree[id] = 0
		}
		for _, dep := range t.DependsOn {
			if _, ok := tickets[dep]; !ok {
				return fmt.Errorf("ticket %q depends on unknown ticket %q", id, dep)
			}
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	queue := make([]string, 0, len(tickets))
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if visited != len(tickets) {
		// Name one ticket still on a cycle for the error message.
		remaining := make([]string, 0)
		for id, deg := range indegree {
			if deg > 0 {
				remaining = append(remaining, id)
			}
		}
		sort.Strings(remaining)
		return fmt.Errorf("cyclic dependency detected involving ticket %q", remaining[0])
	}
	return nil
}

// Depth returns a ticket's dependency depth: 0 with no dependencies, else
// 1 + the maximum depth of its dependencies. Callers must have validated the
// graph with ValidateAcyclic first.
func Depth(tickets map[string]*Ticket, id string) int {
	t, ok := tickets[id]
	if !ok || len(t.DependsOn) == 0 {
		return 0
	}
	max := 0
	for _, dep := range t.DependsOn {
		if d := Depth(tickets, dep); d > max {
			max = d
		}
	}
	return 1 + max
}

// TopoSort orders the given ticket ids so that every ticket appears after all
// of its dependencies within the set. Dependencies outside the set are
// ignored. Independent tickets come out in id-lexicographic order, which
// keeps finalization deterministic.
func TopoSort(tickets map[string]*Ticket, ids []string) []string {
	inSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		inSet[id] = true
	}

	indegree := make(map[string]int, len(ids))
	dependents := make(map[string][]string, len(ids))
	for _, id := range ids {
		indegree[id] = 0
	}
	for _, id := range ids {
		for _, dep := range tickets[id].DependsOn {
			if inSet[dep] {
				indegree[id]++
				dependents[dep] = append(dependents[dep], id)
			}
		}
	}

	ready := make([]string, 0, len(ids))
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(ids))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		released := make([]string, 0)
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				released = append(released, dep)
			}
		}
		sort.Strings(released)
		ready = append(ready, released...)
	}
	return order
}
