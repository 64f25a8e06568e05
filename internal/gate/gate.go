package gate

import (
	"github.com/lucasnoah/epicforge/internal/epic"
	"github.com/lucasnoah/epicforge/internal/gitops"
)

// Result is the immutable outcome of one gate check. Meta carries values the
// state machine should record, such as the computed branch name and base
// commit from the branch-creation gate.
type Result struct {
	Passed bool
	Reason string
	Meta   map[string]string
}

func pass() Result {
	return Result{Passed: true}
}

func fail(reason string) Result {
	return Result{Passed: false, Reason: reason}
}

// Context is the read-only view of the epic a gate may consult. Gates never
// mutate tickets; only the state machine does.
type Context struct {
	EpicID            string
	EpicBranch        string
	BaselineCommit    string
	RollbackOnFailure bool
	Tickets           map[string]*epic.Ticket
	Git               *gitops.Ops
}

// Gate is a precondition check consulted before a ticket state transition.
// The gate set is fixed and known at compile time: DependenciesMet,
// CreateBranch, AgentStart, Validation.
type Gate interface {
	Name() string
	Check(t *epic.Ticket, ctx *Context) (Result, error)
}
