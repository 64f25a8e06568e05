package gate

import (
	"fmt"

	"github.com/lucasnoah/epicforge/internal/epic"
)

// DependenciesMet passes iff every dependency of the ticket is COMPLETED.
// It fails fast on the first unmet or missing dependency and never touches
// git.
type DependenciesMet struct{}

func (DependenciesMet) Name() string { return "dependencies_met" }

func (DependenciesMet) Check(t *epic.Ticket, ctx *Context) (Result, error) {
	for _, depID := range t.DependsOn {
		dep, ok := ctx.Tickets[depID]
		if !ok {
			return fail(fmt.Sprintf("dependency %q does not exist in this epic", depID)), nil
		}
		if dep.State != epic.StateCompleted {
			return fail(fmt.Sprintf("dependency %q is %s, not COMPLETED", depID, dep.State)), nil
		}
	}
	return pass(), nil
}
