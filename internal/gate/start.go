package gate

import (
	"fmt"

	"github.com/lucasnoah/epicforge/internal/epic"
)

// AgentStart enforces global mutual exclusion: only one ticket may be
// actively worked (IN_PROGRESS or AWAITING_VALIDATION) across the whole
// epic. Concurrent builders would race on the shared working tree and the
// single-writer state file, so execution is strictly synchronous.
type AgentStart struct{}

func (AgentStart) Name() string { return "agent_start" }

func (AgentStart) Check(t *epic.Ticket, ctx *Context) (Result, error) {
	for id, other := range ctx.Tickets {
		if id == t.ID {
			continue
		}
		if other.State.Active() {
			return fail(fmt.Sprintf(
				"ticket %q is %s; execution is synchronous, one ticket at a time", id, other.State)), nil
		}
	}

	// A ticket that already recorded a branch must still have it on the
	// remote. No git info or no branch name skips the check.
	if t.Git != nil && t.Git.BranchName != "" {
		exists, err := ctx.Git.BranchExistsRemote(t.Git.BranchName)
		if err != nil {
			return fail(fmt.Sprintf("check remote branch %q: %v", t.Git.BranchName, err)), nil
		}
		if !exists {
			return fail(fmt.Sprintf("branch %q does not exist on the remote", t.Git.BranchName)), nil
		}
	}

	return pass(), nil
}
