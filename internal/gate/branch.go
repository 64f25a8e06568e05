package gate

import (
	"fmt"

	"github.com/lucasnoah/epicforge/internal/epic"
)

// CreateBranch computes the base commit for the stacked-branch strategy,
// then creates and pushes the ticket branch. This is the one gate with git
// side effects. On success the chosen branch name and base commit are
// returned in Meta for the state machine to record.
//
// Base-commit rule: no dependencies -> epic baseline; one dependency -> that
// dependency's final commit (the new branch stacks directly on its work);
// multiple dependencies -> the most recent final commit among them.
type CreateBranch struct{}

func (CreateBranch) Name() string { return "create_branch" }

func (CreateBranch) Check(t *epic.Ticket, ctx *Context) (Result, error) {
	base, res := resolveBaseCommit(t, ctx)
	if !res.Passed {
		return res, nil
	}

	branch := epic.TicketBranchName(t.ID)
	if err := ctx.Git.CreateBranch(branch, base); err != nil {
		return fail(fmt.Sprintf("create branch %q: %v", branch, err)), nil
	}
	if err := ctx.Git.PushBranch(branch); err != nil {
		return fail(fmt.Sprintf("push branch %q: %v", branch, err)), nil
	}

	return Result{
		Passed: true,
		Meta: map[string]string{
			"branch_name": branch,
			"base_commit": base,
		},
	}, nil
}

// resolveBaseCommit picks the commit the ticket branch is rooted at. Any
// dependency without recorded git info or a final commit fails the gate: its
// state may claim COMPLETED, but it never actually finished building. That
// check is deliberately independent of DependenciesMet.
func resolveBaseCommit(t *epic.Ticket, ctx *Context) (string, Result) {
	if len(t.DependsOn) == 0 {
		return ctx.BaselineCommit, pass()
	}

	finals := make([]string, 0, len(t.DependsOn))
	for _, depID := range t.DependsOn {
		dep, ok := ctx.Tickets[depID]
		if !ok {
			return "", fail(fmt.Sprintf("dependency %q does not exist in this epic", depID))
		}
		if dep.Git == nil || dep.Git.FinalCommit == "" {
			return "", fail(fmt.Sprintf("dependency %q has no final commit recorded", depID))
		}
		finals = append(finals, dep.Git.FinalCommit)
	}

	if len(finals) == 1 {
		return finals[0], pass()
	}

	// Diamond dependencies: branch from whichever dependency finished last.
	recent, err := ctx.Git.MostRecentCommit(finals)
	if err != nil {
		return "", fail(fmt.Sprintf("resolve most recent dependency commit: %v", err))
	}
	return recent, pass()
}
