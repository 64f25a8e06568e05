package engine

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/lucasnoah/epicforge/internal/builder"
	"github.com/lucasnoah/epicforge/internal/config"
	"github.com/lucasnoah/epicforge/internal/db"
	"github.com/lucasnoah/epicforge/internal/epic"
	"github.com/lucasnoah/epicforge/internal/gate"
	"github.com/lucasnoah/epicforge/internal/gitops"
)

// Engine is the epic state machine. It owns the ticket map exclusively and is
// the only component that mutates ticket or epic state. Execution is
// single-threaded and fully synchronous: one builder subprocess at a time,
// one persisted snapshot after every transition.
type Engine struct {
	store        *epic.Store
	git          *gitops.Ops
	builder      *builder.Builder
	events       *db.DB    // nil disables event logging
	progress     io.Writer // nil = silent
	epicPath     string
	workdir      string
	buildTimeout time.Duration

	e *epic.Epic
}

// Options configures an Engine.
type Options struct {
	// EpicPath is the path to the epic definition file; it is passed through
	// to the builder so the agent can read the surrounding context.
	EpicPath string
	// Progress receives live progress lines; nil for silent operation.
	Progress io.Writer
	// BuildTimeout overrides the builder's default per-ticket timeout.
	BuildTimeout time.Duration
	// Workdir is the repository the agent works in.
	Workdir string
}

// New creates an Engine. The event DB may be nil.
func New(store *epic.Store, git *gitops.Ops, bld *builder.Builder, events *db.DB, opts Options) *Engine {
	return &Engine{
		store:        store,
		git:          git,
		builder:      bld,
		events:       events,
		progress:     opts.Progress,
		epicPath:     opts.EpicPath,
		workdir:      opts.Workdir,
		buildTimeout: opts.BuildTimeout,
	}
}

// Epic returns the in-memory epic. Read-only for callers.
func (e *Engine) Epic() *epic.Epic {
	return e.e
}

// logf prints a progress line if a progress writer is configured.
func (e *Engine) logf(format string, args ...interface{}) {
	if e.progress != nil {
		fmt.Fprintf(e.progress, "  → "+format+"\n", args...)
	}
}

// Initialize builds the in-memory epic, either fresh from the definition or
// by resuming persisted state. Resume validates the durable snapshot against
// the definition's epic id, the schema version, and the remote before any
// ticket is executed; disagreements are fatal.
func (e *Engine) Initialize(def *config.Definition, resume bool) error {
	epicID := config.EpicID(e.epicPath)

	if resume {
		if !e.store.Exists() {
			return fmt.Errorf("no persisted state at %s to resume from", e.store.Path())
		}
		loaded, err := e.store.Load()
		if err != nil {
			return err
		}
		if loaded.ID != epicID {
			return &epic.ConsistencyError{
				Reason: fmt.Sprintf("persisted state is for epic %q, definition is epic %q", loaded.ID, epicID),
			}
		}
		if err := e.validateResumedTickets(loaded); err != nil {
			return err
		}
		loaded.RollbackOnFailure = def.RollbackOnFailure
		e.e = loaded
		e.logf("resumed epic %q with %d tickets", loaded.ID, len(loaded.Tickets))
		e.logEvent("resumed", "")
		return nil
	}

	if errs := config.Validate(def); len(errs) > 0 {
		return fmt.Errorf("invalid epic definition: %s", errs[0].Error())
	}

	tickets := def.ToTickets()
	if err := epic.ValidateAcyclic(tickets); err != nil {
		return fmt.Errorf("validate dependency graph: %w", err)
	}

	baseline, err := e.git.Head()
	if err != nil {
		return fmt.Errorf("resolve baseline commit: %w", err)
	}

	e.e = &epic.Epic{
		ID:                epicID,
		Branch:            epic.BranchName(epicID),
		BaselineCommit:    baseline,
		State:             epic.EpicInitializing,
		RollbackOnFailure: def.RollbackOnFailure,
		Tickets:           tickets,
	}

	if err := e.git.CreateBranch(e.e.Branch, baseline); err != nil {
		return fmt.Errorf("create epic branch: %w", err)
	}

	if err := e.store.Save(e.e); err != nil {
		return err
	}
	e.logf("initialized epic %q (%d tickets) at baseline %s", epicID, len(tickets), baseline)
	e.logEvent("initialized", fmt.Sprintf("baseline=%s", baseline))
	return nil
}

// validateResumedTickets treats the remote git state as the ultimate source
// of truth: every ticket claiming progress must still have its branch on the
// remote, and a COMPLETED ticket must have recorded a final commit.
func (e *Engine) validateResumedTickets(loaded *epic.Epic) error {
	ids := sortedIDs(loaded.Tickets)
	for _, id := range ids {
		t := loaded.Tickets[id]
		switch t.State {
		case epic.StatePending, epic.StateReady, epic.StateFailed, epic.StateBlocked:
			continue
		}

		if t.Git == nil || t.Git.BranchName == "" {
			return &epic.ConsistencyError{
				Reason: fmt.Sprintf("ticket %q is %s but has no branch recorded", id, t.State),
			}
		}
		exists, err := e.git.BranchExistsRemote(t.Git.BranchName)
		if err != nil {
			return fmt.Errorf("check remote branch %q: %w", t.Git.BranchName, err)
		}
		if !exists {
			return &epic.ConsistencyError{
				Reason: fmt.Sprintf("ticket %q is %s but branch %q is not on the remote", id, t.State, t.Git.BranchName),
			}
		}
		if t.State == epic.StateCompleted && t.Git.FinalCommit == "" {
			return &epic.ConsistencyError{
				Reason: fmt.Sprintf("ticket %q is COMPLETED but has no final commit", id),
			}
		}
	}
	return nil
}

// Run drives the epic to completion or failure, then finalizes. The loop
// picks one ready ticket at a time in ascending dependency-depth order.
func (e *Engine) Run(ctx context.Context) error {
	if e.e.State == epic.EpicInitializing {
		if err := e.setEpicState(epic.EpicExecuting); err != nil {
			return err
		}
	}

	for e.e.State == epic.EpicExecuting {
		if err := e.discoverReady(); err != nil {
			return err
		}

		candidates := e.startableTickets()
		if len(candidates) == 0 {
			if e.activeTicket() != "" {
				// A crashed run can leave a ticket active; the synchronous
				// loop has nothing to await, so it stops here.
				e.logf("ticket %q is still active; stopping", e.activeTicket())
				return nil
			}
			break
		}

		if err := e.executeTicket(ctx, candidates[0]); err != nil {
			return err
		}
	}

	if e.e.State != epic.EpicExecuting {
		// Critical failure ended the run; the persisted state is the record.
		return nil
	}

	if e.allTerminal() {
		return e.Finalize()
	}
	e.logf("no ticket is ready and none is active; remaining tickets are stuck")
	return nil
}

// discoverReady transitions every PENDING ticket whose dependencies are all
// COMPLETED to READY.
func (e *Engine) discoverReady() error {
	deps := gate.DependenciesMet{}
	gctx := e.gateContext()
	for _, id := range sortedIDs(e.e.Tickets) {
		t := e.e.Tickets[id]
		if t.State != epic.StatePending {
			continue
		}
		res, err := deps.Check(t, gctx)
		if err != nil {
			return err
		}
		if res.Passed {
			if err := e.transition(t, epic.StateReady, ""); err != nil {
				return err
			}
		}
	}
	return nil
}

// startableTickets returns tickets that can be started now, ordered by
// ascending dependency depth (id-lexicographic within a depth). READY is the
// normal case; BRANCH_CREATED appears when resuming a run that crashed
// between branch creation and the agent start.
func (e *Engine) startableTickets() []*epic.Ticket {
	var out []*epic.Ticket
	for _, id := range sortedIDs(e.e.Tickets) {
		t := e.e.Tickets[id]
		if t.State == epic.StateReady || t.State == epic.StateBranchCreated {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return epic.Depth(e.e.Tickets, out[i].ID) < epic.Depth(e.e.Tickets, out[j].ID)
	})
	return out
}

// activeTicket returns the id of the ticket currently being worked, or "".
func (e *Engine) activeTicket() string {
	for _, id := range sortedIDs(e.e.Tickets) {
		if e.e.Tickets[id].State.Active() {
			return id
		}
	}
	return ""
}

func (e *Engine) allTerminal() bool {
	for _, t := range e.e.Tickets {
		if !t.State.Terminal() {
			return false
		}
	}
	return true
}

// executeTicket runs one ticket through start, build, and validation. Gate
// and builder failures are expected outcomes: they fail the ticket and
// cascade, and the run continues. Only persistence failures propagate.
func (e *Engine) executeTicket(ctx context.Context, t *epic.Ticket) error {
	e.logf("executing ticket %q", t.ID)

	// Start: create and push the branch, record where it was rooted.
	if t.State == epic.StateReady {
		res, err := (gate.CreateBranch{}).Check(t, e.gateContext())
		if err != nil {
			return err
		}
		if !res.Passed {
			return e.failTicket(t, res.Reason)
		}
		t.Git = &epic.GitInfo{
			BranchName: res.Meta["branch_name"],
			BaseCommit: res.Meta["base_commit"],
		}
		if err := e.transition(t, epic.StateBranchCreated, ""); err != nil {
			return err
		}
	}

	res, err := (gate.AgentStart{}).Check(t, e.gateContext())
	if err != nil {
		return err
	}
	if !res.Passed {
		return e.failTicket(t, res.Reason)
	}
	t.StartedAt = now()
	if err := e.transition(t, epic.StateInProgress, ""); err != nil {
		return err
	}

	// Build: the one long-latency operation; blocks until the agent finishes
	// or the hard timeout fires.
	start := time.Now()
	bres, err := e.builder.Build(ctx, builder.BuildOpts{
		TicketPath: t.Path,
		Title:      t.Title,
		Branch:     t.Git.BranchName,
		BaseCommit: t.Git.BaseCommit,
		EpicPath:   e.epicPath,
		Workdir:    e.workdir,
		Timeout:    e.buildTimeout,
	})
	if err != nil {
		return e.failTicket(t, err.Error())
	}
	if e.events != nil {
		_ = e.events.LogBuilderRun(e.e.ID, t.ID, bres.Success, bres.ExitCode,
			int(time.Since(start).Milliseconds()), bres.Error)
	}
	if !bres.Success {
		return e.failTicket(t, bres.Error)
	}

	// Complete or fail: record the report, then validate before COMPLETED.
	t.Git.FinalCommit = bres.FinalCommit
	t.TestSuiteStatus = bres.TestStatus
	t.AcceptanceCriteria = bres.AcceptanceCriteria
	if err := e.transition(t, epic.StateAwaitingValidation, ""); err != nil {
		return err
	}

	res, err = (gate.Validation{}).Check(t, e.gateContext())
	if err != nil {
		return err
	}
	if !res.Passed {
		return e.failTicket(t, res.Reason)
	}

	t.CompletedAt = now()
	return e.transition(t, epic.StateCompleted, "")
}

// failTicket marks a ticket FAILED and cascades: direct non-terminal
// dependents become BLOCKED with blocking_dependency set. The cascade is one
// level per failure event; a BLOCKED ticket does not block its own
// dependents unless it is later failed itself. A critical failure ends the
// epic.
func (e *Engine) failTicket(t *epic.Ticket, reason string) error {
	e.logf("ticket %q failed: %s", t.ID, reason)
	t.FailureReason = reason
	if err := e.transition(t, epic.StateFailed, reason); err != nil {
		return err
	}

	for _, id := range sortedIDs(e.e.Tickets) {
		dep := e.e.Tickets[id]
		if dep.State.Terminal() {
			continue
		}
		if !dependsOn(dep, t.ID) {
			continue
		}
		dep.BlockingDependency = t.ID
		if err := e.transition(dep, epic.StateBlocked, fmt.Sprintf("dependency %q failed", t.ID)); err != nil {
			return err
		}
	}

	if t.Critical {
		// Rollback of completed work is a named transition only: no branches
		// are deleted and nothing is reverted.
		target := epic.EpicFailed
		if e.e.RollbackOnFailure {
			target = epic.EpicRolledBack
		}
		e.logf("critical ticket %q failed; epic -> %s", t.ID, target)
		return e.setEpicState(target)
	}
	return nil
}

// Finalize merges completed ticket branches into the epic branch in
// dependency order, deletes the ticket branches, and pushes the epic branch.
// Any git failure here is fatal: no partial merge state is left pretending
// to be consistent.
func (e *Engine) Finalize() error {
	for _, id := range sortedIDs(e.e.Tickets) {
		if !e.e.Tickets[id].State.Terminal() {
			return fmt.Errorf("finalize called with ticket %q in non-terminal state %s", id, e.e.Tickets[id].State)
		}
	}

	if err := e.setEpicState(epic.EpicMerging); err != nil {
		return err
	}

	var completed []string
	for id, t := range e.e.Tickets {
		if t.State == epic.StateCompleted {
			completed = append(completed, id)
		}
	}

	order := epic.TopoSort(e.e.Tickets, completed)
	for _, id := range order {
		t := e.e.Tickets[id]
		msg := fmt.Sprintf("feat: %s\n\nTicket: %s", t.Title, t.ID)
		e.logf("merging %q into %s", t.Git.BranchName, e.e.Branch)
		if _, err := e.git.MergeBranch(t.Git.BranchName, e.e.Branch, gitops.MergeSquash, msg); err != nil {
			_ = e.setEpicState(epic.EpicFailed)
			return fmt.Errorf("merge ticket %q: %w", id, err)
		}
		if err := e.git.DeleteBranch(t.Git.BranchName, false); err != nil {
			_ = e.setEpicState(epic.EpicFailed)
			return fmt.Errorf("delete local branch %q: %w", t.Git.BranchName, err)
		}
		if err := e.git.DeleteBranch(t.Git.BranchName, true); err != nil {
			_ = e.setEpicState(epic.EpicFailed)
			return fmt.Errorf("delete remote branch %q: %w", t.Git.BranchName, err)
		}
		e.logEvent("merged", fmt.Sprintf("ticket=%s", id))
	}

	if len(order) > 0 {
		if err := e.git.PushBranch(e.e.Branch); err != nil {
			_ = e.setEpicState(epic.EpicFailed)
			return fmt.Errorf("push epic branch: %w", err)
		}
	}

	e.logf("epic %q finalized (%d tickets merged)", e.e.ID, len(order))
	return e.setEpicState(epic.EpicFinalized)
}

// transition mutates a ticket's state, logs old->new, and persists the full
// epic snapshot atomically. The on-disk state always reflects the most
// recently completed transition.
func (e *Engine) transition(t *epic.Ticket, to epic.TicketState, reason string) error {
	from := t.State
	t.State = to
	e.logf("ticket %q: %s -> %s", t.ID, from, to)
	if e.events != nil {
		_ = e.events.LogTransition(e.e.ID, t.ID, string(from), string(to), reason)
	}
	return e.store.Save(e.e)
}

// setEpicState records an epic-level transition and persists.
func (e *Engine) setEpicState(to epic.EpicState) error {
	from := e.e.State
	e.e.State = to
	e.logf("epic %q: %s -> %s", e.e.ID, from, to)
	e.logEvent("state", fmt.Sprintf("%s -> %s", from, to))
	return e.store.Save(e.e)
}

func (e *Engine) logEvent(event, detail string) {
	if e.events != nil {
		_ = e.events.LogEpicEvent(e.e.ID, event, detail)
	}
}

func (e *Engine) gateContext() *gate.Context {
	return &gate.Context{
		EpicID:            e.e.ID,
		EpicBranch:        e.e.Branch,
		BaselineCommit:    e.e.BaselineCommit,
		RollbackOnFailure: e.e.RollbackOnFailure,
		Tickets:           e.e.Tickets,
		Git:               e.git,
	}
}

func sortedIDs(tickets map[string]*epic.Ticket) []string {
	ids := make([]string, 0, len(tickets))
	for id := range tickets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func dependsOn(t *epic.Ticket, id string) bool {
	for _, dep := range t.DependsOn {
		if dep == id {
			return true
		}
	}
	return false
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
