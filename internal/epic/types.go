package epic

// TicketState is the lifecycle state of a single ticket.
type TicketState string

const (
	StatePending            TicketState = "PENDING"
	StateReady              TicketState = "READY"
	StateBranchCreated      TicketState = "BRANCH_CREATED"
	StateInProgress         TicketState = "IN_PROGRESS"
	StateAwaitingValidation TicketState = "AWAITING_VALIDATION"
	StateCompleted          TicketState = "COMPLETED"
	StateFailed             TicketState = "FAILED"
	StateBlocked            TicketState = "BLOCKED"
)

// Terminal reports whether a ticket in this state can never transition again.
func (s TicketState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateBlocked
}

// Active reports whether a ticket in this state is being worked by the agent.
// At most one ticket may be active at any time.
func (s TicketState) Active() bool {
	return s == StateInProgress || s == StateAwaitingValidation
}

// EpicState is the lifecycle state of the epic run as a whole.
type EpicState string

const (
	EpicInitializing EpicState = "INITIALIZING"
	EpicExecuting    EpicState = "EXECUTING"
	EpicMerging      EpicState = "MERGING"
	EpicFinalized    EpicState = "FINALIZED"
	EpicFailed       EpicState = "FAILED"
	EpicRolledBack   EpicState = "ROLLED_BACK"
)

// GitInfo records the branch a ticket is built on. BaseCommit is the commit
// the branch was created from; FinalCommit is the commit the builder reported
// as the finished work.
type GitInfo struct {
	BranchName  string `json:"branch_name"`
	BaseCommit  string `json:"base_commit"`
	FinalCommit string `json:"final_commit,omitempty"`
}

// Criterion is a single acceptance criterion with its reported outcome.
type Criterion struct {
	Criterion string `json:"criterion"`
	Met       bool   `json:"met"`
}

// Ticket is the smallest unit of work: one branch, one agent invocation.
type Ticket struct {
	ID                 string      `json:"id"`
	Path               string      `json:"path"`
	Title              string      `json:"title"`
	DependsOn          []string    `json:"depends_on"`
	Critical           bool        `json:"critical"`
	State              TicketState `json:"state"`
	Git                *GitInfo    `json:"git_info"`
	TestSuiteStatus    string      `json:"test_suite_status,omitempty"`
	AcceptanceCriteria []Criterion `json:"acceptance_criteria"`
	FailureReason      string      `json:"failure_reason,omitempty"`
	BlockingDependency string      `json:"blocking_dependency,omitempty"`
	StartedAt          string      `json:"started_at,omitempty"`
	CompletedAt        string      `json:"completed_at,omitempty"`
}

// Epic is one run: a ticket graph executed on its own git branch.
type Epic struct {
	ID                string
	Branch            string
	BaselineCommit    string
	State             EpicState
	RollbackOnFailure bool
	Tickets           map[string]*Ticket
}

// BranchName returns the epic branch name for an epic id.
func BranchName(epicID string) string {
	return "epic/" + epicID
}

// TicketBranchName returns the branch name a ticket is built on.
func TicketBranchName(ticketID string) string {
	return "ticket/" + ticketID
}
