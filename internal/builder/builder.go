package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/lucasnoah/epicforge/internal/epic"
	"github.com/lucasnoah/epicforge/internal/prompt"
)

// DefaultTimeout is the hard per-ticket limit on one agent invocation.
const DefaultTimeout = 3600 * time.Second

// AgentRunner abstracts the coding-agent subprocess for testability.
type AgentRunner interface {
	Run(ctx context.Context, dir string, promptText string) (stdout string, stderr string, exitCode int, err error)
}

// ExecAgent implements AgentRunner by shelling out to the agent CLI.
// The agent is expected to read the prompt, do the work (committing to the
// named branch as a side effect), and print its completion report.
type ExecAgent struct {
	// Command is the agent binary. Defaults to "claude".
	Command string
	// Flags are prepended before the prompt argument.
	Flags []string
}

// NewExecAgent creates an agent runner with the default claude CLI settings.
func NewExecAgent() *ExecAgent {
	return &ExecAgent{
		Command: "claude",
		Flags:   []string{"--dangerously-skip-permissions", "--print"},
	}
}

// Available checks if the agent CLI is installed and accessible.
func (a *ExecAgent) Available() bool {
	_, err := exec.LookPath(a.command())
	return err == nil
}

func (a *ExecAgent) command() string {
	if a.Command != "" {
		return a.Command
	}
	return "claude"
}

func (a *ExecAgent) Run(ctx context.Context, dir string, promptText string) (string, string, int, error) {
	args := append(append([]string{}, a.Flags...), promptText)
	cmd := exec.CommandContext(ctx, a.command(), args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return stdout.String(), stderr.String(), -1, fmt.Errorf("exec agent: %w", err)
		}
	}
	return stdout.String(), stderr.String(), exitCode, nil
}

// Result is the immutable outcome of one builder invocation.
type Result struct {
	Success            bool
	FinalCommit        string
	TestStatus         string
	AcceptanceCriteria []epic.Criterion
	Error              string
	ExitCode           int
	Stdout             string
	Stderr             string
}

// BuildOpts names the ticket the agent should implement and where.
type BuildOpts struct {
	TicketPath string
	Title      string
	Branch     string
	BaseCommit string
	EpicPath   string
	Workdir    string
	// Timeout overrides DefaultTimeout when positive. Used by tests.
	Timeout time.Duration
}

// Builder runs exactly one coding-agent invocation per ticket and translates
// its output into a Result. It never touches git itself; commits on the
// ticket branch are the agent's contractual side effect.
type Builder struct {
	agent AgentRunner
}

// NewBuilder creates a Builder on the given agent runner.
func NewBuilder(agent AgentRunner) *Builder {
	return &Builder{agent: agent}
}

// report is the JSON completion report the agent prints on success.
type report struct {
	FinalCommit        string `json:"final_commit"`
	TestStatus         string `json:"test_status"`
	AcceptanceCriteria []struct {
		Criterion string `json:"criterion"`
		Met       bool   `json:"met"`
	} `json:"acceptance_criteria"`
}

// Build renders the instruction payload, invokes the agent with a hard
// timeout, and parses the completion report out of its output. Builder
// failures are values, not errors: a non-nil error is only returned when the
// prompt itself cannot be rendered.
func (b *Builder) Build(ctx context.Context, opts BuildOpts) (*Result, error) {
	rendered, err := prompt.Render(prompt.BuildTicket, prompt.Vars{
		"ticket_path": opts.TicketPath,
		"title":       opts.Title,
		"branch":      opts.Branch,
		"base_commit": opts.BaseCommit,
		"epic_path":   opts.EpicPath,
	})
	if err != nil {
		return nil, fmt.Errorf("render build prompt: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, stderr, exitCode, err := b.agent.Run(ctx, opts.Workdir, rendered)
	if ctx.Err() == context.DeadlineExceeded {
		return &Result{
			Success:  false,
			Error:    fmt.Sprintf("agent timed out after %s", timeout),
			ExitCode: -1,
			Stdout:   stdout,
			Stderr:   stderr,
		}, nil
	}
	if err != nil {
		return &Result{
			Success:  false,
			Error:    fmt.Sprintf("agent invocation failed: %v", err),
			ExitCode: -1,
			Stdout:   stdout,
			Stderr:   stderr,
		}, nil
	}
	if exitCode != 0 {
		return &Result{
			Success:  false,
			Error:    fmt.Sprintf("agent exited with code %d", exitCode),
			ExitCode: exitCode,
			Stdout:   stdout,
			Stderr:   stderr,
		}, nil
	}

	// The agent may wrap its report in prose; take the first balanced
	// brace-delimited object rather than guessing.
	raw, ok := ExtractJSONObject(stdout)
	if !ok {
		return &Result{
			Success:  false,
			Error:    "no JSON completion report found in agent output",
			ExitCode: exitCode,
			Stdout:   stdout,
			Stderr:   stderr,
		}, nil
	}

	var rep report
	if err := json.Unmarshal([]byte(raw), &rep); err != nil {
		return &Result{
			Success:  false,
			Error:    fmt.Sprintf("parse completion report: %v", err),
			ExitCode: exitCode,
			Stdout:   stdout,
			Stderr:   stderr,
		}, nil
	}

	criteria := make([]epic.Criterion, 0, len(rep.AcceptanceCriteria))
	for _, c := range rep.AcceptanceCriteria {
		criteria = append(criteria, epic.Criterion{Criterion: c.Criterion, Met: c.Met})
	}

	return &Result{
		Success:            true,
		FinalCommit:        rep.FinalCommit,
		TestStatus:         rep.TestStatus,
		AcceptanceCriteria: criteria,
		ExitCode:           exitCode,
		Stdout:             stdout,
		Stderr:             stderr,
	}, nil
}
