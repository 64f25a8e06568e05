package gitops

import (
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
)

// GitRunner provides git commands. Interface for testing.
type GitRunner interface {
	Run(dir string, args ...string) (string, error)
}

// ExecGit implements GitRunner using exec.Command.
type ExecGit struct{}

func (g *ExecGit) Run(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(out))
	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return text, &GitError{Args: args, Stderr: text, ExitCode: exitCode, Err: err}
	}
	return text, nil
}

// GitError is the single error kind for every failed git invocation. It
// carries the failing command and the captured output.
type GitError struct {
	Args     []string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *GitError) Error() string {
	return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), e.Stderr)
}

func (e *GitError) Unwrap() error {
	return e.Err
}

// newGitError wraps a semantic failure (no subprocess involved) in the same
// error kind as real git failures.
func newGitError(format string, args ...interface{}) *GitError {
	return &GitError{Stderr: fmt.Sprintf(format, args...), ExitCode: -1}
}

// MergeStrategy selects how a ticket branch is folded into the epic branch.
type MergeStrategy string

const (
	MergeSquash MergeStrategy = "squash"
	MergeNoFF   MergeStrategy = "no-ff"
)

// Ops is a thin, idempotent wrapper over the git primitives the state machine
// needs. All operations run in the repository at dir.
type Ops struct {
	git GitRunner
	dir string
}

// NewOps creates git operations for the repository at dir.
func NewOps(git GitRunner, dir string) *Ops {
	return &Ops{git: git, dir: dir}
}

// Head returns the commit id of the current HEAD.
func (o *Ops) Head() (string, error) {
	return o.git.Run(o.dir, "rev-parse", "HEAD")
}

// CreateBranch creates a branch pointing at baseCommit. Idempotent: if the
// branch already exists at baseCommit it succeeds silently; if it exists
// pointing elsewhere it fails naming both commits.
func (o *Ops) CreateBranch(name, baseCommit string) error {
	existing, err := o.git.Run(o.dir, "rev-parse", "--verify", "--quiet", "refs/heads/"+name)
	if err == nil && existing != "" {
		resolved, rerr := o.git.Run(o.dir, "rev-parse", baseCommit)
		if rerr != nil {
			return rerr
		}
		if existing == resolved {
			return nil
		}
		return newGitError("branch %q already exists at %s, wanted %s", name, existing, resolved)
	}

	if _, err := o.git.Run(o.dir, "branch", name, baseCommit); err != nil {
		return err
	}
	return nil
}

// PushBranch pushes a branch to origin with upstream tracking. Pushing a
// branch that is already up to date is a no-op for git, so this is idempotent.
func (o *Ops) PushBranch(name string) error {
	_, err := o.git.Run(o.dir, "push", "--set-upstream", "origin", name)
	return err
}

// BranchExistsRemote reports whether origin has a head ref with this name.
// A repository with no configured remote returns false, not an error.
func (o *Ops) BranchExistsRemote(name string) (bool, error) {
	remotes, err := o.git.Run(o.dir, "remote")
	if err != nil {
		return false, err
	}
	if remotes == "" {
		return false, nil
	}

	out, err := o.git.Run(o.dir, "ls-remote", "--heads", "origin", name)
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// CommitsBetween returns the commit ids reachable from head but not base,
// most recent first.
func (o *Ops) CommitsBetween(base, head string) ([]string, error) {
	out, err := o.git.Run(o.dir, "rev-list", base+".."+head)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// CommitExists reports whether the object exists and is a commit (not a
// tree, blob, or tag).
func (o *Ops) CommitExists(id string) (bool, error) {
	objType, err := o.git.Run(o.dir, "cat-file", "-t", id)
	if err != nil {
		// A missing object is a negative answer, not a failure.
		return false, nil
	}
	return objType == "commit", nil
}

// CommitOnBranch reports whether commit is an ancestor of branch's tip.
func (o *Ops) CommitOnBranch(commit, branch string) (bool, error) {
	_, err := o.git.Run(o.dir, "merge-base", "--is-ancestor", commit, branch)
	if err != nil {
		var gitErr *GitError
		// Exit code 1 means "not an ancestor"; anything else is a real failure.
		if errors.As(err, &gitErr) && gitErr.ExitCode == 1 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MostRecentCommit returns, from a non-empty list of commit ids, the one with
// the latest commit date.
func (o *Ops) MostRecentCommit(ids []string) (string, error) {
	if len(ids) == 0 {
		return "", newGitError("most recent commit: empty commit list")
	}

	type dated struct {
		id   string
		date int64
	}
	commits := make([]dated, 0, len(ids))
	for _, id := range ids {
		out, err := o.git.Run(o.dir, "show", "-s", "--format=%ct", id)
		if err != nil {
			return "", err
		}
		ts, perr := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
		if perr != nil {
			return "", newGitError("commit %s: unparseable commit date %q", id, out)
		}
		commits = append(commits, dated{id: id, date: ts})
	}

	sort.SliceStable(commits, func(i, j int) bool {
		return commits[i].date > commits[j].date
	})
	return commits[0].id, nil
}

// MergeBranch checks out target and merges source using the given strategy.
// Squash produces one new commit with message; no-ff produces a merge commit.
// Returns the id of the resulting commit.
func (o *Ops) MergeBranch(source, target string, strategy MergeStrategy, message string) (string, error) {
	if strategy != MergeSquash && strategy != MergeNoFF {
		return "", newGitError("invalid merge strategy %q", strategy)
	}

	if _, err := o.git.Run(o.dir, "checkout", target); err != nil {
		return "", err
	}

	switch strategy {
	case MergeSquash:
		if _, err := o.git.Run(o.dir, "merge", "--squash", source); err != nil {
			return "", err
		}
		if _, err := o.git.Run(o.dir, "commit", "-m", message); err != nil {
			return "", err
		}
	case MergeNoFF:
		if _, err := o.git.Run(o.dir, "merge", "--no-ff", "-m", message, source); err != nil {
			return "", err
		}
	}

	return o.git.Run(o.dir, "rev-parse", "HEAD")
}

// DeleteBranch deletes a branch locally or on origin. Deleting a branch that
// doesn't exist succeeds silently; other failures propagate.
func (o *Ops) DeleteBranch(name string, remote bool) error {
	var err error
	if remote {
		_, err = o.git.Run(o.dir, "push", "origin", "--delete", name)
	} else {
		_, err = o.git.Run(o.dir, "branch", "-D", name)
	}
	if err != nil {
		var gitErr *GitError
		if errors.As(err, &gitErr) && branchMissing(gitErr.Stderr) {
			return nil
		}
		return err
	}
	return nil
}

// branchMissing matches the stderr git emits when deleting a nonexistent
// branch, locally or on the remote.
func branchMissing(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "not found") ||
		strings.Contains(s, "remote ref does not exist")
}
