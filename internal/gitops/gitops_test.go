package gitops

import (
	"strings"
	"testing"
)

// fakeGit scripts responses keyed by the joined argument list. Unscripted
// commands succeed with empty output. Every call is recorded.
type fakeGit struct {
	responses map[string]fakeResult
	calls     []string
}

type fakeResult struct {
	out string
	err error
}

func newFakeGit() *fakeGit {
	return &fakeGit{responses: make(map[string]fakeResult)}
}

func (f *fakeGit) on(args, out string) *fakeGit {
	f.responses[args] = fakeResult{out: out}
	return f
}

func (f *fakeGit) fails(args, stderr string, exitCode int) *fakeGit {
	f.responses[args] = fakeResult{err: &GitError{
		Args: strings.Fields(args), Stderr: stderr, ExitCode: exitCode,
	}}
	return f
}

func (f *fakeGit) Run(dir string, args ...string) (string, error) {
	key := strings.Join(args, " ")
	f.calls = append(f.calls, key)
	if r, ok := f.responses[key]; ok {
		return r.out, r.err
	}
	return "", nil
}

func (f *fakeGit) called(args string) bool {
	for _, c := range f.calls {
		if c == args {
			return true
		}
	}
	return false
}

func TestHead(t *testing.T) {
	git := newFakeGit().on("rev-parse HEAD", "abc123")
	ops := NewOps(git, "/repo")

	head, err := ops.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head != "abc123" {
		t.Errorf("Head = %q, want abc123", head)
	}
}

func TestCreateBranchFresh(t *testing.T) {
	git := newFakeGit().
		fails("rev-parse --verify --quiet refs/heads/ticket/a", "", 1)
	ops := NewOps(git, "/repo")

	if err := ops.CreateBranch("ticket/a", "abc123"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if !git.called("branch ticket/a abc123") {
		t.Errorf("expected branch creation call, got %v", git.calls)
	}
}

func TestCreateBranchIdempotent(t *testing.T) {
	git := newFakeGit().
		on("rev-parse --verify --quiet refs/heads/ticket/a", "abc123").
		on("rev-parse abc123", "abc123")
	ops := NewOps(git, "/repo")

	// Branch already at the wanted commit: silent success, no creation.
	if err := ops.CreateBranch("ticket/a", "abc123"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if git.called("branch ticket/a abc123") {
		t.Error("should not re-create an existing branch")
	}
}

func TestCreateBranchConflict(t *testing.T) {
	git := newFakeGit().
		on("rev-parse --verify --quiet refs/heads/ticket/a", "oldcommit").
		on("rev-parse abc123", "abc123")
	ops := NewOps(git, "/repo")

	err := ops.CreateBranch("ticket/a", "abc123")
	if err == nil {
		t.Fatal("expected error for branch at a different commit")
	}
	if !strings.Contains(err.Error(), "oldcommit") || !strings.Contains(err.Error(), "abc123") {
		t.Errorf("error should name both commits: %v", err)
	}
}

func TestBranchExistsRemote(t *testing.T) {
	tests := []struct {
		name    string
		remotes string
		lsOut   string
		want    bool
	}{
		{"exists", "origin", "abc123\trefs/heads/ticket/a", true},
		{"missing", "origin", "", false},
		{"no remote configured", "", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			git := newFakeGit().
				on("remote", tc.remotes).
				on("ls-remote --heads origin ticket/a", tc.lsOut)
			ops := NewOps(git, "/repo")

			got, err := ops.BranchExistsRemote("ticket/a")
			if err != nil {
				t.Fatalf("BranchExistsRemote: %v", err)
			}
			if got != tc.want {
				t.Errorf("BranchExistsRemote = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCommitsBetween(t *testing.T) {
	git := newFakeGit().on("rev-list base..ticket/a", "c3\nc2\nc1")
	ops := NewOps(git, "/repo")

	commits, err := ops.CommitsBetween("base", "ticket/a")
	if err != nil {
		t.Fatalf("CommitsBetween: %v", err)
	}
	if len(commits) != 3 || commits[0] != "c3" {
		t.Errorf("CommitsBetween = %v", commits)
	}
}

func TestCommitsBetweenEmpty(t *testing.T) {
	git := newFakeGit().on("rev-list base..ticket/a", "")
	ops := NewOps(git, "/repo")

	commits, err := ops.CommitsBetween("base", "ticket/a")
	if err != nil {
		t.Fatalf("CommitsBetween: %v", err)
	}
	if len(commits) != 0 {
		t.Errorf("CommitsBetween = %v, want empty", commits)
	}
}

func TestCommitExists(t *testing.T) {
	git := newFakeGit().
		on("cat-file -t abc123", "commit").
		on("cat-file -t tree99", "tree").
		fails("cat-file -t nope", "fatal: Not a valid object name", 128)
	ops := NewOps(git, "/repo")

	if ok, _ := ops.CommitExists("abc123"); !ok {
		t.Error("abc123 should exist")
	}
	if ok, _ := ops.CommitExists("tree99"); ok {
		t.Error("a tree object is not a commit")
	}
	ok, err := ops.CommitExists("nope")
	if err != nil {
		t.Fatalf("missing object should not be an error: %v", err)
	}
	if ok {
		t.Error("missing object should not exist")
	}
}

func TestCommitOnBranch(t *testing.T) {
	git := newFakeGit().
		fails("merge-base --is-ancestor stray ticket/a", "", 1).
		fails("merge-base --is-ancestor bad ticket/a", "fatal: bad object", 128)
	ops := NewOps(git, "/repo")

	if ok, err := ops.CommitOnBranch("abc123", "ticket/a"); err != nil || !ok {
		t.Errorf("ancestor: got (%v, %v), want (true, nil)", ok, err)
	}
	// Exit code 1 is a negative answer, not a failure.
	if ok, err := ops.CommitOnBranch("stray", "ticket/a"); err != nil || ok {
		t.Errorf("non-ancestor: got (%v, %v), want (false, nil)", ok, err)
	}
	// Any other exit code propagates.
	if _, err := ops.CommitOnBranch("bad", "ticket/a"); err == nil {
		t.Error("expected error for a real git failure")
	}
}

func TestMostRecentCommit(t *testing.T) {
	git := newFakeGit().
		on("show -s --format=%ct c1", "100").
		on("show -s --format=%ct c2", "300").
		on("show -s --format=%ct c3", "200")
	ops := NewOps(git, "/repo")

	got, err := ops.MostRecentCommit([]string{"c1", "c2", "c3"})
	if err != nil {
		t.Fatalf("MostRecentCommit: %v", err)
	}
	if got != "c2" {
		t.Errorf("MostRecentCommit = %q, want c2", got)
	}
}

func TestMostRecentCommitEmpty(t *testing.T) {
	ops := NewOps(newFakeGit(), "/repo")
	if _, err := ops.MostRecentCommit(nil); err == nil {
		t.Fatal("expected error for empty commit list")
	}
}

func TestMergeBranchSquash(t *testing.T) {
	git := newFakeGit().on("rev-parse HEAD", "merged1")
	ops := NewOps(git, "/repo")

	got, err := ops.MergeBranch("ticket/a", "epic/e", MergeSquash, "feat: add auth\n\nTicket: a")
	if err != nil {
		t.Fatalf("MergeBranch: %v", err)
	}
	if got != "merged1" {
		t.Errorf("MergeBranch = %q, want merged1", got)
	}

	want := []string{
		"checkout epic/e",
		"merge --squash ticket/a",
		"commit -m feat: add auth\n\nTicket: a",
		"rev-parse HEAD",
	}
	if len(git.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", git.calls, want)
	}
	for i := range want {
		if git.calls[i] != want[i] {
			t.Errorf("call[%d] = %q, want %q", i, git.calls[i], want[i])
		}
	}
}

func TestMergeBranchNoFF(t *testing.T) {
	git := newFakeGit().on("rev-parse HEAD", "merged2")
	ops := NewOps(git, "/repo")

	if _, err := ops.MergeBranch("ticket/a", "epic/e", MergeNoFF, "msg"); err != nil {
		t.Fatalf("MergeBranch: %v", err)
	}
	if !git.called("merge --no-ff -m msg ticket/a") {
		t.Errorf("expected no-ff merge call, got %v", git.calls)
	}
}

func TestMergeBranchInvalidStrategy(t *testing.T) {
	ops := NewOps(newFakeGit(), "/repo")
	if _, err := ops.MergeBranch("a", "b", MergeStrategy("rebase"), "msg"); err == nil {
		t.Fatal("expected error for invalid strategy")
	}
}

func TestMergeBranchConflict(t *testing.T) {
	git := newFakeGit().fails("merge --squash ticket/a", "CONFLICT (content): auth.go", 1)
	ops := NewOps(git, "/repo")

	_, err := ops.MergeBranch("ticket/a", "epic/e", MergeSquash, "msg")
	if err == nil {
		t.Fatal("expected merge conflict to propagate")
	}
	if !strings.Contains(err.Error(), "CONFLICT") {
		t.Errorf("error should carry git stderr: %v", err)
	}
}

func TestDeleteBranch(t *testing.T) {
	tests := []struct {
		name    string
		remote  bool
		failCmd string
		stderr  string
		wantErr bool
	}{
		{name: "local ok", remote: false},
		{name: "remote ok", remote: true},
		{
			name: "local missing is silent", remote: false,
			failCmd: "branch -D ticket/a",
			stderr:  "error: branch 'ticket/a' not found.",
		},
		{
			name: "remote missing is silent", remote: true,
			failCmd: "push origin --delete ticket/a",
			stderr:  "error: unable to delete 'ticket/a': remote ref does not exist",
		},
		{
			name: "real failure propagates", remote: true,
			failCmd: "push origin --delete ticket/a",
			stderr:  "fatal: unable to access remote",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			git := newFakeGit()
			if tc.failCmd != "" {
				git.fails(tc.failCmd, tc.stderr, 1)
			}
			ops := NewOps(git, "/repo")

			err := ops.DeleteBranch("ticket/a", tc.remote)
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
