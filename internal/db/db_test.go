package db

import (
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return d
}

func TestMigrateIdempotent(t *testing.T) {
	d := newTestDB(t)
	if err := d.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestLogAndQueryTransitions(t *testing.T) {
	d := newTestDB(t)

	if err := d.LogTransition("auth", "auth-api", "PENDING", "READY", ""); err != nil {
		t.Fatalf("LogTransition: %v", err)
	}
	if err := d.LogTransition("auth", "auth-api", "READY", "BRANCH_CREATED", ""); err != nil {
		t.Fatalf("LogTransition: %v", err)
	}
	if err := d.LogTransition("other", "x", "PENDING", "FAILED", "gate failed"); err != nil {
		t.Fatalf("LogTransition: %v", err)
	}

	got, err := d.RecentTransitions("auth", 10)
	if err != nil {
		t.Fatalf("RecentTransitions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d transitions, want 2", len(got))
	}
	// Newest first.
	if got[0].ToState != "BRANCH_CREATED" {
		t.Errorf("got[0].ToState = %q, want BRANCH_CREATED", got[0].ToState)
	}

	all, err := d.RecentTransitions("", 10)
	if err != nil {
		t.Fatalf("RecentTransitions all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d transitions across epics, want 3", len(all))
	}
	if all[0].Reason != "gate failed" {
		t.Errorf("all[0].Reason = %q", all[0].Reason)
	}
}

func TestLogAndQueryEpicEvents(t *testing.T) {
	d := newTestDB(t)

	if err := d.LogEpicEvent("auth", "initialized", "baseline=abc"); err != nil {
		t.Fatalf("LogEpicEvent: %v", err)
	}
	if err := d.LogEpicEvent("auth", "state", "EXECUTING -> MERGING"); err != nil {
		t.Fatalf("LogEpicEvent: %v", err)
	}

	got, err := d.RecentEpicEvents("auth", 10)
	if err != nil {
		t.Fatalf("RecentEpicEvents: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Event != "state" {
		t.Errorf("got[0].Event = %q, want state (newest first)", got[0].Event)
	}
}

func TestLogBuilderRun(t *testing.T) {
	d := newTestDB(t)

	if err := d.LogBuilderRun("auth", "auth-api", true, 0, 1234, ""); err != nil {
		t.Fatalf("LogBuilderRun: %v", err)
	}
	if err := d.LogBuilderRun("auth", "auth-ui", false, 1, 60, "agent exited with code 1"); err != nil {
		t.Fatalf("LogBuilderRun: %v", err)
	}

	var count int
	if err := d.Conn().QueryRow("SELECT COUNT(*) FROM builder_runs WHERE epic_id = ?", "auth").Scan(&count); err != nil {
		t.Fatalf("count builder_runs: %v", err)
	}
	if count != 2 {
		t.Errorf("builder_runs count = %d, want 2", count)
	}
}

func TestReset(t *testing.T) {
	d := newTestDB(t)

	_ = d.LogEpicEvent("auth", "initialized", "")
	if err := d.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	got, err := d.RecentEpicEvents("", 10)
	if err != nil {
		t.Fatalf("RecentEpicEvents after Reset: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty log after Reset, got %d rows", len(got))
	}
}
