package db

import (
	"database/sql"
	"fmt"
)

// TicketTransition represents a row in the ticket_transitions table.
type TicketTransition struct {
	ID        int
	EpicID    string
	TicketID  string
	FromState string
	ToState   string
	Reason    string
	Timestamp string
}

// EpicEvent represents a row in the epic_events table.
type EpicEvent struct {
	ID        int
	EpicID    string
	Event     string
	Detail    string
	Timestamp string
}

// BuilderRun represents a row in the builder_runs table.
type BuilderRun struct {
	ID         int
	EpicID     string
	TicketID   string
	Success    bool
	ExitCode   int
	DurationMs int
	Error      string
	Timestamp  string
}

// LogTransition inserts a ticket state transition.
func (d *DB) LogTransition(epicID, ticketID, fromState, toState, reason string) error {
	_, err := d.conn.Exec(
		`INSERT INTO ticket_transitions (epic_id, ticket_id, from_state, to_state, reason) VALUES (?, ?, ?, ?, ?)`,
		epicID, ticketID, fromState, toState, reason,
	)
	if err != nil {
		return fmt.Errorf("log transition: %w", err)
	}
	return nil
}

// LogEpicEvent inserts an epic-level event.
func (d *DB) LogEpicEvent(epicID, event, detail string) error {
	_, err := d.conn.Exec(
		`INSERT INTO epic_events (epic_id, event, detail) VALUES (?, ?, ?)`,
		epicID, event, detail,
	)
	if err != nil {
		return fmt.Errorf("log epic event: %w", err)
	}
	return nil
}

// LogBuilderRun inserts the outcome of one builder invocation.
func (d *DB) LogBuilderRun(epicID, ticketID string, success bool, exitCode int, durationMs int, errText string) error {
	_, err := d.conn.Exec(
		`INSERT INTO builder_runs (epic_id, ticket_id, success, exit_code, duration_ms, error) VALUES (?, ?, ?, ?, ?, ?)`,
		epicID, ticketID, success, exitCode, durationMs, errText,
	)
	if err != nil {
		return fmt.Errorf("log builder run: %w", err)
	}
	return nil
}

// RecentTransitions returns the most recent ticket transitions for an epic,
// newest first. Pass "" for epicID to query across all epics.
func (d *DB) RecentTransitions(epicID string, limit int) ([]TicketTransition, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	if epicID == "" {
		rows, err = d.conn.Query(
			`SELECT id, epic_id, ticket_id, from_state, to_state, reason, timestamp
			 FROM ticket_transitions ORDER BY id DESC LIMIT ?`, limit)
	} else {
		rows, err = d.conn.Query(
			`SELECT id, epic_id, ticket_id, from_state, to_state, reason, timestamp
			 FROM ticket_transitions WHERE epic_id = ? ORDER BY id DESC LIMIT ?`, epicID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []TicketTransition
	for rows.Next() {
		var t TicketTransition
		var reason sql.NullString
		if err := rows.Scan(&t.ID, &t.EpicID, &t.TicketID, &t.FromState, &t.ToState, &reason, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		if reason.Valid {
			t.Reason = reason.String
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	return out, nil
}

// RecentEpicEvents returns the most recent epic-level events, newest first.
func (d *DB) RecentEpicEvents(epicID string, limit int) ([]EpicEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	if epicID == "" {
		rows, err = d.conn.Query(
			`SELECT id, epic_id, event, detail, timestamp
			 FROM epic_events ORDER BY id DESC LIMIT ?`, limit)
	} else {
		rows, err = d.conn.Query(
			`SELECT id, epic_id, event, detail, timestamp
			 FROM epic_events WHERE epic_id = ? ORDER BY id DESC LIMIT ?`, epicID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query epic events: %w", err)
	}
	defer rows.Close()

	var out []EpicEvent
	for rows.Next() {
		var e EpicEvent
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.EpicID, &e.Event, &detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan epic event: %w", err)
		}
		if detail.Valid {
			e.Detail = detail.String
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query epic events: %w", err)
	}
	return out, nil
}
