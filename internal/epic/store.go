package epic

import (
	"fmt"
	"os"
	"path/filepath"
)

// SchemaVersion is the current version of the persisted state document.
// A loaded file must match exactly; there is no migration path.
const SchemaVersion = 1

// State is the persisted form of an epic run. It is the only durable record
// and the sole source of truth when resuming a crashed run.
type State struct {
	SchemaVersion  int                `json:"schema_version"`
	EpicID         string             `json:"epic_id"`
	EpicBranch     string             `json:"epic_branch"`
	BaselineCommit string             `json:"baseline_commit"`
	EpicState      EpicState          `json:"epic_state"`
	Tickets        map[string]*Ticket `json:"tickets"`
}

// ConsistencyError indicates the durable state is corrupted or disagrees with
// the world (schema mismatch, missing remote branch, impossible ticket state).
// It is never recovered from silently.
type ConsistencyError struct {
	Reason string
}

func (e *ConsistencyError) Error() string {
	return "state consistency: " + e.Reason
}

// Store persists epic state under the epic's artifacts directory.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at the given artifacts directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// DefaultStore returns a Store at <epicDir>/artifacts.
func DefaultStore(epicDir string) *Store {
	return &Store{dir: filepath.Join(epicDir, "artifacts")}
}

// Path returns the location of the state file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, "epic-state.json")
}

// Exists reports whether a persisted state file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path())
	return err == nil
}

// Save writes the full epic snapshot atomically.
func (s *Store) Save(e *Epic) error {
	st := &State{
		SchemaVersion:  SchemaVersion,
		EpicID:         e.ID,
		EpicBranch:     e.Branch,
		BaselineCommit: e.BaselineCommit,
		EpicState:      e.State,
		Tickets:        e.Tickets,
	}
	if err := WriteJSON(s.Path(), st); err != nil {
		return fmt.Errorf("save epic state: %w", err)
	}
	return nil
}

// Load reads the persisted state and rebuilds the in-memory epic.
// A schema version other than SchemaVersion fails before any ticket is touched.
func (s *Store) Load() (*Epic, error) {
	var st State
	if err := ReadJSON(s.Path(), &st); err != nil {
		return nil, fmt.Errorf("load epic state: %w", err)
	}
	if st.SchemaVersion != SchemaVersion {
		return nil, &ConsistencyError{
			Reason: fmt.Sprintf("schema version %d in %s, want %d", st.SchemaVersion, s.Path(), SchemaVersion),
		}
	}
	if st.Tickets == nil {
		st.Tickets = make(map[string]*Ticket)
	}
	return &Epic{
		ID:             st.EpicID,
		Branch:         st.EpicBranch,
		BaselineCommit: st.BaselineCommit,
		State:          st.EpicState,
		Tickets:        st.Tickets,
	}, nil
}
