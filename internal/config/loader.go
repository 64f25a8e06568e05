package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lucasnoah/epicforge/internal/epic"
)

// Load reads and parses an epic definition from the given YAML file path.
// After parsing, it fills in defaults for tickets that don't specify their own
// source document path.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading epic definition: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing epic YAML: %w", err)
	}

	applyDefaults(&def, path)
	return &def, nil
}

// applyDefaults resolves per-ticket source document paths. A ticket without an
// explicit path gets tickets/<id>.md beside the definition file.
func applyDefaults(def *Definition, defPath string) {
	dir := filepath.Dir(defPath)
	for i := range def.Tickets {
		t := &def.Tickets[i]
		if t.Path == "" {
			t.Path = filepath.Join(dir, "tickets", t.ID+".md")
		} else if !filepath.IsAbs(t.Path) {
			t.Path = filepath.Join(dir, t.Path)
		}
	}
}

// EpicID derives the epic id from the directory containing the definition file.
func EpicID(defPath string) string {
	abs, err := filepath.Abs(defPath)
	if err != nil {
		abs = defPath
	}
	return filepath.Base(filepath.Dir(abs))
}

// ToTickets builds the initial ticket map for a fresh run: every ticket
// PENDING with no git info.
func (d *Definition) ToTickets() map[string]*epic.Ticket {
	tickets := make(map[string]*epic.Ticket, len(d.Tickets))
	for _, spec := range d.Tickets {
		deps := spec.DependsOn
		if deps == nil {
			deps = []string{}
		}
		tickets[spec.ID] = &epic.Ticket{
			ID:                 spec.ID,
			Path:               spec.Path,
			Title:              spec.Description,
			DependsOn:          deps,
			Critical:           spec.Critical,
			State:              epic.StatePending,
			AcceptanceCriteria: []epic.Criterion{},
		}
	}
	return tickets
}
