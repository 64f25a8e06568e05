package config

// Definition is the top-level epic definition parsed from YAML.
type Definition struct {
	Epic              string       `yaml:"epic"`
	Description       string       `yaml:"description"`
	TicketCount       int          `yaml:"ticket_count"`
	RollbackOnFailure bool         `yaml:"rollback_on_failure"`
	Tickets           []TicketSpec `yaml:"tickets"`
}

// TicketSpec declares one ticket inside an epic definition.
type TicketSpec struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description"`
	DependsOn   []string `yaml:"depends_on"`
	Critical    bool     `yaml:"critical"`
	Path        string   `yaml:"path"`
}
