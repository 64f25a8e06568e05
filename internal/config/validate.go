package config

import "fmt"

// ValidationError represents a single validation issue with an epic definition.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks an epic definition for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
// Cycle detection is left to the graph layer at initialization; this pass
// catches everything checkable from the raw definition alone.
func Validate(def *Definition) []ValidationError {
	var errs []ValidationError

	if def.Epic == "" {
		errs = append(errs, ValidationError{Field: "epic", Message: "is required"})
	}
	if len(def.Tickets) == 0 {
		errs = append(errs, ValidationError{Field: "tickets", Message: "at least one ticket is required"})
	}
	if def.TicketCount != 0 && def.TicketCount != len(def.Tickets) {
		errs = append(errs, ValidationError{
			Field:   "ticket_count",
			Message: fmt.Sprintf("declares %d tickets but %d are defined", def.TicketCount, len(def.Tickets)),
		})
	}

	ids := make(map[string]bool, len(def.Tickets))
	for i, t := range def.Tickets {
		if t.ID == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("tickets[%d].id", i),
				Message: "is required",
			})
			continue
		}
		if ids[t.ID] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("tickets[%d].id", i),
				Message: fmt.Sprintf("duplicate ticket ID %q", t.ID),
			})
		}
		ids[t.ID] = true
	}

	for i, t := range def.Tickets {
		for _, dep := range t.DependsOn {
			if dep == t.ID {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("tickets[%d].depends_on", i),
					Message: fmt.Sprintf("ticket %q depends on itself", t.ID),
				})
				continue
			}
			if !ids[dep] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("tickets[%d].depends_on", i),
					Message: fmt.Sprintf("unknown ticket %q", dep),
				})
			}
		}
	}

	return errs
}
