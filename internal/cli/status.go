package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lucasnoah/epicforge/internal/epic"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <epic.yaml>",
	Short: "Show persisted state for an epic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defPath, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolve definition path: %w", err)
		}

		store := epic.DefaultStore(filepath.Dir(defPath))
		if !store.Exists() {
			fmt.Fprintf(cmd.OutOrStdout(), "No persisted state at %s.\n", store.Path())
			return nil
		}
		e, err := store.Load()
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			data, _ := json.MarshalIndent(e, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Epic:     %s\n", e.ID)
		fmt.Fprintf(w, "State:    %s\n", e.State)
		fmt.Fprintf(w, "Branch:   %s\n", e.Branch)
		fmt.Fprintf(w, "Baseline: %s\n\n", e.BaselineCommit)

		fmt.Fprintf(w, "%-20s %-20s %-24s %s\n", "TICKET", "STATE", "BRANCH", "DETAIL")
		fmt.Fprintf(w, "%-20s %-20s %-24s %s\n",
			strings.Repeat("-", 20), strings.Repeat("-", 20),
			strings.Repeat("-", 24), strings.Repeat("-", 6))
		for _, id := range sortedTicketIDs(e.Tickets) {
			t := e.Tickets[id]
			branch := ""
			if t.Git != nil {
				branch = t.Git.BranchName
			}
			detail := ""
			switch t.State {
			case epic.StateFailed:
				detail = t.FailureReason
			case epic.StateBlocked:
				detail = "blocked by " + t.BlockingDependency
			}
			if len(detail) > 60 {
				detail = detail[:57] + "..."
			}
			fmt.Fprintf(w, "%-20s %-20s %-24s %s\n", id, t.State, branch, detail)
		}
		return nil
	},
}

func sortedTicketIDs(tickets map[string]*epic.Ticket) []string {
	ids := make([]string, 0, len(tickets))
	for id := range tickets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func init() {
	statusCmd.Flags().String("format", "text", "Output format: text or json")
}
