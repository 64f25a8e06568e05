package cli

import (
	"fmt"
	"strings"

	"github.com/lucasnoah/epicforge/internal/db"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events [epic-id]",
	Short: "Show recent transitions and events from the diagnostic log",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		epicID := ""
		if len(args) == 1 {
			epicID = args[0]
		}
		limit, _ := cmd.Flags().GetInt("limit")

		d, err := openDB()
		if err != nil {
			return err
		}
		defer d.Close()

		transitions, err := d.RecentTransitions(epicID, limit)
		if err != nil {
			return err
		}
		events, err := d.RecentEpicEvents(epicID, limit)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if len(transitions) == 0 && len(events) == 0 {
			fmt.Fprintln(w, "No events recorded.")
			return nil
		}

		if len(transitions) > 0 {
			fmt.Fprintf(w, "%-20s %-20s %-20s %-22s %s\n", "TIME", "EPIC", "TICKET", "TRANSITION", "REASON")
			for _, t := range transitions {
				reason := t.Reason
				if len(reason) > 50 {
					reason = reason[:47] + "..."
				}
				fmt.Fprintf(w, "%-20s %-20s %-20s %-22s %s\n",
					t.Timestamp, t.EpicID, t.TicketID,
					t.FromState+" -> "+t.ToState, reason)
			}
		}
		if len(events) > 0 {
			fmt.Fprintf(w, "\n%-20s %-20s %-14s %s\n", "TIME", "EPIC", "EVENT", "DETAIL")
			fmt.Fprintf(w, "%s\n", strings.Repeat("-", 70))
			for _, e := range events {
				fmt.Fprintf(w, "%-20s %-20s %-14s %s\n", e.Timestamp, e.EpicID, e.Event, e.Detail)
			}
		}
		return nil
	},
}

func openDB() (*db.DB, error) {
	path, err := db.DefaultDBPath()
	if err != nil {
		return nil, err
	}
	d, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := d.Migrate(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func init() {
	eventsCmd.Flags().Int("limit", 50, "Maximum rows per section")
}
