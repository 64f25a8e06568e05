package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lucasnoah/epicforge/internal/builder"
	"github.com/lucasnoah/epicforge/internal/config"
	"github.com/lucasnoah/epicforge/internal/db"
	"github.com/lucasnoah/epicforge/internal/engine"
	"github.com/lucasnoah/epicforge/internal/epic"
	"github.com/lucasnoah/epicforge/internal/gitops"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <epic.yaml>",
	Short: "Execute an epic to completion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resume, _ := cmd.Flags().GetBool("resume")
		agentBin, _ := cmd.Flags().GetString("agent")
		artifactsDir, _ := cmd.Flags().GetString("artifacts-dir")
		timeoutSecs, _ := cmd.Flags().GetInt("timeout")
		workdir, _ := cmd.Flags().GetString("workdir")

		defPath, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolve definition path: %w", err)
		}
		def, err := config.Load(defPath)
		if err != nil {
			return err
		}

		if workdir == "" {
			workdir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("resolve working directory: %w", err)
			}
		}

		var store *epic.Store
		if artifactsDir != "" {
			store = epic.NewStore(artifactsDir)
		} else {
			store = epic.DefaultStore(filepath.Dir(defPath))
		}

		agent := builder.NewExecAgent()
		if agentBin != "" {
			agent.Command = agentBin
		}
		if !agent.Available() {
			return fmt.Errorf("agent binary %q not found in PATH", agent.Command)
		}

		events := openEventLog(cmd)
		if events != nil {
			defer events.Close()
		}

		eng := engine.New(
			store,
			gitops.NewOps(&gitops.ExecGit{}, workdir),
			builder.NewBuilder(agent),
			events,
			engine.Options{
				EpicPath:     defPath,
				Progress:     cmd.OutOrStdout(),
				Workdir:      workdir,
				BuildTimeout: time.Duration(timeoutSecs) * time.Second,
			},
		)

		if err := eng.Initialize(def, resume); err != nil {
			return err
		}
		if err := eng.Run(cmd.Context()); err != nil {
			return err
		}

		printSummary(cmd, eng.Epic())
		return nil
	},
}

// openEventLog opens the diagnostic SQLite log. It is best-effort: a failure
// here must never stop an epic, so problems are reported and swallowed.
func openEventLog(cmd *cobra.Command) *db.DB {
	path, err := db.DefaultDBPath()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: event log unavailable: %v\n", err)
		return nil
	}
	d, err := db.Open(path)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: event log unavailable: %v\n", err)
		return nil
	}
	if err := d.Migrate(); err != nil {
		d.Close()
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: event log unavailable: %v\n", err)
		return nil
	}
	return d
}

func printSummary(cmd *cobra.Command, e *epic.Epic) {
	w := cmd.OutOrStdout()
	counts := map[epic.TicketState]int{}
	for _, t := range e.Tickets {
		counts[t.State]++
	}
	fmt.Fprintf(w, "\nEpic %q: %s\n", e.ID, e.State)
	for _, s := range []epic.TicketState{
		epic.StateCompleted, epic.StateFailed, epic.StateBlocked,
		epic.StatePending, epic.StateReady, epic.StateBranchCreated,
		epic.StateInProgress, epic.StateAwaitingValidation,
	} {
		if counts[s] > 0 {
			fmt.Fprintf(w, "  %-20s %d\n", s, counts[s])
		}
	}
}

func init() {
	runCmd.Flags().Bool("resume", false, "Resume from persisted state")
	runCmd.Flags().String("agent", "", "Agent binary (default: claude)")
	runCmd.Flags().String("artifacts-dir", "", "Override the state directory")
	runCmd.Flags().String("workdir", "", "Git repository to work in (default: cwd)")
	runCmd.Flags().Int("timeout", 0, "Per-ticket agent timeout in seconds (default: 3600)")
}
