package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "epicforge — an epic-driven ticket execution engine",
	Long: `epicforge executes an epic of dependent tickets one at a time, each on
its own stacked git branch, by driving an external coding agent.

State is persisted to <epic-dir>/artifacts/epic-state.json after every
transition; a diagnostic event log lives in ~/.epicforge/ (SQLite).`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(dbCmd)
}
