package cli

import (
	"fmt"
	"path/filepath"

	"github.com/lucasnoah/epicforge/internal/config"
	"github.com/lucasnoah/epicforge/internal/epic"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <epic.yaml>",
	Short: "Validate an epic definition without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defPath, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolve definition path: %w", err)
		}
		def, err := config.Load(defPath)
		if err != nil {
			return err
		}

		errs := config.Validate(def)
		if len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintf(cmd.OutOrStdout(), "invalid: %s\n", e.Error())
			}
			return fmt.Errorf("definition has %d validation error(s)", len(errs))
		}

		if err := epic.ValidateAcyclic(def.ToTickets()); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "invalid: %v\n", err)
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Epic %q is valid (%d tickets).\n",
			config.EpicID(defPath), len(def.Tickets))
		return nil
	},
}
