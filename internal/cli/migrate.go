package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions, backend Backend) *cobra.Command {
	return &cobra.Command{
		Use:          "migrate <up|down>",
		Short:        "Apply or roll back the embedded schema migrations",
		Args:         cobra.ExactArgs(1),
		ValidArgs:    []string{"up", "down"},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := args[0]
			if direction != "up" && direction != "down" {
				return fmt.Errorf("direction must be up or down, got %q", direction)
			}
			if err := backend.Migrate(rootOpts.DatabaseURL, direction); err != nil {
				return fmt.Errorf("migrate %s: %w", direction, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", direction)
			return nil
		},
	}
}
