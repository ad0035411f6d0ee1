package cli

import (
	"fmt"

	"github.com/dmitrijs2005/mediaingest/internal/config"
	"github.com/spf13/cobra"
)

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := connect(cmd.Context(), cfg, newLogger(cmd.ErrOrStderr(), cfg))
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("failed to migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
