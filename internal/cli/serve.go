package cli

import (
	"github.com/dmitrijs2005/mediaingest/internal/config"
	"github.com/spf13/cobra"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP upload API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := connect(cmd.Context(), cfg, newLogger(cmd.ErrOrStderr(), cfg))
			if err != nil {
				return err
			}
			defer rt.Close()

			// Run applies migrations itself when enabled.
			return rt.Run(cmd.Context())
		},
	}
}
