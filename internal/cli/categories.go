package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/mediaingest/internal/config"
	"github.com/spf13/cobra"
)

func newCategoriesCmd(cfg *config.Config) *cobra.Command {
	var containerID string

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage archive categories of a container",
	}
	cmd.PersistentFlags().StringVar(&containerID, "container", "", "owning container (creator) id")
	_ = cmd.MarkPersistentFlagRequired("container")

	list := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(cmd, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			cats, err := rt.Categories.ListCategories(cmd.Context(), containerID)
			if err != nil {
				return fmt.Errorf("failed to list categories: %w", err)
			}
			if len(cats) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No categories found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, c := range cats {
				fmt.Fprintf(w, "%s\t%s\n", c.ID, c.Name)
			}
			return w.Flush()
		},
	}

	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := open(cmd, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			c, err := rt.Categories.CreateCategory(cmd.Context(), containerID, args[0])
			if err != nil {
				return fmt.Errorf("failed to create category: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created category %q (%s)\n", c.Name, c.ID)
			return nil
		},
	}

	cmd.AddCommand(list, add)
	return cmd
}
