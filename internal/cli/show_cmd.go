package cli

import (
	"fmt"

	"github.com/alexanderramin/rollup/internal/cli/formatter"
	"github.com/spf13/cobra"
)

func newShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show an entity and its subtree, or every campaign tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var roots []string
			if len(args) == 1 {
				id, err := resolveEntityID(ctx, app, args[0])
				if err != nil {
					return err
				}
				roots = []string{id}
			} else {
				campaigns, err := app.Engine.Campaigns(ctx)
				if err != nil {
					return err
				}
				if len(campaigns) == 0 {
					fmt.Fprint(out, formatter.FormatCampaignList(nil))
					return nil
				}
				for _, c := range campaigns {
					roots = append(roots, c.ID)
				}
			}

			for i, id := range roots {
				tree, err := app.Engine.Tree(ctx, id)
				if err != nil {
					return err
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprint(out, formatter.FormatTree(tree))
			}
			return nil
		},
	}
}

func newHistoryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show the state change audit trail of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveEntityID(ctx, app, args[0])
			if err != nil {
				return err
			}
			entries, err := app.Engine.History(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatHistory(entries))
			return nil
		},
	}
}
