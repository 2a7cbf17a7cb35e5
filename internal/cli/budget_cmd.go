package cli

import (
	"github.com/spf13/cobra"
)

func newBudgetCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Manage own budgets",
	}
	cmd.AddCommand(
		newBudgetSetCmd(app),
		newBudgetClearCmd(app),
	)
	return cmd
}

func newBudgetSetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <id> <amount>",
		Short: "Set the own budget of a project or task, in minor units",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			amount, err := parseBudget(args[1])
			if err != nil {
				return err
			}
			id, err := resolveEntityID(ctx, app, args[0])
			if err != nil {
				return err
			}
			res, err := app.Engine.UpdateBudget(ctx, id, &amount, app.actor)
			return printResult(cmd, res, err)
		},
	}
}

func newBudgetClearCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <id>",
		Short: "Remove the own budget of a project or task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveEntityID(ctx, app, args[0])
			if err != nil {
				return err
			}
			res, err := app.Engine.UpdateBudget(ctx, id, nil, app.actor)
			return printResult(cmd, res, err)
		},
	}
}

func newRecomputeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute <id>",
		Short: "Rebuild a campaign or project budget total from its children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveEntityID(ctx, app, args[0])
			if err != nil {
				return err
			}
			res, err := app.Engine.Recompute(ctx, id)
			return printResult(cmd, res, err)
		},
	}
}
