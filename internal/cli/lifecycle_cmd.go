package cli

import (
	"fmt"

	"github.com/alexanderramin/rollup/internal/cli/formatter"
	"github.com/alexanderramin/rollup/internal/domain"
	"github.com/alexanderramin/rollup/internal/service"
	"github.com/spf13/cobra"
)

// printResult writes res, which may be a partial result next to err, and
// passes err through.
func printResult(cmd *cobra.Command, res *service.Result, err error) error {
	if res != nil {
		fmt.Fprint(cmd.OutOrStdout(), formatter.FormatResult(res))
	}
	return err
}

func newTransitionCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "transition <id> <state>",
		Short: "Move an entity to a new lifecycle state",
		Long: `Move an entity to a new lifecycle state.

Completing the last open child closes its parent. Moving a project or
campaign to a propagating state (canceled, archived, on_hold by default)
carries the state down to every child that allows it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveEntityID(ctx, app, args[0])
			if err != nil {
				return err
			}
			target := domain.State(args[1])

			if !yes && app.interactive() && app.Engine.IsPropagating(target) {
				children, err := app.Engine.Children(ctx, id)
				if err != nil {
					return err
				}
				if len(children) > 0 {
					ent, err := app.Engine.Get(ctx, id)
					if err != nil {
						return err
					}
					ok, err := app.confirm(
						fmt.Sprintf("Move %s to %s?", ent.Name, target),
						fmt.Sprintf("%d direct children and their subtrees will follow.", len(children)),
					)
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(cmd.OutOrStdout(), "Canceled.")
						return nil
					}
				}
			}

			res, err := app.Engine.Transition(ctx, id, target, app.actor)
			return printResult(cmd, res, err)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt for propagating states")
	return cmd
}

func newRestoreCmd(app *App) *cobra.Command {
	var cascade bool

	cmd := &cobra.Command{
		Use:   "restore <id>",
		Short: "Return a suspended entity to the state it held before",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := resolveEntityID(ctx, app, args[0])
			if err != nil {
				return err
			}
			res, err := app.Engine.Restore(ctx, id, app.actor, cascade)
			return printResult(cmd, res, err)
		},
	}

	cmd.Flags().BoolVar(&cascade, "cascade", false, "Also restore children that were suspended along with it")
	return cmd
}

func newReparentCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reparent <id> <new-parent-id>",
		Short: "Move a project or task under a different parent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ids, err := resolveArgs(ctx, app, args[0], args[1])
			if err != nil {
				return err
			}
			res, err := app.Engine.Reparent(ctx, ids[0], ids[1], app.actor)
			return printResult(cmd, res, err)
		},
	}
}
