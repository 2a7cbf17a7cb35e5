package cli

import (
	"fmt"
	"strconv"

	"github.com/alexanderramin/rollup/internal/cli/formatter"
	"github.com/alexanderramin/rollup/internal/domain"
	"github.com/spf13/cobra"
)

// parseBudget parses a non-negative amount in minor currency units.
func parseBudget(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid budget %q: %w", s, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("budget must not be negative, got %d", v)
	}
	return v, nil
}

type addOptions struct {
	name    string
	segment string
	parent  string
	budget  string
}

// newAddCmd builds "<kind> add". parentFlag is empty for campaigns.
func newAddCmd(app *App, kind domain.Kind, parentFlag string) *cobra.Command {
	var opts addOptions

	cmd := &cobra.Command{
		Use:   "add",
		Short: fmt.Sprintf("Create a new %s", kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ent := &domain.Entity{
				Kind:    kind,
				Name:    opts.name,
				Segment: opts.segment,
			}
			if parentFlag != "" {
				parentID, err := resolveEntityID(ctx, app, opts.parent)
				if err != nil {
					return err
				}
				ent.ParentID = &parentID
			}
			if opts.budget != "" {
				v, err := parseBudget(opts.budget)
				if err != nil {
					return err
				}
				ent.BudgetOwn = &v
			}

			res, err := app.Engine.Create(ctx, ent, app.actor)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %s\n", kind)
			fmt.Fprint(out, formatter.FormatResult(res))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", fmt.Sprintf("%s name", kind))
	cmd.Flags().StringVar(&opts.segment, "segment", "", "Segment label (defaults to the configured segment)")
	_ = cmd.MarkFlagRequired("name")
	if parentFlag != "" {
		cmd.Flags().StringVar(&opts.parent, parentFlag, "", fmt.Sprintf("Parent %s ID or prefix", parentFlag))
		cmd.Flags().StringVar(&opts.budget, "budget", "", "Own budget in minor units")
		_ = cmd.MarkFlagRequired(parentFlag)
	}

	return cmd
}

func newCampaignCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Manage campaigns",
	}
	cmd.AddCommand(
		newAddCmd(app, domain.KindCampaign, ""),
		newCampaignListCmd(app),
	)
	return cmd
}

func newCampaignListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List campaigns",
		RunE: func(cmd *cobra.Command, args []string) error {
			campaigns, err := app.Engine.Campaigns(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatCampaignList(campaigns))
			return nil
		},
	}
}

func newProjectCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}
	cmd.AddCommand(newAddCmd(app, domain.KindProject, "campaign"))
	return cmd
}

func newTaskCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	cmd.AddCommand(newAddCmd(app, domain.KindTask, "project"))
	return cmd
}
