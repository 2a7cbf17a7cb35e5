package cli

import (
	"fmt"
	"os"

	"github.com/alexanderramin/rollup/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// App holds the engine and the terminal hooks used by CLI commands.
type App struct {
	Engine service.EngineService

	// Setup wires Engine from the --config path before any command runs.
	// Nil when Engine is injected directly, as in tests.
	Setup func(configPath string) error

	// IsInteractive reports whether prompts can be shown.
	IsInteractive func() bool

	// Confirm asks a yes/no question. Nil falls back to a huh form.
	Confirm func(title, description string) (bool, error)

	actor      string
	configPath string
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

// globalFlags returns the flags shared by every subcommand.
func globalFlags(app *App) *pflag.FlagSet {
	fs := pflag.NewFlagSet("global", pflag.ContinueOnError)
	fs.StringVar(&app.actor, "actor", defaultActor(), "Name recorded in the audit trail")
	fs.StringVar(&app.configPath, "config", "", "Path to a YAML config file")
	return fs
}

// NewRootCmd creates the top-level "rollup" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "rollup",
		Short:         "Campaign, project and task lifecycle with cascading state and budget rollups",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.Engine != nil {
				return nil
			}
			if app.Setup == nil {
				return fmt.Errorf("no engine configured")
			}
			return app.Setup(app.configPath)
		},
	}
	root.PersistentFlags().AddFlagSet(globalFlags(app))

	root.AddCommand(
		newCampaignCmd(app),
		newProjectCmd(app),
		newTaskCmd(app),
		newImportCmd(app),
		newTransitionCmd(app),
		newRestoreCmd(app),
		newReparentCmd(app),
		newBudgetCmd(app),
		newRecomputeCmd(app),
		newShowCmd(app),
		newHistoryCmd(app),
	)

	return root
}
