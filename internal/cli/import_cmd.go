package cli

import (
	"errors"
	"fmt"

	"github.com/alexanderramin/rollup/internal/cli/formatter"
	"github.com/alexanderramin/rollup/internal/importer"
	"github.com/spf13/cobra"
)

func newImportCmd(app *App) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Create a campaign with its projects and tasks from a YAML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := importer.LoadImportSchema(args[0])
			if err != nil {
				return err
			}
			if errs := importer.ValidateImportSchema(schema); len(errs) > 0 {
				return fmt.Errorf("invalid import file %s:\n%w", args[0], errors.Join(errs...))
			}

			ents := importer.Convert(schema)
			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintf(out, "%s is valid: 1 campaign, %d projects, %d tasks\n",
					args[0], len(schema.Projects), len(schema.Tasks))
				return nil
			}

			res, err := app.Engine.Import(cmd.Context(), ents, app.actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Imported %d entities\n", len(res.Created))
			fmt.Fprint(out, formatter.FormatResult(res))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate the file without creating anything")
	return cmd
}
