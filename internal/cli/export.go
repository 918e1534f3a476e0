package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// addExportCommands adds data export commands.
func addExportCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export journal data",
	}

	tradesCmd := &cobra.Command{
		Use:   "trades",
		Short: "Export trades as CSV",
		Example: `  journal export trades --out march.csv --from 2024-03-01 --to 2024-03-31
  journal export trades > all.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()

			filter, err := app.filterFromFlags(cmd)
			if err != nil {
				return fail(output, err)
			}

			svc, err := app.Service(ctx)
			if err != nil {
				return fail(output, err)
			}

			path, _ := cmd.Flags().GetString("out")
			var w io.Writer = cmd.OutOrStdout()
			if path != "" && path != "-" {
				f, err := os.Create(path)
				if err != nil {
					return fail(output, fmt.Errorf("failed to create %s: %w", path, err))
				}
				defer f.Close()
				w = f
			}

			n, err := svc.ExportTrades(ctx, filter, w)
			if err != nil {
				return fail(output, err)
			}

			if path == "" || path == "-" {
				return nil
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"path": path, "trades": n})
			}
			output.Success("✓ Exported %d trade(s) to %s", n, path)
			return nil
		},
	}
	addFilterFlags(tradesCmd)
	tradesCmd.Flags().StringP("out", "o", "", "Output file (default: stdout)")

	cmd.AddCommand(tradesCmd)
	rootCmd.AddCommand(cmd)
}
