package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"trading-journal/internal/models"
)

// addStrategyCommands adds strategy checklist commands.
func addStrategyCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "strategy",
		Aliases: []string{"strategies", "s"},
		Short:   "Manage strategy checklists",
		Long: `A strategy is a named checklist. Trades naming a strategy are adherent when
every required item is checked or answered and the confirmations text is set.
Trades without a known strategy use the built-in four-item checklist.`,
	}

	cmd.AddCommand(newStrategyAddCmd(app))
	cmd.AddCommand(newStrategyListCmd(app))
	cmd.AddCommand(newStrategyShowCmd(app))
	cmd.AddCommand(newStrategyDeleteCmd(app))
	cmd.AddCommand(newStrategyImportCmd(app))

	rootCmd.AddCommand(cmd)
}

// parseItemSpec parses id:label[:checkbox|text][:required|optional].
func parseItemSpec(spec string) (models.ChecklistItem, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 || len(parts) > 4 {
		return models.ChecklistItem{}, fmt.Errorf("invalid item %q (use id:label[:checkbox|text][:required|optional])", spec)
	}

	item := models.ChecklistItem{
		ID:    strings.TrimSpace(parts[0]),
		Label: strings.TrimSpace(parts[1]),
		Type:  models.ItemCheckbox,
	}
	for _, p := range parts[2:] {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "checkbox":
			item.Type = models.ItemCheckbox
		case "text":
			item.Type = models.ItemText
		case "required":
			item.Required = boolPtr(true)
		case "optional":
			item.Required = boolPtr(false)
		default:
			return models.ChecklistItem{}, fmt.Errorf("invalid item %q: unknown option %q", spec, p)
		}
	}
	return item, nil
}

func boolPtr(b bool) *bool { return &b }

func newStrategyAddCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create or replace a strategy",
		Example: `  journal strategy add Breakout --item "retest:Retest held" \
      --item "level:Key level:text:required" --placeholder "What confirmed it?"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()

			strategy := &models.Strategy{OwnerID: app.Owner(), Name: args[0]}
			strategy.ConfirmationsPlaceholder, _ = cmd.Flags().GetString("placeholder")

			specs, _ := cmd.Flags().GetStringArray("item")
			for _, spec := range specs {
				item, err := parseItemSpec(spec)
				if err != nil {
					return fail(output, err)
				}
				strategy.Items = append(strategy.Items, item)
			}

			svc, err := app.Service(ctx)
			if err != nil {
				return fail(output, err)
			}
			if err := svc.SaveStrategy(ctx, strategy); err != nil {
				return fail(output, err)
			}

			if output.IsJSON() {
				return output.JSON(strategy)
			}
			output.Success("✓ Strategy %q saved (%d items)", strategy.Name, len(strategy.Items))
			return nil
		},
	}

	cmd.Flags().StringArray("item", nil, "Checklist item as id:label[:checkbox|text][:required|optional] (repeatable)")
	cmd.Flags().String("placeholder", "", "Prompt shown for the confirmations text")
	return cmd
}

func newStrategyListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()

			svc, err := app.Service(ctx)
			if err != nil {
				return fail(output, err)
			}
			strategies, err := svc.Strategies(ctx, app.Owner())
			if err != nil {
				return fail(output, err)
			}

			if output.IsJSON() {
				return output.JSON(strategies)
			}
			if len(strategies) == 0 {
				output.Info("No strategies defined.")
				output.Dim("Tip: 'journal strategy add <name> --item id:label' or 'journal strategy import file.yaml'")
				return nil
			}

			table := NewTable(output, "ID", "Name", "Items", "Required", "Updated")
			for _, s := range strategies {
				required := 0
				for _, item := range s.Items {
					if item.IsRequired() {
						required++
					}
				}
				table.AddRow(s.ID, s.Name, fmt.Sprintf("%d", len(s.Items)), fmt.Sprintf("%d", required), app.formatTime(s.UpdatedAt))
			}
			table.Render()
			return nil
		},
	}
}

func newStrategyShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id-or-name>",
		Short: "Show a strategy checklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()

			svc, err := app.Service(ctx)
			if err != nil {
				return fail(output, err)
			}
			strategy, err := svc.GetStrategy(ctx, app.Owner(), args[0])
			if err != nil {
				return fail(output, err)
			}

			if output.IsJSON() {
				return output.JSON(strategy)
			}

			output.Bold("%s", strategy.Name)
			output.Dim("ID: %s", strategy.ID)
			output.Println()

			table := NewTable(output, "Item", "Label", "Type", "Required")
			for _, item := range strategy.Items {
				required := "no"
				if item.IsRequired() {
					required = "yes"
				}
				table.AddRow(item.ID, item.Label, string(item.Type), required)
			}
			table.AddRow(models.KeyConfirmations, strategy.ConfirmationsPlaceholder, string(models.ItemText), "yes")
			table.Render()
			return nil
		},
	}
}

func newStrategyDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id-or-name>",
		Short: "Delete a strategy",
		Long:  "Delete a strategy. Trades that used it keep their recorded adherence.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()

			svc, err := app.Service(ctx)
			if err != nil {
				return fail(output, err)
			}
			if err := svc.DeleteStrategy(ctx, app.Owner(), args[0]); err != nil {
				return fail(output, err)
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"deleted": args[0]})
			}
			output.Success("✓ Strategy %s deleted", args[0])
			return nil
		},
	}
}

func newStrategyImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import strategies from YAML",
		Long: `Import strategy definitions from a YAML file. Strategies with an existing
name are replaced. Nothing is written if any definition is invalid.

  strategies:
    - name: Breakout
      confirmations_placeholder: What confirmed the entry?
      items:
        - {id: retest, label: Retest held, type: checkbox}
        - {id: level, label: Key level, type: text, required: true}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()

			f, err := os.Open(args[0])
			if err != nil {
				return fail(output, fmt.Errorf("failed to open strategy file: %w", err))
			}
			defer f.Close()

			svc, err := app.Service(ctx)
			if err != nil {
				return fail(output, err)
			}
			saved, err := svc.ImportStrategies(ctx, app.Owner(), f)
			if err != nil {
				return fail(output, err)
			}

			if output.IsJSON() {
				return output.JSON(saved)
			}
			output.Success("✓ Imported %d strateg(ies)", len(saved))
			for _, s := range saved {
				output.Printf("  %s  %s\n", s.ID, s.Name)
			}
			return nil
		},
	}
}
