package cli

import (
	"github.com/spf13/cobra"
)

// addAccountCommands adds fund account commands.
func addAccountCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "account",
		Aliases: []string{"accounts", "a"},
		Short:   "Manage fund accounts",
		Long: `A fund account is a capital pool. Its balance starts at the initial balance
and follows the P&L of the trades assigned to it.`,
	}

	cmd.AddCommand(newAccountAddCmd(app))
	cmd.AddCommand(newAccountListCmd(app))
	cmd.AddCommand(newAccountAssignCmd(app))
	cmd.AddCommand(newAccountReconcileCmd(app))

	rootCmd.AddCommand(cmd)
}

func newAccountAddCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "add <name>",
		Short:   "Create a fund account",
		Example: `  journal account add "Prop Eval" --initial 50000`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()
			initial, _ := cmd.Flags().GetFloat64("initial")

			svc, err := app.Service(ctx)
			if err != nil {
				return fail(output, err)
			}
			account, err := svc.CreateFundAccount(ctx, app.Owner(), args[0], initial)
			if err != nil {
				return fail(output, err)
			}

			if output.IsJSON() {
				return output.JSON(account)
			}
			output.Success("✓ Fund account %q created: %s", account.Name, account.ID)
			output.Printf("  Initial balance: %s\n", output.FormatMoney(account.InitialBalance))
			return nil
		},
	}

	cmd.Flags().Float64("initial", 0, "Initial balance")
	return cmd
}

func newAccountListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List fund accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()

			svc, err := app.Service(ctx)
			if err != nil {
				return fail(output, err)
			}
			accounts, err := svc.FundAccounts(ctx, app.Owner())
			if err != nil {
				return fail(output, err)
			}

			if output.IsJSON() {
				return output.JSON(accounts)
			}
			if len(accounts) == 0 {
				output.Info("No fund accounts.")
				return nil
			}

			table := NewTable(output, "ID", "Name", "Initial", "Balance", "Change")
			for _, a := range accounts {
				table.AddRow(
					a.ID,
					a.Name,
					output.FormatMoney(a.InitialBalance),
					output.FormatMoney(a.Balance),
					output.FormatPnL(a.Balance-a.InitialBalance),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newAccountAssignCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <account-id> <trade-id>...",
		Short: "Assign trades to a fund account",
		Long: `Move trades onto a fund account. Their P&L is added to its balance and
removed from any account they were on before. Trades already on the account
are skipped, so running the same assignment twice changes nothing.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()

			svc, err := app.Service(ctx)
			if err != nil {
				return fail(output, err)
			}
			result, err := svc.AssignTrades(ctx, app.Owner(), args[0], args[1:])
			if err != nil {
				return fail(output, err)
			}

			if output.IsJSON() {
				return output.JSON(result)
			}
			output.Success("✓ Assigned %d trade(s) to %s", result.Assigned, args[0])
			if result.Skipped > 0 {
				output.Dim("  %d already assigned", result.Skipped)
			}
			return nil
		},
	}
}

func newAccountReconcileCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile <account-id>",
		Short: "Compare a stored balance with its trades",
		Long: `Rebuild the balance from the initial balance and the assigned trades and
compare it with the stored balance. With --apply the stored balance is
rewritten to the rebuilt value.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()
			apply, _ := cmd.Flags().GetBool("apply")

			svc, err := app.Service(ctx)
			if err != nil {
				return fail(output, err)
			}
			rec, err := svc.ReconcileAccount(ctx, app.Owner(), args[0], apply)
			if err != nil {
				return fail(output, err)
			}

			if output.IsJSON() {
				return output.JSON(rec)
			}

			output.Bold("%s (%s)", rec.Name, rec.AccountID)
			output.Printf("  Initial:        %s\n", output.FormatMoney(rec.Initial))
			output.Printf("  Trades:         %d\n", rec.Trades)
			output.Printf("  Stored:         %s\n", output.FormatMoney(rec.Stored))
			output.Printf("  Reconstructed:  %s\n", output.FormatMoney(rec.Reconstructed))
			output.Println()

			switch {
			case rec.Drift == 0:
				output.Success("✓ Balance is consistent")
			case rec.Applied:
				output.Success("✓ Stored balance corrected by %s", FormatPnL(rec.Drift, output.currency))
			default:
				output.Warning("Drift: %s", FormatPnL(rec.Drift, output.currency))
				output.Dim("Run 'journal account reconcile %s --apply' to correct it.", rec.AccountID)
			}
			return nil
		},
	}

	cmd.Flags().Bool("apply", false, "Rewrite the stored balance")
	return cmd
}
