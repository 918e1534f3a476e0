package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	apperrors "trading-journal/internal/errors"
	"trading-journal/internal/logging"
	"trading-journal/internal/models"
)

// addTradeCommands adds trade journaling commands.
func addTradeCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "trade",
		Aliases: []string{"trades", "t"},
		Short:   "Record and review trades",
		Long:    "Record trades with their plan, checklist and outcome, and review them.",
	}

	cmd.AddCommand(newTradeAddCmd(app))
	cmd.AddCommand(newTradeEditCmd(app))
	cmd.AddCommand(newTradeShowCmd(app))
	cmd.AddCommand(newTradeListCmd(app))
	cmd.AddCommand(newTradeDeleteCmd(app))
	cmd.AddCommand(newTradeResequenceCmd(app))

	rootCmd.AddCommand(cmd)
}

// addTradeFlags adds the flags describing a trade's inputs.
func addTradeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("symbol", "", "Instrument symbol")
	f.String("direction", "", "LONG or SHORT")
	f.String("entry", "", "Entry time (YYYY-MM-DD HH:MM or RFC3339)")
	f.String("exit", "", "Exit time (defaults to the entry time)")
	f.Float64("entry-price", 0, "Entry price")
	f.Float64("exit-price", 0, "Exit price")
	f.Float64("size", 0, "Position size")
	f.Float64("stop", 0, "Stop loss price")
	f.Float64("target", 0, "Take profit price")
	f.Float64("mfe", 0, "Best price reached while open")
	f.Float64("mae", 0, "Worst price reached while open")
	f.Float64("time-to-peak", 0, "Minutes from entry to the best price")

	f.String("strategy", "", "Strategy name")
	f.String("strategy-id", "", "Strategy ID (takes precedence over --strategy)")
	f.String("exit-reason", "", "Exit reason: "+joinValues(models.ExitReasons))
	f.String("emotion", "", "Emotional state: "+joinValues(models.EmotionalStates))
	f.Int("confidence", 0, "Confidence level (1-10)")
	f.Int("setup", 0, "Setup quality (1-10)")
	f.String("volatility", "", "Market volatility note")
	f.String("trend", "", "Market trend note")
	f.String("volume", "", "Market volume note")

	f.String("account", "", "Fund account ID")
	f.Float64("balance", 0, "Account balance when the trade was opened")
	f.Float64("risk-pct", 0, "Risk as a percentage of the account")
	f.Float64("position-pct", 0, "Position size as a percentage of the account")
	f.Float64("max-drawdown", 0, "Largest drawdown while the trade was open")

	f.String("mistakes", "", "Mistakes, separated by commas")
	f.String("lessons", "", "Lessons learned")
	f.String("worked", "", "What worked")

	f.StringArray("check", nil, "Mark a checklist item as done (repeatable)")
	f.StringArray("uncheck", nil, "Mark a checklist item as not done (repeatable)")
	f.StringArray("answer", nil, "Answer a text checklist item as key=text (repeatable)")
	f.String("confirmations", "", "What confirmed the entry")
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

// applyTradeFlags copies every flag set on the command line onto t.
func (a *App) applyTradeFlags(cmd *cobra.Command, t *models.Trade) error {
	loc := a.Location()
	var applyErr error

	cmd.Flags().Visit(func(f *pflag.Flag) {
		if applyErr != nil {
			return
		}
		applyErr = applyTradeFlag(cmd.Flags(), f.Name, t, loc)
	})
	if applyErr != nil {
		return applyErr
	}

	if unset, err := cmd.Flags().GetStringArray("unset"); err == nil {
		for _, name := range unset {
			if err := unsetTradeField(t, strings.TrimSpace(name)); err != nil {
				return err
			}
		}
	}

	if t.ExitTime.IsZero() {
		t.ExitTime = t.EntryTime
	}
	return nil
}

func applyTradeFlag(flags *pflag.FlagSet, name string, t *models.Trade, loc *time.Location) error {
	getString := func() string { v, _ := flags.GetString(name); return strings.TrimSpace(v) }
	getFloat := func() float64 { v, _ := flags.GetFloat64(name); return v }
	getInt := func() int { v, _ := flags.GetInt(name); return v }
	getArray := func() []string { v, _ := flags.GetStringArray(name); return v }

	switch name {
	case "symbol":
		t.Symbol = strings.ToUpper(getString())
	case "direction":
		d, ok := models.ParseDirection(getString())
		if !ok {
			return fmt.Errorf("invalid direction %q (use LONG or SHORT)", getString())
		}
		t.Direction = d
	case "entry", "exit":
		ts, err := ParseTime(getString(), loc)
		if err != nil {
			return fmt.Errorf("--%s: %w", name, err)
		}
		if name == "entry" {
			t.EntryTime = ts
		} else {
			t.ExitTime = ts
		}
	case "entry-price":
		t.EntryPrice = getFloat()
	case "exit-price":
		t.ExitPrice = getFloat()
	case "size":
		t.PositionSize = getFloat()
	case "stop":
		t.StopLoss = models.Float(getFloat())
	case "target":
		t.TakeProfit = models.Float(getFloat())
	case "mfe":
		t.MaxFavorableExcursion = models.Float(getFloat())
	case "mae":
		t.MaxAdverseExcursion = models.Float(getFloat())
	case "time-to-peak":
		t.TimeToPeakMinutes = getFloat()

	case "strategy":
		t.Strategy = getString()
		if !flags.Changed("strategy-id") {
			t.StrategyID = ""
		}
	case "strategy-id":
		t.StrategyID = getString()
	case "exit-reason":
		t.ExitReason = models.ExitReason(strings.ToUpper(getString()))
	case "emotion":
		t.EmotionalState = models.EmotionalState(strings.ToUpper(getString()))
	case "confidence":
		t.ConfidenceLevel = models.Int(getInt())
	case "setup":
		t.SetupQuality = models.Int(getInt())
	case "volatility":
		t.Volatility = getString()
	case "trend":
		t.Trend = getString()
	case "volume":
		t.Volume = getString()

	case "account":
		t.FundAccountID = getString()
	case "balance":
		t.AccountBalance = models.Float(getFloat())
	case "risk-pct":
		t.RiskPercent = models.Float(getFloat())
	case "position-pct":
		t.PositionSizePercent = models.Float(getFloat())
	case "max-drawdown":
		t.MaxDrawdown = getFloat()

	case "mistakes":
		t.Mistakes = getString()
	case "lessons":
		t.Lessons = getString()
	case "worked":
		t.WhatWorked = getString()

	case "check", "uncheck":
		for _, key := range getArray() {
			t.Checklist.Set(strings.TrimSpace(key), models.Checked(name == "check"))
		}
	case "answer":
		for _, pair := range getArray() {
			key, text, ok := strings.Cut(pair, "=")
			if !ok || strings.TrimSpace(key) == "" {
				return fmt.Errorf("--answer %q: expected key=text", pair)
			}
			t.Checklist.Set(strings.TrimSpace(key), models.Text(text))
		}
	case "confirmations":
		t.Checklist.Set(models.KeyConfirmations, models.Text(getString()))
	}
	return nil
}

// unsettableFields lists the optional trade inputs --unset can clear.
var unsettableFields = []string{
	"stop", "target", "mfe", "mae", "time-to-peak",
	"strategy", "exit-reason", "emotion", "confidence", "setup",
	"volatility", "trend", "volume",
	"account", "balance", "risk-pct", "position-pct", "max-drawdown",
	"mistakes", "lessons", "worked",
}

// unsetTradeField clears one optional input, named like its flag.
func unsetTradeField(t *models.Trade, name string) error {
	switch name {
	case "stop":
		t.StopLoss = nil
	case "target":
		t.TakeProfit = nil
	case "mfe":
		t.MaxFavorableExcursion = nil
	case "mae":
		t.MaxAdverseExcursion = nil
	case "time-to-peak":
		t.TimeToPeakMinutes = 0
	case "strategy":
		t.Strategy = ""
		t.StrategyID = ""
	case "exit-reason":
		t.ExitReason = ""
	case "emotion":
		t.EmotionalState = ""
	case "confidence":
		t.ConfidenceLevel = nil
	case "setup":
		t.SetupQuality = nil
	case "volatility":
		t.Volatility = ""
	case "trend":
		t.Trend = ""
	case "volume":
		t.Volume = ""
	case "account":
		t.FundAccountID = ""
	case "balance":
		t.AccountBalance = nil
	case "risk-pct":
		t.RiskPercent = nil
	case "position-pct":
		t.PositionSizePercent = nil
	case "max-drawdown":
		t.MaxDrawdown = 0
	case "mistakes":
		t.Mistakes = ""
	case "lessons":
		t.Lessons = ""
	case "worked":
		t.WhatWorked = ""
	default:
		return fmt.Errorf("--unset %q: not an optional field (use one of %s)", name, strings.Join(unsettableFields, ", "))
	}
	return nil
}

func newTradeAddCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a trade",
		Long: `Record a closed trade. P&L, R multiples, duration and risk are derived
from the prices; the trade number and streaks from the previous trade in the
same fund account; adherence from the strategy checklist.`,
		Example: `  journal trade add --symbol ES --direction long --entry "2024-03-04 09:35" \
      --exit "2024-03-04 10:10" --entry-price 5100 --exit-price 5112 --size 2 \
      --stop 5095 --target 5120 --strategy Breakout --check retest \
      --confirmations "volume spike"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()

			trade := &models.Trade{
				OwnerID:   app.Owner(),
				Checklist: models.NewChecklist(),
			}
			if err := app.applyTradeFlags(cmd, trade); err != nil {
				return fail(output, err)
			}

			svc, err := app.Service(ctx)
			if err != nil {
				return fail(output, err)
			}
			if err := svc.RecordTrade(ctx, trade); err != nil {
				return fail(output, err)
			}

			if output.IsJSON() {
				return output.JSON(trade)
			}
			output.Success("✓ Trade %s recorded", trade.ID)
			app.printTradeSummary(output, trade)
			return nil
		},
	}

	addTradeFlags(cmd)
	for _, name := range []string{"symbol", "direction", "entry", "entry-price", "exit-price", "size"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newTradeEditCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <trade-id>",
		Short: "Edit a trade",
		Long: `Change any input of a recorded trade. Derived values, adherence and the
fund account balance are recomputed; later trades keep their sequence until
'trade resequence' is run. Optional fields are cleared with --unset.`,
		Example: `  journal trade edit 01HR3Z... --exit-price 5115 --lessons "Let it run"
  journal trade edit 01HR3Z... --unset stop --unset account`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()

			svc, err := app.Service(ctx)
			if err != nil {
				return fail(output, err)
			}
			trade, err := svc.GetTrade(ctx, app.Owner(), args[0])
			if err != nil {
				return fail(output, err)
			}
			if err := app.applyTradeFlags(cmd, trade); err != nil {
				return fail(output, err)
			}
			if err := svc.UpdateTrade(ctx, trade); err != nil {
				return fail(output, err)
			}

			if output.IsJSON() {
				return output.JSON(trade)
			}
			output.Success("✓ Trade %s updated", trade.ID)
			app.printTradeSummary(output, trade)
			return nil
		},
	}

	addTradeFlags(cmd)
	cmd.Flags().StringArray("unset", nil, "Clear an optional field, named like its flag (repeatable)")
	return cmd
}

func newTradeShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <trade-id>",
		Short: "Show a trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()

			svc, err := app.Service(ctx)
			if err != nil {
				return fail(output, err)
			}
			trade, err := svc.GetTrade(ctx, app.Owner(), args[0])
			if err != nil {
				return fail(output, err)
			}

			if output.IsJSON() {
				return output.JSON(trade)
			}

			var strategy *models.Strategy
			if trade.StrategyID != "" {
				strategy, err = svc.GetStrategy(ctx, trade.OwnerID, trade.StrategyID)
				if err != nil && !apperrors.IsNotFound(err) {
					return fail(output, err)
				}
			}
			app.printTrade(output, trade, strategy)
			return nil
		},
	}
}

func newTradeListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trades",
		Example: `  journal trade list --from 2024-03-01 --strategy Breakout
  journal trade list --adherent=false --limit 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()

			filter, err := app.filterFromFlags(cmd)
			if err != nil {
				return fail(output, err)
			}
			filter.Limit, _ = cmd.Flags().GetInt("limit")
			filter.Newest = true

			svc, err := app.Service(ctx)
			if err != nil {
				return fail(output, err)
			}
			trades, err := svc.Trades(ctx, filter)
			if err != nil {
				return fail(output, err)
			}

			if output.IsJSON() {
				return output.JSON(trades)
			}

			if len(trades) == 0 {
				output.Info("No trades found.")
				return nil
			}

			table := NewTable(output, "ID", "Entry", "Symbol", "Side", "Size", "Entry Px", "Exit Px", "P&L", "R", "#", "Strategy", "Adherent")
			for _, t := range trades {
				number := "-"
				if t.TradeNumber != nil {
					number = fmt.Sprintf("%d", *t.TradeNumber)
				}
				table.AddRow(
					t.ID,
					app.formatTime(t.EntryTime),
					t.Symbol,
					string(t.Direction),
					fmt.Sprintf("%g", t.PositionSize),
					FormatPrice(t.EntryPrice),
					FormatPrice(t.ExitPrice),
					output.FormatPnL(t.PnL),
					FormatRR(t.RealizedRR),
					number,
					TruncateString(t.Strategy, 15),
					output.Adherence(t.IsAdherent),
				)
			}
			table.Render()
			output.Println()
			output.Dim("%d trade(s)", len(trades))
			return nil
		},
	}

	addFilterFlags(cmd)
	cmd.Flags().Int("limit", 50, "Maximum number of trades to show (0 for all)")
	return cmd
}

func newTradeDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <trade-id>",
		Short: "Delete a trade",
		Long:  "Delete a trade and remove its P&L from the fund account balance.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()

			svc, err := app.Service(ctx)
			if err != nil {
				return fail(output, err)
			}
			if err := svc.DeleteTrade(ctx, app.Owner(), args[0]); err != nil {
				return fail(output, err)
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"deleted": args[0]})
			}
			output.Success("✓ Trade %s deleted", args[0])
			return nil
		},
	}
}

func newTradeResequenceCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "resequence",
		Short: "Recompute trade numbers and streaks",
		Long: `Walk every trade in entry order and recompute trade numbers and win/loss
streaks. Run after back-dating, editing or deleting trades.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := app.output(cmd)
			ctx := cmd.Context()

			svc, err := app.Service(ctx)
			if err != nil {
				return fail(output, err)
			}
			changed, err := svc.Resequence(ctx, app.Owner())
			if err != nil {
				return fail(output, err)
			}
			logger := logging.FromContext(ctx)
			logger.Debug().Int("changed", changed).Msg("Resequence finished")

			if output.IsJSON() {
				return output.JSON(map[string]int{"changed": changed})
			}
			output.Success("✓ Resequenced, %d trade(s) changed", changed)
			return nil
		},
	}
}

func (a *App) printTradeSummary(output *Output, t *models.Trade) {
	number := "-"
	if t.TradeNumber != nil {
		number = fmt.Sprintf("%d", *t.TradeNumber)
	}
	output.Printf("  %s %s  P&L %s  %s  trade #%s of the day  adherent: %s\n",
		string(t.Direction), t.Symbol,
		output.FormatPnL(t.PnL), FormatRR(t.RealizedRR),
		number, output.Adherence(t.IsAdherent))
	if t.WinStreak > 0 {
		output.Dim("  Win streak: %d", t.WinStreak)
	} else if t.LossStreak > 0 {
		output.Dim("  Loss streak: %d", t.LossStreak)
	}
}

// printTrade renders a trade in full. Checklist rows use the labels of st
// when the strategy still defines them.
func (a *App) printTrade(output *Output, t *models.Trade, st *models.Strategy) {
	output.Bold("Trade %s", t.ID)
	output.Printf("  Symbol:        %s %s\n", string(t.Direction), t.Symbol)
	output.Printf("  Entry:         %s @ %s\n", a.formatTime(t.EntryTime), FormatPrice(t.EntryPrice))
	output.Printf("  Exit:          %s @ %s\n", a.formatTime(t.ExitTime), FormatPrice(t.ExitPrice))
	output.Printf("  Size:          %g\n", t.PositionSize)
	output.Printf("  Duration:      %s\n", FormatMinutes(t.DurationMinutes))
	output.Printf("  Stop / Target: %s / %s\n", FormatOptional(t.StopLoss), FormatOptional(t.TakeProfit))
	output.Println()

	output.Bold("Outcome")
	output.Printf("  P&L:           %s\n", output.FormatPnL(t.PnL))
	output.Printf("  Risk:          %s\n", output.FormatMoney(t.InitialRisk))
	output.Printf("  Realized R:    %s\n", FormatRR(t.RealizedRR))
	output.Printf("  Planned R:     %s\n", FormatRR(t.ExpectedRR))
	if t.PeakProfit > 0 {
		output.Printf("  Peak Profit:   %s\n", output.FormatMoney(t.PeakProfit))
	}
	if t.ExitReason != "" {
		output.Printf("  Exit Reason:   %s\n", t.ExitReason)
	}
	output.Println()

	output.Bold("Process")
	strategy := t.Strategy
	if strategy == "" {
		strategy = "-"
	}
	output.Printf("  Strategy:      %s\n", strategy)
	output.Printf("  Adherent:      %s\n", output.Adherence(t.IsAdherent))
	for _, key := range t.Checklist.Keys() {
		v, _ := t.Checklist.Get(key)
		label := key
		if st != nil {
			if item, ok := st.Item(key); ok && item.Label != "" {
				label = item.Label
			}
		}
		if v.Kind == models.ItemText {
			output.Printf("    %-20s %s\n", label, v.Text)
			continue
		}
		mark := output.Red("✗")
		if v.Checked {
			mark = output.Green("✓")
		}
		output.Printf("    %-20s %s\n", label, mark)
	}
	if t.EmotionalState != "" {
		output.Printf("  Emotion:       %s\n", t.EmotionalState)
	}
	if t.ConfidenceLevel != nil {
		output.Printf("  Confidence:    %d/10\n", *t.ConfidenceLevel)
	}
	if t.SetupQuality != nil {
		output.Printf("  Setup Quality: %d/10\n", *t.SetupQuality)
	}
	output.Println()

	output.Bold("Sequence")
	if t.TradeNumber != nil {
		output.Printf("  Trade of Day:  #%d\n", *t.TradeNumber)
	}
	output.Printf("  Streaks:       %d win / %d loss\n", t.WinStreak, t.LossStreak)
	if t.FundAccountID != "" {
		output.Printf("  Account:       %s\n", t.FundAccountID)
	}

	if t.Mistakes != "" || t.Lessons != "" || t.WhatWorked != "" {
		output.Println()
		output.Bold("Review")
		if t.WhatWorked != "" {
			output.Printf("  Worked:        %s\n", t.WhatWorked)
		}
		if t.Mistakes != "" {
			output.Printf("  Mistakes:      %s\n", t.Mistakes)
		}
		if t.Lessons != "" {
			output.Printf("  Lessons:       %s\n", t.Lessons)
		}
	}
}
