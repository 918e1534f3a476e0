package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"trading-journal/internal/analytics"
)

// addStatsCommands adds performance analytics commands.
func addStatsCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Performance analytics",
		Long: `Show performance analytics for the filtered trades: outcome metrics,
streaks, risk and drawdown, loss insights and breakdowns.`,
		Example: `  journal stats
  journal stats --from 2024-03-01 --to 2024-03-31 --strategy Breakout
  journal stats breakdown --by hour`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runStats(cmd, func(output *Output, d analytics.Dashboard) interface{} {
				printMetrics(output, d.Metrics)
				output.Println()
				printStreaks(output, d.Streaks)
				output.Println()
				printRisk(output, d.Risk, false)
				output.Println()
				printInsights(output, d.Insights)
				return d
			})
		},
	}
	addFilterFlags(cmd)

	cmd.AddCommand(newStatsSubCmd(app, "streaks", "Win and loss streaks", func(output *Output, d analytics.Dashboard) interface{} {
		printStreaks(output, d.Streaks)
		return d.Streaks
	}))
	cmd.AddCommand(newStatsSubCmd(app, "risk", "Position sizing and drawdowns per fund account", func(output *Output, d analytics.Dashboard) interface{} {
		printRisk(output, d.Risk, true)
		return d.Risk
	}))
	cmd.AddCommand(newStatsSubCmd(app, "insights", "What losing trades have in common", func(output *Output, d analytics.Dashboard) interface{} {
		printInsights(output, d.Insights)
		return d.Insights
	}))
	cmd.AddCommand(newStatsBreakdownCmd(app))

	rootCmd.AddCommand(cmd)
}

// runStats computes the dashboard for the filter flags and hands it to
// render. In JSON mode the value render returns is printed instead.
func (a *App) runStats(cmd *cobra.Command, render func(*Output, analytics.Dashboard) interface{}) error {
	output := a.output(cmd)
	ctx := cmd.Context()

	filter, err := a.filterFromFlags(cmd)
	if err != nil {
		return fail(output, err)
	}

	svc, err := a.Service(ctx)
	if err != nil {
		return fail(output, err)
	}
	dashboard, err := svc.Dashboard(ctx, filter)
	if err != nil {
		return fail(output, err)
	}

	if output.IsJSON() {
		quiet := *output
		quiet.writer = io.Discard
		return output.JSON(render(&quiet, dashboard))
	}

	if dashboard.Metrics.TotalTrades == 0 {
		output.Info("No trades match the filter.")
		return nil
	}
	render(output, dashboard)
	return nil
}

func newStatsSubCmd(app *App, use, short string, render func(*Output, analytics.Dashboard) interface{}) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runStats(cmd, render)
		},
	}
	addFilterFlags(cmd)
	return cmd
}

var breakdownDimensions = []string{"strategy", "symbol", "hour", "weekday", "emotion", "exit-reason"}

func newStatsBreakdownCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "breakdown",
		Short: "Metrics grouped by strategy, symbol, hour, weekday, emotion or exit reason",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			by, _ := cmd.Flags().GetString("by")
			by = strings.ToLower(strings.TrimSpace(by))
			if by != "" && by != "all" {
				valid := false
				for _, d := range breakdownDimensions {
					valid = valid || d == by
				}
				if !valid {
					return fail(app.output(cmd), fmt.Errorf("invalid --by %q (use %s)", by, strings.Join(breakdownDimensions, ", ")))
				}
			}

			return app.runStats(cmd, func(output *Output, d analytics.Dashboard) interface{} {
				groups := map[string][]analytics.Group{
					"strategy":    d.Breakdowns.ByStrategy,
					"symbol":      d.Breakdowns.BySymbol,
					"hour":        d.Breakdowns.ByHour,
					"weekday":     d.Breakdowns.ByWeekday,
					"emotion":     d.Breakdowns.ByEmotion,
					"exit-reason": d.Breakdowns.ByExitReason,
				}
				if by != "" && by != "all" {
					printGroups(output, by, groups[by])
					return groups[by]
				}
				for i, dim := range breakdownDimensions {
					if i > 0 {
						output.Println()
					}
					printGroups(output, dim, groups[dim])
				}
				return d.Breakdowns
			})
		},
	}
	addFilterFlags(cmd)
	cmd.Flags().String("by", "all", "Dimension: "+strings.Join(breakdownDimensions, ", ")+" or all")
	return cmd
}

func printMetrics(output *Output, m analytics.TradeMetrics) {
	output.Bold("Performance")
	output.Printf("  Trades:         %d (%d W / %d L / %d BE)\n", m.TotalTrades, m.Wins, m.Losses, m.Breakevens)
	output.Printf("  Net P&L:        %s\n", output.FormatPnL(m.OverallPnL))
	output.Printf("  Win Rate:       %s\n", FormatPercent(m.WinRate))
	output.Printf("  Loss Rate:      %s\n", FormatPercent(m.LossRate))
	output.Printf("  Breakeven Rate: %s\n", FormatPercent(m.BreakevenRate))
	output.Printf("  Average R:      %s\n", FormatRR(m.AverageRR))
	output.Printf("  Expectancy:     %s\n", FormatRR(m.Expectancy))
	output.Printf("  Adherence:      %s\n", FormatPercent(m.AdherenceRate))
	output.Printf("  Profit Factor:  %.2f\n", m.ProfitFactor)
	output.Printf("  Avg Win/Loss:   %s / %s\n", output.FormatMoney(m.AverageWin), output.FormatMoney(m.AverageLoss))
	output.Printf("  Largest W/L:    %s / %s\n", output.FormatMoney(m.LargestWin), output.FormatMoney(m.LargestLoss))
}

func printStreaks(output *Output, s analytics.StreakStats) {
	output.Bold("Streaks")
	output.Printf("  Best Win Streak:    %d\n", s.BestWinStreak)
	output.Printf("  Worst Loss Streak:  %d\n", s.WorstLossStreak)
	switch {
	case s.CurrentWinStreak > 0:
		output.Printf("  Current:            %s\n", output.Green(fmt.Sprintf("%d wins", s.CurrentWinStreak)))
	case s.CurrentLossStreak > 0:
		output.Printf("  Current:            %s\n", output.Red(fmt.Sprintf("%d losses", s.CurrentLossStreak)))
	default:
		output.Printf("  Current:            -\n")
	}
}

func printRisk(output *Output, r analytics.RiskSummary, detailed bool) {
	output.Bold("Risk")
	if len(r.Accounts) == 0 {
		output.Dim("  No trades with risk %%, position %% and a fund account.")
		return
	}
	output.Printf("  Avg Risk:       %s\n", FormatPercent(r.AvgRiskPercent))
	output.Printf("  Avg Position:   %s\n", FormatPercent(r.AvgPositionPercent))
	output.Printf("  Avg Drawdown:   %s\n", output.FormatMoney(r.AvgDrawdown))
	output.Printf("  Max Drawdown:   %s\n", output.FormatMoney(r.MaxDrawdown))
	output.Printf("  Peak / Bottom:  %s / %s\n", output.FormatMoney(r.PeakAccount), output.FormatMoney(r.BottomAccount))

	if !detailed {
		return
	}
	output.Println()
	table := NewTable(output, "Account", "Start", "End", "Stored", "Peak", "Trough", "Max DD")
	for _, c := range r.Accounts {
		name := c.Name
		if name == "" {
			name = c.AccountID
		}
		stored := "-"
		if c.HasStoredBalance {
			stored = output.FormatMoney(c.StoredBalance)
		}
		table.AddRow(
			TruncateString(name, 20),
			output.FormatMoney(c.StartBalance),
			output.FormatMoney(c.EndBalance),
			stored,
			output.FormatMoney(c.Peak),
			output.FormatMoney(c.Trough),
			output.FormatMoney(c.MaxDrawdown),
		)
	}
	table.Render()
}

func printInsights(output *Output, in analytics.LossInsights) {
	output.Bold("Loss Insights")
	if in.LosingTrades == 0 {
		output.Dim("  No losing trades.")
		return
	}
	output.Printf("  Losing Trades:  %d\n", in.LosingTrades)
	if len(in.MostCommonMistakes) > 0 {
		output.Printf("  Top Mistakes:\n")
		for _, m := range in.MostCommonMistakes {
			output.Printf("    %-24s %d\n", TruncateString(m.Mistake, 24), m.Count)
		}
	}
	if in.ConfidenceWithMostLosses != nil {
		output.Printf("  Confidence with most losses:    %d/10\n", *in.ConfidenceWithMostLosses)
	}
	if in.SetupQualityWithMostLosses != nil {
		output.Printf("  Setup quality with most losses: %d/10\n", *in.SetupQualityWithMostLosses)
	}
	if in.TradeNumberWithMostLosses != nil {
		output.Printf("  Trade of day with most losses:  #%d\n", *in.TradeNumberWithMostLosses)
	}
}

func printGroups(output *Output, dimension string, groups []analytics.Group) {
	output.Bold("By %s", dimension)
	table := NewTable(output, strings.ToUpper(dimension[:1])+dimension[1:], "Trades", "Win %", "Net P&L", "Avg R", "Adherence")
	for _, g := range groups {
		table.AddRow(
			g.Key,
			fmt.Sprintf("%d", g.Metrics.TotalTrades),
			FormatPercent(g.Metrics.WinRate),
			output.FormatPnL(g.Metrics.OverallPnL),
			FormatRR(g.Metrics.AverageRR),
			FormatPercent(g.Metrics.AdherenceRate),
		)
	}
	table.Render()
}
