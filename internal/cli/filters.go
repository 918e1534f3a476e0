package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trading-journal/internal/models"
	"trading-journal/internal/store"
)

// addFilterFlags adds the trade filter flags shared by list, stats and
// export commands.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("strategy", "", "Only trades with this strategy name")
	cmd.Flags().String("direction", "", "Only LONG or SHORT trades")
	cmd.Flags().Bool("adherent", false, "Only adherent trades (--adherent=false for non-adherent)")
	cmd.Flags().String("from", "", "Entries at or after this time")
	cmd.Flags().String("to", "", "Entries before this time (a bare date includes the whole day)")
	cmd.Flags().String("account", "", "Only trades assigned to this fund account")
	cmd.Flags().String("symbol", "", "Only trades in this symbol")
}

// filterFromFlags builds a trade filter for the current owner.
func (a *App) filterFromFlags(cmd *cobra.Command) (store.TradeFilter, error) {
	filter := store.TradeFilter{OwnerID: a.Owner()}

	filter.Strategy, _ = cmd.Flags().GetString("strategy")
	filter.FundAccountID, _ = cmd.Flags().GetString("account")
	filter.Symbol, _ = cmd.Flags().GetString("symbol")

	if s, _ := cmd.Flags().GetString("direction"); s != "" {
		d, ok := models.ParseDirection(s)
		if !ok {
			return filter, fmt.Errorf("invalid direction %q (use LONG or SHORT)", s)
		}
		filter.Direction = d
	}

	if cmd.Flags().Changed("adherent") {
		adherent, _ := cmd.Flags().GetBool("adherent")
		filter.Adherent = &adherent
	}

	loc := a.Location()
	if s, _ := cmd.Flags().GetString("from"); s != "" {
		from, err := ParseTime(s, loc)
		if err != nil {
			return filter, fmt.Errorf("--from: %w", err)
		}
		filter.From = from
	}
	if s, _ := cmd.Flags().GetString("to"); s != "" {
		to, err := ParseTime(s, loc)
		if err != nil {
			return filter, fmt.Errorf("--to: %w", err)
		}
		if isBareDate(s) {
			to = to.AddDate(0, 0, 1)
		}
		filter.To = to
	}

	return filter, nil
}

func isBareDate(s string) bool {
	_, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	return err == nil
}
