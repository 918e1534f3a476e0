package analytics

import "trading-journal/internal/models"

// StreakStats holds consecutive win and loss runs.
type StreakStats struct {
	BestWinStreak     int `json:"best_win_streak"`
	WorstLossStreak   int `json:"worst_loss_streak"`
	CurrentWinStreak  int `json:"current_win_streak"`
	CurrentLossStreak int `json:"current_loss_streak"`
}

// ComputeStreaks walks trades from oldest to newest entry. Breakeven trades
// neither extend nor break a run.
func ComputeStreaks(trades []models.Trade) StreakStats {
	var s StreakStats
	for _, t := range sortedByEntry(trades) {
		switch {
		case t.PnL > 0:
			s.CurrentWinStreak++
			s.CurrentLossStreak = 0
		case t.PnL < 0:
			s.CurrentLossStreak++
			s.CurrentWinStreak = 0
		default:
			continue
		}
		if s.CurrentWinStreak > s.BestWinStreak {
			s.BestWinStreak = s.CurrentWinStreak
		}
		if s.CurrentLossStreak > s.WorstLossStreak {
			s.WorstLossStreak = s.CurrentLossStreak
		}
	}
	return s
}
