package analytics

import "trading-journal/internal/models"

// Dashboard bundles every reduction over one trade set.
type Dashboard struct {
	Metrics    TradeMetrics `json:"metrics"`
	Streaks    StreakStats  `json:"streaks"`
	Risk       RiskSummary  `json:"risk"`
	Insights   LossInsights `json:"insights"`
	Breakdowns Breakdowns   `json:"breakdowns"`
}

// BuildDashboard runs each reduction independently over the same input.
func BuildDashboard(trades []models.Trade, accounts []models.FundAccount) Dashboard {
	return Dashboard{
		Metrics:    ComputeMetrics(trades),
		Streaks:    ComputeStreaks(trades),
		Risk:       ComputeRiskSummary(trades, accounts),
		Insights:   ComputeLossInsights(trades),
		Breakdowns: ComputeBreakdowns(trades),
	}
}
