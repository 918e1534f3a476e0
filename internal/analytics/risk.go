package analytics

import (
	"math"
	"sort"
	"time"

	"trading-journal/internal/models"
)

// RiskSummary describes position sizing and the drawdowns of every fund
// account's reconstructed equity curve.
type RiskSummary struct {
	AvgRiskPercent     float64 `json:"avg_risk_percent"`
	AvgPositionPercent float64 `json:"avg_position_percent"`
	AvgDrawdown        float64 `json:"avg_drawdown"`
	MaxDrawdown        float64 `json:"max_drawdown"`
	PeakAccount        float64 `json:"peak_account"`
	BottomAccount      float64 `json:"bottom_account"`

	Accounts []AccountCurve `json:"accounts"`
}

// AccountCurve is the equity curve of one fund account, rebuilt from its
// trades. StoredBalance is the account's running total as persisted; the two
// views are reported side by side and never reconciled here.
type AccountCurve struct {
	AccountID        string        `json:"account_id"`
	Name             string        `json:"name,omitempty"`
	StartBalance     float64       `json:"start_balance"`
	EndBalance       float64       `json:"end_balance"`
	Peak             float64       `json:"peak"`
	Trough           float64       `json:"trough"`
	MaxDrawdown      float64       `json:"max_drawdown"`
	StoredBalance    float64       `json:"stored_balance"`
	HasStoredBalance bool          `json:"has_stored_balance"`
	Points           []EquityPoint `json:"points"`
}

// EquityPoint is the account balance around one trade.
type EquityPoint struct {
	TradeID      string    `json:"trade_id"`
	Time         time.Time `json:"time"`
	EntryBalance float64   `json:"entry_balance"`
	ExitBalance  float64   `json:"exit_balance"`
	Peak         float64   `json:"peak"`
	Drawdown     float64   `json:"drawdown"`
}

// ComputeRiskSummary averages risk and position sizing over trades carrying
// both percentages and a fund account, then folds each account's trades into
// its own equity curve. Curves are never merged across accounts.
func ComputeRiskSummary(trades []models.Trade, accounts []models.FundAccount) RiskSummary {
	summary := RiskSummary{Accounts: []AccountCurve{}}

	var (
		riskPcts, posPcts []float64
		byAccount         = make(map[string][]models.Trade)
	)
	for _, t := range trades {
		if t.RiskPercent == nil || t.PositionSizePercent == nil || t.FundAccountID == "" {
			continue
		}
		riskPcts = append(riskPcts, finite(*t.RiskPercent))
		posPcts = append(posPcts, finite(*t.PositionSizePercent))
		byAccount[t.FundAccountID] = append(byAccount[t.FundAccountID], t)
	}
	if len(riskPcts) == 0 {
		return summary
	}

	summary.AvgRiskPercent = Round2(mean(riskPcts))
	summary.AvgPositionPercent = Round2(mean(posPcts))

	known := make(map[string]models.FundAccount, len(accounts))
	for _, a := range accounts {
		known[a.ID] = a
	}

	ids := make([]string, 0, len(byAccount))
	for id := range byAccount {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var (
		totalDrawdown float64
		events        int
		maxDrawdown   float64
		peak          = math.Inf(-1)
		bottom        = math.Inf(1)
	)
	for _, id := range ids {
		account, ok := known[id]
		curve := equityCurve(id, sortedByEntry(byAccount[id]), account, ok)

		for _, p := range curve.Points {
			if p.Drawdown > 0 {
				totalDrawdown += p.Drawdown
				events++
			}
		}
		maxDrawdown = math.Max(maxDrawdown, curve.MaxDrawdown)
		peak = math.Max(peak, curve.Peak)
		bottom = math.Min(bottom, curve.Trough)

		curve.MaxDrawdown = Round2(curve.MaxDrawdown)
		summary.Accounts = append(summary.Accounts, curve)
	}

	if events > 0 {
		summary.AvgDrawdown = Round2(totalDrawdown / float64(events))
	}
	summary.MaxDrawdown = Round2(maxDrawdown)
	if !math.IsInf(peak, 0) {
		summary.PeakAccount = peak
	}
	if !math.IsInf(bottom, 0) {
		summary.BottomAccount = bottom
	}
	return summary
}

// equityCurve folds chronologically ordered trades into running balances.
// The seed is the account's initial balance when the account is known, else
// the first trade's balance snapshot, else 0.
func equityCurve(id string, trades []models.Trade, account models.FundAccount, known bool) AccountCurve {
	curve := AccountCurve{
		AccountID: id,
		Points:    make([]EquityPoint, 0, len(trades)),
	}

	var balance float64
	switch {
	case known:
		balance = account.InitialBalance
		curve.Name = account.Name
		curve.StoredBalance = account.Balance
		curve.HasStoredBalance = true
	case len(trades) > 0 && trades[0].AccountBalance != nil:
		balance = *trades[0].AccountBalance
	}
	curve.StartBalance = balance

	peak, trough := math.Inf(-1), math.Inf(1)
	for _, t := range trades {
		entry := balance
		exit := entry + finite(t.PnL)

		peak = math.Max(peak, math.Max(entry, exit))
		trough = math.Min(trough, math.Min(entry, exit))
		drawdown := math.Max(0, peak-exit)
		curve.MaxDrawdown = math.Max(curve.MaxDrawdown, drawdown)

		curve.Points = append(curve.Points, EquityPoint{
			TradeID:      t.ID,
			Time:         t.EntryTime,
			EntryBalance: entry,
			ExitBalance:  exit,
			Peak:         peak,
			Drawdown:     drawdown,
		})
		balance = exit
	}

	curve.EndBalance = balance
	if !math.IsInf(peak, 0) {
		curve.Peak = peak
	}
	if !math.IsInf(trough, 0) {
		curve.Trough = trough
	}
	return curve
}
