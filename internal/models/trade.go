package models

import (
	"math"
	"time"
)

// Trade represents a journaled trade.
//
// PnL, RealizedRR, InitialRisk, InitialReward, ExpectedRR, PeakProfit and the
// timing fields are outputs of Derive and are never edited directly.
type Trade struct {
	ID      string `json:"id" dynamodbav:"id"`
	OwnerID string `json:"owner_id" dynamodbav:"owner_id"`

	Symbol    string    `json:"symbol" dynamodbav:"symbol"`
	Direction Direction `json:"direction" dynamodbav:"direction"`

	EntryTime       time.Time `json:"entry_time" dynamodbav:"entry_time"`
	ExitTime        time.Time `json:"exit_time" dynamodbav:"exit_time"`
	EntryHour       int       `json:"entry_hour" dynamodbav:"entry_hour"`
	DayOfWeek       int       `json:"day_of_week" dynamodbav:"day_of_week"`
	DurationMinutes float64   `json:"duration_minutes" dynamodbav:"duration_minutes"`

	EntryPrice   float64  `json:"entry_price" dynamodbav:"entry_price"`
	ExitPrice    float64  `json:"exit_price" dynamodbav:"exit_price"`
	PositionSize float64  `json:"position_size" dynamodbav:"position_size"`
	StopLoss     *float64 `json:"stop_loss,omitempty" dynamodbav:"stop_loss,omitempty"`
	TakeProfit   *float64 `json:"take_profit,omitempty" dynamodbav:"take_profit,omitempty"`

	InitialRisk   float64 `json:"initial_risk" dynamodbav:"initial_risk"`
	InitialReward float64 `json:"initial_reward" dynamodbav:"initial_reward"`
	PnL           float64 `json:"pnl" dynamodbav:"pnl"`
	RealizedRR    float64 `json:"realized_rr" dynamodbav:"realized_rr"`
	ExpectedRR    float64 `json:"expected_rr" dynamodbav:"expected_rr"`

	MaxFavorableExcursion *float64 `json:"mfe,omitempty" dynamodbav:"mfe,omitempty"`
	MaxAdverseExcursion   *float64 `json:"mae,omitempty" dynamodbav:"mae,omitempty"`
	PeakProfit            float64  `json:"peak_profit" dynamodbav:"peak_profit"`
	TimeToPeakMinutes     float64  `json:"time_to_peak_minutes" dynamodbav:"time_to_peak_minutes"`

	Strategy       string         `json:"strategy" dynamodbav:"strategy"`
	StrategyID     string         `json:"strategy_id,omitempty" dynamodbav:"strategy_id,omitempty"`
	ExitReason     ExitReason     `json:"exit_reason,omitempty" dynamodbav:"exit_reason,omitempty"`
	EmotionalState EmotionalState `json:"emotional_state,omitempty" dynamodbav:"emotional_state,omitempty"`
	Checklist      Checklist      `json:"checklist" dynamodbav:"-"`
	IsAdherent     bool           `json:"is_adherent" dynamodbav:"is_adherent"`

	TradeNumber *int `json:"trade_number,omitempty" dynamodbav:"trade_number,omitempty"`
	WinStreak   int  `json:"win_streak" dynamodbav:"win_streak"`
	LossStreak  int  `json:"loss_streak" dynamodbav:"loss_streak"`

	ConfidenceLevel     *int     `json:"confidence_level,omitempty" dynamodbav:"confidence_level,omitempty"`
	SetupQuality        *int     `json:"setup_quality,omitempty" dynamodbav:"setup_quality,omitempty"`
	Volatility          string   `json:"volatility,omitempty" dynamodbav:"volatility,omitempty"`
	Trend               string   `json:"trend,omitempty" dynamodbav:"trend,omitempty"`
	Volume              string   `json:"volume,omitempty" dynamodbav:"volume,omitempty"`
	AccountBalance      *float64 `json:"account_balance,omitempty" dynamodbav:"account_balance,omitempty"`
	Mistakes            string   `json:"mistakes,omitempty" dynamodbav:"mistakes,omitempty"`
	Lessons             string   `json:"lessons,omitempty" dynamodbav:"lessons,omitempty"`
	WhatWorked          string   `json:"what_worked,omitempty" dynamodbav:"what_worked,omitempty"`
	RiskPercent         *float64 `json:"risk_percent,omitempty" dynamodbav:"risk_percent,omitempty"`
	PositionSizePercent *float64 `json:"position_size_percent,omitempty" dynamodbav:"position_size_percent,omitempty"`
	MaxDrawdown         float64  `json:"max_drawdown" dynamodbav:"max_drawdown"`

	FundAccountID string `json:"fund_account_id,omitempty" dynamodbav:"fund_account_id,omitempty"`

	// BalanceAccountID is the fund account whose stored balance already
	// includes BalanceAppliedPnL for this trade.
	BalanceAccountID  string  `json:"balance_account_id,omitempty" dynamodbav:"balance_account_id,omitempty"`
	BalanceAppliedPnL float64 `json:"balance_applied_pnl" dynamodbav:"balance_applied_pnl"`

	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// Derive recomputes every derived field from the trade's inputs.
func (t *Trade) Derive() {
	t.EntryHour = t.EntryTime.Hour()
	t.DayOfWeek = int(t.EntryTime.Weekday())
	t.DurationMinutes = math.Max(0, t.ExitTime.Sub(t.EntryTime).Minutes())

	if t.PositionSize < 0 {
		t.PositionSize = 0
	}
	t.PnL = (t.ExitPrice - t.EntryPrice) * t.PositionSize

	t.InitialRisk = 0
	if t.StopLoss != nil {
		t.InitialRisk = math.Abs(t.EntryPrice-*t.StopLoss) * t.PositionSize
	}
	t.InitialReward = 0
	if t.TakeProfit != nil {
		t.InitialReward = math.Abs(*t.TakeProfit-t.EntryPrice) * t.PositionSize
	}

	t.RealizedRR = 0
	if t.InitialRisk != 0 {
		t.RealizedRR = t.PnL / t.InitialRisk
	}

	t.ExpectedRR = 0
	if t.StopLoss != nil && t.TakeProfit != nil {
		if stopDist := math.Abs(t.EntryPrice - *t.StopLoss); stopDist != 0 {
			t.ExpectedRR = math.Abs(*t.TakeProfit-t.EntryPrice) / stopDist
		}
	}

	t.PeakProfit = 0
	if t.MaxFavorableExcursion != nil && *t.MaxFavorableExcursion > t.EntryPrice {
		t.PeakProfit = (*t.MaxFavorableExcursion - t.EntryPrice) * t.PositionSize
	}
}

// IsWin reports whether the trade closed with a strictly positive P&L.
func (t *Trade) IsWin() bool { return t.PnL > 0 }

// IsLoss reports whether the trade closed with a strictly negative P&L.
func (t *Trade) IsLoss() bool { return t.PnL < 0 }

// EntryDate returns the calendar date of the entry in the entry's location.
func (t *Trade) EntryDate() (int, time.Month, int) {
	return t.EntryTime.Date()
}

// Float returns a pointer to v. Helper for optional numeric fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v. Helper for optional numeric fields.
func Int(v int) *int { return &v }
