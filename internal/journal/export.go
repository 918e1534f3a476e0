package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"

	"trading-journal/internal/models"
	"trading-journal/internal/store"
)

// tradeRow is the CSV layout of an exported trade.
type tradeRow struct {
	ID             string  `csv:"id"`
	EntryTime      string  `csv:"entry_time"`
	ExitTime       string  `csv:"exit_time"`
	Symbol         string  `csv:"symbol"`
	Direction      string  `csv:"direction"`
	Strategy       string  `csv:"strategy"`
	EntryPrice     float64 `csv:"entry_price"`
	ExitPrice      float64 `csv:"exit_price"`
	PositionSize   float64 `csv:"position_size"`
	StopLoss       string  `csv:"stop_loss"`
	TakeProfit     string  `csv:"take_profit"`
	PnL            float64 `csv:"pnl"`
	RealizedRR     float64 `csv:"realized_rr"`
	ExpectedRR     float64 `csv:"expected_rr"`
	Duration       float64 `csv:"duration_minutes"`
	ExitReason     string  `csv:"exit_reason"`
	EmotionalState string  `csv:"emotional_state"`
	Adherent       bool    `csv:"adherent"`
	TradeNumber    string  `csv:"trade_number"`
	WinStreak      int     `csv:"win_streak"`
	LossStreak     int     `csv:"loss_streak"`
	Confidence     string  `csv:"confidence_level"`
	SetupQuality   string  `csv:"setup_quality"`
	RiskPercent    string  `csv:"risk_percent"`
	PositionPct    string  `csv:"position_size_percent"`
	FundAccountID  string  `csv:"fund_account_id"`
	Mistakes       string  `csv:"mistakes"`
	Lessons        string  `csv:"lessons"`
	Checklist      string  `csv:"checklist"`
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func newTradeRow(t *models.Trade) (tradeRow, error) {
	checklist, err := json.Marshal(t.Checklist)
	if err != nil {
		return tradeRow{}, err
	}
	return tradeRow{
		ID:             t.ID,
		EntryTime:      t.EntryTime.Format(time.RFC3339),
		ExitTime:       t.ExitTime.Format(time.RFC3339),
		Symbol:         t.Symbol,
		Direction:      string(t.Direction),
		Strategy:       t.Strategy,
		EntryPrice:     t.EntryPrice,
		ExitPrice:      t.ExitPrice,
		PositionSize:   t.PositionSize,
		StopLoss:       optFloat(t.StopLoss),
		TakeProfit:     optFloat(t.TakeProfit),
		PnL:            t.PnL,
		RealizedRR:     t.RealizedRR,
		ExpectedRR:     t.ExpectedRR,
		Duration:       t.DurationMinutes,
		ExitReason:     string(t.ExitReason),
		EmotionalState: string(t.EmotionalState),
		Adherent:       t.IsAdherent,
		TradeNumber:    optInt(t.TradeNumber),
		WinStreak:      t.WinStreak,
		LossStreak:     t.LossStreak,
		Confidence:     optInt(t.ConfidenceLevel),
		SetupQuality:   optInt(t.SetupQuality),
		RiskPercent:    optFloat(t.RiskPercent),
		PositionPct:    optFloat(t.PositionSizePercent),
		FundAccountID:  t.FundAccountID,
		Mistakes:       t.Mistakes,
		Lessons:        t.Lessons,
		Checklist:      string(checklist),
	}, nil
}

// ExportTrades writes the trades matching filter to w as CSV, oldest first,
// and returns how many rows were written.
func (s *Service) ExportTrades(ctx context.Context, filter store.TradeFilter, w io.Writer) (int, error) {
	trades, err := s.Trades(ctx, filter)
	if err != nil {
		return 0, err
	}

	rows := make([]tradeRow, 0, len(trades))
	for i := range trades {
		row, err := newTradeRow(&trades[i])
		if err != nil {
			return 0, fmt.Errorf("failed to encode trade %s: %w", trades[i].ID, err)
		}
		rows = append(rows, row)
	}

	if err := gocsv.Marshal(&rows, w); err != nil {
		return 0, fmt.Errorf("failed to write csv: %w", err)
	}

	s.logger.Info().Int("trades", len(rows)).Msg("Trades exported")
	return len(rows), nil
}
