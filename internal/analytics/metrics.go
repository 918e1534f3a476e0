// Package analytics computes journal performance statistics.
//
// Every function in this package is a pure reduction over trade records that
// were already loaded from storage. Inputs are never mutated, arrive in any
// order, and produce identical output when passed again.
package analytics

import (
	"math"

	"github.com/shopspring/decimal"

	"trading-journal/internal/models"
)

// TradeMetrics holds top-line performance numbers for a set of trades.
type TradeMetrics struct {
	TotalTrades   int     `json:"total_trades"`
	OverallPnL    float64 `json:"overall_pnl"`
	WinRate       float64 `json:"win_rate"`
	LossRate      float64 `json:"loss_rate"`
	BreakevenRate float64 `json:"breakeven_rate"`
	AverageRR     float64 `json:"average_rr"`
	Expectancy    float64 `json:"expectancy"`
	AdherenceRate float64 `json:"adherence_rate"`

	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	Breakevens   int     `json:"breakevens"`
	GrossProfit  float64 `json:"gross_profit"`
	GrossLoss    float64 `json:"gross_loss"`
	ProfitFactor float64 `json:"profit_factor"`
	AverageWin   float64 `json:"average_win"`
	AverageLoss  float64 `json:"average_loss"`
	LargestWin   float64 `json:"largest_win"`
	LargestLoss  float64 `json:"largest_loss"`
}

// ComputeMetrics aggregates P&L, win rate, R multiples, expectancy and
// checklist adherence. An empty input yields the zero value.
func ComputeMetrics(trades []models.Trade) TradeMetrics {
	var m TradeMetrics
	if len(trades) == 0 {
		return m
	}

	var (
		allRR, winRR, lossRR []float64
		adherent             int
	)
	for i := range trades {
		t := &trades[i]
		pnl := finite(t.PnL)
		rr := finite(t.RealizedRR)

		m.OverallPnL += pnl
		allRR = append(allRR, rr)
		if t.IsAdherent {
			adherent++
		}

		switch {
		case pnl > 0:
			m.Wins++
			m.GrossProfit += pnl
			winRR = append(winRR, rr)
			if pnl > m.LargestWin {
				m.LargestWin = pnl
			}
		case pnl < 0:
			m.Losses++
			m.GrossLoss += -pnl
			lossRR = append(lossRR, math.Abs(rr))
			if -pnl > m.LargestLoss {
				m.LargestLoss = -pnl
			}
		default:
			m.Breakevens++
		}
	}

	m.TotalTrades = len(trades)
	winRate := percent(m.Wins, m.TotalTrades)
	lossRate := percent(m.Losses, m.TotalTrades)

	m.WinRate = Round2(winRate)
	m.LossRate = Round2(lossRate)
	m.BreakevenRate = decimal.NewFromInt(100).
		Sub(decimal.NewFromFloat(m.WinRate)).
		Sub(decimal.NewFromFloat(m.LossRate)).
		InexactFloat64()
	m.AverageRR = Round2(mean(allRR))
	m.Expectancy = Round2(winRate/100*mean(winRR) - lossRate/100*mean(lossRR))
	m.AdherenceRate = Round2(percent(adherent, m.TotalTrades))

	if m.Wins > 0 {
		m.AverageWin = Round2(m.GrossProfit / float64(m.Wins))
	}
	if m.Losses > 0 {
		m.AverageLoss = Round2(m.GrossLoss / float64(m.Losses))
	}
	if m.GrossLoss > 0 {
		m.ProfitFactor = Round2(m.GrossProfit / m.GrossLoss)
	}

	return m
}
