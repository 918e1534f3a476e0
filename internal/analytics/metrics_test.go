package analytics

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-journal/internal/models"
)

var baseTime = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

// closed builds a trade that closed with pnl, entered offset minutes after baseTime.
func closed(id string, pnl, rr float64, offset int) models.Trade {
	return models.Trade{
		ID:         id,
		Symbol:     "EURUSD",
		EntryTime:  baseTime.Add(time.Duration(offset) * time.Minute),
		ExitTime:   baseTime.Add(time.Duration(offset+15) * time.Minute),
		PnL:        pnl,
		RealizedRR: rr,
	}
}

func TestComputeMetricsEmpty(t *testing.T) {
	assert.Equal(t, TradeMetrics{}, ComputeMetrics(nil))
	assert.Equal(t, TradeMetrics{}, ComputeMetrics([]models.Trade{}))
}

func TestComputeMetrics(t *testing.T) {
	trades := []models.Trade{
		closed("a", 200, 2, 0),
		closed("b", -100, -1, 10),
		closed("c", 100, 1, 20),
		closed("d", 0, 0, 30),
	}
	trades[0].IsAdherent = true
	trades[1].IsAdherent = true
	trades[2].IsAdherent = true

	m := ComputeMetrics(trades)

	assert.Equal(t, 4, m.TotalTrades)
	assert.InDelta(t, 200, m.OverallPnL, 1e-9)
	assert.Equal(t, 50.0, m.WinRate)
	assert.Equal(t, 25.0, m.LossRate)
	assert.Equal(t, 25.0, m.BreakevenRate)
	assert.Equal(t, 0.5, m.AverageRR)
	assert.Equal(t, 0.5, m.Expectancy)
	assert.Equal(t, 75.0, m.AdherenceRate)

	assert.Equal(t, 2, m.Wins)
	assert.Equal(t, 1, m.Losses)
	assert.Equal(t, 1, m.Breakevens)
	assert.InDelta(t, 300, m.GrossProfit, 1e-9)
	assert.InDelta(t, 100, m.GrossLoss, 1e-9)
	assert.Equal(t, 3.0, m.ProfitFactor)
	assert.Equal(t, 150.0, m.AverageWin)
	assert.Equal(t, 100.0, m.AverageLoss)
	assert.Equal(t, 200.0, m.LargestWin)
	assert.Equal(t, 100.0, m.LargestLoss)
}

func TestComputeMetricsRoundsRates(t *testing.T) {
	trades := []models.Trade{
		closed("a", 50, 0.5, 0),
		closed("b", -20, -0.2, 1),
		closed("c", -30, -0.3, 2),
	}

	m := ComputeMetrics(trades)

	assert.Equal(t, 33.33, m.WinRate)
	assert.Equal(t, 66.67, m.LossRate)
	assert.Equal(t, 0.0, m.BreakevenRate)
	assert.Equal(t, 0.0, m.AverageRR)

	// 1/3*0.5 - 2/3*0.25
	assert.Equal(t, 0.0, m.Expectancy)
	assert.Equal(t, 1.0, m.ProfitFactor)

	reparsed, err := strconv.ParseFloat(strconv.FormatFloat(m.WinRate, 'f', 2, 64), 64)
	require.NoError(t, err)
	assert.Equal(t, m.WinRate, reparsed)
}

func TestComputeMetricsOnlyLosses(t *testing.T) {
	trades := []models.Trade{
		closed("a", -10, -1, 0),
		closed("b", -30, -3, 1),
	}

	m := ComputeMetrics(trades)

	assert.Equal(t, 0.0, m.WinRate)
	assert.Equal(t, 100.0, m.LossRate)
	assert.Equal(t, -2.0, m.AverageRR)
	assert.Equal(t, -2.0, m.Expectancy)
	assert.Equal(t, 0.0, m.ProfitFactor)
	assert.Equal(t, 0.0, m.AverageWin)
}

func TestComputeMetricsIgnoresNonFinite(t *testing.T) {
	trades := []models.Trade{
		closed("a", math.NaN(), math.Inf(1), 0),
		closed("b", 10, 1, 1),
	}

	m := ComputeMetrics(trades)

	assert.False(t, math.IsNaN(m.OverallPnL))
	assert.False(t, math.IsInf(m.AverageRR, 0))
	assert.Equal(t, 1, m.Breakevens)
	assert.Equal(t, 0.5, m.AverageRR)
}

func TestRound2(t *testing.T) {
	cases := map[float64]float64{
		33.333333: 33.33,
		66.666666: 66.67,
		-1.005:    -1.01,
		2.5:       2.5,
		0:         0,
	}
	for in, want := range cases {
		assert.Equal(t, want, Round2(in), "Round2(%v)", in)
	}
	assert.Equal(t, 0.0, Round2(math.NaN()))
	assert.Equal(t, 0.0, Round2(math.Inf(-1)))
}
