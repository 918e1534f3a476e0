package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-journal/internal/models"
)

func losing(id, mistakes string) models.Trade {
	t := closed(id, -10, -1, 0)
	t.Mistakes = mistakes
	return t
}

func TestComputeLossInsightsNoLosers(t *testing.T) {
	trades := []models.Trade{closed("a", 10, 1, 0), closed("b", 0, 0, 1)}
	trades[0].Mistakes = "FOMO"

	li := ComputeLossInsights(trades)

	assert.Equal(t, 0, li.LosingTrades)
	assert.Empty(t, li.MostCommonMistakes)
	assert.Nil(t, li.ConfidenceWithMostLosses)
	assert.Nil(t, li.SetupQualityWithMostLosses)
	assert.Nil(t, li.TradeNumberWithMostLosses)
}

func TestComputeLossInsightsMistakes(t *testing.T) {
	trades := []models.Trade{
		losing("a", "FOMO, Early Exit"),
		losing("b", "FOMO"),
	}

	li := ComputeLossInsights(trades)

	assert.Equal(t, []MistakeCount{
		{Mistake: "FOMO", Count: 2},
		{Mistake: "Early Exit", Count: 1},
	}, li.MostCommonMistakes)
}

func TestComputeLossInsightsIgnoresWinnersMistakes(t *testing.T) {
	winner := closed("w", 50, 1, 0)
	winner.Mistakes = "Early Exit; Early Exit"

	li := ComputeLossInsights([]models.Trade{winner, losing("l", "Revenge")})

	assert.Equal(t, []MistakeCount{{Mistake: "Revenge", Count: 1}}, li.MostCommonMistakes)
	assert.Equal(t, 1, li.LosingTrades)
}

func TestComputeLossInsightsTopFiveStableTies(t *testing.T) {
	trades := []models.Trade{
		losing("a", "b|a;c\nd,e,f"),
		losing("b", "f"),
		losing("c", "  fomo  ,,  ; FOMO"),
	}

	li := ComputeLossInsights(trades)

	require.Len(t, li.MostCommonMistakes, 5)
	assert.Equal(t, []MistakeCount{
		{Mistake: "f", Count: 2},
		{Mistake: "b", Count: 1},
		{Mistake: "a", Count: 1},
		{Mistake: "c", Count: 1},
		{Mistake: "d", Count: 1},
	}, li.MostCommonMistakes)
}

func TestComputeLossInsightsModes(t *testing.T) {
	mk := func(conf, setup, num *int) models.Trade {
		tr := closed("x", -5, -1, 0)
		tr.ConfidenceLevel = conf
		tr.SetupQuality = setup
		tr.TradeNumber = num
		return tr
	}
	trades := []models.Trade{
		mk(models.Int(5), nil, models.Int(1)),
		mk(models.Int(7), nil, models.Int(2)),
		mk(models.Int(7), nil, models.Int(2)),
		mk(models.Int(5), nil, models.Int(3)),
		mk(nil, nil, models.Int(3)),
		mk(nil, nil, models.Int(3)),
	}
	winner := closed("w", 20, 1, 0)
	winner.ConfidenceLevel = models.Int(9)
	winner.SetupQuality = models.Int(9)
	trades = append(trades, winner, winner, winner)

	li := ComputeLossInsights(trades)

	require.NotNil(t, li.ConfidenceWithMostLosses)
	assert.Equal(t, 5, *li.ConfidenceWithMostLosses, "ties keep the first value seen")
	assert.Nil(t, li.SetupQualityWithMostLosses)
	require.NotNil(t, li.TradeNumberWithMostLosses)
	assert.Equal(t, 3, *li.TradeNumberWithMostLosses)
}

func TestSplitMistakes(t *testing.T) {
	assert.Equal(t, []string{"FOMO", "Early Exit", "No stop", "Oversized"},
		SplitMistakes(" FOMO ;Early Exit|No stop\n\nOversized, "))
	assert.Empty(t, SplitMistakes(""))
	assert.Empty(t, SplitMistakes(" , ; | \n"))
}
