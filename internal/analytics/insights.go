package analytics

import (
	"sort"
	"strings"

	"trading-journal/internal/models"
)

// maxMistakes caps the mistakes reported by ComputeLossInsights.
const maxMistakes = 5

// MistakeCount is a mistake token and how many losing trades mention it.
type MistakeCount struct {
	Mistake string `json:"mistake"`
	Count   int    `json:"count"`
}

// LossInsights describes what losing trades have in common.
type LossInsights struct {
	LosingTrades               int            `json:"losing_trades"`
	MostCommonMistakes         []MistakeCount `json:"most_common_mistakes"`
	ConfidenceWithMostLosses   *int           `json:"confidence_with_most_losses"`
	SetupQualityWithMostLosses *int           `json:"setup_quality_with_most_losses"`
	TradeNumberWithMostLosses  *int           `json:"trade_number_with_most_losses"`
}

// ComputeLossInsights mines losing trades for recurring mistakes and for the
// confidence level, setup quality and intraday trade number that lose most.
func ComputeLossInsights(trades []models.Trade) LossInsights {
	insights := LossInsights{MostCommonMistakes: []MistakeCount{}}

	var losers []models.Trade
	for _, t := range trades {
		if t.PnL < 0 {
			losers = append(losers, t)
		}
	}
	if len(losers) == 0 {
		return insights
	}
	insights.LosingTrades = len(losers)

	counts := make(map[string]int)
	var order []string
	for _, t := range losers {
		for _, token := range SplitMistakes(t.Mistakes) {
			if _, seen := counts[token]; !seen {
				order = append(order, token)
			}
			counts[token]++
		}
	}
	mistakes := make([]MistakeCount, 0, len(order))
	for _, token := range order {
		mistakes = append(mistakes, MistakeCount{Mistake: token, Count: counts[token]})
	}
	sort.SliceStable(mistakes, func(i, j int) bool {
		return mistakes[i].Count > mistakes[j].Count
	})
	if len(mistakes) > maxMistakes {
		mistakes = mistakes[:maxMistakes]
	}
	insights.MostCommonMistakes = mistakes

	insights.ConfidenceWithMostLosses = modeOf(losers, func(t *models.Trade) *int { return t.ConfidenceLevel })
	insights.SetupQualityWithMostLosses = modeOf(losers, func(t *models.Trade) *int { return t.SetupQuality })
	insights.TradeNumberWithMostLosses = modeOf(losers, func(t *models.Trade) *int { return t.TradeNumber })
	return insights
}

// SplitMistakes splits free text on commas, semicolons, pipes and newlines,
// returning the trimmed non-empty tokens.
func SplitMistakes(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == '\n'
	})
	out := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// modeOf returns the most frequent value of field, preferring the value seen
// first among equal counts. It returns nil when no trade carries the field.
func modeOf(trades []models.Trade, field func(*models.Trade) *int) *int {
	counts := make(map[int]int)
	var order []int
	for i := range trades {
		v := field(&trades[i])
		if v == nil {
			continue
		}
		if _, seen := counts[*v]; !seen {
			order = append(order, *v)
		}
		counts[*v]++
	}
	if len(order) == 0 {
		return nil
	}

	best := order[0]
	for _, v := range order[1:] {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return &best
}
