package analytics

import (
	"fmt"
	"sort"
	"time"

	"trading-journal/internal/models"
)

// Group is the metrics of the trades sharing one key.
type Group struct {
	Key     string       `json:"key"`
	Metrics TradeMetrics `json:"metrics"`
}

// Breakdowns slices the metrics along the journal's classification fields.
type Breakdowns struct {
	ByStrategy   []Group `json:"by_strategy"`
	BySymbol     []Group `json:"by_symbol"`
	ByHour       []Group `json:"by_hour"`
	ByWeekday    []Group `json:"by_weekday"`
	ByEmotion    []Group `json:"by_emotion"`
	ByExitReason []Group `json:"by_exit_reason"`
}

const unassigned = "UNASSIGNED"

// ComputeBreakdowns groups trades by strategy, symbol, entry hour, weekday,
// emotional state and exit reason, and aggregates each group.
func ComputeBreakdowns(trades []models.Trade) Breakdowns {
	return Breakdowns{
		ByStrategy: groupBy(trades, func(t *models.Trade) (string, int) {
			return orUnassigned(t.Strategy), 0
		}),
		BySymbol: groupBy(trades, func(t *models.Trade) (string, int) {
			return orUnassigned(t.Symbol), 0
		}),
		ByHour: groupBy(trades, func(t *models.Trade) (string, int) {
			return fmt.Sprintf("%02d:00", t.EntryHour), t.EntryHour
		}),
		ByWeekday: groupBy(trades, func(t *models.Trade) (string, int) {
			return time.Weekday(t.DayOfWeek).String(), t.DayOfWeek
		}),
		ByEmotion: groupBy(trades, func(t *models.Trade) (string, int) {
			return orUnassigned(string(t.EmotionalState)), 0
		}),
		ByExitReason: groupBy(trades, func(t *models.Trade) (string, int) {
			return orUnassigned(string(t.ExitReason)), 0
		}),
	}
}

func orUnassigned(s string) string {
	if s == "" {
		return unassigned
	}
	return s
}

// groupBy partitions trades by key and orders groups by ordinal, then key.
func groupBy(trades []models.Trade, key func(*models.Trade) (string, int)) []Group {
	type bucket struct {
		ord    int
		trades []models.Trade
	}
	buckets := make(map[string]*bucket)
	for i := range trades {
		k, ord := key(&trades[i])
		b, ok := buckets[k]
		if !ok {
			b = &bucket{ord: ord}
			buckets[k] = b
		}
		b.trades = append(b.trades, trades[i])
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		bi, bj := buckets[keys[i]], buckets[keys[j]]
		if bi.ord != bj.ord {
			return bi.ord < bj.ord
		}
		return keys[i] < keys[j]
	})

	groups := make([]Group, 0, len(keys))
	for _, k := range keys {
		groups = append(groups, Group{Key: k, Metrics: ComputeMetrics(buckets[k].trades)})
	}
	return groups
}
