package journal

import (
	"context"
	"fmt"

	"trading-journal/internal/logging"
	"trading-journal/internal/models"
	"trading-journal/internal/store"
)

// applySequence sets the trade number and running streaks of t from its
// predecessor in the same owner and fund-account sequence. The trade number
// restarts at 1 whenever the entry date changes. Breakeven trades carry both
// streaks forward unchanged.
func applySequence(t *models.Trade, prev *models.Trade) {
	number := 1
	prevWin, prevLoss := 0, 0

	if prev != nil {
		prevWin, prevLoss = prev.WinStreak, prev.LossStreak
		if sameDay(prev, t) && prev.TradeNumber != nil {
			number = *prev.TradeNumber + 1
		}
	}

	t.TradeNumber = models.Int(number)
	switch {
	case t.PnL > 0:
		t.WinStreak, t.LossStreak = prevWin+1, 0
	case t.PnL < 0:
		t.WinStreak, t.LossStreak = 0, prevLoss+1
	default:
		t.WinStreak, t.LossStreak = prevWin, prevLoss
	}
}

// sameDay compares calendar dates in the location of t's entry.
func sameDay(prev, t *models.Trade) bool {
	y1, m1, d1 := prev.EntryTime.In(t.EntryTime.Location()).Date()
	y2, m2, d2 := t.EntryDate()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func sequenceEqual(a, b *models.Trade) bool {
	if a.WinStreak != b.WinStreak || a.LossStreak != b.LossStreak {
		return false
	}
	if a.TradeNumber == nil || b.TradeNumber == nil {
		return a.TradeNumber == b.TradeNumber
	}
	return *a.TradeNumber == *b.TradeNumber
}

// Resequence recomputes trade numbers and streaks for every trade of an
// owner, walking each fund-account sequence in entry order. It returns the
// number of trades whose sequence fields changed.
func (s *Service) Resequence(ctx context.Context, ownerID string) (int, error) {
	trades, err := s.Trades(ctx, store.TradeFilter{OwnerID: ownerID})
	if err != nil {
		return 0, err
	}

	logger := logging.WithOperation(logging.WithOwner(s.logger, ownerID), "resequence")

	last := make(map[string]*models.Trade)
	changed := 0
	for i := range trades {
		t := &trades[i]
		before := *t

		applySequence(t, last[t.FundAccountID])
		last[t.FundAccountID] = t

		if sequenceEqual(&before, t) {
			continue
		}
		t.UpdatedAt = s.now()
		if err := s.store.SaveTrade(ctx, t); err != nil {
			return changed, fmt.Errorf("failed to save trade %s: %w", t.ID, err)
		}
		changed++
	}

	logger.Info().Int("trades", len(trades)).Int("changed", changed).Msg("Resequenced trades")
	return changed, nil
}
