package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "trading-journal/internal/errors"
	"trading-journal/internal/models"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var day = time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

func sampleTrade(id, owner, account string, entry time.Time, pnl float64) models.Trade {
	tr := models.Trade{
		ID:            id,
		OwnerID:       owner,
		Symbol:        "ES",
		Direction:     models.DirectionLong,
		EntryTime:     entry,
		ExitTime:      entry.Add(20 * time.Minute),
		EntryPrice:    100,
		ExitPrice:     100 + pnl,
		PositionSize:  1,
		Strategy:      "ORB",
		FundAccountID: account,
		Checklist:     models.NewChecklist(),
		CreatedAt:     entry,
		UpdatedAt:     entry,
	}
	tr.Derive()
	return tr
}

// exerciseStore runs the shared DataStore contract against any backend.
func exerciseStore(t *testing.T, s DataStore) {
	ctx := context.Background()

	trades := []models.Trade{
		sampleTrade("T3", "alice", "A1", day.Add(2*time.Hour), -5),
		sampleTrade("T1", "alice", "A1", day, 10),
		sampleTrade("T2", "alice", "", day.Add(time.Hour), 0),
		sampleTrade("T4", "bob", "A1", day.Add(30*time.Minute), 7),
	}
	trades[0].IsAdherent = true
	trades[2].Symbol = "NQ"
	trades[2].Direction = models.DirectionShort
	for i := range trades {
		require.NoError(t, s.SaveTrade(ctx, &trades[i]))
	}

	t.Run("get", func(t *testing.T) {
		got, err := s.GetTrade(ctx, "T3")
		require.NoError(t, err)
		assert.Equal(t, -5.0, got.PnL)
		assert.True(t, got.IsAdherent)

		_, err = s.GetTrade(ctx, "missing")
		assert.ErrorIs(t, err, apperrors.ErrTradeNotFound)
	})

	t.Run("filters", func(t *testing.T) {
		all, err := s.GetTrades(ctx, TradeFilter{OwnerID: "alice"})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"T1", "T2", "T3"}, ids(all))

		newest, err := s.GetTrades(ctx, TradeFilter{OwnerID: "alice", Newest: true, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"T3", "T2"}, ids(newest))

		adherent := true
		got, err := s.GetTrades(ctx, TradeFilter{OwnerID: "alice", Adherent: &adherent})
		require.NoError(t, err)
		assert.Equal(t, []string{"T3"}, ids(got))

		got, err = s.GetTrades(ctx, TradeFilter{OwnerID: "alice", Symbol: "nq"})
		require.NoError(t, err)
		assert.Equal(t, []string{"T2"}, ids(got))

		got, err = s.GetTrades(ctx, TradeFilter{OwnerID: "alice", Direction: models.DirectionLong, FundAccountID: "A1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"T1", "T3"}, ids(got))

		got, err = s.GetTrades(ctx, TradeFilter{OwnerID: "alice", From: day.Add(time.Hour), To: day.Add(2 * time.Hour)})
		require.NoError(t, err)
		assert.Equal(t, []string{"T2"}, ids(got), "From inclusive, To exclusive")

		none, err := s.GetTrades(ctx, TradeFilter{OwnerID: "carol"})
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("previous trade is scoped", func(t *testing.T) {
		prev, err := s.PreviousTrade(ctx, Scope{OwnerID: "alice", FundAccountID: "A1"}, day.Add(3*time.Hour), "ZZ")
		require.NoError(t, err)
		require.NotNil(t, prev)
		assert.Equal(t, "T3", prev.ID)

		prev, err = s.PreviousTrade(ctx, Scope{OwnerID: "alice", FundAccountID: "A1"}, day.Add(2*time.Hour), "T3")
		require.NoError(t, err)
		require.NotNil(t, prev)
		assert.Equal(t, "T1", prev.ID, "bob's trade and the unassigned trade are out of scope")

		prev, err = s.PreviousTrade(ctx, Scope{OwnerID: "alice"}, day, "T0")
		require.NoError(t, err)
		assert.Nil(t, prev)

		// T1 moved later than its stored entry time is not its own predecessor.
		prev, err = s.PreviousTrade(ctx, Scope{OwnerID: "alice", FundAccountID: "A1"}, day.Add(90*time.Minute), "T1")
		require.NoError(t, err)
		assert.Nil(t, prev)
	})

	t.Run("replace and delete", func(t *testing.T) {
		tr := trades[1]
		tr.ExitPrice = 90
		tr.Derive()
		require.NoError(t, s.SaveTrade(ctx, &tr))

		got, err := s.GetTrade(ctx, "T1")
		require.NoError(t, err)
		assert.Equal(t, -10.0, got.PnL)

		require.NoError(t, s.DeleteTrade(ctx, "T1"))
		assert.ErrorIs(t, s.DeleteTrade(ctx, "T1"), apperrors.ErrTradeNotFound)
	})

	t.Run("strategies", func(t *testing.T) {
		st := &models.Strategy{
			ID:      "S1",
			OwnerID: "alice",
			Name:    "Breakout",
			Items: []models.ChecklistItem{
				{ID: "retest", Label: "Retest held", Type: models.ItemCheckbox},
				{ID: "level", Label: "Level", Type: models.ItemText, Required: boolPtr(true)},
			},
			ConfirmationsPlaceholder: "What confirmed it?",
			CreatedAt:                day,
			UpdatedAt:                day,
		}
		require.NoError(t, s.SaveStrategy(ctx, st))
		require.NoError(t, s.SaveStrategy(ctx, &models.Strategy{ID: "S2", OwnerID: "alice", Name: "Asia range", CreatedAt: day, UpdatedAt: day}))

		got, err := s.GetStrategy(ctx, "S1")
		require.NoError(t, err)
		assert.Equal(t, st.Items, got.Items)
		assert.Equal(t, "What confirmed it?", got.ConfirmationsPlaceholder)
		assert.True(t, got.CreatedAt.Equal(day))

		byName, err := s.GetStrategyByName(ctx, "alice", "Breakout")
		require.NoError(t, err)
		assert.Equal(t, "S1", byName.ID)

		_, err = s.GetStrategyByName(ctx, "bob", "Breakout")
		assert.ErrorIs(t, err, apperrors.ErrStrategyNotFound)

		list, err := s.ListStrategies(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Asia range", list[0].Name)

		require.NoError(t, s.DeleteStrategy(ctx, "S2"))
		_, err = s.GetStrategy(ctx, "S2")
		assert.ErrorIs(t, err, apperrors.ErrStrategyNotFound)
	})

	t.Run("fund accounts", func(t *testing.T) {
		require.NoError(t, s.SaveFundAccount(ctx, &models.FundAccount{ID: "A2", OwnerID: "alice", Name: "Swing", InitialBalance: 500, Balance: 500, CreatedAt: day, UpdatedAt: day}))
		require.NoError(t, s.SaveFundAccount(ctx, &models.FundAccount{ID: "A1", OwnerID: "alice", Name: "Main", InitialBalance: 1000, Balance: 1010, CreatedAt: day, UpdatedAt: day}))

		got, err := s.GetFundAccount(ctx, "A1")
		require.NoError(t, err)
		assert.Equal(t, 1010.0, got.Balance)

		list, err := s.ListFundAccounts(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"A1", "A2"}, []string{list[0].ID, list[1].ID})

		require.NoError(t, s.DeleteFundAccount(ctx, "A2"))
		assert.ErrorIs(t, s.DeleteFundAccount(ctx, "A2"), apperrors.ErrFundAccountNotFound)
		_, err = s.GetFundAccount(ctx, "A2")
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("settle", func(t *testing.T) {
		tr := sampleTrade("T9", "alice", "A1", day.Add(4*time.Hour), 15)
		updated, err := s.Settle(ctx, Settlement{Trade: &tr, Deltas: map[string]float64{"A1": 15, "A2": 3, "A3": 0}, At: day})
		require.NoError(t, err)
		require.Len(t, updated, 1, "missing accounts are skipped")
		assert.Equal(t, "A1", updated[0].ID)
		assert.Equal(t, 1025.0, updated[0].Balance)

		got, err := s.GetTrade(ctx, "T9")
		require.NoError(t, err)
		assert.Equal(t, 15.0, got.PnL)

		ghost := sampleTrade("T8", "alice", "A1", day, 1)
		_, err = s.Settle(ctx, Settlement{Trade: &ghost, Remove: true, Deltas: map[string]float64{"A1": -1}, At: day})
		assert.ErrorIs(t, err, apperrors.ErrTradeNotFound)
		account, err := s.GetFundAccount(ctx, "A1")
		require.NoError(t, err)
		assert.Equal(t, 1025.0, account.Balance, "a failed settlement leaves balances alone")

		_, err = s.Settle(ctx, Settlement{Trade: &tr, Remove: true, Deltas: map[string]float64{"A1": -15}, At: day})
		require.NoError(t, err)
		_, err = s.GetTrade(ctx, "T9")
		assert.ErrorIs(t, err, apperrors.ErrTradeNotFound)
		account, err = s.GetFundAccount(ctx, "A1")
		require.NoError(t, err)
		assert.Equal(t, 1010.0, account.Balance)
	})
}

func ids(trades []models.Trade) []string {
	out := make([]string, len(trades))
	for i := range trades {
		out[i] = trades[i].ID
	}
	return out
}

func boolPtr(v bool) *bool { return &v }

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, newTestSQLite(t))
}

func TestSQLiteStoreChecklistOrder(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	tr := sampleTrade("T1", "alice", "", day, 1)
	tr.Checklist.Set("zeta", models.Checked(true))
	tr.Checklist.Set("alpha", models.Text("note"))
	tr.Checklist.Set(models.KeyConfirmations, models.Text("ok"))
	require.NoError(t, s.SaveTrade(ctx, &tr))

	got, err := s.GetTrade(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", models.KeyConfirmations}, got.Checklist.Keys())
}

func TestTradeFilterMatch(t *testing.T) {
	tr := sampleTrade("T1", "alice", "A1", day, 3)
	no := false

	assert.True(t, TradeFilter{}.Match(&tr))
	assert.True(t, TradeFilter{OwnerID: "alice", Strategy: "ORB", Symbol: "es"}.Match(&tr))
	assert.False(t, TradeFilter{Strategy: "Other"}.Match(&tr))
	assert.True(t, TradeFilter{Adherent: &no}.Match(&tr))
	assert.False(t, TradeFilter{To: day}.Match(&tr))
	assert.True(t, TradeFilter{From: day}.Match(&tr))
	assert.False(t, TradeFilter{Direction: models.DirectionShort}.Match(&tr))
}
