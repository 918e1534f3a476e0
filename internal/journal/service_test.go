package journal

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-journal/internal/analytics"
	apperrors "trading-journal/internal/errors"
	"trading-journal/internal/models"
	"trading-journal/internal/store"
)

const owner = "alice"

var monday = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	svc := NewService(s, zerolog.Nop())
	clock := monday
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	svc.batchSize = 2
	return svc
}

// newTrade returns a one-unit long trade that makes pnl.
func newTrade(entry time.Time, pnl float64) *models.Trade {
	return &models.Trade{
		OwnerID:      owner,
		Symbol:       "ES",
		Direction:    models.DirectionLong,
		EntryTime:    entry,
		ExitTime:     entry.Add(15 * time.Minute),
		EntryPrice:   100,
		ExitPrice:    100 + pnl,
		PositionSize: 1,
		StopLoss:     models.Float(95),
		Checklist:    models.NewChecklist(),
	}
}

func record(t *testing.T, svc *Service, tr *models.Trade) *models.Trade {
	t.Helper()
	require.NoError(t, svc.RecordTrade(context.Background(), tr))
	return tr
}

func TestRecordTradeDerivesAndSequences(t *testing.T) {
	svc := newTestService(t)

	first := record(t, svc, newTrade(monday, 10))
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, 10.0, first.PnL)
	assert.Equal(t, 2.0, first.RealizedRR)
	assert.Equal(t, 1, *first.TradeNumber)
	assert.Equal(t, 1, first.WinStreak)

	second := record(t, svc, newTrade(monday.Add(time.Hour), 0))
	assert.Equal(t, 2, *second.TradeNumber)
	assert.Equal(t, 1, second.WinStreak, "breakeven carries the win streak")
	assert.Equal(t, 0, second.LossStreak)

	third := record(t, svc, newTrade(monday.Add(2*time.Hour), -4))
	assert.Equal(t, 3, *third.TradeNumber)
	assert.Equal(t, 0, third.WinStreak)
	assert.Equal(t, 1, third.LossStreak)

	nextDay := record(t, svc, newTrade(monday.Add(24*time.Hour), -1))
	assert.Equal(t, 1, *nextDay.TradeNumber, "trade number resets on a new day")
	assert.Equal(t, 2, nextDay.LossStreak)

	stored, err := svc.GetTrade(context.Background(), owner, nextDay.ID)
	require.NoError(t, err)
	assert.Equal(t, nextDay.LossStreak, stored.LossStreak)
}

func TestSequencingIsScopedByOwnerAndAccount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateFundAccount(ctx, owner, "Main", 1000)
	require.NoError(t, err)

	record(t, svc, newTrade(monday, 5))

	other := newTrade(monday.Add(time.Minute), 5)
	other.OwnerID = "bob"
	other = record(t, svc, other)
	assert.Equal(t, 1, *other.TradeNumber, "another owner's trades are not predecessors")
	assert.Equal(t, 1, other.WinStreak)

	funded := newTrade(monday.Add(2*time.Minute), 5)
	funded.FundAccountID = account.ID
	funded = record(t, svc, funded)
	assert.Equal(t, 1, *funded.TradeNumber, "unassigned trades are a separate sequence")

	backdated := record(t, svc, newTrade(monday.Add(-time.Hour), -3))
	assert.Equal(t, 1, *backdated.TradeNumber)
	assert.Equal(t, 1, backdated.LossStreak, "predecessor is by entry time, not insertion order")
}

func TestRecordTradeAdherence(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveStrategy(ctx, &models.Strategy{
		OwnerID: owner,
		Name:    "Breakout",
		Items:   []models.ChecklistItem{{ID: "retest", Label: "Retest held", Type: models.ItemCheckbox}},
	}))

	tr := newTrade(monday, 3)
	tr.Strategy = "Breakout"
	tr.Checklist.Set("retest", models.Checked(true))
	tr.Checklist.Set(models.KeyConfirmations, models.Text("volume"))
	record(t, svc, tr)
	assert.True(t, tr.IsAdherent)
	assert.NotEmpty(t, tr.StrategyID)

	legacy := newTrade(monday.Add(time.Hour), 3)
	legacy.Strategy = "Unknown"
	legacy.Checklist.Set("retest", models.Checked(true))
	legacy.Checklist.Set(models.KeyConfirmations, models.Text("volume"))
	record(t, svc, legacy)
	assert.False(t, legacy.IsAdherent, "unknown strategy falls back to the fixed checklist")
	assert.Empty(t, legacy.StrategyID)
}

func TestRecordTradeValidation(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		name   string
		mutate func(*models.Trade)
		field  string
	}{
		{"empty symbol", func(tr *models.Trade) { tr.Symbol = " " }, "symbol"},
		{"negative size", func(tr *models.Trade) { tr.PositionSize = -1 }, "position_size"},
		{"confidence range", func(tr *models.Trade) { tr.ConfidenceLevel = models.Int(11) }, "confidence_level"},
		{"setup range", func(tr *models.Trade) { tr.SetupQuality = models.Int(0) }, "setup_quality"},
		{"direction", func(tr *models.Trade) { tr.Direction = "UP" }, "direction"},
		{"exit reason", func(tr *models.Trade) { tr.ExitReason = "PANIC" }, "exit_reason"},
		{"missing owner", func(tr *models.Trade) { tr.OwnerID = "" }, "owner_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTrade(monday, 1)
			tt.mutate(tr)

			err := svc.RecordTrade(context.Background(), tr)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInputValidation)

			var ve *apperrors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestRecordTradeUnknownAccount(t *testing.T) {
	svc := newTestService(t)

	tr := newTrade(monday, 1)
	tr.FundAccountID = "missing"
	assert.ErrorIs(t, svc.RecordTrade(context.Background(), tr), apperrors.ErrFundAccountNotFound)
}

func TestBalanceBookkeeping(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	main, err := svc.CreateFundAccount(ctx, owner, "Main", 1000)
	require.NoError(t, err)
	swing, err := svc.CreateFundAccount(ctx, owner, "Swing", 500)
	require.NoError(t, err)

	balance := func(id string) float64 {
		a, err := svc.GetFundAccount(ctx, owner, id)
		require.NoError(t, err)
		return a.Balance
	}

	tr := newTrade(monday, 50)
	tr.FundAccountID = main.ID
	record(t, svc, tr)
	assert.Equal(t, 1050.0, balance(main.ID))
	assert.Equal(t, main.ID, tr.BalanceAccountID)

	// Saving the same trade again applies only the difference.
	tr.ExitPrice = 120
	require.NoError(t, svc.UpdateTrade(ctx, tr))
	assert.Equal(t, 1020.0, balance(main.ID))
	require.NoError(t, svc.UpdateTrade(ctx, tr))
	assert.Equal(t, 1020.0, balance(main.ID))

	// Moving it to another account moves its P&L.
	tr.FundAccountID = swing.ID
	require.NoError(t, svc.UpdateTrade(ctx, tr))
	assert.Equal(t, 1000.0, balance(main.ID))
	assert.Equal(t, 520.0, balance(swing.ID))

	require.NoError(t, svc.DeleteTrade(ctx, owner, tr.ID))
	assert.Equal(t, 500.0, balance(swing.ID))

	_, err = svc.GetTrade(ctx, owner, tr.ID)
	assert.ErrorIs(t, err, apperrors.ErrTradeNotFound)
}

func TestUpdateTradePreservesIdentity(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tr := record(t, svc, newTrade(monday, 5))
	created := tr.CreatedAt

	replacement := newTrade(monday, -2)
	replacement.ID = tr.ID
	replacement.OwnerID = ""
	replacement.Lessons = "Wait for the retest"
	require.NoError(t, svc.UpdateTrade(ctx, replacement))

	got, err := svc.GetTrade(ctx, owner, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, owner, got.OwnerID)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.True(t, got.UpdatedAt.After(created))
	assert.Equal(t, -2.0, got.PnL)
	assert.Equal(t, 1, got.LossStreak)
	assert.Equal(t, "Wait for the retest", got.Lessons)

	replacement.OwnerID = "mallory"
	assert.ErrorIs(t, svc.UpdateTrade(ctx, replacement), apperrors.ErrOwnerMismatch)
}

func TestUpdateTradeMovesEntryTimeLater(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	lone := record(t, svc, newTrade(monday, 10))
	lone.EntryTime = monday.Add(3 * time.Hour)
	lone.ExitTime = lone.EntryTime.Add(15 * time.Minute)
	require.NoError(t, svc.UpdateTrade(ctx, lone))
	assert.Equal(t, 1, *lone.TradeNumber, "a trade never follows itself")
	assert.Equal(t, 1, lone.WinStreak)

	got, err := svc.GetTrade(ctx, owner, lone.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, *got.TradeNumber)
	assert.Equal(t, 1, got.WinStreak)

	// Moving the first of two trades past the second renumbers both.
	other := record(t, svc, newTrade(monday.Add(time.Hour), 5))
	assert.Equal(t, 1, *other.TradeNumber)
	_, err = svc.Resequence(ctx, owner)
	require.NoError(t, err)

	first, err := svc.GetTrade(ctx, owner, lone.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, *first.TradeNumber)
	assert.Equal(t, 2, first.WinStreak)

	second, err := svc.GetTrade(ctx, owner, other.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, *second.TradeNumber)
	assert.Equal(t, 1, second.WinStreak)
}

func TestUpdateTradeChangesFundAccount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	main, err := svc.CreateFundAccount(ctx, owner, "Main", 1000)
	require.NoError(t, err)
	swing, err := svc.CreateFundAccount(ctx, owner, "Swing", 500)
	require.NoError(t, err)

	onAccount := func(accountID string, entry time.Time, pnl float64) *models.Trade {
		tr := newTrade(entry, pnl)
		tr.FundAccountID = accountID
		return record(t, svc, tr)
	}
	onAccount(main.ID, monday, 10)
	onAccount(swing.ID, monday.Add(30*time.Minute), -3)
	moved := onAccount(main.ID, monday.Add(time.Hour), 5)
	assert.Equal(t, 2, *moved.TradeNumber)
	assert.Equal(t, 2, moved.WinStreak)

	moved.FundAccountID = swing.ID
	require.NoError(t, svc.UpdateTrade(ctx, moved))
	assert.Equal(t, 2, *moved.TradeNumber, "follows the swing account's trade")
	assert.Equal(t, 1, moved.WinStreak)
	assert.Equal(t, 0, moved.LossStreak)
	assert.Equal(t, swing.ID, moved.BalanceAccountID)

	for id, want := range map[string]float64{main.ID: 1010, swing.ID: 502} {
		got, err := svc.GetFundAccount(ctx, owner, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Balance)

		rec, err := svc.ReconcileAccount(ctx, owner, id, false)
		require.NoError(t, err)
		assert.Zero(t, rec.Drift)
	}
}

func TestAssignTradesIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateFundAccount(ctx, owner, "Main", 1000)
	require.NoError(t, err)

	var ids []string
	for i, pnl := range []float64{10, -4, 6} {
		tr := record(t, svc, newTrade(monday.Add(time.Duration(i)*time.Hour), pnl))
		ids = append(ids, tr.ID)
	}

	result, err := svc.AssignTrades(ctx, owner, account.ID, append(ids, ids[0]))
	require.NoError(t, err)
	assert.Equal(t, AssignResult{Assigned: 3}, result)

	again, err := svc.AssignTrades(ctx, owner, account.ID, ids)
	require.NoError(t, err)
	assert.Equal(t, AssignResult{Skipped: 3}, again)

	got, err := svc.GetFundAccount(ctx, owner, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1012.0, got.Balance, "P&L folded in exactly once")

	trades, err := svc.Trades(ctx, store.TradeFilter{OwnerID: owner, FundAccountID: account.ID})
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{*trades[0].TradeNumber, *trades[1].TradeNumber, *trades[2].TradeNumber})

	_, err = svc.AssignTrades(ctx, owner, "missing", ids)
	assert.ErrorIs(t, err, apperrors.ErrFundAccountNotFound)
}

func TestAssignTradesChecksEveryIDFirst(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateFundAccount(ctx, owner, "Main", 1000)
	require.NoError(t, err)
	tr := record(t, svc, newTrade(monday, 50))

	result, err := svc.AssignTrades(ctx, owner, account.ID, []string{tr.ID, "missing"})
	assert.ErrorIs(t, err, apperrors.ErrTradeNotFound)
	assert.Equal(t, AssignResult{}, result)

	got, err := svc.GetFundAccount(ctx, owner, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, got.Balance)
	stored, err := svc.GetTrade(ctx, owner, tr.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.FundAccountID)
	assert.Empty(t, stored.BalanceAccountID)

	result, err = svc.AssignTrades(ctx, owner, account.ID, []string{tr.ID})
	require.NoError(t, err)
	assert.Equal(t, AssignResult{Assigned: 1}, result)

	got, err = svc.GetFundAccount(ctx, owner, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1050.0, got.Balance)
}

var errDiskFull = errors.New("disk full")

// flakyStore fails settlements of one trade.
type flakyStore struct {
	store.DataStore
	failID string
}

func (f *flakyStore) Settle(ctx context.Context, settlement store.Settlement) ([]models.FundAccount, error) {
	if settlement.Trade.ID == f.failID {
		return nil, errDiskFull
	}
	return f.DataStore.Settle(ctx, settlement)
}

func TestAssignTradesResumesAfterWriteFailure(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateFundAccount(ctx, owner, "Main", 1000)
	require.NoError(t, err)

	var ids []string
	for i, pnl := range []float64{10, -4, 6} {
		tr := record(t, svc, newTrade(monday.Add(time.Duration(i)*time.Hour), pnl))
		ids = append(ids, tr.ID)
	}

	flaky := &flakyStore{DataStore: svc.store, failID: ids[1]}
	svc.store = flaky

	result, err := svc.AssignTrades(ctx, owner, account.ID, ids)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, AssignResult{Assigned: 1}, result)

	got, err := svc.GetFundAccount(ctx, owner, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1010.0, got.Balance, "only the committed trade moved the balance")
	failed, err := svc.GetTrade(ctx, owner, ids[1])
	require.NoError(t, err)
	assert.Empty(t, failed.FundAccountID)
	assert.Empty(t, failed.BalanceAccountID)

	flaky.failID = ""
	result, err = svc.AssignTrades(ctx, owner, account.ID, ids)
	require.NoError(t, err)
	assert.Equal(t, AssignResult{Assigned: 2, Skipped: 1}, result)

	got, err = svc.GetFundAccount(ctx, owner, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1012.0, got.Balance)

	rec, err := svc.ReconcileAccount(ctx, owner, account.ID, false)
	require.NoError(t, err)
	assert.Zero(t, rec.Drift)

	trades, err := svc.Trades(ctx, store.TradeFilter{OwnerID: owner, FundAccountID: account.ID})
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{*trades[0].TradeNumber, *trades[1].TradeNumber, *trades[2].TradeNumber})
}

func TestDeleteTradeFailureKeepsBalance(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateFundAccount(ctx, owner, "Main", 1000)
	require.NoError(t, err)
	tr := newTrade(monday, 20)
	tr.FundAccountID = account.ID
	record(t, svc, tr)

	flaky := &flakyStore{DataStore: svc.store, failID: tr.ID}
	svc.store = flaky
	assert.ErrorIs(t, svc.DeleteTrade(ctx, owner, tr.ID), errDiskFull)

	got, err := svc.GetFundAccount(ctx, owner, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1020.0, got.Balance)
	_, err = svc.GetTrade(ctx, owner, tr.ID)
	require.NoError(t, err, "a failed delete keeps the trade")
}

func TestReconcileAccount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateFundAccount(ctx, owner, "Main", 1000)
	require.NoError(t, err)

	tr := newTrade(monday, 25)
	tr.FundAccountID = account.ID
	record(t, svc, tr)

	// Simulate drift from an out-of-band edit.
	drifted, err := svc.GetFundAccount(ctx, owner, account.ID)
	require.NoError(t, err)
	drifted.Balance = 900
	require.NoError(t, svc.store.SaveFundAccount(ctx, drifted))

	rec, err := svc.ReconcileAccount(ctx, owner, account.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 900.0, rec.Stored)
	assert.Equal(t, 1025.0, rec.Reconstructed)
	assert.Equal(t, 125.0, rec.Drift)
	assert.False(t, rec.Applied)

	unchanged, err := svc.GetFundAccount(ctx, owner, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 900.0, unchanged.Balance, "reporting never rewrites the balance")

	rec, err = svc.ReconcileAccount(ctx, owner, account.ID, true)
	require.NoError(t, err)
	assert.True(t, rec.Applied)

	fixed, err := svc.GetFundAccount(ctx, owner, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1025.0, fixed.Balance)
}

func TestResequence(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	late := record(t, svc, newTrade(monday.Add(2*time.Hour), 5))
	record(t, svc, newTrade(monday, -5))
	assert.Equal(t, 1, *late.TradeNumber)

	changed, err := svc.Resequence(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	got, err := svc.GetTrade(ctx, owner, late.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, *got.TradeNumber)
	assert.Equal(t, 1, got.WinStreak)
	assert.Equal(t, 0, got.LossStreak)

	changed, err = svc.Resequence(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)
}

func TestDashboard(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateFundAccount(ctx, owner, "Main", 1000)
	require.NoError(t, err)

	for i, pnl := range []float64{20, -10} {
		tr := newTrade(monday.Add(time.Duration(i)*time.Hour), pnl)
		tr.FundAccountID = account.ID
		tr.RiskPercent = models.Float(1)
		tr.PositionSizePercent = models.Float(10)
		tr.Mistakes = "Chased"
		record(t, svc, tr)
	}

	d, err := svc.Dashboard(ctx, store.TradeFilter{OwnerID: owner})
	require.NoError(t, err)
	assert.Equal(t, 2, d.Metrics.TotalTrades)
	assert.Equal(t, 10.0, d.Metrics.OverallPnL)
	assert.Equal(t, 1020.0, d.Risk.PeakAccount)
	assert.Equal(t, 10.0, d.Risk.MaxDrawdown)
	require.Len(t, d.Risk.Accounts, 1)
	assert.Equal(t, 1010.0, d.Risk.Accounts[0].StoredBalance)
	assert.Equal(t, []analytics.MistakeCount{{Mistake: "Chased", Count: 1}}, d.Insights.MostCommonMistakes)
}

func TestExportTrades(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tr := newTrade(monday, 7)
	tr.ConfidenceLevel = models.Int(8)
	tr.Mistakes = "Late, entry"
	tr.Checklist.Set(models.KeyConfirmations, models.Text("ok"))
	record(t, svc, tr)

	var buf bytes.Buffer
	n, err := svc.ExportTrades(ctx, store.TradeFilter{OwnerID: owner}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,entry_time,exit_time,symbol,direction"))
	assert.Contains(t, lines[1], tr.ID)
	assert.Contains(t, lines[1], `"Late, entry"`)
	assert.Contains(t, lines[1], ",8,")
}
