package journal

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trading-journal/internal/logging"
	"trading-journal/internal/models"
	"trading-journal/internal/performance"
	"trading-journal/internal/store"
)

// settle moves t's balance marker to its current account and P&L and
// returns the per-account balance changes that keep stored balances in step.
// A trade whose marker already matches yields no changes, so settling twice
// never double counts.
func settle(t *models.Trade) map[string]float64 {
	deltas := make(map[string]float64)

	want := t.PnL
	if t.FundAccountID == "" {
		want = 0
	}
	if t.BalanceAccountID == t.FundAccountID && t.BalanceAppliedPnL == want {
		return deltas
	}

	if t.BalanceAccountID != "" {
		deltas[t.BalanceAccountID] -= t.BalanceAppliedPnL
	}
	if t.FundAccountID != "" {
		deltas[t.FundAccountID] += t.PnL
	}

	t.BalanceAccountID = t.FundAccountID
	t.BalanceAppliedPnL = want
	return deltas
}

// commit settles t's balance marker and writes the trade, or removes it,
// in the same store transaction as the balance changes that implies.
func (s *Service) commit(ctx context.Context, logger zerolog.Logger, t *models.Trade, remove bool) error {
	deltas := settle(t)
	accounts, err := s.store.Settle(ctx, store.Settlement{
		Trade:  t,
		Remove: remove,
		Deltas: deltas,
		At:     s.now(),
	})
	if err != nil {
		return err
	}

	applied := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		applied[a.ID] = true
		logging.LogBalanceApplied(logger, a.ID, t.ID, deltas[a.ID], a.Balance)
	}
	for accountID, delta := range deltas {
		if delta != 0 && !applied[accountID] {
			logger.Warn().Str("account_id", accountID).Msg("Fund account missing, balance change skipped")
		}
	}
	return nil
}

// AssignResult summarises an AssignTrades call.
type AssignResult struct {
	Assigned int `json:"assigned"`
	Skipped  int `json:"skipped"`
}

// AssignTrades moves trades onto a fund account, folding their P&L into its
// balance and out of any previous account. Every ID is loaded before anything
// is written, and each trade is committed together with its balance change,
// so a failed call can simply be repeated. Trades already assigned and
// applied are skipped. Affected sequences are renumbered afterwards.
func (s *Service) AssignTrades(ctx context.Context, ownerID, accountID string, tradeIDs []string) (AssignResult, error) {
	var result AssignResult

	if _, err := s.GetFundAccount(ctx, ownerID, accountID); err != nil {
		return result, err
	}

	logger := logging.WithOperation(logging.WithOwner(s.logger, ownerID), "assign_trades").
		With().Str("account_id", accountID).Logger()

	seen := make(map[string]bool, len(tradeIDs))
	var pending []*models.Trade
	for _, tradeID := range tradeIDs {
		if seen[tradeID] {
			continue
		}
		seen[tradeID] = true

		t, err := s.GetTrade(ctx, ownerID, tradeID)
		if err != nil {
			return result, err
		}
		if t.FundAccountID == accountID && t.BalanceAccountID == accountID && t.BalanceAppliedPnL == t.PnL {
			result.Skipped++
			continue
		}
		pending = append(pending, t)
	}

	batch := performance.NewBatchProcessor(s.batchSize, func(ctx context.Context, trades []*models.Trade) error {
		for _, t := range trades {
			t.FundAccountID = accountID
			t.UpdatedAt = s.now()
			if err := s.commit(ctx, logger, t, false); err != nil {
				return fmt.Errorf("failed to assign trade %s: %w", t.ID, err)
			}
			result.Assigned++
		}
		logger.Debug().Int("trades", len(trades)).Msg("Assignment batch committed")
		return nil
	})

	var err error
	for _, t := range pending {
		if err = batch.Add(ctx, t); err != nil {
			break
		}
	}
	if err == nil {
		err = batch.Flush(ctx)
	}

	if result.Assigned > 0 {
		if _, rerr := s.Resequence(ctx, ownerID); rerr != nil && err == nil {
			err = rerr
		}
	}
	if err != nil {
		logger.Warn().Err(err).Int("assigned", result.Assigned).Msg("Trade assignment stopped")
		return result, err
	}

	logger.Info().Int("assigned", result.Assigned).Int("skipped", result.Skipped).Msg("Trades assigned")
	return result, nil
}

// Reconciliation compares a fund account's stored balance with the balance
// reconstructed from its initial balance and assigned trades.
type Reconciliation struct {
	AccountID     string  `json:"account_id"`
	Name          string  `json:"name"`
	Initial       float64 `json:"initial_balance"`
	Stored        float64 `json:"stored_balance"`
	Reconstructed float64 `json:"reconstructed_balance"`
	Drift         float64 `json:"drift"`
	Trades        int     `json:"trades"`
	Applied       bool    `json:"applied"`
}

// ReconcileAccount reports the drift between the stored and reconstructed
// balance. With apply set, the stored balance and every trade's balance
// marker are rewritten to match the reconstruction.
func (s *Service) ReconcileAccount(ctx context.Context, ownerID, accountID string, apply bool) (Reconciliation, error) {
	account, err := s.GetFundAccount(ctx, ownerID, accountID)
	if err != nil {
		return Reconciliation{}, err
	}

	trades, err := s.Trades(ctx, store.TradeFilter{OwnerID: account.OwnerID, FundAccountID: accountID})
	if err != nil {
		return Reconciliation{}, err
	}

	total := decimal.NewFromFloat(account.InitialBalance)
	for _, t := range trades {
		total = total.Add(decimal.NewFromFloat(t.PnL))
	}
	reconstructed := total.InexactFloat64()

	rec := Reconciliation{
		AccountID:     account.ID,
		Name:          account.Name,
		Initial:       account.InitialBalance,
		Stored:        account.Balance,
		Reconstructed: reconstructed,
		Drift:         total.Sub(decimal.NewFromFloat(account.Balance)).InexactFloat64(),
		Trades:        len(trades),
	}
	if !apply {
		return rec, nil
	}

	logger := logging.WithOperation(logging.WithOwner(s.logger, account.OwnerID), "reconcile").
		With().Str("account_id", accountID).Logger()

	for i := range trades {
		t := &trades[i]
		if t.BalanceAccountID == accountID && t.BalanceAppliedPnL == t.PnL {
			continue
		}
		t.BalanceAccountID = accountID
		t.BalanceAppliedPnL = t.PnL
		t.UpdatedAt = s.now()
		if err := s.store.SaveTrade(ctx, t); err != nil {
			return rec, fmt.Errorf("failed to save trade %s: %w", t.ID, err)
		}
	}

	if rec.Drift != 0 {
		account.Balance = reconstructed
		account.UpdatedAt = s.now()
		if err := s.store.SaveFundAccount(ctx, account); err != nil {
			return rec, fmt.Errorf("failed to update fund account balance: %w", err)
		}
	}

	rec.Applied = true
	logger.Info().Float64("drift", rec.Drift).Float64("balance", reconstructed).Msg("Fund account reconciled")
	return rec, nil
}
