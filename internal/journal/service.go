// Package journal implements the write side of the trading journal: trade
// derivation, adherence, sequencing and fund-account balance bookkeeping on
// top of a store.DataStore.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trading-journal/internal/analytics"
	apperrors "trading-journal/internal/errors"
	"trading-journal/internal/id"
	"trading-journal/internal/logging"
	"trading-journal/internal/models"
	"trading-journal/internal/store"
)

const defaultBatchSize = 25

// Service coordinates journal writes and analytics reads.
type Service struct {
	store     store.DataStore
	logger    zerolog.Logger
	now       func() time.Time
	batchSize int
}

// NewService creates a journal service on top of a data store.
func NewService(s store.DataStore, logger zerolog.Logger) *Service {
	return &Service{
		store:     s,
		logger:    logger,
		now:       time.Now,
		batchSize: defaultBatchSize,
	}
}

// RecordTrade validates, derives and persists a new trade. The trade is
// updated in place with its ID, derived fields, sequence and adherence.
func (s *Service) RecordTrade(ctx context.Context, t *models.Trade) error {
	if err := ValidateTrade(t); err != nil {
		return err
	}

	now := s.now()
	t.ID = id.New()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.BalanceAccountID = ""
	t.BalanceAppliedPnL = 0

	if err := s.prepare(ctx, t); err != nil {
		return err
	}

	logger := logging.WithOperation(logging.WithOwner(s.logger, t.OwnerID), "record_trade")
	if err := s.commit(ctx, logger, t, false); err != nil {
		return fmt.Errorf("failed to record trade: %w", err)
	}

	logging.LogTradeSaved(logger, t.ID, t.Symbol, t.PnL, t.IsAdherent)
	return nil
}

// UpdateTrade replaces a stored trade with t. ID, owner, creation time and
// the balance marker are carried over from the stored record; everything
// derived is recomputed.
func (s *Service) UpdateTrade(ctx context.Context, t *models.Trade) error {
	existing, err := s.GetTrade(ctx, t.OwnerID, t.ID)
	if err != nil {
		return err
	}

	t.OwnerID = existing.OwnerID
	if err := ValidateTrade(t); err != nil {
		return err
	}

	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = s.now()
	t.BalanceAccountID = existing.BalanceAccountID
	t.BalanceAppliedPnL = existing.BalanceAppliedPnL

	if err := s.prepare(ctx, t); err != nil {
		return err
	}

	logger := logging.WithOperation(logging.WithTradeID(s.logger, t.ID), "update_trade")
	if err := s.commit(ctx, logger, t, false); err != nil {
		return fmt.Errorf("failed to update trade: %w", err)
	}

	logging.LogTradeSaved(logger, t.ID, t.Symbol, t.PnL, t.IsAdherent)
	return nil
}

// DeleteTrade removes a trade and reverses any P&L it contributed to a fund
// account balance.
func (s *Service) DeleteTrade(ctx context.Context, ownerID, tradeID string) error {
	t, err := s.GetTrade(ctx, ownerID, tradeID)
	if err != nil {
		return err
	}

	logger := logging.WithOperation(logging.WithTradeID(s.logger, t.ID), "delete_trade")

	t.FundAccountID = ""
	if err := s.commit(ctx, logger, t, true); err != nil {
		return fmt.Errorf("failed to delete trade: %w", err)
	}

	logger.Info().Msg("Trade deleted")
	return nil
}

// GetTrade returns an owner's trade. An empty ownerID skips the owner check.
func (s *Service) GetTrade(ctx context.Context, ownerID, tradeID string) (*models.Trade, error) {
	t, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if ownerID != "" && t.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: trade %s", apperrors.ErrOwnerMismatch, tradeID)
	}
	return t, nil
}

// Trades returns the trades matching filter.
func (s *Service) Trades(ctx context.Context, filter store.TradeFilter) ([]models.Trade, error) {
	trades, err := s.store.GetTrades(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}
	return trades, nil
}

// Dashboard loads the filtered trades and the owner's fund accounts and
// computes every analytics view over them.
func (s *Service) Dashboard(ctx context.Context, filter store.TradeFilter) (analytics.Dashboard, error) {
	trades, err := s.Trades(ctx, filter)
	if err != nil {
		return analytics.Dashboard{}, err
	}

	accounts, err := s.store.ListFundAccounts(ctx, filter.OwnerID)
	if err != nil {
		return analytics.Dashboard{}, fmt.Errorf("failed to load fund accounts: %w", err)
	}

	s.logger.Debug().
		Str("owner", filter.OwnerID).
		Int("trades", len(trades)).
		Int("accounts", len(accounts)).
		Msg("Computing dashboard")

	return analytics.BuildDashboard(trades, accounts), nil
}

// prepare derives fields, resolves the strategy, evaluates adherence and
// sequences the trade against its predecessor.
func (s *Service) prepare(ctx context.Context, t *models.Trade) error {
	t.Derive()

	strategy, err := s.resolveStrategy(ctx, t)
	if err != nil {
		return err
	}
	t.IsAdherent = analytics.EvaluateAdherence(t.Checklist, strategy)

	if t.FundAccountID != "" {
		if _, err := s.GetFundAccount(ctx, t.OwnerID, t.FundAccountID); err != nil {
			return err
		}
	}

	prev, err := s.store.PreviousTrade(ctx, store.ScopeOf(t), t.EntryTime, t.ID)
	if err != nil {
		return fmt.Errorf("failed to load previous trade: %w", err)
	}
	applySequence(t, prev)
	return nil
}

// resolveStrategy finds the strategy a trade refers to, by ID first and
// then by name. Trades naming an unknown strategy are evaluated with the
// fixed checklist.
func (s *Service) resolveStrategy(ctx context.Context, t *models.Trade) (*models.Strategy, error) {
	if t.StrategyID != "" {
		st, err := s.store.GetStrategy(ctx, t.StrategyID)
		if err == nil && st.OwnerID == t.OwnerID {
			t.Strategy = st.Name
			return st, nil
		}
		if err != nil && !apperrors.IsNotFound(err) {
			return nil, fmt.Errorf("failed to load strategy: %w", err)
		}
		t.StrategyID = ""
	}

	if t.Strategy == "" {
		return nil, nil
	}

	st, err := s.store.GetStrategyByName(ctx, t.OwnerID, t.Strategy)
	if apperrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load strategy: %w", err)
	}
	t.StrategyID = st.ID
	return st, nil
}
