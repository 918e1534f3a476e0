package journal

import (
	"context"
	"fmt"
	"math"
	"strings"

	apperrors "trading-journal/internal/errors"
	"trading-journal/internal/id"
	"trading-journal/internal/models"
)

// CreateFundAccount creates a fund account whose balance starts at its
// initial balance.
func (s *Service) CreateFundAccount(ctx context.Context, ownerID, name string, initial float64) (*models.FundAccount, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperrors.NewValidationError("name", name, "must not be empty")
	}
	if math.IsNaN(initial) || math.IsInf(initial, 0) {
		return nil, apperrors.NewValidationError("initial_balance", initial, "must be a finite number")
	}

	now := s.now()
	account := &models.FundAccount{
		ID:             id.New(),
		OwnerID:        ownerID,
		Name:           strings.TrimSpace(name),
		InitialBalance: initial,
		Balance:        initial,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.SaveFundAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create fund account: %w", err)
	}

	s.logger.Info().Str("account_id", account.ID).Str("name", account.Name).Float64("initial_balance", initial).Msg("Fund account created")
	return account, nil
}

// GetFundAccount returns an owner's fund account.
func (s *Service) GetFundAccount(ctx context.Context, ownerID, accountID string) (*models.FundAccount, error) {
	account, err := s.store.GetFundAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if ownerID != "" && account.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: fund account %s", apperrors.ErrOwnerMismatch, accountID)
	}
	return account, nil
}

// FundAccounts lists an owner's fund accounts.
func (s *Service) FundAccounts(ctx context.Context, ownerID string) ([]models.FundAccount, error) {
	accounts, err := s.store.ListFundAccounts(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fund accounts: %w", err)
	}
	return accounts, nil
}
