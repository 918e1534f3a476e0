package journal

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "trading-journal/internal/errors"
	"trading-journal/internal/id"
	"trading-journal/internal/models"
)

// SaveStrategy creates or replaces a strategy. Names are unique per owner.
// Editing a strategy never touches the trades that reference it.
func (s *Service) SaveStrategy(ctx context.Context, st *models.Strategy) error {
	st.Name = strings.TrimSpace(st.Name)
	if err := ValidateStrategy(st); err != nil {
		return err
	}

	existing, err := s.store.GetStrategyByName(ctx, st.OwnerID, st.Name)
	switch {
	case err == nil && existing.ID != st.ID:
		if st.ID != "" {
			return fmt.Errorf("%w: strategy %q", apperrors.ErrDuplicateName, st.Name)
		}
		// Saving a new definition under an existing name replaces it.
		st.ID = existing.ID
		st.CreatedAt = existing.CreatedAt
	case err == nil:
		st.CreatedAt = existing.CreatedAt
	case !apperrors.IsNotFound(err):
		return fmt.Errorf("failed to load strategy: %w", err)
	}

	now := s.now()
	if st.ID == "" {
		st.ID = id.New()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	st.UpdatedAt = now

	if err := s.store.SaveStrategy(ctx, st); err != nil {
		return fmt.Errorf("failed to save strategy: %w", err)
	}

	s.logger.Info().Str("strategy_id", st.ID).Str("name", st.Name).Int("items", len(st.Items)).Msg("Strategy saved")
	return nil
}

// GetStrategy finds an owner's strategy by ID or, failing that, by name.
// Refs that are not IDs go straight to the name lookup.
func (s *Service) GetStrategy(ctx context.Context, ownerID, ref string) (*models.Strategy, error) {
	if !id.Valid(ref) {
		return s.store.GetStrategyByName(ctx, ownerID, ref)
	}

	st, err := s.store.GetStrategy(ctx, ref)
	if err == nil {
		if st.OwnerID != ownerID {
			return nil, fmt.Errorf("%w: strategy %s", apperrors.ErrOwnerMismatch, ref)
		}
		return st, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}
	return s.store.GetStrategyByName(ctx, ownerID, ref)
}

// Strategies lists an owner's strategies.
func (s *Service) Strategies(ctx context.Context, ownerID string) ([]models.Strategy, error) {
	strategies, err := s.store.ListStrategies(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	return strategies, nil
}

// DeleteStrategy removes an owner's strategy by ID or name.
func (s *Service) DeleteStrategy(ctx context.Context, ownerID, ref string) error {
	st, err := s.GetStrategy(ctx, ownerID, ref)
	if err != nil {
		return err
	}
	if err := s.store.DeleteStrategy(ctx, st.ID); err != nil {
		return fmt.Errorf("failed to delete strategy: %w", err)
	}

	s.logger.Info().Str("strategy_id", st.ID).Str("name", st.Name).Msg("Strategy deleted")
	return nil
}

// strategyFile is the YAML layout accepted by ImportStrategies:
//
//	strategies:
//	  - name: Breakout
//	    confirmations_placeholder: What confirmed the entry?
//	    items:
//	      - {id: retest, label: Retest held, type: checkbox}
//	      - {id: level, label: Key level, type: text, required: true}
type strategyFile struct {
	Strategies []models.Strategy `yaml:"strategies"`
}

// ImportStrategies reads strategy definitions from YAML and saves each one
// for the owner, replacing strategies with the same name. Every definition
// is validated before anything is written.
func (s *Service) ImportStrategies(ctx context.Context, ownerID string, r io.Reader) ([]models.Strategy, error) {
	var file strategyFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: failed to parse strategy file: %v", apperrors.ErrInputValidation, err)
	}

	names := make(map[string]bool, len(file.Strategies))
	for i := range file.Strategies {
		st := &file.Strategies[i]
		st.OwnerID = ownerID
		st.Name = strings.TrimSpace(st.Name)
		if err := ValidateStrategy(st); err != nil {
			return nil, fmt.Errorf("strategy %d: %w", i+1, err)
		}
		if names[st.Name] {
			return nil, fmt.Errorf("%w: strategy %q defined twice", apperrors.ErrDuplicateName, st.Name)
		}
		names[st.Name] = true
	}

	saved := make([]models.Strategy, 0, len(file.Strategies))
	for i := range file.Strategies {
		st := file.Strategies[i]
		if err := s.SaveStrategy(ctx, &st); err != nil {
			return saved, err
		}
		saved = append(saved, st)
	}
	return saved, nil
}
