package journal

import (
	"fmt"
	"math"
	"strings"

	apperrors "trading-journal/internal/errors"
	"trading-journal/internal/models"
)

// ValidateTrade checks the user-supplied fields of a trade before it is
// derived and persisted.
func ValidateTrade(t *models.Trade) error {
	if strings.TrimSpace(t.OwnerID) == "" {
		return apperrors.NewValidationError("owner_id", t.OwnerID, "must not be empty")
	}
	if strings.TrimSpace(t.Symbol) == "" {
		return apperrors.NewValidationError("symbol", t.Symbol, "must not be empty")
	}
	if t.Direction != models.DirectionLong && t.Direction != models.DirectionShort {
		return apperrors.NewValidationError("direction", t.Direction, "must be LONG or SHORT")
	}
	if t.EntryTime.IsZero() {
		return apperrors.NewValidationError("entry_time", t.EntryTime, "must be set")
	}
	for name, v := range map[string]float64{"entry_price": t.EntryPrice, "exit_price": t.ExitPrice, "position_size": t.PositionSize} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperrors.NewValidationError(name, v, "must be a finite number")
		}
	}
	if t.PositionSize < 0 {
		return apperrors.NewValidationError("position_size", t.PositionSize, "must not be negative")
	}
	if err := validateScore("confidence_level", t.ConfidenceLevel); err != nil {
		return err
	}
	if err := validateScore("setup_quality", t.SetupQuality); err != nil {
		return err
	}
	if !t.ExitReason.Valid() {
		return apperrors.NewValidationError("exit_reason", t.ExitReason, "unknown exit reason")
	}
	if !t.EmotionalState.Valid() {
		return apperrors.NewValidationError("emotional_state", t.EmotionalState, "unknown emotional state")
	}
	return nil
}

func validateScore(field string, v *int) error {
	if v != nil && (*v < 1 || *v > 10) {
		return apperrors.NewValidationError(field, *v, "must be between 1 and 10")
	}
	return nil
}

// ValidateStrategy checks a strategy definition.
func ValidateStrategy(s *models.Strategy) error {
	if strings.TrimSpace(s.Name) == "" {
		return apperrors.NewValidationError("name", s.Name, "must not be empty")
	}

	seen := make(map[string]bool, len(s.Items))
	for i, item := range s.Items {
		field := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(item.ID) == "" {
			return apperrors.NewValidationError(field+".id", item.ID, "must not be empty")
		}
		if item.ID == models.KeyConfirmations {
			return apperrors.NewValidationError(field+".id", item.ID, "is reserved")
		}
		if seen[item.ID] {
			return apperrors.NewValidationError(field+".id", item.ID, "duplicate item id")
		}
		seen[item.ID] = true

		if item.Type != models.ItemCheckbox && item.Type != models.ItemText {
			return apperrors.NewValidationError(field+".type", item.Type, "must be checkbox or text")
		}
	}
	return nil
}
