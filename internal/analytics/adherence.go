package analytics

import (
	"strings"

	"trading-journal/internal/models"
)

// EvaluateAdherence reports whether a checklist satisfies its strategy.
//
// Without a strategy the four legacy flags must all be checked. With one,
// every required item must be checked (checkbox) or answered (text). Either
// way the confirmations text must not be blank.
func EvaluateAdherence(checklist models.Checklist, strategy *models.Strategy) bool {
	if strings.TrimSpace(checklist.TextValue(models.KeyConfirmations)) == "" {
		return false
	}

	if strategy == nil {
		for _, key := range models.LegacyChecklistKeys {
			if !checklist.IsChecked(key) {
				return false
			}
		}
		return true
	}

	for _, item := range strategy.Items {
		if !item.IsRequired() {
			continue
		}
		if !itemSatisfied(checklist, item) {
			return false
		}
	}
	return true
}

func itemSatisfied(checklist models.Checklist, item models.ChecklistItem) bool {
	if item.Type == models.ItemText {
		return strings.TrimSpace(checklist.TextValue(item.ID)) != ""
	}
	return checklist.IsChecked(item.ID)
}
