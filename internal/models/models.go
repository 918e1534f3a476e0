// Package models provides domain models for the trading journal.
package models

import "strings"

// Direction represents the side of a journaled trade.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// ParseDirection parses a direction case-insensitively.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG", "BUY":
		return DirectionLong, true
	case "SHORT", "SELL":
		return DirectionShort, true
	}
	return "", false
}

// ExitReason represents why a trade was closed.
type ExitReason string

const (
	ExitTakeProfit   ExitReason = "TAKE_PROFIT"
	ExitStopLoss     ExitReason = "STOP_LOSS"
	ExitManual       ExitReason = "MANUAL"
	ExitTime         ExitReason = "TIME_EXIT"
	ExitTrailingStop ExitReason = "TRAILING_STOP"
	ExitBreakeven    ExitReason = "BREAKEVEN"
)

// ExitReasons lists every known exit reason.
var ExitReasons = []ExitReason{
	ExitTakeProfit, ExitStopLoss, ExitManual, ExitTime, ExitTrailingStop, ExitBreakeven,
}

// Valid reports whether r is a known exit reason. The empty reason is allowed.
func (r ExitReason) Valid() bool {
	if r == "" {
		return true
	}
	for _, known := range ExitReasons {
		if r == known {
			return true
		}
	}
	return false
}

// EmotionalState represents the trader's state of mind during a trade.
type EmotionalState string

const (
	EmotionCalm       EmotionalState = "CALM"
	EmotionConfident  EmotionalState = "CONFIDENT"
	EmotionAnxious    EmotionalState = "ANXIOUS"
	EmotionFearful    EmotionalState = "FEARFUL"
	EmotionGreedy     EmotionalState = "GREEDY"
	EmotionFrustrated EmotionalState = "FRUSTRATED"
	EmotionEuphoric   EmotionalState = "EUPHORIC"
	EmotionBored      EmotionalState = "BORED"
)

// EmotionalStates lists every known emotional state.
var EmotionalStates = []EmotionalState{
	EmotionCalm, EmotionConfident, EmotionAnxious, EmotionFearful,
	EmotionGreedy, EmotionFrustrated, EmotionEuphoric, EmotionBored,
}

// Valid reports whether s is a known emotional state. The empty state is allowed.
func (s EmotionalState) Valid() bool {
	if s == "" {
		return true
	}
	for _, known := range EmotionalStates {
		if s == known {
			return true
		}
	}
	return false
}
