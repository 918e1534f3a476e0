// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"trading-journal/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Trades
	SaveTrade(ctx context.Context, trade *models.Trade) error
	GetTrade(ctx context.Context, id string) (*models.Trade, error)
	GetTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error)
	PreviousTrade(ctx context.Context, scope Scope, before time.Time, beforeID string) (*models.Trade, error)
	DeleteTrade(ctx context.Context, id string) error
	Settle(ctx context.Context, settlement Settlement) ([]models.FundAccount, error)

	// Strategies
	SaveStrategy(ctx context.Context, strategy *models.Strategy) error
	GetStrategy(ctx context.Context, id string) (*models.Strategy, error)
	GetStrategyByName(ctx context.Context, ownerID, name string) (*models.Strategy, error)
	ListStrategies(ctx context.Context, ownerID string) ([]models.Strategy, error)
	DeleteStrategy(ctx context.Context, id string) error

	// Fund accounts
	SaveFundAccount(ctx context.Context, account *models.FundAccount) error
	GetFundAccount(ctx context.Context, id string) (*models.FundAccount, error)
	ListFundAccounts(ctx context.Context, ownerID string) ([]models.FundAccount, error)
	DeleteFundAccount(ctx context.Context, id string) error

	// Lifecycle
	Close() error
}

// Settlement is a trade write together with the fund-account balance
// changes it implies. Stores apply both in one transaction: either the trade
// and every balance change land, or nothing does.
type Settlement struct {
	Trade *models.Trade
	// Remove deletes the trade instead of saving it.
	Remove bool
	// Deltas maps fund account IDs to the amount added to their balance.
	// Accounts that no longer exist are skipped.
	Deltas map[string]float64
	At     time.Time
}

// accountIDs returns the accounts with a non-zero delta, sorted.
func (s Settlement) accountIDs() []string {
	ids := make([]string, 0, len(s.Deltas))
	for id, delta := range s.Deltas {
		if delta != 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// apply adds the settlement's delta to account.
func (s Settlement) apply(account *models.FundAccount) {
	account.Balance = decimal.NewFromFloat(account.Balance).
		Add(decimal.NewFromFloat(s.Deltas[account.ID])).
		InexactFloat64()
	account.UpdatedAt = s.At
}

// Scope identifies the trade sequence a trade belongs to: one owner's trades
// on one fund account. An empty FundAccountID is the owner's unassigned
// sequence.
type Scope struct {
	OwnerID       string
	FundAccountID string
}

// ScopeOf returns the sequence scope of t.
func ScopeOf(t *models.Trade) Scope {
	return Scope{OwnerID: t.OwnerID, FundAccountID: t.FundAccountID}
}

// TradeFilter represents filters for querying trades.
//
// From is inclusive and To is exclusive, both compared against entry time.
// Results are ordered by entry time ascending unless Newest is set.
type TradeFilter struct {
	OwnerID       string
	Symbol        string
	Strategy      string
	Direction     models.Direction
	FundAccountID string
	Adherent      *bool
	From          time.Time
	To            time.Time
	Newest        bool
	Limit         int
}

// Match reports whether t passes every condition of the filter except Limit.
func (f TradeFilter) Match(t *models.Trade) bool {
	if f.OwnerID != "" && t.OwnerID != f.OwnerID {
		return false
	}
	if f.Symbol != "" && !strings.EqualFold(t.Symbol, f.Symbol) {
		return false
	}
	if f.Strategy != "" && t.Strategy != f.Strategy {
		return false
	}
	if f.Direction != "" && t.Direction != f.Direction {
		return false
	}
	if f.FundAccountID != "" && t.FundAccountID != f.FundAccountID {
		return false
	}
	if f.Adherent != nil && t.IsAdherent != *f.Adherent {
		return false
	}
	if !f.From.IsZero() && t.EntryTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.EntryTime.Before(f.To) {
		return false
	}
	return true
}

// SortTrades orders trades by entry time, then ID, which is the order every
// store returns and the order trades are sequenced in.
func SortTrades(trades []models.Trade, newest bool) {
	sort.SliceStable(trades, func(i, j int) bool {
		if newest {
			i, j = j, i
		}
		return tradeLess(&trades[i], &trades[j])
	})
}

func tradeLess(a, b *models.Trade) bool {
	if !a.EntryTime.Equal(b.EntryTime) {
		return a.EntryTime.Before(b.EntryTime)
	}
	return a.ID < b.ID
}

// precedes reports whether t sorts before the position (before, beforeID).
func precedes(t *models.Trade, before time.Time, beforeID string) bool {
	if !t.EntryTime.Equal(before) {
		return t.EntryTime.Before(before)
	}
	return t.ID < beforeID
}
