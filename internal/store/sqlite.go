// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "trading-journal/internal/errors"
	"trading-journal/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
//
// Filterable trade fields live in their own columns; the full record is kept
// as JSON in the data column so the checklist and optional fields round-trip
// exactly.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Journaled trades
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		strategy TEXT,
		strategy_id TEXT,
		fund_account_id TEXT NOT NULL DEFAULT '',
		is_adherent INTEGER DEFAULT 0,
		entry_ns INTEGER NOT NULL,
		pnl REAL,
		data TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Strategy checklists
	CREATE TABLE IF NOT EXISTS strategies (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		items TEXT NOT NULL,
		confirmations_placeholder TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(owner_id, name)
	);

	-- Fund accounts
	CREATE TABLE IF NOT EXISTS fund_accounts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		initial_balance REAL NOT NULL,
		balance REAL NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_owner_entry ON trades(owner_id, entry_ns);
	CREATE INDEX IF NOT EXISTS idx_trades_scope_entry ON trades(owner_id, fund_account_id, entry_ns, id);
	CREATE INDEX IF NOT EXISTS idx_trades_strategy ON trades(owner_id, strategy);
	CREATE INDEX IF NOT EXISTS idx_strategies_owner ON strategies(owner_id);
	CREATE INDEX IF NOT EXISTS idx_fund_accounts_owner ON fund_accounts(owner_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SaveTrade inserts or replaces a trade.
func (s *SQLiteStore) SaveTrade(ctx context.Context, trade *models.Trade) error {
	return saveTrade(ctx, s.db, trade)
}

func saveTrade(ctx context.Context, ex execer, trade *models.Trade) error {
	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("failed to encode trade: %w", err)
	}

	_, err = ex.ExecContext(ctx, `
		INSERT OR REPLACE INTO trades (id, owner_id, symbol, direction, strategy, strategy_id, fund_account_id, is_adherent, entry_ns, pnl, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, trade.ID, trade.OwnerID, trade.Symbol, string(trade.Direction), trade.Strategy, trade.StrategyID, trade.FundAccountID,
		boolInt(trade.IsAdherent), trade.EntryTime.UnixNano(), trade.PnL, string(data), formatTime(trade.CreatedAt), formatTime(trade.UpdatedAt))
	if err != nil {
		return apperrors.NewStoreError("save", "trade", trade.ID, fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err))
	}
	return nil
}

// GetTrade retrieves a single trade by ID.
func (s *SQLiteStore) GetTrade(ctx context.Context, id string) (*models.Trade, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM trades WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewStoreError("get", "trade", id, apperrors.ErrTradeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}

	var t models.Trade
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, fmt.Errorf("failed to decode trade %s: %w", id, err)
	}
	return &t, nil
}

// GetTrades retrieves trades from the database.
func (s *SQLiteStore) GetTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error) {
	query := "SELECT data FROM trades WHERE 1=1"
	args := []interface{}{}

	if filter.OwnerID != "" {
		query += " AND owner_id = ?"
		args = append(args, filter.OwnerID)
	}
	if filter.Symbol != "" {
		query += " AND symbol = ? COLLATE NOCASE"
		args = append(args, filter.Symbol)
	}
	if filter.Strategy != "" {
		query += " AND strategy = ?"
		args = append(args, filter.Strategy)
	}
	if filter.Direction != "" {
		query += " AND direction = ?"
		args = append(args, string(filter.Direction))
	}
	if filter.FundAccountID != "" {
		query += " AND fund_account_id = ?"
		args = append(args, filter.FundAccountID)
	}
	if filter.Adherent != nil {
		query += " AND is_adherent = ?"
		args = append(args, boolInt(*filter.Adherent))
	}
	if !filter.From.IsZero() {
		query += " AND entry_ns >= ?"
		args = append(args, filter.From.UnixNano())
	}
	if !filter.To.IsZero() {
		query += " AND entry_ns < ?"
		args = append(args, filter.To.UnixNano())
	}

	if filter.Newest {
		query += " ORDER BY entry_ns DESC, id DESC"
	} else {
		query += " ORDER BY entry_ns ASC, id ASC"
	}
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := []models.Trade{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}

		var t models.Trade
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("failed to decode trade: %w", err)
		}
		trades = append(trades, t)
	}

	return trades, rows.Err()
}

// PreviousTrade returns the latest trade in scope that sorts before
// (before, beforeID), or nil when there is none. The trade beforeID itself
// is never returned, wherever its stored copy sorts.
func (s *SQLiteStore) PreviousTrade(ctx context.Context, scope Scope, before time.Time, beforeID string) (*models.Trade, error) {
	ns := before.UnixNano()

	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM trades
		WHERE owner_id = ? AND fund_account_id = ?
		  AND (entry_ns < ? OR (entry_ns = ? AND id < ?))
		  AND id != ?
		ORDER BY entry_ns DESC, id DESC
		LIMIT 1
	`, scope.OwnerID, scope.FundAccountID, ns, ns, beforeID, beforeID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query previous trade: %w", err)
	}

	var t models.Trade
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, fmt.Errorf("failed to decode trade: %w", err)
	}
	return &t, nil
}

// DeleteTrade removes a trade.
func (s *SQLiteStore) DeleteTrade(ctx context.Context, id string) error {
	return deleteRow(ctx, s.db, "trades", "trade", id, apperrors.ErrTradeNotFound)
}

func deleteRow(ctx context.Context, ex execer, table, entity, id string, notFound error) error {
	result, err := ex.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", entity, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return apperrors.NewStoreError("delete", entity, id, notFound)
	}
	return nil
}

// Settle saves or deletes the trade and adds the balance deltas in one
// transaction. It returns the fund accounts whose balance changed.
func (s *SQLiteStore) Settle(ctx context.Context, settlement Settlement) ([]models.FundAccount, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var updated []models.FundAccount
	for _, accountID := range settlement.accountIDs() {
		row := tx.QueryRowContext(ctx, "SELECT "+fundAccountColumns+" FROM fund_accounts WHERE id = ?", accountID)
		account, err := scanFundAccount(row)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get fund account: %w", err)
		}

		settlement.apply(account)
		if _, err := tx.ExecContext(ctx, "UPDATE fund_accounts SET balance = ?, updated_at = ? WHERE id = ?",
			account.Balance, formatTime(account.UpdatedAt), account.ID); err != nil {
			return nil, apperrors.NewStoreError("save", "fund account", account.ID, fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err))
		}
		updated = append(updated, *account)
	}

	if settlement.Remove {
		err = deleteRow(ctx, tx, "trades", "trade", settlement.Trade.ID, apperrors.ErrTradeNotFound)
	} else {
		err = saveTrade(ctx, tx, settlement.Trade)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}
	return updated, nil
}

// SaveStrategy inserts or replaces a strategy.
func (s *SQLiteStore) SaveStrategy(ctx context.Context, strategy *models.Strategy) error {
	items, err := json.Marshal(strategy.Items)
	if err != nil {
		return fmt.Errorf("failed to encode checklist items: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO strategies (id, owner_id, name, items, confirmations_placeholder, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, strategy.ID, strategy.OwnerID, strategy.Name, string(items), strategy.ConfirmationsPlaceholder,
		formatTime(strategy.CreatedAt), formatTime(strategy.UpdatedAt))
	if err != nil {
		return apperrors.NewStoreError("save", "strategy", strategy.ID, fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err))
	}
	return nil
}

const strategyColumns = "id, owner_id, name, items, confirmations_placeholder, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStrategy(row rowScanner) (*models.Strategy, error) {
	var st models.Strategy
	var items, createdAt, updatedAt string
	var placeholder sql.NullString

	if err := row.Scan(&st.ID, &st.OwnerID, &st.Name, &items, &placeholder, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(items), &st.Items); err != nil {
		return nil, fmt.Errorf("failed to decode checklist items: %w", err)
	}
	st.ConfirmationsPlaceholder = placeholder.String
	st.CreatedAt = parseTime(createdAt)
	st.UpdatedAt = parseTime(updatedAt)
	return &st, nil
}

// GetStrategy retrieves a strategy by ID.
func (s *SQLiteStore) GetStrategy(ctx context.Context, id string) (*models.Strategy, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+strategyColumns+" FROM strategies WHERE id = ?", id)
	st, err := scanStrategy(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewStoreError("get", "strategy", id, apperrors.ErrStrategyNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get strategy: %w", err)
	}
	return st, nil
}

// GetStrategyByName retrieves an owner's strategy by its display name.
func (s *SQLiteStore) GetStrategyByName(ctx context.Context, ownerID, name string) (*models.Strategy, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+strategyColumns+" FROM strategies WHERE owner_id = ? AND name = ?", ownerID, name)
	st, err := scanStrategy(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewStoreError("get", "strategy", name, apperrors.ErrStrategyNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get strategy: %w", err)
	}
	return st, nil
}

// ListStrategies returns an owner's strategies ordered by name.
func (s *SQLiteStore) ListStrategies(ctx context.Context, ownerID string) ([]models.Strategy, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+strategyColumns+" FROM strategies WHERE owner_id = ? ORDER BY name", ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategies: %w", err)
	}
	defer rows.Close()

	strategies := []models.Strategy{}
	for rows.Next() {
		st, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan strategy: %w", err)
		}
		strategies = append(strategies, *st)
	}
	return strategies, rows.Err()
}

// DeleteStrategy removes a strategy. Trades referencing it are untouched.
func (s *SQLiteStore) DeleteStrategy(ctx context.Context, id string) error {
	return deleteRow(ctx, s.db, "strategies", "strategy", id, apperrors.ErrStrategyNotFound)
}

// SaveFundAccount inserts or replaces a fund account.
func (s *SQLiteStore) SaveFundAccount(ctx context.Context, account *models.FundAccount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO fund_accounts (id, owner_id, name, initial_balance, balance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, account.ID, account.OwnerID, account.Name, account.InitialBalance, account.Balance,
		formatTime(account.CreatedAt), formatTime(account.UpdatedAt))
	if err != nil {
		return apperrors.NewStoreError("save", "fund account", account.ID, fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err))
	}
	return nil
}

const fundAccountColumns = "id, owner_id, name, initial_balance, balance, created_at, updated_at"

func scanFundAccount(row rowScanner) (*models.FundAccount, error) {
	var a models.FundAccount
	var createdAt, updatedAt string
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.InitialBalance, &a.Balance, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

// GetFundAccount retrieves a fund account by ID.
func (s *SQLiteStore) GetFundAccount(ctx context.Context, id string) (*models.FundAccount, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+fundAccountColumns+" FROM fund_accounts WHERE id = ?", id)
	a, err := scanFundAccount(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewStoreError("get", "fund account", id, apperrors.ErrFundAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fund account: %w", err)
	}
	return a, nil
}

// ListFundAccounts returns an owner's fund accounts ordered by ID.
func (s *SQLiteStore) ListFundAccounts(ctx context.Context, ownerID string) ([]models.FundAccount, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+fundAccountColumns+" FROM fund_accounts WHERE owner_id = ? ORDER BY id", ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fund accounts: %w", err)
	}
	defer rows.Close()

	accounts := []models.FundAccount{}
	for rows.Next() {
		a, err := scanFundAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fund account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// DeleteFundAccount removes a fund account.
func (s *SQLiteStore) DeleteFundAccount(ctx context.Context, id string) error {
	return deleteRow(ctx, s.db, "fund_accounts", "fund account", id, apperrors.ErrFundAccountNotFound)
}

var _ DataStore = (*SQLiteStore)(nil)
