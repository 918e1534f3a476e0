package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	apperrors "trading-journal/internal/errors"
	"trading-journal/internal/models"
	"trading-journal/pkg/utils"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoTables names the tables backing each record type. Every table is
// keyed by a string attribute "id".
type DynamoTables struct {
	Trades       string
	Strategies   string
	FundAccounts string
}

// DynamoOptions configures NewDynamoClient.
type DynamoOptions struct {
	Region   string
	Endpoint string
}

// NewDynamoClient builds a DynamoDB client from the default AWS credential
// chain. A non-empty endpoint points the client at DynamoDB Local.
func NewDynamoClient(ctx context.Context, opts DynamoOptions) (*dynamodb.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	}), nil
}

// DynamoStore implements DataStore on DynamoDB tables.
//
// Queries scan the owner's items and filter in memory; a journal holds one
// person's trades so the tables stay small.
type DynamoStore struct {
	client DynamoAPI
	tables DynamoTables
	retry  utils.RetryConfig
}

// NewDynamoStore creates a DynamoDB-backed data store.
func NewDynamoStore(client DynamoAPI, tables DynamoTables) *DynamoStore {
	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = 5
	retry.Retryable = isThrottle

	return &DynamoStore{client: client, tables: tables, retry: retry}
}

// WithRetry overrides the retry policy for throttled requests.
func (s *DynamoStore) WithRetry(cfg utils.RetryConfig) *DynamoStore {
	if cfg.Retryable == nil {
		cfg.Retryable = isThrottle
	}
	s.retry = cfg
	return s
}

func isThrottle(err error) bool {
	var throughput *dynamotypes.ProvisionedThroughputExceededException
	var limit *dynamotypes.RequestLimitExceeded
	if errors.As(err, &throughput) || errors.As(err, &limit) || errors.Is(err, apperrors.ErrThrottled) {
		return true
	}

	var cancelled *dynamotypes.TransactionCanceledException
	if errors.As(err, &cancelled) {
		for _, r := range cancelled.CancellationReasons {
			if aws.ToString(r.Code) == "ThrottlingError" {
				return true
			}
		}
	}
	return false
}

// cancelReason returns the cancellation code of item i of a cancelled
// transaction, or "" when err is not a cancellation.
func cancelReason(err error, i int) string {
	var cancelled *dynamotypes.TransactionCanceledException
	if !errors.As(err, &cancelled) || i >= len(cancelled.CancellationReasons) {
		return ""
	}
	return aws.ToString(cancelled.CancellationReasons[i].Code)
}

func isConditionFailed(err error) bool {
	var cond *dynamotypes.ConditionalCheckFailedException
	return errors.As(err, &cond)
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *DynamoStore) Close() error { return nil }

// tradeItem is the stored form of a trade. The checklist is kept as its JSON
// encoding so key order survives.
type tradeItem struct {
	models.Trade
	ChecklistJSON string `dynamodbav:"checklist_json"`
}

func idKey(id string) map[string]dynamotypes.AttributeValue {
	return map[string]dynamotypes.AttributeValue{
		"id": &dynamotypes.AttributeValueMemberS{Value: id},
	}
}

func (s *DynamoStore) put(ctx context.Context, table string, item map[string]dynamotypes.AttributeValue) error {
	return utils.Retry(ctx, s.retry, func() error {
		_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(table),
			Item:      item,
		})
		return err
	})
}

func (s *DynamoStore) get(ctx context.Context, table, id string) (map[string]dynamotypes.AttributeValue, error) {
	out, err := utils.RetryWithResult(ctx, s.retry, func() (*dynamodb.GetItemOutput, error) {
		return s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      aws.String(table),
			Key:            idKey(id),
			ConsistentRead: aws.Bool(true),
		})
	})
	if err != nil {
		return nil, err
	}
	return out.Item, nil
}

func (s *DynamoStore) remove(ctx context.Context, table, entity, id string, notFound error) error {
	err := utils.Retry(ctx, s.retry, func() error {
		_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:           aws.String(table),
			Key:                 idKey(id),
			ConditionExpression: aws.String("attribute_exists(id)"),
		})
		return err
	})
	if isConditionFailed(err) {
		return apperrors.NewStoreError("delete", entity, id, notFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", entity, err)
	}
	return nil
}

// scanOwner returns every item of table belonging to ownerID.
func (s *DynamoStore) scanOwner(ctx context.Context, table, ownerID string) ([]map[string]dynamotypes.AttributeValue, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(table)}
	if ownerID != "" {
		input.FilterExpression = aws.String("owner_id = :owner")
		input.ExpressionAttributeValues = map[string]dynamotypes.AttributeValue{
			":owner": &dynamotypes.AttributeValueMemberS{Value: ownerID},
		}
	}

	var items []map[string]dynamotypes.AttributeValue
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := utils.RetryWithResult(ctx, s.retry, func() (*dynamodb.ScanOutput, error) {
			return paginator.NextPage(ctx)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

func encodeTrade(t *models.Trade) (map[string]dynamotypes.AttributeValue, error) {
	checklist, err := json.Marshal(t.Checklist)
	if err != nil {
		return nil, err
	}
	return attributevalue.MarshalMap(tradeItem{Trade: *t, ChecklistJSON: string(checklist)})
}

func decodeTrade(item map[string]dynamotypes.AttributeValue) (models.Trade, error) {
	var ti tradeItem
	if err := attributevalue.UnmarshalMap(item, &ti); err != nil {
		return models.Trade{}, err
	}
	if ti.ChecklistJSON != "" {
		if err := json.Unmarshal([]byte(ti.ChecklistJSON), &ti.Trade.Checklist); err != nil {
			return models.Trade{}, err
		}
	}
	return ti.Trade, nil
}

// SaveTrade inserts or replaces a trade.
func (s *DynamoStore) SaveTrade(ctx context.Context, trade *models.Trade) error {
	item, err := encodeTrade(trade)
	if err != nil {
		return fmt.Errorf("failed to marshal trade: %w", err)
	}
	if err := s.put(ctx, s.tables.Trades, item); err != nil {
		return apperrors.NewStoreError("save", "trade", trade.ID, fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err))
	}
	return nil
}

// GetTrade retrieves a single trade by ID.
func (s *DynamoStore) GetTrade(ctx context.Context, id string) (*models.Trade, error) {
	item, err := s.get(ctx, s.tables.Trades, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	if item == nil {
		return nil, apperrors.NewStoreError("get", "trade", id, apperrors.ErrTradeNotFound)
	}

	t, err := decodeTrade(item)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal trade %s: %w", id, err)
	}
	return &t, nil
}

func (s *DynamoStore) ownerTrades(ctx context.Context, ownerID string) ([]models.Trade, error) {
	items, err := s.scanOwner(ctx, s.tables.Trades, ownerID)
	if err != nil {
		return nil, err
	}

	trades := make([]models.Trade, 0, len(items))
	for _, item := range items {
		t, err := decodeTrade(item)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, nil
}

// GetTrades retrieves trades matching filter.
func (s *DynamoStore) GetTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error) {
	all, err := s.ownerTrades(ctx, filter.OwnerID)
	if err != nil {
		return nil, err
	}

	trades := []models.Trade{}
	for i := range all {
		if filter.Match(&all[i]) {
			trades = append(trades, all[i])
		}
	}

	SortTrades(trades, filter.Newest)
	if filter.Limit > 0 && len(trades) > filter.Limit {
		trades = trades[:filter.Limit]
	}
	return trades, nil
}

// PreviousTrade returns the latest trade in scope that sorts before
// (before, beforeID), or nil when there is none. The trade beforeID itself
// is never returned.
func (s *DynamoStore) PreviousTrade(ctx context.Context, scope Scope, before time.Time, beforeID string) (*models.Trade, error) {
	all, err := s.ownerTrades(ctx, scope.OwnerID)
	if err != nil {
		return nil, err
	}

	var prev *models.Trade
	for i := range all {
		t := &all[i]
		if t.ID == beforeID {
			continue
		}
		if t.OwnerID != scope.OwnerID || t.FundAccountID != scope.FundAccountID || !precedes(t, before, beforeID) {
			continue
		}
		if prev == nil || tradeLess(prev, t) {
			prev = t
		}
	}
	return prev, nil
}

// DeleteTrade removes a trade.
func (s *DynamoStore) DeleteTrade(ctx context.Context, id string) error {
	return s.remove(ctx, s.tables.Trades, "trade", id, apperrors.ErrTradeNotFound)
}

// Settle writes the trade, or its deletion, and the changed fund accounts in
// one TransactWriteItems call. It returns the fund accounts whose balance
// changed.
func (s *DynamoStore) Settle(ctx context.Context, settlement Settlement) ([]models.FundAccount, error) {
	var (
		items   []dynamotypes.TransactWriteItem
		updated []models.FundAccount
	)
	for _, accountID := range settlement.accountIDs() {
		account, err := s.GetFundAccount(ctx, accountID)
		if apperrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}

		settlement.apply(account)
		item, err := attributevalue.MarshalMap(account)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal fund account: %w", err)
		}
		items = append(items, dynamotypes.TransactWriteItem{Put: &dynamotypes.Put{
			TableName:           aws.String(s.tables.FundAccounts),
			Item:                item,
			ConditionExpression: aws.String("attribute_exists(id)"),
		}})
		updated = append(updated, *account)
	}

	trade := settlement.Trade
	if settlement.Remove {
		items = append(items, dynamotypes.TransactWriteItem{Delete: &dynamotypes.Delete{
			TableName:           aws.String(s.tables.Trades),
			Key:                 idKey(trade.ID),
			ConditionExpression: aws.String("attribute_exists(id)"),
		}})
	} else {
		item, err := encodeTrade(trade)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal trade: %w", err)
		}
		items = append(items, dynamotypes.TransactWriteItem{Put: &dynamotypes.Put{
			TableName: aws.String(s.tables.Trades),
			Item:      item,
		}})
	}

	err := utils.Retry(ctx, s.retry, func() error {
		_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
		return err
	})
	if settlement.Remove && cancelReason(err, len(items)-1) == "ConditionalCheckFailed" {
		return nil, apperrors.NewStoreError("delete", "trade", trade.ID, apperrors.ErrTradeNotFound)
	}
	if err != nil {
		return nil, apperrors.NewStoreError("settle", "trade", trade.ID, fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err))
	}
	return updated, nil
}

// SaveStrategy inserts or replaces a strategy.
func (s *DynamoStore) SaveStrategy(ctx context.Context, strategy *models.Strategy) error {
	item, err := attributevalue.MarshalMap(strategy)
	if err != nil {
		return fmt.Errorf("failed to marshal strategy: %w", err)
	}
	if err := s.put(ctx, s.tables.Strategies, item); err != nil {
		return apperrors.NewStoreError("save", "strategy", strategy.ID, fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err))
	}
	return nil
}

// GetStrategy retrieves a strategy by ID.
func (s *DynamoStore) GetStrategy(ctx context.Context, id string) (*models.Strategy, error) {
	item, err := s.get(ctx, s.tables.Strategies, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get strategy: %w", err)
	}
	if item == nil {
		return nil, apperrors.NewStoreError("get", "strategy", id, apperrors.ErrStrategyNotFound)
	}

	var st models.Strategy
	if err := attributevalue.UnmarshalMap(item, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal strategy: %w", err)
	}
	return &st, nil
}

// GetStrategyByName retrieves an owner's strategy by its display name.
func (s *DynamoStore) GetStrategyByName(ctx context.Context, ownerID, name string) (*models.Strategy, error) {
	strategies, err := s.ListStrategies(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range strategies {
		if strategies[i].Name == name {
			return &strategies[i], nil
		}
	}
	return nil, apperrors.NewStoreError("get", "strategy", name, apperrors.ErrStrategyNotFound)
}

// ListStrategies returns an owner's strategies ordered by name.
func (s *DynamoStore) ListStrategies(ctx context.Context, ownerID string) ([]models.Strategy, error) {
	items, err := s.scanOwner(ctx, s.tables.Strategies, ownerID)
	if err != nil {
		return nil, err
	}

	var all []models.Strategy
	if err := attributevalue.UnmarshalListOfMaps(items, &all); err != nil {
		return nil, fmt.Errorf("failed to unmarshal strategies: %w", err)
	}

	strategies := []models.Strategy{}
	for _, st := range all {
		if st.OwnerID == ownerID {
			strategies = append(strategies, st)
		}
	}
	sort.Slice(strategies, func(i, j int) bool { return strategies[i].Name < strategies[j].Name })
	return strategies, nil
}

// DeleteStrategy removes a strategy. Trades referencing it are untouched.
func (s *DynamoStore) DeleteStrategy(ctx context.Context, id string) error {
	return s.remove(ctx, s.tables.Strategies, "strategy", id, apperrors.ErrStrategyNotFound)
}

// SaveFundAccount inserts or replaces a fund account.
func (s *DynamoStore) SaveFundAccount(ctx context.Context, account *models.FundAccount) error {
	item, err := attributevalue.MarshalMap(account)
	if err != nil {
		return fmt.Errorf("failed to marshal fund account: %w", err)
	}
	if err := s.put(ctx, s.tables.FundAccounts, item); err != nil {
		return apperrors.NewStoreError("save", "fund account", account.ID, fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err))
	}
	return nil
}

// GetFundAccount retrieves a fund account by ID.
func (s *DynamoStore) GetFundAccount(ctx context.Context, id string) (*models.FundAccount, error) {
	item, err := s.get(ctx, s.tables.FundAccounts, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get fund account: %w", err)
	}
	if item == nil {
		return nil, apperrors.NewStoreError("get", "fund account", id, apperrors.ErrFundAccountNotFound)
	}

	var a models.FundAccount
	if err := attributevalue.UnmarshalMap(item, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fund account: %w", err)
	}
	return &a, nil
}

// ListFundAccounts returns an owner's fund accounts ordered by ID.
func (s *DynamoStore) ListFundAccounts(ctx context.Context, ownerID string) ([]models.FundAccount, error) {
	items, err := s.scanOwner(ctx, s.tables.FundAccounts, ownerID)
	if err != nil {
		return nil, err
	}

	var all []models.FundAccount
	if err := attributevalue.UnmarshalListOfMaps(items, &all); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fund accounts: %w", err)
	}

	accounts := []models.FundAccount{}
	for _, a := range all {
		if a.OwnerID == ownerID {
			accounts = append(accounts, a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

// DeleteFundAccount removes a fund account.
func (s *DynamoStore) DeleteFundAccount(ctx context.Context, id string) error {
	return s.remove(ctx, s.tables.FundAccounts, "fund account", id, apperrors.ErrFundAccountNotFound)
}

var _ DataStore = (*DynamoStore)(nil)
