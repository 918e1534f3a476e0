package store

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-journal/internal/models"
	"trading-journal/pkg/utils"
)

// fakeDynamo is an in-memory DynamoAPI. It understands the owner filter and
// the attribute_exists condition the store sends, pages scans, and applies
// transactions all or nothing.
type fakeDynamo struct {
	mu        sync.Mutex
	tables    map[string]map[string]map[string]dynamotypes.AttributeValue
	pageSize  int
	throttle  int
	puts      int
	transacts int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{
		tables:   make(map[string]map[string]map[string]dynamotypes.AttributeValue),
		pageSize: 2,
	}
}

func keyOf(item map[string]dynamotypes.AttributeValue) string {
	if s, ok := item["id"].(*dynamotypes.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamo) table(name string) map[string]map[string]dynamotypes.AttributeValue {
	t, ok := f.tables[name]
	if !ok {
		t = make(map[string]map[string]dynamotypes.AttributeValue)
		f.tables[name] = t
	}
	return t
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.puts++
	if f.throttle > 0 {
		f.throttle--
		return nil, &dynamotypes.ProvisionedThroughputExceededException{Message: aws.String("slow down")}
	}
	f.table(*in.TableName)[keyOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return &dynamodb.GetItemOutput{Item: f.table(*in.TableName)[keyOf(in.Key)]}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := f.table(*in.TableName)
	id := keyOf(in.Key)
	if _, ok := t[id]; !ok && in.ConditionExpression != nil {
		return nil, &dynamotypes.ConditionalCheckFailedException{Message: aws.String("condition failed")}
	}
	delete(t, id)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := f.table(*in.TableName)
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := ""
	if in.ExclusiveStartKey != nil {
		start = keyOf(in.ExclusiveStartKey)
	}

	out := &dynamodb.ScanOutput{}
	scanned := 0
	for _, k := range keys {
		if start != "" && k <= start {
			continue
		}
		if scanned == f.pageSize {
			out.LastEvaluatedKey = idKey(keys[indexOf(keys, k)-1])
			break
		}
		scanned++

		item := t[k]
		if in.FilterExpression != nil {
			want := in.ExpressionAttributeValues[":owner"].(*dynamotypes.AttributeValueMemberS).Value
			got, _ := item["owner_id"].(*dynamotypes.AttributeValueMemberS)
			if got == nil || got.Value != want {
				continue
			}
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func (f *fakeDynamo) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.transacts++
	reasons := make([]dynamotypes.CancellationReason, len(in.TransactItems))
	if f.throttle > 0 {
		f.throttle--
		for i := range reasons {
			reasons[i].Code = aws.String("ThrottlingError")
		}
		return nil, &dynamotypes.TransactionCanceledException{Message: aws.String("throttled"), CancellationReasons: reasons}
	}

	cancelled := false
	for i, item := range in.TransactItems {
		table, key, cond := transactTarget(item)
		reasons[i].Code = aws.String("None")
		if _, ok := f.table(table)[key]; !ok && cond != nil {
			reasons[i].Code = aws.String("ConditionalCheckFailed")
			cancelled = true
		}
	}
	if cancelled {
		return nil, &dynamotypes.TransactionCanceledException{Message: aws.String("transaction cancelled"), CancellationReasons: reasons}
	}

	for _, item := range in.TransactItems {
		table, key, _ := transactTarget(item)
		if item.Put != nil {
			f.table(table)[key] = item.Put.Item
		} else {
			delete(f.table(table), key)
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func transactTarget(item dynamotypes.TransactWriteItem) (table, key string, cond *string) {
	if item.Put != nil {
		return *item.Put.TableName, keyOf(item.Put.Item), item.Put.ConditionExpression
	}
	return *item.Delete.TableName, keyOf(item.Delete.Key), item.Delete.ConditionExpression
}

func indexOf(keys []string, k string) int {
	for i, v := range keys {
		if v == k {
			return i
		}
	}
	return -1
}

func newTestDynamo(t *testing.T) (*DynamoStore, *fakeDynamo) {
	t.Helper()
	fake := newFakeDynamo()
	s := NewDynamoStore(fake, DynamoTables{Trades: "trades", Strategies: "strategies", FundAccounts: "fund_accounts"})
	s.WithRetry(utils.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1})
	return s, fake
}

func TestDynamoStore(t *testing.T) {
	s, _ := newTestDynamo(t)
	exerciseStore(t, s)
}

func TestDynamoStoreChecklistOrder(t *testing.T) {
	s, _ := newTestDynamo(t)
	ctx := context.Background()

	tr := sampleTrade("T1", "alice", "", day, 1)
	tr.Checklist.Set("zeta", models.Checked(true))
	tr.Checklist.Set("alpha", models.Text("note"))
	require.NoError(t, s.SaveTrade(ctx, &tr))

	got, err := s.GetTrade(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha"}, got.Checklist.Keys())
	assert.Equal(t, "note", got.Checklist.TextValue("alpha"))
	assert.True(t, got.EntryTime.Equal(day))
}

func TestDynamoStoreRetriesThrottledWrites(t *testing.T) {
	s, fake := newTestDynamo(t)
	ctx := context.Background()

	fake.throttle = 2
	tr := sampleTrade("T1", "alice", "", day, 1)
	require.NoError(t, s.SaveTrade(ctx, &tr))
	assert.Equal(t, 3, fake.puts)

	fake.throttle = 5
	fake.puts = 0
	err := s.SaveTrade(ctx, &tr)
	assert.Error(t, err)
	assert.Equal(t, 3, fake.puts, "gives up after MaxAttempts")
}

func TestDynamoStoreRetriesThrottledSettlement(t *testing.T) {
	s, fake := newTestDynamo(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFundAccount(ctx, &models.FundAccount{ID: "A1", OwnerID: "alice", Name: "Main", InitialBalance: 100, Balance: 100}))

	fake.throttle = 2
	tr := sampleTrade("T1", "alice", "A1", day, 5)
	updated, err := s.Settle(ctx, Settlement{Trade: &tr, Deltas: map[string]float64{"A1": 5}, At: day})
	require.NoError(t, err)
	assert.Equal(t, 3, fake.transacts)
	require.Len(t, updated, 1)
	assert.Equal(t, 105.0, updated[0].Balance)

	account, err := s.GetFundAccount(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, 105.0, account.Balance)
}
