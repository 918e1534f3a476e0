package performance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchProcessor(t *testing.T) {
	ctx := context.Background()
	var batches [][]int

	bp := NewBatchProcessor(3, func(_ context.Context, items []int) error {
		batches = append(batches, append([]int(nil), items...))
		return nil
	})

	for i := 1; i <= 7; i++ {
		require.NoError(t, bp.Add(ctx, i))
	}
	require.NoError(t, bp.Flush(ctx))
	require.NoError(t, bp.Flush(ctx))

	assert.Equal(t, [][]int{{1, 2, 3}, {4, 5, 6}, {7}}, batches)
	assert.Equal(t, 7, bp.Processed())
}

func TestBatchProcessorError(t *testing.T) {
	boom := errors.New("boom")
	bp := NewBatchProcessor(0, func(context.Context, []string) error { return boom })

	assert.ErrorIs(t, bp.Add(context.Background(), "a"), boom)
}

func TestBatchProcessorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	bp := NewBatchProcessor(10, func(context.Context, []int) error {
		called = true
		return nil
	})
	require.NoError(t, bp.Add(ctx, 1))

	assert.ErrorIs(t, bp.Flush(ctx), context.Canceled)
	assert.False(t, called)
}
