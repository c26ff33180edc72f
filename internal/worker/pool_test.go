package worker

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolKeepsInputOrder(t *testing.T) {
	pool := NewPool[int, string](4, zerolog.Nop(), func(_ context.Context, n int) (string, error) {
		return strconv.Itoa(n * 2), nil
	})

	inputs := []int{1, 2, 3, 4, 5, 6, 7, 8, 9}
	results := pool.Execute(context.Background(), inputs)

	require.Len(t, results, len(inputs))
	for i, r := range results {
		assert.True(t, r.Done)
		assert.NoError(t, r.Err)
		assert.Equal(t, inputs[i], r.Input)
		assert.Equal(t, strconv.Itoa(inputs[i]*2), r.Result)
	}
}

func TestPoolReportsErrorsPerTask(t *testing.T) {
	boom := errors.New("boom")
	pool := NewPool[int, int](2, zerolog.Nop(), func(_ context.Context, n int) (int, error) {
		if n%2 == 0 {
			return 0, boom
		}
		return n, nil
	})

	results := pool.Execute(context.Background(), []int{1, 2, 3})
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.Equal(t, 3, results[2].Result)
}

func TestPoolStopsOnCancelledContext(t *testing.T) {
	var calls atomic.Int32
	pool := NewPool[int, int](1, zerolog.Nop(), func(_ context.Context, n int) (int, error) {
		calls.Add(1)
		return n, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := pool.Execute(ctx, []int{1, 2, 3})
	require.Len(t, results, 3)
	assert.LessOrEqual(t, int(calls.Load()), 3)
	for _, r := range results {
		if !r.Done {
			assert.Zero(t, r.Result)
		}
	}
}

func TestPoolWithNoInputs(t *testing.T) {
	pool := NewPool[int, int](0, zerolog.Nop(), func(_ context.Context, n int) (int, error) {
		return n, nil
	})
	assert.Empty(t, pool.Execute(context.Background(), nil))
}

func TestBatch(t *testing.T) {
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, Batch([]int{1, 2, 3, 4, 5}, 2))
	assert.Equal(t, [][]int{{1}, {2}}, Batch([]int{1, 2}, 0))
	assert.Nil(t, Batch([]int{}, 3))
}
