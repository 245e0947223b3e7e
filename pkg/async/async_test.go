package async_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardwatch/wardwatch/pkg/async"
)

func TestAsync(t *testing.T) {
	t.Parallel()

	f := async.Async(context.Background(), 21, func(_ context.Context, n int) (int, error) {
		time.Sleep(10 * time.Millisecond)
		return n * 2, nil
	})

	v, err := f.Await()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, f.IsComplete())
}

func TestAsync_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := async.Async(ctx, 1, func(context.Context, int) (int, error) {
		called = true
		return 0, nil
	}).Await()
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestAsync_Panic(t *testing.T) {
	t.Parallel()

	_, err := async.Async(context.Background(), 1, func(context.Context, int) (int, error) {
		panic("kaboom")
	}).Await()
	require.ErrorIs(t, err, async.ErrPanic)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestWaitAll_Settles(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	ctx := context.Background()
	ok := async.Async(ctx, "a", func(_ context.Context, s string) (string, error) { return s, nil })
	bad := async.Async(ctx, "b", func(context.Context, string) (string, error) { return "", errBoom })
	slow := async.Async(ctx, "c", func(_ context.Context, s string) (string, error) {
		time.Sleep(20 * time.Millisecond)
		return s, nil
	})

	results := async.WaitAll(ok, bad, slow)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Value)
	assert.ErrorIs(t, results[1].Err, errBoom)
	assert.Equal(t, "c", results[2].Value)
}

func TestMap_OrderAndIsolation(t *testing.T) {
	t.Parallel()

	errOdd := errors.New("odd")
	items := []int{1, 2, 3, 4, 5, 6}

	results := async.Map(context.Background(), items, 2, func(_ context.Context, n int) (int, error) {
		if n%2 == 1 {
			return 0, errOdd
		}
		return n * 10, nil
	})

	require.Len(t, results, len(items))
	for i, n := range items {
		if n%2 == 1 {
			assert.ErrorIs(t, results[i].Err, errOdd)
			continue
		}
		assert.NoError(t, results[i].Err)
		assert.Equal(t, n*10, results[i].Value)
	}
}

func TestMap_RespectsLimit(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	items := make([]int, 20)

	async.Map(context.Background(), items, 3, func(context.Context, int) (struct{}, error) {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return struct{}{}, nil
	})

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

func TestMap_Empty(t *testing.T) {
	t.Parallel()

	results := async.Map(context.Background(), []string(nil), 4, func(context.Context, string) (int, error) {
		return 1, nil
	})
	assert.Empty(t, results)
}
