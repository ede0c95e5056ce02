package concurrent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEachVisitsAll(t *testing.T) {
	in := make([]int, 100)
	for i := range in {
		in[i] = i
	}
	out := make([]int, len(in))

	err := ForEach(context.Background(), in, 4, func(_ context.Context, i int, v int) error {
		out[i] = v * 2
		return nil
	})
	require.NoError(t, err)
	for i, v := range out {
		assert.Equal(t, i*2, v)
	}
}

func TestForEachBoundsWorkers(t *testing.T) {
	var active, peak atomic.Int32
	err := ForEach(context.Background(), make([]struct{}, 64), 3, func(context.Context, int, struct{}) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		active.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestForEachReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	err := ForEach(context.Background(), []int{1, 2, 3}, 1, func(_ context.Context, _ int, v int) error {
		if v == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestForEachCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	err := ForEach(ctx, []int{1, 2, 3}, 0, func(context.Context, int, int) error {
		calls.Add(1)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
}
