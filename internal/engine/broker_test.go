package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginPrimaryLoadCancelsPrevious(t *testing.T) {
	b := NewBroker()
	first := b.BeginPrimaryLoad(context.Background())
	assert.True(t, b.IsPrimary(first))

	second := b.BeginPrimaryLoad(context.Background())
	assert.False(t, b.IsPrimary(first))
	assert.True(t, b.IsPrimary(second))
	assert.True(t, first.Released())
	assert.ErrorIs(t, first.Context().Err(), context.Canceled)
	assert.NoError(t, second.Context().Err())

	// The superseded handle was already released by the winner.
	assert.False(t, b.FinishPrimary(first))
	assert.True(t, b.FinishPrimary(second))
	assert.False(t, b.FinishPrimary(second))
	assert.True(t, second.Released())
}

func TestCancelPrimaryLoad(t *testing.T) {
	b := NewBroker()
	b.CancelPrimaryLoad()

	h := b.BeginPrimaryLoad(context.Background())
	b.CancelPrimaryLoad()
	assert.False(t, b.IsPrimary(h))
	assert.True(t, h.Released())
	assert.False(t, b.FinishPrimary(h))
}

func TestSlotsAreIndependent(t *testing.T) {
	b := NewBroker()
	load := b.BeginPrimaryLoad(context.Background())
	counts := b.BeginCountRefresh(context.Background())

	assert.True(t, b.IsPrimary(load))
	assert.True(t, b.IsCountRefresh(counts))
	assert.False(t, b.IsPrimary(counts))

	next := b.BeginCountRefresh(context.Background())
	assert.True(t, b.IsPrimary(load), "a count refresh never cancels the primary load")
	assert.True(t, counts.Released())
	assert.True(t, b.IsCountRefresh(next))

	b.Close()
	assert.True(t, load.Released())
	assert.True(t, next.Released())
}

func TestParentCancellationPropagates(t *testing.T) {
	b := NewBroker()
	parent, cancel := context.WithCancel(context.Background())
	h := b.BeginPrimaryLoad(parent)
	cancel()
	<-h.Context().Done()
	assert.True(t, b.IsPrimary(h), "the slot is only cleared by finish or supersede")
	assert.True(t, b.FinishPrimary(h))
}

func TestConcurrentBeginReleasesEachHandleOnce(t *testing.T) {
	b := NewBroker()
	const n = 64

	handles := make([]*Handle, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i] = b.BeginPrimaryLoad(context.Background())
			b.FinishPrimary(handles[i])
		}(i)
	}
	wg.Wait()

	for _, h := range handles {
		require.NotNil(t, h)
		assert.True(t, h.Released())
		assert.Equal(t, int32(1), h.released.Load())
	}
	assert.Nil(t, b.primary.active.Load())
}

func TestDoubleReleasePanics(t *testing.T) {
	h := newHandle(context.Background())
	h.release()
	assert.Panics(t, func() { h.release() })
}
