package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	idx       int
	requested int
	released  int
}

func TestPoolRequestRelease(t *testing.T) {
	p := New(4, 2, func(idx int) *widget { return &widget{idx: idx} }, Hooks[widget]{
		PreRequest: func(w *widget) { w.requested++ },
		PreRelease: func(w *widget) { w.released++ },
	})

	h, w := p.Request()
	require.NotNil(t, w)
	assert.Equal(t, int32(1), p.RefCount(h))
	assert.Equal(t, 1, w.requested)

	stats := p.Stats()
	assert.Equal(t, 1, stats.Used)
	assert.Equal(t, 4, stats.Total)

	p.Release(h)
	assert.Equal(t, int32(0), p.RefCount(h))
	assert.Equal(t, 1, w.released)

	stats = p.Stats()
	assert.Equal(t, 0, stats.Used)
	assert.Equal(t, 4, stats.Free)
}

func TestPoolGrowsWhenExhausted(t *testing.T) {
	p := New(2, 3, func(idx int) *widget { return &widget{idx: idx} }, Hooks[widget]{})

	var handles []Handle
	for i := 0; i < 5; i++ {
		h, w := p.Request()
		require.NotNil(t, w)
		handles = append(handles, h)
	}

	stats := p.Stats()
	assert.Equal(t, 5, stats.Used)
	assert.GreaterOrEqual(t, stats.Total, 5)

	for _, h := range handles {
		p.Release(h)
	}
	stats = p.Stats()
	assert.Equal(t, 0, stats.Used)
	assert.Equal(t, stats.Total, stats.Free)
}

func TestPoolReset(t *testing.T) {
	p := New(3, 3, func(idx int) *widget { return &widget{idx: idx} }, Hooks[widget]{
		PreRelease: func(w *widget) { w.released++ },
	})

	var handles []Handle
	var objs []*widget
	for i := 0; i < 3; i++ {
		h, w := p.Request()
		handles = append(handles, h)
		objs = append(objs, w)
	}

	p.Reset()

	stats := p.Stats()
	assert.Equal(t, 0, stats.Used)
	assert.Equal(t, 3, stats.Free)
	for _, w := range objs {
		assert.Equal(t, 1, w.released)
	}
	for _, h := range handles {
		assert.Equal(t, int32(0), p.RefCount(h))
	}
}

func TestPoolInvariantUsedPlusFreeEqualsTotal(t *testing.T) {
	p := New(5, 5, func(idx int) *widget { return &widget{idx: idx} }, Hooks[widget]{})

	var handles []Handle
	for i := 0; i < 8; i++ {
		h, _ := p.Request()
		handles = append(handles, h)
		stats := p.Stats()
		assert.Equal(t, stats.Total, stats.Used+stats.Free)
	}
	for _, h := range handles {
		p.Release(h)
		stats := p.Stats()
		assert.Equal(t, stats.Total, stats.Used+stats.Free)
	}
}

func TestLockFreePoolRequestRelease(t *testing.T) {
	p := NewLockFree(4, 2, func(idx int) *widget { return &widget{idx: idx} }, Hooks[widget]{})

	h, w, ok := p.TryRequest()
	require.True(t, ok)
	require.NotNil(t, w)

	p.Release(h, w)
	assert.GreaterOrEqual(t, p.Len(), 1)
}

func TestLockFreePoolExhaustionReturnsFalse(t *testing.T) {
	p := NewLockFree(2, 0, func(idx int) *widget { return &widget{idx: idx} }, Hooks[widget]{})

	_, _, ok1 := p.TryRequest()
	_, _, ok2 := p.TryRequest()
	_, _, ok3 := p.TryRequest()

	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.False(t, ok3)
}
