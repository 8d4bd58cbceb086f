package events

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition not met before deadline")
}

func TestManagerDispatchesToHandler(t *testing.T) {
	m := NewManager(DefaultConfig())
	defer m.Shutdown(time.Second)

	var got atomic.Int32
	m.RegisterHandler(HandlerFunc{
		HandlerName: "counter",
		Fn: func(e Event) error {
			got.Add(1)
			return nil
		},
	})

	m.EnqueueEvent(Event{Type: TypeObjectCreated})
	waitFor(t, func() bool { return got.Load() == 1 })

	stats := m.Stats()
	assert.Equal(t, uint64(1), stats.Enqueued)
	assert.Equal(t, uint64(1), stats.Handled)
}

func TestManagerAssignsMonotonicIDs(t *testing.T) {
	m := NewManager(DefaultConfig())
	defer m.Shutdown(time.Second)

	var mu sync.Mutex
	var ids []uint64
	m.RegisterHandler(HandlerFunc{
		HandlerName: "ids",
		Fn: func(e Event) error {
			mu.Lock()
			ids = append(ids, e.ID)
			mu.Unlock()
			return nil
		},
	})

	for i := 0; i < 5; i++ {
		m.EnqueueEvent(Event{Type: TypeProgress, Index: i})
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ids) == 5
	})

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1])
	}
}

func TestManagerRecoversFromPanickingHandler(t *testing.T) {
	m := NewManager(DefaultConfig())
	defer m.Shutdown(time.Second)

	var survived atomic.Bool
	m.RegisterHandler(HandlerFunc{
		HandlerName: "boom",
		Fn: func(e Event) error {
			panic("handler exploded")
		},
	})
	m.RegisterHandler(HandlerFunc{
		HandlerName: "survivor",
		Fn: func(e Event) error {
			survived.Store(true)
			return nil
		},
	})

	m.EnqueueEvent(Event{Type: TypeMuteChanged})
	waitFor(t, func() bool { return survived.Load() })

	assert.Equal(t, uint64(1), m.Stats().Errors)
}

func TestManagerCountsHandlerErrors(t *testing.T) {
	m := NewManager(DefaultConfig())
	defer m.Shutdown(time.Second)

	m.RegisterHandler(HandlerFunc{
		HandlerName: "always-fails",
		Fn: func(e Event) error {
			return errors.New("nope")
		},
	})

	m.EnqueueEvent(Event{Type: TypeMeasurement})
	waitFor(t, func() bool { return m.Stats().Errors == 1 })
}

func TestManagerDropsWhenOuterQueueFull(t *testing.T) {
	m := NewManager(Config{OuterBufferSize: 1, Workers: 1})
	defer m.cancel()

	release := make(chan struct{})
	m.RegisterHandler(HandlerFunc{
		HandlerName: "blocker",
		Fn: func(e Event) error {
			<-release
			return nil
		},
	})

	// The first event is picked up by the worker and blocks on release,
	// so the outer buffer (capacity 1) fills on the next enqueue and the
	// one after that must be dropped.
	m.EnqueueEvent(Event{Type: TypeProgress})
	waitFor(t, func() bool { return m.Stats().Enqueued == 1 })
	m.EnqueueEvent(Event{Type: TypeProgress})
	m.EnqueueEvent(Event{Type: TypeProgress})
	close(release)

	assert.GreaterOrEqual(t, m.Stats().Dropped, uint64(1))
}

func TestManagerShutdownDrainsQueue(t *testing.T) {
	m := NewManager(DefaultConfig())

	var count atomic.Int32
	m.RegisterHandler(HandlerFunc{
		HandlerName: "drain",
		Fn: func(e Event) error {
			count.Add(1)
			return nil
		},
	})

	for i := 0; i < 10; i++ {
		m.EnqueueEvent(Event{Type: TypeProgress, Index: i})
	}
	m.Shutdown(2 * time.Second)

	assert.Equal(t, int32(10), count.Load())
}
