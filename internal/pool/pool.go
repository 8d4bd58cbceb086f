// Package pool implements the fixed-size reusable object lifecycle
// that the real-time audio path depends on (spec §4.1). It follows
// the re-architecture guidance in spec §9: an arena-plus-index design
// rather than pointer-cyclic pool<->object references. Handles carry
// only their pool-local index and a generation counter; the pool owns
// the backing slice.
package pool

import (
	"sync"
	"sync/atomic"

	"github.com/va-core/va/internal/logging"
	"github.com/va-core/va/internal/vaerrors"
)

// Factory constructs a new zero-value object for slot idx. It must
// never return nil; a nil-returning factory is a fatal configuration
// error, raised as a panic whenever the pool constructs objects: in New
// for the initial capacity, and in any later growth step.
type Factory[T any] func(idx int) *T

// Hooks are invoked around an object's lifecycle. Either may be nil.
type Hooks[T any] struct {
	PreRequest func(obj *T) // called every time refcount goes 0 -> 1
	PreRelease func(obj *T) // called when refcount drops to 0
}

// Handle identifies a pool object without holding a pointer back to
// its pool, breaking the pool<->object reference cycle the spec's
// design notes call out.
type Handle struct {
	idx int
	gen uint64
}

type slot[T any] struct {
	obj      *T
	refCount int32
	gen      uint64
	inUse    bool
}

// Pool is the locked object pool variant: a mutex guards the used/free
// index sets. Used by control-thread and core-thread callers where
// contention is low and blocking briefly is acceptable.
type Pool[T any] struct {
	mu      sync.Mutex
	slots   []slot[T]
	free    []int
	factory Factory[T]
	hooks   Hooks[T]
	growBy  int
	logger  interface {
		Debug(string, ...any)
		Warn(string, ...any)
	}
}

// New constructs a pool with initial capacity c0 and growth step deltaC.
func New[T any](c0, deltaC int, factory Factory[T], hooks Hooks[T]) *Pool[T] {
	p := &Pool[T]{
		factory: factory,
		hooks:   hooks,
		growBy:  deltaC,
		logger:  logging.ForComponent("pool"),
	}
	p.growLocked(c0)
	return p
}

func (p *Pool[T]) growLocked(n int) {
	start := len(p.slots)
	for i := 0; i < n; i++ {
		idx := start + i
		obj := p.factory(idx)
		if obj == nil {
			panic(vaerrors.Newf("pool factory returned nil object at index %d", idx).
				Component("pool").Kind(vaerrors.KindInvalidParameter).Build())
		}
		p.slots = append(p.slots, slot[T]{obj: obj, gen: 1})
		p.free = append(p.free, idx)
	}
}

// Request pops a free slot (growing by growBy if none are free), runs
// PreRequest, and returns a ready-to-use handle with refcount 1.
func (p *Pool[T]) Request() (Handle, *T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		before := len(p.slots)
		p.growLocked(p.growBy)
		p.logger.Debug("pool grew", "from", before, "to", len(p.slots))
	}

	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]

	s := &p.slots[idx]
	s.inUse = true
	s.refCount = 1
	if p.hooks.PreRequest != nil {
		p.hooks.PreRequest(s.obj)
	}

	return Handle{idx: idx, gen: s.gen}, s.obj
}

// Acquire increments the reference count for a live handle.
func (p *Pool[T]) Acquire(h Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := &p.slots[h.idx]
	if !s.inUse || s.gen != h.gen {
		return
	}
	s.refCount++
}

// Release decrements the reference count; at zero it runs PreRelease
// and returns the slot to the free list, bumping its generation so
// stale handles can be detected instead of acting on a reused slot.
func (p *Pool[T]) Release(h Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := &p.slots[h.idx]
	if !s.inUse || s.gen != h.gen {
		return
	}
	s.refCount--
	if s.refCount > 0 {
		return
	}
	if p.hooks.PreRelease != nil {
		p.hooks.PreRelease(s.obj)
	}
	s.inUse = false
	s.gen++
	p.free = append(p.free, h.idx)
}

// RefCount returns the current reference count of a handle (0 if stale).
func (p *Pool[T]) RefCount(h Handle) int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := &p.slots[h.idx]
	if !s.inUse || s.gen != h.gen {
		return 0
	}
	return s.refCount
}

// Reset forcibly zeroes every used slot's reference count, running
// PreRelease on each, and returns them all to the free list. Used at
// scene reset (spec §5 cancellation).
func (p *Pool[T]) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.slots {
		s := &p.slots[i]
		if !s.inUse {
			continue
		}
		if p.hooks.PreRelease != nil {
			p.hooks.PreRelease(s.obj)
		}
		s.refCount = 0
		s.inUse = false
		s.gen++
		p.free = append(p.free, i)
	}
}

// Stats reports the pool invariant |used| + |free| = |total|.
type Stats struct {
	Used, Free, Total int
}

func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Used: len(p.slots) - len(p.free), Free: len(p.free), Total: len(p.slots)}
}

// RefCounted is a helper atomic refcount objects embed when they
// want to drive their own Release via a decrement, matching spec's
// "Release is invoked by the pool object itself" rule.
type RefCounted struct {
	count int32
}

func (r *RefCounted) Add(delta int32) int32 { return atomic.AddInt32(&r.count, delta) }
func (r *RefCounted) Load() int32           { return atomic.LoadInt32(&r.count) }
