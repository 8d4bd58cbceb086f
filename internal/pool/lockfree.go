package pool

import (
	"sync/atomic"
)

// spscRing is a single-producer/single-consumer lock-free queue of
// slot indices, sized to a power of two. The lock-free pool variant
// keeps a single one holding the free slot indices: Release and growth
// push into it and TryRequest pops from it, so the real-time audio
// thread's per-block acquisition never touches a mutex. There is no
// separate ring for released slots.
type spscRing struct {
	mask uint64
	buf  []int32
	head atomic.Uint64 // next write position (producer)
	tail atomic.Uint64 // next read position (consumer)
}

func newSPSCRing(capacityPow2 int) *spscRing {
	n := 1
	for n < capacityPow2 {
		n <<= 1
	}
	return &spscRing{mask: uint64(n - 1), buf: make([]int32, n)}
}

func (r *spscRing) tryPush(v int32) bool {
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= uint64(len(r.buf)) {
		return false // full
	}
	r.buf[head&r.mask] = v
	r.head.Store(head + 1)
	return true
}

func (r *spscRing) tryPop() (int32, bool) {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail == head {
		return 0, false // empty
	}
	v := r.buf[tail&r.mask]
	r.tail.Store(tail + 1)
	return v, true
}

// LockFreePool is the real-time-safe object pool variant (spec §4.1):
// acquisition and release never block. Growth still takes the growth
// mutex, so growth must happen off the audio thread (typically the
// core thread observes low-water-mark and grows ahead of time); the
// audio thread only ever calls TryRequest/Release in steady state.
type LockFreePool[T any] struct {
	slots   []slot[T]
	freeing *spscRing // producer: Release; consumer: TryRequest
	factory Factory[T]
	hooks   Hooks[T]
	growBy  int
	growMu  growMutex
}

// growMutex is a tiny non-reentrant spinlock used only by the growth
// path (rare, off the audio thread), keeping the hot path free of
// sync.Mutex.
type growMutex struct{ locked atomic.Bool }

func (g *growMutex) Lock() {
	for !g.locked.CompareAndSwap(false, true) {
	}
}
func (g *growMutex) Unlock() { g.locked.Store(false) }

// NewLockFree constructs a lock-free pool with initial capacity c0
// (rounded up to a power of two for the ring buffers) and growth step deltaC.
func NewLockFree[T any](c0, deltaC int, factory Factory[T], hooks Hooks[T]) *LockFreePool[T] {
	p := &LockFreePool[T]{
		factory: factory,
		hooks:   hooks,
		growBy:  deltaC,
		freeing: newSPSCRing(c0 * 2),
	}
	p.grow(c0)
	return p
}

func (p *LockFreePool[T]) grow(n int) {
	p.growMu.Lock()
	defer p.growMu.Unlock()

	start := len(p.slots)
	for i := 0; i < n; i++ {
		idx := start + i
		obj := p.factory(idx)
		if obj == nil {
			panic("lock-free pool factory returned nil object")
		}
		p.slots = append(p.slots, slot[T]{obj: obj, gen: 1})
		if !p.freeing.tryPush(int32(idx)) {
			// ring undersized for the new capacity; replace with a larger one.
			bigger := newSPSCRing(len(p.slots) * 2)
			for {
				v, ok := p.freeing.tryPop()
				if !ok {
					break
				}
				bigger.tryPush(v)
			}
			p.freeing = bigger
			p.freeing.tryPush(int32(idx))
		}
	}
}

// TryRequest pops a free slot without blocking. It returns ok=false
// only if the pool is exhausted and growth (which the caller should
// trigger off-thread via Grow) hasn't kept up.
func (p *LockFreePool[T]) TryRequest() (Handle, *T, bool) {
	idxV, ok := p.freeing.tryPop()
	if !ok {
		return Handle{}, nil, false
	}
	idx := int(idxV)
	s := &p.slots[idx]
	s.refCount = 1
	if p.hooks.PreRequest != nil {
		p.hooks.PreRequest(s.obj)
	}
	return Handle{idx: idx, gen: s.gen}, s.obj, true
}

// Grow adds deltaC more slots; call from the core thread, never from
// the audio thread, since it takes the growth spinlock.
func (p *LockFreePool[T]) Grow() { p.grow(p.growBy) }

// Release decrements the reference count; at zero it runs PreRelease
// and pushes the slot back onto the free ring. Safe to call from the
// audio thread.
func (p *LockFreePool[T]) Release(h Handle, obj *T) {
	s := &p.slots[h.idx]
	if s.gen != h.gen {
		return
	}
	remaining := atomic.AddInt32(&s.refCount, -1)
	if remaining > 0 {
		return
	}
	if p.hooks.PreRelease != nil {
		p.hooks.PreRelease(obj)
	}
	s.gen++
	p.freeing.tryPush(int32(h.idx))
}

// Len reports the number of currently free slots (approximate under
// concurrent use, exact at quiescence — used for pool health metrics).
func (p *LockFreePool[T]) Len() int {
	return int(p.freeing.head.Load() - p.freeing.tail.Load())
}
