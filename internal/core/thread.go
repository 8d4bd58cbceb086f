package core

import (
	"sync/atomic"
	"time"

	"github.com/va-core/va/internal/renderer"
	"github.com/va-core/va/internal/reproduction"
)

// coreThread is the dedicated worker from spec §4.9: it sleeps on a
// condition (here, a buffered wake channel signaled by
// scene.Manager.SetOnCommit, generalizing the scene manager's
// "trigger the core thread" step) with a ticker fallback bounded by
// Settings.Debug.TriggerUpdateMilliseconds, so a config with no scene
// mutations at all still propagates the global auralization mode on a
// bounded cadence.
type coreThread struct {
	facade *Facade
	period time.Duration

	wakeCh chan struct{}
	pauseCh chan struct{}
	resumeCh chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}

	running atomic.Bool
	lastProcessedID atomic.Int64
}

func newCoreThread(f *Facade, period time.Duration) *coreThread {
	t := &coreThread{
		facade:   f,
		period:   period,
		wakeCh:   make(chan struct{}, 1),
		pauseCh:  make(chan struct{}),
		resumeCh: make(chan struct{}),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	t.lastProcessedID.Store(-1)
	return t
}

// wake is registered with scene.Manager.SetOnCommit: a non-blocking
// signal, coalescing multiple commits between iterations into one
// wakeup (spec §4.4 step 3's "trigger the core thread").
func (t *coreThread) wake() {
	select {
	case t.wakeCh <- struct{}{}:
	default:
	}
}

func (t *coreThread) start() {
	if !t.running.CompareAndSwap(false, true) {
		return
	}
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	go t.run()
}

func (t *coreThread) stop() {
	if !t.running.CompareAndSwap(true, false) {
		return
	}
	close(t.stopCh)
	<-t.doneCh
}

// pause/resume implement Reset's cooperative break (spec §5: "TryBreak
// with backoff"): pause blocks until the thread is parked between
// iterations, resume releases it. Calling pause when the thread isn't
// running is a no-op.
func (t *coreThread) pause() {
	if !t.running.Load() {
		return
	}
	t.pauseCh <- struct{}{}
}

func (t *coreThread) resume() {
	if !t.running.Load() {
		return
	}
	t.resumeCh <- struct{}{}
}

func (t *coreThread) run() {
	defer close(t.doneCh)

	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-t.pauseCh:
			select {
			case <-t.resumeCh:
			case <-t.stopCh:
				return
			}
			continue
		case <-t.wakeCh:
		case <-ticker.C:
		}
		t.iterate()
	}
}

// iterate runs exactly the five steps spec §4.9 lists.
func (t *coreThread) iterate() {
	start := time.Now()

	head := t.facade.Scene.Head() // step 1: fetch with ref bump
	defer head.Release()          // step 4: drop the reference on the prior state

	if int64(head.ID()) != t.lastProcessedID.Load() {
		t.lastProcessedID.Store(int64(head.ID()))
		t.facade.forEachRenderer(func(r renderer.Renderer) { r.UpdateScene(head) })
		t.facade.forEachReproduction(func(r reproduction.Reproduction) { r.UpdateScene(head) })
	}

	mode := t.facade.globalAuralizationMode() // step 3: always propagate, unversioned
	t.facade.forEachRenderer(func(r renderer.Renderer) { r.UpdateGlobalAuralizationMode(mode) })

	elapsed := time.Since(start) // step 5: measure iteration duration for profiling
	if t.facade.Metrics != nil {
		t.facade.Metrics.RecordDuration("core_iteration", elapsed.Seconds())
	}
	if t.facade.Health != nil {
		t.facade.Health.RecordSample("core_thread", elapsed.Seconds())
	}
}
