// Package core implements the Core Facade, Core Thread, and
// supporting lifecycle management that ties every other package into
// one running auralization engine (spec §4.9, §4.10, §5): a single
// owner of the scene, event bus, directivity/signal-source stores, the
// renderer/reproduction graph, the output patchbay, and the audio
// driver backend, following the teacher's managerImpl shape
// (internal/audiocore/manager.go) generalized from one audio-capture
// pipeline to this domain's render graph.
package core

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/va-core/va/internal/config"
	"github.com/va-core/va/internal/directivity"
	"github.com/va-core/va/internal/driver"
	"github.com/va-core/va/internal/events"
	"github.com/va-core/va/internal/logging"
	"github.com/va-core/va/internal/metrics"
	"github.com/va-core/va/internal/patchbay"
	"github.com/va-core/va/internal/renderer"
	"github.com/va-core/va/internal/reproduction"
	"github.com/va-core/va/internal/scene"
	"github.com/va-core/va/internal/signalsource"
	"github.com/va-core/va/internal/vaerrors"
)

// State is the core's coarse lifecycle state (spec §5 cancellation
// rules: "failure marks the core FAIL and refuses further use").
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateStopped
	StateFail
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	case StateFail:
		return "FAIL"
	default:
		return "CREATED"
	}
}

// Facade is the single owner of every manager and the render graph. It
// is the only type cmd/vaserver talks to directly; every control API
// call (directivity/signal-source/sound-source/receiver/scene/global
// per spec §6) is either a method here or a method on the scene
// transaction this facade hands out.
type Facade struct {
	Scene         *scene.Manager
	Events        *events.Manager
	Directivities *directivity.Manager
	Sources       *signalsource.Manager
	Patchbay      *patchbay.Patchbay
	Driver        driver.Backend
	Metrics       metrics.Recorder
	CPU           *metrics.CPUSampler
	Health        *HealthMonitor

	mu            sync.RWMutex
	renderers     map[string]renderer.Renderer
	reproductions map[string]reproduction.Reproduction

	globalMode atomic.Uint32

	thread *coreThread
	state  atomic.Int32

	logger *slog.Logger
}

// Config bundles the pieces of Settings the facade's lifecycle itself
// needs, independent of how the render graph was built (New vs.
// BuildFromSettings).
type Config struct {
	TriggerUpdateInterval time.Duration // core-thread wake period, spec §4.9/§6 "TriggerUpdateMilliseconds"
}

// New constructs a facade around already-built managers. Renderers and
// reproductions are added afterward via AddRenderer/AddReproduction
// (or in bulk via BuildFromSettings, which also constructs the
// managers themselves from config.Settings).
func New(cfg Config, scn *scene.Manager, bus *events.Manager, dirs *directivity.Manager, srcs *signalsource.Manager, pb *patchbay.Patchbay, drv driver.Backend, rec metrics.Recorder) *Facade {
	f := &Facade{
		Scene:         scn,
		Events:        bus,
		Directivities: dirs,
		Sources:       srcs,
		Patchbay:      pb,
		Driver:        drv,
		Metrics:       rec,
		renderers:     make(map[string]renderer.Renderer),
		reproductions: make(map[string]reproduction.Reproduction),
		logger:        logging.ForComponent("core"),
	}
	f.globalMode.Store(uint32(config.ModeAll))
	f.Health = NewHealthMonitor(HealthMonitorConfig{
		StaleTimeout:  2 * time.Second,
		CheckInterval: 500 * time.Millisecond,
	})

	if cfg.TriggerUpdateInterval <= 0 {
		cfg.TriggerUpdateInterval = 100 * time.Millisecond
	}
	f.thread = newCoreThread(f, cfg.TriggerUpdateInterval)
	scn.SetOnCommit(f.thread.wake)

	return f
}

// AddRenderer registers a renderer under name, reachable afterward for
// UpdateScene/UpdateGlobalAuralizationMode/Reset dispatch by the core
// thread. Safe to call before or after Start.
func (f *Facade) AddRenderer(name string, r renderer.Renderer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renderers[name] = r
}

// AddReproduction registers a reproduction under name, wired the same
// way as AddRenderer.
func (f *Facade) AddReproduction(name string, r reproduction.Reproduction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reproductions[name] = r
}

// Renderer and Reproduction look up a previously registered component
// by name, for module-call-style parameter access (spec §6 "modules:
// list, call").
func (f *Facade) Renderer(name string) (renderer.Renderer, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	r, ok := f.renderers[name]
	return r, ok
}

func (f *Facade) Reproduction(name string) (reproduction.Reproduction, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	r, ok := f.reproductions[name]
	return r, ok
}

func (f *Facade) forEachRenderer(fn func(renderer.Renderer)) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, r := range f.renderers {
		fn(r)
	}
}

func (f *Facade) forEachReproduction(fn func(reproduction.Reproduction)) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, r := range f.reproductions {
		fn(r)
	}
}

// SetGlobalAuralizationMode sets the unversioned global mask the core
// thread propagates to every renderer each iteration (spec §4.9 step
// 3). Takes effect on the next iteration, not immediately.
func (f *Facade) SetGlobalAuralizationMode(mask config.AuralizationMode) {
	f.globalMode.Store(uint32(mask))
}

func (f *Facade) globalAuralizationMode() config.AuralizationMode {
	return config.AuralizationMode(f.globalMode.Load())
}

// State reports the facade's coarse lifecycle state.
func (f *Facade) State() State { return State(f.state.Load()) }

// Start brings the engine up: the core thread, the CPU sampler, the
// health monitor, and the audio driver, in that order (driver last so
// the render graph is already live for its first callback).
func (f *Facade) Start(ctx context.Context) error {
	if !f.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) &&
		!f.state.CompareAndSwap(int32(StateStopped), int32(StateRunning)) {
		return vaerrors.Newf("core: cannot start from state %s", f.State()).
			Component("core").Kind(vaerrors.KindModalError).Build()
	}

	f.thread.start()
	if f.CPU != nil {
		f.CPU.Start()
	}
	f.Health.Start()

	if err := f.Driver.Initialize(); err != nil {
		f.state.Store(int32(StateFail))
		return vaerrors.New(err).Component("core").Kind(vaerrors.KindUnspecified).Build()
	}
	if err := f.Driver.StartStreaming(); err != nil {
		f.state.Store(int32(StateFail))
		return vaerrors.New(err).Component("core").Kind(vaerrors.KindUnspecified).Build()
	}

	f.Events.EnqueueEvent(events.Event{Type: events.TypeCoreInitialized, Sender: "core", Timestamp: eventTimestamp()})
	f.logger.Info("core started")
	return nil
}

// Reset is a hard cancel of the current scene (spec §5): it breaks the
// core thread's current iteration cooperatively, resets every
// renderer's per-scene state, and continues the core thread.
// Reproductions are not reset. It does not touch audio streaming.
func (f *Facade) Reset() error {
	if f.State() == StateFail {
		return vaerrors.Newf("core: Reset called while in FAIL state").
			Component("core").Kind(vaerrors.KindModalError).Build()
	}
	f.thread.pause()
	f.forEachRenderer(func(r renderer.Renderer) { r.Reset() })
	f.thread.resume()
	f.Events.EnqueueEvent(events.Event{Type: events.TypeCoreReset, Sender: "core", Timestamp: eventTimestamp()})
	return nil
}

// Finalize stops streaming, then the ticker/thread, then the
// managers. Repeated calls are no-ops after the first success; a
// failure here marks the core FAIL and refuses further use (spec §5).
func (f *Facade) Finalize() error {
	if !f.state.CompareAndSwap(int32(StateRunning), int32(StateStopped)) {
		return nil // already stopped/failed: no-op per spec §5
	}

	var errs []error
	if err := f.Driver.StopStreaming(); err != nil {
		errs = append(errs, err)
	}
	if err := f.Driver.Finalize(); err != nil {
		errs = append(errs, err)
	}

	f.thread.stop()
	if f.CPU != nil {
		f.CPU.Stop()
	}
	f.Health.Stop()
	f.Events.Shutdown(2 * time.Second)

	if len(errs) > 0 {
		f.state.Store(int32(StateFail))
		return vaerrors.New(errs[0]).Component("core").Kind(vaerrors.KindUnspecified).Build()
	}
	return nil
}

// eventTimestamp exists only so the single Date.now()-equivalent call
// site is easy to find; events.Event.Timestamp is set from wall-clock
// time at the moment an event is enqueued.
func eventTimestamp() time.Time { return time.Now() }
