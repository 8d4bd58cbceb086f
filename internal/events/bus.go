package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/va-core/va/internal/logging"
)

// Config controls the event manager's buffering and worker count.
type Config struct {
	OuterBufferSize int // producer-side queue depth; EnqueueEvent never blocks past this
	Workers         int
}

// DefaultConfig mirrors the teacher's defaults, sized for a much lower
// event rate than an ML detector's per-frame errors.
func DefaultConfig() Config {
	return Config{OuterBufferSize: 2048, Workers: 1}
}

// Stats reports cumulative bus counters.
type Stats struct {
	Enqueued uint64
	Dropped  uint64
	Handled  uint64
	Errors   uint64
}

// Manager is the event distribution subsystem (spec §4.10): an outer
// queue publishers write into (EnqueueEvent, never blocks; an event is
// dropped when the queue is full), drained directly by Config.Workers
// worker goroutines (one by default), each dispatching the events it
// takes to every handler. There is no second, inner queue.
type Manager struct {
	outer chan Event

	mu       sync.RWMutex
	handlers []Handler

	nextID atomic.Uint64
	stats  Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *slog.Logger
}

// NewManager constructs and starts the event manager's worker(s).
func NewManager(cfg Config) *Manager {
	if cfg.OuterBufferSize <= 0 {
		cfg.OuterBufferSize = 2048
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		outer:  make(chan Event, cfg.OuterBufferSize),
		ctx:    ctx,
		cancel: cancel,
		logger: logging.ForComponent("events"),
	}

	for i := 0; i < cfg.Workers; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}

	return m
}

// RegisterHandler adds a handler. Safe to call concurrently with
// EnqueueEvent.
func (m *Manager) RegisterHandler(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
	m.logger.Info("registered event handler", "handler", h.Name())
}

// EnqueueEvent is the producer-side, non-blocking publish call. If the
// outer buffer is full the event is dropped and counted, never
// blocking the caller (which may be a control thread mid sync-mod, or
// the core thread).
func (m *Manager) EnqueueEvent(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	select {
	case m.outer <- e:
		atomic.AddUint64(&m.stats.Enqueued, 1)
	default:
		atomic.AddUint64(&m.stats.Dropped, 1)
		m.logger.Warn("event dropped, outer queue full", "type", e.Type)
	}
}

// EnqueueBatch enqueues events broadcast together at the end of a
// sync-mod transaction (spec §5: "events enqueued inside a sync-mod
// window are broadcast after the state becomes visible").
func (m *Manager) EnqueueBatch(events []Event) {
	for _, e := range events {
		m.EnqueueEvent(e)
	}
}

func (m *Manager) worker(id int) {
	defer m.wg.Done()
	logger := m.logger.With("worker", id)

	for {
		select {
		case <-m.ctx.Done():
			return
		case e, ok := <-m.outer:
			if !ok {
				return
			}
			e.ID = m.nextID.Add(1)
			m.dispatch(e, logger)
		}
	}
}

func (m *Manager) dispatch(e Event, logger *slog.Logger) {
	m.mu.RLock()
	handlers := make([]Handler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.RUnlock()

	for _, h := range handlers {
		m.runHandler(h, e, logger)
	}
}

func (m *Manager) runHandler(h Handler, e Event, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddUint64(&m.stats.Errors, 1)
			logger.Error("event handler panicked", "handler", h.Name(), "panic", r, "type", e.Type)
		}
	}()

	if err := h.Handle(e); err != nil {
		atomic.AddUint64(&m.stats.Errors, 1)
		logger.Error("event handler returned error", "handler", h.Name(), "error", err, "type", e.Type)
		return
	}
	atomic.AddUint64(&m.stats.Handled, 1)
}

// Stats returns a snapshot of bus counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Enqueued: atomic.LoadUint64(&m.stats.Enqueued),
		Dropped:  atomic.LoadUint64(&m.stats.Dropped),
		Handled:  atomic.LoadUint64(&m.stats.Handled),
		Errors:   atomic.LoadUint64(&m.stats.Errors),
	}
}

// Shutdown stops the worker(s), waiting up to timeout for the queue to drain.
func (m *Manager) Shutdown(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		close(m.outer)
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		m.cancel()
		m.logger.Warn("event manager shutdown timed out, forcing worker stop")
	}
}
