package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/va-core/va/internal/logging"
)

// componentHealth tracks liveness for one named component via the
// staleness of its last reported sample, generalizing the teacher's
// silence-in-dB detection (internal/audiocore/health_monitor.go) from
// "audio level below a threshold" to "no RecordSample call within
// StaleTimeout" — this codebase has no audio level to watch on the
// control thread, only the cadence at which things like the core
// thread's iterate() report in.
type componentHealth struct {
	lastSampleTime time.Time
	lastValue      float64
	healthy        bool
}

// HealthMonitorConfig configures staleness detection.
type HealthMonitorConfig struct {
	StaleTimeout  time.Duration
	CheckInterval time.Duration
}

// HealthMonitor watches a set of named components (the core thread,
// and any renderer/reproduction that chooses to report in) for
// staleness, logging a warning the first time a component goes quiet
// for longer than StaleTimeout.
type HealthMonitor struct {
	staleTimeout  time.Duration
	checkInterval time.Duration

	components map[string]*componentHealth
	mu         sync.RWMutex
	logger     *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewHealthMonitor constructs a monitor; call Start to begin the
// staleness-check loop.
func NewHealthMonitor(cfg HealthMonitorConfig) *HealthMonitor {
	return &HealthMonitor{
		staleTimeout:  cfg.StaleTimeout,
		checkInterval: cfg.CheckInterval,
		components:    make(map[string]*componentHealth),
		logger:        logging.ForComponent("core.health"),
	}
}

// RecordSample reports that name produced value (for the core thread,
// its iteration duration in seconds) just now, refreshing its
// staleness clock and marking it healthy again if it had gone stale.
func (h *HealthMonitor) RecordSample(name string, value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.components[name]
	if !ok {
		c = &componentHealth{healthy: true}
		h.components[name] = c
	}
	c.lastSampleTime = time.Now()
	c.lastValue = value
	if !c.healthy {
		h.logger.Info("component recovered", "component", name)
	}
	c.healthy = true
}

// IsHealthy reports whether name has reported within StaleTimeout.
// Unknown components report unhealthy (false, false): nothing has
// recorded a sample for them yet.
func (h *HealthMonitor) IsHealthy(name string) (healthy bool, known bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.components[name]
	if !ok {
		return false, false
	}
	return c.healthy, true
}

// AllHealth returns a snapshot of every component's current health.
func (h *HealthMonitor) AllHealth() map[string]bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]bool, len(h.components))
	for name, c := range h.components {
		out[name] = c.healthy
	}
	return out
}

// Start begins the staleness-check loop on a background goroutine.
func (h *HealthMonitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})
	go h.run(ctx)
}

// Stop halts the loop and waits for the goroutine to exit.
func (h *HealthMonitor) Stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	<-h.done
}

func (h *HealthMonitor) run(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.checkAll()
		}
	}
}

func (h *HealthMonitor) checkAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	for name, c := range h.components {
		if !c.healthy {
			continue
		}
		if now.Sub(c.lastSampleTime) > h.staleTimeout {
			c.healthy = false
			h.logger.Warn("component stale", "component", name, "last_value", c.lastValue)
		}
	}
}
