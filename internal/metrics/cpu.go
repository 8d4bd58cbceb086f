package metrics

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/va-core/va/internal/logging"
)

// CPUSampler periodically samples host CPU load and reports it to a
// Recorder, backing the event payload's CPU load field (spec §6) and
// the core thread's resource-monitoring supplement (SPEC_FULL.md §C).
// It runs on its own ticker, independent of the core thread and audio
// thread's own timing.
type CPUSampler struct {
	recorder Recorder
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCPUSampler constructs a sampler reporting into recorder every interval.
func NewCPUSampler(recorder Recorder, interval time.Duration) *CPUSampler {
	return &CPUSampler{recorder: recorder, interval: interval}
}

// Start begins sampling on a background goroutine. Safe to call once;
// call Stop to release it.
func (s *CPUSampler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
}

// Stop halts sampling and waits for the goroutine to exit.
func (s *CPUSampler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *CPUSampler) run(ctx context.Context) {
	defer close(s.done)
	logger := logging.ForComponent("metrics")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			percents, err := cpu.PercentWithContext(ctx, 0, false)
			if err != nil {
				logger.Warn("cpu sampling failed", "error", err)
				continue
			}
			if len(percents) > 0 {
				s.recorder.SetCPULoad(percents[0])
			}
		}
	}
}
