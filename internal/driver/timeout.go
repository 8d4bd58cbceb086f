package driver

import (
	"time"

	"github.com/va-core/va/internal/audio"
)

// TimeoutBackend is the synthetic ticker variant (spec §4.8): not
// phase-locked to any real audio clock, it advances the graph at a
// fixed wall-clock rate on its own goroutine — used for GUI-free debug
// builds where no sound card (real or virtual) is available.
type TimeoutBackend struct {
	base

	period time.Duration
	stop   chan struct{}
	done   chan struct{}
	out    audio.Block
}

// NewTimeoutBackend constructs a ticker-driven backend advancing the
// graph every period, regardless of props.SampleRate/BlockSize's
// nominal real-time rate.
func NewTimeoutBackend(props StreamProperties, inputChannels int, period time.Duration) *TimeoutBackend {
	return &TimeoutBackend{
		base:   newBase(props, inputChannels),
		period: period,
		out:    audio.NewBlock(props.NumChannels, props.BlockSize),
	}
}

func (t *TimeoutBackend) Initialize() error { return nil }

func (t *TimeoutBackend) Finalize() error {
	if t.IsStreaming() {
		return t.StopStreaming()
	}
	return nil
}

func (t *TimeoutBackend) StartStreaming() error {
	if !t.streaming.CompareAndSwap(false, true) {
		return errAlreadyStreaming("timeout backend")
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.run()
	return nil
}

func (t *TimeoutBackend) StopStreaming() error {
	if !t.streaming.CompareAndSwap(true, false) {
		return errNotStreaming("timeout backend")
	}
	close(t.stop)
	<-t.done
	return nil
}

func (t *TimeoutBackend) run() {
	defer close(t.done)
	ticker := time.NewTicker(t.period)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.runCycle(t.out)
		}
	}
}
