package audio

import (
	"sync"
	"time"
)

// StreamState is the monotonic per-block counter and streaming flag the
// audio thread advances once per pull, and that control threads wait on
// via SyncSignalSources (spec §4.2/§5).
type StreamState struct {
	mu        sync.Mutex
	cond      *sync.Cond
	counter   uint64
	streaming bool
}

func NewStreamState() *StreamState {
	s := &StreamState{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Advance is called by the audio thread exactly once per completed block.
func (s *StreamState) Advance() {
	s.mu.Lock()
	s.counter++
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Counter returns the current block counter.
func (s *StreamState) Counter() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

// SetStreaming marks whether the driver is actively streaming blocks.
// WaitPast short-circuits when this is false, per spec §4.2.
func (s *StreamState) SetStreaming(v bool) {
	s.mu.Lock()
	s.streaming = v
	s.mu.Unlock()
	if !v {
		s.cond.Broadcast()
	}
}

func (s *StreamState) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// WaitPast blocks until the counter has advanced beyond prior, the
// driver stops streaming, or timeout elapses. Returns true if the
// counter advanced (or streaming was already off), false on timeout.
func (s *StreamState) WaitPast(prior uint64, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.streaming {
		return true
	}

	deadline := time.Now().Add(timeout)
	for s.counter <= prior && s.streaming {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		waitWithTimeout(s.cond, remaining)
	}
	return true
}

// waitWithTimeout wakes the cond-wait early via a timer goroutine; Go's
// sync.Cond has no native timed wait.
func waitWithTimeout(cond *sync.Cond, d time.Duration) {
	timer := time.AfterFunc(d, func() {
		cond.L.Lock()
		cond.Broadcast()
		cond.L.Unlock()
	})
	defer timer.Stop()
	cond.Wait()
}
