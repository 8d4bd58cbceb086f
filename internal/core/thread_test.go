package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoreThreadWakeCoalescesBetweenIterations(t *testing.T) {
	f := newTestFacade(t)
	r := &countingRenderer{}
	f.AddRenderer("test", r)

	// A long ticker period isolates wake-driven iterations from the
	// ticker fallback for this assertion.
	f.thread.period = time.Hour

	f.thread.wake()
	f.thread.wake()
	f.thread.wake()

	// wake() is non-blocking/coalescing: three calls before the thread
	// even starts should still only produce at most one buffered signal.
	f.thread.start()
	t.Cleanup(f.thread.stop)

	require.Eventually(t, func() bool { return r.scenes >= 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(r.modes) >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, len(r.modes), "three wakes before start must run exactly one iteration")
}

func TestCoreThreadTickerFallbackRunsWithoutCommits(t *testing.T) {
	f := newTestFacade(t)
	r := &countingRenderer{}
	f.AddRenderer("test", r)
	f.thread.period = 5 * time.Millisecond

	f.thread.start()
	t.Cleanup(f.thread.stop)

	require.Eventually(t, func() bool { return len(r.modes) >= 2 }, time.Second, 5*time.Millisecond)
}

func TestCoreThreadPauseResumeBlocksIteration(t *testing.T) {
	f := newTestFacade(t)
	r := &countingRenderer{}
	f.AddRenderer("test", r)
	f.thread.period = 5 * time.Millisecond
	f.thread.start()
	t.Cleanup(f.thread.stop)

	require.Eventually(t, func() bool { return len(r.modes) >= 1 }, time.Second, 5*time.Millisecond)

	f.thread.pause()
	before := len(r.modes)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, before, len(r.modes), "no iteration should run while paused")

	f.thread.resume()
	require.Eventually(t, func() bool { return len(r.modes) > before }, time.Second, 5*time.Millisecond)
}

func TestCoreThreadStopIsIdempotent(t *testing.T) {
	f := newTestFacade(t)
	f.thread.start()
	f.thread.stop()
	assert.NotPanics(t, f.thread.stop)
}

func TestCoreThreadSkipsUpdateSceneWhenSceneIDUnchanged(t *testing.T) {
	f := newTestFacade(t)
	r := &countingRenderer{}
	f.AddRenderer("test", r)
	f.thread.period = 5 * time.Millisecond
	f.thread.start()
	t.Cleanup(f.thread.stop)

	require.Eventually(t, func() bool { return len(r.modes) >= 3 }, time.Second, 5*time.Millisecond)
	// Global mode propagates every iteration, but with no commits in
	// between, UpdateScene must not fire more than once.
	assert.Equal(t, 1, r.scenes)
}
