package metrics

import "sync"

// TestRecorder is an in-memory Recorder double, grounded on the
// teacher's own observability/metrics.TestRecorder shape (operation
// counts keyed by status, recorded durations, error counts keyed by
// type), used in this codebase's own tests instead of standing up a
// real Prometheus registry per test.
type TestRecorder struct {
	mu         sync.Mutex
	operations map[string]int
	durations  map[string][]float64
	errors     map[string]int
	poolHits   map[string]int
	poolMisses map[string]int
	cpuLoad    float64
}

// NewTestRecorder constructs an empty in-memory recorder.
func NewTestRecorder() *TestRecorder {
	return &TestRecorder{
		operations: make(map[string]int),
		durations:  make(map[string][]float64),
		errors:     make(map[string]int),
		poolHits:   make(map[string]int),
		poolMisses: make(map[string]int),
	}
}

func opKey(operation, status string) string { return operation + "|" + status }

func (r *TestRecorder) RecordOperation(operation, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations[opKey(operation, status)]++
}

func (r *TestRecorder) RecordDuration(operation string, seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations[operation] = append(r.durations[operation], seconds)
}

func (r *TestRecorder) RecordError(operation, errorType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[opKey(operation, errorType)]++
}

func (r *TestRecorder) RecordPoolHit(pool string, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.poolHits[pool]++
	} else {
		r.poolMisses[pool]++
	}
}

func (r *TestRecorder) SetCPULoad(percent float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cpuLoad = percent
}

func (r *TestRecorder) GetOperationCount(operation, status string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.operations[opKey(operation, status)]
}

func (r *TestRecorder) GetDurations(operation string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.durations[operation]
}

func (r *TestRecorder) GetErrorCount(operation, errorType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errors[opKey(operation, errorType)]
}

func (r *TestRecorder) GetPoolHits(pool string) (hits, misses int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.poolHits[pool], r.poolMisses[pool]
}

func (r *TestRecorder) GetCPULoad() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cpuLoad
}
