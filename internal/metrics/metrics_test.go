package metrics

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorderRegistersAgainstProvidedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewPrometheusRecorder(reg)

	r.RecordOperation("render", "success")
	r.RecordDuration("render", 0.002)
	r.RecordError("render", "missing_directivity")
	r.RecordPoolHit("block", true)
	r.RecordPoolHit("block", false)
	r.SetCPULoad(42.5)

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}

	require.Contains(t, byName, "va_core_operations_total")
	require.Contains(t, byName, "va_core_operation_duration_seconds")
	require.Contains(t, byName, "va_core_errors_total")
	require.Contains(t, byName, "va_pool_acquire_total")
	require.Contains(t, byName, "va_host_cpu_load_percent")

	cpuFamily := byName["va_host_cpu_load_percent"]
	require.Len(t, cpuFamily.GetMetric(), 1)
	assert.InDelta(t, 42.5, cpuFamily.GetMetric()[0].GetGauge().GetValue(), 1e-9)

	poolFamily := byName["va_pool_acquire_total"]
	require.Len(t, poolFamily.GetMetric(), 2)
}

func TestTestRecorderRecordOperation(t *testing.T) {
	r := NewTestRecorder()
	r.RecordOperation("render", "success")
	r.RecordOperation("render", "success")
	r.RecordOperation("render", "error")
	r.RecordOperation("scene_update", "success")

	assert.Equal(t, 2, r.GetOperationCount("render", "success"))
	assert.Equal(t, 1, r.GetOperationCount("render", "error"))
	assert.Equal(t, 1, r.GetOperationCount("scene_update", "success"))
	assert.Equal(t, 0, r.GetOperationCount("scene_update", "error"))
}

func TestTestRecorderRecordDuration(t *testing.T) {
	r := NewTestRecorder()
	r.RecordDuration("render", 0.001)
	r.RecordDuration("render", 0.002)
	r.RecordDuration("scene_update", 0.005)

	renderDurations := r.GetDurations("render")
	require.Len(t, renderDurations, 2)
	assert.InDelta(t, 0.001, renderDurations[0], 1e-9)
	assert.InDelta(t, 0.002, renderDurations[1], 1e-9)

	assert.Nil(t, r.GetDurations("nonexistent"))
}

func TestTestRecorderRecordError(t *testing.T) {
	r := NewTestRecorder()
	r.RecordError("render", "missing_directivity")
	r.RecordError("render", "missing_directivity")
	r.RecordError("render", "clustering_overflow")

	assert.Equal(t, 2, r.GetErrorCount("render", "missing_directivity"))
	assert.Equal(t, 1, r.GetErrorCount("render", "clustering_overflow"))
	assert.Equal(t, 0, r.GetErrorCount("render", "other"))
}

func TestTestRecorderRecordPoolHit(t *testing.T) {
	r := NewTestRecorder()
	r.RecordPoolHit("block", true)
	r.RecordPoolHit("block", true)
	r.RecordPoolHit("block", false)

	hits, misses := r.GetPoolHits("block")
	assert.Equal(t, 2, hits)
	assert.Equal(t, 1, misses)
}

func TestTestRecorderThreadSafety(t *testing.T) {
	r := NewTestRecorder()
	done := make(chan struct{})
	const goroutines = 10
	const perGoroutine = 100

	for range goroutines {
		go func() {
			defer func() { done <- struct{}{} }()
			for range perGoroutine {
				r.RecordOperation("concurrent", "success")
				r.RecordDuration("concurrent", 0.001)
				r.RecordError("concurrent", "test")
				r.RecordPoolHit("concurrent", true)
			}
		}()
	}
	for range goroutines {
		<-done
	}

	assert.Equal(t, goroutines*perGoroutine, r.GetOperationCount("concurrent", "success"))
	assert.Len(t, r.GetDurations("concurrent"), goroutines*perGoroutine)
	assert.Equal(t, goroutines*perGoroutine, r.GetErrorCount("concurrent", "test"))
}

// countingCPURecorder counts SetCPULoad calls so a reported sample can
// be told apart from the TestRecorder's zero initial value.
type countingCPURecorder struct {
	*TestRecorder
	cpuCalls atomic.Int32
}

func (c *countingCPURecorder) SetCPULoad(percent float64) {
	c.cpuCalls.Add(1)
	c.TestRecorder.SetCPULoad(percent)
}

func TestCPUSamplerReportsIntoRecorder(t *testing.T) {
	r := &countingCPURecorder{TestRecorder: NewTestRecorder()}
	sampler := NewCPUSampler(r, 5*time.Millisecond)
	sampler.Start()
	defer sampler.Stop()

	require.Eventually(t, func() bool {
		return r.cpuCalls.Load() > 0 && r.GetCPULoad() >= 0
	}, time.Second, 5*time.Millisecond, "CPU sampler should report a non-negative load within a second")
}
