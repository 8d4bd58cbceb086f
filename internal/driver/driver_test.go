package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/va-core/va/internal/audio"
)

const (
	testSampleRate = 44100.0
	testBlockSize  = 32
)

type constantSource struct {
	numChannels int
	value       float32
}

func (c constantSource) NumChannels() int { return c.numChannels }
func (c constantSource) Process(out audio.Block) {
	for ch := 0; ch < out.NumChannels(); ch++ {
		row := out.Channel(ch)
		for i := range row {
			row[i] = c.value
		}
	}
}

func testProps() StreamProperties {
	return StreamProperties{SampleRate: testSampleRate, BlockSize: testBlockSize, NumChannels: 2}
}

func TestVirtualBackendTriggerBlockRequiresStreaming(t *testing.T) {
	v := NewVirtualBackend(testProps(), 1)
	_, err := v.TriggerBlock()
	assert.Error(t, err)
}

func TestVirtualBackendPullsOutputDatasource(t *testing.T) {
	v := NewVirtualBackend(testProps(), 1)
	v.SetOutputStreamDatasource(constantSource{numChannels: 2, value: 0.75})

	require.NoError(t, v.StartStreaming())
	out, err := v.TriggerBlock()
	require.NoError(t, err)
	assert.Equal(t, float32(0.75), out.Channel(0)[0])
	assert.Equal(t, float32(0.75), out.Channel(1)[0])

	assert.Error(t, v.StartStreaming(), "starting twice should fail")
	require.NoError(t, v.StopStreaming())
	assert.Error(t, v.StopStreaming(), "stopping twice should fail")
}

func TestVirtualBackendSilentWithoutDatasource(t *testing.T) {
	v := NewVirtualBackend(testProps(), 1)
	require.NoError(t, v.StartStreaming())
	out, err := v.TriggerBlock()
	require.NoError(t, err)
	for _, s := range out.Channel(0) {
		assert.Zero(t, s)
	}
}

func TestVirtualBackendPreProcessHookSeesFedInput(t *testing.T) {
	v := NewVirtualBackend(testProps(), 1)
	var seen []float32
	v.SetPreProcessHook(func(in audio.Block) {
		seen = append([]float32(nil), in.Channel(0)...)
	})
	v.SetOutputStreamDatasource(constantSource{numChannels: 2, value: 0})

	fed := audio.NewBlock(1, testBlockSize)
	fed.Channel(0)[0] = 1.25
	v.FeedInput(fed)

	require.NoError(t, v.StartStreaming())
	_, err := v.TriggerBlock()
	require.NoError(t, err)

	require.Len(t, seen, testBlockSize)
	assert.Equal(t, float32(1.25), seen[0])
}

func TestVirtualBackendInputStreamDatasourceReflectsLastCapture(t *testing.T) {
	v := NewVirtualBackend(testProps(), 1)
	v.SetOutputStreamDatasource(constantSource{numChannels: 2, value: 0})
	fed := audio.NewBlock(1, testBlockSize)
	fed.Channel(0)[0] = 0.5
	v.FeedInput(fed)
	require.NoError(t, v.StartStreaming())
	_, err := v.TriggerBlock()
	require.NoError(t, err)

	snapshot := audio.NewBlock(1, testBlockSize)
	v.GetInputStreamDatasource().Process(snapshot)
	assert.Equal(t, float32(0.5), snapshot.Channel(0)[0])
}

func TestTimeoutBackendRunsOnItsOwnTicker(t *testing.T) {
	defer goleak.VerifyNone(t)

	tb := NewTimeoutBackend(testProps(), 0, 2*time.Millisecond)
	calls := make(chan struct{}, 8)
	tb.SetOutputStreamDatasource(countingDatasource{calls: calls})

	require.NoError(t, tb.StartStreaming())
	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("timeout backend never invoked its output datasource")
	}
	require.NoError(t, tb.StopStreaming())
	assert.NoError(t, tb.Finalize())
}

func TestTimeoutBackendStopRequiresStreaming(t *testing.T) {
	tb := NewTimeoutBackend(testProps(), 0, time.Second)
	assert.Error(t, tb.StopStreaming())
}

type countingDatasource struct {
	calls chan struct{}
}

func (c countingDatasource) NumChannels() int { return 2 }
func (c countingDatasource) Process(out audio.Block) {
	out.Zero()
	select {
	case c.calls <- struct{}{}:
	default:
	}
}
