package capture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/va-core/va/internal/audio"
)

func TestRecorderWritesNonEmptyWAVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	rec, err := NewRecorder(path, 44100, 2)
	require.NoError(t, err)

	block := audio.NewBlock(2, 16)
	for ch := 0; ch < 2; ch++ {
		row := block.Channel(ch)
		for i := range row {
			row[i] = 0.5
		}
	}
	require.NoError(t, rec.WriteBlock(block))
	require.NoError(t, rec.WriteBlock(block))
	require.NoError(t, rec.Close())
	assert.NoError(t, rec.Close(), "Close must be idempotent")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(44), "file should contain more than just a WAV header")
}

func TestRecorderRejectsWriteAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	rec, err := NewRecorder(path, 44100, 1)
	require.NoError(t, err)
	require.NoError(t, rec.Close())

	block := audio.NewBlock(1, 4)
	assert.Error(t, rec.WriteBlock(block))
}

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

func TestTapPassesThroughWhileRecording(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tap.wav")
	rec, err := NewRecorder(path, 44100, 1)
	require.NoError(t, err)

	tap := NewTap(constantSource{numChannels: 1, value: 0.25}, rec, nil)
	out := audio.NewBlock(1, 8)
	tap.Process(out)
	assert.Equal(t, float32(0.25), out.Channel(0)[0])

	require.NoError(t, rec.Close())
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(44))
}
