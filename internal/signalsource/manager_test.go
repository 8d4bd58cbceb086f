package signalsource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/va-core/va/internal/audio"
)

func newTestManager(t *testing.T) (*Manager, *audio.StreamState) {
	t.Helper()
	stream := audio.NewStreamState()
	stream.SetStreaming(true)
	return NewManager(4, stream), stream
}

func TestManagerRegistersAndFetches(t *testing.T) {
	m, _ := newTestManager(t)

	src := NewSynthSource(m.allocateID("synth"), 44100, m.BlockSize(), SynthSine, 1000, 1.0)
	m.register(src)

	deviceIn := audio.Block{}
	m.FetchInputData(deviceIn)

	blk := m.GetSourceBlock(src.ID())
	assert.Equal(t, 4, blk.BlockSize())
}

func TestManagerEmptyIDYieldsSilence(t *testing.T) {
	m, _ := newTestManager(t)
	blk := m.GetSourceBlock("")
	assert.Equal(t, float32(0), blk.Channel(0)[0])
}

func TestManagerUnknownIDYieldsSilence(t *testing.T) {
	m, _ := newTestManager(t)
	m.FetchInputData(audio.Block{})
	blk := m.GetSourceBlock("nope1")
	for _, v := range blk.Channel(0) {
		assert.Equal(t, float32(0), v)
	}
}

func TestManagerDeleteRefusedWhileReferenced(t *testing.T) {
	m, _ := newTestManager(t)
	src := NewSynthSource(m.allocateID("synth"), 44100, m.BlockSize(), SynthSine, 440, 1.0)
	m.register(src)
	m.FetchInputData(audio.Block{})

	m.BindRef(src.ID())
	err := m.Delete(context.Background(), src.ID())
	assert.Error(t, err)
}

func TestManagerDeleteCompletesAfterBlockWithoutSource(t *testing.T) {
	m, _ := newTestManager(t)
	src := NewSynthSource(m.allocateID("synth"), 44100, m.BlockSize(), SynthSine, 440, 1.0)
	m.register(src)
	m.FetchInputData(audio.Block{}) // pick up registration

	done := make(chan error, 1)
	go func() {
		done <- m.Delete(context.Background(), src.ID())
	}()

	// Give the delete request time to land in the queue, then drive
	// the audio thread forward; the manager must drain the delete
	// request and exclude the source from this very block before the
	// control thread unblocks.
	time.Sleep(10 * time.Millisecond)
	m.FetchInputData(audio.Block{})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Delete did not complete")
	}

	_, stillWorking := m.working[src.ID()]
	assert.False(t, stillWorking)
}

func TestAudioFileStateMachineStoppedPlay(t *testing.T) {
	samples := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	src := NewAudioFileSource("audiofile0", samples, 4)

	assert.Equal(t, StateStopped, src.State())
	src.RequestAction(ActionPlay)
	blk := src.FetchBlock(audio.Block{})
	assert.Equal(t, StatePlaying, src.State())
	assert.Equal(t, []float32{1, 2, 3, 4}, blk.Channel(0))
}

func TestAudioFileStoppedPauseQuirk(t *testing.T) {
	samples := []float32{1, 2, 3, 4}
	src := NewAudioFileSource("audiofile1", samples, 4)

	src.RequestAction(ActionPause)
	src.FetchBlock(audio.Block{})
	assert.Equal(t, StatePlaying, src.State())
}

func TestAudioFileLoopAtEOF(t *testing.T) {
	samples := []float32{1, 2}
	src := NewAudioFileSource("audiofile2", samples, 4)
	src.SetLoop(true)
	src.RequestAction(ActionPlay)

	blk := src.FetchBlock(audio.Block{})
	assert.Equal(t, []float32{1, 2, 1, 2}, blk.Channel(0))
	assert.Equal(t, StatePlaying, src.State())
}

func TestAudioFileStopsAtEOFWithoutLoop(t *testing.T) {
	samples := []float32{1, 2}
	src := NewAudioFileSource("audiofile3", samples, 4)
	src.RequestAction(ActionPlay)

	blk := src.FetchBlock(audio.Block{})
	assert.Equal(t, []float32{1, 2, 0, 0}, blk.Channel(0))
	assert.Equal(t, StateStopped, src.State())
}

func TestAudioFileFrozenSuppressesTransitions(t *testing.T) {
	samples := []float32{1, 2, 3, 4}
	src := NewAudioFileSource("audiofile4", samples, 4)
	src.SetFrozen(true)

	src.RequestAction(ActionPlay)
	src.FetchBlock(audio.Block{})
	assert.Equal(t, StateStopped, src.State())
}

func TestAudioFileCursorClamping(t *testing.T) {
	samples := make([]float32, 100)
	src := NewAudioFileSource("audiofile5", samples, 4)

	src.SetCursorSeconds(-5, 10)
	assert.Equal(t, 0, src.cursor)

	src.SetCursorSeconds(1000, 10)
	assert.Equal(t, 100, src.cursor)
}
