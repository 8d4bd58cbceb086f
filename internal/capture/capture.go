// Package capture implements the recording paths SPEC_FULL.md's
// persisted-state section names (RecordInput/RecordOutput config
// keys): WAV writers that tap a driver's input stream, a driver's
// output stream, or a single reproduction's output, without disturbing
// the audio-thread pull they observe.
package capture

import (
	"io"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	vaaudio "github.com/va-core/va/internal/audio"
	"github.com/va-core/va/internal/vaerrors"
)

// Recorder captures one audio.Block-producing tap to a WAV file. It
// is driven by feeding it the same blocks the tapped stage already
// produces — Recorder itself never pulls — so recording never changes
// how many times a signal source, renderer, or reproduction is read
// per block (spec §5).
type Recorder struct {
	mu      sync.Mutex
	enc     *wav.Encoder
	file    io.WriteCloser
	scratch *audio.IntBuffer
	closed  bool
}

// NewRecorder opens path and starts a PCM16 WAV recording at the given
// format. Grounded on the teacher's own go-audio/wav usage for
// decoding (internal/signalsource's audiofile loader); the encoder
// side mirrors it symmetrically.
func NewRecorder(path string, sampleRate, numChannels int) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, vaerrors.Newf("capture: create %q: %w", path, err).
			Component("capture").Kind(vaerrors.KindFileNotFound).Build()
	}
	enc := wav.NewEncoder(f, sampleRate, 16, numChannels, 1)
	return &Recorder{
		enc:  enc,
		file: f,
		scratch: &audio.IntBuffer{
			Format: &audio.Format{SampleRate: sampleRate, NumChannels: numChannels},
			SourceBitDepth: 16,
		},
	}, nil
}

// WriteBlock interleaves and quantizes one block of float32 samples
// in [-1,1] to 16-bit PCM and appends it to the file.
func (r *Recorder) WriteBlock(block vaaudio.Block) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return vaerrors.Newf("capture: write after close").
			Component("capture").Kind(vaerrors.KindModalError).Build()
	}

	numChannels := block.NumChannels()
	blockSize := block.BlockSize()
	interleaved := make([]int, numChannels*blockSize)
	for ch := 0; ch < numChannels; ch++ {
		row := block.Channel(ch)
		for i, s := range row {
			interleaved[i*numChannels+ch] = floatToPCM16(s)
		}
	}
	r.scratch.Data = interleaved
	if err := r.enc.Write(r.scratch); err != nil {
		return vaerrors.Newf("capture: write block: %w", err).
			Component("capture").Kind(vaerrors.KindUnspecified).Build()
	}
	return nil
}

// Close finalizes the WAV header and underlying file. Idempotent.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.enc.Close(); err != nil {
		_ = r.file.Close()
		return vaerrors.Newf("capture: close encoder: %w", err).
			Component("capture").Kind(vaerrors.KindUnspecified).Build()
	}
	return r.file.Close()
}

func floatToPCM16(s float32) int {
	v := s * 32767.0
	if v > 32767.0 {
		v = 32767.0
	} else if v < -32768.0 {
		v = -32768.0
	}
	return int(v)
}
