package signalsource

import (
	"sync"

	"github.com/va-core/va/internal/audio"
)

// TTSSource plays back a single pre-synthesized utterance once,
// non-looping, then falls silent. The speech-synthesis engine itself
// is an external collaborator (spec §1 Non-goals list language
// bindings/third-party synthesis as out of scope); this source only
// owns buffering and playout of whatever PCM the engine produces.
type TTSSource struct {
	id string

	mu      sync.Mutex
	samples []float32
	cursor  int
	playing bool

	last audio.Block
}

func NewTTSSource(id string, blockSize int) *TTSSource {
	return &TTSSource{id: id, last: audio.NewBlock(1, blockSize)}
}

func (s *TTSSource) ID() string            { return s.id }
func (s *TTSSource) Mnemonic() string       { return "tts" }
func (s *TTSSource) Close() error           { return nil }
func (s *TTSSource) lastBlock() audio.Block { return s.last }

// SetUtterance loads a new utterance and starts playback immediately,
// replacing whatever was previously queued (control thread).
func (s *TTSSource) SetUtterance(samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = samples
	s.cursor = 0
	s.playing = len(samples) > 0
}

// IsPlaying reports whether the current utterance hasn't finished.
func (s *TTSSource) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *TTSSource) FetchBlock(_ audio.Block) audio.Block {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.last.Channel(0)
	if !s.playing {
		for i := range out {
			out[i] = 0
		}
		return s.last
	}

	for i := range out {
		if s.cursor >= len(s.samples) {
			out[i] = 0
			continue
		}
		out[i] = s.samples[s.cursor]
		s.cursor++
	}
	if s.cursor >= len(s.samples) {
		s.playing = false
	}
	return s.last
}
