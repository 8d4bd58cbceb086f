package signalsource

import (
	"sync"

	"github.com/va-core/va/internal/audio"
)

// SequencerSource plays an ordered list of clips (named PCM buffers)
// back to back, advancing to the next clip once the current one is
// exhausted, optionally looping the whole sequence.
type SequencerSource struct {
	id string

	mu     sync.Mutex
	clips  [][]float32
	clip   int
	cursor int
	loop   bool

	last audio.Block
}

func NewSequencerSource(id string, clips [][]float32, loop bool, blockSize int) *SequencerSource {
	return &SequencerSource{
		id:    id,
		clips: clips,
		loop:  loop,
		last:  audio.NewBlock(1, blockSize),
	}
}

func (s *SequencerSource) ID() string            { return s.id }
func (s *SequencerSource) Mnemonic() string       { return "seq" }
func (s *SequencerSource) Close() error           { return nil }
func (s *SequencerSource) lastBlock() audio.Block { return s.last }

// Enqueue appends a clip to the sequence (control thread).
func (s *SequencerSource) Enqueue(clip []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clips = append(s.clips, clip)
}

func (s *SequencerSource) FetchBlock(_ audio.Block) audio.Block {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.last.Channel(0)
	for i := range out {
		out[i] = s.nextSampleLocked()
	}
	return s.last
}

func (s *SequencerSource) nextSampleLocked() float32 {
	for {
		if s.clip >= len(s.clips) {
			if s.loop && len(s.clips) > 0 {
				s.clip = 0
				s.cursor = 0
				continue
			}
			return 0
		}
		clip := s.clips[s.clip]
		if s.cursor >= len(clip) {
			s.clip++
			s.cursor = 0
			continue
		}
		v := clip[s.cursor]
		s.cursor++
		return v
	}
}
