package signalsource

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/va-core/va/internal/audio"
)

// SynthKind selects the waveform profile for a SynthSource, covering
// spec §3's "synthesis (engine, jet, machine)" family as parameter
// presets of one additive/noise oscillator rather than three separate
// implementations — they differ only in harmonic content and modulation.
type SynthKind int

const (
	SynthSine SynthKind = iota
	SynthEngine
	SynthJet
	SynthMachine
)

// SynthSource is a parametric signal generator: a fundamental plus a
// harmonic series (for Engine/Machine) or unfiltered white noise (for
// Jet), at a constant amplitude; no modulation is applied.
type SynthSource struct {
	id    string
	sr    float64
	kind  atomic.Int32
	freq  atomic.Value // float64
	amp   atomic.Value // float64
	phase float64
	noise uint64 // xorshift state
	mu    sync.Mutex
	last  audio.Block
}

// NewSynthSource constructs a synthesis source at sampleRate sr.
func NewSynthSource(id string, sr float64, blockSize int, kind SynthKind, freqHz, amplitude float64) *SynthSource {
	s := &SynthSource{
		id:    id,
		sr:    sr,
		noise: 0x9e3779b97f4a7c15,
		last:  audio.NewBlock(1, blockSize),
	}
	s.kind.Store(int32(kind))
	s.freq.Store(freqHz)
	s.amp.Store(amplitude)
	return s
}

func (s *SynthSource) ID() string             { return s.id }
func (s *SynthSource) Close() error           { return nil }
func (s *SynthSource) lastBlock() audio.Block { return s.last }

func (s *SynthSource) Mnemonic() string {
	switch SynthKind(s.kind.Load()) {
	case SynthEngine:
		return "engine"
	case SynthJet:
		return "jet"
	case SynthMachine:
		return "machine"
	default:
		return "synth"
	}
}

// SetFrequency updates the fundamental frequency in Hz (control thread).
func (s *SynthSource) SetFrequency(hz float64) { s.freq.Store(hz) }

// SetAmplitude updates the output amplitude in [0,1] (control thread).
func (s *SynthSource) SetAmplitude(a float64) { s.amp.Store(a) }

func (s *SynthSource) nextNoise() float64 {
	// xorshift64, cheap enough for the audio thread.
	s.noise ^= s.noise << 13
	s.noise ^= s.noise >> 7
	s.noise ^= s.noise << 17
	return (float64(s.noise%2000000)/1000000.0 - 1.0)
}

func (s *SynthSource) FetchBlock(_ audio.Block) audio.Block {
	s.mu.Lock()
	defer s.mu.Unlock()

	freq, _ := s.freq.Load().(float64)
	amp, _ := s.amp.Load().(float64)
	kind := SynthKind(s.kind.Load())
	out := s.last.Channel(0)
	step := 2 * math.Pi * freq / s.sr

	switch kind {
	case SynthJet:
		for i := range out {
			out[i] = float32(amp * s.nextNoise())
		}
	case SynthEngine, SynthMachine:
		for i := range out {
			fundamental := math.Sin(s.phase)
			harmonic2 := 0.5 * math.Sin(2*s.phase)
			harmonic3 := 0.25 * math.Sin(3*s.phase)
			out[i] = float32(amp * (fundamental + harmonic2 + harmonic3) / 1.75)
			s.phase += step
		}
	default:
		for i := range out {
			out[i] = float32(amp * math.Sin(s.phase))
			s.phase += step
		}
	}

	if s.phase > 1e9 {
		s.phase = math.Mod(s.phase, 2*math.Pi)
	}

	return s.last
}
