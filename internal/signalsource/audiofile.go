package signalsource

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/va-core/va/internal/audio"
	"github.com/va-core/va/internal/logging"
)

// PlaybackState is the audiofile source's lifecycle state (spec §4.2).
type PlaybackState int32

const (
	StateInvalid PlaybackState = iota
	StateStopped
	StatePaused
	StatePlaying
)

func (s PlaybackState) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StatePaused:
		return "PAUSED"
	case StatePlaying:
		return "PLAYING"
	default:
		return "INVALID"
	}
}

// PlaybackAction is the control-thread command applied at the next
// block boundary.
type PlaybackAction int32

const (
	ActionNone PlaybackAction = iota
	ActionPlay
	ActionPause
	ActionStop
)

// AudioFileSource is the buffered-file signal source with a
// play/pause/stop/loop state machine (spec §4.2). Samples are held
// entirely in memory, decoded ahead of time either by the caller
// directly or via NewAudioFileSourceFromFile (loader.go), which wires
// in the WAV/FLAC decoders.
type AudioFileSource struct {
	id     string
	logger *slog.Logger

	samples []float32 // mono, pre-decoded
	cursor  int

	state      atomic.Int32 // PlaybackState
	pendingAct atomic.Int32 // PlaybackAction, applied at next block boundary
	loop       atomic.Bool

	// frozen is set for the duration of a sync-mod window: no state
	// transitions occur, except the forced EOF-without-loop -> STOPPED
	// transition (spec §4.2).
	frozen atomic.Bool

	mu   sync.Mutex // guards samples/cursor against concurrent SetCursorSeconds
	last audio.Block
}

// NewAudioFileSource constructs a source from already-decoded mono
// samples at the engine's sample rate. blockSize must match the
// manager's block size.
func NewAudioFileSource(id string, samples []float32, blockSize int) *AudioFileSource {
	s := &AudioFileSource{
		id:      id,
		samples: samples,
		logger:  logging.ForComponent("signalsource.audiofile"),
		last:    audio.NewBlock(1, blockSize),
	}
	s.state.Store(int32(StateStopped))
	return s
}

func (s *AudioFileSource) ID() string       { return s.id }
func (s *AudioFileSource) Mnemonic() string { return "audiofile" }
func (s *AudioFileSource) Close() error     { return nil }

func (s *AudioFileSource) lastBlock() audio.Block { return s.last }

// State reports the current playback state.
func (s *AudioFileSource) State() PlaybackState { return PlaybackState(s.state.Load()) }

// SetLoop enables or disables looping at EOF.
func (s *AudioFileSource) SetLoop(loop bool) { s.loop.Store(loop) }

// RequestAction queues a control-thread action, applied at the next
// block boundary inside FetchBlock.
func (s *AudioFileSource) RequestAction(a PlaybackAction) { s.pendingAct.Store(int32(a)) }

// SetFrozen marks whether a sync-mod window is open; while frozen,
// ordinary transitions are suppressed (spec §4.2).
func (s *AudioFileSource) SetFrozen(frozen bool) { s.frozen.Store(frozen) }

// SetCursorSeconds seeks to t seconds, clamping per spec §8 boundary
// behavior: t<0 clamps to 0, t>duration clamps to EOF.
func (s *AudioFileSource) SetCursorSeconds(t float64, sampleRate int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := int(t * float64(sampleRate))
	if idx < 0 {
		idx = 0
	}
	if idx > len(s.samples) {
		idx = len(s.samples)
	}
	s.cursor = idx
}

func (s *AudioFileSource) applyTransition() {
	action := PlaybackAction(s.pendingAct.Swap(int32(ActionNone)))
	if action == ActionNone {
		return
	}
	if s.frozen.Load() {
		return // sync-mod window open: ordinary transitions are suppressed
	}

	cur := s.State()
	switch {
	case cur == StateStopped && action == ActionPlay:
		s.mu.Lock()
		if s.cursor >= len(s.samples) {
			s.cursor = 0
		}
		s.mu.Unlock()
		s.state.Store(int32(StatePlaying))

	case cur == StateStopped && action == ActionPause:
		// Historical quirk preserved per spec §9 open question: PAUSE
		// from STOPPED starts playback (PLAYING) rather than being a
		// no-op; cursor rewinds exactly as STOPPED+PLAY does.
		s.mu.Lock()
		if s.cursor >= len(s.samples) {
			s.cursor = 0
		}
		s.mu.Unlock()
		s.state.Store(int32(StatePlaying))

	case cur == StatePaused && action == ActionPlay:
		s.state.Store(int32(StatePlaying))

	case cur == StatePaused && action == ActionStop:
		s.mu.Lock()
		s.cursor = 0
		s.mu.Unlock()
		s.state.Store(int32(StateStopped))

	case cur == StatePlaying && action == ActionPause:
		s.state.Store(int32(StatePaused))

	case cur == StatePlaying && action == ActionStop:
		s.mu.Lock()
		s.cursor = 0
		s.mu.Unlock()
		s.state.Store(int32(StateStopped))
	}
}

// FetchBlock advances the state machine, then fills the output buffer
// with the next segment of decoded samples (or silence if not
// PLAYING), honoring loop/EOF per spec §4.2.
func (s *AudioFileSource) FetchBlock(_ audio.Block) audio.Block {
	s.applyTransition()

	out := s.last.Channel(0)
	if s.State() != StatePlaying {
		for i := range out {
			out[i] = 0
		}
		return s.last
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range out {
		if s.cursor >= len(s.samples) {
			if s.loop.Load() {
				s.cursor = 0
			} else {
				out[i] = 0
				continue
			}
		}
		out[i] = s.samples[s.cursor]
		s.cursor++
	}

	if s.cursor >= len(s.samples) && !s.loop.Load() {
		// EOF reached with loop off: STOPPED transition, forced
		// immediately even inside a sync-mod window (spec §4.2) to
		// avoid ever rendering samples past EOF.
		s.state.Store(int32(StateStopped))
	}

	return s.last
}
