package signalsource

import (
	"encoding/binary"
	"math"

	"github.com/smallnest/ringbuffer"

	"github.com/va-core/va/internal/audio"
)

// NetworkStreamSource decodes a continuous stream of little-endian
// float32 mono PCM pushed in by an external network-receive goroutine
// (the RPC/wire framing itself is out of scope, per spec §1 Non-goals)
// into audio blocks. A byte-level ring buffer absorbs jitter between
// network arrival and the fixed-rate audio pull.
type NetworkStreamSource struct {
	id   string
	ring *ringbuffer.RingBuffer
	last audio.Block
}

// NewNetworkStreamSource constructs a source backed by a ring buffer
// sized to hold bufferBlocks worth of audio at blockSize samples/block.
func NewNetworkStreamSource(id string, blockSize, bufferBlocks int) *NetworkStreamSource {
	bytesPerSample := 4
	return &NetworkStreamSource{
		id:   id,
		ring: ringbuffer.New(blockSize * bufferBlocks * bytesPerSample),
		last: audio.NewBlock(1, blockSize),
	}
}

// PushSamples is called by the network-receive goroutine (never the
// audio thread) to append freshly decoded mono samples.
func (s *NetworkStreamSource) PushSamples(samples []float32) (written int, err error) {
	buf := make([]byte, 4*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return s.ring.Write(buf)
}

func (s *NetworkStreamSource) ID() string            { return s.id }
func (s *NetworkStreamSource) Mnemonic() string       { return "netstream" }
func (s *NetworkStreamSource) Close() error           { return s.ring.CloseWriter() }
func (s *NetworkStreamSource) lastBlock() audio.Block { return s.last }

// Available reports buffered bytes available for read (diagnostics/underrun detection).
func (s *NetworkStreamSource) Available() int { return s.ring.Length() }

func (s *NetworkStreamSource) FetchBlock(_ audio.Block) audio.Block {
	out := s.last.Channel(0)
	buf := make([]byte, 4*len(out))
	n, _ := s.ring.Read(buf)

	i := 0
	for ; i*4+4 <= n; i++ {
		bits := binary.LittleEndian.Uint32(buf[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	for ; i < len(out); i++ {
		out[i] = 0 // underrun: pad with silence rather than stall the audio thread
	}
	return s.last
}
