// Package audio holds the sample-block types shared by every stage of
// the real-time graph: signal sources, renderers, reproductions, the
// patchbay, and the driver backend all exchange audio.Block values.
package audio

// Block is a fixed-length planar multi-channel sample frame: one []float32
// per channel, each of length BlockSize. All audio-rate work in the graph
// is expressed on blocks of a single size at a single sample rate.
type Block struct {
	channels [][]float32
}

// NewBlock allocates a block with numChannels channels of blockSize samples each.
func NewBlock(numChannels, blockSize int) Block {
	chans := make([][]float32, numChannels)
	for i := range chans {
		chans[i] = make([]float32, blockSize)
	}
	return Block{channels: chans}
}

// NumChannels reports the channel count.
func (b Block) NumChannels() int { return len(b.channels) }

// BlockSize reports the per-channel sample count, or 0 for a zero-value block.
func (b Block) BlockSize() int {
	if len(b.channels) == 0 {
		return 0
	}
	return len(b.channels[0])
}

// Channel returns the sample slice for channel i, for in-place read/write.
func (b Block) Channel(i int) []float32 { return b.channels[i] }

// Zero clears every channel to silence.
func (b Block) Zero() {
	for _, ch := range b.channels {
		for i := range ch {
			ch[i] = 0
		}
	}
}

// IsZero reports whether the block has no allocated channels (the
// zero-value Block{}, distinct from a Block whose samples are all 0).
func (b Block) IsZero() bool { return b.channels == nil }

// CopyFrom copies src into b channel-by-channel; both must share shape.
func (b Block) CopyFrom(src Block) {
	for i := range b.channels {
		copy(b.channels[i], src.channels[i])
	}
}

// AddScaled accumulates src*gain into b, channel-by-channel, using the
// same channel index in both blocks (used by the patchbay and cluster
// scratch accumulation, where "saturation-free float accumulation" is
// the spec's explicit mixing rule).
func (b Block) AddScaled(src Block, gain float32) {
	for i := range b.channels {
		dst := b.channels[i]
		s := src.channels[i]
		for j := range dst {
			dst[j] += s[j] * gain
		}
	}
}
