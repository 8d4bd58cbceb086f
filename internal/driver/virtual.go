package driver

import "github.com/va-core/va/internal/audio"

// VirtualBackend is the offline/triggered variant (spec §4.8): no
// hardware and no clock of its own — an external caller explicitly
// advances one block at a time, useful for deterministic offline
// simulation driven by a manual clock (e.g. a test harness or batch
// renderer).
type VirtualBackend struct {
	base
	out audio.Block
}

// NewVirtualBackend constructs a backend with the given fixed output
// format; inputChannels sizes the synthetic device-input block the
// caller feeds via FeedInput.
func NewVirtualBackend(props StreamProperties, inputChannels int) *VirtualBackend {
	return &VirtualBackend{
		base: newBase(props, inputChannels),
		out:  audio.NewBlock(props.NumChannels, props.BlockSize),
	}
}

func (v *VirtualBackend) Initialize() error { return nil }
func (v *VirtualBackend) Finalize() error {
	v.streaming.Store(false)
	return nil
}

func (v *VirtualBackend) StartStreaming() error {
	if !v.streaming.CompareAndSwap(false, true) {
		return errAlreadyStreaming("virtual backend")
	}
	return nil
}

func (v *VirtualBackend) StopStreaming() error {
	if !v.streaming.CompareAndSwap(true, false) {
		return errNotStreaming("virtual backend")
	}
	return nil
}

// FeedInput overwrites this cycle's synthetic device-input block
// before TriggerBlock is called, for simulating physical input
// channels (e.g. a virtual microphone feed) in a test harness.
func (v *VirtualBackend) FeedInput(in audio.Block) {
	v.inputBlock.CopyFrom(in)
}

// TriggerBlock advances the graph by exactly one block and returns
// the output samples produced, the manual-clock analogue of a
// hardware callback firing. Returns an error if not streaming.
func (v *VirtualBackend) TriggerBlock() (audio.Block, error) {
	if !v.IsStreaming() {
		return audio.Block{}, errNotStreaming("virtual backend")
	}
	v.runCycle(v.out)
	return v.out, nil
}
