package signalsource

import "github.com/va-core/va/internal/audio"

// DeviceInputSource passes one physical input channel straight through
// as a signal source, fanned in by the manager at the top of
// FetchInputData (spec §4.2 step 1).
type DeviceInputSource struct {
	id      string
	channel int
	last    audio.Block
}

func NewDeviceInputSource(id string, channel, blockSize int) *DeviceInputSource {
	return &DeviceInputSource{id: id, channel: channel, last: audio.NewBlock(1, blockSize)}
}

func (s *DeviceInputSource) ID() string            { return s.id }
func (s *DeviceInputSource) Mnemonic() string       { return "devin" }
func (s *DeviceInputSource) Close() error           { return nil }
func (s *DeviceInputSource) InputChannel() int      { return s.channel }
func (s *DeviceInputSource) lastBlock() audio.Block { return s.last }

func (s *DeviceInputSource) FetchBlock(deviceInput audio.Block) audio.Block {
	if deviceInput.IsZero() || s.channel >= deviceInput.NumChannels() {
		s.last.Zero()
		return s.last
	}
	copy(s.last.Channel(0), deviceInput.Channel(s.channel))
	return s.last
}
