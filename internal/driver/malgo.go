package driver

import (
	"encoding/binary"
	"math"
	"runtime"

	"github.com/gen2brain/malgo"

	"github.com/va-core/va/internal/audio"
	"github.com/va-core/va/internal/vaerrors"
)

// MalgoBackend is the real-hardware variant (spec §4.8's "ASIO/
// PortAudio": hardware-driven pull; the driver thread invokes the
// patchbay's read). It uses malgo's cross-platform miniaudio binding
// rather than vendoring ASIO/PortAudio SDKs directly, the same
// substitution the teacher makes for its own capture-only device
// source (internal/audiocore/sources/malgo).
//
// A duplex device is opened at 32-bit float so the hardware callback's
// byte buffers interleave directly with this codebase's []float32
// blocks, with no S16 quantization step in either direction.
type MalgoBackend struct {
	base

	deviceName string
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	out        audio.Block // preallocated at props.BlockSize; the audio thread never allocates
}

// NewMalgoBackend constructs a not-yet-initialized hardware backend
// for the named playback/capture device pair (empty string selects
// the system default).
func NewMalgoBackend(props StreamProperties, inputChannels int, deviceName string) *MalgoBackend {
	return &MalgoBackend{
		base:       newBase(props, inputChannels),
		deviceName: deviceName,
		out:        audio.NewBlock(props.NumChannels, props.BlockSize),
	}
}

func (m *MalgoBackend) Initialize() error {
	backend := defaultMalgoBackendForOS()
	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return vaerrors.Newf("malgo backend: init context: %w", err).
			Component("driver").Kind(vaerrors.KindUnspecified).Build()
	}
	m.ctx = ctx

	cfg := malgo.DefaultDeviceConfig(malgo.Duplex)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = uint32(m.props.NumChannels)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = uint32(m.base.inputBlock.NumChannels())
	cfg.SampleRate = uint32(m.props.SampleRate)
	cfg.PeriodSizeInFrames = uint32(m.props.BlockSize)

	device, err := malgo.InitDevice(m.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: m.onData,
	})
	if err != nil {
		_ = m.ctx.Uninit()
		m.ctx = nil
		return vaerrors.Newf("malgo backend: init device %q: %w", m.deviceName, err).
			Component("driver").Kind(vaerrors.KindUnspecified).Build()
	}
	m.device = device
	return nil
}

func (m *MalgoBackend) Finalize() error {
	if m.IsStreaming() {
		if err := m.StopStreaming(); err != nil {
			return err
		}
	}
	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	if m.ctx != nil {
		if err := m.ctx.Uninit(); err != nil {
			return vaerrors.Newf("malgo backend: uninit context: %w", err).
				Component("driver").Kind(vaerrors.KindUnspecified).Build()
		}
		m.ctx = nil
	}
	return nil
}

func (m *MalgoBackend) StartStreaming() error {
	if m.device == nil {
		return vaerrors.Newf("malgo backend: not initialized").
			Component("driver").Kind(vaerrors.KindModalError).Build()
	}
	if !m.streaming.CompareAndSwap(false, true) {
		return errAlreadyStreaming("malgo backend")
	}
	if err := m.device.Start(); err != nil {
		m.streaming.Store(false)
		return vaerrors.Newf("malgo backend: start device: %w", err).
			Component("driver").Kind(vaerrors.KindUnspecified).Build()
	}
	return nil
}

func (m *MalgoBackend) StopStreaming() error {
	if !m.streaming.CompareAndSwap(true, false) {
		return errNotStreaming("malgo backend")
	}
	if m.device != nil {
		return m.device.Stop()
	}
	return nil
}

// onData is the hardware callback: framecount frames of F32 PCM
// arrive interleaved in Go byte slices; this de-interleaves the
// input into inputBlock, runs one graph cycle, then interleaves the
// result back into the output buffer.
func (m *MalgoBackend) onData(outputBytes, inputBytes []byte, framecount uint32) {
	numIn := m.base.inputBlock.NumChannels()
	n := int(framecount)
	if numIn > 0 && len(inputBytes) >= n*numIn*4 {
		for i := 0; i < n; i++ {
			for ch := 0; ch < numIn; ch++ {
				off := (i*numIn + ch) * 4
				bits := binary.LittleEndian.Uint32(inputBytes[off : off+4])
				m.base.inputBlock.Channel(ch)[i] = math.Float32frombits(bits)
			}
		}
	}

	out := m.out
	if n != out.BlockSize() {
		// The device negotiated a different period than requested; fall
		// back to an ad hoc block for this one cycle rather than drop
		// samples. Not allocation-free, but this path only triggers on
		// a period-size mismatch, never in steady-state streaming.
		out = audio.NewBlock(m.props.NumChannels, n)
	}
	m.runCycle(out)

	numOut := m.props.NumChannels
	for i := 0; i < n; i++ {
		for ch := 0; ch < numOut; ch++ {
			off := (i*numOut + ch) * 4
			if off+4 > len(outputBytes) {
				continue
			}
			bits := math.Float32bits(out.Channel(ch)[i])
			binary.LittleEndian.PutUint32(outputBytes[off:off+4], bits)
		}
	}
}

func defaultMalgoBackendForOS() malgo.Backend {
	switch runtime.GOOS {
	case "windows":
		return malgo.BackendWasapi
	case "darwin":
		return malgo.BackendCoreaudio
	default:
		return malgo.BackendAlsa
	}
}
