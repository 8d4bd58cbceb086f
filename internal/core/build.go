package core

import (
	"path/filepath"
	"strconv"
	"time"

	"github.com/va-core/va/internal/capture"
	"github.com/va-core/va/internal/config"
	"github.com/va-core/va/internal/directivity"
	"github.com/va-core/va/internal/driver"
	"github.com/va-core/va/internal/events"
	"github.com/va-core/va/internal/logging"
	"github.com/va-core/va/internal/metrics"
	"github.com/va-core/va/internal/patchbay"
	"github.com/va-core/va/internal/renderer"
	"github.com/va-core/va/internal/reproduction"
	"github.com/va-core/va/internal/scene"
	"github.com/va-core/va/internal/signalsource"
	"github.com/va-core/va/internal/vaerrors"
)

// BuildFromSettings constructs every manager, the render graph it can
// fully describe from INI config, and the facade wrapping them, the
// way the teacher's cmd layer assembles managerImpl from conf.Settings
// before starting it. Two renderer/reproduction classes are built
// directly from config: "BinauralClustering" (the only implemented
// renderer) and "Talkthrough" (the only reproduction variant with no
// binary payload — an impulse response, loudspeaker layout, or inverse
// filter — that INI config has no way to carry). Every other
// reproduction class ("HeadphoneEqualization", "BinauralMixdown",
// "NChannelCTC", "LowFrequencyMixer") is skipped here with a warning;
// callers that need them construct the variant directly (it needs an
// IR or speaker-position payload only the caller has) and attach it
// with Facade.AddReproduction after BuildFromSettings returns.
func BuildFromSettings(settings config.Settings, rec metrics.Recorder) (*Facade, error) {
	logger := logging.ForComponent("core.build")

	bus := events.NewManager(events.Config{})
	scn := scene.NewManager(bus)
	dirs := directivity.NewManager(5 * time.Minute)
	srcs := signalsource.NewManager(settings.AudioDriver.BufferSize, nil)

	pb := buildPatchbay(settings)
	drv, err := buildDriver(settings)
	if err != nil {
		return nil, err
	}
	drv.SetOutputStreamDatasource(pb)

	f := New(Config{TriggerUpdateInterval: settings.Debug.TriggerUpdateInterval()}, scn, bus, dirs, srcs, pb, drv, rec)
	if rec != nil {
		f.CPU = metrics.NewCPUSampler(rec, time.Second)
	}

	soundSpeed := settings.HomogeneousMedium.SoundSpeedOrDefault()
	for name, rc := range settings.Renderers {
		if !rc.Enabled {
			continue
		}
		switch rc.Class {
		case "BinauralClustering":
			r, err := buildBinauralRenderer(rc, settings, soundSpeed, dirs, srcs)
			if err != nil {
				return nil, vaerrors.Newf("core: renderer %q: %w", name, err).
					Component("core").Kind(vaerrors.KindInvalidParameter).Build()
			}
			f.AddRenderer(name, r)
		default:
			logger.Warn("unsupported renderer class, skipped", "name", name, "class", rc.Class)
		}
	}

	for name, rc := range settings.Reproductions {
		if !rc.Enabled {
			continue
		}
		switch rc.Class {
		case "Talkthrough":
			numChannels := extraInt(rc.ExtraConfig, "NumChannels", 2)
			rep := reproduction.NewTalkthrough(numChannels, rc.Outputs)
			f.AddReproduction(name, rep)
			if err := connectReproduction(pb, rep, rc, settings); err != nil {
				return nil, err
			}
		default:
			logger.Warn("reproduction class needs a binary payload, not built from config; attach it with AddReproduction", "name", name, "class", rc.Class)
		}
	}

	if settings.AudioDriver.RecordOutput.Enabled {
		path := filepath.Join(settings.AudioDriver.RecordOutput.BaseFolder, settings.AudioDriver.RecordOutput.FileName)
		r, err := capture.NewRecorder(path, settings.AudioDriver.SampleRate, settings.AudioDriver.OutputChannels)
		if err != nil {
			return nil, err
		}
		tap := capture.NewTap(pb, r, logging.ForComponent("capture"))
		drv.SetOutputStreamDatasource(tap)
	}

	return f, nil
}

// buildPatchbay sizes the patchbay to the driver's configured output
// channel count, naming each output from whichever OutputDeviceConfig
// claims it (left unnamed if none does — naming is diagnostic only).
func buildPatchbay(settings config.Settings) *patchbay.Patchbay {
	specs := make([]patchbay.OutputSpec, settings.AudioDriver.OutputChannels)
	for name, dev := range settings.OutputDevices {
		for _, ch := range dev.Channels {
			if ch >= 0 && ch < len(specs) {
				specs[ch] = patchbay.OutputSpec{Name: name}
			}
		}
	}
	return patchbay.NewPatchbay(specs)
}

func buildDriver(settings config.Settings) (driver.Backend, error) {
	props := driver.StreamProperties{
		SampleRate:  float64(settings.AudioDriver.SampleRate),
		BlockSize:   settings.AudioDriver.BufferSize,
		NumChannels: settings.AudioDriver.OutputChannels,
	}
	switch settings.AudioDriver.Driver {
	case "", "Virtual":
		return driver.NewVirtualBackend(props, settings.AudioDriver.InputChannels), nil
	case "Timeout":
		period := time.Duration(float64(props.BlockSize)/props.SampleRate*1000) * time.Millisecond
		return driver.NewTimeoutBackend(props, settings.AudioDriver.InputChannels, period), nil
	case "ASIO", "PortAudio":
		return driver.NewMalgoBackend(props, settings.AudioDriver.InputChannels, settings.AudioDriver.Device), nil
	default:
		return nil, vaerrors.Newf("core: unknown AudioDriver.Driver %q", settings.AudioDriver.Driver).
			Component("core").Kind(vaerrors.KindInvalidParameter).Build()
	}
}

func buildBinauralRenderer(rc config.RendererConfig, settings config.Settings, soundSpeed float64, dirs *directivity.Manager, srcs *signalsource.Manager) (*renderer.BinauralClusteringRenderer, error) {
	receiverID := extraInt(rc.ExtraConfig, "ReceiverID", 0)
	opts := []renderer.Option{}
	if k := extraInt(rc.ExtraConfig, "MaxDirections", 0); k > 0 {
		opts = append(opts, renderer.WithMaxDirections(k))
	}
	if taps := extraInt(rc.ExtraConfig, "MaxFilterTaps", 0); taps > 0 {
		opts = append(opts, renderer.WithMaxFilterTaps(taps))
	}
	return renderer.NewBinauralClusteringRenderer(
		receiverID,
		float64(settings.AudioDriver.SampleRate),
		soundSpeed,
		settings.AudioDriver.BufferSize,
		dirs, srcs,
		opts...,
	)
}

// connectReproduction wires a reproduction's output onto the patchbay,
// mapping its channels onto the hardware outputs its target output
// devices claim, in device-channel order.
func connectReproduction(pb *patchbay.Patchbay, rep reproduction.Reproduction, rc config.ReproductionConfig, settings config.Settings) error {
	var channelMap []int
	for _, outputName := range rc.Outputs {
		out, ok := settings.Outputs[outputName]
		if !ok {
			continue
		}
		for _, devName := range out.Devices {
			dev, ok := settings.OutputDevices[devName]
			if !ok {
				continue
			}
			channelMap = append(channelMap, dev.Channels...)
		}
	}
	if len(channelMap) != rep.NumChannels() {
		return vaerrors.Newf("core: reproduction %q targets %d output channels, produces %d", rc.Outputs, len(channelMap), rep.NumChannels()).
			Component("core").Kind(vaerrors.KindInvalidParameter).Build()
	}
	_, err := pb.ConnectInput(rep.GetOutputDatasource(), channelMap, settings.AudioDriver.BufferSize)
	return err
}

// extraInt parses an ExtraConfig string value as an int, returning def
// if the key is absent or unparsable (ExtraConfig always holds raw
// last-seen strings per the INI loader, never typed values).
func extraInt(extra map[string]any, key string, def int) int {
	v, ok := extra[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
