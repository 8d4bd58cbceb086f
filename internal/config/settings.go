package config

import "time"

// Settings is the fully merged configuration tree, matching spec §6's
// section table. Fields carry no struct tags; loader.go maps INI
// section/key names onto them by hand, merging one or more files plus
// macro substitution into this
// shape the way the teacher's conf.Settings aggregates viper-bound YAML.
type Settings struct {
	Debug DebugConfig

	AudioDriver AudioDriverConfig

	Macros map[string]string

	Paths []string

	HomogeneousMedium HomogeneousMediumConfig

	Calibration CalibrationConfig

	OutputDevices map[string]OutputDeviceConfig
	Outputs       map[string]OutputConfig
	Inputs        map[string]InputConfig
	Renderers     map[string]RendererConfig
	Reproductions map[string]ReproductionConfig
}

type DebugConfig struct {
	LogLevel                  int // 0-5
	TriggerUpdateMilliseconds int
}

type AudioDriverConfig struct {
	Driver         string // "ASIO", "PortAudio", "Virtual", "Timeout"
	Device         string
	SampleRate     int
	BufferSize     int
	InputChannels  int
	OutputChannels int

	RecordInput  RecordConfig
	RecordOutput RecordConfig
}

type RecordConfig struct {
	Enabled    bool
	FileName   string
	BaseFolder string
}

type HomogeneousMediumConfig struct {
	TemperatureCelsius float64
	PressurePascal     float64
	RelativeHumidity   float64
	SoundSpeed         float64 // m/s, 0 means "derive from temperature"
}

// AmplitudeCalibrationMode selects the reference SPL convention a
// sound power value is interpreted against.
type AmplitudeCalibrationMode string

const (
	Calibration94dB  AmplitudeCalibrationMode = "94dB"
	Calibration124dB AmplitudeCalibrationMode = "124dB"
)

type CalibrationConfig struct {
	DefaultAmplitudeCalibrationMode AmplitudeCalibrationMode
	DefaultDistance                 float64
	DefaultMinimumDistance          float64
}

type OutputDeviceConfig struct {
	Type     string
	Channels []int
	Position [3]float64
	View     [3]float64
	Up       [3]float64
	DataFile string
}

type OutputConfig struct {
	Devices     []string
	Description string
	Enabled     bool
}

type InputConfig struct {
	Devices []string
	Active  bool
}

type RendererConfig struct {
	Class         string
	Enabled       bool
	Reproductions []string
	RecordOutput  bool
	ExtraConfig   map[string]any
}

type ReproductionConfig struct {
	Class       string
	Enabled     bool
	Outputs     []string
	ExtraConfig map[string]any
}

// Default returns the out-of-the-box settings, the equivalent of the
// teacher's embedded config.yaml defaults.
func Default() Settings {
	return Settings{
		Debug: DebugConfig{
			LogLevel:                  2,
			TriggerUpdateMilliseconds: 100,
		},
		AudioDriver: AudioDriverConfig{
			Driver:         "Virtual",
			SampleRate:     44100,
			BufferSize:     128,
			InputChannels:  0,
			OutputChannels: 2,
		},
		HomogeneousMedium: HomogeneousMediumConfig{
			TemperatureCelsius: 20,
			PressurePascal:     101325,
			RelativeHumidity:   50,
		},
		Calibration: CalibrationConfig{
			DefaultAmplitudeCalibrationMode: Calibration94dB,
			DefaultDistance:                 1.0,
			DefaultMinimumDistance:          0.25,
		},
		OutputDevices: map[string]OutputDeviceConfig{},
		Outputs:       map[string]OutputConfig{},
		Inputs:        map[string]InputConfig{},
		Renderers:     map[string]RendererConfig{},
		Reproductions: map[string]ReproductionConfig{},
	}
}

// SoundSpeedOrDefault returns the configured sound speed, or the standard
// acoustic approximation from temperature if unset.
func (h HomogeneousMediumConfig) SoundSpeedOrDefault() float64 {
	if h.SoundSpeed > 0 {
		return h.SoundSpeed
	}
	return 331.3 + 0.606*h.TemperatureCelsius
}

// TriggerUpdateInterval converts the millisecond config value to a Duration.
func (d DebugConfig) TriggerUpdateInterval() time.Duration {
	return time.Duration(d.TriggerUpdateMilliseconds) * time.Millisecond
}
