package reproduction

import (
	"github.com/va-core/va/internal/audio"
	"github.com/va-core/va/internal/scene"
	"github.com/va-core/va/internal/vaerrors"
)

// LowFrequencyMixerParameters are the variant-specific settings: which
// input channels feed the subwoofer output and at what gain (spec
// §4.6: "sums a subset of renderer channels to a subwoofer-style
// output").
type LowFrequencyMixerParameters struct {
	SourceChannels []int
	Gains          []float32
}

// LowFrequencyMixer sums a configurable subset of the upstream
// datasource's channels, each at its own gain, into a single output
// channel (spec §4.6).
type LowFrequencyMixer struct {
	base

	params  LowFrequencyMixerParameters
	scratch audio.Block
}

// NewLowFrequencyMixer constructs a mixer pulling from an
// inputChannels-wide upstream datasource.
func NewLowFrequencyMixer(inputChannels, blockSize int, params LowFrequencyMixerParameters, targetOutputs []string) *LowFrequencyMixer {
	return &LowFrequencyMixer{
		base:    newBase(targetOutputs),
		params:  cloneLowFreqParams(params),
		scratch: audio.NewBlock(inputChannels, blockSize),
	}
}

func cloneLowFreqParams(p LowFrequencyMixerParameters) LowFrequencyMixerParameters {
	return LowFrequencyMixerParameters{
		SourceChannels: append([]int(nil), p.SourceChannels...),
		Gains:          append([]float32(nil), p.Gains...),
	}
}

func (l *LowFrequencyMixer) GetOutputDatasource() DataSource { return l }
func (l *LowFrequencyMixer) NumChannels() int                { return 1 }
func (l *LowFrequencyMixer) UpdateScene(*scene.State)        {}

func (l *LowFrequencyMixer) GetParameters() any { return cloneLowFreqParams(l.params) }

func (l *LowFrequencyMixer) SetParameters(params any) error {
	if err := l.guardParameterChange(); err != nil {
		return err
	}
	p, ok := params.(LowFrequencyMixerParameters)
	if !ok {
		return vaerrors.Newf("low-frequency mixer expects LowFrequencyMixerParameters, got %T", params).
			Component("reproduction").Kind(vaerrors.KindInvalidParameter).Build()
	}
	if len(p.SourceChannels) != len(p.Gains) {
		return vaerrors.Newf("low-frequency mixer: %d source channels but %d gains", len(p.SourceChannels), len(p.Gains)).
			Component("reproduction").Kind(vaerrors.KindInvalidParameter).Build()
	}
	l.params = cloneLowFreqParams(p)
	return nil
}

func (l *LowFrequencyMixer) Process(out audio.Block) {
	out.Zero()
	l.pullInput(l.scratch)

	sum := out.Channel(0)
	for i, ch := range l.params.SourceChannels {
		if ch < 0 || ch >= l.scratch.NumChannels() {
			continue
		}
		gain := l.params.Gains[i]
		in := l.scratch.Channel(ch)
		for j := range sum {
			sum[j] += in[j] * gain
		}
	}
}
