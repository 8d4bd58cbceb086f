package reproduction

import (
	"github.com/va-core/va/internal/audio"
	"github.com/va-core/va/internal/renderer"
	"github.com/va-core/va/internal/scene"
	"github.com/va-core/va/internal/vaerrors"
)

// HeadphoneEqualizationParameters are the variant-specific settings
// (spec §4.6 contract's SetParameters/GetParameters struct).
type HeadphoneEqualizationParameters struct {
	GainLeft  float32
	GainRight float32
}

// HeadphoneEqualization convolves each ear with an inverse headphone
// impulse response and applies a per-channel gain (spec §4.6).
type HeadphoneEqualization struct {
	base

	convLeft  *renderer.Convolver
	convRight *renderer.Convolver

	params HeadphoneEqualizationParameters

	scratch audio.Block
}

// NewHeadphoneEqualization constructs the variant with inverse IRs for
// each ear, up to maxTaps long.
func NewHeadphoneEqualization(blockSize, maxTaps int, inverseIRLeft, inverseIRRight []float32, targetOutputs []string) *HeadphoneEqualization {
	h := &HeadphoneEqualization{
		base:      newBase(targetOutputs),
		convLeft:  renderer.NewConvolver(maxTaps),
		convRight: renderer.NewConvolver(maxTaps),
		params:    HeadphoneEqualizationParameters{GainLeft: 1, GainRight: 1},
		scratch:   audio.NewBlock(2, blockSize),
	}
	h.convLeft.SetFilter(inverseIRLeft, 0)
	h.convRight.SetFilter(inverseIRRight, 0)
	return h
}

func (h *HeadphoneEqualization) GetOutputDatasource() DataSource { return h }
func (h *HeadphoneEqualization) NumChannels() int                { return 2 }
func (h *HeadphoneEqualization) UpdateScene(*scene.State)        {}

func (h *HeadphoneEqualization) GetParameters() any { return h.params }

func (h *HeadphoneEqualization) SetParameters(params any) error {
	if err := h.guardParameterChange(); err != nil {
		return err
	}
	p, ok := params.(HeadphoneEqualizationParameters)
	if !ok {
		return vaerrors.Newf("headphone equalization expects HeadphoneEqualizationParameters, got %T", params).
			Component("reproduction").Kind(vaerrors.KindInvalidParameter).Build()
	}
	h.params = p
	return nil
}

func (h *HeadphoneEqualization) Process(out audio.Block) {
	h.pullInput(h.scratch)

	convLeftOut := out.Channel(0)
	convRightOut := out.Channel(1)
	h.convLeft.Process(h.scratch.Channel(0), convLeftOut)
	h.convRight.Process(h.scratch.Channel(1), convRightOut)

	for i := range convLeftOut {
		convLeftOut[i] *= h.params.GainLeft
		convRightOut[i] *= h.params.GainRight
	}
}
