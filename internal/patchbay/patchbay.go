// Package patchbay implements the Output Patchbay (spec §4.7): a
// fixed-topology mixer that routes M reproduction inputs, each with
// its own channel count and mute/gain, onto O hardware output
// channels, each with its own mute/gain. Routing itself — which input
// channel feeds which output channel — is configured once at
// initialization from the hardware description; gain and mute remain
// live, audio-thread-safe knobs afterward.
package patchbay

import (
	"math"
	"sync/atomic"

	"github.com/va-core/va/internal/audio"
	"github.com/va-core/va/internal/reproduction"
	"github.com/va-core/va/internal/vaerrors"
)

// gainControl is a lock-free gain+mute pair, read on the audio thread
// and written from any control thread.
type gainControl struct {
	bits  atomic.Uint32 // math.Float32bits(gain)
	muted atomic.Bool
}

func newGainControl(initial float32) *gainControl {
	g := &gainControl{}
	g.bits.Store(math.Float32bits(initial))
	return g
}

func (g *gainControl) gain() float32 { return math.Float32frombits(g.bits.Load()) }
func (g *gainControl) setGain(v float32) { g.bits.Store(math.Float32bits(v)) }
func (g *gainControl) setMuted(m bool)   { g.muted.Store(m) }
func (g *gainControl) isMuted() bool     { return g.muted.Load() }

// inputBinding is one connected reproduction's fixed channel routing
// plus its live gain/mute.
type inputBinding struct {
	source     reproduction.DataSource
	channelMap []int // channelMap[inputChannel] = output channel index
	scratch    audio.Block
	gainControl
}

// OutputSpec names one hardware output channel for diagnostics; the
// patchbay itself only needs the count.
type OutputSpec struct {
	Name string
}

// Patchbay is the fixed-topology mixer. Construct with NewPatchbay,
// wire inputs with ConnectInput before streaming starts, then call
// Process once per audio block from the driver thread.
type Patchbay struct {
	outputNames []string
	outputs     []*gainControl

	inputs []*inputBinding
}

// NewPatchbay allocates a patchbay for the given hardware output
// layout, each output starting unmuted at unity gain.
func NewPatchbay(outputs []OutputSpec) *Patchbay {
	p := &Patchbay{
		outputNames: make([]string, len(outputs)),
		outputs:     make([]*gainControl, len(outputs)),
	}
	for i, o := range outputs {
		p.outputNames[i] = o.Name
		p.outputs[i] = newGainControl(1)
	}
	return p
}

// NumOutputs reports the fixed output channel count.
func (p *Patchbay) NumOutputs() int { return len(p.outputs) }

// NumChannels is an alias for NumOutputs satisfying driver.DataSource,
// so the driver backend can pull the patchbay directly as its output
// stream datasource.
func (p *Patchbay) NumChannels() int { return p.NumOutputs() }

// ConnectInput wires a reproduction's output channels onto the
// patchbay's outputs. channelMap[i] gives the output channel index
// that the source's channel i feeds; it must be exactly
// src.NumChannels() long, part of "configured once at initialization
// from the hardware description" (spec §4.7). Returns the input's
// index, used later to address SetInputGain/SetInputMuted.
func (p *Patchbay) ConnectInput(src reproduction.DataSource, channelMap []int, blockSize int) (int, error) {
	if len(channelMap) != src.NumChannels() {
		return -1, vaerrors.Newf("patchbay: channel map has %d entries, source has %d channels", len(channelMap), src.NumChannels()).
			Component("patchbay").Kind(vaerrors.KindInvalidParameter).Build()
	}
	for _, out := range channelMap {
		if out < 0 || out >= len(p.outputs) {
			return -1, vaerrors.Newf("patchbay: channel map targets output %d, have %d outputs", out, len(p.outputs)).
				Component("patchbay").Kind(vaerrors.KindInvalidParameter).Build()
		}
	}
	b := &inputBinding{
		source:      src,
		channelMap:  append([]int(nil), channelMap...),
		scratch:     audio.NewBlock(src.NumChannels(), blockSize),
		gainControl: *newGainControl(1),
	}
	p.inputs = append(p.inputs, b)
	return len(p.inputs) - 1, nil
}

// SetInputGain/SetInputMuted/SetOutputGain/SetOutputMuted are the live
// knobs the routing topology itself does not cover.
func (p *Patchbay) SetInputGain(index int, gain float32) { p.inputs[index].setGain(gain) }
func (p *Patchbay) SetInputMuted(index int, muted bool)  { p.inputs[index].setMuted(muted) }
func (p *Patchbay) SetOutputGain(index int, gain float32) { p.outputs[index].setGain(gain) }
func (p *Patchbay) SetOutputMuted(index int, muted bool)  { p.outputs[index].setMuted(muted) }

// Process pulls exactly one block from every connected input — even a
// muted one, preserving the "each reproduction output is read exactly
// once per block" invariant (spec §5) — and additively mixes the
// unmuted ones onto out using saturation-free float accumulation
// (spec §4.7).
func (p *Patchbay) Process(out audio.Block) {
	out.Zero()

	for _, in := range p.inputs {
		in.source.Process(in.scratch)
		if in.isMuted() {
			continue
		}
		inGain := in.gain()
		if inGain == 0 {
			continue
		}
		for ch, outCh := range in.channelMap {
			outCtrl := p.outputs[outCh]
			if outCtrl.isMuted() {
				continue
			}
			gain := inGain * outCtrl.gain()
			if gain == 0 {
				continue
			}
			dst := out.Channel(outCh)
			src := in.scratch.Channel(ch)
			for i := range dst {
				dst[i] += src[i] * gain
			}
		}
	}
}
