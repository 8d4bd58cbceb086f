// Package driver implements the Audio Driver Backend (spec §4.8): the
// polymorphic boundary between the processing graph and a block
// clock, whether that clock comes from real hardware, an explicit
// external trigger, or a synthetic ticker.
package driver

import (
	"sync"
	"sync/atomic"

	"github.com/va-core/va/internal/audio"
	"github.com/va-core/va/internal/vaerrors"
)

// DataSource is anything the driver can pull one block from — in
// practice the output patchbay, but kept as its own minimal interface
// (structurally satisfied by internal/patchbay.Patchbay) so this
// package never has to import patchbay.
type DataSource interface {
	Process(out audio.Block)
	NumChannels() int
}

// StreamProperties is the driver's fixed output format, reported once
// a device/clock has been initialized (spec §4.8: "getOutputStreamProperties
// -> (Fs,B,nCh)").
type StreamProperties struct {
	SampleRate  float64
	BlockSize   int
	NumChannels int
}

// Backend is the contract spec §4.8 names verbatim.
type Backend interface {
	Initialize() error
	Finalize() error
	StartStreaming() error
	StopStreaming() error
	IsStreaming() bool
	GetOutputStreamProperties() StreamProperties
	SetOutputStreamDatasource(src DataSource)
	GetInputStreamDatasource() DataSource
}

// base holds the bookkeeping every variant shares: the fixed format,
// the lock-free streaming flag, the pluggable output pull target, and
// the most recently captured raw device input (exposed back out as a
// DataSource of its own).
//
// preProcess, if set, runs on every callback cycle before the output
// pull, with that cycle's captured device-input block — this is how
// the core facade fans raw hardware input into
// signalsource.Manager.FetchInputData (spec §4.2 step 1) without this
// package needing to import signalsource. It is not itself part of
// spec §4.8's contract; it is the wiring spec §5's "within a single
// block each signal source is pulled exactly once" requires between
// the driver's clock and the rest of the graph.
type base struct {
	props StreamProperties

	streaming atomic.Bool

	mu         sync.RWMutex
	output     DataSource
	preProcess func(deviceInput audio.Block)

	inputBlock audio.Block
}

func newBase(props StreamProperties, numInputChannels int) base {
	return base{
		props:      props,
		inputBlock: audio.NewBlock(numInputChannels, props.BlockSize),
	}
}

func (b *base) GetOutputStreamProperties() StreamProperties { return b.props }

func (b *base) SetOutputStreamDatasource(src DataSource) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.output = src
}

func (b *base) SetPreProcessHook(fn func(deviceInput audio.Block)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.preProcess = fn
}

func (b *base) GetInputStreamDatasource() DataSource { return &inputPassthrough{b: b} }

func (b *base) IsStreaming() bool { return b.streaming.Load() }

// runCycle is the shared per-block sequence every variant's callback
// invokes: fan the device input out to the graph, then pull the graph
// output into out.
func (b *base) runCycle(out audio.Block) {
	b.mu.RLock()
	preProcess := b.preProcess
	output := b.output
	b.mu.RUnlock()

	if preProcess != nil {
		preProcess(b.inputBlock)
	}
	if output == nil {
		out.Zero()
		return
	}
	output.Process(out)
}

// inputPassthrough hands back whatever the backend most recently
// captured; used for diagnostics and the input recording path (spec
// §6), not for the FetchInputData wiring itself (see preProcess).
type inputPassthrough struct {
	b *base
}

func (p *inputPassthrough) NumChannels() int { return p.b.inputBlock.NumChannels() }
func (p *inputPassthrough) Process(out audio.Block) {
	out.CopyFrom(p.b.inputBlock)
}

func errNotStreaming(component string) error {
	return vaerrors.Newf("%s: not streaming", component).
		Component("driver").Kind(vaerrors.KindModalError).Build()
}

func errAlreadyStreaming(component string) error {
	return vaerrors.Newf("%s: already streaming", component).
		Component("driver").Kind(vaerrors.KindModalError).Build()
}
