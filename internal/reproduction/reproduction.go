// Package reproduction implements the Reproduction Module (spec
// §4.6): polymorphic consumers of renderer output that adapt a
// renderer's channel layout to a set of hardware outputs — identity
// passthrough, headphone equalization, binaural mixdown of virtual
// loudspeakers, dynamic crosstalk cancellation, and low-frequency
// mixing.
package reproduction

import (
	"sync/atomic"

	"github.com/va-core/va/internal/audio"
	"github.com/va-core/va/internal/scene"
	"github.com/va-core/va/internal/vaerrors"
)

// DataSource is anything that can be pulled for one audio block — a
// renderer, another reproduction, or (via the patchbay) a hardware
// input. Any Renderer already satisfies this structurally.
type DataSource interface {
	Process(out audio.Block)
	NumChannels() int
}

// Reproduction is the fixed interface every variant exposes (spec
// §4.6 contract).
type Reproduction interface {
	DataSource

	// SetInputDatasource binds the upstream renderer (or other
	// datasource) this reproduction reads from.
	SetInputDatasource(src DataSource)

	// GetOutputDatasource returns this reproduction itself as a
	// datasource, for the patchbay to pull from.
	GetOutputDatasource() DataSource

	// GetTargetOutputs reports the hardware output names this
	// reproduction feeds.
	GetTargetOutputs() []string

	// UpdateScene is called from the core thread at most once per
	// scene-state publication.
	UpdateScene(head *scene.State)

	// SetParameters applies a variant-specific parameter struct.
	// Refused once streaming has started (spec §4.6 contract).
	SetParameters(params any) error

	// GetParameters returns the current variant-specific parameters.
	GetParameters() any
}

// base provides the streaming-start guard and target-output bookkeeping
// shared by every variant, the way spec §4.6's contract describes it
// uniformly across variants rather than per-variant.
type base struct {
	targetOutputs []string
	streaming     atomic.Bool
	input         DataSource
}

func newBase(targetOutputs []string) base {
	return base{targetOutputs: append([]string(nil), targetOutputs...)}
}

func (b *base) SetInputDatasource(src DataSource) { b.input = src }
func (b *base) GetTargetOutputs() []string        { return b.targetOutputs }

// MarkStreamingStarted/MarkStreamingStopped set and clear the flag
// SetParameters checks to refuse changes mid-stream. Nothing in this
// module calls them outside tests: neither the driver backends nor the
// core facade toggle the flag on StartStreaming/StopStreaming, so in a
// running engine SetParameters is not refused.
func (b *base) MarkStreamingStarted() { b.streaming.Store(true) }
func (b *base) MarkStreamingStopped() { b.streaming.Store(false) }

func (b *base) guardParameterChange() error {
	if b.streaming.Load() {
		return vaerrors.Newf("parameters cannot change while streaming").
			Component("reproduction").Kind(vaerrors.KindModalError).Build()
	}
	return nil
}

func (b *base) pullInput(out audio.Block) {
	if b.input == nil {
		out.Zero()
		return
	}
	b.input.Process(out)
}
