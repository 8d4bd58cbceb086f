package reproduction

import (
	"sync/atomic"

	"github.com/va-core/va/internal/audio"
	"github.com/va-core/va/internal/scene"
	"github.com/va-core/va/internal/spatial"
	"github.com/va-core/va/internal/vaerrors"
)

// CTCParameters are the variant-specific settings: the regularization
// factor and an optional sweet-spot widening term (spec §4.6: "supports
// regularization β and optional sweet-spot widening factors").
type CTCParameters struct {
	Beta              float64
	SweetSpotWidening float64
}

// ctcFilterBank is the N×2 mixing matrix mapping a desired 2-channel
// binaural percept to N loudspeaker feeds, published atomically by
// UpdateScene and read by Process.
type ctcFilterBank struct {
	weights [][2]float32 // [loudspeaker][ear]
}

// NChannelCTC is a dynamic crosstalk-cancellation reproduction (spec
// §4.6): given N loudspeaker poses and a head-tracked listener, it
// computes a regularized minimum-norm inverse of the ear/loudspeaker
// acoustic transfer matrix and streams the 2-channel binaural input
// through it to produce N loudspeaker feeds that (ideally) recreate
// the binaural percept at the listener's ears while cancelling
// crosstalk between them.
//
// Simplification: the transfer matrix here is a broadband (magnitude-
// only, free-field 1/distance) model recomputed whenever the tracked
// pose changes, rather than the spec's frequency-dependent partitioned
// filter bank — no FFT or dense linear-algebra library appears
// anywhere in the example pack to build a per-band complex inverse on,
// and the 2-ear case collapses to a closed-form 2×2 matrix inversion
// either way, so the regularization/widening knobs the spec calls out
// are exercised faithfully even though the frequency axis is not.
type NChannelCTC struct {
	base

	receiverID   int
	loudspeakers []spatial.Vec3
	headRadius   float64
	paramsMu     atomic.Pointer[CTCParameters]
	bank         atomic.Pointer[ctcFilterBank]
	scratch      audio.Block
}

// NewNChannelCTC constructs a CTC reproduction for the given fixed
// loudspeaker layout (world-space positions), tracking receiverID's
// pose.
func NewNChannelCTC(receiverID, blockSize int, loudspeakers []spatial.Vec3, headRadius float64, targetOutputs []string) *NChannelCTC {
	c := &NChannelCTC{
		base:         newBase(targetOutputs),
		receiverID:   receiverID,
		loudspeakers: append([]spatial.Vec3(nil), loudspeakers...),
		headRadius:   headRadius,
		scratch:      audio.NewBlock(2, blockSize),
	}
	defaults := CTCParameters{Beta: 0.01}
	c.paramsMu.Store(&defaults)
	return c
}

func (c *NChannelCTC) GetOutputDatasource() DataSource { return c }
func (c *NChannelCTC) NumChannels() int                { return len(c.loudspeakers) }

func (c *NChannelCTC) GetParameters() any {
	if p := c.paramsMu.Load(); p != nil {
		return *p
	}
	return CTCParameters{}
}

func (c *NChannelCTC) SetParameters(params any) error {
	if err := c.guardParameterChange(); err != nil {
		return err
	}
	p, ok := params.(CTCParameters)
	if !ok {
		return vaerrors.Newf("N-channel CTC expects CTCParameters, got %T", params).
			Component("reproduction").Kind(vaerrors.KindInvalidParameter).Build()
	}
	c.paramsMu.Store(&p)
	return nil
}

// UpdateScene recomputes the filter bank whenever the tracked
// receiver's pose is available (spec §4.6: "per block or on head-pose
// change" — here driven by scene publication, the control-thread
// cadence this codebase's UpdateScene events arrive at).
func (c *NChannelCTC) UpdateScene(head *scene.State) {
	recv, ok := head.SoundReceiver(c.receiverID)
	if !ok || !recv.Enabled {
		c.bank.Store(nil)
		return
	}

	earOffset := recv.Pose.Orientation.Rotate(spatial.Vec3{X: c.headRadius})
	earLeft := recv.Pose.Position.Add(earOffset)
	earRight := recv.Pose.Position.Sub(earOffset)

	params := CTCParameters{Beta: 0.01}
	if p := c.paramsMu.Load(); p != nil {
		params = *p
	}

	n := len(c.loudspeakers)
	h := make([][2]float64, n) // h[k] = {gain to left ear, gain to right ear}
	for k, pos := range c.loudspeakers {
		dl := earLeft.Distance(pos)
		dr := earRight.Distance(pos)
		if dl < 1e-3 {
			dl = 1e-3
		}
		if dr < 1e-3 {
			dr = 1e-3
		}
		h[k] = [2]float64{1.0 / dl, 1.0 / dr}
	}

	var a, b, d float64
	for _, hk := range h {
		a += hk[0] * hk[0]
		b += hk[0] * hk[1]
		d += hk[1] * hk[1]
	}
	reg := params.Beta + params.SweetSpotWidening
	a += reg
	d += reg

	det := a*d - b*b
	if det == 0 {
		det = 1e-12
	}
	invA, invB, invD := d/det, -b/det, a/det

	bank := &ctcFilterBank{weights: make([][2]float32, n)}
	for k, hk := range h {
		w0 := hk[0]*invA + hk[1]*invB
		w1 := hk[0]*invB + hk[1]*invD
		bank.weights[k] = [2]float32{float32(w0), float32(w1)}
	}
	c.bank.Store(bank)
}

func (c *NChannelCTC) Process(out audio.Block) {
	out.Zero()
	c.pullInput(c.scratch)

	bank := c.bank.Load()
	if bank == nil {
		return
	}

	left := c.scratch.Channel(0)
	right := c.scratch.Channel(1)

	for k := 0; k < out.NumChannels() && k < len(bank.weights); k++ {
		w := bank.weights[k]
		chOut := out.Channel(k)
		for i := range chOut {
			chOut[i] = left[i]*w[0] + right[i]*w[1]
		}
	}
}
