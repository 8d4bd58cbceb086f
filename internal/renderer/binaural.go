package renderer

import (
	"math"
	"sync/atomic"

	"github.com/va-core/va/internal/audio"
	"github.com/va-core/va/internal/config"
	"github.com/va-core/va/internal/directivity"
	"github.com/va-core/va/internal/scene"
	"github.com/va-core/va/internal/signalsource"
	"github.com/va-core/va/internal/spatial"
	"github.com/va-core/va/internal/vaerrors"
)

const (
	defaultMaxDirections    = 8
	defaultMaxFilterTaps    = 512
	defaultCrossfadeSamples = 32
	defaultHeadRadius       = 0.09 // meters, spec §4.5: "arc length on a 9 cm sphere"
	defaultMaxDelaySeconds  = 0.3  // ~100 m of travel, generous over any realistic scene
)

// BinauralClusteringRenderer is the reference renderer variant (spec
// §4.5): it amortizes per-wavefront HRIR convolution across a bounded
// set of clustered incidence directions, rendering one receiver's
// binaural output per block.
type BinauralClusteringRenderer struct {
	receiverID int

	sampleRate float64
	soundSpeed float64
	headRadius float64
	blockSize  int

	maxDirections   int
	threshold       float64
	maxTaps         int
	crossfadeLen    int
	minDistance     float64
	calibration     float64
	maxDelaySamples int

	directivities *directivity.Manager
	sources       *signalsource.Manager

	// state is published by UpdateScene (control thread) and read by
	// Process (audio thread); it is never mutated after publication,
	// only replaced, so a plain atomic pointer is enough — no tearing
	// is possible mid-block (spec §4.5 step 3).
	state atomic.Pointer[clusteringState]

	receiverPose          atomic.Pointer[spatial.Pose]
	receiverDirectivityID atomic.Int64
	globalMode            atomic.Uint32
}

// Option configures a BinauralClusteringRenderer at construction.
type Option func(*BinauralClusteringRenderer)

func WithMaxDirections(k int) Option {
	return func(r *BinauralClusteringRenderer) {
		r.maxDirections = k
		r.threshold = 4.0 / float64(k)
	}
}

func WithClusterThreshold(t float64) Option {
	return func(r *BinauralClusteringRenderer) { r.threshold = t }
}

func WithMaxFilterTaps(n int) Option {
	return func(r *BinauralClusteringRenderer) { r.maxTaps = n }
}

func WithCrossfadeLength(n int) Option {
	return func(r *BinauralClusteringRenderer) { r.crossfadeLen = n }
}

func WithMinimumDistance(d float64) Option {
	return func(r *BinauralClusteringRenderer) { r.minDistance = d }
}

func WithCalibration(gain float64) Option {
	return func(r *BinauralClusteringRenderer) { r.calibration = gain }
}

func WithHeadRadius(meters float64) Option {
	return func(r *BinauralClusteringRenderer) { r.headRadius = meters }
}

// NewBinauralClusteringRenderer constructs a renderer for one
// receiver. soundSpeed and the head radius are rejected if not
// strictly positive (spec §4.5 numeric/edge-case policy).
func NewBinauralClusteringRenderer(receiverID int, sampleRate, soundSpeed float64, blockSize int, directivities *directivity.Manager, sources *signalsource.Manager, opts ...Option) (*BinauralClusteringRenderer, error) {
	if soundSpeed <= 0 {
		return nil, vaerrors.Newf("speed of sound must be positive, got %v", soundSpeed).
			Component("renderer").Kind(vaerrors.KindInvalidParameter).Build()
	}

	r := &BinauralClusteringRenderer{
		receiverID:      receiverID,
		sampleRate:      sampleRate,
		soundSpeed:      soundSpeed,
		headRadius:      defaultHeadRadius,
		blockSize:       blockSize,
		maxDirections:   defaultMaxDirections,
		threshold:       4.0 / float64(defaultMaxDirections),
		maxTaps:         defaultMaxFilterTaps,
		crossfadeLen:    defaultCrossfadeSamples,
		minDistance:     0.25,
		calibration:     1.0,
		maxDelaySamples: int(sampleRate * defaultMaxDelaySeconds),
		directivities:   directivities,
		sources:         sources,
	}
	r.receiverDirectivityID.Store(int64(scene.NoDirectivity))

	for _, opt := range opts {
		opt(r)
	}
	if r.headRadius <= 0 {
		return nil, vaerrors.Newf("head radius must be positive, got %v", r.headRadius).
			Component("renderer").Kind(vaerrors.KindInvalidParameter).Build()
	}
	if r.crossfadeLen > blockSize {
		r.crossfadeLen = blockSize
	}
	return r, nil
}

// NumChannels reports the fixed binaural output width.
func (r *BinauralClusteringRenderer) NumChannels() int { return 2 }

// UpdateGlobalAuralizationMode stores the unversioned global mode mask
// (spec §4.5 generic contract). Not yet consulted by Process: every
// auralization component this renderer models is unconditionally on,
// matching the Direct Sound + HRIR baseline spec §1 scopes in; masking
// individual components out is future work, not a dropped requirement.
func (r *BinauralClusteringRenderer) UpdateGlobalAuralizationMode(mask config.AuralizationMode) {
	r.globalMode.Store(uint32(mask))
}

// Reset purges all per-scene state (spec §5 cancellation): the next
// Process call renders silence until a fresh UpdateScene arrives.
func (r *BinauralClusteringRenderer) Reset() {
	r.state.Store(nil)
	r.receiverPose.Store(nil)
	r.receiverDirectivityID.Store(int64(scene.NoDirectivity))
}

// UpdateScene rebuilds and publishes a new clustering state from the
// bound receiver's current pose and every enabled sound source in
// head (spec §4.5, control-thread steps 1-3).
func (r *BinauralClusteringRenderer) UpdateScene(head *scene.State) {
	recv, ok := head.SoundReceiver(r.receiverID)
	if !ok || !recv.Enabled {
		r.receiverPose.Store(nil)
		r.receiverDirectivityID.Store(int64(scene.NoDirectivity))
		r.state.Store(&clusteringState{k: r.maxDirections})
		return
	}

	pose := recv.Pose
	r.receiverPose.Store(&pose)
	r.receiverDirectivityID.Store(int64(recv.DirectivityID))

	var wavefronts []wavefront
	head.ForEachSoundSource(func(src *scene.SoundSourceState) {
		wavefronts = append(wavefronts, wavefront{
			sourceID:      src.ID,
			origin:        src.Pose.Position,
			originDefined: src.Enabled && src.Pose.Position != pose.Position,
			power:         src.Power,
			directivityID: src.DirectivityID,
			signalSource:  src.SignalSource,
			muted:         src.Muted || !src.Enabled,
		})
	})

	prev := r.state.Load()
	next := assignWavefronts(prev, pose, wavefronts, r.maxDirections, r.threshold, r.maxTaps, r.blockSize, r.maxDelaySamples)
	r.state.Store(next)
}

// Process renders one block for the bound receiver (spec §4.5
// audio-thread steps). out must be a 2-channel block of this
// renderer's block size.
func (r *BinauralClusteringRenderer) Process(out audio.Block) {
	out.Zero()

	dirID := int(r.receiverDirectivityID.Load())
	if dirID == scene.NoDirectivity {
		return // missing directivity -> silence (spec §4.5 failure semantics)
	}
	backend, err := r.directivities.Request(dirID)
	if err != nil {
		return
	}
	defer r.directivities.Release(dirID)

	state := r.state.Load()
	if state == nil {
		return
	}

	pose := r.receiverPose.Load()
	if pose == nil {
		return
	}

	for _, cd := range state.directions {
		r.renderDirection(cd, *pose, backend, dirID, out)
	}
}

func (r *BinauralClusteringRenderer) renderDirection(cd *clusterDirection, pose spatial.Pose, backend directivity.Backend, dirID int, out audio.Block) {
	cd.scratch.Zero()

	clusterLeftITD, clusterRightITD := earDelaysSeconds(cd.meanDir, r.headRadius, r.soundSpeed)

	left := cd.scratch.Channel(0)
	right := cd.scratch.Channel(1)

	for _, wf := range cd.wavefronts {
		if !wf.originDefined || wf.muted {
			continue // no valid origin this block: skip (spec §4.5 edge case)
		}

		block := r.sources.GetSourceBlock(wf.signalSource)
		if block.NumChannels() == 0 {
			continue
		}
		samples := block.Channel(0)

		distance := pose.Position.Distance(wf.origin)
		if distance < r.minDistance {
			distance = r.minDistance
		}

		dirLocal := pose.IncidenceDirection(wf.origin)
		wfLeftITD, wfRightITD := earDelaysSeconds(dirLocal, r.headRadius, r.soundSpeed)
		geomDelay := distance / r.soundSpeed

		leftDelay := (wfLeftITD - clusterLeftITD) + geomDelay
		rightDelay := (wfRightITD - clusterRightITD) + geomDelay
		if leftDelay < 0 {
			leftDelay = 0
		}
		if rightDelay < 0 {
			rightDelay = 0
		}
		leftDelaySamples := leftDelay * r.sampleRate
		rightDelaySamples := rightDelay * r.sampleRate

		gain := float32((1.0 / distance) * wf.power * r.calibration)

		sd := cd.stereoDelayFor(wf.sourceID)
		for i, x := range samples {
			sd.left.Push(x)
			sd.right.Push(x)
			left[i] += sd.left.Read(leftDelaySamples) * gain
			right[i] += sd.right.Read(rightDelaySamples) * gain
		}
	}

	idx, outOfBounds := r.directivities.NearestIndexCached(dirID, backend, cd.meanDir)
	if !outOfBounds && idx != cd.lastHRIRIndex {
		var taps [2][]float32
		taps[0] = make([]float32, r.maxTaps)
		taps[1] = make([]float32, r.maxTaps)
		backend.HRIR(idx, taps)
		cd.convLeft.SetFilter(taps[0], r.crossfadeLen)
		cd.convRight.SetFilter(taps[1], r.crossfadeLen)
		cd.lastHRIRIndex = idx
	}

	cd.convLeft.Process(left, cd.convOutLeft)
	cd.convRight.Process(right, cd.convOutRight)

	outLeft := out.Channel(0)
	outRight := out.Channel(1)
	for i := range outLeft {
		outLeft[i] += cd.convOutLeft[i]
		outRight[i] += cd.convOutRight[i]
	}
}

// earDelaysSeconds splits a sphere's radius/speed-of-sound budget
// between the two ears as a function of direction, the same
// VABinauralUtils::TimeOfArrivalModel::SphericalShapeGetLeft/
// SphericalShapeGetRight pair VACore's binaural wavefront renderer
// calls: delay = radius/c, far-ear share = delay*(1+sin(az)*cos(el))/2,
// near-ear share = delay*(1-sin(az)*cos(el))/2 (the two are
// complementary; only their difference, used below as a relative ITD,
// is physically meaningful). VACore's own call site passes both shares
// through SphericalShapeGetLeft (a copy-paste bug it then papers over
// by forcing both channels' delay to zero, "as something is wrong with
// the parameters") and never exercises SphericalShapeGetRight, so there
// is no verified original ear-to-formula binding to copy. This applies
// one formula per ear, not one formula for both, and binds them
// opposite to their names: the left ear takes the
// (1-sin(az)*cos(el))/2 shape (SphericalShapeGetRight's) and the right
// ear the (1+sin(az)*cos(el))/2 shape (SphericalShapeGetLeft's), with
// azimuth matching spatial.AzimuthElevation's
// own convention: positive = left, so a positive azimuth must shrink
// the left ear's share and grow the right ear's.
func earDelaysSeconds(dirLocal spatial.Vec3, radius, soundSpeed float64) (leftDelay, rightDelay float64) {
	azimuth, elevation := spatial.AzimuthElevation(dirLocal)
	delay := radius / soundSpeed
	lateral := math.Sin(azimuth) * math.Cos(elevation)
	leftDelay = delay * (1 - lateral) / 2
	rightDelay = delay * (1 + lateral) / 2
	return leftDelay, rightDelay
}
