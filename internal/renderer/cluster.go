package renderer

import (
	"github.com/va-core/va/internal/audio"
	"github.com/va-core/va/internal/spatial"
)

// wavefront is one source's contribution to a receiver (spec §4.5/GLOSSARY).
// This renderer treats every enabled, non-colocated sound source as a
// single wavefront; higher-order reflection images are out of scope
// (spec §1 Non-goals: "physical room-acoustics simulation itself"),
// so the spec's "unassigned -> assigned" wavefront registration step
// collapses to "has a defined origin this cycle" since every source
// carries a pose from creation.
type wavefront struct {
	sourceID      int
	origin        spatial.Vec3
	originDefined bool
	power         float64
	directivityID int
	signalSource  string
	muted         bool
}

// clusterDirection is one principal direction: a mean incidence
// direction, the wavefronts currently assigned to it, its two
// partitioned convolvers, and a two-channel output scratch buffer.
type clusterDirection struct {
	meanDir       spatial.Vec3
	wavefronts    []wavefront
	worstErr      float64
	convLeft      *Convolver
	convRight     *Convolver
	delays        map[int]*stereoDelay
	lastHRIRIndex int
	scratch       audio.Block

	// convOutLeft/convOutRight hold this direction's post-convolution
	// output each block, kept so Convolver.Process never aliases its
	// input and output buffers (both draw from the pre-convolution
	// scratch accumulator instead).
	convOutLeft  []float32
	convOutRight []float32

	maxDelaySamples int
}

type stereoDelay struct {
	left, right *DelayLine
}

func newClusterDirection(dir spatial.Vec3, maxTaps, blockSize, maxDelaySamples int) *clusterDirection {
	return &clusterDirection{
		meanDir: dir,
		// -1 is not a valid backend grid index, so the first HRIR
		// lookup (even one that legitimately resolves to index 0)
		// always counts as a change and loads a filter.
		lastHRIRIndex:   -1,
		convLeft:        NewConvolver(maxTaps),
		convRight:       NewConvolver(maxTaps),
		delays:          make(map[int]*stereoDelay),
		scratch:         audio.NewBlock(2, blockSize),
		convOutLeft:     make([]float32, blockSize),
		convOutRight:    make([]float32, blockSize),
		maxDelaySamples: maxDelaySamples,
	}
}

// stereoDelayFor returns the per-wavefront left/right delay lines for
// sourceID, lazily allocating them on first use by that wavefront in
// this direction.
func (cd *clusterDirection) stereoDelayFor(sourceID int) *stereoDelay {
	sd, ok := cd.delays[sourceID]
	if !ok {
		sd = &stereoDelay{
			left:  NewDelayLine(cd.maxDelaySamples),
			right: NewDelayLine(cd.maxDelaySamples),
		}
		cd.delays[sourceID] = sd
	}
	return sd
}

// clusteringState is the transient per-receiver set of principal
// directions (spec §4.5 GLOSSARY), swapped in atomically between
// control-thread UpdateScene calls and audio-thread Process calls.
type clusteringState struct {
	directions []*clusterDirection
	k          int
}

// assignWavefronts rebuilds a clustering state for the given
// wavefronts and receiver pose, implementing spec §4.5 step 2:
// nearest-cluster assignment below a squared-distance threshold
// (default 4/K), opening new clusters while budget allows, running-
// mean direction update, worst-error tracking.
func assignWavefronts(prev *clusteringState, receiverPose spatial.Pose, wavefronts []wavefront, k int, threshold float64, maxTaps, blockSize, maxDelaySamples int) *clusteringState {
	next := &clusteringState{k: k}
	// carry over existing directions' filter/delay state (a previous
	// direction within squared chord distance 0.01 of a new cluster's
	// first wavefront is reused, see findOrCreateDirection) so convolver history (and therefore
	// crossfade continuity) survives an UpdateScene cycle when a
	// direction's membership doesn't change much.
	reusable := prev

	for _, wf := range wavefronts {
		if !wf.originDefined || wf.muted {
			continue
		}
		dir := receiverPose.IncidenceDirection(wf.origin)
		dir = dir.Normalized()

		best := -1
		bestErr := threshold
		for i, cd := range next.directions {
			errv := spatial.SquaredAngularDistance(cd.meanDir, dir)
			if errv < bestErr {
				bestErr = errv
				best = i
			}
		}

		if best == -1 && len(next.directions) < k {
			cd := findOrCreateDirection(reusable, dir, maxTaps, blockSize, maxDelaySamples)
			cd.meanDir = dir
			cd.wavefronts = nil
			cd.worstErr = 0
			next.directions = append(next.directions, cd)
			best = len(next.directions) - 1
			bestErr = 0 // the opening wavefront defines the mean: zero error
		} else if best == -1 {
			// Budget exhausted: assign to the closest existing direction anyway.
			bestErr = spatial.SquaredAngularDistance(next.directions[0].meanDir, dir)
			best = 0
			for i, cd := range next.directions {
				e := spatial.SquaredAngularDistance(cd.meanDir, dir)
				if e < bestErr {
					bestErr = e
					best = i
				}
			}
		}

		cd := next.directions[best]
		n := len(cd.wavefronts)
		cd.meanDir = cd.meanDir.Scale(float64(n)).Add(dir).Scale(1.0 / float64(n+1)).Normalized()
		cd.wavefronts = append(cd.wavefronts, wf)
		if bestErr > cd.worstErr {
			cd.worstErr = bestErr
		}
	}

	return next
}

// findOrCreateDirection looks for a previous cycle's direction close
// to dir to reuse its convolver/delay-line state (preserving crossfade
// and delay-line history across UpdateScene cycles); otherwise
// allocates fresh.
func findOrCreateDirection(prev *clusteringState, dir spatial.Vec3, maxTaps, blockSize, maxDelaySamples int) *clusterDirection {
	if prev != nil {
		for _, cd := range prev.directions {
			if spatial.SquaredAngularDistance(cd.meanDir, dir) < 0.01 {
				return cd
			}
		}
	}
	return newClusterDirection(dir, maxTaps, blockSize, maxDelaySamples)
}
