package reproduction

import (
	"sync/atomic"

	"github.com/va-core/va/internal/audio"
	"github.com/va-core/va/internal/directivity"
	"github.com/va-core/va/internal/renderer"
	"github.com/va-core/va/internal/scene"
	"github.com/va-core/va/internal/spatial"
	"github.com/va-core/va/internal/vaerrors"
)

const binauralMixdownCrossfadeSamples = 32

// virtualLoudspeaker is one input channel's fixed world-space position
// and per-ear convolution state.
type virtualLoudspeaker struct {
	position     spatial.Vec3
	convLeft     *renderer.Convolver
	convRight    *renderer.Convolver
	convOutLeft  []float32
	convOutRight []float32
	lastIndex    int
}

// BinauralMixdownParameters are the variant-specific settings.
type BinauralMixdownParameters struct {
	DirectivityID int
}

// BinauralMixdown converts V virtual-loudspeaker input channels to two
// binaural output channels by HRIR-convolving each virtual loudspeaker
// direction relative to the tracked listener, exchanging filters on
// head updates with a cosine-square crossfade (spec §4.6).
type BinauralMixdown struct {
	base

	receiverID   int
	maxTaps      int
	crossfadeLen int

	directivities *directivity.Manager

	speakers []*virtualLoudspeaker

	receiverPose  atomic.Pointer[spatial.Pose]
	directivityID atomic.Int64

	scratch audio.Block
}

// NewBinauralMixdown constructs a mixdown for the given fixed virtual
// loudspeaker layout (world-space positions), tracking receiverID's
// pose for the HRIR lookup.
func NewBinauralMixdown(receiverID, blockSize, maxTaps int, speakerPositions []spatial.Vec3, directivities *directivity.Manager, directivityID int, targetOutputs []string) *BinauralMixdown {
	crossfadeLen := binauralMixdownCrossfadeSamples
	if crossfadeLen > blockSize {
		crossfadeLen = blockSize
	}
	m := &BinauralMixdown{
		base:          newBase(targetOutputs),
		receiverID:    receiverID,
		maxTaps:       maxTaps,
		crossfadeLen:  crossfadeLen,
		directivities: directivities,
		scratch:       audio.NewBlock(len(speakerPositions), blockSize),
	}
	for _, pos := range speakerPositions {
		m.speakers = append(m.speakers, &virtualLoudspeaker{
			position:     pos,
			convLeft:     renderer.NewConvolver(maxTaps),
			convRight:    renderer.NewConvolver(maxTaps),
			convOutLeft:  make([]float32, blockSize),
			convOutRight: make([]float32, blockSize),
			lastIndex:    -1,
		})
	}
	m.directivityID.Store(int64(directivityID))
	return m
}

func (m *BinauralMixdown) GetOutputDatasource() DataSource { return m }
func (m *BinauralMixdown) NumChannels() int                { return 2 }

// UpdateScene tracks the bound receiver's pose (spec §4.6: "relative
// to a tracked listener").
func (m *BinauralMixdown) UpdateScene(head *scene.State) {
	recv, ok := head.SoundReceiver(m.receiverID)
	if !ok || !recv.Enabled {
		m.receiverPose.Store(nil)
		return
	}
	pose := recv.Pose
	m.receiverPose.Store(&pose)
}

func (m *BinauralMixdown) GetParameters() any {
	return BinauralMixdownParameters{DirectivityID: int(m.directivityID.Load())}
}

func (m *BinauralMixdown) SetParameters(params any) error {
	if err := m.guardParameterChange(); err != nil {
		return err
	}
	p, ok := params.(BinauralMixdownParameters)
	if !ok {
		return vaerrors.Newf("binaural mixdown expects BinauralMixdownParameters, got %T", params).
			Component("reproduction").Kind(vaerrors.KindInvalidParameter).Build()
	}
	m.directivityID.Store(int64(p.DirectivityID))
	return nil
}

func (m *BinauralMixdown) Process(out audio.Block) {
	out.Zero()
	m.pullInput(m.scratch)

	pose := m.receiverPose.Load()
	dirID := int(m.directivityID.Load())
	if pose == nil || dirID == scene.NoDirectivity {
		return // missing directivity or untracked listener -> silence
	}
	backend, err := m.directivities.Request(dirID)
	if err != nil {
		return
	}
	defer m.directivities.Release(dirID)

	outLeft := out.Channel(0)
	outRight := out.Channel(1)

	for i, spk := range m.speakers {
		if i >= m.scratch.NumChannels() {
			break
		}
		in := m.scratch.Channel(i)

		dirLocal := pose.IncidenceDirection(spk.position)
		idx, outOfBounds := m.directivities.NearestIndexCached(dirID, backend, dirLocal)
		if !outOfBounds && idx != spk.lastIndex {
			var taps [2][]float32
			taps[0] = make([]float32, m.maxTaps)
			taps[1] = make([]float32, m.maxTaps)
			backend.HRIR(idx, taps)
			spk.convLeft.SetFilter(taps[0], m.crossfadeLen)
			spk.convRight.SetFilter(taps[1], m.crossfadeLen)
			spk.lastIndex = idx
		}

		spk.convLeft.Process(in, spk.convOutLeft)
		spk.convRight.Process(in, spk.convOutRight)
		for j := range outLeft {
			outLeft[j] += spk.convOutLeft[j]
			outRight[j] += spk.convOutRight[j]
		}
	}
}
