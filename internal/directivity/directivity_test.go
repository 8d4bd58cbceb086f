package directivity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/va-core/va/internal/spatial"
)

func sampleGridBackend() *NearestNeighborBackend {
	dirs := [][2]float64{{0, 0}, {90, 0}, {180, 0}, {270, 0}}
	left := [][]float32{{1}, {2}, {3}, {4}}
	right := [][]float32{{1}, {2}, {3}, {4}}
	return NewHRIRGridBackend(dirs, left, right, false)
}

func TestManagerRequestReleaseDelete(t *testing.T) {
	m := NewManager(0)
	id := m.Create(sampleGridBackend())

	_, err := m.Request(id)
	assert.NoError(t, err)

	assert.False(t, m.Delete(id), "delete must fail while referenced")

	m.Release(id)
	assert.True(t, m.Delete(id))

	_, _, err = m.Info(id)
	assert.Error(t, err)
}

func TestManagerRequestUnknownID(t *testing.T) {
	m := NewManager(0)
	_, err := m.Request(999)
	assert.Error(t, err)
}

func TestNearestNeighborBackendFindsClosest(t *testing.T) {
	b := sampleGridBackend()
	idx, oob := b.NearestIndex(5, 0)
	assert.Equal(t, 0, idx)
	assert.False(t, oob)

	idx, oob = b.NearestIndex(95, 0)
	assert.Equal(t, 1, idx)
	assert.False(t, oob)
}

func TestNearestNeighborBackendOutOfBounds(t *testing.T) {
	b := sampleGridBackend()
	_, oob := b.NearestIndex(0, 90)
	assert.True(t, oob)
}

func TestFrontCacheReusesQuantizedDirection(t *testing.T) {
	m := NewManager(time.Minute)
	id := m.Create(sampleGridBackend())
	backend, _ := m.Request(id)

	idx1, _ := m.NearestIndexCached(id, backend, spatial.Vec3{X: 1, Y: 0, Z: 0})
	idx2, _ := m.NearestIndexCached(id, backend, spatial.Vec3{X: 1, Y: 0, Z: 0})
	assert.Equal(t, idx1, idx2)
}

func TestSphericalHarmonicBackendEvaluatesIsotropicTerm(t *testing.T) {
	b := NewSphericalHarmonicHRIRBackend(0, []float64{0.5}, []float64{0.5}, false)
	idx, oob := b.NearestIndex(0, 0)
	assert.False(t, oob)

	var out [2][]float32
	out[0] = make([]float32, 4)
	out[1] = make([]float32, 4)
	b.HRIR(idx, out)
	assert.Equal(t, float32(0.5), out[0][0])
}
