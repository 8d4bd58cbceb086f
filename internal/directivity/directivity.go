// Package directivity implements the reference-counted store of
// directional transfer data (spec §4.3): HRIRs (two-channel impulse
// responses) and energetic magnitude spectra, dispatched on file
// content and served by nearest-neighbor or spherical-harmonic
// backends.
package directivity

import (
	"strconv"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/va-core/va/internal/logging"
	"github.com/va-core/va/internal/spatial"
	"github.com/va-core/va/internal/vaerrors"
)

// Kind distinguishes the two data representations a directivity may hold.
type Kind int

const (
	KindHRIR Kind = iota
	KindMagnitudeSpectrum
)

// Backend is the dispatch-on-content query surface both representations expose.
type Backend interface {
	Kind() Kind
	// NearestIndex returns the backend's internal sample/grid index
	// nearest to (azimuth, elevation), plus whether the query direction
	// fell outside the backend's coverage.
	NearestIndex(azimuth, elevation float64) (idx int, outOfBounds bool)
	// HRIR copies the two-channel impulse response for idx into out[0]
	// (left) and out[1] (right). Only valid when Kind() == KindHRIR.
	HRIR(idx int, out [2][]float32)
	// MagnitudeBand returns the energetic magnitude for idx at
	// third-octave band b. Only valid when Kind() == KindMagnitudeSpectrum.
	MagnitudeBand(idx int, band int) float64
	// HeadAboveTorso reports whether this backend was built from an
	// HRIR variant tagged with a head-above-torso metadata key.
	HeadAboveTorso() bool
}

type entry struct {
	id      int
	backend Backend
	refs    int32
}

// Manager is the reference-counted directivity store. Request/Release
// pairs bracket every use; Delete only succeeds at zero references
// (spec §3 invariants, §8 testable property).
type Manager struct {
	mu      sync.Mutex
	entries map[int]*entry
	nextID  int

	frontCache *cache.Cache // azimuth/elevation query results, id-scoped

	logger interface {
		Debug(string, ...any)
		Warn(string, ...any)
	}
}

// NewManager constructs an empty directivity store. frontCacheTTL bounds
// how long a nearest-neighbor query result is cached before re-lookup;
// 0 disables the front cache.
func NewManager(frontCacheTTL time.Duration) *Manager {
	m := &Manager{
		entries: make(map[int]*entry),
		logger:  logging.ForComponent("directivity"),
	}
	if frontCacheTTL > 0 {
		m.frontCache = cache.New(frontCacheTTL, frontCacheTTL*2)
	}
	return m
}

// Create registers a backend (already constructed by a loader that
// dispatched on file content — DAFF/IR parsing is an external
// collaborator per spec §1 Non-goals) and returns its new integer id.
func (m *Manager) Create(backend Backend) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.entries[id] = &entry{id: id, backend: backend}
	return id
}

// Request increments id's reference count and returns a borrowed
// Backend valid until the matching Release.
func (m *Manager) Request(id int) (Backend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, vaerrors.Newf("directivity %d not found", id).
			Component("directivity").Kind(vaerrors.KindInvalidID).Build()
	}
	e.refs++
	return e.backend, nil
}

// Release decrements id's reference count.
func (m *Manager) Release(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok && e.refs > 0 {
		e.refs--
	}
}

// Delete removes id only if its reference count is zero, returning
// whether the deletion took effect (spec §8 S3: fails while bound,
// succeeds once unbound).
func (m *Manager) Delete(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.refs != 0 {
		return false
	}
	delete(m.entries, id)
	if m.frontCache != nil {
		m.frontCache.Flush()
	}
	return true
}

// Info reports whether id is currently valid, for GetDirectivityInfo-style queries.
func (m *Manager) Info(id int) (Kind, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return 0, false, vaerrors.Newf("directivity %d not found", id).
			Component("directivity").Kind(vaerrors.KindInvalidID).Build()
	}
	return e.backend.Kind(), e.backend.HeadAboveTorso(), nil
}

// NearestIndexCached performs a nearest-neighbor query through the
// optional front cache, keyed on (id, quantized direction), to absorb
// repeated queries for near-identical directions across consecutive
// audio blocks.
func (m *Manager) NearestIndexCached(id int, backend Backend, dir spatial.Vec3) (idx int, outOfBounds bool) {
	az, el := spatial.AzimuthElevation(dir)
	if m.frontCache == nil {
		return backend.NearestIndex(az, el)
	}

	key := cacheKey(id, az, el)
	if v, found := m.frontCache.Get(key); found {
		r := v.(cachedResult)
		return r.idx, r.outOfBounds
	}
	idx, outOfBounds = backend.NearestIndex(az, el)
	m.frontCache.SetDefault(key, cachedResult{idx: idx, outOfBounds: outOfBounds})
	return idx, outOfBounds
}

type cachedResult struct {
	idx         int
	outOfBounds bool
}

func cacheKey(id int, az, el float64) string {
	// Quantize to ~0.5 degree so nearby blocks of a slowly moving
	// source hit the same cache entry.
	const quantum = 0.5
	qa := int(az / quantum)
	qe := int(el / quantum)
	return strconv.Itoa(id) + ":" + strconv.Itoa(qa) + ":" + strconv.Itoa(qe)
}
