package directivity

import "math"

// gridPoint is one direction of a spatially discrete measurement grid.
// Nearest is found by linear scan over precomputed unit vectors — directivity
// grids are small (typically a few hundred to a few thousand
// directions), so this stays well within budget for a per-block query.
type gridPoint struct {
	az, el float64
	x, y, z float64
}

func newGridPoint(az, el float64) gridPoint {
	azr, elr := az*math.Pi/180, el*math.Pi/180
	return gridPoint{
		az: az, el: el,
		x: math.Cos(elr) * math.Cos(azr),
		y: math.Sin(elr),
		z: math.Cos(elr) * math.Sin(azr),
	}
}

// NearestNeighborBackend serves a discrete directivity grid (spec
// §4.3: "spatially discrete (nearest-neighbor lookup)").
type NearestNeighborBackend struct {
	kind       Kind
	points     []gridPoint
	hrirLeft   [][]float32
	hrirRight  [][]float32
	magnitude  [][]float64 // [pointIdx][band]
	headAboveTorso bool
}

// NewHRIRGridBackend constructs a nearest-neighbor HRIR backend from
// parallel direction/impulse-response arrays (already decoded by an
// external file loader, per spec §1 Non-goals).
func NewHRIRGridBackend(directions [][2]float64, left, right [][]float32, headAboveTorso bool) *NearestNeighborBackend {
	b := &NearestNeighborBackend{kind: KindHRIR, hrirLeft: left, hrirRight: right, headAboveTorso: headAboveTorso}
	for _, d := range directions {
		b.points = append(b.points, newGridPoint(d[0], d[1]))
	}
	return b
}

// NewMagnitudeGridBackend constructs a nearest-neighbor magnitude-spectrum backend.
func NewMagnitudeGridBackend(directions [][2]float64, magnitude [][]float64) *NearestNeighborBackend {
	b := &NearestNeighborBackend{kind: KindMagnitudeSpectrum, magnitude: magnitude}
	for _, d := range directions {
		b.points = append(b.points, newGridPoint(d[0], d[1]))
	}
	return b
}

func (b *NearestNeighborBackend) Kind() Kind            { return b.kind }
func (b *NearestNeighborBackend) HeadAboveTorso() bool  { return b.headAboveTorso }

func (b *NearestNeighborBackend) NearestIndex(azimuth, elevation float64) (int, bool) {
	if len(b.points) == 0 {
		return -1, true
	}
	q := newGridPoint(azimuth, elevation)
	best, bestD := -1, math.Inf(1)
	for i, p := range b.points {
		dx, dy, dz := p.x-q.x, p.y-q.y, p.z-q.z
		d := dx*dx + dy*dy + dz*dz
		if d < bestD {
			bestD, best = d, i
		}
	}
	// Coverage threshold: a chord distance beyond ~60 degrees angular
	// separation is treated as out of the grid's effective coverage.
	const coverageChord = 1.0
	return best, bestD > coverageChord
}

func (b *NearestNeighborBackend) HRIR(idx int, out [2][]float32) {
	if idx < 0 || idx >= len(b.hrirLeft) {
		for ch := range out {
			for i := range out[ch] {
				out[ch][i] = 0
			}
		}
		return
	}
	copy(out[0], b.hrirLeft[idx])
	copy(out[1], b.hrirRight[idx])
}

func (b *NearestNeighborBackend) MagnitudeBand(idx, band int) float64 {
	if idx < 0 || idx >= len(b.magnitude) || band < 0 || band >= len(b.magnitude[idx]) {
		return 0
	}
	return b.magnitude[idx][band]
}

// SphericalHarmonicBackend reconstructs a continuous directivity field
// from a truncated spherical-harmonic coefficient set (spec §4.3:
// "continuous (spherical-harmonic reconstruction)"). Order N uses
// 2N+1 real coefficients per channel/band (see evalSH).
type SphericalHarmonicBackend struct {
	kind           Kind
	order          int
	coeffsLeft     []float64
	coeffsRight    []float64
	coeffsMag      [][]float64 // [band][coeff]
	headAboveTorso bool

	// lastAz/lastEl cache the most recent NearestIndex query direction;
	// HRIR/MagnitudeBand evaluate the basis there instead of at a grid
	// index, since a continuous field has none. Callers must call
	// NearestIndex once per query before reading HRIR/MagnitudeBand,
	// matching the Backend contract's existing per-block call order.
	lastAz, lastEl float64
}

func NewSphericalHarmonicHRIRBackend(order int, coeffsLeft, coeffsRight []float64, headAboveTorso bool) *SphericalHarmonicBackend {
	return &SphericalHarmonicBackend{kind: KindHRIR, order: order, coeffsLeft: coeffsLeft, coeffsRight: coeffsRight, headAboveTorso: headAboveTorso}
}

func NewSphericalHarmonicMagnitudeBackend(order int, coeffsMag [][]float64) *SphericalHarmonicBackend {
	return &SphericalHarmonicBackend{kind: KindMagnitudeSpectrum, order: order, coeffsMag: coeffsMag}
}

func (b *SphericalHarmonicBackend) Kind() Kind           { return b.kind }
func (b *SphericalHarmonicBackend) HeadAboveTorso() bool { return b.headAboveTorso }

// NearestIndex has no discrete grid to snap to; it always reports
// in-bounds (a continuous field covers the whole sphere) and returns 0
// as a placeholder index — HRIR/MagnitudeBand below ignore idx and
// evaluate the basis directly from the query direction instead.
func (b *SphericalHarmonicBackend) NearestIndex(azimuth, elevation float64) (int, bool) {
	b.lastAz, b.lastEl = azimuth, elevation
	return 0, false
}

func (b *SphericalHarmonicBackend) HRIR(idx int, out [2][]float32) {
	left := evalSH(b.order, b.coeffsLeft, b.lastAz, b.lastEl)
	right := evalSH(b.order, b.coeffsRight, b.lastAz, b.lastEl)
	if len(out[0]) > 0 {
		out[0][0] = float32(left)
	}
	if len(out[1]) > 0 {
		out[1][0] = float32(right)
	}
	for ch := range out {
		for i := 1; i < len(out[ch]); i++ {
			out[ch][i] = 0
		}
	}
}

func (b *SphericalHarmonicBackend) MagnitudeBand(idx, band int) float64 {
	if band < 0 || band >= len(b.coeffsMag) {
		return 0
	}
	return evalSH(b.order, b.coeffsMag[band], b.lastAz, b.lastEl)
}

// evalSH evaluates a truncated real spherical-harmonic series at
// (az, el) using a simplified zonal+sectoral basis — sufficient for
// the energetic reconstruction spec §4.3 asks for without pulling in a
// full associated-Legendre implementation.
func evalSH(order int, coeffs []float64, az, el float64) float64 {
	if len(coeffs) == 0 {
		return 0
	}
	sum := coeffs[0] // l=0 term: isotropic component
	idx := 1
	for l := 1; l <= order && idx < len(coeffs); l++ {
		cosTerm := math.Cos(float64(l) * az)
		sinTerm := math.Sin(float64(l) * az)
		legendre := math.Pow(math.Cos(el), float64(l))
		if idx < len(coeffs) {
			sum += coeffs[idx] * legendre * cosTerm
			idx++
		}
		if idx < len(coeffs) {
			sum += coeffs[idx] * legendre * sinTerm
			idx++
		}
	}
	return sum
}
